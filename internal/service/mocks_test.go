package service

import (
	"context"
	"errors"
	"sync"

	"printshop/internal/domain"
	"printshop/internal/repository"
	"printshop/internal/storage"

	"github.com/google/uuid"
)

// Mock repositories for testing
type mockUserRepository struct {
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*domain.User)}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type mockRefreshTokenRepository struct {
	tokens map[string]*domain.RefreshToken
}

func newMockRefreshTokenRepository() *mockRefreshTokenRepository {
	return &mockRefreshTokenRepository{tokens: make(map[string]*domain.RefreshToken)}
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.tokens[token.Token] = token
	return nil
}

func (m *mockRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if refreshToken.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return refreshToken, nil
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return repository.ErrRefreshTokenNotFound
	}
	refreshToken.Revoked = true
	return nil
}

// mockProductRepository keeps products in insertion order
type mockProductRepository struct {
	products  []*domain.Product
	listErr   error
	createErr error
	updateErr error
	writes    int
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.writes++
	m.products = append(m.products, product)
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	for i, p := range m.products {
		if p.ID == product.ID {
			m.writes++
			m.products[i] = product
			return nil
		}
	}
	return repository.ErrProductNotFound
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	for i, p := range m.products {
		if p.ID == id {
			m.writes++
			m.products = append(m.products[:i], m.products[i+1:]...)
			return nil
		}
	}
	return repository.ErrProductNotFound
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	for _, p := range m.products {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (m *mockProductRepository) List(ctx context.Context) ([]*domain.Product, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*domain.Product, len(m.products))
	copy(out, m.products)
	return out, nil
}

type mockCategoryRepository struct {
	categories []*domain.Category
}

func (m *mockCategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	for _, c := range m.categories {
		if c.Name == category.Name {
			return repository.ErrCategoryAlreadyExists
		}
	}
	m.categories = append(m.categories, category)
	return nil
}

func (m *mockCategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	return m.categories, nil
}

func (m *mockCategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	for _, c := range m.categories {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, repository.ErrCategoryNotFound
}

// stubRanker returns a fixed answer or error and records the call
type stubRanker struct {
	ranked     []domain.Candidate
	err        error
	block      bool
	calls      int
	candidates []domain.Candidate
}

func (s *stubRanker) Rank(ctx context.Context, query string, candidates []domain.Candidate) ([]domain.Candidate, error) {
	s.calls++
	s.candidates = candidates
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.ranked, s.err
}

type stubDescriber struct {
	description string
	err         error
}

func (s *stubDescriber) Describe(ctx context.Context, prompt string) (string, error) {
	return s.description, s.err
}

// memoryImageStore records saved and removed URLs
type memoryImageStore struct {
	mu      sync.Mutex
	saved   []string
	removed []string
	saveErr error
}

func (m *memoryImageStore) Save(ctx context.Context, payload []byte, originalFilename string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return "", m.saveErr
	}
	if len(payload) == 0 {
		return "", nil
	}
	url := "/uploads/" + uuid.NewString() + ".png"
	m.saved = append(m.saved, url)
	return url, nil
}

func (m *memoryImageStore) Remove(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, url)
	return nil
}

var (
	_ repository.ProductRepository  = (*mockProductRepository)(nil)
	_ repository.CategoryRepository = (*mockCategoryRepository)(nil)
	_ storage.ImageStore            = (*memoryImageStore)(nil)
)

var errStoreDown = errors.New("connection refused")

func adminContext() context.Context {
	return domain.WithPrincipal(context.Background(), domain.Principal{UserID: uuid.New(), Role: domain.RoleAdmin})
}

func userContext() context.Context {
	return domain.WithPrincipal(context.Background(), domain.Principal{UserID: uuid.New(), Role: domain.RoleUser})
}
