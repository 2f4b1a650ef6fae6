package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"printshop/internal/domain"
	"printshop/internal/middleware"
	"printshop/internal/repository"
	"printshop/internal/semantic"
	"printshop/internal/service"
	"printshop/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Mock repositories for testing
type mockUserRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*domain.User)}
}

func (m *mockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[user.Email]; exists {
		return repository.ErrUserAlreadyExists
	}
	m.users[user.Email] = user
	return nil
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, exists := m.users[email]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type mockRefreshTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*domain.RefreshToken
}

func newMockRefreshTokenRepository() *mockRefreshTokenRepository {
	return &mockRefreshTokenRepository{tokens: make(map[string]*domain.RefreshToken)}
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.Token] = token
	return nil
}

func (m *mockRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
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
	m.mu.Lock()
	defer m.mu.Unlock()
	refreshToken, exists := m.tokens[token]
	if !exists {
		return repository.ErrRefreshTokenNotFound
	}
	refreshToken.Revoked = true
	return nil
}

type mockProductRepository struct {
	mu       sync.Mutex
	products []*domain.Product
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = append(m.products, product)
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.products {
		if p.ID == product.ID {
			m.products[i] = product
			return nil
		}
	}
	return repository.ErrProductNotFound
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.products {
		if p.ID == id {
			m.products = append(m.products[:i], m.products[i+1:]...)
			return nil
		}
	}
	return repository.ErrProductNotFound
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.ID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (m *mockProductRepository) List(ctx context.Context) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Product, len(m.products))
	copy(out, m.products)
	return out, nil
}

type mockCategoryRepository struct {
	mu         sync.Mutex
	categories []*domain.Category
}

func (m *mockCategoryRepository) Create(ctx context.Context, category *domain.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories {
		if c.Name == category.Name {
			return repository.ErrCategoryAlreadyExists
		}
	}
	m.categories = append(m.categories, category)
	return nil
}

func (m *mockCategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Category(nil), m.categories...), nil
}

func (m *mockCategoryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, repository.ErrCategoryNotFound
}

type failingRanker struct{}

func (failingRanker) Rank(ctx context.Context, query string, candidates []domain.Candidate) ([]domain.Candidate, error) {
	return nil, semantic.ErrAdapterUnavailable
}

// harness wires real services over in-memory repositories behind a chi router
type harness struct {
	router     chi.Router
	users      service.UserService
	products   *mockProductRepository
	categories *mockCategoryRepository
	fs         afero.Fs
	adminToken string
	userToken  string
}

func newHarness(t *testing.T, ranker semantic.Ranker, describer semantic.Describer) *harness {
	t.Helper()
	logger := zap.NewNop()

	h := &harness{
		products:   &mockProductRepository{},
		categories: &mockCategoryRepository{},
		fs:         afero.NewMemMapFs(),
	}
	h.users = service.NewUserService(newMockUserRepository(), newMockRefreshTokenRepository(), "test-secret", 0, 0)

	images := storage.NewLocalImageStore(h.fs, "public/uploads", "/uploads")
	catalog := service.NewCatalogService(h.products, h.categories, ranker, 0, nil, logger)
	productService := service.NewProductService(h.products, h.categories, images, describer, logger)
	categoryService := service.NewCategoryService(h.categories, logger)

	auth := middleware.AuthMiddleware(h.users, logger)
	admin := middleware.RequireAdmin(logger)

	r := chi.NewRouter()
	NewUserHandler(h.users, logger).RegisterRoutes(r, auth)
	NewProductHandler(catalog, productService, logger).RegisterRoutes(r, auth, admin)
	NewCategoryHandler(catalog, categoryService, logger).RegisterRoutes(r, auth, admin)
	h.router = r

	h.adminToken = h.login(t, "admin@printshop.test", domain.RoleAdmin)
	h.userToken = h.login(t, "user@printshop.test", domain.RoleUser)
	return h
}

func (h *harness) login(t *testing.T, email, role string) string {
	t.Helper()
	ctx := context.Background()
	if _, err := h.users.CreateUser(ctx, email, "password123", "Staff", role); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	token, _, _, err := h.users.Login(ctx, email, "password123")
	if err != nil {
		t.Fatalf("Failed to login: %v", err)
	}
	return token
}

func (h *harness) addCategory(name string) *domain.Category {
	c := &domain.Category{ID: uuid.New(), Name: name}
	h.categories.categories = append(h.categories.categories, c)
	return c
}

func (h *harness) addProduct(name, description string, status domain.ProductStatus, category *domain.Category) *domain.Product {
	p := &domain.Product{ID: uuid.New(), Name: name, Description: description, Status: status, ImageURL: "/uploads/seed.png"}
	if category != nil {
		id := category.ID
		p.CategoryID = &id
	}
	h.products.products = append(h.products.products, p)
	return p
}

func (h *harness) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, path string, body interface{}) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// multipartRequest builds a product form; a nil image omits the file part
func multipartRequest(method, path string, fields map[string]string, image []byte, filename string) *http.Request {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if image != nil {
		part, _ := mw.CreateFormFile("image", filename)
		part.Write(image)
	}
	mw.Close()

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
}

type validationResponse struct {
	Error struct {
		Details struct {
			ValidationErrors []middleware.FieldError `json:"validation_errors"`
		} `json:"details"`
	} `json:"error"`
}

func (v validationResponse) fields() []string {
	out := make([]string, len(v.Error.Details.ValidationErrors))
	for i, fe := range v.Error.Details.ValidationErrors {
		out[i] = fe.Field
	}
	return out
}
