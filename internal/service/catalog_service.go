package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"printshop/internal/domain"
	"printshop/internal/metrics"
	"printshop/internal/repository"
	"printshop/internal/semantic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrCatalogUnavailable is returned when the product list cannot be loaded
var ErrCatalogUnavailable = errors.New("catalog unavailable")

// errNoKnownProducts marks a ranking that named no product of the catalog
var errNoKnownProducts = errors.New("ranking matched no catalog product")

// CatalogService answers read-only catalog queries
type CatalogService interface {
	Search(ctx context.Context, query string) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListCategories(ctx context.Context) ([]*domain.Category, error)
}

type catalogService struct {
	productRepo   repository.ProductRepository
	categoryRepo  repository.CategoryRepository
	ranker        semantic.Ranker
	rankerTimeout time.Duration
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

// NewCatalogService creates a catalog service. A nil ranker disables
// semantic ranking and every query is matched literally.
func NewCatalogService(
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	ranker semantic.Ranker,
	rankerTimeout time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		productRepo:   productRepo,
		categoryRepo:  categoryRepo,
		ranker:        ranker,
		rankerTimeout: rankerTimeout,
		metrics:       m,
		logger:        logger,
	}
}

// Search returns the whole catalog for an empty query. Otherwise the semantic
// ranker picks the matches, falling back to MatchLiteral when it fails.
func (s *catalogService) Search(ctx context.Context, query string) ([]*domain.Product, error) {
	products, err := s.productRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	query = strings.TrimSpace(query)
	if query == "" {
		s.metrics.SearchServed(metrics.PathAll)
		return products, nil
	}

	if s.ranker == nil {
		s.metrics.SearchServed(metrics.PathLiteral)
		return MatchLiteral(products, query), nil
	}

	ranked, err := s.rank(ctx, query, products)
	if err != nil {
		s.logger.Warn("Semantic search failed, using literal match",
			zap.String("query", query),
			zap.Error(err),
		)
		s.metrics.SearchServed(metrics.PathFallback)
		return MatchLiteral(products, query), nil
	}

	s.metrics.SearchServed(metrics.PathSemantic)
	return ranked, nil
}

func (s *catalogService) rank(ctx context.Context, query string, products []*domain.Product) ([]*domain.Product, error) {
	if s.rankerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.rankerTimeout)
		defer cancel()
	}

	candidates := make([]domain.Candidate, len(products))
	for i, p := range products {
		candidates[i] = p.Candidate()
	}

	start := time.Now()
	ranked, err := s.ranker.Rank(ctx, query, candidates)
	s.metrics.ObserveRanker(time.Since(start), err)
	if err != nil {
		return nil, err
	}

	matched := MatchRanked(products, ranked)
	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: %w", semantic.ErrAdapterUnavailable, errNoKnownProducts)
	}
	return matched, nil
}

// MatchRanked maps ranked candidates back to catalog products by exact name,
// in ranked order. Names absent from the catalog are dropped and every product
// sharing a name is included once, in catalog order.
func MatchRanked(products []*domain.Product, ranked []domain.Candidate) []*domain.Product {
	byName := make(map[string][]*domain.Product, len(products))
	for _, p := range products {
		byName[p.Name] = append(byName[p.Name], p)
	}

	seen := make(map[string]struct{}, len(ranked))
	out := make([]*domain.Product, 0, len(ranked))
	for _, c := range ranked {
		if _, dup := seen[c.Name]; dup {
			continue
		}
		seen[c.Name] = struct{}{}
		out = append(out, byName[c.Name]...)
	}
	return out
}

// MatchLiteral keeps products whose name or description contains query,
// ignoring case, in catalog order.
func MatchLiteral(products []*domain.Product, query string) []*domain.Product {
	needle := strings.ToLower(query)
	out := make([]*domain.Product, 0)
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.Description), needle) {
			out = append(out, p)
		}
	}
	return out
}

func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

func (s *catalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	categories, err := s.categoryRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}
