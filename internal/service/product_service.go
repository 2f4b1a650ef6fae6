package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"printshop/internal/domain"
	"printshop/internal/repository"
	"printshop/internal/semantic"
	"printshop/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnauthorized      = errors.New("admin role required")
	ErrDescriberDisabled = errors.New("description generator is not configured")
)

// ProductService performs admin mutations on products
type ProductService interface {
	CreateProduct(ctx context.Context, form ProductForm) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, form ProductForm) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	GenerateDescription(ctx context.Context, prompt string) (string, error)
}

// CategoryService performs admin mutations on categories
type CategoryService interface {
	CreateCategory(ctx context.Context, name string) (*domain.Category, error)
}

// requireAdmin checks the principal stored on the context by the auth middleware
func requireAdmin(ctx context.Context) error {
	principal, ok := domain.PrincipalFromContext(ctx)
	if !ok || !principal.IsAdmin() {
		return ErrUnauthorized
	}
	return nil
}

type productService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	images       storage.ImageStore
	describer    semantic.Describer
	logger       *zap.Logger
}

// NewProductService creates a product service. A nil describer disables
// GenerateDescription.
func NewProductService(
	productRepo repository.ProductRepository,
	categoryRepo repository.CategoryRepository,
	images storage.ImageStore,
	describer semantic.Describer,
	logger *zap.Logger,
) ProductService {
	return &productService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		images:       images,
		describer:    describer,
		logger:       logger,
	}
}

func (s *productService) CreateProduct(ctx context.Context, form ProductForm) (*domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	input, err := ValidateCreateProduct(form)
	if err != nil {
		return nil, err
	}

	if err := s.checkCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	imageURL, err := s.images.Save(ctx, input.Image.Data, input.Image.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	now := time.Now()
	categoryID := input.CategoryID
	product := &domain.Product{
		ID:          uuid.New(),
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		ImageURL:    imageURL,
		Status:      input.Status,
		CategoryID:  &categoryID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		s.discardImage(ctx, imageURL)
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("name", product.Name),
	)
	return product, nil
}

// UpdateProduct replaces the product fields. Without a new image the stored
// image URL is kept.
func (s *productService) UpdateProduct(ctx context.Context, id uuid.UUID, form ProductForm) (*domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}

	input, err := ValidateUpdateProduct(form)
	if err != nil {
		return nil, err
	}

	if err := s.checkCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	var newImageURL string
	if input.Image != nil {
		newImageURL, err = s.images.Save(ctx, input.Image.Data, input.Image.Filename)
		if err != nil {
			return nil, fmt.Errorf("failed to store image: %w", err)
		}
	}

	categoryID := input.CategoryID
	updated := *product
	updated.Name = input.Name
	updated.Description = input.Description
	updated.Price = input.Price
	updated.Status = input.Status
	updated.CategoryID = &categoryID
	updated.UpdatedAt = time.Now()
	if newImageURL != "" {
		updated.ImageURL = newImageURL
	}

	if err := s.productRepo.Update(ctx, &updated); err != nil {
		if newImageURL != "" {
			s.discardImage(ctx, newImageURL)
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	s.logger.Info("Product updated", zap.String("product_id", id.String()))
	return &updated, nil
}

func (s *productService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}

	if err := s.productRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.logger.Info("Product deleted", zap.String("product_id", id.String()))
	return nil
}

// GenerateDescription drafts a product description from the admin's notes
func (s *productService) GenerateDescription(ctx context.Context, prompt string) (string, error) {
	if err := requireAdmin(ctx); err != nil {
		return "", err
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", &ValidationError{Fields: []FieldError{{Field: "prompt", Message: "is required"}}}
	}
	if s.describer == nil {
		return "", ErrDescriberDisabled
	}

	description, err := s.describer.Describe(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate description: %w", err)
	}
	return description, nil
}

func (s *productService) checkCategory(ctx context.Context, id uuid.UUID) error {
	if _, err := s.categoryRepo.FindByID(ctx, id); err != nil {
		return fmt.Errorf("failed to resolve category: %w", err)
	}
	return nil
}

// discardImage removes an image whose product record was never written
func (s *productService) discardImage(ctx context.Context, url string) {
	if err := s.images.Remove(context.WithoutCancel(ctx), url); err != nil {
		s.logger.Error("Failed to remove orphaned image",
			zap.String("image_url", url),
			zap.Error(err),
		)
	}
}

type categoryService struct {
	categoryRepo repository.CategoryRepository
	logger       *zap.Logger
}

// NewCategoryService creates a category service
func NewCategoryService(categoryRepo repository.CategoryRepository, logger *zap.Logger) CategoryService {
	return &categoryService{categoryRepo: categoryRepo, logger: logger}
}

func (s *categoryService) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	if err := ValidateCategory(name); err != nil {
		return nil, err
	}

	category := &domain.Category{
		ID:        uuid.New(),
		Name:      strings.TrimSpace(name),
		CreatedAt: time.Now(),
	}
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	s.logger.Info("Category created",
		zap.String("category_id", category.ID.String()),
		zap.String("name", category.Name),
	)
	return category, nil
}
