package transport

import (
	"net/http"

	"printshop/internal/middleware"
	"printshop/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CreateCategoryRequest represents the category creation payload
type CreateCategoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// CategoryHandler serves category routes
type CategoryHandler struct {
	catalog    service.CatalogService
	categories service.CategoryService
	logger     *zap.Logger
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(catalog service.CatalogService, categories service.CategoryService, logger *zap.Logger) *CategoryHandler {
	return &CategoryHandler{catalog: catalog, categories: categories, logger: logger}
}

// RegisterRoutes registers the category routes
func (h *CategoryHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/categories", func(r chi.Router) {
		r.Get("/", h.ListCategories)
		r.With(authMiddleware, adminMiddleware).Post("/", h.CreateCategory)
	})
}

func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "list categories")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, categories)
}

func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	category, err := h.categories.CreateCategory(r.Context(), req.Name)
	if err != nil {
		respondServiceError(w, h.logger, err, "create category")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, category)
}
