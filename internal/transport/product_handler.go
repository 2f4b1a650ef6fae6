package transport

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"printshop/internal/domain"
	"printshop/internal/middleware"
	"printshop/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxUploadBytes caps the size of a product form including its image
const MaxUploadBytes = 10 << 20

// ProductListResponse is returned by the catalog search
type ProductListResponse struct {
	Products []*domain.Product `json:"products"`
	Total    int               `json:"total"`
}

// DescribeRequest asks for a generated product description
type DescribeRequest struct {
	Prompt string `json:"prompt" validate:"required,max=2000"`
}

// DescribeResponse carries a generated description
type DescribeResponse struct {
	Description string `json:"description"`
}

// ProductHandler serves catalog reads and admin product mutations
type ProductHandler struct {
	catalog  service.CatalogService
	products service.ProductService
	logger   *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(catalog service.CatalogService, products service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		catalog:  catalog,
		products: products,
		logger:   logger,
	}
}

// RegisterRoutes registers public catalog routes and admin product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{id}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware, adminMiddleware)
			r.Post("/", h.CreateProduct)
			r.Post("/describe", h.GenerateDescription)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
		})
	})
}

// ListProducts searches the catalog and applies the category and
// availability filters to the result.
//
//	GET /api/products?q=banner&category=<id>&category=<id>&available=true
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	categoryIDs, availableOnly, problems := parseFilters(query["category"], query.Get("available"))
	if len(problems) > 0 {
		middleware.RespondWithValidationErrors(w, problems)
		return
	}

	products, err := h.catalog.Search(r.Context(), query.Get("q"))
	if err != nil {
		respondServiceError(w, h.logger, err, "search products")
		return
	}

	products = service.FilterProducts(products, categoryIDs, availableOnly)
	middleware.RespondWithJSON(w, http.StatusOK, ProductListResponse{Products: products, Total: len(products)})
}

// parseFilters reads repeated or comma separated category ids and the
// available flag
func parseFilters(categories []string, available string) (map[uuid.UUID]struct{}, bool, []middleware.FieldError) {
	var problems []middleware.FieldError

	ids := make(map[uuid.UUID]struct{})
	for _, value := range categories {
		for _, raw := range strings.Split(value, ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			id, err := uuid.Parse(raw)
			if err != nil {
				problems = append(problems, middleware.FieldError{Field: "category", Message: "Must be a valid id"})
				continue
			}
			ids[id] = struct{}{}
		}
	}

	availableOnly := false
	if available != "" {
		v, err := strconv.ParseBool(available)
		if err != nil {
			problems = append(problems, middleware.FieldError{Field: "available", Message: "Must be true or false"})
		}
		availableOnly = v
	}

	return ids, availableOnly, problems
}

// GetProduct returns one product
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// CreateProduct handles a multipart product form with a required image
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	form, ok := h.readProductForm(w, r)
	if !ok {
		return
	}

	product, err := h.products.CreateProduct(r.Context(), form)
	if err != nil {
		respondServiceError(w, h.logger, err, "create product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// UpdateProduct handles a multipart product form; the image may be omitted
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	form, ok := h.readProductForm(w, r)
	if !ok {
		return
	}

	product, err := h.products.UpdateProduct(r.Context(), id, form)
	if err != nil {
		respondServiceError(w, h.logger, err, "update product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// DeleteProduct permanently removes a product
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	if err := h.products.DeleteProduct(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "delete product")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GenerateDescription drafts a description for the admin product form
func (h *ProductHandler) GenerateDescription(w http.ResponseWriter, r *http.Request) {
	var req DescribeRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	description, err := h.products.GenerateDescription(r.Context(), req.Prompt)
	if err != nil {
		respondServiceError(w, h.logger, err, "generate description")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, DescribeResponse{Description: description})
}

func productID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product ID")
		return uuid.Nil, false
	}
	return id, true
}

// readProductForm parses the multipart body into a ProductForm
func (h *ProductHandler) readProductForm(w http.ResponseWriter, r *http.Request) (service.ProductForm, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		h.logger.Debug("Failed to parse product form", zap.Error(err))
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
			middleware.RespondWithError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return service.ProductForm{}, false
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid multipart form")
		return service.ProductForm{}, false
	}

	form := service.ProductForm{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Price:       r.FormValue("price"),
		CategoryID:  r.FormValue("category_id"),
		Status:      r.FormValue("status"),
	}

	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid image upload")
		return service.ProductForm{}, false
	default:
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid image upload")
			return service.ProductForm{}, false
		}
		form.Image = &service.ImageUpload{Data: data, Filename: header.Filename}
	}

	return form, true
}
