package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"printshop/internal/domain"
	"printshop/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Length limits follow the products and categories columns
const (
	MinNameLength         = 3
	MaxNameLength         = 255
	MinDescriptionLength  = 10
	MinCategoryNameLength = 3
	MaxCategoryNameLength = 100
	PriceDecimalPlaces    = 2
)

// maxPrice is the exclusive upper bound of a NUMERIC(12, 2) price
var maxPrice = decimal.New(1, 12-PriceDecimalPlaces)

// ImageUpload is an uploaded file as received from the client
type ImageUpload struct {
	Data     []byte
	Filename string
}

// ProductForm holds the raw product form fields
type ProductForm struct {
	Name        string
	Description string
	Price       string
	CategoryID  string
	Status      string
	Image       *ImageUpload
}

// CreateProductInput is a product form that passed create validation
type CreateProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	CategoryID  uuid.UUID
	Status      domain.ProductStatus
	Image       ImageUpload
}

// UpdateProductInput is a product form that passed update validation.
// Image is nil when the stored image should be kept.
type UpdateProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	CategoryID  uuid.UUID
	Status      domain.ProductStatus
	Image       *ImageUpload
}

// FieldError describes one invalid field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every field error found in a request
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Details maps field names to messages for error responses
func (e *ValidationError) Details() map[string]string {
	details := make(map[string]string, len(e.Fields))
	for _, f := range e.Fields {
		details[f.Field] = f.Message
	}
	return details
}

type fieldErrors []FieldError

func (fe *fieldErrors) add(field, format string, args ...any) {
	*fe = append(*fe, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (fe fieldErrors) err() error {
	if len(fe) == 0 {
		return nil
	}
	return &ValidationError{Fields: fe}
}

type productFields struct {
	name       string
	price      decimal.Decimal
	categoryID uuid.UUID
	status     domain.ProductStatus
}

func validateProductFields(form ProductForm, errs *fieldErrors) productFields {
	var out productFields

	out.name = strings.TrimSpace(form.Name)
	switch n := utf8.RuneCountInString(out.name); {
	case n < MinNameLength:
		errs.add("name", "must be at least %d characters", MinNameLength)
	case n > MaxNameLength:
		errs.add("name", "must be at most %d characters", MaxNameLength)
	}
	if utf8.RuneCountInString(form.Description) < MinDescriptionLength {
		errs.add("description", "must be at least %d characters", MinDescriptionLength)
	}

	price, err := decimal.NewFromString(strings.TrimSpace(form.Price))
	switch {
	case err != nil:
		errs.add("price", "must be a number")
	case !price.IsPositive():
		errs.add("price", "must be greater than 0")
	case !price.Equal(price.Truncate(PriceDecimalPlaces)):
		errs.add("price", "must have at most %d decimal places", PriceDecimalPlaces)
	case !price.LessThan(maxPrice):
		errs.add("price", "must be less than %s", maxPrice.String())
	default:
		out.price = price
	}

	categoryID := strings.TrimSpace(form.CategoryID)
	if categoryID == "" {
		errs.add("category_id", "is required")
	} else if id, err := uuid.Parse(categoryID); err != nil {
		errs.add("category_id", "must be a valid id")
	} else {
		out.categoryID = id
	}

	out.status = domain.StatusAvailable
	if s := strings.TrimSpace(form.Status); s != "" {
		status := domain.ProductStatus(s)
		if !status.Valid() {
			errs.add("status", "must be one of: available unavailable")
		} else {
			out.status = status
		}
	}

	return out
}

func validateImage(image *ImageUpload, errs *fieldErrors) {
	if !storage.IsSupportedImage(image.Data) {
		errs.add("image", "must be a JPEG, PNG, GIF, WebP, AVIF, BMP or TIFF image")
	}
}

// ValidateCreateProduct checks a form for product creation. An image is required.
func ValidateCreateProduct(form ProductForm) (CreateProductInput, error) {
	var errs fieldErrors
	fields := validateProductFields(form, &errs)

	if form.Image == nil || len(form.Image.Data) == 0 {
		errs.add("image", "is required")
	} else {
		validateImage(form.Image, &errs)
	}

	if err := errs.err(); err != nil {
		return CreateProductInput{}, err
	}

	return CreateProductInput{
		Name:        fields.name,
		Description: form.Description,
		Price:       fields.price,
		CategoryID:  fields.categoryID,
		Status:      fields.status,
		Image:       *form.Image,
	}, nil
}

// ValidateUpdateProduct checks a form for product update. The image is optional.
func ValidateUpdateProduct(form ProductForm) (UpdateProductInput, error) {
	var errs fieldErrors
	fields := validateProductFields(form, &errs)
	if form.Image != nil && len(form.Image.Data) > 0 {
		validateImage(form.Image, &errs)
	}

	if err := errs.err(); err != nil {
		return UpdateProductInput{}, err
	}

	var image *ImageUpload
	if form.Image != nil && len(form.Image.Data) > 0 {
		image = form.Image
	}

	return UpdateProductInput{
		Name:        fields.name,
		Description: form.Description,
		Price:       fields.price,
		CategoryID:  fields.categoryID,
		Status:      fields.status,
		Image:       image,
	}, nil
}

// ValidateCategory checks a category name
func ValidateCategory(name string) error {
	var errs fieldErrors
	switch n := utf8.RuneCountInString(strings.TrimSpace(name)); {
	case n < MinCategoryNameLength:
		errs.add("name", "must be at least %d characters", MinCategoryNameLength)
	case n > MaxCategoryNameLength:
		errs.add("name", "must be at most %d characters", MaxCategoryNameLength)
	}
	return errs.err()
}
