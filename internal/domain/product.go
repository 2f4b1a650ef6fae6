package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductStatus is the availability state of a product
type ProductStatus string

const (
	StatusAvailable   ProductStatus = "available"
	StatusUnavailable ProductStatus = "unavailable"
)

// Valid reports whether s is one of the known statuses
func (s ProductStatus) Valid() bool {
	return s == StatusAvailable || s == StatusUnavailable
}

// Product represents a product in the catalog
type Product struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	ImageURL    string          `json:"image_url" db:"image_url"`
	Status      ProductStatus   `json:"status" db:"status"`
	CategoryID  *uuid.UUID      `json:"category_id" db:"category_id"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// Candidate is the slice of a product shown to the semantic ranker
type Candidate struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Candidate returns the name/description pair of the product
func (p *Product) Candidate() Candidate {
	return Candidate{Name: p.Name, Description: p.Description}
}

// Category represents a product category
type Category struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
