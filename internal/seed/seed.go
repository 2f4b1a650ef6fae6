// Package seed loads the starter print-shop catalog and the first admin account.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"printshop/internal/domain"
	"printshop/internal/repository"
	"printshop/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PlaceholderImage is the image URL given to seeded products
const PlaceholderImage = "/uploads/placeholder.jpg"

// Item is a seeded product
type Item struct {
	Name        string
	Description string
}

// Group is a seeded category with its products
type Group struct {
	Category string
	Products []Item
}

const stickerFinish = "Sticker Kisscut / Diecut Autocut, Laminasi, Masking Tape"

// Catalog is the starter catalog of the shop
var Catalog = []Group{
	{
		Category: "Cetak Warna",
		Products: []Item{
			{"Artpaper 120", stickerFinish},
			{"Artpaper 210", stickerFinish},
			{"Artpaper 260", stickerFinish},
			{"HVS A3", stickerFinish},
			{"HVS F4 / A4", stickerFinish},
			{"Sticker Bontac", stickerFinish},
			{"Sticker Glossy Camel 160", stickerFinish},
			{"Cetak A3 / A4 / F4 (warna)", stickerFinish},
		},
	},
	{
		Category: "Cetak Monochrome",
		Products: []Item{
			{"HVS A3", stickerFinish},
			{"Bufallo F4", stickerFinish},
			{"HVS F4 / A4", stickerFinish},
			{"Cetak A3 / A4 / F4 (BW)", stickerFinish},
		},
	},
	{
		Category: "Cetak Besar",
		Products: []Item{
			{"Banner", "Large format printing"},
			{"X Banner / Y Banner", "Large format printing"},
			{"Roll Up Banner", "Large format printing"},
			{"One Way Sticker", "Large format printing"},
			{"Sticker Ritrama", "Large format printing"},
		},
	},
	{
		Category: "Jasa Desain & Dokumen",
		Products: []Item{
			{"Desain (Graphic Design)", "Professional design services"},
			{"Scanning", "Document scanning services"},
		},
	},
	{
		Category: "Jilid (Binding)",
		Products: []Item{
			{"Jilid Biasa", "Standard binding"},
			{"Jilid Buku (Cover Artpaper)", "Book binding with Artpaper cover"},
			{"Jilid Spiral", "Spiral binding"},
		},
	},
	{
		Category: "Cutting & Finishing",
		Products: []Item{
			{"Cutting Autocontour", "Precision cutting"},
			{"Laminasi (umum)", "Lamination services"},
			{"Mass Cutting", "Bulk cutting services"},
			{"Sambung Banner", "Banner joining"},
		},
	},
	{
		Category: "Special Offer",
		Products: []Item{
			{"Cetak Kartu Nama (AP 210) - 1 sisi", "Business cards"},
			{"Kalender", "Custom calendars"},
			{"Sertifikat", "Certificates"},
			{"Brosur", "Brochures"},
			{"Flyer", "Flyers"},
		},
	},
}

// Admin describes the account created by Run. An empty email skips it.
type Admin struct {
	Email    string
	Password string
	Name     string
}

// Seeder writes the starter data through the repositories
type Seeder struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	users      service.UserService
	logger     *zap.Logger
}

// New creates a Seeder
func New(products repository.ProductRepository, categories repository.CategoryRepository, users service.UserService, logger *zap.Logger) *Seeder {
	return &Seeder{products: products, categories: categories, users: users, logger: logger}
}

// Result counts what Run created
type Result struct {
	Categories int
	Products   int
	Admin      bool
}

// Run seeds the groups and the admin account. Categories that already exist
// are skipped with their products, so running twice creates nothing new.
func (s *Seeder) Run(ctx context.Context, groups []Group, admin Admin) (Result, error) {
	var res Result

	for _, group := range groups {
		category := &domain.Category{
			ID:        uuid.New(),
			Name:      group.Category,
			CreatedAt: time.Now(),
		}
		if err := s.categories.Create(ctx, category); err != nil {
			if errors.Is(err, repository.ErrCategoryAlreadyExists) {
				s.logger.Info("Category exists, skipping", zap.String("category", group.Category))
				continue
			}
			return res, fmt.Errorf("failed to seed category %q: %w", group.Category, err)
		}
		res.Categories++

		for _, item := range group.Products {
			now := time.Now()
			categoryID := category.ID
			product := &domain.Product{
				ID:          uuid.New(),
				Name:        item.Name,
				Description: item.Description,
				Price:       decimal.Zero,
				ImageURL:    PlaceholderImage,
				Status:      domain.StatusAvailable,
				CategoryID:  &categoryID,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := s.products.Create(ctx, product); err != nil {
				return res, fmt.Errorf("failed to seed product %q: %w", item.Name, err)
			}
			res.Products++
		}
	}

	if admin.Email == "" {
		return res, nil
	}

	_, err := s.users.CreateUser(ctx, admin.Email, admin.Password, admin.Name, domain.RoleAdmin)
	switch {
	case errors.Is(err, repository.ErrUserAlreadyExists):
		s.logger.Info("Admin account exists, skipping", zap.String("email", admin.Email))
	case err != nil:
		return res, fmt.Errorf("failed to seed admin account: %w", err)
	default:
		res.Admin = true
	}

	return res, nil
}
