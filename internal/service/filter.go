package service

import (
	"printshop/internal/domain"

	"github.com/google/uuid"
)

// FilterProducts narrows an already-fetched list by category and availability.
// An empty categoryIDs set applies no category filter. Both filters must hold.
// The input order is kept and a new slice is returned on every call.
func FilterProducts(products []*domain.Product, categoryIDs map[uuid.UUID]struct{}, availableOnly bool) []*domain.Product {
	out := make([]*domain.Product, 0, len(products))
	for _, p := range products {
		if len(categoryIDs) > 0 {
			if p.CategoryID == nil {
				continue
			}
			if _, ok := categoryIDs[*p.CategoryID]; !ok {
				continue
			}
		}
		if availableOnly && p.Status != domain.StatusAvailable {
			continue
		}
		out = append(out, p)
	}
	return out
}
