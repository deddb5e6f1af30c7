package server

import (
	"time"

	"storefront/internal/models"
)

// vendorSummary is the public face of a vendor profile. Account fields such
// as email never leave the server.
type vendorSummary struct {
	ID          uint                `json:"id"`
	DisplayName string              `json:"display_name"`
	Slug        string              `json:"slug"`
	Status      models.VendorStatus `json:"status,omitempty"`
	IsPublic    *bool               `json:"is_public,omitempty"`
	UserID      uint                `json:"user_id,omitempty"`
}

type productResponse struct {
	ID         uint                 `json:"id"`
	Title      string               `json:"title"`
	Slug       string               `json:"slug"`
	PriceCents int64                `json:"price_cents"`
	Status     models.ProductStatus `json:"status"`
	Vendor     *vendorSummary       `json:"vendor,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
}

func newVendorSummary(p *models.VendorProfile, detailed bool) *vendorSummary {
	if p == nil {
		return nil
	}
	v := &vendorSummary{ID: p.ID, DisplayName: p.DisplayName, Slug: p.Slug}
	if detailed {
		public := p.IsPublic
		v.Status = p.Status
		v.IsPublic = &public
		v.UserID = p.UserID
	}
	return v
}

func newProductResponse(p *models.Product, detailed bool) productResponse {
	return productResponse{
		ID:         p.ID,
		Title:      p.Title,
		Slug:       p.Slug,
		PriceCents: p.PriceCents,
		Status:     p.Status,
		Vendor:     newVendorSummary(p.VendorProfile, detailed),
		CreatedAt:  p.CreatedAt,
	}
}

func productList(products []models.Product, detailed bool) []productResponse {
	out := make([]productResponse, 0, len(products))
	for i := range products {
		out = append(out, newProductResponse(&products[i], detailed))
	}
	return out
}

func vendorList(profiles []models.VendorProfile, detailed bool) []*vendorSummary {
	out := make([]*vendorSummary, 0, len(profiles))
	for i := range profiles {
		out = append(out, newVendorSummary(&profiles[i], detailed))
	}
	return out
}
