package api

import (
	"fmt"
	"net/http"

	"github.com/nk2it/license-store-backend/internal/store"
)

// demoProducts is the static catalogue served when no database is configured.
// Keeps local development and demos working end to end.
var demoProducts = []store.Product{
	{
		ID:          "sep-1y",
		Name:        "Symantec Endpoint Protection - 1 Year",
		Description: "Single-device license, 12 months of updates",
		PriceCents:  9900,
	},
	{
		ID:          "sep-3y",
		Name:        "Symantec Endpoint Protection - 3 Years",
		Description: "Single-device license, 36 months of updates",
		PriceCents:  24900,
	},
}

// ─── GET /api/products ────────────────────────────────────────────────────────

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		respond(w, http.StatusOK, demoProducts)
		return
	}

	products, err := s.storage.ListProducts(r.Context())
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("list products: %w", err))
		return
	}
	if products == nil {
		products = []store.Product{}
	}
	respond(w, http.StatusOK, products)
}
