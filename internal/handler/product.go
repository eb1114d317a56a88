package handler

import (
	"encoding/json"
	"net/http"

	"github.com/xenking/topup-store/internal/domain/product"
)

type productResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Platform  string      `json:"platform"`
	Type      string      `json:"product_type"`
	UnitPrice json.Number `json:"unit_price"`
}

// listProducts handles GET /products.
func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func toProductResponse(p product.Product) productResponse {
	return productResponse{
		ID:        p.ID,
		Name:      p.Name,
		Platform:  p.Platform,
		Type:      p.Type,
		UnitPrice: json.Number(p.Price.String()),
	}
}
