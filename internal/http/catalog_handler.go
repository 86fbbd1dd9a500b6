package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shoply/checkout-service/internal/catalog"
)

type stockResponse struct {
	ProductID string `json:"productId"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
}

func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	p, err := h.products.Get(r.Context(), productID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stockResponse{
		ProductID: p.ID,
		SKU:       p.SKU,
		Name:      p.Name,
		Stock:     p.Stock,
	})
}

type adjustStockRequest struct {
	ProductID string `json:"productId"`
	Op        string `json:"op"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.ProductID == "" {
		http.Error(w, "productId is required", http.StatusBadRequest)
		return
	}

	var adj catalog.Adjustment
	switch req.Op {
	case "set":
		adj = catalog.SetTo(req.Quantity)
	case "add":
		adj = catalog.AddBy(req.Quantity)
	case "subtract":
		adj = catalog.SubtractBy(req.Quantity)
	default:
		http.Error(w, "op must be set, add or subtract", http.StatusBadRequest)
		return
	}

	p, err := h.products.Adjust(r.Context(), req.ProductID, adj)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stockResponse{
		ProductID: p.ID,
		SKU:       p.SKU,
		Name:      p.Name,
		Stock:     p.Stock,
	})
}
