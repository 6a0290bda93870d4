package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/burdemar/orderflow/internal/auth"
	"github.com/burdemar/orderflow/internal/catalog"
	"github.com/burdemar/orderflow/internal/domain"
	"github.com/burdemar/orderflow/internal/redisx"
)

// ProductService is the catalog surface the handler needs.
type ProductService interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	CreateProduct(ctx context.Context, in catalog.ProductInput) (domain.Product, error)
	UpdateProduct(ctx context.Context, id string, in catalog.ProductInput) (domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

type ProductsHandler struct {
	Svc    ProductService
	Cache  *redisx.Cache
	Tokens *auth.Tokens
	Log    *zap.Logger
}

// Register mounts read endpoints publicly and mutation endpoints behind the
// ADMIN role.
func (h *ProductsHandler) Register(r *chi.Mux) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)

	r.Group(func(g chi.Router) {
		g.Use(h.Tokens.RequireRole(auth.RoleAdmin))
		g.Post("/products", h.createProduct)
		g.Put("/products/{id}", h.updateProduct)
		g.Delete("/products/{id}", h.deleteProduct)
	})
}

type productRequest struct {
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
}

func (h *ProductsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Svc.ListProducts(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]ProductDTO, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProductDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ProductsHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if h.Cache != nil {
		if b, err := h.Cache.GetProduct(r.Context(), id); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(b)
			return
		}
	}

	p, err := h.Svc.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	dto := toProductDTO(p)
	if h.Cache != nil {
		if b, err := json.Marshal(dto); err == nil {
			if err := h.Cache.SetProduct(r.Context(), id, b); err != nil {
				h.Log.Debug("product cache set failed", zap.Error(err))
			}
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *ProductsHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json", Code: codeInvalidRequest})
		return
	}

	p, err := h.Svc.CreateProduct(r.Context(), catalog.ProductInput{
		Name:          req.Name,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(p))
}

func (h *ProductsHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json", Code: codeInvalidRequest})
		return
	}

	p, err := h.Svc.UpdateProduct(r.Context(), id, catalog.ProductInput{
		Name:          req.Name,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.invalidate(r, id)
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

func (h *ProductsHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Svc.DeleteProduct(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	h.invalidate(r, id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductsHandler) invalidate(r *http.Request, id string) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.InvalidateProduct(r.Context(), id); err != nil {
		h.Log.Debug("product cache invalidate failed", zap.Error(err))
	}
}
