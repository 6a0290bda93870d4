package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/burdemar/orderflow/internal/domain"
	"github.com/burdemar/orderflow/internal/redisx"
)

// OrderService is the lifecycle surface the handler needs.
type OrderService interface {
	CreateOrder(ctx context.Context, items []domain.ItemQuantity) (domain.Order, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	PayOrder(ctx context.Context, id string) (domain.Order, error)
	CancelOrder(ctx context.Context, id string) (domain.Order, error)
}

type OrdersHandler struct {
	Svc   OrderService
	Cache *redisx.Cache
	Log   *zap.Logger
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/pay", h.payOrder)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
}

type createOrderRequest struct {
	Items []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json", Code: codeInvalidRequest})
		return
	}

	items := make([]domain.ItemQuantity, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.ItemQuantity{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	order, err := h.Svc.CreateOrder(r.Context(), items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderDTO(order))
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	os, err := h.Svc.ListOrders(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]OrderDTO, 0, len(os))
	for _, o := range os {
		out = append(out, toOrderDTO(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if h.Cache != nil {
		if b, err := h.Cache.GetOrder(r.Context(), id); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(b)
			return
		}
	}

	order, err := h.Svc.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	dto := toOrderDTO(order)
	if h.Cache != nil {
		if b, err := json.Marshal(dto); err == nil {
			if err := h.Cache.SetOrder(r.Context(), id, b); err != nil {
				h.Log.Debug("order cache set failed", zap.Error(err))
			}
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *OrdersHandler) payOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Svc.PayOrder)
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Svc.CancelOrder)
}

func (h *OrdersHandler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (domain.Order, error)) {
	id := chi.URLParam(r, "id")

	order, err := fn(r.Context(), id)

	// Even a failed pay may have expired the order; drop the cached copy
	// either way.
	if h.Cache != nil {
		if cerr := h.Cache.InvalidateOrder(r.Context(), id); cerr != nil {
			h.Log.Debug("order cache invalidate failed", zap.Error(cerr))
		}
	}

	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(order))
}
