package httppresentation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	appOrder "github.com/Zhima-Mochi/minishop-fulfillment/internal/application/order"
	domainOrder "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Handler struct {
	orderService *appOrder.Service
	log          observability.Logger
	tel          observability.Observability
}

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerTenantID       = "X-Tenant-ID"

	maxBodyBytes = 1 << 20
)

func NewHandler(orderSvc *appOrder.Service, logger observability.Logger, tel observability.Observability) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = tel.Logger()
	}
	return &Handler{
		orderService: orderSvc,
		log:          baseLogger.With(observability.F("component", componentHTTPHandler)),
		tel:          tel,
	}
}

// Router wires every route behind
// Trace → ObservabilityMiddleware (request logger) → Access log → HTTP metrics.
// metrics, when set, is served on /metrics outside the chain.
func (h *Handler) Router(metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	r.Get("/health", h.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(
			h.withTrace,
			ObservabilityMiddleware(
				h.log,
				func(r *http.Request) string { return r.Header.Get(headerRequestID) },
				func(r *http.Request) string { return r.Header.Get(headerTenantID) },
			),
			h.withAccessLog,
			h.withHTTPMetrics,
		)

		r.Post("/orders", h.handleCreateOrder)
		r.Get("/orders/{orderID}", h.handleGetOrder)
		r.Put("/orders/{orderID}", h.handleUpdateOrder)
		r.Delete("/orders/{orderID}", h.handleCancelOrder)
		r.Get("/accounts/{accountID}/orders", h.handleListOrders)
	})

	return r
}

type itemDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func toItems(in []itemDTO) []domainOrder.Item {
	out := make([]domainOrder.Item, 0, len(in))
	for _, it := range in {
		out = append(out, domainOrder.Item{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

func fromItems(in []domainOrder.Item) []itemDTO {
	out := make([]itemDTO, 0, len(in))
	for _, it := range in {
		out = append(out, itemDTO{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

type createOrderRequest struct {
	AccountID int64     `json:"account_id"`
	Items     []itemDTO `json:"items"`
}

type createOrderResponse struct {
	OrderID int64              `json:"order_id"`
	Status  domainOrder.Status `json:"status"`
	Skipped []int64            `json:"skipped,omitempty"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.orderService.CreateOrder(r.Context(), appOrder.CreateOrderInput{
		AccountID: req.AccountID,
		Items:     toItems(req.Items),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Location", "/orders/"+strconv.FormatInt(result.OrderID, 10))
	writeJSON(w, http.StatusCreated, createOrderResponse{
		OrderID: result.OrderID,
		Status:  result.Status,
		Skipped: result.Skipped,
	})
}

type updateOrderRequest struct {
	Status domainOrder.Status `json:"status"`
	Items  []itemDTO          `json:"items"`
}

type updateOrderResponse struct {
	OrderID int64              `json:"order_id"`
	Status  domainOrder.Status `json:"status"`
	Version int64              `json:"version"`
}

func (h *Handler) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "orderID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req updateOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.orderService.UpdateOrder(r.Context(), appOrder.UpdateOrderInput{
		OrderID: orderID,
		Status:  req.Status,
		Items:   toItems(req.Items),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updateOrderResponse{
		OrderID: result.OrderID,
		Status:  result.Status,
		Version: result.Version,
	})
}

type cancelOrderResponse struct {
	OrderID  int64     `json:"order_id"`
	Restored []itemDTO `json:"restored"`
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "orderID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.orderService.CancelOrder(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cancelOrderResponse{
		OrderID:  result.OrderID,
		Restored: fromItems(result.Restored),
	})
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "orderID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	detail, err := h.orderService.GetOrderDetail(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type listOrdersResponse struct {
	Orders []appOrder.OrderDetail `json:"orders"`
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "accountID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	orders, err := h.orderService.ListOrdersByAccount(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if orders == nil {
		orders = []appOrder.OrderDetail{}
	}
	writeJSON(w, http.StatusOK, listOrdersResponse{Orders: orders})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func pathID(r *http.Request, param string) (int64, error) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", param, raw)
	}
	return id, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if decoder.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
