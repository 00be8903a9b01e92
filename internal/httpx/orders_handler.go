package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/optilens/fulfillment/internal/kafka"
	"github.com/optilens/fulfillment/internal/ledger"
	"github.com/optilens/fulfillment/internal/orders"
	"github.com/optilens/fulfillment/internal/redisx"
)

type Publishers struct {
	OrderCreated   *kafkax.Producer
	OrderCancelled *kafkax.Producer
	StockReserved  *kafkax.Producer
	StockRejected  *kafkax.Producer
	Audit          *kafkax.Producer
}

type OrdersHandler struct {
	Repo    *orders.Repo
	Pub     Publishers
	Redis   *redis.Client
	Log     *zap.Logger
	Service string
}

type CreateOrderReq struct {
	ExternalID string             `json:"external_id"`
	UserID     string             `json:"user_id"`
	Items      []orders.ItemInput `json:"order_items"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Patch("/orders/{id}/status", h.updateStatus)
	r.Delete("/orders/{id}", h.deleteOrder)
	r.Get("/products", h.listInventory)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// statusFor maps the error taxonomy onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, orders.ErrOrderNotFound), errors.Is(err, ledger.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrValidation), errors.Is(err, ledger.ErrInsufficientStock):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrConcurrencyConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func actor(r *http.Request) string {
	if a := r.Header.Get("X-Actor"); a != "" {
		return a
	}
	return "anonymous"
}

func (h *OrdersHandler) publish(p *kafkax.Producer, eventType, correlationID, trace string, payload any) {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       trace,
		CorrelationID: correlationID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(orders.PartitionKey(correlationID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// audit emits the best-effort audit record; the async producer means a
// broker outage never fails the mutation being audited.
func (h *OrdersHandler) audit(r *http.Request, action, table, recordID string, oldV, newV any) {
	rec := orders.AuditRecordPayload{
		Actor:    actor(r),
		Action:   action,
		Table:    table,
		RecordID: recordID,
	}
	if oldV != nil {
		rec.OldValues = kafkax.MustMarshal(oldV)
	}
	if newV != nil {
		rec.NewValues = kafkax.MustMarshal(newV)
	}
	h.publish(h.Pub.Audit, orders.EventAuditRecord, recordID, r.Header.Get("X-Request-Id"), rec)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ExternalID == "" || req.UserID == "" || len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	trace := r.Header.Get("X-Request-Id")

	o, existed, err := h.Repo.CreateOrderTx(ctx, req.ExternalID, req.UserID, req.Items)
	if err != nil {
		var short *ledger.InsufficientStockError
		if errors.As(err, &short) {
			h.publish(h.Pub.StockRejected, orders.EventStockRejected, req.ExternalID, trace,
				orders.StockRejectedPayload{
					Reason: "OUT_OF_STOCK",
					Details: []orders.StockRejectedDetail{{
						ProductID: short.ProductID,
						Required:  short.Requested,
						Available: short.Available,
					}},
				})
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":      "insufficient stock",
				"product_id": short.ProductID,
				"required":   short.Requested,
				"available":  short.Available,
			})
			return
		}
		code := statusFor(err)
		if code == http.StatusInternalServerError {
			h.Log.Error("order creation failed", zap.String("external_id", req.ExternalID), zap.Error(err))
		}
		writeError(w, code, err.Error())
		return
	}

	// idempotency shortcut + status cache
	idemKey := fmt.Sprintf(redisx.KeyIdemOrderCreate, req.ExternalID)
	_ = h.Redis.Set(ctx, idemKey, o.ID, redisx.TTLIdempotency).Err()
	h.cacheOrder(ctx, o)

	if !existed {
		items := make([]orders.ItemQty, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, orders.ItemQty{ProductID: it.ProductID, Qty: it.Qty})
		}
		h.publish(h.Pub.OrderCreated, orders.EventOrderCreated, o.ID, trace, orders.OrderCreatedPayload{
			OrderID:     o.ID,
			OrderNumber: o.OrderNumber,
			ExternalID:  o.ExternalID,
			UserID:      o.UserID,
			Items:       req.Items,
			TotalCents:  o.TotalCents,
		})
		h.publish(h.Pub.StockReserved, orders.EventStockReserved, o.ID, trace,
			orders.StockReservedPayload{OrderID: o.ID, Items: items})
		h.audit(r, "create", "orders", o.ID, nil, o)
	}

	code := http.StatusCreated
	if existed {
		code = http.StatusOK
	}
	writeJSON(w, code, o)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// cache first
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	o, err := h.Repo.GetOrder(ctx, orderID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.cacheOrder(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	var upd orders.StatusUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	trace := r.Header.Get("X-Request-Id")

	before, err := h.Repo.GetOrder(ctx, orderID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	o, report, err := h.Repo.UpdateStatus(ctx, orderID, upd)
	if err != nil {
		code := statusFor(err)
		if code == http.StatusInternalServerError {
			h.Log.Error("status update failed", zap.String("order_id", orderID), zap.Error(err))
		}
		writeError(w, code, err.Error())
		return
	}

	h.cacheOrder(ctx, o)
	if o.Status == orders.StatusCancelled && report != nil {
		h.publish(h.Pub.OrderCancelled, orders.EventOrderCancelled, o.ID, trace, orders.OrderCancelledPayload{
			OrderID:          o.ID,
			Reversed:         report.Reversed,
			SkippedInventory: report.SkippedInventory,
			SkippedTrays:     report.SkippedTrays,
		})
	}
	h.audit(r, "update", "orders", o.ID, before, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	before, err := h.Repo.GetOrder(ctx, orderID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	if _, err := h.Repo.DeleteOrder(ctx, orderID); err != nil {
		code := statusFor(err)
		if code == http.StatusInternalServerError {
			h.Log.Error("order deletion failed", zap.String("order_id", orderID), zap.Error(err))
		}
		writeError(w, code, err.Error())
		return
	}

	_ = h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Err()
	h.audit(r, "delete", "orders", orderID, before, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrdersHandler) listInventory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Repo.ListInventory(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *OrdersHandler) cacheOrder(ctx context.Context, o orders.Order) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	_ = h.Redis.Set(ctx, key, kafkax.MustMarshal(o), redisx.TTLStatusCache).Err()
}
