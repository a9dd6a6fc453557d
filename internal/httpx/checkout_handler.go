package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/redisx"
	"github.com/vladislavdragonenkov/checkout/internal/service/checkout"
	"github.com/vladislavdragonenkov/checkout/internal/service/pricing"
	"github.com/vladislavdragonenkov/checkout/internal/service/sweeper"
	"github.com/vladislavdragonenkov/checkout/internal/service/webhook"
)

// maxWebhookBody ограничивает размер тела webhook-запроса.
const maxWebhookBody = 1 << 20

// CheckoutHandler обслуживает HTTP-поверхность конвейера оформления заказов.
type CheckoutHandler struct {
	Orchestrator checkout.Orchestrator
	Pricer       *pricing.Pricer
	Reconciler   *webhook.Reconciler
	Verifier     *webhook.Verifier
	Sweeper      *sweeper.Worker
	Orders       domain.OrderRepository
	Timeline     domain.TimelineRepository
	Redis        *redis.Client // опциональный кэш статусов
	Logger       *log.Entry
}

// Register вешает маршруты на роутер.
func (h *CheckoutHandler) Register(r *chi.Mux) {
	r.Post("/api/checkout", h.createCheckout)
	r.Post("/api/coupons/preview", h.previewCart)
	r.Post("/api/webhooks/payment", h.paymentWebhook)
	r.Post("/api/orders/{id}/cancel", h.cancelOrder)
	r.Get("/api/orders/{number}", h.getOrder)
	r.Post("/api/reservations/sweep", h.sweepReservations)
}

func (h *CheckoutHandler) logger() *log.Entry {
	if h.Logger != nil {
		return h.Logger
	}
	return log.WithField("component", "http")
}

type addressPayload struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (a addressPayload) toDomain() domain.Address {
	return domain.Address{
		Name:       a.Name,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		Region:     a.Region,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

type itemPayload struct {
	VariantID string `json:"variant_id"`
	Qty       int32  `json:"qty"`
}

type checkoutRequest struct {
	Email           string         `json:"email"`
	Currency        string         `json:"currency"`
	Items           []itemPayload  `json:"items"`
	CouponCode      string         `json:"coupon_code,omitempty"`
	ShippingMinor   int64          `json:"shipping_cents"`
	ShippingAddress addressPayload `json:"shipping_address"`
	BillingAddress  addressPayload `json:"billing_address"`
}

type checkoutResponse struct {
	OrderID          string `json:"order_id"`
	OrderNumber      string `json:"order_number"`
	Status           string `json:"status"`
	SubtotalMinor    int64  `json:"subtotal_cents"`
	ShippingMinor    int64  `json:"shipping_cents"`
	DiscountMinor    int64  `json:"discount_cents"`
	TotalMinor       int64  `json:"total_cents"`
	Currency         string `json:"currency"`
	PaymentSessionID string `json:"payment_session_id"`
	RedirectURL      string `json:"payment_redirect_url"`
}

func toItemRequests(items []itemPayload) []pricing.ItemRequest {
	out := make([]pricing.ItemRequest, 0, len(items))
	for _, it := range items {
		out = append(out, pricing.ItemRequest{VariantID: it.VariantID, Qty: it.Qty})
	}
	return out
}

func (h *CheckoutHandler) createCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json", err))
		return
	}

	result, err := h.Orchestrator.Checkout(checkout.Request{
		CustomerEmail:   req.Email,
		Currency:        req.Currency,
		Items:           toItemRequests(req.Items),
		CouponCode:      req.CouponCode,
		ShippingMinor:   req.ShippingMinor,
		ShippingAddress: req.ShippingAddress.toDomain(),
		BillingAddress:  req.BillingAddress.toDomain(),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	order := result.Order
	h.cacheStatus(r, order.Number, order.Status)
	writeJSON(w, http.StatusCreated, checkoutResponse{
		OrderID:          order.ID,
		OrderNumber:      order.Number,
		Status:           string(order.Status),
		SubtotalMinor:    order.SubtotalMinor,
		ShippingMinor:    order.ShippingMinor,
		DiscountMinor:    order.DiscountMinor,
		TotalMinor:       order.TotalMinor,
		Currency:         order.Currency,
		PaymentSessionID: order.PaymentSessionID,
		RedirectURL:      result.RedirectURL,
	})
}

type previewRequest struct {
	Currency      string        `json:"currency"`
	Items         []itemPayload `json:"items"`
	CouponCode    string        `json:"coupon_code,omitempty"`
	ShippingMinor int64         `json:"shipping_cents"`
}

type previewItem struct {
	VariantID  string `json:"variant_id"`
	Name       string `json:"name"`
	Qty        int32  `json:"qty"`
	PriceMinor int64  `json:"price_cents"`
}

type previewResponse struct {
	SubtotalMinor int64         `json:"subtotal_cents"`
	ShippingMinor int64         `json:"shipping_cents"`
	DiscountMinor int64         `json:"discount_cents"`
	TotalMinor    int64         `json:"total_cents"`
	Currency      string        `json:"currency"`
	CouponCode    string        `json:"coupon_code,omitempty"`
	Items         []previewItem `json:"items"`
}

// previewCart рассчитывает корзину без создания заказа и без резервирования.
func (h *CheckoutHandler) previewCart(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json", err))
		return
	}

	quote, err := h.Pricer.Price(pricing.Request{
		Items:         toItemRequests(req.Items),
		CouponCode:    req.CouponCode,
		ShippingMinor: req.ShippingMinor,
		Currency:      req.Currency,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := previewResponse{
		SubtotalMinor: quote.SubtotalMinor,
		ShippingMinor: quote.ShippingMinor,
		DiscountMinor: quote.DiscountMinor,
		TotalMinor:    quote.TotalMinor,
		Currency:      quote.Currency,
		Items:         make([]previewItem, 0, len(quote.Items)),
	}
	if quote.Coupon != nil {
		resp.CouponCode = quote.Coupon.Code
	}
	for _, item := range quote.Items {
		resp.Items = append(resp.Items, previewItem{
			VariantID:  item.VariantID,
			Name:       item.Name,
			Qty:        item.Qty,
			PriceMinor: item.PriceMinor,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// paymentWebhook принимает события платёжного провайдера.
// Любой разобранный исход подтверждается 200: провайдер повторяет
// доставку только при не-2xx ответах.
func (h *CheckoutHandler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("unreadable body", err))
		return
	}

	if err := h.Verifier.Verify(body, r.Header.Get(webhook.SignatureHeader)); err != nil {
		h.logger().Warn("webhook signature rejected")
		writeJSON(w, http.StatusUnauthorized, errorBody("invalid signature", err))
		return
	}

	result, err := h.Reconciler.Process(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("malformed event", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": string(result)})
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

type cancelResponse struct {
	Success              bool `json:"success"`
	ReservationsReleased int  `json:"reservations_released"`
}

func (h *CheckoutHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("missing id", nil))
		return
	}

	var req cancelRequest
	if r.Body != nil {
		// Тело опционально: отмена без причины тоже валидна.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	released, err := h.Orchestrator.Cancel(orderID, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if order, err := h.Orders.Get(orderID); err == nil {
		h.cacheStatus(r, order.Number, order.Status)
	}
	writeJSON(w, http.StatusOK, cancelResponse{Success: true, ReservationsReleased: released})
}

type orderResponse struct {
	OrderID       string          `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	Status        string          `json:"status"`
	SubtotalMinor int64           `json:"subtotal_cents"`
	ShippingMinor int64           `json:"shipping_cents"`
	DiscountMinor int64           `json:"discount_cents"`
	TotalMinor    int64           `json:"total_cents"`
	Currency      string          `json:"currency"`
	Items         []previewItem   `json:"items"`
	Timeline      []timelineEntry `json:"timeline,omitempty"`
}

type timelineEntry struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred_at"`
}

// getOrder возвращает заказ по номеру. Email обязателен и обязан совпадать:
// номер заказа ходит во внешних системах и не является секретом.
func (h *CheckoutHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	email := r.URL.Query().Get("email")
	if number == "" || email == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("number and email are required", nil))
		return
	}

	order, err := h.Orders.GetByNumber(number)
	if err != nil || order.CustomerEmail != email {
		// Несовпадение email неотличимо от отсутствия заказа.
		writeJSON(w, http.StatusNotFound, errorBody("order not found", nil))
		return
	}

	resp := orderResponse{
		OrderID:       order.ID,
		OrderNumber:   order.Number,
		Status:        string(order.Status),
		SubtotalMinor: order.SubtotalMinor,
		ShippingMinor: order.ShippingMinor,
		DiscountMinor: order.DiscountMinor,
		TotalMinor:    order.TotalMinor,
		Currency:      order.Currency,
		Items:         make([]previewItem, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, previewItem{
			VariantID:  item.VariantID,
			Name:       item.Name,
			Qty:        item.Qty,
			PriceMinor: item.PriceMinor,
		})
	}
	if h.Timeline != nil {
		if events, err := h.Timeline.List(order.ID); err == nil {
			for _, evt := range events {
				resp.Timeline = append(resp.Timeline, timelineEntry{
					Type:     evt.Type,
					Reason:   evt.Reason,
					Occurred: evt.Occurred,
				})
			}
		}
	}

	h.cacheStatus(r, order.Number, order.Status)
	writeJSON(w, http.StatusOK, resp)
}

type sweepResponse struct {
	ReleasedCount int       `json:"released_count"`
	Timestamp     time.Time `json:"timestamp"`
}

// sweepReservations запускает внеплановый проход sweeper-а. Служебная ручка.
func (h *CheckoutHandler) sweepReservations(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	swept, err := h.Sweeper.SweepOnce(now)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse{ReleasedCount: swept, Timestamp: now})
}

// cacheStatus обновляет кэш статуса заказа, если Redis подключён.
func (h *CheckoutHandler) cacheStatus(r *http.Request, number string, status domain.OrderStatus) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, number)
	payload := fmt.Sprintf(`{"status":%q}`, status)
	if err := h.Redis.Set(r.Context(), key, payload, redisx.TTLStatusCache).Err(); err != nil {
		h.logger().WithError(err).Debug("status cache update failed")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func isValidationError(err error) bool {
	for _, target := range []error{
		domain.ErrEmailRequired, domain.ErrCurrencyRequired, domain.ErrItemsRequired,
		domain.ErrItemQtyInvalid, domain.ErrItemPriceInvalid, domain.ErrShippingNegative,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func errorBody(message string, err error) map[string]string {
	body := map[string]string{"error": message}
	if err != nil {
		body["detail"] = err.Error()
	}
	return body
}

// writeError переводит доменные ошибки в HTTP-статусы.
func (h *CheckoutHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("order not found", err))
	case errors.Is(err, domain.ErrCouponExhausted):
		writeJSON(w, http.StatusConflict, errorBody("coupon exhausted", err))
	case errors.Is(err, domain.ErrOrderAlreadyPaid):
		writeJSON(w, http.StatusConflict, errorBody("order already settled", err))
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request", err))
	case domain.IsCouponRejection(err):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("coupon rejected", err))
	case domain.IsPricingError(err):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("cart rejected", err))
	case errors.Is(err, domain.ErrPaymentProvider):
		writeJSON(w, http.StatusBadGateway, errorBody("payment provider unavailable", err))
	default:
		h.logger().WithError(err).Error("internal error")
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error", nil))
	}
}
