package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mvtrinh/sneaker-market/internal/core/domain"
	"github.com/mvtrinh/sneaker-market/internal/core/service"
)

// HTTPHandler exposes the marketplace over REST. Identity arrives via
// headers (see ActorMiddleware); bodies and responses are JSON.
type HTTPHandler struct {
	availability *service.Availability
	reservations *service.ReservationManager
	cart         *service.Cart
	checkout     *service.Checkout
	expiredCart  *service.ExpiredCartArchive
}

func NewHTTPHandler(
	availability *service.Availability,
	reservations *service.ReservationManager,
	cart *service.Cart,
	checkout *service.Checkout,
	expiredCart *service.ExpiredCartArchive,
) *HTTPHandler {
	return &HTTPHandler{
		availability: availability,
		reservations: reservations,
		cart:         cart,
		checkout:     checkout,
		expiredCart:  expiredCart,
	}
}

// Router assembles the chi router with all routes mounted.
func (h *HTTPHandler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/health", h.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(ActorMiddleware)

		r.Route("/reservations", func(r chi.Router) {
			r.Post("/", h.Reserve)
			r.Get("/", h.MyReservations)
			r.Post("/extend", h.ExtendReservation)
			r.Post("/release", h.ReleaseReservation)
			r.Post("/release-all", h.ReleaseAllReservations)
			r.Post("/cleanup", h.CleanupReservations)
		})

		r.Get("/variants/{id}/available-stock", h.AvailableStock)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.CartLines)
			r.Post("/items", h.AddCartLine)
			r.Put("/items/{variantID}", h.UpdateCartLine)
			r.Delete("/items/{variantID}", h.RemoveCartLine)
		})

		r.Post("/checkout", h.Checkout)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.Orders)
			r.Get("/{id}", h.Order)
			r.Put("/{id}/status", h.UpdateOrderStatus)
		})

		r.Route("/expired-cart", func(r chi.Router) {
			r.Post("/save", h.SaveExpiredCart)
			r.Get("/history", h.ExpiredCartHistory)
			r.Post("/reorder-to-cart/{id}", h.ReorderToCart)
			r.Delete("/cleanup", h.CleanupExpiredCart)
		})
	})

	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type reserveRequest struct {
	VariantID       string `json:"variant_id"`
	Quantity        int    `json:"quantity"`
	DurationSeconds int    `json:"duration_seconds"`
}

type reservationResponse struct {
	ID        string    `json:"id"`
	VariantID string    `json:"variant_id"`
	Quantity  int       `json:"quantity"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func toReservationResponse(res *domain.Reservation) reservationResponse {
	return reservationResponse{
		ID:        res.ID,
		VariantID: res.VariantID,
		Quantity:  res.Quantity,
		ExpiresAt: res.ExpiresAt,
		CreatedAt: res.CreatedAt,
	}
}

func (h *HTTPHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.VariantID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "variant_id is required")
		return
	}

	res, err := h.reservations.Reserve(r.Context(), actorFrom(r), req.VariantID, req.Quantity,
		time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReservationResponse(res))
}

type extendRequest struct {
	VariantID    string `json:"variant_id"`
	ExtraSeconds int    `json:"extra_seconds"`
}

func (h *HTTPHandler) ExtendReservation(w http.ResponseWriter, r *http.Request) {
	var req extendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.VariantID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "variant_id is required")
		return
	}

	res, err := h.reservations.Extend(r.Context(), actorFrom(r), req.VariantID,
		time.Duration(req.ExtraSeconds)*time.Second)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponse(res))
}

type releaseRequest struct {
	VariantID string `json:"variant_id"`
}

func (h *HTTPHandler) ReleaseReservation(w http.ResponseWriter, r *http.Request) {
	var req releaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.VariantID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "variant_id is required")
		return
	}

	if err := h.reservations.Release(r.Context(), actorFrom(r), req.VariantID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) ReleaseAllReservations(w http.ResponseWriter, r *http.Request) {
	if err := h.reservations.ReleaseAll(r.Context(), actorFrom(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) MyReservations(w http.ResponseWriter, r *http.Request) {
	list, err := h.reservations.ActiveReservations(r.Context(), actorFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]reservationResponse, 0, len(list))
	for i := range list {
		out = append(out, toReservationResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": out})
}

func (h *HTTPHandler) CleanupReservations(w http.ResponseWriter, r *http.Request) {
	if roleFrom(r) != domain.RoleAdmin {
		writeError(w, http.StatusForbidden, "forbidden", "admin only")
		return
	}

	expired, err := h.reservations.CleanExpired(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"expired": expired})
}

func (h *HTTPHandler) AvailableStock(w http.ResponseWriter, r *http.Request) {
	variantID := chi.URLParam(r, "id")

	available, err := h.availability.AvailableStock(r.Context(), variantID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"variant_id":      variantID,
		"available_stock": available,
	})
}

type cartLineRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

type cartLineResponse struct {
	ID        string    `json:"id"`
	VariantID string    `json:"variant_id"`
	Quantity  int       `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toCartLineResponse(line *domain.CartLine) cartLineResponse {
	return cartLineResponse{
		ID:        line.ID,
		VariantID: line.VariantID,
		Quantity:  line.Quantity,
		UpdatedAt: line.UpdatedAt,
	}
}

func (h *HTTPHandler) AddCartLine(w http.ResponseWriter, r *http.Request) {
	var req cartLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.VariantID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "variant_id is required")
		return
	}

	line, err := h.cart.AddLine(r.Context(), actorFrom(r), req.VariantID, req.Quantity)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCartLineResponse(line))
}

func (h *HTTPHandler) UpdateCartLine(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	line, err := h.cart.UpdateLine(r.Context(), actorFrom(r), chi.URLParam(r, "variantID"), req.Quantity)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartLineResponse(line))
}

func (h *HTTPHandler) RemoveCartLine(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.RemoveLine(r.Context(), actorFrom(r), chi.URLParam(r, "variantID")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) CartLines(w http.ResponseWriter, r *http.Request) {
	lines, err := h.cart.Lines(r.Context(), actorFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]cartLineResponse, 0, len(lines))
	for i := range lines {
		out = append(out, toCartLineResponse(&lines[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

type checkoutRequest struct {
	ShippingAddress string `json:"shipping_address"`
	BillingAddress  string `json:"billing_address"`
	PaymentMethod   string `json:"payment_method"`
}

type orderLineResponse struct {
	ID        string `json:"id"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	OrderNumber     string              `json:"order_number"`
	Status          string              `json:"status"`
	PaymentStatus   string              `json:"payment_status"`
	TotalAmount     string              `json:"total_amount"`
	ShippingAddress string              `json:"shipping_address"`
	BillingAddress  string              `json:"billing_address"`
	PaymentMethod   string              `json:"payment_method"`
	Lines           []orderLineResponse `json:"lines"`
	CreatedAt       time.Time           `json:"created_at"`
}

func toOrderResponse(order *domain.Order) orderResponse {
	out := orderResponse{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		Status:          string(order.Status),
		PaymentStatus:   string(order.PaymentStatus),
		TotalAmount:     order.TotalAmount.StringFixed(2),
		ShippingAddress: order.ShippingAddress,
		BillingAddress:  order.BillingAddress,
		PaymentMethod:   order.PaymentMethod,
		Lines:           make([]orderLineResponse, 0, len(order.Lines)),
		CreatedAt:       order.CreatedAt,
	}
	for _, line := range order.Lines {
		out.Lines = append(out.Lines, orderLineResponse{
			ID:        line.ID,
			VariantID: line.VariantID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.StringFixed(2),
			LineTotal: line.LineTotal.StringFixed(2),
		})
	}
	return out
}

func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	order, err := h.checkout.Checkout(r.Context(), actorFrom(r), service.CheckoutRequest{
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *HTTPHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	order, err := h.checkout.UpdateStatus(r.Context(), actorFrom(r), roleFrom(r),
		chi.URLParam(r, "id"), domain.OrderStatus(req.Status))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *HTTPHandler) Order(w http.ResponseWriter, r *http.Request) {
	order, err := h.checkout.Order(r.Context(), actorFrom(r), roleFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *HTTPHandler) Orders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.checkout.Orders(r.Context(), actorFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]orderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderResponse(&orders[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": out})
}

type expiredCartSaveRequest struct {
	Items []struct {
		VariantID string `json:"variant_id"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
}

type expiredRecordResponse struct {
	ID        string    `json:"id"`
	VariantID string    `json:"variant_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
	CreatedAt time.Time `json:"created_at"`
}

func toExpiredRecordResponse(rec *domain.ExpiredCartRecord) expiredRecordResponse {
	return expiredRecordResponse{
		ID:        rec.ID,
		VariantID: rec.VariantID,
		Quantity:  rec.Quantity,
		UnitPrice: rec.UnitPrice.StringFixed(2),
		CreatedAt: rec.CreatedAt,
	}
}

func (h *HTTPHandler) SaveExpiredCart(w http.ResponseWriter, r *http.Request) {
	var req expiredCartSaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "items are required")
		return
	}

	items := make([]service.ArchiveItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.ArchiveItem{VariantID: item.VariantID, Quantity: item.Quantity})
	}

	records, err := h.expiredCart.Archive(r.Context(), actorFrom(r), items)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]expiredRecordResponse, 0, len(records))
	for i := range records {
		out = append(out, toExpiredRecordResponse(&records[i]))
	}
	writeJSON(w, http.StatusCreated, map[string]any{"records": out})
}

func (h *HTTPHandler) ExpiredCartHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.expiredCart.History(r.Context(), actorFrom(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]expiredRecordResponse, 0, len(records))
	for i := range records {
		out = append(out, toExpiredRecordResponse(&records[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": out})
}

func (h *HTTPHandler) ReorderToCart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
			return
		}
	}

	line, err := h.expiredCart.Reorder(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartLineResponse(line))
}

func (h *HTTPHandler) CleanupExpiredCart(w http.ResponseWriter, r *http.Request) {
	if roleFrom(r) != domain.RoleAdmin {
		writeError(w, http.StatusForbidden, "forbidden", "admin only")
		return
	}

	days, err := strconv.Atoi(r.URL.Query().Get("daysOld"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "daysOld must be an integer")
		return
	}

	purged, err := h.expiredCart.PurgeOlderThan(r.Context(), days)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"purged": purged})
}
