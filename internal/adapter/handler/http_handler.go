package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rl1809/liora-bloom/internal/core/domain"
	"github.com/rl1809/liora-bloom/internal/core/service"
)

const relatedProducts = 4

type HTTPOptions struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	SecureCookies  bool
}

type HTTPHandler struct {
	visitors   *service.Visitors
	catalog    *service.CatalogService
	account    *service.AccountService
	backOffice *service.BackOfficeService
	metrics    *Metrics
	log        *zap.Logger
	opts       HTTPOptions
	now        func() time.Time
}

func NewHTTPHandler(
	visitors *service.Visitors,
	catalog *service.CatalogService,
	account *service.AccountService,
	backOffice *service.BackOfficeService,
	metrics *Metrics,
	log *zap.Logger,
	opts HTTPOptions,
) *HTTPHandler {
	return &HTTPHandler{
		visitors:   visitors,
		catalog:    catalog,
		account:    account,
		backOffice: backOffice,
		metrics:    metrics,
		log:        log,
		opts:       opts,
		now:        time.Now,
	}
}

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(h.metrics.instrument)

	r.Get("/health", h.HealthCheck)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if h.opts.RequestTimeout > 0 {
			r.Use(middleware.Timeout(h.opts.RequestTimeout))
		}
		r.Use(h.limitBody)
		r.Use(h.withVisitor)

		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)
		r.Get("/addons", h.ListAddOns)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddToCart)
			r.Delete("/items/{lineID}", h.RemoveFromCart)
			r.Put("/open", h.SetCartOpen)
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", h.Signup)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.Get("/session", h.Session)
		})

		r.Get("/checkout", h.CheckoutEntry)
		r.Post("/checkout", h.Checkout)

		r.Route("/account", func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Get("/orders", h.MyOrders)
			r.Get("/profile", h.MyProfile)
			r.Put("/profile", h.UpdateMyProfile)
			r.Get("/reviews", h.MyReviews)
			r.Post("/reviews", h.AddReview)
			r.Delete("/reviews/{id}", h.DeleteReview)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requirePrivileged)
			h.adminRoutes(r)
		})
	})

	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Catalog

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter := domain.ProductFilter{
		Category:    strings.TrimSpace(r.URL.Query().Get("category")),
		PopularOnly: r.URL.Query().Get("popular") == "true",
	}
	products, err := h.catalog.ListProducts(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toProductDTOs(products))
}

type productDetailResponse struct {
	Product ProductDTO   `json:"product"`
	Related []ProductDTO `json:"related"`
	AddOns  []AddOnDTO   `json:"addons"`
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	related, err := h.catalog.Related(r.Context(), product, relatedProducts)
	if err != nil {
		h.log.Warn("related products lookup failed", zap.String("product_id", product.ID), zap.Error(err))
		related = nil
	}

	respondJSON(w, http.StatusOK, productDetailResponse{
		Product: toProductDTO(product),
		Related: toProductDTOs(related),
		AddOns:  toAddOnDTOs(h.catalog.AddOns()),
	})
}

func (h *HTTPHandler) ListAddOns(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, toAddOnDTOs(h.catalog.AddOns()))
}

// Cart

type addToCartRequest struct {
	ProductID string   `json:"product_id"`
	AddOnIDs  []string `json:"addon_ids"`
}

type addToCartResponse struct {
	Item LineItemDTO `json:"item"`
	Cart CartDTO     `json:"cart"`
}

type cartOpenRequest struct {
	Open bool `json:"open"`
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, toCartDTO(visitorFrom(r.Context()).Cart.Snapshot()))
}

func (h *HTTPHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  "product_id is required",
			Code:   "validation_failed",
			Fields: []string{"product_id"},
		})
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	addons, err := h.catalog.ResolveAddOns(req.AddOnIDs)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	cart := visitorFrom(r.Context()).Cart
	item, err := cart.AddItem(r.Context(), product, addons)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.metrics.CartMutations.WithLabelValues("add").Inc()

	respondJSON(w, http.StatusCreated, addToCartResponse{
		Item: toLineItemDTO(item),
		Cart: toCartDTO(cart.Snapshot()),
	})
}

func (h *HTTPHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	cart := visitorFrom(r.Context()).Cart
	if err := cart.RemoveItem(r.Context(), chi.URLParam(r, "lineID")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.metrics.CartMutations.WithLabelValues("remove").Inc()
	respondJSON(w, http.StatusOK, toCartDTO(cart.Snapshot()))
}

func (h *HTTPHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	cart := visitorFrom(r.Context()).Cart
	if err := cart.Clear(r.Context()); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.metrics.CartMutations.WithLabelValues("clear").Inc()
	respondJSON(w, http.StatusOK, toCartDTO(cart.Snapshot()))
}

func (h *HTTPHandler) SetCartOpen(w http.ResponseWriter, r *http.Request) {
	var req cartOpenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cart := visitorFrom(r.Context()).Cart
	cart.SetOpen(req.Open)
	respondJSON(w, http.StatusOK, toCartDTO(cart.Snapshot()))
}

// Auth

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupResponse struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

func (h *HTTPHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var in service.SignupInput
	if !decodeJSON(w, r, &in) {
		return
	}

	user, err := visitorFrom(r.Context()).Gate.Signup(r.Context(), in)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, signupResponse{
		UserID:  user.ID,
		Email:   user.Email,
		Message: "account created, please sign in",
	})
}

func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	gate := visitorFrom(r.Context()).Gate
	if _, err := gate.Login(r.Context(), req.Email, req.Password); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toSessionDTO(gate))
}

func (h *HTTPHandler) Logout(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	if err := v.Gate.Logout(r.Context()); err != nil {
		// local state is already gone, the shopper is signed out either way
		h.log.Warn("logout incomplete", zap.String("device_id", v.DeviceID), zap.Error(err))
	}
	respondJSON(w, http.StatusOK, toSessionDTO(v.Gate))
}

func (h *HTTPHandler) Session(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, toSessionDTO(visitorFrom(r.Context()).Gate))
}

// Checkout

type checkoutEntryResponse struct {
	Decision string  `json:"decision"`
	Cart     CartDTO `json:"cart"`
}

func (h *HTTPHandler) CheckoutEntry(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	respondJSON(w, http.StatusOK, checkoutEntryResponse{
		Decision: string(v.Gate.CheckoutEntry()),
		Cart:     toCartDTO(v.Cart.Snapshot()),
	})
}

func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	if v.Cart.Len() == 0 {
		h.metrics.SubmitFailures.WithLabelValues("empty_cart").Inc()
		h.respondServiceError(w, r, service.ErrEmptyCart)
		return
	}

	var form service.ShippingForm
	if !decodeJSON(w, r, &form) {
		return
	}

	receipt, err := v.Checkout.Submit(r.Context(), form, v.Owner())
	if err != nil {
		h.metrics.SubmitFailures.WithLabelValues(submitFailureReason(err)).Inc()
		h.respondServiceError(w, r, err)
		return
	}
	h.metrics.OrdersPlaced.Inc()

	respondJSON(w, http.StatusCreated, toReceiptDTO(receipt))
}

func submitFailureReason(err error) string {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return "validation"
	case errors.Is(err, service.ErrSubmissionInFlight):
		return "in_flight"
	case errors.Is(err, service.ErrEmptyCart):
		return "empty_cart"
	default:
		return "backend"
	}
}

// Account

func (h *HTTPHandler) MyOrders(w http.ResponseWriter, r *http.Request) {
	owner, ok := signedIn(w, r)
	if !ok {
		return
	}
	orders, err := h.account.Orders(r.Context(), owner.ID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderDTOs(orders))
}

func (h *HTTPHandler) MyProfile(w http.ResponseWriter, r *http.Request) {
	owner, ok := signedIn(w, r)
	if !ok {
		return
	}
	profile, err := h.account.Profile(r.Context(), owner.ID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toProfileDTO(profile))
}

func (h *HTTPHandler) UpdateMyProfile(w http.ResponseWriter, r *http.Request) {
	var in service.ProfileInput
	if !decodeJSON(w, r, &in) {
		return
	}

	owner, ok := signedIn(w, r)
	if !ok {
		return
	}
	if err := h.account.UpdateProfile(r.Context(), owner.ID, in); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	profile, err := h.account.Profile(r.Context(), owner.ID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toProfileDTO(profile))
}

func (h *HTTPHandler) MyReviews(w http.ResponseWriter, r *http.Request) {
	owner, ok := signedIn(w, r)
	if !ok {
		return
	}
	reviews, err := h.account.Reviews(r.Context(), owner.ID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toReviewDTOs(reviews))
}

func (h *HTTPHandler) AddReview(w http.ResponseWriter, r *http.Request) {
	var in service.ReviewInput
	if !decodeJSON(w, r, &in) {
		return
	}

	owner, ok := signedIn(w, r)
	if !ok {
		return
	}
	review, err := h.account.AddReview(r.Context(), owner.ID, in)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toReviewDTO(review))
}

func (h *HTTPHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	owner, ok := signedIn(w, r)
	if !ok {
		return
	}
	if err := h.account.DeleteReview(r.Context(), owner.ID, chi.URLParam(r, "id")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
