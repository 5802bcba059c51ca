package handler

import (
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rl1809/liora-bloom/internal/core/domain"
	"github.com/rl1809/liora-bloom/internal/core/service"
)

const imageFormField = "image"

func (h *HTTPHandler) adminRoutes(r chi.Router) {
	r.Get("/dashboard", h.Dashboard)

	r.Get("/orders", h.AdminOrders)
	r.Patch("/orders/{id}/status", h.UpdateOrderStatus)

	r.Post("/products", h.CreateProduct)
	r.Put("/products/{id}", h.UpdateProduct)
	r.Delete("/products/{id}", h.DeleteProduct)
	r.Post("/products/{id}/image", h.UploadProductImage)

	r.Get("/promotions", h.ListPromotions)
	r.Post("/promotions", h.CreatePromotion)
	r.Put("/promotions/{id}", h.UpdatePromotion)
	r.Delete("/promotions/{id}", h.DeletePromotion)

	r.Get("/customers", h.ListCustomers)
	r.Put("/customers/{id}", h.UpdateCustomer)
	r.Delete("/customers/{id}", h.DeleteCustomer)

	r.Get("/staff", h.ListStaff)
	r.Put("/staff/{id}/role", h.SetRole)
	r.Delete("/staff/{id}/role", h.Demote)
}

func (h *HTTPHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.backOffice.Dashboard(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, DashboardDTO{
		Orders:        stats.Orders,
		PendingOrders: stats.PendingOrders,
		Revenue:       stats.Revenue,
		Customers:     stats.Customers,
	})
}

// Orders

type orderStatusRequest struct {
	Status string `json:"status"`
}

func (h *HTTPHandler) AdminOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.backOffice.ListOrders(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toOrderDTOs(orders))
}

func (h *HTTPHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req orderStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	next, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  err.Error(),
			Code:   "validation_failed",
			Fields: []string{"status"},
		})
		return
	}

	order, err := h.backOffice.UpdateOrderStatus(r.Context(), chi.URLParam(r, "id"), next)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.metrics.OrderTransitions.WithLabelValues(string(order.Status)).Inc()
	respondJSON(w, http.StatusOK, toOrderDTO(order))
}

// Products

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var in service.ProductInput
	if !decodeJSON(w, r, &in) {
		return
	}
	product, err := h.backOffice.CreateProduct(r.Context(), in)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toProductDTO(product))
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var in service.ProductInput
	if !decodeJSON(w, r, &in) {
		return
	}
	product, err := h.backOffice.UpdateProduct(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toProductDTO(product))
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.backOffice.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) UploadProductImage(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile(imageFormField)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "image file is required",
			Code:    "invalid_request",
			Details: err.Error(),
		})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	product, err := h.backOffice.UploadImage(r.Context(), chi.URLParam(r, "id"), path.Base(header.Filename), contentType, file)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.log.Info("product image uploaded",
		zap.String("product_id", product.ID),
		zap.Int64("size", header.Size),
	)
	respondJSON(w, http.StatusOK, toProductDTO(product))
}

// Promotions

func (h *HTTPHandler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	promos, err := h.backOffice.ListPromotions(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	now := h.now()
	out := make([]PromotionDTO, 0, len(promos))
	for _, p := range promos {
		out = append(out, toPromotionDTO(p, now))
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) CreatePromotion(w http.ResponseWriter, r *http.Request) {
	var in service.PromotionInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.ID = ""
	h.savePromotion(w, r, in, http.StatusCreated)
}

func (h *HTTPHandler) UpdatePromotion(w http.ResponseWriter, r *http.Request) {
	var in service.PromotionInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.ID = chi.URLParam(r, "id")
	h.savePromotion(w, r, in, http.StatusOK)
}

func (h *HTTPHandler) savePromotion(w http.ResponseWriter, r *http.Request, in service.PromotionInput, status int) {
	promo, err := h.backOffice.SavePromotion(r.Context(), in)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, status, toPromotionDTO(promo, h.now()))
}

func (h *HTTPHandler) DeletePromotion(w http.ResponseWriter, r *http.Request) {
	if err := h.backOffice.DeletePromotion(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// People

type roleRequest struct {
	Role string `json:"role"`
}

func (h *HTTPHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.backOffice.Customers(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toProfileDTOs(customers))
}

func (h *HTTPHandler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var in service.ProfileInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if err := h.backOffice.UpdateCustomer(r.Context(), chi.URLParam(r, "id"), in); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.backOffice.DeleteCustomer(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) ListStaff(w http.ResponseWriter, r *http.Request) {
	staff, err := h.backOffice.Staff(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toProfileDTOs(staff))
}

func (h *HTTPHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.backOffice.SetRole(r.Context(), chi.URLParam(r, "id"), domain.Role(req.Role)); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) Demote(w http.ResponseWriter, r *http.Request) {
	if err := h.backOffice.Demote(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
