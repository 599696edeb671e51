package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"voyalty/internal/loyalty"
	"voyalty/internal/model"
	"voyalty/internal/service"
)

type Handler struct {
	svc service.LoyaltyService
}

func NewHandler(svc service.LoyaltyService) *Handler {
	return &Handler{svc: svc}
}

// Routes mounts the loyalty API.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Route("/loyalty", func(r chi.Router) {
		r.Get("/rewards", h.ListRewards)
		r.Get("/{userID}", h.GetLoyaltyInfo)
		r.Post("/{userID}/redeem", h.Redeem)
		r.Post("/{userID}/accruals", h.Accrue)
		r.Post("/{userID}/register", h.Register)
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handler) GetLoyaltyInfo(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetLoyaltyInfo(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, view)
}

func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.svc.ListRewards(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"rewards": rewards})
}

func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RewardID string `json:"reward_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	result, err := h.svc.Redeem(r.Context(), model.RedeemRequest{
		UserID:   chi.URLParam(r, "userID"),
		RewardID: req.RewardID,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, result)
}

func (h *Handler) Accrue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReservationID string `json:"reservation_id"`
		AmountCents   int64  `json:"amount_cents"`
		Currency      string `json:"currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	result, err := h.svc.Accrue(r.Context(), model.AccrueRequest{
		UserID:        chi.URLParam(r, "userID"),
		ReservationID: req.ReservationID,
		AmountCents:   req.AmountCents,
		Currency:      req.Currency,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReferralCode string `json:"referral_code"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid_json")
			return
		}
	}
	result, err := h.svc.InitializeAccount(r.Context(), model.InitializeRequest{
		UserID:       chi.URLParam(r, "userID"),
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// respondServiceError maps the engine's error taxonomy onto HTTP statuses.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, loyalty.ErrAccountNotFound),
		errors.Is(err, loyalty.ErrRewardNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, loyalty.ErrInsufficientPoints),
		errors.Is(err, loyalty.ErrTierTooLow),
		errors.Is(err, loyalty.ErrRewardNotActive):
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, loyalty.ErrRedemptionLimitReached):
		h.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, loyalty.ErrConcurrencyConflict):
		h.respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, loyalty.ErrInvalidRequest):
		h.respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
