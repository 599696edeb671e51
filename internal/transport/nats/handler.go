package nats

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"voyalty/internal/model"
	"voyalty/internal/repository"
	"voyalty/internal/service"
)

const (
	topicBookingCompleted  = "bookings.completed"
	topicAccountRegistered = "accounts.registered"
	queueGroup             = "loyalty"
)

// Handler subscribes to the facts pushed by the booking and auth
// collaborators and delegates to the loyalty service.
type Handler struct {
	svc  service.LoyaltyService
	nc   *nats.Conn
	subs []*nats.Subscription
}

func NewHandler(svc service.LoyaltyService, nc *nats.Conn) *Handler {
	return &Handler{svc: svc, nc: nc}
}

// Start subscribes to the fact topics and blocks until ctx is cancelled
// (graceful shutdown).
func (h *Handler) Start(ctx context.Context) error {
	s1, err := h.nc.QueueSubscribe(topicBookingCompleted, queueGroup, func(m *nats.Msg) {
		var event repository.BookingCompletedEvent
		if err := json.Unmarshal(m.Data, &event); err != nil {
			slog.Error("nats: failed to unmarshal booking fact", "error", err)
			return
		}
		result, err := h.svc.Accrue(ctx, model.AccrueRequest{
			UserID:        event.UserID,
			ReservationID: event.ReservationID,
			AmountCents:   event.AmountCents,
			Currency:      event.Currency,
		})
		if err != nil {
			slog.Error("nats: accrual failed", "error", err,
				"user_id", event.UserID, "reservation_id", event.ReservationID)
			return
		}
		slog.Info("nats: accrual processed",
			"user_id", event.UserID, "points", result.PointsAwarded, "tier", result.Tier)
	})
	if err != nil {
		return err
	}
	h.subs = append(h.subs, s1)

	s2, err := h.nc.QueueSubscribe(topicAccountRegistered, queueGroup, func(m *nats.Msg) {
		var event repository.AccountRegisteredEvent
		if err := json.Unmarshal(m.Data, &event); err != nil {
			slog.Error("nats: failed to unmarshal registration fact", "error", err)
			return
		}
		if _, err := h.svc.InitializeAccount(ctx, model.InitializeRequest{
			UserID:       event.UserID,
			ReferralCode: event.ReferralCode,
		}); err != nil {
			slog.Error("nats: account initialization failed", "error", err, "user_id", event.UserID)
		}
	})
	if err != nil {
		return err
	}
	h.subs = append(h.subs, s2)

	slog.Info("NATS fact handler is running")

	// Block until context is cancelled.
	<-ctx.Done()
	slog.Info("NATS fact handler shutting down, draining subscriptions...")

	for _, s := range h.subs {
		_ = s.Drain()
	}
	return nil
}

func (h *Handler) Stop(ctx context.Context) error {
	for _, s := range h.subs {
		_ = s.Unsubscribe()
	}
	return nil
}
