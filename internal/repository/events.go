package repository

import (
	"time"

	"voyalty/internal/model"
)

// TopicTransactions carries one event per committed ledger entry.
const TopicTransactions = "loyalty.transactions"

// TransactionEvent is published after every balance-affecting write.
type TransactionEvent struct {
	AccountID     string                `json:"account_id"`
	Kind          model.TransactionKind `json:"kind"`
	Points        int64                 `json:"points"`
	BalanceAfter  int64                 `json:"balance_after"`
	Description   string                `json:"description"`
	ReservationID string                `json:"reservation_id,omitempty"`
	RedemptionID  string                `json:"redemption_id,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}

// BookingCompletedEvent is the fact consumed from the booking collaborator.
type BookingCompletedEvent struct {
	UserID        string `json:"user_id"`
	ReservationID string `json:"reservation_id"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency,omitempty"`
}

// AccountRegisteredEvent is the fact consumed from the auth collaborator.
type AccountRegisteredEvent struct {
	UserID       string `json:"user_id"`
	ReferralCode string `json:"referral_code,omitempty"`
}
