// Package loyalty implements the points ledger engines: accrual of points
// from completed bookings, referral-driven bonuses, redemption of points
// against the reward catalog, and the composed read view.
package loyalty

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"voyalty/internal/model"
	"voyalty/internal/repository"
)

// conflictRetries bounds the optimistic read-modify-write cycles before an
// operation surfaces ErrConcurrencyConflict.
const conflictRetries = 5

// RewardSource serves reward catalog reads. Satisfied by the ledger itself
// and by repository.CatalogCache; cached reads are fine here because every
// cap decision is re-made inside the ledger's atomic redeem.
type RewardSource interface {
	GetReward(ctx context.Context, rewardID string) (*model.RewardCatalogEntry, error)
	ListRewards(ctx context.Context) ([]model.RewardCatalogEntry, error)
}

// CatalogInvalidator drops cached reward state after a counter moves.
type CatalogInvalidator interface {
	Invalidate(ctx context.Context, rewardID string)
}

// Service composes the accrual, referral, redemption and query engines over
// a single ledger.
type Service struct {
	ledger     repository.Ledger
	rewards    RewardSource
	invalidate CatalogInvalidator
	bus        repository.MessageBus
	params     Params

	now func() time.Time
}

// NewService wires the engines. rewards may be nil to read the catalog
// straight from the ledger; bus and invalidator may be nil.
func NewService(ledger repository.Ledger, rewards RewardSource, inv CatalogInvalidator, bus repository.MessageBus, params Params) *Service {
	if rewards == nil {
		rewards = ledger
	}
	if params.HistoryLimit <= 0 {
		params.HistoryLimit = DefaultParams().HistoryLimit
	}
	if params.RedemptionTTL <= 0 {
		params.RedemptionTTL = DefaultParams().RedemptionTTL
	}
	return &Service{
		ledger:     ledger,
		rewards:    rewards,
		invalidate: inv,
		bus:        bus,
		params:     params,
		now:        time.Now,
	}
}

// withConflictRetry runs op, retrying the whole read-modify-write cycle with
// backoff while the conditional write keeps losing. Exhaustion maps to
// ErrConcurrencyConflict.
func (s *Service) withConflictRetry(ctx context.Context, op func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(conflictRetries, retry.NewFibonacci(2*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := op(ctx); err != nil {
			if errors.Is(err, repository.ErrVersionConflict) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if errors.Is(err, repository.ErrVersionConflict) {
		return ErrConcurrencyConflict
	}
	return err
}

// publish emits the transaction event for committed ledger writes. Publish
// failures are logged, never propagated: the ledger is the source of truth.
func (s *Service) publish(txn *model.Transaction, redemptionID string) {
	if s.bus == nil {
		return
	}
	event := repository.TransactionEvent{
		AccountID:     txn.AccountID,
		Kind:          txn.Kind,
		Points:        txn.Points,
		BalanceAfter:  txn.BalanceAfter,
		Description:   txn.Description,
		ReservationID: txn.ReservationID,
		RedemptionID:  redemptionID,
		CreatedAt:     txn.CreatedAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.bus.Publish(repository.TopicTransactions, data); err != nil {
		slog.Error("failed to publish transaction event",
			"account_id", txn.AccountID, "kind", txn.Kind, "error", err)
	}
}
