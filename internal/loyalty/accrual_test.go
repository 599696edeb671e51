package loyalty

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voyalty/internal/model"
	"voyalty/internal/tier"
)

func TestAccrue_SilverMultiplier(t *testing.T) {
	svc, ledger, bus := newTestService(t)
	ctx := context.Background()

	// Silver account (multiplier 1.25) with 1000 points.
	seedAccount(t, ledger, "user-1", 1000, 200_000)

	// $100 booking at 1 point per currency unit.
	res, err := svc.Accrue(ctx, model.AccrueRequest{
		UserID:        "user-1",
		ReservationID: "rsv-42",
		AmountCents:   10_000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(125), res.PointsAwarded, "100 base + 25 bonus")
	assert.Equal(t, int64(1125), res.NewBalance)

	ledgerEquivalence(t, ledger, "user-1")
	assert.Equal(t, 1, bus.count())

	// Most recent first: the earned entry, then the seeded opening balance.
	txns, err := ledger.ListTransactions(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, model.KindEarned, txns[0].Kind)
	assert.Equal(t, "rsv-42", txns[0].ReservationID)
}

func TestAccrue_CreatesAccountOnFirstBooking(t *testing.T) {
	svc, ledger, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Accrue(ctx, model.AccrueRequest{
		UserID:        "fresh",
		ReservationID: "rsv-1",
		AmountCents:   2_500,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(25), res.PointsAwarded)
	assert.Equal(t, tier.Bronze, res.Tier)

	acct, err := ledger.GetAccount(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, int64(25), acct.Balance)
	assert.Equal(t, int64(2_500), acct.LifetimeSpendCents)
}

func TestAccrue_BonusUsesTierBeforeAccrual(t *testing.T) {
	svc, ledger, _ := newTestService(t)
	ctx := context.Background()

	// One cent short of Silver: this accrual crosses the threshold, but the
	// bonus must still use the Bronze multiplier.
	seedAccount(t, ledger, "edge", 0, 199_900)

	res, err := svc.Accrue(ctx, model.AccrueRequest{
		UserID:        "edge",
		ReservationID: "rsv-2",
		AmountCents:   10_000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.PointsAwarded, "no bonus from the tier this spend unlocks")
	assert.Equal(t, tier.Silver, res.Tier, "tier recomputed from updated spend")
}

func TestAccrue_TierMonotonicity(t *testing.T) {
	svc, ledger, _ := newTestService(t)
	ctx := context.Background()

	prev := tier.Bronze
	for i := 0; i < 30; i++ {
		res, err := svc.Accrue(ctx, model.AccrueRequest{
			UserID:        "climber",
			ReservationID: "rsv",
			AmountCents:   50_000,
		})
		require.NoError(t, err)
		require.GreaterOrEqual(t, res.Tier, prev, "tier must never regress")
		prev = res.Tier
	}
	require.Equal(t, tier.Platinum, prev)
	ledgerEquivalence(t, ledger, "climber")
}

func TestAccrue_ConcurrentBookingsSameAccount(t *testing.T) {
	svc, ledger, _ := newTestService(t)
	ctx := context.Background()
	seedAccount(t, ledger, "busy", 0, 0)

	const workers = 4
	const perWorker = 5
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := svc.Accrue(ctx, model.AccrueRequest{
					UserID:        "busy",
					ReservationID: "rsv",
					AmountCents:   1_000,
				})
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err, "no accrual may be dropped")
	}

	acct, err := ledger.GetAccount(ctx, "busy")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker*10), acct.Balance)
	assert.Equal(t, int64(workers*perWorker*1_000), acct.LifetimeSpendCents)
	ledgerEquivalence(t, ledger, "busy")
}

func TestAccrue_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Accrue(ctx, model.AccrueRequest{ReservationID: "r", AmountCents: 100})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.Accrue(ctx, model.AccrueRequest{UserID: "u", ReservationID: "r", AmountCents: -1})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
