package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voyalty/internal/model"
	"voyalty/internal/repository"
	"voyalty/internal/tier"
)

func TestExpirySweeper_Sweeps(t *testing.T) {
	ctx := context.Background()
	ledger := repository.NewMemoryLedger()

	now := time.Now()
	require.NoError(t, ledger.CreateAccount(ctx, &model.Account{
		UserID: "u1", Balance: 500, Tier: tier.Bronze, CreatedAt: now, UpdatedAt: now,
	}, nil))
	require.NoError(t, ledger.PutReward(ctx, &model.RewardCatalogEntry{ID: "r1", PointsRequired: 100}))

	acct, err := ledger.GetAccount(ctx, "u1")
	require.NoError(t, err)
	past := now.Add(-time.Hour)
	require.NoError(t, ledger.Redeem(ctx, acct,
		&model.Transaction{ID: "t1", AccountID: "u1", Kind: model.KindRedeemed,
			Points: -100, BalanceBefore: 500, BalanceAfter: 400, CreatedAt: past},
		&model.Redemption{ID: "red1", AccountID: "u1", RewardID: "r1", PointsUsed: 100,
			Code: "RDM-X", Status: model.RedemptionConfirmed,
			ExpiresAt: past, CreatedAt: past}))

	runCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	sweeper := NewExpirySweeper(ledger, 10*time.Millisecond)
	require.NoError(t, sweeper.Start(runCtx))

	reds, err := ledger.ListRedemptions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, reds, 1)
	assert.Equal(t, model.RedemptionExpired, reds[0].Status)
}

func TestNewExpirySweeper_DefaultInterval(t *testing.T) {
	sweeper := NewExpirySweeper(repository.NewMemoryLedger(), 0)
	assert.Equal(t, 5*time.Minute, sweeper.interval)
}
