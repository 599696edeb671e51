package loyalty

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"voyalty/internal/model"
	"voyalty/internal/repository"
	"voyalty/internal/tier"
)

type mockBus struct {
	mu     sync.Mutex
	topics []string
}

func (m *mockBus) Publish(topic string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics = append(m.topics, topic)
	return nil
}

func (m *mockBus) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.topics)
}

func newTestService(t *testing.T) (*Service, *repository.MemoryLedger, *mockBus) {
	t.Helper()
	ledger := repository.NewMemoryLedger()
	bus := &mockBus{}
	svc := NewService(ledger, nil, nil, bus, DefaultParams())
	return svc, ledger, bus
}

// seedAccount inserts an account in a given starting state. A nonzero
// balance is backed by an opening transaction, backdated so entries written
// by the operation under test always sort after it, keeping the balance
// equal to the transaction sum from the start.
func seedAccount(t *testing.T, ledger *repository.MemoryLedger, userID string, balance, spendCents int64) *model.Account {
	t.Helper()
	seeded := time.Now().Add(-time.Minute)
	acct := &model.Account{
		UserID:             userID,
		Balance:            balance,
		LifetimeSpendCents: spendCents,
		Tier:               tier.For(spendCents),
		ReferralCode:       referralPrefix(userID) + "-SEED" + userID,
		CreatedAt:          seeded,
		UpdatedAt:          seeded,
	}
	var opening *model.Transaction
	if balance != 0 {
		opening = &model.Transaction{
			ID:            uuid.NewString(),
			AccountID:     userID,
			Kind:          model.KindBonus,
			Points:        balance,
			BalanceBefore: 0,
			BalanceAfter:  balance,
			Description:   "Opening balance",
			CreatedAt:     seeded,
		}
	}
	require.NoError(t, ledger.CreateAccount(context.Background(), acct, opening))
	return acct
}

func seedReward(t *testing.T, ledger *repository.MemoryLedger, reward model.RewardCatalogEntry) {
	t.Helper()
	require.NoError(t, ledger.PutReward(context.Background(), &reward))
}

// ledgerEquivalence asserts that the account balance equals the sum of its
// transaction points.
func ledgerEquivalence(t *testing.T, ledger *repository.MemoryLedger, userID string) {
	t.Helper()
	ctx := context.Background()
	acct, err := ledger.GetAccount(ctx, userID)
	require.NoError(t, err)
	txns, err := ledger.ListTransactions(ctx, userID, 0)
	require.NoError(t, err)
	var sum int64
	for _, txn := range txns {
		require.Equal(t, txn.BalanceAfter, txn.BalanceBefore+txn.Points,
			"transaction %s violates balance arithmetic", txn.ID)
		sum += txn.Points
	}
	require.Equal(t, acct.Balance, sum, "balance diverged from transaction sum for %s", userID)
}
