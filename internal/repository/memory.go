package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"voyalty/internal/model"
)

// MemoryLedger is an in-process Ledger with the same conditional-update
// semantics as the Postgres implementation. It backs the test suite and
// lightweight local runs; all methods are safe for concurrent use.
type MemoryLedger struct {
	mu           sync.Mutex
	accounts     map[string]model.Account
	transactions map[string][]model.Transaction
	rewards      map[string]model.RewardCatalogEntry
	redemptions  map[string]model.Redemption
}

// NewMemoryLedger returns an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		accounts:     make(map[string]model.Account),
		transactions: make(map[string][]model.Transaction),
		rewards:      make(map[string]model.RewardCatalogEntry),
		redemptions:  make(map[string]model.Redemption),
	}
}

func (m *MemoryLedger) GetAccount(ctx context.Context, userID string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[userID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &acct, nil
}

func (m *MemoryLedger) GetAccountByReferralCode(ctx context.Context, code string) (*model.Account, error) {
	if code == "" {
		return nil, ErrAccountNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acct := range m.accounts {
		if acct.ReferralCode == code {
			a := acct
			return &a, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (m *MemoryLedger) CreateAccount(ctx context.Context, acct *model.Account, opening *model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[acct.UserID]; ok {
		return ErrAccountExists
	}
	if acct.ReferralCode != "" {
		for _, other := range m.accounts {
			if other.ReferralCode == acct.ReferralCode {
				return ErrDuplicateCode
			}
		}
	}
	acct.Version = 1
	m.accounts[acct.UserID] = *acct
	if opening != nil {
		m.transactions[opening.AccountID] = append(m.transactions[opening.AccountID], *opening)
	}
	return nil
}

func (m *MemoryLedger) ApplyTransaction(ctx context.Context, acct *model.Account, txn *model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.accounts[acct.UserID]
	if !ok {
		return ErrAccountNotFound
	}
	if stored.Version != acct.Version {
		return ErrVersionConflict
	}
	acct.Version++
	acct.UpdatedAt = txn.CreatedAt
	m.accounts[acct.UserID] = *acct
	m.transactions[txn.AccountID] = append(m.transactions[txn.AccountID], *txn)
	return nil
}

func (m *MemoryLedger) ListTransactions(ctx context.Context, accountID string, limit int) ([]model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.transactions[accountID]
	out := make([]model.Transaction, len(all))
	copy(out, all)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryLedger) GetReward(ctx context.Context, rewardID string) (*model.RewardCatalogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rewards[rewardID]
	if !ok {
		return nil, ErrRewardNotFound
	}
	return &r, nil
}

func (m *MemoryLedger) ListRewards(ctx context.Context) ([]model.RewardCatalogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.RewardCatalogEntry, 0, len(m.rewards))
	for _, r := range m.rewards {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryLedger) PutReward(ctx context.Context, reward *model.RewardCatalogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rewards[reward.ID] = *reward
	return nil
}

func (m *MemoryLedger) Redeem(ctx context.Context, acct *model.Account, txn *model.Transaction, red *model.Redemption) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	reward, ok := m.rewards[red.RewardID]
	if !ok {
		return ErrRewardNotFound
	}
	// Cap guard re-evaluated at write time: the concurrency-critical step.
	if reward.MaxRedemptions > 0 && reward.CurrentRedemptions >= reward.MaxRedemptions {
		return ErrRedemptionCapReached
	}

	stored, ok := m.accounts[acct.UserID]
	if !ok {
		return ErrAccountNotFound
	}
	if stored.Version != acct.Version || stored.Balance < red.PointsUsed {
		return ErrVersionConflict
	}
	for _, existing := range m.redemptions {
		if existing.Code == red.Code {
			return ErrDuplicateCode
		}
	}

	reward.CurrentRedemptions++
	m.rewards[red.RewardID] = reward

	stored.Balance -= red.PointsUsed
	stored.Version++
	stored.UpdatedAt = txn.CreatedAt
	m.accounts[acct.UserID] = stored
	acct.Balance = stored.Balance
	acct.Version = stored.Version

	m.transactions[txn.AccountID] = append(m.transactions[txn.AccountID], *txn)
	m.redemptions[red.ID] = *red
	return nil
}

func (m *MemoryLedger) ListRedemptions(ctx context.Context, accountID string) ([]model.Redemption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Redemption
	for _, r := range m.redemptions {
		if r.AccountID == accountID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryLedger) ExpireRedemptions(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.redemptions {
		if r.Status == model.RedemptionConfirmed && !now.Before(r.ExpiresAt) {
			r.Status = model.RedemptionExpired
			m.redemptions[id] = r
			n++
		}
	}
	return n, nil
}

func (m *MemoryLedger) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acct := range m.accounts {
		if acct.ReferralCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryLedger) RedemptionCodeExists(ctx context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.redemptions {
		if r.Code == code {
			return true, nil
		}
	}
	return false, nil
}
