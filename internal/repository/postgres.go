package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"voyalty/internal/model"
	"voyalty/internal/tier"
)

// PostgresLedger implements Ledger on top of pgx. Conditional updates use a
// version column on loyalty_accounts and a guarded counter increment on
// reward_catalog; the multi-write operations run inside a single database
// transaction.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

const accountColumns = `user_id, balance, lifetime_spend_cents, tier,
	COALESCE(referral_code, ''), COALESCE(referred_by, ''), version, created_at, updated_at`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var acct model.Account
	var tierName string
	err := row.Scan(&acct.UserID, &acct.Balance, &acct.LifetimeSpendCents, &tierName,
		&acct.ReferralCode, &acct.ReferredBy, &acct.Version, &acct.CreatedAt, &acct.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	acct.Tier = tier.Parse(tierName)
	return &acct, nil
}

func (r *PostgresLedger) GetAccount(ctx context.Context, userID string) (*model.Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM loyalty_accounts WHERE user_id = $1`, userID)
	return scanAccount(row)
}

func (r *PostgresLedger) GetAccountByReferralCode(ctx context.Context, code string) (*model.Account, error) {
	if code == "" {
		return nil, ErrAccountNotFound
	}
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM loyalty_accounts WHERE referral_code = $1`, code)
	return scanAccount(row)
}

func (r *PostgresLedger) CreateAccount(ctx context.Context, acct *model.Account, opening *model.Transaction) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO loyalty_accounts
			(user_id, balance, lifetime_spend_cents, tier, referral_code, referred_by, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), 1, $7, $7)`,
		acct.UserID, acct.Balance, acct.LifetimeSpendCents, acct.Tier.String(),
		acct.ReferralCode, acct.ReferredBy, acct.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "loyalty_accounts_pkey") {
			return ErrAccountExists
		}
		if isUniqueViolation(err, "loyalty_accounts_referral_code_key") {
			return ErrDuplicateCode
		}
		return fmt.Errorf("insert account: %w", err)
	}
	if opening != nil {
		if err := insertTransaction(ctx, tx, opening); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	acct.Version = 1
	return nil
}

func (r *PostgresLedger) ApplyTransaction(ctx context.Context, acct *model.Account, txn *model.Transaction) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE loyalty_accounts
		 SET balance = $2, lifetime_spend_cents = $3, tier = $4,
		     referral_code = NULLIF($5, ''), referred_by = NULLIF($6, ''),
		     version = version + 1, updated_at = $7
		 WHERE user_id = $1 AND version = $8`,
		acct.UserID, acct.Balance, acct.LifetimeSpendCents, acct.Tier.String(),
		acct.ReferralCode, acct.ReferredBy, txn.CreatedAt, acct.Version)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}

	if err := insertTransaction(ctx, tx, txn); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	acct.Version++
	return nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, txn *model.Transaction) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO loyalty_transactions
			(id, account_id, kind, points, balance_before, balance_after, description, reservation_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)`,
		txn.ID, txn.AccountID, string(txn.Kind), txn.Points, txn.BalanceBefore,
		txn.BalanceAfter, txn.Description, txn.ReservationID, txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *PostgresLedger) ListTransactions(ctx context.Context, accountID string, limit int) ([]model.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, account_id, kind, points, balance_before, balance_after,
		        description, COALESCE(reservation_id, ''), created_at
		 FROM loyalty_transactions
		 WHERE account_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT NULLIF($2, 0)`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		var t model.Transaction
		var kind string
		if err := rows.Scan(&t.ID, &t.AccountID, &kind, &t.Points, &t.BalanceBefore,
			&t.BalanceAfter, &t.Description, &t.ReservationID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Kind = model.TransactionKind(kind)
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanReward(row pgx.Row) (*model.RewardCatalogEntry, error) {
	var rw model.RewardCatalogEntry
	var minTier string
	err := row.Scan(&rw.ID, &rw.Title, &rw.PointsRequired, &minTier,
		&rw.MaxRedemptions, &rw.CurrentRedemptions, &rw.ValidFrom, &rw.ValidUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRewardNotFound
		}
		return nil, fmt.Errorf("scan reward: %w", err)
	}
	rw.MinTier = tier.Parse(minTier)
	return &rw, nil
}

const rewardColumns = `id, title, points_required, min_tier, max_redemptions,
	current_redemptions, valid_from, valid_until`

func (r *PostgresLedger) GetReward(ctx context.Context, rewardID string) (*model.RewardCatalogEntry, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+rewardColumns+` FROM reward_catalog WHERE id = $1`, rewardID)
	return scanReward(row)
}

func (r *PostgresLedger) ListRewards(ctx context.Context) ([]model.RewardCatalogEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+rewardColumns+` FROM reward_catalog ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query rewards: %w", err)
	}
	defer rows.Close()

	var out []model.RewardCatalogEntry
	for rows.Next() {
		rw, err := scanReward(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rw)
	}
	return out, rows.Err()
}

func (r *PostgresLedger) PutReward(ctx context.Context, reward *model.RewardCatalogEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO reward_catalog
			(id, title, points_required, min_tier, max_redemptions, current_redemptions, valid_from, valid_until)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			points_required = EXCLUDED.points_required,
			min_tier = EXCLUDED.min_tier,
			max_redemptions = EXCLUDED.max_redemptions,
			valid_from = EXCLUDED.valid_from,
			valid_until = EXCLUDED.valid_until`,
		reward.ID, reward.Title, reward.PointsRequired, reward.MinTier.String(),
		reward.MaxRedemptions, reward.CurrentRedemptions, reward.ValidFrom, reward.ValidUntil)
	if err != nil {
		return fmt.Errorf("upsert reward: %w", err)
	}
	return nil
}

func (r *PostgresLedger) Redeem(ctx context.Context, acct *model.Account, txn *model.Transaction, red *model.Redemption) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// Guarded counter increment: the cap condition is re-evaluated inside
	// the UPDATE so two redeemers racing for the last unit cannot both
	// succeed.
	tag, err := tx.Exec(ctx,
		`UPDATE reward_catalog
		 SET current_redemptions = current_redemptions + 1
		 WHERE id = $1 AND (max_redemptions = 0 OR current_redemptions < max_redemptions)`,
		red.RewardID)
	if err != nil {
		return fmt.Errorf("increment redemptions: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM reward_catalog WHERE id = $1)`, red.RewardID).Scan(&exists); err != nil {
			return fmt.Errorf("check reward: %w", err)
		}
		if !exists {
			return ErrRewardNotFound
		}
		return ErrRedemptionCapReached
	}

	// Guarded balance decrement. The version match implies the balance the
	// caller validated is still current; the balance predicate is belt on
	// top of that guard.
	tag, err = tx.Exec(ctx,
		`UPDATE loyalty_accounts
		 SET balance = balance - $2, version = version + 1, updated_at = $3
		 WHERE user_id = $1 AND version = $4 AND balance >= $2`,
		acct.UserID, red.PointsUsed, txn.CreatedAt, acct.Version)
	if err != nil {
		return fmt.Errorf("debit account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}

	if err := insertTransaction(ctx, tx, txn); err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO redemptions
			(id, account_id, reward_id, points_used, code, status, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		red.ID, red.AccountID, red.RewardID, red.PointsUsed, red.Code,
		string(red.Status), red.ExpiresAt, red.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "redemptions_code_key") {
			return ErrDuplicateCode
		}
		return fmt.Errorf("insert redemption: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	acct.Balance -= red.PointsUsed
	acct.Version++
	return nil
}

func (r *PostgresLedger) ListRedemptions(ctx context.Context, accountID string) ([]model.Redemption, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, account_id, reward_id, points_used, code, status, expires_at, created_at
		 FROM redemptions
		 WHERE account_id = $1
		 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query redemptions: %w", err)
	}
	defer rows.Close()

	var out []model.Redemption
	for rows.Next() {
		var red model.Redemption
		var status string
		if err := rows.Scan(&red.ID, &red.AccountID, &red.RewardID, &red.PointsUsed,
			&red.Code, &status, &red.ExpiresAt, &red.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		red.Status = model.RedemptionStatus(status)
		out = append(out, red)
	}
	return out, rows.Err()
}

func (r *PostgresLedger) ExpireRedemptions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE redemptions SET status = 'expired'
		 WHERE status = 'confirmed' AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("expire redemptions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresLedger) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM loyalty_accounts WHERE referral_code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check referral code: %w", err)
	}
	return exists, nil
}

func (r *PostgresLedger) RedemptionCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM redemptions WHERE code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check redemption code: %w", err)
	}
	return exists, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return constraint == "" || pgErr.ConstraintName == constraint
	}
	return false
}
