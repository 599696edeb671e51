package loyalty

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voyalty/internal/model"
)

func TestInitializeAccount_WelcomeBonus(t *testing.T) {
	svc, ledger, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.InitializeAccount(ctx, model.InitializeRequest{UserID: "newbie-7"})
	require.NoError(t, err)
	assert.True(t, res.WelcomeBonusApplied)
	assert.True(t, strings.HasPrefix(res.ReferralCode, "NEWB-"), "code %q", res.ReferralCode)

	acct, err := ledger.GetAccount(ctx, "newbie-7")
	require.NoError(t, err)
	assert.Equal(t, svc.params.WelcomeBonus, acct.Balance)
	assert.Equal(t, res.ReferralCode, acct.ReferralCode)
	ledgerEquivalence(t, ledger, "newbie-7")
}

func TestInitializeAccount_Idempotent(t *testing.T) {
	svc, ledger, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.InitializeAccount(ctx, model.InitializeRequest{UserID: "dupe"})
	require.NoError(t, err)

	second, err := svc.InitializeAccount(ctx, model.InitializeRequest{UserID: "dupe"})
	require.NoError(t, err)
	assert.Equal(t, first.ReferralCode, second.ReferralCode)
	assert.False(t, second.WelcomeBonusApplied, "no double welcome bonus")

	txns, err := ledger.ListTransactions(ctx, "dupe", 0)
	require.NoError(t, err)
	require.Len(t, txns, 1, "exactly one welcome bonus transaction")
	assert.Equal(t, model.KindBonus, txns[0].Kind)
}

func TestInitializeAccount_WelcomeBonusInCreatingWrite(t *testing.T) {
	svc, ledger, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.InitializeAccount(ctx, model.InitializeRequest{UserID: "atom"})
	require.NoError(t, err)

	// The bonus is the opening transaction of the insert itself, so the
	// account version shows a single write and the balance is backed from
	// the first moment.
	acct, err := ledger.GetAccount(ctx, "atom")
	require.NoError(t, err)
	assert.Equal(t, int64(1), acct.Version)
	assert.Equal(t, svc.params.WelcomeBonus, acct.Balance)

	txns, err := ledger.ListTransactions(ctx, "atom", 0)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, model.KindBonus, txns[0].Kind)
	ledgerEquivalence(t, ledger, "atom")
}

func TestInitializeAccount_ReferralLink(t *testing.T) {
	svc, ledger, _ := newTestService(t)
	ctx := context.Background()

	referrer, err := svc.InitializeAccount(ctx, model.InitializeRequest{UserID: "alice"})
	require.NoError(t, err)

	aliceBefore, err := ledger.GetAccount(ctx, "alice")
	require.NoError(t, err)

	res, err := svc.InitializeAccount(ctx, model.InitializeRequest{
		UserID:       "bob",
		ReferralCode: referrer.ReferralCode,
	})
	require.NoError(t, err)
	assert.True(t, res.WelcomeBonusApplied)

	bob, err := ledger.GetAccount(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "alice", bob.ReferredBy)
	assert.Equal(t, svc.params.WelcomeBonus, bob.Balance)

	alice, err := ledger.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, aliceBefore.Balance+svc.params.ReferralBonus, alice.Balance)

	ledgerEquivalence(t, ledger, "alice")
	ledgerEquivalence(t, ledger, "bob")
}

func TestInitializeAccount_UnknownReferrerIgnored(t *testing.T) {
	svc, ledger, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.InitializeAccount(ctx, model.InitializeRequest{
		UserID:       "carol",
		ReferralCode: "NOPE-00000000",
	})
	require.NoError(t, err, "unresolvable referral code is a best-effort no-op")
	assert.True(t, res.WelcomeBonusApplied)

	carol, err := ledger.GetAccount(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, carol.ReferredBy)
}

func TestInitializeAccount_LinksSeededReferrer(t *testing.T) {
	svc, ledger, _ := newTestService(t)
	ctx := context.Background()

	seeded := seedAccount(t, ledger, "other", 0, 0)

	res, err := svc.InitializeAccount(ctx, model.InitializeRequest{
		UserID:       "dave",
		ReferralCode: seeded.ReferralCode,
	})
	require.NoError(t, err)

	dave, err := ledger.GetAccount(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, "other", dave.ReferredBy)
	assert.NotEmpty(t, res.ReferralCode)
}

func TestInitializeAccount_AfterAccrualKeepsBalance(t *testing.T) {
	svc, ledger, _ := newTestService(t)
	ctx := context.Background()

	// Account auto-created by a booking before explicit registration.
	_, err := svc.Accrue(ctx, model.AccrueRequest{UserID: "early", ReservationID: "r1", AmountCents: 5_000})
	require.NoError(t, err)

	res, err := svc.InitializeAccount(ctx, model.InitializeRequest{UserID: "early"})
	require.NoError(t, err)
	assert.False(t, res.WelcomeBonusApplied, "initialization is idempotent over auto-created accounts")

	acct, err := ledger.GetAccount(ctx, "early")
	require.NoError(t, err)
	assert.Equal(t, int64(50), acct.Balance)
}
