package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voyalty/internal/loyalty"
	"voyalty/internal/model"
)

type mockService struct {
	accrueErr error
	redeemErr error
	infoErr   error

	lastRedeem model.RedeemRequest
	lastInit   model.InitializeRequest
}

func (m *mockService) Accrue(ctx context.Context, req model.AccrueRequest) (*model.AccrualResult, error) {
	if m.accrueErr != nil {
		return nil, m.accrueErr
	}
	return &model.AccrualResult{PointsAwarded: req.AmountCents / 100, NewBalance: 100}, nil
}

func (m *mockService) InitializeAccount(ctx context.Context, req model.InitializeRequest) (*model.InitializeResult, error) {
	m.lastInit = req
	return &model.InitializeResult{ReferralCode: "USER-1234", WelcomeBonusApplied: true}, nil
}

func (m *mockService) Redeem(ctx context.Context, req model.RedeemRequest) (*model.RedemptionResult, error) {
	m.lastRedeem = req
	if m.redeemErr != nil {
		return nil, m.redeemErr
	}
	return &model.RedemptionResult{
		RedemptionCode: "RDM-CAFE-BABE",
		NewBalance:     600,
		ExpiresAt:      time.Now().Add(24 * time.Hour),
	}, nil
}

func (m *mockService) GetLoyaltyInfo(ctx context.Context, userID string) (*model.LoyaltyView, error) {
	if m.infoErr != nil {
		return nil, m.infoErr
	}
	return &model.LoyaltyView{Account: model.Account{UserID: userID, Balance: 42}}, nil
}

func (m *mockService) ListRewards(ctx context.Context) ([]model.RewardCatalogEntry, error) {
	return []model.RewardCatalogEntry{{ID: "r1", PointsRequired: 100}}, nil
}

func newTestRouter(svc *mockService) http.Handler {
	r := chi.NewRouter()
	NewHandler(svc).Routes(r)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetLoyaltyInfo_OK(t *testing.T) {
	router := newTestRouter(&mockService{})
	rec := doRequest(t, router, http.MethodGet, "/loyalty/user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view model.LoyaltyView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "user-1", view.Account.UserID)
	assert.Equal(t, int64(42), view.Account.Balance)
}

func TestGetLoyaltyInfo_NotFound(t *testing.T) {
	router := newTestRouter(&mockService{infoErr: loyalty.ErrAccountNotFound})
	rec := doRequest(t, router, http.MethodGet, "/loyalty/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRedeem_Created(t *testing.T) {
	svc := &mockService{}
	router := newTestRouter(svc)
	rec := doRequest(t, router, http.MethodPost, "/loyalty/user-1/redeem", `{"reward_id":"free-night"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, "user-1", svc.lastRedeem.UserID)
	assert.Equal(t, "free-night", svc.lastRedeem.RewardID)

	var res model.RedemptionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "RDM-CAFE-BABE", res.RedemptionCode)
}

func TestRedeem_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{loyalty.ErrRewardNotFound, http.StatusNotFound},
		{loyalty.ErrRewardNotActive, http.StatusUnprocessableEntity},
		{loyalty.ErrInsufficientPoints, http.StatusUnprocessableEntity},
		{loyalty.ErrTierTooLow, http.StatusUnprocessableEntity},
		{loyalty.ErrRedemptionLimitReached, http.StatusConflict},
		{loyalty.ErrConcurrencyConflict, http.StatusServiceUnavailable},
		{loyalty.ErrInvalidRequest, http.StatusBadRequest},
	}
	for _, c := range cases {
		router := newTestRouter(&mockService{redeemErr: c.err})
		rec := doRequest(t, router, http.MethodPost, "/loyalty/u/redeem", `{"reward_id":"x"}`)
		assert.Equal(t, c.want, rec.Code, "error %v", c.err)
	}
}

func TestRedeem_BadJSON(t *testing.T) {
	router := newTestRouter(&mockService{})
	rec := doRequest(t, router, http.MethodPost, "/loyalty/u/redeem", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccrue_OK(t *testing.T) {
	router := newTestRouter(&mockService{})
	rec := doRequest(t, router, http.MethodPost, "/loyalty/user-1/accruals",
		`{"reservation_id":"rsv-1","amount_cents":10000}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res model.AccrualResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, int64(100), res.PointsAwarded)
}

func TestRegister_PassesReferralCode(t *testing.T) {
	svc := &mockService{}
	router := newTestRouter(svc)
	rec := doRequest(t, router, http.MethodPost, "/loyalty/new-user/register",
		`{"referral_code":"ALIC-1234"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "new-user", svc.lastInit.UserID)
	assert.Equal(t, "ALIC-1234", svc.lastInit.ReferralCode)
}

func TestListRewards_OK(t *testing.T) {
	router := newTestRouter(&mockService{})
	rec := doRequest(t, router, http.MethodGet, "/loyalty/rewards", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"r1"`)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&mockService{})
	rec := doRequest(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
