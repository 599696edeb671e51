package service

import (
	"context"

	"voyalty/internal/model"
)

// LoyaltyService defines the business operations of the loyalty engine.
// All transport layers (HTTP, NATS) depend on this interface, not on the
// concrete engines.
type LoyaltyService interface {
	Accrue(ctx context.Context, req model.AccrueRequest) (*model.AccrualResult, error)
	InitializeAccount(ctx context.Context, req model.InitializeRequest) (*model.InitializeResult, error)
	Redeem(ctx context.Context, req model.RedeemRequest) (*model.RedemptionResult, error)
	GetLoyaltyInfo(ctx context.Context, userID string) (*model.LoyaltyView, error)
	ListRewards(ctx context.Context) ([]model.RewardCatalogEntry, error)
}
