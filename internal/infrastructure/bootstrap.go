package infrastructure

import (
	"context"
	"time"

	"voyalty/internal/config"
	"voyalty/internal/loyalty"
	"voyalty/internal/repository"
	transportHTTP "voyalty/internal/transport/http"
	transportNATS "voyalty/internal/transport/nats"
	"voyalty/internal/worker"
)

// Bootstrap initialises all dependencies from config and wires up the
// application. Returns the App, a cleanup function, or an error.
func Bootstrap(ctx context.Context) (*App, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}

	db, err := connectPostgres(cfg.DSN())
	if err != nil {
		return nil, nil, err
	}

	rdb, err := connectRedis(cfg.RedisAddr())
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	var cleanupFns []func()
	cleanupFns = append(cleanupFns, func() {
		db.Close()
		_ = rdb.Close()
	})

	nc, err := connectNats(cfg.NatsAddr())
	if err != nil {
		return nil, runCleanup(cleanupFns), err
	}
	cleanupFns = append(cleanupFns, nc.Close)

	ledger := repository.NewPostgresLedger(db)
	catalog := repository.NewCatalogCache(rdb, ledger, 30*time.Second)
	bus := transportNATS.NewBus(nc)

	svc := loyalty.NewService(ledger, catalog, catalog, bus, loyalty.Params{
		PointsPerUnit: int64(cfg.PointsPerUnit),
		WelcomeBonus:  int64(cfg.WelcomeBonus),
		ReferralBonus: int64(cfg.ReferralBonus),
		RedemptionTTL: cfg.RedemptionTTL(),
		HistoryLimit:  cfg.HistoryLimit,
	})

	var servers []Server

	// Facts arrive over NATS regardless of the HTTP surface.
	servers = append(servers, transportNATS.NewHandler(svc, nc))

	if addr, apiErr := cfg.ApiAddr(); apiErr == nil {
		servers = append(servers, transportHTTP.NewServer(addr, svc))
	}

	if cfg.SweepEnabled == "true" {
		servers = append(servers, worker.NewExpirySweeper(ledger, cfg.SweepInterval))
	}

	return NewApp(servers), runCleanup(cleanupFns), nil
}

// runCleanup returns a single function that calls all cleanup functions in
// reverse order.
func runCleanup(fns []func()) func() {
	return func() {
		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
	}
}
