package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	analysisservice "autoshield/internal/analysis"
	analysishandler "autoshield/internal/analysis/handler"
	"autoshield/internal/authority"
	jwttoken "autoshield/internal/jwt_token"
	"autoshield/internal/notification"
	"autoshield/internal/platform/config"
	"autoshield/internal/platform/kafka/producer"
	platformmetrics "autoshield/internal/platform/metrics"
	"autoshield/internal/platform/postgres"
	platformredis "autoshield/internal/platform/redis"
	ratelimitmetrics "autoshield/internal/ratelimit/metrics"
	ratelimitmw "autoshield/internal/ratelimit/middleware"
	ratelimitstore "autoshield/internal/ratelimit/store"
	registryhandler "autoshield/internal/registry/handler"
	registrymetrics "autoshield/internal/registry/metrics"
	"autoshield/internal/registry/service"
	"autoshield/internal/registry/store"
	"autoshield/internal/scoring"
	"autoshield/pkg/domain"
	"autoshield/pkg/platform/httputil"
	"autoshield/pkg/platform/middleware/metadata"
)

type app struct {
	router    http.Handler
	registry  *service.Service
	publisher *notification.Publisher
	db        *sql.DB
	redis     *platformredis.Client
	kafka     *producer.Producer
	logger    *slog.Logger
}

func build(ctx context.Context, cfg config.Server, log *slog.Logger) (*app, error) {
	a := &app{logger: log}

	owner, err := domain.ParseAddress(cfg.AuthorityAddress)
	if err != nil {
		return nil, fmt.Errorf("AUTHORITY_ADDRESS: %w", err)
	}
	if cfg.DevSigningKey() {
		log.Warn("using the development JWT signing key; set JWT_SIGNING_KEY")
	}

	regMetrics := registrymetrics.New()
	recordStore, owners, err := a.buildStore(ctx, cfg, regMetrics)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	auth, err := buildAuthority(ctx, owner, owners)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	if current := auth.Owner(); current != owner {
		log.Warn("registry authority was transferred; AUTHORITY_ADDRESS only seeds an empty database",
			"authority", current.String(),
			"seed", owner.String(),
		)
	} else {
		log.Info("registry authority loaded", "authority", current.String())
	}

	notifyMetrics := notification.NewMetrics()
	bus := notification.NewBus(notifyMetrics)
	sinks := []notification.Sink{bus}
	if len(cfg.Kafka.Brokers) > 0 {
		a.kafka, err = producer.New(producer.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic}, log)
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		if err := a.kafka.EnsureTopic(ctx, 3, 1); err != nil {
			a.close(ctx)
			return nil, err
		}
		sinks = append(sinks, notification.NewKafkaSink(a.kafka))
		log.Info("kafka notifications enabled", "topic", cfg.Kafka.Topic)
	}
	a.publisher = notification.NewPublisher(sinks,
		notification.WithAsyncBuffer(cfg.NotifyBuffer),
		notification.WithLogger(log),
		notification.WithMetrics(notifyMetrics),
	)

	a.registry, err = service.New(auth, recordStore,
		service.WithNotifier(a.publisher),
		service.WithMetrics(regMetrics),
		service.WithLogger(log),
	)
	if err != nil {
		a.close(ctx)
		return nil, err
	}

	httpMetrics := platformmetrics.New()
	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer)

	clientIP, err := metadata.NewResolver(cfg.TrustedProxies)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}

	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", a.handleHealth)

	registryhandler.New(a.registry, bus, jwttoken.NewJWTServiceAdapter(jwtService), log, httpMetrics).
		WithClientIP(clientIP.Middleware).
		Register(r)

	if cfg.ScoringURL != "" {
		scorer := scoring.NewHTTPScorer(cfg.ScoringURL, cfg.ScoringTimeout, scoring.WithLogger(log))
		analysis, err := analysisservice.New(scorer, a.registry, authority.NewCredential(owner), analysisservice.WithLogger(log))
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		limiter := a.buildRateLimiter(cfg, log)
		analysishandler.New(analysis, limiter.RateLimit("analysis"), log, httpMetrics).
			WithClientIP(clientIP.Middleware).
			Register(r)
		log.Info("analysis enabled", "scoring_url", cfg.ScoringURL)
	}

	a.router = r
	return a, nil
}

// buildAuthority shares the owner through Postgres when there is one, so a
// transfer on any instance is seen by all of them.
func buildAuthority(ctx context.Context, seed domain.Address, owners authority.OwnerStore) (*authority.Authority, error) {
	if owners == nil {
		return authority.New(seed)
	}
	return authority.NewShared(ctx, seed, owners)
}

func (a *app) buildStore(ctx context.Context, cfg config.Server, m *registrymetrics.Metrics) (store.Store, authority.OwnerStore, error) {
	var recordStore store.Store = store.NewInMemory()
	var owners authority.OwnerStore
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		a.db = db
		pg := store.NewPostgres(db)
		if err := pg.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		recordStore = pg
		owners = pg
		a.logger.Info("using postgres record store")
	} else {
		a.logger.Warn("DATABASE_URL not set; registry state is in memory only")
	}

	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if rc != nil {
		a.redis = rc
		recordStore = store.NewRedisCache(recordStore, rc.Client, cfg.Redis.CacheTTL,
			store.WithCacheMetrics(m),
			store.WithCacheLogger(a.logger),
		)
		a.logger.Info("redis status cache enabled", "ttl", cfg.Redis.CacheTTL)
	}
	return recordStore, owners, nil
}

func (a *app) buildRateLimiter(cfg config.Server, log *slog.Logger) *ratelimitmw.Middleware {
	m := ratelimitmetrics.New()
	memory := ratelimitstore.NewInMemory()
	if a.redis == nil {
		return ratelimitmw.New(memory, cfg.RateLimit.Requests, cfg.RateLimit.Window, log,
			ratelimitmw.WithMetrics(m),
			ratelimitmw.WithDisabled(cfg.RateLimit.Requests == 0),
		)
	}
	return ratelimitmw.New(ratelimitstore.NewRedis(a.redis.Client), cfg.RateLimit.Requests, cfg.RateLimit.Window, log,
		ratelimitmw.WithFallback(memory),
		ratelimitmw.WithMetrics(m),
		ratelimitmw.WithDisabled(cfg.RateLimit.Requests == 0),
	)
}

type healthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := healthResponse{Status: "ok", Components: map[string]string{}}
	check := func(name string, err error) {
		if err != nil {
			resp.Status = "degraded"
			resp.Components[name] = err.Error()
			a.logger.WarnContext(ctx, "health check failed", "component", name, "error", err)
			return
		}
		resp.Components[name] = "ok"
	}
	if a.db != nil {
		check("postgres", a.db.PingContext(ctx))
	}
	if a.redis != nil {
		check("redis", a.redis.Health(ctx))
	}
	if a.kafka != nil {
		check("kafka", a.kafka.Health(ctx))
	}

	status := http.StatusOK
	// Postgres holds the registry; without it nothing can be served.
	if a.db != nil && resp.Components["postgres"] != "ok" {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}

// close releases resources in reverse dependency order. The publisher drains
// before the Kafka producer it feeds is closed.
func (a *app) close(ctx context.Context) {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.kafka != nil {
		a.kafka.Close(ctx)
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close failed", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("postgres close failed", "error", err)
		}
	}
}
