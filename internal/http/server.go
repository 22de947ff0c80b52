package http

import (
	"context"
	"log"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/perkhub/loyalty-gateway/internal/config"
	"github.com/perkhub/loyalty-gateway/internal/event"
	"github.com/perkhub/loyalty-gateway/internal/http/middleware"
	"github.com/perkhub/loyalty-gateway/internal/idempotency"
	"github.com/perkhub/loyalty-gateway/internal/metrics"
	"github.com/perkhub/loyalty-gateway/internal/repository"
	"github.com/perkhub/loyalty-gateway/internal/service/loyalty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client, stream event.Stream, zlog *zap.Logger) *Server {
	// repos (MySQL)
	apiKeysRepo := repository.NewAPIKeysRepository(mysqlDB)
	customersRepo := repository.NewCustomersRepository(mysqlDB)
	transactionsRepo := repository.NewTransactionsRepository(mysqlDB)
	rewardsRepo := repository.NewRewardsRepository(mysqlDB)
	redemptionsRepo := repository.NewRedemptionsRepository(mysqlDB)
	webhooksRepo := repository.NewWebhooksRepository(mysqlDB)
	deliveriesRepo := repository.NewDeliveriesRepository(mysqlDB)
	idemRepo := repository.NewIdempotencyRepository(mysqlDB)

	// repos (ClickHouse)
	archiveRepo := repository.NewEventArchiveRepository(clickhouseDB)

	// event fan-out + domain service
	dispatcher := event.NewDispatcher(webhooksRepo, deliveriesRepo, stream, zlog)
	svc := loyalty.New(mysqlDB, customersRepo, transactionsRepo, rewardsRepo, redemptionsRepo, dispatcher)

	idemStore := idempotency.NewStore(idemRepo, cfg.Idempotency.TTL, zlog)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	authMW := middleware.APIKeyMiddleware(apiKeysRepo)
	rlMW := middleware.NewLimiter(middleware.LimiterOpts{
		Redis:      rds,
		DefaultRPS: cfg.RateLimit.RPS,
	}).Middleware()
	idemMW := middleware.IdempotencyMiddleware(idemStore)

	// routes
	v1 := e.Group("/v1", authMW, rlMW)

	v1.POST("/customers", upsertCustomerHandler(svc), idemMW)
	v1.GET("/customers/:id", getCustomerHandler(svc))

	v1.POST("/transactions", createTransactionHandler(svc), idemMW)
	v1.PATCH("/transactions/:id", updateTransactionHandler(svc), idemMW)
	v1.DELETE("/transactions/:id", deleteTransactionHandler(svc), idemMW)

	v1.POST("/redemptions", createRedemptionHandler(svc), idemMW)
	v1.DELETE("/redemptions/:id", deleteRedemptionHandler(svc), idemMW)

	v1.POST("/rewards", createRewardHandler(rewardsRepo))
	v1.GET("/rewards", listRewardsHandler(rewardsRepo))
	v1.DELETE("/rewards/:id", deleteRewardHandler(rewardsRepo))

	v1.POST("/webhooks", registerWebhookHandler(webhooksRepo))
	v1.GET("/webhooks", listWebhooksHandler(webhooksRepo))
	v1.DELETE("/webhooks/:id", deleteWebhookHandler(webhooksRepo))

	v1.GET("/reports/events", listEventsHandler(archiveRepo))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	log.Printf("http: listening on %s", addr)
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
