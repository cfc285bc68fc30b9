package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"orders/internal/clients"
	"orders/internal/config"
	"orders/internal/handlers"
	"orders/internal/metrics"
	"orders/internal/middleware"
	"orders/internal/models"
	"orders/internal/repositories"
	"orders/internal/services"
	applog "orders/pkg/logger"
	"orders/pkg/rabbitmq"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load(viper.New())
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zlog, err := applog.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("service stopped", zap.Error(err))
	}
}

func run(cfg config.Config, zlog *zap.Logger) error {
	// --- Initialize Repositories ---
	orderRepo, closeDB, err := openOrderRepository(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	// --- Initialize RabbitMQ Client ---
	mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, HandlerTimeout: cfg.HandlerTimeout}, zlog.Named("rabbitmq"))
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ client: %w", err)
	}
	defer func() {
		if err := mqClient.Close(); err != nil {
			zlog.Warn("error closing RabbitMQ client", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// --- Initialize Clients and Services ---
	var catalog clients.ProductValidator
	switch cfg.CatalogDriver {
	case config.CatalogMemory:
		catalog = seedCatalog(zlog)
	default:
		catalog = clients.NewCatalogClient(mqClient, cfg.ProductsQueue, cfg.RPCTimeout, m)
	}
	payments := clients.NewPaymentClient(mqClient, cfg.PaymentsQueue, cfg.RPCTimeout, m)
	orderService := services.NewOrderService(orderRepo, catalog, payments, cfg.PaymentCurrency, zlog.Named("orders"), m)

	// --- Initialize Handlers ---
	orderHandler := handlers.NewOrderHandler(orderService, zlog.Named("http"))
	rpcHandler := handlers.NewRPCHandler(orderService, zlog.Named("rpc"))
	paymentHandler := handlers.NewPaymentEventHandler(orderService, zlog.Named("payments"))

	// --- Start RabbitMQ Consumers ---
	for _, queue := range []string{cfg.OrdersQueue, cfg.PaymentEventsQueue} {
		if err := mqClient.DeclareQueue(queue); err != nil {
			return err
		}
	}
	if err := mqClient.Serve(cfg.OrdersQueue, rpcHandler.Handle, rpcHandler.EncodeError); err != nil {
		return err
	}
	if err := mqClient.Consume(cfg.PaymentEventsQueue, paymentHandler.Handle); err != nil {
		return err
	}
	zlog.Info("consumers started",
		zap.String("rpc_queue", cfg.OrdersQueue),
		zap.String("events_queue", cfg.PaymentEventsQueue))

	app := newApp(orderHandler, m, cfg.JWTSecret, mqClient.Healthy, zlog)

	// --- Start HTTP Server ---
	listenErr := make(chan error, 1)
	go func() {
		zlog.Info("starting server", zap.String("port", cfg.AppPort))
		listenErr <- app.Listen(cfg.AppPort)
	}()

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		zlog.Info("shutting down server", zap.String("signal", sig.String()))
	case err := <-listenErr:
		return fmt.Errorf("server failed: %w", err)
	case <-mqClient.Done():
		// Consumers are gone; exit so the process is restarted with a fresh connection.
		zlog.Error("message transport down, shutting down", zap.Error(mqClient.Healthy()))
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zlog.Warn("error during Fiber shutdown", zap.Error(err))
		}
		return mqClient.Healthy()
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		zlog.Warn("error during Fiber shutdown", zap.Error(err))
	}
	zlog.Info("server gracefully stopped")
	return nil
}

// newApp builds the HTTP gateway. The order routes require a bearer token
// when secret is set; /health reports the result of healthy.
func newApp(orderHandler *handlers.OrderHandler, m *metrics.Metrics, secret string, healthy func() error, zlog *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	// --- Middleware ---
	app.Use(logger.New())

	// --- Health Check Endpoint ---
	app.Get("/health", func(c *fiber.Ctx) error {
		if err := healthy(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unhealthy",
				"error":  err.Error(),
				"time":   time.Now().Format(time.RFC3339),
			})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	// --- API Routes ---
	apiV1 := app.Group("/api/v1")
	if secret != "" {
		apiV1.Use(middleware.AuthRequired(secret, zlog.Named("auth")))
	} else {
		zlog.Warn("JWT_SECRET not set, HTTP API is unauthenticated")
	}
	orderHandler.RegisterRoutes(apiV1)
	return app
}

// openOrderRepository opens the order store for the configured driver and
// returns a function releasing it.
func openOrderRepository(cfg config.Config) (repositories.OrderRepository, func(), error) {
	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case config.DriverMemory:
		return repositories.NewMemoryOrderRepository(), func() {}, nil
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DatabaseDSN)
	default:
		dialector = postgres.Open(cfg.DatabaseDSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := repositories.Migrate(db); err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	return repositories.NewGORMOrderRepository(db), func() { _ = sqlDB.Close() }, nil
}

// seedCatalog builds the in-memory product catalog used for local runs.
func seedCatalog(zlog *zap.Logger) *clients.MemoryCatalog {
	products := []models.Product{
		{ID: 1, Name: "Laptop", Price: decimal.RequireFromString("1200.00")},
		{ID: 2, Name: "Keyboard", Price: decimal.RequireFromString("75.00")},
		{ID: 3, Name: "Mouse", Price: decimal.RequireFromString("25.00")},
	}
	catalog := clients.NewMemoryCatalog(products...)
	for _, p := range products {
		zlog.Debug("seeded product", zap.Int("product_id", p.ID), zap.String("name", p.Name))
	}
	return catalog
}
