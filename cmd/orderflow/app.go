package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/agamariel/orderflow/internal/auth"
	"github.com/agamariel/orderflow/internal/catalog"
	"github.com/agamariel/orderflow/internal/config"
	"github.com/agamariel/orderflow/internal/handlers"
	"github.com/agamariel/orderflow/internal/migrations"
	"github.com/agamariel/orderflow/internal/services"
	"github.com/agamariel/orderflow/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const eventBuffer = 256

// App структура для управления приложением и его зависимостями.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	dbPool   *pgxpool.Pool
	echo     *echo.Echo
	notifier *services.AsyncNotifier
	sweeper  *services.ExpirySweeper

	// Handlers
	userHandler    *handlers.UserHandler
	orderHandler   *handlers.OrderHandler
	requestHandler *handlers.RequestHandler
}

// NewApp создаёт и инициализирует новое приложение.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		cfg:    cfg,
		logger: logger,
	}

	if err := app.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initDependencies(); err != nil {
		app.dbPool.Close()
		return nil, fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	app.initServer()

	return app, nil
}

// initDatabase подключается к PostgreSQL и применяет миграции.
func (app *App) initDatabase(ctx context.Context) error {
	if app.cfg.DatabaseURI == "" {
		return errors.New("DATABASE_URI is required")
	}

	dbPool, err := pgxpool.New(ctx, app.cfg.DatabaseURI)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return fmt.Errorf("unable to ping database: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(dbPool)
	defer sqlDB.Close()

	applied, err := migrations.Run(ctx, sqlDB)
	if err != nil {
		dbPool.Close()
		return err
	}
	app.logger.Info("migrations applied", "count", applied)

	app.dbPool = dbPool
	return nil
}

// initDependencies собирает хранилища, сервисы, фоновые задачи и обработчики.
func (app *App) initDependencies() error {
	// Storage layer
	userStorage := storage.NewPostgresUserStorage(app.dbPool)
	store := storage.NewPostgresStore(app.dbPool)

	policy, err := auth.NewPolicy()
	if err != nil {
		return fmt.Errorf("failed to load access policy: %w", err)
	}

	// Уведомления о событиях заказа
	sinks := []services.Sink{services.NewLogSink(app.logger)}
	if app.cfg.NotifyWebhookURL != "" {
		sinks = append(sinks, services.NewWebhookSink(app.cfg.NotifyWebhookURL))
	}
	app.notifier = services.NewAsyncNotifier(app.logger, eventBuffer, sinks...)

	// Service layer
	workflow := services.NewWorkflowService(store, policy, app.notifier, app.logger)
	userService := services.NewUserService(userStorage, app.cfg.JWTSecret, app.cfg.TokenExpiration, app.cfg.AdminLogins)

	app.sweeper, err = services.NewExpirySweeper(workflow, app.cfg.PurgeSchedule, app.cfg.PurgeBatchSize, app.logger)
	if err != nil {
		return fmt.Errorf("invalid purge schedule: %w", err)
	}

	// Каталог товаров необязателен
	var catalogClient catalog.Client
	if app.cfg.CatalogServiceAddress != "" {
		client, err := catalog.NewHTTPClient(app.cfg.CatalogServiceAddress, 5*time.Second)
		if err != nil {
			return fmt.Errorf("invalid catalog address: %w", err)
		}
		catalogClient = client
	} else {
		app.logger.Warn("catalog service address is not configured, orders are rendered without product names")
	}

	// Handler layer
	app.userHandler = handlers.NewUserHandler(userService, app.cfg.TokenExpiration)
	app.orderHandler = handlers.NewOrderHandler(workflow, catalogClient, app.logger)
	app.requestHandler = handlers.NewRequestHandler(workflow)

	return nil
}

// initServer инициализирует HTTP-сервер и настраивает маршруты.
func (app *App) initServer() {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				app.logger.Warn("request failed", append(attrs, slog.String("error", v.Error.Error()))...)
				return nil
			}
			app.logger.Info("request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.Gzip())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
	}))

	// Публичные маршруты (не требуют аутентификации)
	e.POST("/api/user/register", app.userHandler.Register)
	e.POST("/api/user/login", app.userHandler.Login)
	e.GET("/api/reasons", app.requestHandler.Reasons)

	// Защищённые маршруты (требуют аутентификации)
	api := e.Group("/api")
	api.Use(auth.JWTMiddleware(app.cfg.JWTSecret))

	api.POST("/orders", app.orderHandler.CreateOrder)
	api.GET("/orders", app.orderHandler.ListOrders)
	api.GET("/orders/deleted", app.orderHandler.ListDeleted)
	api.GET("/orders/:id", app.orderHandler.GetOrder)
	api.DELETE("/orders/:id", app.orderHandler.SoftDelete)
	api.GET("/orders/:id/return-eligibility", app.orderHandler.ReturnEligibility)
	api.POST("/orders/:id/status", app.orderHandler.Transition)
	api.POST("/orders/:id/refund", app.orderHandler.CompleteRefund)

	api.POST("/orders/:id/requests", app.requestHandler.SubmitRequest)
	api.POST("/orders/:id/restoration", app.requestHandler.SubmitRestoration)
	api.POST("/orders/:id/restoration/decision", app.requestHandler.DecideRestoration)
	api.POST("/requests/:id/decision", app.requestHandler.DecideRequest)
	api.GET("/admin/requests", app.requestHandler.ListRequests)

	app.echo = e
}

// Start запускает фоновые задачи и HTTP-сервер.
func (app *App) Start(ctx context.Context) error {
	// Уведомления живут до Shutdown: обработчики могут публиковать события до остановки сервера.
	app.notifier.Start(context.WithoutCancel(ctx))
	app.sweeper.Start(ctx)

	app.logger.Info("starting server", "address", app.cfg.RunAddress)
	if err := app.echo.Start(app.cfg.RunAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server stopped: %w", err)
	}

	return nil
}

// Shutdown корректно завершает работу приложения.
func (app *App) Shutdown(ctx context.Context) error {
	app.logger.Info("shutting down server")

	if err := app.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	// Очистка публикует события, поэтому уведомления останавливаются последними.
	app.sweeper.Stop()
	app.notifier.Stop()

	if app.dbPool != nil {
		app.dbPool.Close()
	}

	app.logger.Info("server gracefully stopped")
	return nil
}
