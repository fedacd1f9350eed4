// Package app assembles the service: configuration, database, component
// wiring, and the HTTP server lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/statement2sheet/backend/internal/auth"
	"github.com/statement2sheet/backend/internal/config"
	"github.com/statement2sheet/backend/internal/db"
	"github.com/statement2sheet/backend/internal/extract"
	"github.com/statement2sheet/backend/internal/http/api/front"
	"github.com/statement2sheet/backend/internal/payments"
	"github.com/statement2sheet/backend/internal/quota"
	"github.com/statement2sheet/backend/internal/subscription"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the API server with database-backed components.
func RunServer(ctx context.Context, cfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	jwtCfg, _ := config.LoadJWTConfig(configPath)
	if jwtCfg.Secret == "" {
		return errors.New("app: jwt secret is required (set JWT_SECRET or jwt.secret)")
	}
	stripeCfg, _ := config.LoadStripeConfig(configPath)
	dodoCfg, _ := config.LoadDodoConfig(configPath)
	googleCfg, _ := config.LoadGoogleOAuthConfig(configPath)
	serverCfg, _ := config.LoadServerConfig(configPath)

	deps := front.Deps{
		DB:        conn,
		JWT:       jwtCfg,
		Google:    googleCfg,
		Server:    serverCfg,
		Validator: auth.NewValidator(conn, jwtCfg),
		Quota:     quota.NewEngine(conn),
		Limiter:   quota.NewAnonymousLimiter(conn),
		Machine:   subscription.NewMachine(conn),
		Stripe:    payments.NewStripeAdapter(stripeCfg),
		Dodo:      payments.NewDodoAdapter(dodoCfg),
		Extractor: extract.NewClient(serverCfg.GeminiAPIKey),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	front.RegisterFrontRoutes(engine, deps)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("starting server on port %d with config=%s", port, cfg.ConfigPath)
		if errServe := srv.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			return errShutdown
		}
		return nil
	case errServe := <-errCh:
		return errServe
	}
}
