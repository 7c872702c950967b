// Package server initializes and runs the authentication server: it wires
// configuration, storage, the auth services, the HTTP endpoint and the
// background handshake rotation loop, and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/passlink/internal/logging"
	"github.com/dmitrijs2005/passlink/internal/server/auth"
	"github.com/dmitrijs2005/passlink/internal/server/config"
	"github.com/dmitrijs2005/passlink/internal/server/httpapi"
	"github.com/dmitrijs2005/passlink/internal/server/mail"
	"github.com/dmitrijs2005/passlink/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/passlink/internal/server/services"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	login     *services.LoginService
	handshake *services.HandshakeService
	codec     *auth.Codec
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	var mailer services.Mailer
	if c.SMTPAddr != "" {
		mailer = mail.NewSMTPMailer(c.SMTPAddr, c.SMTPFrom)
	} else {
		mailer = mail.NewLogMailer(logger)
	}

	codec := auth.NewCodec(c.SecretKey, c.TokenValidity)
	otp := services.NewOTPService(db, rm, c, codec, mailer, logger)
	login := services.NewLoginService(db, rm, otp, logger)
	handshake := services.NewHandshakeService(db, rm, c, nil, logger)

	return &App{
		config:    c,
		logger:    logger,
		db:        db,
		login:     login,
		handshake: handshake,
		codec:     codec,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: httpapi.NewServer(app.login, app.handshake, app.codec, app.logger).Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "http server listening", "addr", app.config.EndpointAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// startRotationLoop drives the outbound handshake on a fixed interval. The
// first round runs immediately so freshly registered peers do not wait a
// full interval for their token.
func (app *App) startRotationLoop(ctx context.Context) {
	if err := app.handshake.RotateAll(ctx); err != nil {
		app.logger.Error(ctx, "handshake rotation failed", "error", err)
	}

	ticker := time.NewTicker(app.config.HandshakeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := app.handshake.RotateAll(ctx); err != nil {
				app.logger.Error(ctx, "handshake rotation failed", "error", err)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startRotationLoop(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing db failed", "error", err)
	}
}
