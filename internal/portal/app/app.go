package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/certeu/do-portal/internal/portal/bosh"
	"github.com/certeu/do-portal/internal/portal/directory"
	httpapi "github.com/certeu/do-portal/internal/portal/http"
	"github.com/certeu/do-portal/internal/portal/mail"
	"github.com/certeu/do-portal/internal/portal/service"
	"github.com/certeu/do-portal/internal/portal/store"
	"github.com/certeu/do-portal/internal/portal/store/drivers/sqlite"
	"github.com/certeu/do-portal/pkg/cryptox"
	"github.com/certeu/do-portal/pkg/jwtx"
	"github.com/certeu/do-portal/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the portal auth service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	signer *jwtx.Signer

	sessionService      *service.SessionService
	authService         *service.AuthService
	accountService      *service.AccountService
	twoFactorService    *service.TwoFactorService
	chatService         *service.ChatService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("PORTAL_SECRET_KEY must be set")
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "portal-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(cfg.PepperFile)

	app.signer = &jwtx.Signer{
		Secret: []byte(cfg.SecretKey),
		Issuer: "do-portal",
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("portal auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully stops the HTTP server, the housekeeping worker and
// the database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down portal auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("portal auth service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initServices() error {
	ctx := context.Background()
	if err := service.SeedRoles(ctx, app.db); err != nil {
		return fmt.Errorf("failed to seed roles: %w", err)
	}

	app.sessionService = &service.SessionService{
		Store:       app.db,
		Signer:      app.signer,
		TTL:         app.cfg.SessionTTL,
		RememberTTL: app.cfg.RememberTTL,
	}

	app.authService = &service.AuthService{Store: app.db}
	if app.cfg.LDAPEnabled {
		app.authService.Directory = directory.NewClient(directory.Config{
			URL:          app.cfg.LDAPURL,
			BindDN:       app.cfg.LDAPBindDN,
			BindPassword: app.cfg.LDAPBindPassword,
			BaseDN:       app.cfg.LDAPBaseDN,
			SkipVerify:   app.cfg.LDAPSkipVerify,
		})
		app.logger.Info("directory authentication enabled", "url", app.cfg.LDAPURL)
	}

	var mailer mail.Mailer = mail.NopMailer{}
	if app.cfg.SMTPHost != "" {
		m, err := mail.NewSMTPMailer(mail.Config{
			Host:     app.cfg.SMTPHost,
			Port:     app.cfg.SMTPPort,
			Username: app.cfg.SMTPUsername,
			Password: app.cfg.SMTPPassword,
			From:     app.cfg.MailFrom,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize mailer: %w", err)
		}
		mailer = m
	}

	app.accountService = &service.AccountService{
		Store:         app.db,
		Signer:        app.signer,
		Mailer:        mailer,
		WebRoot:       app.cfg.WebRoot,
		ActivationTTL: app.cfg.ActivationTTL,
		Admins:        app.cfg.Admins,
	}

	app.twoFactorService = &service.TwoFactorService{
		Store:  app.db,
		Issuer: app.cfg.TOTPIssuer,
	}

	app.chatService = &service.ChatService{
		Enabled:      app.cfg.BOSHEnabled,
		JID:          app.cfg.BOSHJID,
		Password:     app.cfg.BOSHPassword,
		ServiceURL:   app.cfg.BOSHServiceURL,
		Rooms:        app.cfg.BOSHRooms,
		CPServiceURL: app.cfg.BOSHCPServiceURL,
		CPRooms:      app.cfg.BOSHCPRooms,
	}
	if app.cfg.BOSHEnabled {
		app.chatService.Client = bosh.NewClient(app.cfg.BOSHServiceURL, &http.Client{
			Timeout: 30 * time.Second,
		})
		app.logger.Info("chat prebind enabled", "service", app.cfg.BOSHServiceURL)
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)

	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.db, app.logger, BuildVersion)

	router.Sessions = app.sessionService
	router.Auth = app.authService
	router.Accounts = app.accountService
	router.TwoFactor = app.twoFactorService
	router.Chat = app.chatService
	router.CPHostname = app.cfg.CPHostname
	router.SecureCookies = app.cfg.SecureCookies
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
