package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/quickfit/internal/auth"
	"github.com/claude/quickfit/internal/catalog"
	"github.com/claude/quickfit/internal/config"
	"github.com/claude/quickfit/internal/generator"
	"github.com/claude/quickfit/internal/mcp"
	"github.com/claude/quickfit/internal/quickfit"
	"github.com/claude/quickfit/internal/server"
	"github.com/claude/quickfit/internal/storage"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// store is what every layer needs from the database; both backends provide it.
type store interface {
	auth.Store
	quickfit.Store
	server.UserStore
	Close() error
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("QuickFit starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := openStore(ctx, cfg.Database, *migrateOnly, log)
	if err != nil {
		log.Error("failed to open database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	if db == nil {
		log.Info("migrate-only: exiting")
		return
	}
	defer db.Close()
	log.Info("database connected", "driver", cfg.Database.Driver)

	// Catalog and generators
	cat, err := catalog.Load(cfg.Generator.CatalogPath)
	if err != nil {
		log.Error("failed to load catalog", "path", cfg.Generator.CatalogPath, "error", err)
		os.Exit(1)
	}
	dashboard, session, err := buildStrategies(cat, cfg.Generator, log)
	if err != nil {
		log.Error("invalid generator config", "error", err)
		os.Exit(1)
	}

	app := quickfit.NewService(db, cat, dashboard, session, log)

	var accounts *auth.Service
	if cfg.Auth.Mode == config.AuthPassword {
		accounts = auth.NewService(db, cfg.Auth.SessionTTL)
	}
	srv := server.New(app, accounts, db, log)

	mcpSrv := mcp.New(mcp.Local{Service: app}, Version, log)
	srv.SetMCP(mcp.HTTPHandler(mcpSrv, func(r *http.Request) (int, bool) {
		if u := server.UserFromContext(r.Context()); u != nil {
			return u.ID, true
		}
		return 0, false
	}))

	// Listen on the tailnet or plain TCP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		if cfg.Auth.Mode == config.AuthTailscale {
			lc, err := tsServer.LocalClient()
			if err != nil {
				log.Error("tsnet local client failed", "error", err)
				os.Exit(1)
			}
			srv.SetTailscale(lc)
		}

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname, "auth", cfg.Auth.Mode)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "auth", cfg.Auth.Mode)
	}

	httpSrv := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}

// openStore connects the configured backend. Postgres runs migrations first.
// It returns a nil store when migrateOnly is set.
func openStore(ctx context.Context, cfg config.DatabaseConfig, migrateOnly bool, log *slog.Logger) (store, error) {
	if cfg.Driver == config.DriverSQLite {
		db, err := storage.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info("sqlite schema ready", "path", cfg.SQLitePath)
		if migrateOnly {
			return nil, db.Close()
		}
		return db, nil
	}

	dsn := cfg.DSN()
	if err := storage.RunMigrations(dsn, cfg.Migrations); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	log.Info("migrations applied")
	if migrateOnly {
		return nil, nil
	}
	db, err := storage.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// buildStrategies creates the dashboard and session generators. A non-zero
// seed gives each its own reproducible source.
func buildStrategies(cat *catalog.Catalog, cfg config.GeneratorConfig, log *slog.Logger) (generator.Strategy, generator.Strategy, error) {
	dashOpts := generator.Options{Cap: cfg.DashboardCap}
	sessOpts := generator.Options{Cap: cfg.SessionCap}
	if cfg.Seed != 0 {
		dashOpts.Rand = rand.New(rand.NewPCG(cfg.Seed, 1))
		sessOpts.Rand = rand.New(rand.NewPCG(cfg.Seed, 2))
	}

	dashboard, err := generator.New(cfg.Strategy, cat, dashOpts, log)
	if err != nil {
		return nil, nil, err
	}
	sessionName := cfg.SessionStrategy
	if sessionName == "" {
		sessionName = cfg.Strategy
	}
	session, err := generator.New(sessionName, cat, sessOpts, log)
	if err != nil {
		return nil, nil, err
	}
	return dashboard, session, nil
}
