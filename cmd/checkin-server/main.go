package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/uuid"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"golang.org/x/sync/errgroup"

	"github.com/yoshuavic8/church-checkin/internal/checkin"
	"github.com/yoshuavic8/church-checkin/internal/decode"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

const appName = "church-checkin"

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("checkin-server")
	var (
		port           = fs.IntLong("port", 8080, "HTTP server port")
		dbPath         = fs.StringLong("db", filepath.Join(xdg.DataHome, appName, "checkin.db"), "Database file path")
		seedPath       = fs.StringLong("seed", "", "YAML file of sessions to load at startup (optional)")
		generalSession = fs.StringLong("general-session", "", "Session UUID that receives GENERAL member codes (optional)")
		pollInterval   = fs.DurationLong("poll-interval", 100*time.Millisecond, "Frame poll interval for live camera scanning")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("CHECKIN"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	var general uuid.UUID
	if *generalSession != "" {
		var err error
		general, err = uuid.Parse(*generalSession)
		if err != nil {
			slog.Error("Invalid general session", "value", *generalSession, "error", err)
			os.Exit(1)
		}
	}

	// Initialize database
	slog.Info("Initializing database...", "path", *dbPath)
	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		slog.Error("Failed to create database directory", "error", err)
		os.Exit(1)
	}
	db, err := checkin.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if *seedPath != "" {
		sessions, err := checkin.LoadSeedFile(*seedPath)
		if err != nil {
			slog.Error("Failed to load seed file", "path", *seedPath, "error", err)
			os.Exit(1)
		}
		if err := checkin.SeedSessions(db, sessions, time.Now()); err != nil {
			slog.Error("Failed to seed sessions", "error", err)
			os.Exit(1)
		}
		slog.Info("Seeded sessions", "count", len(sessions))
	}

	if general != uuid.Nil {
		if _, err := db.GetSession(general); err != nil {
			slog.Warn("General session does not exist yet", "session", general, "error", err)
		}
	}

	// Initialize service
	service := checkin.NewService(db, decode.NewEngine(), checkin.Options{
		GeneralSession: general,
		PollInterval:   *pollInterval,
	})
	defer service.Close()

	// Initialize server
	basicAuth := checkin.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := checkin.NewServer(service, basicAuth)

	addr := fmt.Sprintf(":%d", *port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting server", "address", fmt.Sprintf("http://localhost%s", addr))
		if *authUser != "" || *authPass != "" {
			slog.Info("Basic auth enabled", "user", *authUser)
		}
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}
