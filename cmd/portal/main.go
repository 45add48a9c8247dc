package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"newhope.org/internal/board"
	"newhope.org/internal/config"
	"newhope.org/internal/httpapi"
	"newhope.org/internal/identity"
	"newhope.org/internal/migrate"
	"newhope.org/internal/obs"
	"newhope.org/internal/portal"
	"newhope.org/internal/registry"
	"newhope.org/internal/session"
	"newhope.org/internal/store/pg"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "portal",
		Short: "New Hope hospital patient portal",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the portal server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	withManager := func(run func(ctx context.Context, m *migrate.Manager) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required for migrations")
			}
			store, err := pg.Open(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer store.Close()
			return run(cmd.Context(), migrate.NewManager(store.DB()))
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: withManager(func(ctx context.Context, m *migrate.Manager) error {
			if err := m.Up(ctx); err != nil {
				return err
			}
			fmt.Println("migrations applied")
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback the last migration",
		RunE: withManager(func(ctx context.Context, m *migrate.Manager) error {
			if err := m.Down(ctx); err != nil {
				return err
			}
			fmt.Println("last migration rolled back")
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied migrations",
		RunE: withManager(func(ctx context.Context, m *migrate.Manager) error {
			applied, err := m.Status(ctx)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Println("no migrations applied")
				return nil
			}
			for _, name := range applied {
				fmt.Println(name)
			}
			return nil
		}),
	})

	return cmd
}

func runServer() error {
	obs.Init()
	obs.InitBuildInfo(version)
	log := obs.Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Store selection: PostgreSQL when a DSN is configured, in-memory
	// otherwise. Both sides implement the same interfaces.
	var (
		identities identity.Store
		records    registry.Store
		announce   board.Store
		readyProbe httpapi.ReadyProbe
	)
	if cfg.DatabaseURL != "" {
		store, err := pg.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open database")
		}
		defer store.Close()
		if err := migrate.NewManager(store.DB()).Up(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		}
		identities = store.Identities()
		records = store.Patients()
		announce = store.Announcements()
		readyProbe = httpapi.ReadyProbe{DB: store.DB()}
		log.Info().Msg("using postgres stores")
	} else {
		identities = identity.NewInMemory()
		records = registry.NewInMemory()
		announce = board.NewInMemory()
		log.Info().Msg("using in-memory stores")
	}

	admin, err := identities.Seed(context.Background(), cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to seed administrator")
	}
	log.Info().Int64("user_id", admin.ID).Str("email", admin.Email).Msg("administrator ready")

	svc, err := portal.New(identities, records, announce)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build portal service")
	}

	sessions := session.NewManager(session.WithTTL(cfg.SessionTTL))
	defer sessions.Close()

	api := httpapi.New(readyProbe, version, svc, sessions)
	api.SetRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info().Str("version", version).Str("addr", srv.Addr).Msg("starting portal")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Info().Msg("stopped")
	return nil
}
