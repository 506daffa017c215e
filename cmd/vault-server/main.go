package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/healthvault/vault/internal/config"
	"github.com/healthvault/vault/internal/domain/account"
	"github.com/healthvault/vault/internal/domain/reminder"
	"github.com/healthvault/vault/internal/platform/db"
	"github.com/healthvault/vault/internal/platform/notification"
	"github.com/healthvault/vault/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vault-server",
		Short: "Smart Health Vault API Server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(remindersCmd())
	rootCmd.AddCommand(smsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and the reminder dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrate, _ := cmd.Flags().GetBool("migrate")
			return runServer(migrate)
		},
	}
	cmd.Flags().Bool("migrate", false, "Apply pending migrations before serving")
	return cmd
}

// newMigrator reads the embedded migrations unless --dir points elsewhere.
func newMigrator(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (*db.Migrator, func(), error) {
	dir, _ := cmd.Flags().GetString("dir")
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	if dir != "" {
		return db.NewMigrator(pool, dir), pool.Close, nil
	}
	return db.NewMigratorFS(pool, migrations.FS), pool.Close, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			migrator, closePool, err := newMigrator(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			defer closePool()

			fmt.Printf("Running migrations on schema: %s\n", schema)
			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "public", "Target schema for migrations")
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			migrator, closePool, err := newMigrator(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			defer closePool()

			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.Drifted {
						status = "drifted"
					}
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "public", "Target schema for migrations")
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func remindersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Inspect and dispatch reminders",
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Run one dispatch tick now and print the outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Env)

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			deps := pgDependencies(pool)
			deps.sms = newTwilioClient(cfg, logger)
			locker, closeLocker, err := newLocker(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeLocker()
			deps.locker = locker

			result, err := newDispatcher(cfg, logger, deps).Tick(ctx)
			if err != nil {
				return fmt.Errorf("reminder check failed: %w", err)
			}
			printTick(result)
			return nil
		},
	}
	cmd.AddCommand(checkCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, _ := cmd.Flags().GetString("uid")
			status, _ := cmd.Flags().GetString("status")
			if uid == "" {
				return fmt.Errorf("--uid is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			users := account.NewService(account.NewUserRepoPG(pool))
			svc := reminder.NewService(reminder.NewRepoPG(pool), users, cfg.ReminderLocation())
			list, err := svc.List(ctx, uid, reminder.ListQuery{Status: status})
			if err != nil {
				return err
			}

			fmt.Printf("%-36s %-25s %-12s %-10s %s\n", "ID", "SCHEDULED FOR", "TYPE", "STATUS", "TITLE")
			for _, r := range list {
				fmt.Printf("%-36s %-25s %-12s %-10s %s\n",
					r.ID, r.ScheduledFor.In(cfg.ReminderLocation()).Format(time.RFC3339), r.Type, r.Status, r.Title)
			}
			return nil
		},
	}
	listCmd.Flags().String("uid", "", "Firebase uid of the owner")
	listCmd.Flags().String("status", "", "Only reminders with this status")
	cmd.AddCommand(listCmd)

	return cmd
}

func printTick(r *reminder.TickResult) {
	if r.Skipped {
		fmt.Println("Tick skipped: another replica holds the lock for this window.")
		return
	}
	fmt.Printf("Window %s .. %s: %d due\n", r.From.Format(time.RFC3339), r.To.Format(time.RFC3339), r.Due)
	for id, outcome := range r.Outcomes {
		fmt.Printf("  %s  %s\n", id, outcome)
	}
}

func smsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sms",
		Short: "Exercise the SMS gateway",
	}

	sendCmd := &cobra.Command{
		Use:   "send-test",
		Short: "Send a test message",
		RunE: func(cmd *cobra.Command, args []string) error {
			to, _ := cmd.Flags().GetString("to")
			body, _ := cmd.Flags().GetString("body")
			if to == "" {
				return fmt.Errorf("--to is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client := newTwilioClient(cfg, newLogger(cfg.Env))
			if !client.Available() {
				return notification.ErrGatewayUnavailable
			}

			receipt, err := client.SendSMS(context.Background(), to, body)
			if err != nil {
				return err
			}
			fmt.Printf("Sent %s to %s (status %s)\n", receipt.SID, receipt.To, receipt.Status)
			return nil
		},
	}
	sendCmd.Flags().String("to", "", "Destination number in E.164 form")
	sendCmd.Flags().String("body", "Smart Health Vault test message.", "Message text")
	cmd.AddCommand(sendCmd)

	statusCmd := &cobra.Command{
		Use:   "status [sid]",
		Short: "Show the delivery status of a sent message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client := newTwilioClient(cfg, newLogger(cfg.Env))
			if !client.Available() {
				return notification.ErrGatewayUnavailable
			}

			receipt, err := client.FetchMessage(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("SID:    %s\nTo:     %s\nStatus: %s\n", receipt.SID, receipt.To, receipt.Status)
			if receipt.ErrorCode != nil {
				fmt.Printf("Error:  %d %s\n", *receipt.ErrorCode, receipt.ErrorText)
			}
			return nil
		},
	}
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer(migrate bool) error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	if migrate {
		count, err := db.NewMigratorFS(pool, migrations.FS).Up(ctx, "public")
		if err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Int("applied", count).Msg("migrations applied")
	}

	deps := pgDependencies(pool)
	deps.blobs, err = newBlobStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure blob storage")
	}
	deps.sms = newTwilioClient(cfg, logger)
	locker, closeLocker, err := newLocker(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer closeLocker()
	deps.locker = locker

	srv := newServer(cfg, logger, deps)
	srv.echo.GET("/health/db", db.PoolHealthHandler(pool))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = srv.echo.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.echo.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		srv.dispatcher.Start(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.echo.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
