// Command reminderbot runs the group meeting reminder bot: the webhook
// server, the reminder scheduler, and maintenance subcommands.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/go-meeting-bot/internal/app"
	"github.com/tbourn/go-meeting-bot/internal/config"
	"github.com/tbourn/go-meeting-bot/internal/observability"
	"github.com/tbourn/go-meeting-bot/internal/repo"
	"github.com/tbourn/go-meeting-bot/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

type cli struct {
	envFile string
	port    string
	migrate bool

	cfg config.Config
	log zerolog.Logger
}

// @title                      Meeting Reminder Bot Admin API
// @version                    1.0
// @description                Read and admin endpoints for groups, meetings and freeform reminders.
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                Bearer $ADMIN_API_TOKEN
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "reminderbot",
		Short:         "WhatsApp/Telegram meeting reminder bot",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup()
		},
	}
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve webhooks and run the reminder scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if v, ok := os.LookupEnv("AUTO_MIGRATE"); ok && !cmd.Flags().Changed("migrate") {
				c.migrate = sysutil.IsTruthy(v)
			}
			return c.serve(cmd.Context())
		},
	}
	serve.Flags().StringVar(&c.port, "port", "", "listen port (overrides PORT)")
	serve.Flags().BoolVar(&c.migrate, "migrate", true, "apply schema migrations on start (AUTO_MIGRATE)")

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := c.openDB(true)
			if err != nil {
				return err
			}
			c.log.Info().Str("driver", c.cfg.DB.Driver).Msg("schema migrated")
			return closeDB(db)
		},
	}

	tick := &cobra.Command{
		Use:   "tick",
		Short: "Run one scheduler tick and exit",
		RunE:  func(cmd *cobra.Command, _ []string) error { return c.tick(cmd.Context()) },
	}

	root.AddCommand(serve, migrate, tick)
	return root
}

func (c *cli) setup() error {
	if err := godotenv.Load(c.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", c.envFile, err)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.log = sysutil.InitLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)
	return nil
}

func (c *cli) openDB(migrate bool) (*gorm.DB, error) {
	db, err := repo.Open(c.cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if migrate {
		if err := repo.AutoMigrate(db); err != nil {
			_ = closeDB(db)
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return db, nil
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (c *cli) serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, c.cfg.OTEL, version,
		attribute.String("chat.transport", c.cfg.Chat.Transport),
		attribute.String("db.driver", c.cfg.DB.Driver),
	)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			c.log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := c.openDB(c.migrate)
	if err != nil {
		return err
	}
	defer func() { _ = closeDB(db) }()

	bot, err := app.New(c.cfg, db, c.log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + sysutil.FirstNonEmpty(c.port, c.cfg.Port),
		Handler:           bot.Router,
		ReadTimeout:       c.cfg.ReadTimeout,
		ReadHeaderTimeout: c.cfg.ReadHeaderTimeout,
		WriteTimeout:      c.cfg.WriteTimeout,
		IdleTimeout:       c.cfg.IdleTimeout,
		MaxHeaderBytes:    c.cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.log.Info().Str("addr", srv.Addr).Str("transport", c.cfg.Chat.Transport).
			Bool("calendar", c.cfg.Google.Enabled()).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return bot.Engine.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		c.log.Info().Msg("shutting down")
		return srv.Shutdown(sctx)
	})

	err = g.Wait()

	dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if derr := bot.Handlers.Wait(dctx); derr != nil {
		c.log.Warn().Err(derr).Msg("inbound messages still processing at shutdown")
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (c *cli) tick(ctx context.Context) error {
	db, err := c.openDB(false)
	if err != nil {
		return err
	}
	defer func() { _ = closeDB(db) }()

	bot, err := app.New(c.cfg, db, c.log)
	if err != nil {
		return err
	}
	st := bot.Engine.Tick(ctx, time.Now())
	c.log.Info().Int("due", st.Due).Int("sent", st.Sent).Int("failed", st.Failed).
		Int64("purged", st.Purged).Msg("tick finished")
	if st.Failed > 0 {
		return fmt.Errorf("%d notifications failed", st.Failed)
	}
	return nil
}
