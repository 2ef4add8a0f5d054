package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"salescadence/config"
	"salescadence/middleware"
	"salescadence/realtime"
	"salescadence/routes"
	"salescadence/services"
	"salescadence/seed"
	"salescadence/utils"
	"salescadence/worker"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "salescadence",
	Short: "Sales cadence engine for the lead pipeline",
	Long: `salescadence serves the sales cadence API: cadence templates, lead
assignments, activity logging with automatic step completion, and a
realtime stream of cadence events.

Run without arguments to start the server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadConfig(); err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		utils.ConfigureLogger(config.AppConfig.Environment, config.AppConfig.LogLevel)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and the overdue step worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Connect to the database and apply migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return config.ConnectDB()
	},
}

var (
	seedFile    string
	seedCompany uint
)

var seedCmd = &cobra.Command{
	Use:     "seed",
	Short:   "Create cadences from a YAML file",
	Example: `  salescadence seed --file cadences.yaml --company 12`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedCompany == 0 {
			return fmt.Errorf("--company is required")
		}
		f, err := os.Open(seedFile)
		if err != nil {
			return err
		}
		defer f.Close()
		doc, err := seed.Decode(f)
		if err != nil {
			return err
		}
		if err := config.ConnectDB(); err != nil {
			return err
		}

		svc := services.NewCadenceService(config.DB, utils.Component("seed"), services.WithLocation(config.AppConfig.Location))
		created, err := seed.Apply(cmd.Context(), svc, seedCompany, doc)
		for _, c := range created {
			fmt.Fprintf(cmd.OutOrStdout(), "created cadence %d %q with %d steps\n", c.ID, c.Name, len(c.Steps))
		}
		return err
	},
}

var (
	tokenUser    uint
	tokenCompany uint
	tokenRole    string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenUser == 0 || tokenCompany == 0 {
			return fmt.Errorf("--user and --company are required")
		}
		token, err := utils.GenerateJWTToken(config.AppConfig.JWTSecret, tokenUser, tokenCompany, tokenRole, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "cadences.yaml", "YAML file with cadence definitions")
	seedCmd.Flags().UintVar(&seedCompany, "company", 0, "company that will own the cadences")

	tokenCmd.Flags().UintVar(&tokenUser, "user", 0, "user id")
	tokenCmd.Flags().UintVar(&tokenCompany, "company", 0, "company id")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "", "role claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")

	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, tokenCmd)
}

func runServer() error {
	cfg := config.AppConfig
	log := utils.Component("main")

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
		}); err != nil {
			log.WithError(err).Warn("Sentry initialization failed")
		}
		defer sentry.Flush(2 * time.Second)
	}

	if err := config.ConnectDB(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub(64, utils.Component("realtime"))
	defer hub.Close()

	storage := middleware.RateLimitStorage(cfg.Redis)
	app := routes.NewApp(routes.Deps{
		DB:                config.DB,
		Hub:               hub,
		JWTSecret:         cfg.JWTSecret,
		WebhookSecret:     cfg.WebhookSecret,
		RateLimitActivity: cfg.RateLimitActivity,
		RateLimitStorage:  storage,
		Location:          cfg.Location,
		CORSOrigins:       cfg.CORSOrigins,
		RequestLog:        true,
	})

	assignments := services.NewAssignmentService(config.DB, utils.Component("cadence_worker"),
		services.WithEvents(hub), services.WithLocation(cfg.Location))
	cadenceWorker := worker.NewCadenceWorker(assignments, hub, cfg.WorkerInterval, utils.Component("cadence_worker"))
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		cadenceWorker.Start(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.ServerPort).Info("Server starting")
		serveErr <- app.Listen(":" + cfg.ServerPort)
	}()

	var err error
	select {
	case err = <-serveErr:
		stop()
	case <-ctx.Done():
		log.Info("Shutting down")
		err = app.ShutdownWithTimeout(10 * time.Second)
	}
	<-workerDone
	if storage != nil {
		_ = storage.Close()
	}
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.WithError(err).Error("command failed")
		os.Exit(1)
	}
}
