package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"

	"github.com/cobia/billing/internal/auth"
	"github.com/cobia/billing/internal/billing"
	"github.com/cobia/billing/internal/config"
	"github.com/cobia/billing/internal/gateway"
	"github.com/cobia/billing/internal/http_api"
	"github.com/cobia/billing/internal/models"
	"github.com/cobia/billing/internal/notificator"
	"github.com/cobia/billing/internal/repository"
	"github.com/cobia/billing/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "cobia",
		Usage: "Cobia payment confirmation and subscription service",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.IntFlag{Name: "port", Usage: "HTTP API port"},
			&cli.StringFlag{Name: "storage", Aliases: []string{"s"}, Usage: "Storage backend (postgres or memory)"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and the expiry sweeper",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "Create or update the database schema and exit",
				Action: migrate,
			},
			{
				Name:  "token",
				Usage: "Print an access token for a user, creating the user if needed",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "User email", Required: true},
					&cli.BoolFlag{Name: "admin", Usage: "Grant admin rights when creating the user"},
				},
				Action: token,
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.LoadConfig()

	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("port") {
		cfg.APIPort = c.Int("port")
	}
	if c.IsSet("storage") {
		cfg.Storage = c.String("storage")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func openStore(cfg *config.Config, log *logger.Logger) (models.Store, error) {
	if cfg.Storage == config.StorageMemory {
		log.Warn("Using in-memory storage, data is lost on exit")
		return repository.NewMemoryStore(), nil
	}
	db, err := repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresSSLMode, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}
	return db, nil
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}
	defer log.Sync()

	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	renewal, err := billing.ParseRenewalPolicy(cfg.SubscriptionRenewal)
	if err != nil {
		return err
	}

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize notificator, channels are attached below when configured
	notif := notificator.NewNotificator(log.With("component", "notificator"), store.Users(), nil, nil)
	if cfg.EmailEnabled() {
		notif.EmailNotificator = notificator.NewEmailNotificator(log, cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPSender)
	}

	tokens := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	tossClient := gateway.NewTossClient(cfg.TossBaseURL, cfg.TossSecretKey, cfg.GatewayTimeout, log.With("component", "gateway"))

	billingApp := billing.New(store, tossClient, notif, log.With("component", "billing"), billing.Options{
		Renewal:       renewal,
		SweepInterval: cfg.SweepInterval,
		InstanceID:    cfg.InstanceID,
	})

	if cfg.TelegramBotToken != "" {
		telegram, err := notificator.NewTelegramNotificator(log.With("component", "telegram"), cfg.TelegramBotToken, tokens, billingApp)
		if err != nil {
			return err
		}
		notif.TelegramNotificator = telegram
		telegram.Start(ctx)
	}

	apiServer, err := http_api.NewHTTPServer(billingApp, tokens, http_api.Options{
		Port:           cfg.APIPort,
		CORSOrigins:    cfg.CORSOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}, log.With("component", "http"))
	if err != nil {
		return err
	}

	// Start the expiry sweeper
	billingApp.Start(ctx)
	defer billingApp.Stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- apiServer.Start(ctx)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	}

	if err := apiServer.Shutdown(); err != nil {
		log.Error("Failed to shut down HTTP server", "error", err)
	}
	return nil
}

func migrate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Storage != config.StoragePostgres {
		return errors.New("migrate requires postgres storage")
	}

	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}
	defer log.Sync()

	// Opening the connection runs the migrations.
	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	return store.Close()
}

func token(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	log, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}
	defer log.Sync()

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	email := c.String("email")
	user, err := store.Users().GetByEmail(c.Context, email)
	if errors.Is(err, models.ErrNotFound) {
		user = &models.User{Email: email, Tier: models.TierFree, IsAdmin: c.Bool("admin")}
		if err := store.Users().Create(c.Context, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		log.Info("User created", "user_id", user.ID, "email", email, "admin", user.IsAdmin)
	} else if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	accessToken, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL).IssueAccessToken(user.ID)
	if err != nil {
		return err
	}
	fmt.Println(accessToken)
	return nil
}
