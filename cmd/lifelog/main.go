// Lifelog Core - personal automation service
//
// This is the main entry point for the Lifelog Core application. It wires
// the routine store, the automation engine and its action executor, the
// event bus, the optional MQTT and InfluxDB connections, the minute
// scheduler and the HTTP/WebSocket API.
//
// Usage:
//
//	lifelog                      run the service
//	lifelog token -user ID       print a bearer token for ID
//	lifelog migrate up|down|status
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/lifelog-core/migrations"

	"github.com/nerrad567/lifelog-core/internal/api"
	"github.com/nerrad567/lifelog-core/internal/audit"
	"github.com/nerrad567/lifelog-core/internal/auth"
	"github.com/nerrad567/lifelog-core/internal/automation"
	"github.com/nerrad567/lifelog-core/internal/events"
	"github.com/nerrad567/lifelog-core/internal/genai"
	"github.com/nerrad567/lifelog-core/internal/infrastructure/config"
	"github.com/nerrad567/lifelog-core/internal/infrastructure/database"
	"github.com/nerrad567/lifelog-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/lifelog-core/internal/infrastructure/logging"
	"github.com/nerrad567/lifelog-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/lifelog-core/internal/ingest"
	"github.com/nerrad567/lifelog-core/internal/records"
	"github.com/nerrad567/lifelog-core/internal/scheduler"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	defaultConfigPath = "configs/config.yaml"
	defaultEnvFile    = ".env"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := mintToken(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
		return
	}
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := migrateCmd(context.Background(), os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It blocks until ctx is cancelled or a background component fails.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Lifelog Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	loadEnvFile(log)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(database.Config{
		Driver:      cfg.Database.Driver,
		Path:        cfg.Database.Path,
		DSN:         cfg.Database.DSN,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "driver", string(db.Dialect()))

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	store := records.NewStore(db.DB, db.Dialect())
	routines := automation.NewSQLRepository(db.DB, db.Dialect())

	generator, err := newGenerator(cfg, log)
	if err != nil {
		return fmt.Errorf("creating generative text client: %w", err)
	}
	executor := automation.NewExecutor(store, generator)

	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	engineOpts := []automation.EngineOption{automation.WithBroadcaster(hub)}

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		outcomes := ingest.NewOutcomePublisher(mqttClient, byte(cfg.MQTT.QoS), log.Component("ingest"))
		engineOpts = append(engineOpts, automation.WithBroadcaster(outcomes))
	} else {
		log.Info("MQTT disabled")
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		engineOpts = append(engineOpts, automation.WithMetrics(influxClient))
	} else {
		log.Info("InfluxDB disabled")
	}

	engine := automation.NewEngine(routines, executor, routines, log.Component("automation"), engineOpts...)

	bus := events.NewBus(log.Component("events"))
	engine.Attach(bus)

	if mqttClient != nil {
		bridge := ingest.NewBridge(mqttClient, bus, byte(cfg.MQTT.QoS), log.Component("ingest"))
		if startErr := bridge.Start(ctx); startErr != nil {
			return fmt.Errorf("starting event bridge: %w", startErr)
		}
		log.Info("MQTT event bridge started")
		defer func() {
			if stopErr := bridge.Stop(); stopErr != nil {
				log.Warn("stopping event bridge", "error", stopErr)
			}
		}()
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	deps := api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log.Component("api"),
		DB:          db,
		Pipeline:    engine,
		Bus:         bus,
		Location:    cfg.SchedulerLocation(),
		Routines:    routines,
		Records:     store,
		Audit:       audit.NewSQLRepository(db.DB, db.Dialect()),
		ExternalHub: hub,
		Version:     version,
	}
	// A nil *mqtt.Client must not become a non-nil interface.
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	if err := server.Start(gctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(engine, cfg.SchedulerLocation(), log.Component("scheduler"))
		g.Go(func() error {
			return sched.Run(gctx)
		})
	} else {
		log.Info("scheduler disabled, scheduled routines run only via POST /api/v1/scheduler/tick")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	if err := g.Wait(); err != nil {
		return fmt.Errorf("background component failed: %w", err)
	}

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, InfluxDB (if enabled), MQTT (if enabled), database.

	log.Info("Lifelog Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses LIFELOG_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LIFELOG_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadEnvFile loads KEY=VALUE pairs from LIFELOG_ENV_FILE (default .env)
// into the process environment. Variables already set are not overridden.
// A missing file is not an error.
func loadEnvFile(log *logging.Logger) {
	path := os.Getenv("LIFELOG_ENV_FILE")
	if path == "" {
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn("ignoring unreadable env file", "path", path, "error", err)
		}
		return
	}
	log.Info("environment file loaded", "path", path)
}

// newGenerator returns the generative text client, or nil when disabled.
// Without one, GENERATE_AI_INSIGHT actions fail and are logged as FAILED.
func newGenerator(cfg *config.Config, log *logging.Logger) (automation.Generator, error) {
	if !cfg.GenAI.Enabled {
		log.Info("generative text disabled")
		return nil, nil
	}
	client, err := genai.NewClient(genai.Config{
		APIKey:            cfg.GenAI.APIKey,
		BaseURL:           cfg.GenAI.BaseURL,
		Model:             cfg.GenAI.Model,
		Timeout:           cfg.GetGenAITimeout(),
		RequestsPerMinute: cfg.GenAI.RequestsPerMinute,
	})
	if err != nil {
		return nil, err
	}
	log.Info("generative text enabled",
		"model", cfg.GenAI.Model,
		"requests_per_minute", cfg.GenAI.RequestsPerMinute,
	)
	return client, nil
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

// mintToken implements "lifelog token". It signs a bearer token for -user
// with the configured secret and issuer and writes it to out.
func mintToken(args []string, out io.Writer) error {
	flags := flag.NewFlagSet("token", flag.ContinueOnError)
	userID := flags.String("user", "", "user ID placed in the token subject (required)")
	ttl := flags.Int("ttl", 0, "lifetime in minutes (default security.jwt.access_token_ttl)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *userID == "" {
		return errors.New("token: -user is required")
	}

	loadEnvFile(logging.Discard())
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	minutes := *ttl
	if minutes <= 0 {
		minutes = cfg.Security.JWT.AccessTokenTTL
	}
	token, err := auth.GenerateAccessToken(*userID, cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer, minutes)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

// migrateCmd applies, reverts or lists schema migrations without starting
// the service. "down" reverts only the latest applied migration.
func migrateCmd(ctx context.Context, args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("migrate: want exactly one of up, down, status")
	}

	loadEnvFile(logging.Discard())
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	db, err := database.Open(database.Config{
		Driver:      cfg.Database.Driver,
		Path:        cfg.Database.Path,
		DSN:         cfg.Database.DSN,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // process exits next

	switch args[0] {
	case "up":
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, "migrations applied")
		return err
	case "down":
		reverted, err := db.Rollback(ctx)
		if err != nil {
			return err
		}
		if reverted == nil {
			_, err = fmt.Fprintln(out, "nothing to roll back")
			return err
		}
		_, err = fmt.Fprintf(out, "rolled back %s %s\n", reverted.Version, reverted.Name)
		return err
	case "status":
		states, err := db.MigrationStatus(ctx)
		if err != nil {
			return err
		}
		for _, st := range states {
			applied := "pending"
			if st.Applied() {
				applied = st.AppliedAt.UTC().Format(time.RFC3339)
			}
			if _, err := fmt.Fprintf(out, "%s  %-12s %s\n", st.Version, st.Name, applied); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("migrate: unknown action %q (want up, down or status)", args[0])
	}
}
