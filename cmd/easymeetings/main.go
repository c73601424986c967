package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/djlord-it/easy-meetings/internal/api"
	"github.com/djlord-it/easy-meetings/internal/circuitbreaker"
	"github.com/djlord-it/easy-meetings/internal/config"
	"github.com/djlord-it/easy-meetings/internal/cron"
	"github.com/djlord-it/easy-meetings/internal/domain"
	"github.com/djlord-it/easy-meetings/internal/generator"
	"github.com/djlord-it/easy-meetings/internal/holiday"
	"github.com/djlord-it/easy-meetings/internal/lock"
	"github.com/djlord-it/easy-meetings/internal/logging"
	"github.com/djlord-it/easy-meetings/internal/metrics"
	"github.com/djlord-it/easy-meetings/internal/planner"
	"github.com/djlord-it/easy-meetings/internal/provider"
	"github.com/djlord-it/easy-meetings/internal/store/postgres"
	"github.com/djlord-it/easy-meetings/internal/trigger"

	_ "github.com/lib/pq"
)

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd, args := os.Args[1], os.Args[2:]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "generate":
		os.Exit(runOnce(false))
	case "seed":
		os.Exit(runOnce(true))
	case "plan":
		os.Exit(runPlan(args))
	case "holidays":
		os.Exit(runHolidays(args))
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`easymeetings - holiday-aware monthly meeting scheduler

Usage:
  easymeetings <command> [args]

Commands:
  serve           Start the daily trigger and the admin API
  generate        Complete past meetings and run one generation pass, then exit
  seed            Run the initial generation pass, then exit
  plan [YYYY-MM]  Print planned dates for every series (default: next month, no connections made)
  holidays [YYYY] Print observed federal holidays (default: current year)
  validate        Validate configuration (no connections made)
  config          Print effective configuration as JSON (secrets masked)
  version         Print version information

Environment Variables:
  DATABASE_URL              PostgreSQL connection string (required)
  HTTP_ADDR                 HTTP server address (default: ":8080")
  TIMEZONE                  Meeting timezone (default: "America/New_York")
  TRIGGER_CRON              Generation cadence (default: "0 6 * * *")
  SEED_ON_START             Run one generation pass at startup (default: "false")

  SERIES_FILE               YAML file with series and overrides (default: built-in series;
                            see examples/series.thursday.yaml for the Thursday set)
  CUSTOM_SERIES_RULE        Rule of the built-in custom series (default: "fourth monday")
  CUSTOM_SERIES_TIME        Start time of the built-in custom series (default: "19:00")

  PROVIDER_BASE_URL         Meetings API base URL (default: "https://api.zoom.us/v2")
  PROVIDER_USER_ID          Hosting user (default: "me")
  PROVIDER_API_KEY          API key (JWT issuer)
  PROVIDER_API_SECRET       API secret (JWT signing key)
  PROVIDER_AUTO_RECORDING   none, local or cloud (default: "cloud")
  PROVIDER_TIMEOUT          Per-call timeout (default: "10s")

  DB_OP_TIMEOUT             Database operation timeout (default: "5s")
  DB_MAX_OPEN_CONNS         Max open database connections (default: "10")
  DB_MAX_IDLE_CONNS         Max idle database connections (default: "2")
  DB_CONN_MAX_LIFETIME      Max connection lifetime (default: "30m")
  DB_CONN_MAX_IDLE_TIME     Max connection idle time (default: "5m")
  MIGRATE_ON_START          Apply the embedded schema at startup (default: "true")

  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")
  METRICS_PORT              Separate metrics port (default: serve on HTTP_ADDR)

  CIRCUIT_BREAKER_THRESHOLD Consecutive provider failures before opening, 0 disables (default: "5")
  CIRCUIT_BREAKER_COOLDOWN  Time before a half-open probe (default: "2m")

  RUN_LOCK                  postgres, redis or none (default: "postgres")
  RUN_LOCK_KEY              Lock name shared by all instances (default: "easymeetings:generate")
  RUN_LOCK_TTL              Redis lock expiry (default: "10m")
  REDIS_ADDR                Redis address (required for RUN_LOCK=redis)

  LOG_LEVEL                 debug, info, warn or error (default: "info")
  LOG_FORMAT                json or console (default: "json")`)
}

// app holds the wired components shared by serve, generate and seed.
type app struct {
	db      *sql.DB
	store   *postgres.Store
	gen     *generator.Generator
	cal     *holiday.Calendar
	metrics *metrics.PrometheusSink // nil when disabled
	logger  *zap.Logger
}

func (a *app) close() {
	a.db.Close()
	_ = a.logger.Sync()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", "easymeetings")), nil
}

// setup validates configuration and wires the store, provider and generator.
// It returns an exit code when setup fails.
func setup(ctx context.Context, cfg config.Config) (*app, int) {
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return nil, exitInvalidConfig
	}

	// Bad series entries are fatal at startup. At run time the same entries
	// are only skipped, so a later edit cannot stop the other series.
	if err := checkSeries(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return nil, exitInvalidConfig
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		return nil, exitInvalidConfig
	}
	logConfigWarnings(cfg, logger)

	loc, err := cfg.Location()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return nil, exitInvalidConfig
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		return nil, exitRuntimeError
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	logger.Info("db pool configured",
		zap.Int("max_open", cfg.DBMaxOpenConns),
		zap.Int("max_idle", cfg.DBMaxIdleConns),
		zap.Duration("max_lifetime", cfg.DBConnMaxLifetime),
		zap.Duration("max_idle_time", cfg.DBConnMaxIdleTime),
	)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		return nil, exitRuntimeError
	}

	store := postgres.New(db, cfg.DBOpTimeout)
	if cfg.MigrateOnStart {
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			fmt.Fprintf(os.Stderr, "failed to apply schema: %v\n", err)
			return nil, exitRuntimeError
		}
		logger.Info("schema applied")
	}

	var sink *metrics.PrometheusSink
	if cfg.MetricsEnabled {
		sink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer, logger.Named("metrics"))
	}

	var meetings generator.MeetingProvider
	client := provider.New(provider.Config{
		BaseURL:       cfg.ProviderBaseURL,
		UserID:        cfg.ProviderUserID,
		APIKey:        cfg.ProviderAPIKey,
		APISecret:     cfg.ProviderAPISecret,
		AutoRecording: cfg.ProviderAutoRecording,
		Timeout:       cfg.ProviderTimeout,
	}, logger.Named("provider"))
	meetings = client
	if cfg.CircuitBreakerThreshold > 0 {
		guarded := provider.NewGuarded(client,
			circuitbreaker.New(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown),
			client.Host(),
		)
		if sink != nil {
			guarded = guarded.WithMetrics(sink)
		}
		meetings = guarded
		logger.Info("provider circuit breaker enabled",
			zap.Int("threshold", cfg.CircuitBreakerThreshold),
			zap.Duration("cooldown", cfg.CircuitBreakerCooldown),
		)
	}

	cal := holiday.New()
	gen := generator.New(
		store,
		meetings,
		planner.New(cal),
		config.NewSeriesSource(cfg),
		loc,
		logger.Named("generator"),
	)
	if sink != nil {
		gen = gen.WithMetrics(sink)
	}

	switch cfg.RunLock {
	case config.RunLockPostgres:
		gen = gen.WithRunLock(lock.NewAdvisory(db, lock.KeyFromName(cfg.RunLockKey), logger.Named("lock")))
	case config.RunLockRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		gen = gen.WithRunLock(lock.NewRedis(rdb, cfg.RunLockKey, cfg.RunLockTTL, logger.Named("lock")))
	}
	logger.Info("run lock configured", zap.String("backend", cfg.RunLock), zap.String("key", cfg.RunLockKey))

	return &app{db: db, store: store, gen: gen, cal: cal, metrics: sink, logger: logger}, exitSuccess
}

// checkSeries loads the series set strictly: any bad entry is an error.
func checkSeries(ctx context.Context, cfg config.Config) error {
	if _, err := config.NewSeriesSource(cfg).Series(ctx); err != nil {
		return fmt.Errorf("series configuration error: %w", err)
	}
	return nil
}

func runServe() int {
	cfg := config.Load()

	a, code := setup(context.Background(), cfg)
	if a == nil {
		return code
	}
	defer a.close()
	logger := a.logger

	schedule, err := cron.NewParser().ParseInLocation(cfg.TriggerCron, a.gen.Location())
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	trig := trigger.New(trigger.Config{SeedOnStart: cfg.SeedOnStart}, schedule, a.gen, logger.Named("trigger"))
	if a.metrics != nil {
		trig = trig.WithMetrics(a.metrics)
	}

	apiHandler := api.NewHandler(a.gen, a.cal, logger.Named("api")).WithHealthChecker(a.db)

	mux := http.NewServeMux()
	mux.Handle("/", logging.Middleware(logger.Named("http"), apiHandler))

	var metricsServer *http.Server
	if a.metrics != nil {
		if cfg.MetricsPort == "" {
			mux.Handle(cfg.MetricsPath, promhttp.Handler())
			logger.Info("metrics enabled", zap.String("path", cfg.MetricsPath))
		} else {
			metricsMux := http.NewServeMux()
			metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
			metricsServer = &http.Server{
				Addr:              ":" + cfg.MetricsPort,
				Handler:           metricsMux,
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				logger.Info("metrics server listening", zap.String("port", cfg.MetricsPort), zap.String("path", cfg.MetricsPath))
				if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server error", zap.Error(err))
				}
			}()
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	triggerCtx, cancelTrigger := context.WithCancel(context.Background())
	var triggerWg sync.WaitGroup
	triggerWg.Add(1)
	go func() {
		defer triggerWg.Done()
		_ = trig.Run(triggerCtx)
	}()

	next := schedule.Next(time.Now())
	logger.Info("started",
		zap.String("version", version),
		zap.String("timezone", a.gen.Location().String()),
		zap.String("trigger_cron", cfg.TriggerCron),
		zap.Time("next_run", next),
		zap.String("http", cfg.HTTPAddr),
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	logger.Info("shutting down", zap.String("signal", received.String()))

	// Phase 1: stop the trigger; an in-flight run sees a cancelled context.
	cancelTrigger()
	triggerWg.Wait()
	logger.Info("trigger stopped")

	// Phase 2: stop HTTP servers with graceful shutdown.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", zap.Error(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown error", zap.Error(err))
		}
	}

	logger.Info("stopped")
	return exitSuccess
}

// runOnce performs one generation pass. Any series failure exits non-zero.
func runOnce(seed bool) int {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, code := setup(ctx, cfg)
	if a == nil {
		return code
	}
	defer a.close()

	var (
		report generator.Report
		err    error
	)
	if seed {
		report, err = a.gen.Seed(ctx)
	} else {
		report, err = a.gen.Run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		return exitRuntimeError
	}

	printReport(os.Stdout, report)
	if report.Failed() > 0 {
		return exitRuntimeError
	}
	return exitSuccess
}

func printReport(w io.Writer, report generator.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERIES\tOUTCOME\tDATE\tJOIN URL\tERROR")
	for _, r := range report.Results {
		date, join, errText := "-", "-", ""
		if r.Occurrence != nil {
			date = domain.FormatDate(r.Occurrence.Date)
			join = r.Occurrence.JoinURL
		}
		if r.Err != nil {
			errText = r.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.SeriesID, r.Outcome, date, join, errText)
	}
	tw.Flush()
	fmt.Fprintf(w, "created=%d skipped=%d failed=%d duration=%s\n",
		report.Created(), report.Skipped(), report.Failed(), report.Duration().Round(time.Millisecond))
}

// runPlan previews planned dates without touching the store or provider.
func runPlan(args []string) int {
	cfg := config.Load()
	if err := config.ValidateSchedule(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}
	loc, err := cfg.Location()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	month := domain.MonthOf(time.Now().In(loc)).Next()
	if len(args) > 0 {
		month, err = domain.ParseYearMonth(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid month: %v\n", err)
			return exitRuntimeError
		}
	}

	series, err := config.NewSeriesSource(cfg).Series(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "series configuration error: %v\n", err)
		return exitInvalidConfig
	}

	p := planner.New(holiday.New())
	failed := false
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERIES\tRULE\tNOMINAL\tDATE\tSTART\tTOPIC")
	for _, s := range series {
		plan, err := p.Plan(s, month)
		if err != nil {
			failed = true
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t%v\n", s.ID, s.Rule, err)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Rule,
			domain.FormatDate(plan.Nominal), domain.FormatDate(plan.Date),
			s.StartTime.On(plan.Date, loc).Format(time.RFC3339),
			generator.Topic(s.Name, plan.Date),
		)
	}
	tw.Flush()

	if failed {
		return exitRuntimeError
	}
	return exitSuccess
}

func runHolidays(args []string) int {
	year := time.Now().Year()
	if len(args) > 0 {
		y, err := strconv.Atoi(args[0])
		if err != nil || y < 1 {
			fmt.Fprintf(os.Stderr, "invalid year: %q\n", args[0])
			return exitRuntimeError
		}
		year = y
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OBSERVED\tDATE\tHOLIDAY")
	for _, h := range holiday.New().Holidays(year) {
		fmt.Fprintf(tw, "%s %s\t%s\t%s\n",
			h.Observed.Weekday().String()[:3], domain.FormatDate(h.Observed),
			domain.FormatDate(h.Date), h.Name)
	}
	tw.Flush()
	return exitSuccess
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}
	if err := checkSeries(context.Background(), cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("easymeetings version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
