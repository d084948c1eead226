package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-fermax-cloud/cloud"
	"github.com/jrsteele09/go-fermax-cloud/coordinator"
	"github.com/jrsteele09/go-fermax-cloud/internal/config"
	ferrors "github.com/jrsteele09/go-fermax-cloud/internal/errors"
	"github.com/jrsteele09/go-fermax-cloud/metrics"
	"github.com/jrsteele09/go-fermax-cloud/poller"
	"github.com/jrsteele09/go-fermax-cloud/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

// setupRetryDelay is the wait between setup attempts that failed for a
// reason other than bad credentials.
const setupRetryDelay = 30 * time.Second

type flags struct {
	configFile string
	envFile    string
	port       string
	interval   int
	logLevel   string
	check      bool
}

func main() {
	f, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := godotenv.Load(f.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "loading %s: %v\n", f.envFile, err)
		os.Exit(2)
	}

	cfg, err := config.New(config.WithFile(f.configFile), config.WithOverrides(f.overrides()))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	setupLogger(cfg)

	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if f.check {
		os.Exit(check(ctx, cfg))
	}

	for {
		err := run(ctx, cfg)
		if err == nil || ctx.Err() != nil {
			break
		}
		if errors.Is(err, ferrors.ErrAuth) {
			log.Fatal().Err(err).Msg("credentials rejected, update FERMAX_EMAIL and FERMAX_PASSWORD")
		}
		log.Error().Err(err).Msg("error running engine, restarting")
		time.Sleep(time.Second)
	}
	log.Info().Msg("engine stopped")
}

func parseFlags(args []string) (flags, error) {
	var f flags
	flagSet := pflag.NewFlagSet("fermaxd", pflag.ContinueOnError)
	flagSet.StringVarP(&f.configFile, "config", "c", "", "path to a YAML config file")
	flagSet.StringVar(&f.envFile, "env-file", ".env", "path to a .env file loaded into the environment")
	flagSet.StringVarP(&f.port, "port", "p", "", "HTTP listen port")
	flagSet.IntVarP(&f.interval, "interval", "i", 0, "polling interval in seconds (30-600)")
	flagSet.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flagSet.BoolVar(&f.check, "check", false, "validate the credentials and exit")
	if err := flagSet.Parse(args); err != nil {
		return flags{}, err
	}
	return f, nil
}

func (f flags) overrides() map[string]string {
	overrides := map[string]string{
		config.PortVar:     f.port,
		config.LogLevelVar: f.logLevel,
	}
	if f.interval != 0 {
		overrides[config.UpdateIntervalVar] = strconv.Itoa(f.interval)
	}
	return overrides
}

func setupLogger(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("app", cfg.GetAppName()).Logger()
}

func newClient(cfg config.Config, m *metrics.Collector) (*cloud.Client, error) {
	return cloud.New(
		cloud.Credentials{Email: cfg.GetEmail(), Password: cfg.GetPassword()},
		cloud.WithBaseURLs(cfg.GetOAuthBaseURL(), cfg.GetAPIBaseURL()),
		cloud.WithLogger(log.With().Str("component", "cloud").Logger()),
		cloud.WithMetrics(m),
	)
}

// check validates the credentials and maps the outcome onto an exit code.
func check(ctx context.Context, cfg config.Config) int {
	client, err := newClient(cfg, nil)
	if err != nil {
		log.Error().Err(err).Msg("cannot create client")
		return 1
	}
	problem, err := cloud.ValidateCredentials(ctx, client)
	if err != nil {
		log.Error().Err(err).Str("problem", problem).Msg("credential check failed")
		return 1
	}
	log.Info().Str("email", cfg.GetEmail()).Msg("credentials are valid")
	return 0
}

func run(ctx context.Context, cfg config.Config) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	interval, err := cfg.GetUpdateInterval()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	client, err := newClient(cfg, m)
	if err != nil {
		return err
	}

	options := []coordinator.Option{
		coordinator.WithLogger(log.With().Str("component", "coordinator").Logger()),
		coordinator.WithMetrics(m),
		coordinator.WithMaxParallel(cfg.GetMaxParallelFetches()),
	}
	if cfg.GetRetryEnabled() {
		backoff := cloud.DefaultBackoff()
		backoff.Logger = log.With().Str("component", "retry").Logger()
		options = append(options, coordinator.WithBackoff(backoff))
	}
	coord := coordinator.New(client, options...)

	displayAppname(cfg.GetAppName())

	if err := setup(ctx, client, coord); err != nil {
		return err
	}

	p := poller.New(coord, interval,
		poller.WithLogger(log.With().Str("component", "poller").Logger()),
		poller.WithoutInitialRefresh(),
	)
	srv := server.New(coord,
		server.WithEnv(cfg.GetEnv()),
		server.WithLogger(log.With().Str("component", "http").Logger()),
		server.WithRefreshTrigger(p),
		server.WithGatherer(registry),
	)
	if err := serve(ctx, p, srv, cfg.GetPort()); err != nil {
		return fmt.Errorf("[main run] http server: %w", err)
	}
	return nil
}

type backgroundRunner interface {
	Run(ctx context.Context)
}

type httpRunner interface {
	Run(ctx context.Context, addr string) error
}

// serve runs the poller for exactly as long as the HTTP server runs.
func serve(ctx context.Context, p backgroundRunner, srv httpRunner, addr string) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		p.Run(runCtx)
	}()

	err := srv.Run(runCtx, addr)
	cancel()
	<-stopped
	return err
}

// setup logs in and publishes the first snapshot. Rejected credentials end
// setup; anything else is retried until ctx is cancelled.
func setup(ctx context.Context, client *cloud.Client, coord *coordinator.Coordinator) error {
	for {
		err := client.Login(ctx)
		if err == nil {
			err = coord.Refresh(ctx)
		}
		if err == nil {
			return nil
		}
		if errors.Is(err, ferrors.ErrAuth) {
			return err
		}

		log.Warn().
			Err(err).
			Str("problem", cloud.CredentialProblem(err)).
			Dur("retry_in", setupRetryDelay).
			Msg("not ready, will retry")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(setupRetryDelay):
		}
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
