// Command signup is a terminal client for the activity sign-up service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nomis52/signup/buildinfo"
	"github.com/nomis52/signup/clients/signupclient"
	"github.com/nomis52/signup/config"
	"github.com/nomis52/signup/controller"
	"github.com/nomis52/signup/logging"
	"github.com/nomis52/signup/metrics"
	"github.com/nomis52/signup/refresh"
	"github.com/nomis52/signup/tui"
	"github.com/nomis52/signup/view"
)

type Args struct {
	ConfigPath string
	APIURL     string
	Version    bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	args := parseArgs()
	if args.Version {
		fmt.Println(buildinfo.Get())
		return nil
	}

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	// The screen belongs to the UI; terminal logs go to the diagnostics pane instead.
	if cfg.Logging.WritesToTerminal() {
		cfg.Logging.Output = logging.OutputDiscard
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Close()

	collector := logging.NewLogCollector()
	loggers := logging.NewChannelLoggers(logger.Logger, collector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api, err := signupclient.New(cfg.API.BaseURL, signupclient.WithLogger(loggers.Logger("api")))
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}

	var reg metrics.Registry = metrics.NopRegistry{}
	pushDone := make(chan struct{})
	if cfg.Monitoring.VictoriaMetricsURL != "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		push := metrics.NewPushRegistry(metrics.PushConfig{
			URL:      cfg.Monitoring.VictoriaMetricsURL,
			Prefix:   cfg.Monitoring.MetricsPrefix,
			Job:      cfg.Monitoring.JobName,
			Instance: hostname,
			Logger:   loggers.Logger("metrics"),
		})
		reg = push
		go func() {
			defer close(pushDone)
			push.Start(ctx, cfg.Monitoring.PushInterval)
		}()
	} else {
		close(pushDone)
	}

	m, err := controller.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	changes := tui.NewChanges()
	page := view.NewPage(changes.Notify)
	ctrl, err := controller.New(api, page.Surfaces(),
		controller.WithRequestTimeout(cfg.API.Timeout),
		controller.WithMessageTTL(cfg.UI.MessageTTL),
		controller.WithLoggerFactory(loggers.Logger),
		controller.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("failed to create controller: %w", err)
	}
	defer ctrl.Close()

	if cfg.Refresh.Schedule != "" {
		trigger, err := refresh.NewTrigger(cfg.Refresh.Schedule, ctrl, loggers.Logger("refresh"))
		if err != nil {
			return err
		}
		trigger.Start(ctx)
	}

	logger.Info("signup started", "api", cfg.API.BaseURL, "version", buildinfo.Get().Version)

	model := tui.New(ctx, ctrl, page, changes,
		tui.WithLogCollector(collector),
		tui.WithLogger(loggers.Logger("tui")),
	)
	err = tui.Run(ctx, model)

	stop()
	<-pushDone
	return err
}

func loadConfig(args Args) (config.Config, error) {
	if args.ConfigPath == "" {
		cfg := config.Config{API: config.APIConfig{BaseURL: args.APIURL}}
		cfg.SetDefaults()
		if err := cfg.Validate(); err != nil {
			return cfg, fmt.Errorf("either --config or a valid --api is required: %w", err)
		}
		return cfg, nil
	}

	cfg, err := config.LoadConfig(args.ConfigPath)
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}
	if args.APIURL != "" {
		cfg.API.BaseURL = args.APIURL
		if err := cfg.Validate(); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func parseArgs() Args {
	configPath := flag.String("config", "", "Path to config file")
	configPathShort := flag.String("c", "", "Path to config file (shorthand)")
	apiURL := flag.String("api", "", "Activities API base URL, overrides api.base_url")
	version := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nSignup - Mergington High School activity sign-up in the terminal\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --api http://localhost:8000\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -c signup.yaml\n", os.Args[0])
	}

	flag.Parse()

	path := *configPath
	if path == "" && *configPathShort != "" {
		path = *configPathShort
	}

	return Args{
		ConfigPath: path,
		APIURL:     *apiURL,
		Version:    *version,
	}
}
