// Command signup-server serves the activity sign-up page over HTTP.
//
// Usage:
//
//	signup-server -c signup.yaml
//	signup-server hash-password -auth-file /etc/signup/users -user front-desk
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nomis52/signup/auth"
	"github.com/nomis52/signup/buildinfo"
	"github.com/nomis52/signup/clients/signupclient"
	"github.com/nomis52/signup/config"
	"github.com/nomis52/signup/controller"
	"github.com/nomis52/signup/logging"
	"github.com/nomis52/signup/metrics"
	"github.com/nomis52/signup/server"
	"github.com/nomis52/signup/view"
)

type Args struct {
	ConfigPath string
	Version    bool
}

func main() {
	var err error
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		err = hashPassword(os.Args[2:], os.Stdin, os.Stdout)
	} else {
		err = run()
	}
	if err != nil {
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
	if args.ConfigPath == "" {
		return fmt.Errorf("config flag (-c or --config) is required")
	}

	cfg, err := config.LoadConfig(args.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Close()

	collector := logging.NewLogCollector()
	loggers := logging.NewChannelLoggers(logger.Logger, collector)

	reg, err := metrics.NewScrapeRegistry(cfg.Monitoring.MetricsPrefix)
	if err != nil {
		return fmt.Errorf("failed to create metrics registry: %w", err)
	}
	m, err := controller.NewMetrics(reg)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	api, err := signupclient.New(cfg.API.BaseURL, signupclient.WithLogger(loggers.Logger("api")))
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}

	page := view.NewPage(nil)
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

	opts, err := serverOptions(cfg, reg, collector, loggers)
	if err != nil {
		return err
	}
	srv, err := server.New(ctrl, page, loggers.Logger("server"), opts...)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}

func serverOptions(cfg config.Config, reg *metrics.ScrapeRegistry, collector *logging.LogCollector, loggers *logging.ChannelLoggers) ([]server.Option, error) {
	opts := []server.Option{
		server.WithListenAddr(cfg.Listener.Addr),
		server.WithRateLimit(cfg.Listener.RateLimit, cfg.Listener.RateBurst),
		server.WithMetrics(reg),
		server.WithLogCollector(collector),
		server.WithAPIURL(cfg.API.BaseURL),
	}

	if cfg.Refresh.Schedule != "" {
		opts = append(opts, server.WithRefresh(cfg.Refresh.Schedule))
	}
	if cfg.Listener.CSRFKey != "" {
		key, err := cfg.Listener.CSRFKeyBytes()
		if err != nil {
			return nil, err
		}
		opts = append(opts, server.WithCSRFKey(key))
	}
	if cfg.Listener.InsecureCookies {
		opts = append(opts, server.WithInsecureCookies())
	}
	if len(cfg.Listener.TrustedOrigins) > 0 {
		opts = append(opts, server.WithTrustedOrigins(cfg.Listener.TrustedOrigins...))
	}
	if cfg.Listener.TLSCert != "" {
		opts = append(opts, server.WithTLS(cfg.Listener.TLSCert, cfg.Listener.TLSKey))
	}
	if cfg.Listener.AuthFile != "" {
		a, err := auth.LoadFile(cfg.Listener.AuthFile, auth.WithLogger(loggers.Logger("auth")))
		if err != nil {
			return nil, err
		}
		opts = append(opts, server.WithAuthenticator(a))
	}
	return opts, nil
}

func parseArgs() Args {
	configPath := flag.String("config", "", "Path to config file")
	configPathShort := flag.String("c", "", "Path to config file (shorthand)")
	version := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s hash-password [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nSignup Server - Mergington High School activity sign-up web interface\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --config /etc/signup/signup.yaml\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s hash-password -auth-file /etc/signup/users -user front-desk\n", os.Args[0])
	}

	flag.Parse()

	path := *configPath
	if path == "" && *configPathShort != "" {
		path = *configPathShort
	}

	return Args{
		ConfigPath: path,
		Version:    *version,
	}
}
