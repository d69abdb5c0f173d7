package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tlsdir/internal/infra/buildinfo"
	"github.com/yndnr/tlsdir/internal/infra/confloader"
	"github.com/yndnr/tlsdir/internal/infra/shutdown"
	"github.com/yndnr/tlsdir/internal/infra/tlsroots"
	"github.com/yndnr/tlsdir/internal/server/config"
	"github.com/yndnr/tlsdir/internal/server/httpserver"
	"github.com/yndnr/tlsdir/internal/server/static"
	"github.com/yndnr/tlsdir/internal/telemetry/logger"
	"github.com/yndnr/tlsdir/internal/telemetry/metric"
)

// certExpiryWarning is how close to expiry a loaded certificate starts
// producing warnings.
const certExpiryWarning = 14 * 24 * time.Hour

// ServeCommand creates the serve command.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve the document root over HTTPS (default command)",
		Flags:  serveFlags(),
		Action: serveAction,
	}
}

// serveFlags are accepted by serve and by the application itself.
// Each flag maps to one configuration key and only overrides it when set.
func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML configuration file",
			EnvVars: []string{"TLSDIR_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "bind",
			Usage: "Interface address to bind (empty for all interfaces)",
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "TCP port to listen on",
			Value:   config.DefaultPort,
		},
		&cli.StringFlag{
			Name:  "cert",
			Usage: "PEM certificate chain file",
			Value: config.DefaultCertFile,
		},
		&cli.StringFlag{
			Name:  "key",
			Usage: "PEM private key file",
			Value: config.DefaultKeyFile,
		},
		&cli.StringFlag{
			Name:    "root",
			Aliases: []string{"r"},
			Usage:   "Document root directory",
			Value:   config.DefaultRoot,
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "Plain HTTP address for /metrics (empty disables it)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
			Value: config.DefaultLogLevel,
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "Log format: json, text",
			Value: config.DefaultLogFormat,
		},
	}
}

// flagKeys maps serve flags to configuration keys.
var flagKeys = map[string]string{
	"bind":         "server.bind",
	"port":         "server.port",
	"cert":         "tls.cert_file",
	"key":          "tls.key_file",
	"root":         "static.root",
	"metrics-addr": "metrics.addr",
	"log-level":    "log.level",
	"log-format":   "log.format",
}

// flagOverrides collects the explicitly set serve flags as configuration
// overrides. Defaults are left to the configuration layers.
func flagOverrides(c *cli.Context) map[string]any {
	overrides := make(map[string]any)
	for flag, key := range flagKeys {
		if !c.IsSet(flag) {
			continue
		}
		if flag == "port" {
			overrides[key] = c.Int(flag)
		} else {
			overrides[key] = c.String(flag)
		}
	}
	return overrides
}

func serveAction(c *cli.Context) error {
	if c.Args().Present() {
		return fmt.Errorf("unexpected argument %q", c.Args().First())
	}

	overrides := flagOverrides(c)
	cfg, err := loadConfig(c.String("config"), overrides)
	if err != nil {
		return err
	}

	return runServer(cfg, serveOptions{
		Stdout:     c.App.Writer,
		Stderr:     c.App.ErrWriter,
		ConfigFile: c.String("config"),
		Overrides:  overrides,
		Shutdown:   shutdown.NewHandler(cfg.Server.ShutdownTimeout),
	})
}

// serveOptions carries process wiring for runServer.
type serveOptions struct {
	// Stdout receives the startup line.
	Stdout io.Writer
	// Stderr receives structured logs.
	Stderr io.Writer

	// ConfigFile is watched for log level changes when set.
	ConfigFile string
	Overrides  map[string]any

	// Shutdown is waited on; Trigger it to stop the server.
	Shutdown *shutdown.Handler
}

// runServer starts the HTTPS file server and blocks until shutdown.
func runServer(cfg *config.ServerConfig, opts serveOptions) error {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	sh := opts.Shutdown
	if sh == nil {
		sh = shutdown.NewHandler(cfg.Server.ShutdownTimeout)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: opts.Stderr,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	info := buildinfo.Get()
	log.Info("starting tlsdir",
		"version", info.Version,
		"commit", info.Commit,
		"root", cfg.Static.Root,
		"config", opts.ConfigFile)

	reg := metric.NewRegistry()
	reg.SetBuildInfo(info.Version, info.Commit, info.GoVersion)

	minVersion, err := tlsroots.ParseMinVersion(cfg.TLS.MinVersion)
	if err != nil {
		return err
	}

	certs, err := tlsroots.NewWatcher(cfg.TLS.CertFile, cfg.TLS.KeyFile,
		tlsroots.WithLogger(log.Slog()),
		tlsroots.WithReloadHook(reg.RecordCertReload),
	)
	if err != nil {
		return fmt.Errorf("load certificate: %w", err)
	}
	defer certs.Stop()
	checkCertExpiry(log, certs.NotAfter(), time.Now())
	if err := reg.Register(metric.NewCertCollector(certs.NotAfter)); err != nil {
		return fmt.Errorf("register certificate metrics: %w", err)
	}

	root, err := static.OpenRoot(cfg.Static.Root)
	if err != nil {
		return fmt.Errorf("open document root: %w", err)
	}
	defer root.Close()

	files := static.NewHandler(root, static.Config{
		IndexFiles: cfg.Static.IndexFiles,
		Listing:    cfg.Static.Listing,
		ETag:       cfg.Static.ETag,
	})

	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Files:     files,
		Logger:    log,
		Metrics:   reg,
		AccessLog: cfg.Log.Access,
		RateLimit: float64(cfg.Server.RateLimit),
		RateBurst: cfg.Server.RateBurst,
	})

	srv := httpserver.New(httpserver.Config{
		Addr:              cfg.ListenAddr(),
		TLSConfig:         tlsroots.ServerTLSConfig(certs.GetCertificate, minVersion),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
		Logger:            log,
		ConnState:         reg.ConnState,
		OnHandshakeError:  reg.IncHandshakeError,
	}, router)

	var metricsSrv *httpserver.Server
	if cfg.Metrics.Addr != "" {
		metricsSrv = httpserver.New(httpserver.Config{
			Addr:              cfg.Metrics.Addr,
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
			IdleTimeout:       cfg.Server.IdleTimeout,
			Logger:            log.With("listener", "metrics"),
		}, httpserver.NewMetricsRouter(reg, log))
		if err := metricsSrv.Listen(); err != nil {
			return fmt.Errorf("listen metrics: %w", err)
		}
	}

	if err := srv.Listen(); err != nil {
		if metricsSrv != nil {
			metricsSrv.Shutdown(context.Background())
		}
		return fmt.Errorf("listen: %w", err)
	}

	// Hooks run in reverse: stop accepting files first, watchers last.
	if cfg.TLS.Reload {
		certs.StartAsync()
	}
	if opts.ConfigFile != "" {
		cw, err := watchConfig(log, cfg, opts)
		if err != nil {
			log.Warn("config file will not be watched", "error", err)
		} else {
			sh.OnShutdown(func(ctx context.Context) error {
				return cw.Stop()
			})
		}
	}
	serveErr := make(chan error, 2)
	if metricsSrv != nil {
		sh.OnShutdown(func(ctx context.Context) error {
			log.Info("shutting down metrics server")
			return metricsSrv.Shutdown(ctx)
		})
		go serve(metricsSrv, sh, serveErr)
		log.Info("metrics server listening", "addr", metricsSrv.Addr().String())
	}
	sh.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down HTTPS server")
		return srv.Shutdown(ctx)
	})

	fmt.Fprintf(opts.Stdout, "Starting HTTPS server on %s...\n", srv.Addr())
	go serve(srv, sh, serveErr)
	log.Info("HTTPS server listening",
		"addr", srv.Addr().String(),
		"tls_min_version", cfg.TLS.MinVersion,
		"cert_not_after", certs.NotAfter())

	if err := sh.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	default:
	}

	if sig := sh.Signal(); sig != nil {
		log.Info("server stopped gracefully", "signal", sig.String())
	} else {
		log.Info("server stopped gracefully")
	}
	return nil
}

// serve runs s until it is shut down; an unexpected error stops the process.
func serve(s *httpserver.Server, sh *shutdown.Handler, errs chan<- error) {
	if err := s.Serve(); err != nil {
		errs <- err
		sh.Trigger()
	}
}

// checkCertExpiry logs when the served certificate is expired or about to.
func checkCertExpiry(log logger.Logger, notAfter, now time.Time) {
	if notAfter.IsZero() {
		return
	}
	remaining := notAfter.Sub(now)
	switch {
	case remaining <= 0:
		log.Error("certificate has expired", "not_after", notAfter)
	case remaining < certExpiryWarning:
		log.Warn("certificate expires soon",
			"not_after", notAfter,
			"remaining", remaining.Round(time.Minute).String())
	}
}

// loadConfig loads configuration from defaults, file, environment and
// flag overrides, then validates it.
func loadConfig(configFile string, overrides map[string]any) (*config.ServerConfig, error) {
	cfg, err := readConfig(configFile, overrides)
	if err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// readConfig is loadConfig without validation.
func readConfig(configFile string, overrides map[string]any) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{confloader.WithOverrides(overrides)}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}

// watchConfig re-reads the configuration file when it changes. Only
// log.level is applied live; other changes are reported and ignored.
func watchConfig(log logger.Logger, current *config.ServerConfig, opts serveOptions) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log.Slog()))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(opts.ConfigFile); err != nil {
		w.Stop()
		return nil, err
	}

	w.OnChange(func(path string) {
		next, err := loadConfig(path, opts.Overrides)
		if err != nil {
			log.Error("config reload failed", "path", path, "error", err)
			return
		}
		applyConfig(log, current, next)
	})
	w.StartAsync()

	return w, nil
}

// applyConfig applies the live-reloadable part of next.
func applyConfig(log logger.Logger, current, next *config.ServerConfig) {
	level := strings.ToLower(next.Log.Level)
	if level != "" && level != logger.GetLevel() {
		if err := logger.SetLevel(level); err != nil {
			log.Error("config reload failed", "error", err)
			return
		}
		log.Info("log level changed", "level", logger.GetLevel())
	}

	rest := *next
	rest.Log.Level = current.Log.Level
	if !reflect.DeepEqual(&rest, current) {
		log.Warn("configuration changed; restart tlsdir to apply changes other than log.level")
	}
}
