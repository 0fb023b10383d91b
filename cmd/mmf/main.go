package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/burdettadam/marty-microservices-framework-sub004/internal/auditlog"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/config"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/eventbus"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/health"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/isolation"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/markdown"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/metrics"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/plugin"
	"github.com/burdettadam/marty-microservices-framework-sub004/internal/plugin/discovery"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"mmf.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Run struct{} `cmd:"" help:"Run the plugin host: load all plugins and serve until interrupted"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Discover struct{} `cmd:"" help:"Discover plugins without loading them"`

	Plugins struct {
		History bool `help:"Show recorded lifecycle transitions (requires audit journal)"`
	} `cmd:"" help:"List discovered plugins and their metadata"`

	Docs struct {
		Plugin string `arg:"" help:"Plugin name to document"`
		HTML   bool   `help:"Render the page as HTML instead of Markdown"`
	} `cmd:"" help:"Print the documentation page for a plugin"`
}

func main() {
	ctx := kong.Parse(&CLI)

	switch ctx.Command() {
	case "init":
		setupLogging(CLI.Verbose, "info")
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Configuration written", "path", CLI.Config)
		return
	}

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		setupLogging(CLI.Verbose, "info")
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	setupLogging(CLI.Verbose, cfg.Logging.Level)

	switch ctx.Command() {
	case "run":
		if err := runHost(cfg); err != nil {
			slog.Error("Plugin host failed", "error", err)
			os.Exit(1)
		}
	case "discover":
		if err := runDiscover(cfg); err != nil {
			slog.Error("Discover failed", "error", err)
			os.Exit(1)
		}
	case "plugins":
		if err := runPlugins(cfg, CLI.Plugins.History); err != nil {
			slog.Error("Plugins failed", "error", err)
			os.Exit(1)
		}
	case "docs <plugin>":
		if err := runDocs(cfg, CLI.Docs.Plugin, CLI.Docs.HTML); err != nil {
			slog.Error("Docs failed", "error", err)
			os.Exit(1)
		}
	}
}

func setupLogging(verbose bool, level string) {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))
}

// newDiscoverer builds the discovery chain: local manifest scan, plus the
// git registry when one is configured.
func newDiscoverer(cfg *config.Config, table *discovery.Table) plugin.Discoverer {
	scanner := discovery.NewScanner(table)
	if cfg.Registry.URL == "" {
		return scanner
	}
	registry := discovery.NewGitRegistry(cfg.Registry.URL, cfg.Registry.Branch, cfg.Registry.CacheDir, table)
	return discovery.NewMulti(scanner, registry)
}

func limitsFromConfig(cfg *config.Config) isolation.ResourceLimits {
	limits := isolation.DefaultLimits()
	if cfg.Isolation.MaxMemoryBytes > 0 {
		limits.MaxMemoryBytes = cfg.Isolation.MaxMemoryBytes
	}
	if cfg.Isolation.MaxCPUTime > 0 {
		limits.MaxCPUTime = cfg.Isolation.MaxCPUTime
	}
	if cfg.Isolation.MaxThreads > 0 {
		limits.MaxThreads = cfg.Isolation.MaxThreads
	}
	if cfg.Isolation.MaxFileHandles > 0 {
		limits.MaxFileHandles = cfg.Isolation.MaxFileHandles
	}
	limits.AllowedNamespaces = cfg.Isolation.AllowedNamespaces
	limits.BlockedNamespaces = cfg.Isolation.BlockedNamespaces
	return limits
}

func runHost(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		registry := prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(registry)

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.HTTPHandler(registry))
		metricsServer = &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
		go func() {
			slog.Info("Metrics endpoint listening", "addr", cfg.Metrics.Listen)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	bus := eventbus.NewBus(recorder)

	var bridge *eventbus.NATSBridge
	if cfg.Events.NATS.Enabled {
		var err error
		bridge, err = eventbus.NewNATSBridge(cfg.Events.NATS.URL, cfg.Events.NATS.Subject)
		if err != nil {
			return fmt.Errorf("failed to create NATS bridge: %w", err)
		}
		defer bridge.Close()
		bus.AttachBridge(bridge)
	}

	var journal plugin.TransitionJournal
	if cfg.Audit.Enabled {
		sqlJournal, err := auditlog.NewSQLiteJournal(cfg.Audit.Path)
		if err != nil {
			return fmt.Errorf("failed to open audit journal: %w", err)
		}
		defer sqlJournal.Close()
		journal = sqlJournal
	}

	table := discovery.NewTable()
	scanner := discovery.NewScanner(table)

	manager := plugin.NewManager(plugin.Options{
		Config:     cfg,
		Logger:     slog.Default(),
		Recorder:   recorder,
		Bus:        bus,
		Isolation:  isolation.NewManager(limitsFromConfig(cfg), !cfg.Isolation.Enabled),
		Discoverer: newDiscoverer(cfg, table),
		Journal:    journal,
	})

	if err := manager.LoadAllPlugins(ctx, cfg.PluginPaths); err != nil {
		return fmt.Errorf("failed to bring plugins up: %w", err)
	}

	var monitor *health.Monitor
	if cfg.Health.Enabled {
		var err error
		monitor, err = health.NewMonitor(manager, bus, recorder, cfg.Health.DefaultInterval)
		if err != nil {
			return fmt.Errorf("failed to create health monitor: %w", err)
		}
		if err := monitor.Start(ctx); err != nil {
			return fmt.Errorf("failed to start health monitor: %w", err)
		}
	}

	if len(cfg.PluginPaths) > 0 {
		watcher, err := discovery.NewWatcher(scanner, cfg.PluginPaths, func(ctx context.Context, descriptors []plugin.Descriptor) {
			bringUpNewPlugins(ctx, manager, monitor, descriptors)
		})
		if err != nil {
			slog.Warn("Hot plugin discovery unavailable", "error", err)
		} else if err := watcher.Start(ctx); err != nil {
			slog.Warn("Hot plugin discovery disabled", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	slog.Info("Plugin host running", "plugins", len(manager.Plugins()))
	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping plugins...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if monitor != nil {
		if err := monitor.Stop(); err != nil {
			slog.Warn("Failed to stop health monitor", "error", err)
		}
	}
	manager.StopAllPlugins(stopCtx)
	if metricsServer != nil {
		if err := metricsServer.Shutdown(stopCtx); err != nil {
			slog.Warn("Failed to stop metrics server", "error", err)
		}
	}

	slog.Info("Plugin host stopped")
	return nil
}

// bringUpNewPlugins loads, initializes and starts descriptors the manager
// does not know yet. Failures affect only the plugin in question.
func bringUpNewPlugins(ctx context.Context, manager *plugin.Manager, monitor *health.Monitor, descriptors []plugin.Descriptor) {
	for _, desc := range descriptors {
		name := desc.Metadata.Name
		if _, known := manager.StateOf(name); known {
			continue
		}

		slog.Info("New plugin discovered", "plugin", name, "location", desc.Location)
		if err := manager.LoadPlugin(ctx, desc); err != nil {
			slog.Warn("Failed to load discovered plugin", "plugin", name, "error", err)
			continue
		}
		if err := manager.InitializePlugin(ctx, name); err != nil {
			slog.Warn("Failed to initialize discovered plugin", "plugin", name, "error", err)
			continue
		}
		if err := manager.StartPlugin(ctx, name); err != nil {
			slog.Warn("Failed to start discovered plugin", "plugin", name, "error", err)
		}
	}

	if monitor != nil {
		if err := monitor.Refresh(ctx); err != nil {
			slog.Warn("Failed to refresh health monitor", "error", err)
		}
	}
}

func runDiscover(cfg *config.Config) error {
	ctx := context.Background()
	descriptors, err := newDiscoverer(cfg, discovery.NewTable()).Discover(ctx, cfg.PluginPaths)
	if err != nil {
		return err
	}

	slog.Info("Discovery completed", "plugins", len(descriptors))
	for _, desc := range descriptors {
		slog.Info("Plugin discovered",
			"name", desc.Metadata.Name,
			"version", desc.Metadata.Version,
			"kind", string(desc.Kind),
			"location", desc.Location,
			"dependencies", desc.Metadata.Dependencies)
	}
	return nil
}

func runPlugins(cfg *config.Config, history bool) error {
	ctx := context.Background()
	descriptors, err := newDiscoverer(cfg, discovery.NewTable()).Discover(ctx, cfg.PluginPaths)
	if err != nil {
		return err
	}

	for _, desc := range descriptors {
		fmt.Printf("%s\t%s\t%s\n", desc.Metadata.Name, desc.Metadata.Version, desc.Metadata.Description)
	}

	if !history {
		return nil
	}
	if !cfg.Audit.Enabled {
		return fmt.Errorf("lifecycle history requires the audit journal (audit.enabled)")
	}

	journal, err := auditlog.NewSQLiteJournal(cfg.Audit.Path)
	if err != nil {
		return fmt.Errorf("failed to open audit journal: %w", err)
	}
	defer journal.Close()

	transitions, err := journal.Recent(ctx, 100)
	if err != nil {
		return err
	}
	for _, tr := range transitions {
		line := fmt.Sprintf("%s\t%s\t%s -> %s",
			tr.Timestamp.Format(time.RFC3339), tr.Plugin, tr.FromState, tr.ToState)
		if tr.Cause != "" {
			line += "\t" + tr.Cause
		}
		fmt.Println(line)
	}
	return nil
}

func runDocs(cfg *config.Config, pluginName string, asHTML bool) error {
	ctx := context.Background()
	descriptors, err := newDiscoverer(cfg, discovery.NewTable()).Discover(ctx, cfg.PluginPaths)
	if err != nil {
		return err
	}

	for _, desc := range descriptors {
		if desc.Metadata.Name != pluginName {
			continue
		}
		page := markdown.BuildPage(desc)
		if asHTML {
			html, err := page.RenderHTML()
			if err != nil {
				return err
			}
			fmt.Print(html)
			return nil
		}
		fmt.Print(page.Markdown)
		return nil
	}
	return fmt.Errorf("plugin '%s' not found", pluginName)
}
