package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/mark3labs/mcp-go/server"
	"github.com/smazurov/effectnode/cmd"
	"github.com/smazurov/effectnode/internal/api"
	"github.com/smazurov/effectnode/internal/config"
	"github.com/smazurov/effectnode/internal/device"
	"github.com/smazurov/effectnode/internal/events"
	"github.com/smazurov/effectnode/internal/logging"
	"github.com/smazurov/effectnode/internal/metrics/collectors"
	"github.com/smazurov/effectnode/internal/metrics/exporters"
	"github.com/smazurov/effectnode/internal/output"
	"github.com/smazurov/effectnode/internal/systemd"
	"github.com/smazurov/effectnode/internal/tools"
	"github.com/smazurov/effectnode/internal/uart"
	"github.com/smazurov/effectnode/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Hardware settings
	HardwareFile  string `help:"Hardware descriptor file (registers, effects, axes)" default:"effects.toml" toml:"hardware.file" env:"HARDWARE_FILE"`
	HardwareWatch bool   `help:"Reload effect timing when the hardware file changes" default:"true" toml:"hardware.watch" env:"HARDWARE_WATCH"`

	// Effect runtime settings
	EffectsMaxTasks      int `help:"Maximum concurrently running effect tasks" default:"8" toml:"effects.max_tasks" env:"EFFECTS_MAX_TASKS"`
	EffectsStopTimeoutMs int `help:"How long Stop waits for a task before reaping it" default:"2000" toml:"effects.stop_timeout_ms" env:"EFFECTS_STOP_TIMEOUT_MS"`
	EffectsSettleDelayMs int `help:"Settle delay after a forced restart" default:"500" toml:"effects.settle_delay_ms" env:"EFFECTS_SETTLE_DELAY_MS"`

	// Feature toggles
	MetricsEnabled bool   `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`
	MCPEnabled     bool   `help:"Serve MCP tools on /mcp" default:"true" toml:"mcp.enabled" env:"MCP_ENABLED"`
	SystemdUnit    string `help:"Systemd unit of this service (empty disables service endpoints)" default:"effectnode.service" toml:"systemd.unit" env:"SYSTEMD_UNIT"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingEffects  string `help:"Effects logging level" default:"info" toml:"logging.effects" env:"LOGGING_EFFECTS"`
	LoggingOutput   string `help:"Output register logging level" default:"info" toml:"logging.output" env:"LOGGING_OUTPUT"`
	LoggingUART     string `help:"UART listener logging level" default:"info" toml:"logging.uart" env:"LOGGING_UART"`
	LoggingInfrared string `help:"Infrared logging level" default:"info" toml:"logging.infrared" env:"LOGGING_INFRARED"`
	LoggingDevice   string `help:"Board wiring logging level" default:"info" toml:"logging.device" env:"LOGGING_DEVICE"`
	LoggingTools    string `help:"MCP tools logging level" default:"info" toml:"logging.tools" env:"LOGGING_TOOLS"`
	LoggingAPI      string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"effects":  opts.LoggingEffects,
				"output":   opts.LoggingOutput,
				"uart":     opts.LoggingUART,
				"infrared": opts.LoggingInfrared,
				"device":   opts.LoggingDevice,
				"tools":    opts.LoggingTools,
				"api":      opts.LoggingAPI,
			},
		})

		logger := logging.GetLogger("main")

		// Create event bus for in-process event handling
		eventBus := events.New()
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(api.LogEvent(entry))
		})

		hw, err := config.LoadHardware(opts.HardwareFile)
		if err != nil {
			logger.Error("Failed to load hardware descriptor", "file", opts.HardwareFile, "error", err)
			os.Exit(1)
		}

		board, err := device.Build(hw, device.Options{
			Bus:         eventBus,
			Factory:     output.NewFactory(logging.GetLogger("output")),
			OpenPort:    uart.Open,
			MaxTasks:    int64(opts.EffectsMaxTasks),
			StopTimeout: time.Duration(opts.EffectsStopTimeoutMs) * time.Millisecond,
			SettleDelay: settleDelay(opts.EffectsSettleDelayMs),
			Logger:      logging.GetLogger("device"),
		})
		if err != nil {
			logger.Error("Failed to build board", "error", err)
			os.Exit(1)
		}

		apiOpts := &api.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			Board:        board,
			EventBus:     eventBus,
		}

		var collector *collectors.DeviceCollector
		if opts.MetricsEnabled {
			apiOpts.PrometheusHandler = exporters.HTTPHandler()
			collector = collectors.NewDeviceCollector(board.Effects(), board.Infrared())
		}

		if opts.MCPEnabled {
			mcpServer := tools.NewServer(board, version.Version, logging.GetLogger("tools"))
			apiOpts.MCPHandler = server.NewStreamableHTTPServer(mcpServer, server.WithEndpointPath("/mcp"))
		}

		var serviceManager *systemd.Manager
		if opts.SystemdUnit != "" {
			serviceManager, err = systemd.NewManager(context.Background(), opts.SystemdUnit, false)
			if err != nil {
				logger.Info("Systemd not reachable, service endpoints disabled", "error", err)
			} else {
				apiOpts.Service = serviceManager
			}
		}

		var watcher *config.Watcher[*config.Hardware]
		if opts.HardwareWatch {
			watcher = config.NewConfigWatcher(
				opts.HardwareFile,
				config.LoadHardware,
				logging.GetLogger("config"),
				config.WithErrorHandler[*config.Hardware](func(err error) {
					logger.Warn("Keeping previous hardware descriptor", "error", err)
				}),
			)
			watcher.OnReload(func(hw *config.Hardware) {
				board.ApplyEffects(hw)
			})
		}

		srv := api.NewServer(apiOpts)
		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			if startErr := board.Start(); startErr != nil {
				// Effects and motors still work without the IR listener
				logger.Warn("Board started with errors", "error", startErr)
			}

			if collector != nil {
				collector.Start(ctx)
			}

			if watcher != nil {
				if startErr := watcher.Start(); startErr != nil {
					logger.Warn("Failed to watch hardware file", "error", startErr)
				}
			}

			if _, notifyErr := systemd.Ready(); notifyErr != nil {
				logger.Warn("Failed to notify systemd", "error", notifyErr)
			}
			go systemd.RunWatchdog(ctx, logger)

			logger.Info("Starting HTTP server", "port", opts.Port, "version", version.String())
			if startErr := srv.Start(opts.Port); startErr != nil {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			_, _ = systemd.Stopping()

			if stopErr := srv.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if watcher != nil {
				if stopErr := watcher.Stop(); stopErr != nil {
					logger.Warn("Error stopping hardware watcher", "error", stopErr)
				}
			}
			if collector != nil {
				collector.Stop()
			}

			// Leave every output off after the HTTP server stops accepting commands
			if closeErr := board.Close(); closeErr != nil {
				logger.Error("Error closing board", "error", closeErr)
			}
			if serviceManager != nil {
				serviceManager.Close()
			}
			cancel()
		})
	})

	cli.Root().Use = "effectnode"
	cli.Root().Version = version.String()

	cli.Root().AddCommand(
		cmd.CreatePortsCmd(),
		cmd.CreateMCPCmd(),
		cmd.CreateEffectCmd(),
		cmd.CreateHardwareCmd(),
	)

	// Run the CLI
	cli.Run()
}

// settleDelay maps the configured milliseconds onto the controller option,
// where zero selects the default and a negative value disables the delay.
func settleDelay(ms int) time.Duration {
	if ms <= 0 {
		return -1
	}
	return time.Duration(ms) * time.Millisecond
}
