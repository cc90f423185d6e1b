package main

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/procmux/cmd"
	"github.com/smazurov/procmux/internal/api"
	"github.com/smazurov/procmux/internal/config"
	"github.com/smazurov/procmux/internal/events"
	"github.com/smazurov/procmux/internal/logging"
	"github.com/smazurov/procmux/internal/metrics"
	"github.com/smazurov/procmux/internal/nats"
	"github.com/smazurov/procmux/internal/proc"
	"github.com/smazurov/procmux/internal/spawn"
)

// Options for the CLI.
type Options struct {
	ProcsFile string `help:"Process definitions file" short:"c" default:"procs.toml" env:"PROCS_FILE"`
	Port      string `help:"Port to listen on" short:"p" default:":8080" env:"PORT"`
	Watch     bool   `help:"Reload process definitions when the file changes" default:"true" env:"WATCH"`

	// NATS settings
	NatsURL string `help:"NATS broker URL, empty disables the bridge" default:"" env:"NATS_URL"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" env:"LOGGING_FORMAT"`
	LoggingProc   string `help:"Process supervision logging level" default:"info" env:"LOGGING_PROC"`
	LoggingAPI    string `help:"API logging level" default:"info" env:"LOGGING_API"`
	LoggingHTTP   string `help:"HTTP access logging level" default:"info" env:"LOGGING_HTTP"`
	LoggingNats   string `help:"NATS bridge logging level" default:"info" env:"LOGGING_NATS"`
	LoggingConfig string `help:"Config watcher logging level" default:"info" env:"LOGGING_CONFIG"`
}

// newController builds a controller from one definition. A definition
// without explicit args may pack them into the command string.
func newController(def config.ProcConfig, bus *events.Bus) (*proc.Controller, error) {
	command := def.Command
	args := def.Args
	if len(args) == 0 {
		parsed, err := proc.SplitCommand(def.Command)
		if err != nil {
			return nil, err
		}
		command = parsed[0]
		args = parsed[1:]
	}
	return proc.New(def.Name, command, args,
		proc.WithEOL(def.Delimiter),
		proc.WithSpawner(&spawn.PipeSpawner{Dir: def.Dir, Env: def.Env}),
		proc.WithLogger(logging.GetLogger("proc")),
		proc.WithBus(bus),
	), nil
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"proc":   opts.LoggingProc,
				"api":    opts.LoggingAPI,
				"http":   opts.LoggingHTTP,
				"nats":   opts.LoggingNats,
				"config": opts.LoggingConfig,
			},
		})
		logger := logging.GetLogger("main")

		eventBus := events.New()

		// Mirror log records onto the bus for the SSE log stream.
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Seq:        entry.Seq,
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		group := proc.NewGroup(logging.GetLogger("proc"))

		cfg, err := config.LoadProcs(opts.ProcsFile)
		if err != nil {
			logger.Error("Failed to load process definitions", "path", opts.ProcsFile, "error", err)
			os.Exit(1)
		}
		defs := make(map[string]config.ProcConfig)
		for _, def := range cfg.Enabled() {
			c, buildErr := newController(def, eventBus)
			if buildErr != nil {
				logger.Error("Invalid process definition", "proc", def.Name, "error", buildErr)
				os.Exit(1)
			}
			if addErr := group.Add(c); addErr != nil {
				logger.Error("Failed to register process", "proc", def.Name, "error", addErr)
				os.Exit(1)
			}
			defs[def.Name] = def
		}
		logger.Info("Loaded process definitions", "path", opts.ProcsFile, "count", len(defs))

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Group:             group,
			Bus:               eventBus,
			PrometheusHandler: metrics.HTTPHandler(),
		})

		var bridge *nats.Bridge
		if opts.NatsURL != "" {
			bridge = nats.NewBridge(opts.NatsURL, eventBus, group, logging.GetLogger("nats"))
		}

		var watcher *config.Watcher[*config.ProcsConfig]
		if opts.Watch {
			watcher = config.NewWatcher(opts.ProcsFile, config.LoadProcs, logging.GetLogger("config"))
			watcher.OnReload(func(fresh *config.ProcsConfig) {
				enabled := make(map[string]config.ProcConfig)
				for _, def := range fresh.Enabled() {
					enabled[def.Name] = def
				}

				// Terminate processes that were removed or disabled; they
				// leave the group once reaped.
				for name := range defs {
					if _, still := enabled[name]; !still {
						logger.Info("Process removed from config, terminating", "proc", name)
						if c := group.Controller(name); c != nil {
							c.Terminate()
						}
						delete(defs, name)
					}
				}

				// Register and launch newcomers.
				for name, def := range enabled {
					if _, known := defs[name]; known {
						continue
					}
					c, buildErr := newController(def, eventBus)
					if buildErr != nil {
						logger.Warn("Invalid process definition", "proc", name, "error", buildErr)
						continue
					}
					if addErr := group.Add(c); addErr != nil {
						logger.Warn("Failed to register process", "proc", name, "error", addErr)
						continue
					}
					if launchErr := c.Launch(); launchErr != nil {
						logger.Warn("Failed to launch process", "proc", name, "error", launchErr)
					}
					defs[name] = def
				}

				eventBus.Publish(events.ProcsReloadedEvent{
					Path:      opts.ProcsFile,
					Count:     len(enabled),
					Timestamp: time.Now().UTC().Format(time.RFC3339),
				})
			})
		}

		hooks.OnStart(func() {
			if launchErr := group.Launch(); launchErr != nil {
				logger.Warn("Some processes failed to launch", "error", launchErr)
			}

			if bridge != nil {
				// A broker outage is not fatal; the bridge reconnects.
				_ = bridge.Start()
			}
			if watcher != nil {
				if watchErr := watcher.Start(); watchErr != nil {
					logger.Warn("Failed to watch process definitions", "error", watchErr)
				}
			}

			// Drain merged output; each line is also published on the bus
			// by the controllers, this sink keeps the queue from growing.
			go func() {
				lines := logging.GetLogger("lines")
				for {
					msg, ok := group.Recv()
					if !ok {
						logger.Info("All managed processes exited")
						return
					}
					lines.Debug("Process output", "proc", msg.Member, "source", string(msg.Source), "text", msg.Text)
				}
			}()

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			if watcher != nil {
				_ = watcher.Stop()
			}
			group.Terminate()
			group.Join()
			if bridge != nil {
				bridge.Stop()
			}
		})
	})

	cli.Root().Use = "procmux"
	cli.Root().AddCommand(cmd.CreateRunCmd())
	cli.Root().AddCommand(cmd.CreateUpdateCmd())
	cli.Run()
}
