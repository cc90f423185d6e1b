// Package cmd holds the auxiliary CLI commands.
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smazurov/procmux/internal/config"
	"github.com/smazurov/procmux/internal/logging"
	"github.com/smazurov/procmux/internal/proc"
	"github.com/smazurov/procmux/internal/spawn"
)

// CreateRunCmd creates the run command: one managed process in the
// foreground, stdin forwarded, output demultiplexed to stdout/stderr.
func CreateRunCmd() *cobra.Command {
	var configFile string
	var logJSON bool
	var watch bool

	cmd := &cobra.Command{
		Use:   "run [proc-name]",
		Short: "Run a single managed process in the foreground",
		Long: `Spawns the named process from the definition file and attaches it to the ` +
			`terminal: stdin lines are forwarded to the child, output lines are printed ` +
			`tagged by stream. Exits with the child's exit code.`,
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			name := args[0]

			loggingConfig := logging.Config{Level: "warn", Format: "text"}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("run").With("proc", name)

			cfg, err := config.LoadProcs(configFile)
			if err != nil {
				logger.Error("Failed to load procs config", "error", err)
				os.Exit(1)
			}
			def, ok := cfg.Proc(name)
			if !ok {
				logger.Error("Process not defined", "config", configFile)
				os.Exit(1)
			}

			command := def.Command
			cmdArgs := def.Args
			if len(cmdArgs) == 0 {
				parsed, err := proc.SplitCommand(def.Command)
				if err != nil {
					logger.Error("Failed to parse command", "error", err)
					os.Exit(1)
				}
				command = parsed[0]
				cmdArgs = parsed[1:]
			}

			c := proc.New(name, command, cmdArgs,
				proc.WithEOL(def.Delimiter),
				proc.WithSpawner(&spawn.PipeSpawner{Dir: def.Dir, Env: def.Env}),
				proc.WithLogger(logger),
			)
			if err := c.Launch(); err != nil {
				logger.Error("Failed to launch process", "error", err)
				os.Exit(1)
			}

			// Forward terminal input. The goroutine leaks on exit; stdin
			// reads are not interruptible.
			go func() {
				scanner := bufio.NewScanner(os.Stdin)
				for scanner.Scan() {
					if err := c.Send(scanner.Text()); err != nil {
						return
					}
				}
				c.Terminate()
			}()

			sigCh := make(chan os.Signal, 2)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				c.Terminate()
				<-sigCh
				c.Kill()
			}()

			var watcher *config.Watcher[*config.ProcsConfig]
			if watch {
				watcher = config.NewWatcher(configFile, config.LoadProcs, logger)
				watcher.OnReload(func(fresh *config.ProcsConfig) {
					if _, still := fresh.Proc(name); !still {
						logger.Warn("Process removed from config, shutting down")
						c.Terminate()
					}
				})
				if err := watcher.Start(); err != nil {
					logger.Warn("Failed to watch config", "error", err)
				} else {
					defer watcher.Stop()
				}
			}

			for {
				msg, ok := c.Recv()
				if !ok {
					break
				}
				switch {
				case msg.IsStderr(), msg.IsError():
					fmt.Fprintln(os.Stderr, msg.Text)
				default:
					fmt.Println(msg.Text)
				}
			}
			c.Join()

			if code, ok := c.ExitCode(); ok {
				os.Exit(code)
			}
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "procs.toml", "Process definitions file")
	cmd.Flags().BoolVar(&logJSON, "json", false, "Log in JSON format")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Terminate if the process is removed from the config file")
	return cmd
}
