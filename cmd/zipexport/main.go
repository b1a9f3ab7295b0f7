package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/infracollect/zipexport/internal/engine"
	"github.com/urfave/cli/v3"
)

const (
	exitFailed       = 1
	exitNotifyFailed = 3
)

var loggerDeferFunc func() error

// exitCode maps a failed run to the process exit status. A run whose archive
// was published but whose callback failed exits with exitNotifyFailed so only
// the callback is retried.
func exitCode(err error) int {
	if errors.Is(err, engine.ErrNotifyFailed) {
		return exitNotifyFailed
	}
	return exitFailed
}

func main() {
	app := &cli.Command{
		Name:  "zipexport",
		Usage: "zipexport bundles an export's objects into a single zip archive",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log Level (debug, info, warn, error, fatal)",
				Sources: cli.EnvVars("LOG_LEVEL"),
				Action: func(ctx context.Context, command *cli.Command, s string) error {
					_, err := zapcore.ParseLevel(s)
					if err != nil {
						return fmt.Errorf("invalid log level %s: %w", s, err)
					}
					return nil
				},
			},
		},
		DefaultCommand: exportCommand.Name,
		Commands: []*cli.Command{
			exportCommand,
			validateCommand,
			versionCommand,
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			debug := command.Bool("debug") || isInteractiveEnvironment()
			logger, err := createLogger(debug, command.String("log-level"))
			if err != nil {
				return nil, err
			}

			logger.Debug("logger created", zap.String("log_level", command.String("log-level")))

			loggerDeferFunc = func() error {
				return logger.Sync()
			}

			return withLogger(ctx, logger), nil
		},
		ExitErrHandler: func(ctx context.Context, command *cli.Command, err error) {
			if err == nil {
				return
			}

			logger := tryLogger(ctx)
			if logger == nil {
				log.Fatal(fmt.Errorf("failed to run application: %w", err))
			}

			code := exitCode(err)
			if code == exitNotifyFailed {
				logger.Error("export migrated but notification failed", zap.Error(err))
			} else {
				logger.Error("failed to run application", zap.Error(err))
			}
			_ = logger.Sync()
			os.Exit(code)
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	defer func() {
		if loggerDeferFunc != nil {
			loggerDeferFunc()
		}
	}()

	app.Run(ctx, os.Args)
}
