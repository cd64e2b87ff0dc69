// Command widget-consumer consumes widget requests from an SQS queue and
// writes them to a widgets table.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/slackmgr/widget-consumer/types"
	"github.com/urfave/cli/v2"
)

const (
	exitOK          = 0
	exitFatalQueue  = 1
	exitFatalConfig = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := newApp(run).RunContext(ctx, os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "widget-consumer: %v\n", err)
	}

	stop()
	os.Exit(exitCode(err))
}

func newApp(action func(ctx context.Context, cfg *config) error) *cli.App {
	return &cli.App{
		Name:  "widget-consumer",
		Usage: "consume widget requests from SQS and write them to the widgets table",
		Flags: flags(),
		Action: func(c *cli.Context) error {
			cfg, err := configFromContext(c)
			if err != nil {
				return err
			}

			return action(c.Context, cfg)
		},
	}
}

// exitCode maps the error returned by the app to the process exit status.
// Flag parsing errors from the cli package carry no sentinel and count as
// configuration errors.
func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return exitOK
	case errors.Is(err, types.ErrFatalQueue):
		return exitFatalQueue
	default:
		return exitFatalConfig
	}
}
