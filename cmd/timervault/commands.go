package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli"

	"timervault/internal/config"
	"timervault/internal/duration"
	"timervault/internal/services/timers"
	logx "timervault/pkg/logx"
)

var createCommand = cli.Command{
	Name:      "create",
	Usage:     "schedule a payload for delivery after a duration",
	ArgsUsage: "<duration> <payload>",
	Description: `Durations use the forms "250ms" (integer milliseconds),
"1.5s", "2m" and "1h"/"1.5hr". The timer survives restarts; run the daemon
("timervault run") to actually fire it.`,
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 2 {
			return cli.ShowCommandHelp(ctx, "create")
		}
		// Reject bad input before anything touches the operation log.
		d, err := duration.Parse(ctx.Args().Get(0))
		if err != nil {
			return err
		}
		payload := ctx.Args().Get(1)

		svc, logSvc, err := openService(ctx, nil)
		if err != nil {
			return err
		}
		defer closeService(svc, logSvc)

		id, err := svc.Create(d, payload)
		if err != nil {
			return err
		}
		fmt.Printf("created %s (fires at %s)\n",
			id, time.Now().Add(d).Format(time.RFC3339))
		return nil
	},
}

var removeCommand = cli.Command{
	Name:      "remove",
	Usage:     "cancel a pending timer by id",
	ArgsUsage: "<id>",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return cli.ShowCommandHelp(ctx, "remove")
		}
		id, err := uuid.Parse(ctx.Args().First())
		if err != nil {
			return fmt.Errorf("invalid timer id %q: %w", ctx.Args().First(), err)
		}

		svc, logSvc, err := openService(ctx, nil)
		if err != nil {
			return err
		}
		defer closeService(svc, logSvc)

		ok, err := svc.Remove(id)
		if err != nil {
			return err
		}
		if !ok {
			// Not an error: the id may have fired or been removed already.
			fmt.Printf("timer %s not found\n", id)
			return nil
		}
		fmt.Printf("removed %s\n", id)
		return nil
	},
}

var listCommand = cli.Command{
	Name:  "list",
	Usage: "list pending timers ordered by expiry",
	Action: func(ctx *cli.Context) error {
		svc, logSvc, err := openService(ctx, nil)
		if err != nil {
			return err
		}
		defer closeService(svc, logSvc)

		items := svc.Snapshot()
		if len(items) == 0 {
			fmt.Println("no pending timers")
			return nil
		}
		now := time.Now().UnixMilli()
		fmt.Printf("%-36s  %-24s  %-10s  %s\n", "ID", "EXPIRES AT", "LEFT", "PAYLOAD")
		for _, it := range items {
			left := it.ExpiresAt.UnixMilli() - now
			fmt.Printf("%-36s  %-24s  %-10s  %s\n",
				it.ID,
				it.ExpiresAt.Format(time.RFC3339),
				duration.FormatMS(left),
				it.Payload)
		}
		return nil
	},
}

var countCommand = cli.Command{
	Name:  "count",
	Usage: "print the number of pending timers",
	Action: func(ctx *cli.Context) error {
		svc, logSvc, err := openService(ctx, nil)
		if err != nil {
			return err
		}
		defer closeService(svc, logSvc)

		fmt.Println(svc.CountLive())
		return nil
	},
}

// openService loads the config, sets up logging, and opens the timer facade
// (recovery runs inside Open). The expiration worker is only started by the
// run command; one-shot commands just mutate/read state.
func openService(ctx *cli.Context, cb timers.Callback) (*timers.Service, *logx.Service, error) {
	cfg, err := config.Load(ctx.GlobalString("config"))
	if err != nil {
		return nil, nil, err
	}
	logSvc, log := logx.New(cfg.Logx())

	svc, err := timers.Open(timers.Config{LogPath: cfg.LogPath}, log, cb)
	if err != nil {
		_ = logSvc.Close()
		return nil, nil, err
	}
	return svc, logSvc, nil
}

func closeService(svc *timers.Service, logSvc *logx.Service) {
	_ = svc.Close()
	_ = logSvc.Close()
}
