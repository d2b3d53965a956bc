package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"timervault/internal/config"
)

var version = "0.1.0"

func main() {
	app := cli.NewApp()
	app.Name = "timervault"
	app.Usage = "durable one-shot timer scheduler with crash recovery"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "path to the YAML config file",
			Value: config.DefaultPath,
		},
	}
	app.Commands = []cli.Command{
		runCommand,
		createCommand,
		removeCommand,
		listCommand,
		countCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "timervault:", err)
		os.Exit(1)
	}
}
