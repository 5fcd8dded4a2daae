package main

import (
	"os"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"

	"github.com/emberchain/ember/build"
	lcli "github.com/emberchain/ember/cli"
)

var log = logging.Logger("main")

func main() {
	logging.SetLogLevel("*", "INFO")

	local := []*cli.Command{
		daemonCmd,
	}

	app := &cli.App{
		Name:    "ember",
		Usage:   "Ember blockchain node",
		Version: build.UserVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "repo",
				EnvVars: []string{"EMBER_PATH"},
				Value:   "~/.ember",
				Usage:   "Specify ember repo path",
			},
		},
		Commands: append(local, lcli.Commands...),
	}

	if err := app.Run(os.Args); err != nil {
		log.Errorf("%+v", err)
		os.Exit(1)
	}
}
