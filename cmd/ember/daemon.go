package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	lcli "github.com/emberchain/ember/cli"
	"github.com/emberchain/ember/node"
	"github.com/emberchain/ember/node/repo"
)

var daemonCmd = &cli.Command{
	Name:  "daemon",
	Usage: "Start an ember daemon process",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "api",
			Usage: "override the config's api listen address",
		},
		&cli.StringFlag{
			Name:  "genesis",
			Usage: "genesis template file, used to bootstrap a new chain",
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := lcli.ReqContext(cctx)

		r, err := repo.NewFS(cctx.String("repo"))
		if err != nil {
			return xerrors.Errorf("opening fs repo: %w", err)
		}

		if err := r.Init(); err != nil && err != repo.ErrRepoExists {
			return xerrors.Errorf("repo init error: %w", err)
		}

		lr, err := r.Lock()
		if err != nil {
			return xerrors.Errorf("locking repo: %w", err)
		}
		defer lr.Close()

		if gpath := cctx.String("genesis"); gpath != "" {
			tmpl, err := node.LoadGenesisTemplate(gpath)
			if err != nil {
				return err
			}

			if err := node.InitGenesis(ctx, lr, tmpl); err != nil {
				return xerrors.Errorf("initializing genesis: %w", err)
			}
		}

		nd, err := node.New(ctx, lr)
		if err != nil {
			return xerrors.Errorf("initializing node: %w", err)
		}
		defer func() {
			if err := nd.Stop(ctx); err != nil {
				log.Warnf("stopping node: %s", err)
			}
		}()

		cfg, err := lr.Config()
		if err != nil {
			return err
		}

		addr := cfg.API.ListenAddress
		if a := cctx.String("api"); a != "" {
			addr = a
		}

		if err := lr.SetAPIEndpoint(addr); err != nil {
			return xerrors.Errorf("setting api endpoint: %w", err)
		}

		stop := make(chan struct{})
		sigChan := make(chan os.Signal, 2)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		go func() {
			select {
			case sig := <-sigChan:
				log.Warnw("received shutdown signal", "signal", sig)
			case <-nd.ShutdownChan:
				log.Warn("received shutdown request over rpc")
			case <-ctx.Done():
			}
			close(stop)
		}()

		log.Infow("daemon started", "api", addr)

		return node.ServeRPC(nd.API(), addr, stop)
	},
}
