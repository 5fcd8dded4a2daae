package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/filecoin-project/go-jsonrpc"
	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/emberchain/ember/api"
	"github.com/emberchain/ember/api/client"
	"github.com/emberchain/ember/node/repo"
)

var log = logging.Logger("cli")

const (
	metadataContext = "context"
)

// GetFullNodeAPI dials the node whose repo is named by the repo flag.
func GetFullNodeAPI(cctx *cli.Context) (api.FullNode, jsonrpc.ClientCloser, error) {
	r, err := repo.NewFS(cctx.String("repo"))
	if err != nil {
		return nil, nil, err
	}

	addr, err := r.APIEndpoint()
	if err != nil {
		return nil, nil, xerrors.Errorf("getting api endpoint (is the daemon running?): %w", err)
	}

	return client.NewFullNodeRPC(ReqContext(cctx), "ws://"+addr+"/rpc/v0", nil)
}

// ReqContext returns a context for cli execution that is cancelled on
// SIGTERM or SIGINT. Not safe for concurrent execution.
func ReqContext(cctx *cli.Context) context.Context {
	if uctx, ok := cctx.App.Metadata[metadataContext]; ok {
		return uctx.(context.Context)
	}

	ctx, done := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 2)
	go func() {
		<-sigChan
		done()
	}()
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	return ctx
}

var Commands = []*cli.Command{
	chainCmd,
	mpoolCmd,
	sendCmd,
	stateCmd,
	syncCmd,
	walletCmd,
	versionCmd,
	logCmd,
}
