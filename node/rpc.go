package node

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/filecoin-project/go-jsonrpc"
	"golang.org/x/xerrors"

	"github.com/emberchain/ember/api"
)

// ServeRPC exposes the FullNode API over JSON-RPC on addr. It blocks until
// the listener fails or stop is closed, and shuts the http server down
// gracefully in the latter case.
func ServeRPC(a api.FullNode, addr string, stop <-chan struct{}) error {
	rpcServer := jsonrpc.NewServer()
	rpcServer.Register("Ember", a)

	mux := http.NewServeMux()
	mux.Handle("/rpc/v0", rpcServer)

	lst, err := net.Listen("tcp", addr)
	if err != nil {
		return xerrors.Errorf("listening on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: mux}

	done := make(chan error, 1)
	go func() {
		done <- srv.Serve(lst)
	}()

	select {
	case <-stop:
		log.Warn("shutting down rpc server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return xerrors.Errorf("shutting down rpc server: %w", err)
		}
		<-done
		return nil
	case err := <-done:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
