package impl

import (
	"context"

	logging "github.com/ipfs/go-log/v2"

	"github.com/emberchain/ember/api"
	"github.com/emberchain/ember/build"
)

type CommonAPI struct {
	// ShutdownChan is closed by Shutdown to ask the daemon to exit.
	ShutdownChan chan struct{}
}

func (a *CommonAPI) Version(ctx context.Context) (api.APIVersion, error) {
	return api.APIVersion{
		Version:    build.UserVersion(),
		APIVersion: api.APIVersionCurrent,

		BlockDelay: build.BlockDelaySecs,
	}, nil
}

func (a *CommonAPI) LogList(ctx context.Context) ([]string, error) {
	return logging.GetSubsystems(), nil
}

func (a *CommonAPI) LogSetLevel(ctx context.Context, subsystem, level string) error {
	return logging.SetLogLevel(subsystem, level)
}

func (a *CommonAPI) Shutdown(ctx context.Context) error {
	if a.ShutdownChan == nil {
		return nil
	}
	close(a.ShutdownChan)
	return nil
}
