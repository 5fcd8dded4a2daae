package api

import (
	"context"
	"fmt"
)

type Common interface {
	// Version provides information about API provider
	Version(context.Context) (APIVersion, error)

	LogList(context.Context) ([]string, error)
	LogSetLevel(context.Context, string, string) error

	// Shutdown trigger graceful shutdown
	Shutdown(context.Context) error
}

type APIVersion struct {
	Version string

	// APIVersion is a binary encoded semver version of the remote api
	APIVersion uint32

	// BlockDelay is the time between epochs, in seconds
	BlockDelay uint64
}

func (v APIVersion) String() string {
	vM, vm, vp := VersionInts(v.APIVersion)
	return fmt.Sprintf("%s+api%d.%d.%d", v.Version, vM, vm, vp)
}

// APIVersionCurrent is the current version of the api and must match between
// the client and the server.
const APIVersionCurrent uint32 = (0 << 16) | (3 << 8) | 0

func VersionInts(v uint32) (uint32, uint32, uint32) {
	return (v >> 16) & 0xff, (v >> 8) & 0xff, v & 0xff
}
