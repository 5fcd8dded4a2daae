package cli

import (
	"fmt"
	"time"

	cid "github.com/ipfs/go-cid"
	"github.com/urfave/cli/v2"

	"github.com/emberchain/ember/api"
)

var syncCmd = &cli.Command{
	Name:  "sync",
	Usage: "Inspect or interact with the chain syncer",
	Subcommands: []*cli.Command{
		syncStatusCmd,
		syncMarkBadCmd,
		syncCheckBadCmd,
	},
}

var syncStatusCmd = &cli.Command{
	Name:  "status",
	Usage: "Check sync status",
	Action: func(cctx *cli.Context) error {
		napi, closer, err := GetFullNodeAPI(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		state, err := napi.SyncState(ctx)
		if err != nil {
			return err
		}

		fmt.Println("sync status:")
		for _, ss := range state.ActiveSyncs {
			fmt.Printf("worker:\n")
			if ss.Base != nil {
				fmt.Printf("\tBase:\t%s (%d)\n", ss.Base.Key(), ss.Base.Height())
			}
			if ss.Target != nil {
				fmt.Printf("\tTarget:\t%s (%d)\n", ss.Target.Key(), ss.Target.Height())
			}
			fmt.Printf("\tStage: %s\n", stageString(ss.Stage))
			fmt.Printf("\tHeight: %d\n", ss.Height)
			if !ss.End.IsZero() {
				fmt.Printf("\tElapsed: %s\n", ss.End.Sub(ss.Start).Round(time.Millisecond))
			}
			if ss.Message != "" {
				fmt.Printf("\tError: %s\n", ss.Message)
			}
		}
		return nil
	},
}

func stageString(s api.SyncStateStage) string {
	switch s {
	case api.StageIdle:
		return "idle"
	case api.StageHeaders:
		return "header sync"
	case api.StagePersistHeaders:
		return "persisting headers"
	case api.StageMessages:
		return "message sync"
	case api.StageSyncComplete:
		return "complete"
	case api.StageSyncErrored:
		return "error"
	default:
		return fmt.Sprintf("<unknown: %d>", s)
	}
}

var syncMarkBadCmd = &cli.Command{
	Name:      "mark-bad",
	Usage:     "Mark the given block as bad, will prevent syncing to a chain that contains it",
	ArgsUsage: "[blockCid]",
	Action: func(cctx *cli.Context) error {
		napi, closer, err := GetFullNodeAPI(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		if !cctx.Args().Present() {
			return fmt.Errorf("must specify block cid to mark")
		}

		bcid, err := cid.Decode(cctx.Args().First())
		if err != nil {
			return err
		}

		return napi.SyncMarkBad(ctx, bcid)
	},
}

var syncCheckBadCmd = &cli.Command{
	Name:      "check-bad",
	Usage:     "Check if the given block was marked bad, and for what reason",
	ArgsUsage: "[blockCid]",
	Action: func(cctx *cli.Context) error {
		napi, closer, err := GetFullNodeAPI(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		if !cctx.Args().Present() {
			return fmt.Errorf("must specify block cid to check")
		}

		bcid, err := cid.Decode(cctx.Args().First())
		if err != nil {
			return err
		}

		reason, err := napi.SyncCheckBad(ctx, bcid)
		if err != nil {
			return err
		}

		if reason == "" {
			fmt.Println("block was not marked as bad")
			return nil
		}

		fmt.Println(reason)
		return nil
	},
}
