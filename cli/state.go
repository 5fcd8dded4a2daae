package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/filecoin-project/go-address"

	"github.com/emberchain/ember/chain/types"
)

var stateCmd = &cli.Command{
	Name:  "state",
	Usage: "Query chain state",
	Subcommands: []*cli.Command{
		stateGetActorCmd,
		stateLookupIDCmd,
		stateAccountKeyCmd,
	},
}

var stateGetActorCmd = &cli.Command{
	Name:      "get-actor",
	Usage:     "Print actor information",
	ArgsUsage: "[actorAddress]",
	Action: func(cctx *cli.Context) error {
		api, closer, err := GetFullNodeAPI(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		if !cctx.Args().Present() {
			return fmt.Errorf("must pass address of actor to get")
		}

		addr, err := address.NewFromString(cctx.Args().First())
		if err != nil {
			return err
		}

		a, err := api.StateGetActor(ctx, addr, types.EmptyTSK)
		if err != nil {
			return err
		}

		fmt.Printf("Code:\t%s\n", a.Code)
		fmt.Printf("Balance:\t%s\n", a.Balance)
		fmt.Printf("Nonce:\t%d\n", a.Nonce)
		fmt.Printf("Head:\t%s\n", a.Head)
		return nil
	},
}

var stateLookupIDCmd = &cli.Command{
	Name:      "lookup",
	Usage:     "Find the ID address for the given address",
	ArgsUsage: "[address]",
	Action: func(cctx *cli.Context) error {
		api, closer, err := GetFullNodeAPI(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		if !cctx.Args().Present() {
			return fmt.Errorf("must pass address to lookup")
		}

		addr, err := address.NewFromString(cctx.Args().First())
		if err != nil {
			return err
		}

		a, err := api.StateLookupID(ctx, addr, types.EmptyTSK)
		if err != nil {
			return err
		}

		fmt.Println(a.String())
		return nil
	},
}

var stateAccountKeyCmd = &cli.Command{
	Name:      "account-key",
	Usage:     "Find the public key address for the given ID address",
	ArgsUsage: "[address]",
	Action: func(cctx *cli.Context) error {
		api, closer, err := GetFullNodeAPI(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		if !cctx.Args().Present() {
			return fmt.Errorf("must pass address to resolve")
		}

		addr, err := address.NewFromString(cctx.Args().First())
		if err != nil {
			return err
		}

		a, err := api.StateAccountKey(ctx, addr, types.EmptyTSK)
		if err != nil {
			return err
		}

		fmt.Println(a.String())
		return nil
	},
}
