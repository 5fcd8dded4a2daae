package cli

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/emberchain/ember/api"
	"github.com/emberchain/ember/chain/types"
)

var mpoolCmd = &cli.Command{
	Name:  "mpool",
	Usage: "Manage message pool",
	Subcommands: []*cli.Command{
		mpoolPending,
		mpoolSelect,
		mpoolSub,
	},
}

var mpoolPending = &cli.Command{
	Name:  "pending",
	Usage: "Get pending messages",
	Action: func(cctx *cli.Context) error {
		api, closer, err := GetFullNodeAPI(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		msgs, err := api.MpoolPending(ctx, types.EmptyTSK)
		if err != nil {
			return err
		}

		for _, msg := range msgs {
			out, err := json.MarshalIndent(msg, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
		}

		return nil
	},
}

var mpoolSelect = &cli.Command{
	Name:  "select",
	Usage: "Show the messages that would be selected for the next block",
	Action: func(cctx *cli.Context) error {
		api, closer, err := GetFullNodeAPI(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		msgs, err := api.MpoolSelect(ctx, types.EmptyTSK)
		if err != nil {
			return err
		}

		for _, msg := range msgs {
			fmt.Printf("%s\t%s -> %s, nonce %d, premium %s\n", msg.Cid(), msg.Message.From, msg.Message.To, msg.Message.Nonce, msg.Message.GasPremium)
		}

		return nil
	},
}

var mpoolSub = &cli.Command{
	Name:  "sub",
	Usage: "Subscribe to mpool changes",
	Action: func(cctx *cli.Context) error {
		capi, closer, err := GetFullNodeAPI(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		sub, err := capi.MpoolSub(ctx)
		if err != nil {
			return err
		}

		for {
			select {
			case update, ok := <-sub:
				if !ok {
					return nil
				}

				verb := "add"
				if update.Type == api.MpoolRemove {
					verb = "rm"
				}

				fmt.Printf("%s %s from %s, nonce %d\n", verb, update.Message.Cid(), update.Message.Message.From, update.Message.Message.Nonce)
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	},
}
