package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	cid "github.com/ipfs/go-cid"
	"github.com/urfave/cli/v2"

	"github.com/filecoin-project/go-state-types/abi"

	"github.com/emberchain/ember/chain/types"
)

var chainCmd = &cli.Command{
	Name:  "chain",
	Usage: "Interact with the ember blockchain",
	Subcommands: []*cli.Command{
		chainHeadCmd,
		chainGetBlockCmd,
		chainGetMsgCmd,
		chainListCmd,
		chainSetHeadCmd,
		chainWeightCmd,
	},
}

var chainHeadCmd = &cli.Command{
	Name:  "head",
	Usage: "Print chain head",
	Action: func(cctx *cli.Context) error {
		api, closer, err := GetFullNodeAPI(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		head, err := api.ChainHead(ctx)
		if err != nil {
			return err
		}

		for _, c := range head.Cids() {
			fmt.Println(c)
		}
		return nil
	},
}

var chainGetBlockCmd = &cli.Command{
	Name:      "getblock",
	Usage:     "Get a block and print its details",
	ArgsUsage: "[blockCid]",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "raw",
			Usage: "print just the raw block header",
		},
	},
	Action: func(cctx *cli.Context) error {
		api, closer, err := GetFullNodeAPI(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		if !cctx.Args().Present() {
			return fmt.Errorf("must pass cid of block to print")
		}

		bcid, err := cid.Decode(cctx.Args().First())
		if err != nil {
			return err
		}

		blk, err := api.ChainGetBlock(ctx, bcid)
		if err != nil {
			return err
		}

		if cctx.Bool("raw") {
			out, err := json.MarshalIndent(blk, "", "  ")
			if err != nil {
				return err
			}

			fmt.Println(string(out))
			return nil
		}

		msgs, err := api.ChainGetBlockMessages(ctx, bcid)
		if err != nil {
			return err
		}

		recpts, err := api.ChainGetParentReceipts(ctx, bcid)
		if err != nil {
			return err
		}

		cblock := struct {
			types.BlockHeader
			Messages       []*types.SignedMessage
			ParentReceipts []*types.MessageReceipt
		}{
			BlockHeader:    *blk,
			Messages:       msgs.Messages,
			ParentReceipts: recpts,
		}

		out, err := json.MarshalIndent(cblock, "", "  ")
		if err != nil {
			return err
		}

		fmt.Println(string(out))
		return nil
	},
}

var chainGetMsgCmd = &cli.Command{
	Name:      "getmessage",
	Usage:     "Get and print a message by its cid",
	ArgsUsage: "[messageCid]",
	Action: func(cctx *cli.Context) error {
		api, closer, err := GetFullNodeAPI(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		if !cctx.Args().Present() {
			return fmt.Errorf("must pass a cid of a message to get")
		}

		c, err := cid.Decode(cctx.Args().First())
		if err != nil {
			return err
		}

		m, err := api.ChainGetMessage(ctx, c)
		if err != nil {
			return err
		}

		enc, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return err
		}

		fmt.Println(string(enc))
		return nil
	},
}

var chainListCmd = &cli.Command{
	Name:  "list",
	Usage: "View a segment of the chain",
	Flags: []cli.Flag{
		&cli.Uint64Flag{Name: "height"},
		&cli.IntFlag{Name: "count", Value: 30},
	},
	Action: func(cctx *cli.Context) error {
		api, closer, err := GetFullNodeAPI(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		var head *types.TipSet
		if cctx.IsSet("height") {
			head, err = api.ChainGetTipSetByHeight(ctx, abi.ChainEpoch(cctx.Uint64("height")), types.EmptyTSK)
		} else {
			head, err = api.ChainHead(ctx)
		}
		if err != nil {
			return err
		}

		tss := []*types.TipSet{head}
		cur := head
		for i := 1; i < cctx.Int("count"); i++ {
			if cur.Height() == 0 {
				break
			}

			next, err := api.ChainGetTipSet(ctx, cur.Parents())
			if err != nil {
				return err
			}

			tss = append(tss, next)
			cur = next
		}

		for i := len(tss) - 1; i >= 0; i-- {
			ts := tss[i]

			strs := make([]string, len(ts.Blocks()))
			for j, b := range ts.Blocks() {
				strs[j] = fmt.Sprintf("%s: %s", b.Miner, b.Cid())
			}

			fmt.Printf("%d: [ %s ]\n", ts.Height(), strings.Join(strs, ", "))
		}

		return nil
	},
}

var chainSetHeadCmd = &cli.Command{
	Name:      "sethead",
	Usage:     "Manually set the local node's head tipset (dangerous!)",
	ArgsUsage: "[tipsetkey]",
	Action: func(cctx *cli.Context) error {
		api, closer, err := GetFullNodeAPI(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		if !cctx.Args().Present() {
			return fmt.Errorf("must pass cids for tipset to set as head")
		}

		var cids []cid.Cid
		for _, s := range cctx.Args().Slice() {
			c, err := cid.Decode(s)
			if err != nil {
				return err
			}
			cids = append(cids, c)
		}

		if err := api.ChainSetHead(ctx, types.NewTipSetKey(cids...)); err != nil {
			return err
		}

		fmt.Fprintln(os.Stderr, "head set")
		return nil
	},
}

var chainWeightCmd = &cli.Command{
	Name:      "weight",
	Usage:     "Print the weight of a tipset (defaults to the head)",
	ArgsUsage: "[tipsetkey]",
	Action: func(cctx *cli.Context) error {
		api, closer, err := GetFullNodeAPI(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		tsk := types.EmptyTSK
		if cctx.Args().Present() {
			var cids []cid.Cid
			for _, s := range cctx.Args().Slice() {
				c, err := cid.Decode(s)
				if err != nil {
					return err
				}
				cids = append(cids, c)
			}
			tsk = types.NewTipSetKey(cids...)
		}

		w, err := api.ChainTipSetWeight(ctx, tsk)
		if err != nil {
			return err
		}

		fmt.Println(w)
		return nil
	},
}
