package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-address"

	"github.com/emberchain/ember/chain/types"
)

var sendCmd = &cli.Command{
	Name:      "send",
	Usage:     "Send funds between accounts",
	ArgsUsage: "[targetAddress] [amount]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "from",
			Usage: "optionally specify the account to send funds from",
		},
		&cli.StringFlag{
			Name:  "gas-premium",
			Usage: "specify gas premium to use",
			Value: "1",
		},
		&cli.StringFlag{
			Name:  "gas-feecap",
			Usage: "specify gas fee cap to use",
			Value: "100",
		},
		&cli.Int64Flag{
			Name:  "gas-limit",
			Usage: "specify gas limit",
			Value: 10000000,
		},
	},
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 2 {
			return fmt.Errorf("'send' expects two arguments, target and amount")
		}

		api, closer, err := GetFullNodeAPI(cctx)
		if err != nil {
			return err
		}
		defer closer()
		ctx := ReqContext(cctx)

		toAddr, err := address.NewFromString(cctx.Args().First())
		if err != nil {
			return xerrors.Errorf("parsing target address: %w", err)
		}

		val, err := types.BigFromString(cctx.Args().Get(1))
		if err != nil {
			return xerrors.Errorf("parsing amount: %w", err)
		}

		var fromAddr address.Address
		if from := cctx.String("from"); from != "" {
			fromAddr, err = address.NewFromString(from)
		} else {
			fromAddr, err = api.WalletDefaultAddress(ctx)
		}
		if err != nil {
			return err
		}

		gasPremium, err := types.BigFromString(cctx.String("gas-premium"))
		if err != nil {
			return xerrors.Errorf("parsing gas-premium: %w", err)
		}

		gasFeeCap, err := types.BigFromString(cctx.String("gas-feecap"))
		if err != nil {
			return xerrors.Errorf("parsing gas-feecap: %w", err)
		}

		msg := &types.Message{
			From:       fromAddr,
			To:         toAddr,
			Value:      val,
			GasPremium: gasPremium,
			GasFeeCap:  gasFeeCap,
			GasLimit:   cctx.Int64("gas-limit"),
		}

		sm, err := api.MpoolPushMessage(ctx, msg)
		if err != nil {
			return err
		}

		fmt.Println(sm.Cid())
		return nil
	},
}
