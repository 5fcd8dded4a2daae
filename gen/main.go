package main

import (
	"fmt"
	"os"

	gen "github.com/whyrusleeping/cbor-gen"

	"github.com/emberchain/ember/chain/actors"
	"github.com/emberchain/ember/chain/types"
)

func main() {
	err := gen.WriteTupleEncodersToFile("./chain/types/cbor_gen.go", "types",
		types.BlockHeader{},
		types.Ticket{},
		types.ElectionProof{},
		types.BeaconEntry{},
		types.Message{},
		types.SignedMessage{},
		types.MessageReceipt{},
		types.Actor{},
		types.BlockMsg{},
	)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	err = gen.WriteTupleEncodersToFile("./chain/actors/cbor_gen.go", "actors",
		actors.AccountActorState{},
		actors.InitActorState{},
		actors.InitConstructorParams{},
		actors.ExecParams{},
		actors.ExecReturn{},
		actors.RewardActorState{},
		actors.AwardBlockRewardParams{},
		actors.MultisigActorState{},
		actors.MultisigTransaction{},
		actors.MultisigConstructorParams{},
		actors.ProposeParams{},
		actors.ProposeReturn{},
		actors.TxnIDParams{},
		actors.ApproveReturn{},
	)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
