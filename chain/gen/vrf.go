package gen

import (
	"context"

	"github.com/minio/blake2b-simd"
	"go.opencensus.io/trace"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/crypto"

	"github.com/emberchain/ember/build"
	"github.com/emberchain/ember/lib/sigs"
)

// VerifyVRF checks that vrfproof is worker's signature over vrfBase. The
// chain treats deterministic secp signatures over drawn randomness as its
// VRF; the proof doubles as the next ticket input.
func VerifyVRF(ctx context.Context, worker address.Address, vrfBase, vrfproof []byte) error {
	_, span := trace.StartSpan(ctx, "verifyVRF")
	defer span.End()

	sig := &crypto.Signature{
		Type: crypto.SigTypeSecp256k1,
		Data: vrfproof,
	}

	if err := sigs.Verify(sig, worker, vrfBase); err != nil {
		return xerrors.Errorf("vrf was invalid: %w", err)
	}

	return nil
}

type SignFunc func(context.Context, address.Address, []byte) (*crypto.Signature, error)

func ComputeVRF(ctx context.Context, sign SignFunc, worker address.Address, sigInput []byte) ([]byte, error) {
	sig, err := sign(ctx, worker, sigInput)
	if err != nil {
		return nil, err
	}

	if sig.Type != crypto.SigTypeSecp256k1 {
		return nil, xerrors.New("miner worker address was not a secp key")
	}

	return sig.Data, nil
}

// ElectionWinCount derives the win count a correctly drawn election proof
// is entitled to. Every valid proof wins at least once; extra wins accrue
// as leading zero bits in the proof digest, capped well below the block
// message budget. Validators recompute this from the proof and reject any
// block claiming more.
func ElectionWinCount(eproof []byte) int64 {
	h := blake2b.Sum256(eproof)

	var zeros int64
	for _, b := range h {
		if b == 0 {
			zeros += 8
			continue
		}
		for m := byte(0x80); m > 0; m >>= 1 {
			if b&m != 0 {
				break
			}
			zeros++
		}
		break
	}

	wc := 1 + zeros/2
	if wc > build.MaxWinCount {
		wc = build.MaxWinCount
	}
	return wc
}
