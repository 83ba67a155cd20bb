package relayer

import (
	"encoding/binary"
	"fmt"

	"github.com/ccoin/privacypool/field"
	"github.com/ccoin/privacypool/pool"
)

// encodeReceipt serializes a Receipt for the accepted topic: the event's
// length-prefixed kind and pool ID, then its leaf index, scalar fields,
// ext_amount and fee in declaration order, and finally the
// post-transaction vault balance, mirroring
// pool/instructions.go's little-endian-integers/big-endian-scalars wire
// convention.
func encodeReceipt(r *pool.Receipt) []byte {
	b := make([]byte, 0, 256)
	b = append(b, byte(len(r.Event.Kind)))
	b = append(b, r.Event.Kind...)
	b = append(b, byte(len(r.Event.PoolID)))
	b = append(b, r.Event.PoolID...)

	var leafIndex [8]byte
	binary.LittleEndian.PutUint64(leafIndex[:], r.Event.LeafIndex)
	b = append(b, leafIndex[:]...)

	for _, s := range []field.Scalar{
		r.Event.NewRoot,
		r.Event.InputNullifier1, r.Event.InputNullifier2,
		r.Event.OutputCommitment1, r.Event.OutputCommitment2,
	} {
		enc := s.Encode()
		b = append(b, enc[:]...)
	}

	var extAmount, fee, balance [8]byte
	binary.LittleEndian.PutUint64(extAmount[:], uint64(r.Event.ExtAmount))
	binary.LittleEndian.PutUint64(fee[:], r.Event.Fee)
	binary.LittleEndian.PutUint64(balance[:], r.Balance)
	b = append(b, extAmount[:]...)
	b = append(b, fee[:]...)
	b = append(b, balance[:]...)
	return b
}

// decodeReceipt is encodeReceipt's inverse.
func decodeReceipt(data []byte) (*pool.Receipt, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("relayer: empty receipt")
	}
	kindLen := int(data[0])
	data = data[1:]
	if len(data) < kindLen+1 {
		return nil, fmt.Errorf("relayer: truncated receipt kind")
	}
	kind := pool.EventKind(data[:kindLen])
	data = data[kindLen:]

	poolIDLen := int(data[0])
	data = data[1:]
	if len(data) < poolIDLen+8 {
		return nil, fmt.Errorf("relayer: truncated receipt pool id")
	}
	poolID := string(data[:poolIDLen])
	data = data[poolIDLen:]

	leafIndex := binary.LittleEndian.Uint64(data[:8])
	data = data[8:]

	const n = 5
	if len(data) < n*field.Size+24 {
		return nil, fmt.Errorf("relayer: truncated receipt body")
	}
	scalars := make([]field.Scalar, n)
	for i := 0; i < n; i++ {
		var enc [field.Size]byte
		copy(enc[:], data[:field.Size])
		s, err := field.Decode(enc)
		if err != nil {
			return nil, fmt.Errorf("relayer: decode receipt scalar: %w", err)
		}
		scalars[i] = s
		data = data[field.Size:]
	}

	extAmount := int64(binary.LittleEndian.Uint64(data[:8]))
	fee := binary.LittleEndian.Uint64(data[8:16])
	balance := binary.LittleEndian.Uint64(data[16:24])

	return &pool.Receipt{
		Event: pool.Event{
			Kind:              kind,
			PoolID:            poolID,
			LeafIndex:         leafIndex,
			NewRoot:           scalars[0],
			InputNullifier1:   scalars[1],
			InputNullifier2:   scalars[2],
			OutputCommitment1: scalars[3],
			OutputCommitment2: scalars[4],
			ExtAmount:         extAmount,
			Fee:               fee,
		},
		Balance: balance,
	}, nil
}
