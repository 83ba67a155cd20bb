package pool

import "errors"

// The nine terminal error kinds from spec.md §7. No error exposes more
// than its kind: in particular, none of these ever name which nullifier
// was previously spent.
var (
	ErrOutOfRange         = errors.New("pool: value out of range")
	ErrTreeFull           = errors.New("pool: tree is full")
	ErrUnknownRoot        = errors.New("pool: root not in recent history")
	ErrDuplicateNullifier = errors.New("pool: both nullifier slots are equal")
	ErrAlreadySpent       = errors.New("pool: nullifier already spent")
	ErrBadExtData         = errors.New("pool: ext_data_hash mismatch")
	ErrInsufficientFee    = errors.New("pool: provided fee below minimum")
	ErrInvalidProof       = errors.New("pool: proof verification failed")
	ErrDepositTooLarge    = errors.New("pool: ext_amount exceeds max_deposit_amount")

	// ErrUnknownInstruction is an ambient dispatch error, not one of the
	// spec's nine transact failure kinds: it covers a caller passing a
	// concrete Instruction type the executor's switch doesn't recognize.
	ErrUnknownInstruction = errors.New("pool: unrecognized instruction")
)
