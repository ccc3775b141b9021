package margin

import (
	"encoding/binary"
	"math/big"

	"margincore/crypto"
)

// PositionStatus tags every position identifier with one of three states. The
// identifier space is append-only: a closed id is tombstoned forever and can
// never be reopened, while remaining distinguishable from one never used.
type PositionStatus uint8

const (
	StatusUnused PositionStatus = iota
	StatusOpen
	StatusClosed
)

// Position is an open leveraged loan record. Amounts are big integers in the
// smallest unit of their asset.
type Position struct {
	ID        [32]byte
	OwedAsset crypto.Address
	HeldAsset crypto.Address
	// Principal is the amount of owed asset currently borrowed. It reaches
	// zero only when the position transitions to closed.
	Principal *big.Int
	// InterestRate is the compound rate per interest period in
	// parts-per-million.
	InterestRate   uint32
	InterestPeriod uint32
	CallTimeLimit  uint32
	MaxDuration    uint32
	StartTimestamp int64
	// CallTimestamp is zero while the position is not margin-called.
	CallTimestamp int64
	// RequiredDeposit is zero while the position is not margin-called.
	RequiredDeposit *big.Int
	Owner           crypto.Address
	Lender          crypto.Address
}

// Clone returns a deep copy of the position.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Principal = cloneBigInt(p.Principal)
	clone.RequiredDeposit = cloneBigInt(p.RequiredDeposit)
	return &clone
}

// Called reports whether the position is under an active margin call.
func (p *Position) Called() bool {
	return p != nil && p.CallTimestamp != 0
}

// PositionID derives the deterministic identifier for a position opened by
// the trader with the given nonce.
func PositionID(trader crypto.Address, nonce uint64) [32]byte {
	var nonceBytes [32]byte
	binary.BigEndian.PutUint64(nonceBytes[24:], nonce)
	return crypto.Keccak256(trader.Bytes(), nonceBytes[:])
}

// CloseReceipt reports the settlement amounts of a close operation.
type CloseReceipt struct {
	CloseAmount       *big.Int
	RemainingAmount   *big.Int
	OwedPaidToLender  *big.Int
	PayoutAmount      *big.Int
	BuybackCost       *big.Int
	PayoutInHeldAsset bool
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
