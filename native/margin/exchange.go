package margin

import (
	"math/big"

	"margincore/crypto"
)

// ExchangeWrapper adapts an external liquidity source to the settlement core.
// The engine moves input funds into the wrapper's bank account before calling
// Exchange; output funds must end up held by that same account with an
// allowance granted to the engine's custodian so settlement can pull them.
// The order payload is opaque to the core.
type ExchangeWrapper interface {
	// Address is the bank account the wrapper settles through.
	Address() crypto.Address

	// Exchange sells exactly sellAmount of sellAsset for buyAsset and
	// returns the amount bought.
	Exchange(sellAsset, buyAsset crypto.Address, sellAmount *big.Int, order []byte) (*big.Int, error)

	// ExchangeCost quotes the sellAsset amount needed to buy desiredBuy of
	// buyAsset, rounding up. A subsequent Exchange of that amount must
	// return at least desiredBuy.
	ExchangeCost(sellAsset, buyAsset crypto.Address, desiredBuy *big.Int, order []byte) (*big.Int, error)
}
