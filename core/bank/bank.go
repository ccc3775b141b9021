package bank

import (
	"errors"
	"math/big"

	"margincore/crypto"
)

var (
	ErrInvalidAmount         = errors.New("bank: amount must be positive")
	ErrInsufficientBalance   = errors.New("bank: insufficient balance")
	ErrInsufficientAllowance = errors.New("bank: insufficient allowance")
)

// Ledger is a multi-asset token ledger with holder balances and spender
// allowances. Every custodial pull in the settlement core goes through
// TransferFrom so that funds only move with the holder's prior authorization.
type Ledger struct {
	balances   map[string]map[string]*big.Int
	allowances map[string]map[string]map[string]*big.Int
}

func NewLedger() *Ledger {
	return &Ledger{
		balances:   make(map[string]map[string]*big.Int),
		allowances: make(map[string]map[string]map[string]*big.Int),
	}
}

func key(addr crypto.Address) string { return string(addr.Bytes()) }

func (l *Ledger) balance(asset, holder crypto.Address) *big.Int {
	holders, ok := l.balances[key(asset)]
	if !ok {
		return big.NewInt(0)
	}
	bal, ok := holders[key(holder)]
	if !ok || bal == nil {
		return big.NewInt(0)
	}
	return bal
}

func (l *Ledger) setBalance(asset, holder crypto.Address, amount *big.Int) {
	holders, ok := l.balances[key(asset)]
	if !ok {
		holders = make(map[string]*big.Int)
		l.balances[key(asset)] = holders
	}
	holders[key(holder)] = amount
}

// BalanceOf returns the holder's balance of the asset. The returned value is a
// copy and safe to mutate.
func (l *Ledger) BalanceOf(asset, holder crypto.Address) *big.Int {
	if l == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(l.balance(asset, holder))
}

// Mint credits newly issued units of the asset to the recipient.
func (l *Ledger) Mint(asset, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.setBalance(asset, to, new(big.Int).Add(l.balance(asset, to), amount))
	return nil
}

// Approve authorizes the spender to pull up to amount of the owner's asset.
// A zero amount clears any existing allowance.
func (l *Ledger) Approve(asset, owner, spender crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	owners, ok := l.allowances[key(asset)]
	if !ok {
		owners = make(map[string]map[string]*big.Int)
		l.allowances[key(asset)] = owners
	}
	spenders, ok := owners[key(owner)]
	if !ok {
		spenders = make(map[string]*big.Int)
		owners[key(owner)] = spenders
	}
	spenders[key(spender)] = new(big.Int).Set(amount)
	return nil
}

// Allowance returns the remaining amount the spender may pull from the owner.
func (l *Ledger) Allowance(asset, owner, spender crypto.Address) *big.Int {
	owners, ok := l.allowances[key(asset)]
	if !ok {
		return big.NewInt(0)
	}
	spenders, ok := owners[key(owner)]
	if !ok {
		return big.NewInt(0)
	}
	allowed, ok := spenders[key(spender)]
	if !ok || allowed == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(allowed)
}

// Transfer moves amount of the asset from one holder to another.
func (l *Ledger) Transfer(asset, from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromBal := l.balance(asset, from)
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	l.setBalance(asset, from, new(big.Int).Sub(fromBal, amount))
	l.setBalance(asset, to, new(big.Int).Add(l.balance(asset, to), amount))
	return nil
}

// TransferFrom moves amount of the asset from the owner to the recipient on
// behalf of the spender, consuming the spender's allowance. The transfer is
// all-or-nothing: it fails without effect when either the balance or the
// allowance is short.
func (l *Ledger) TransferFrom(asset, spender, from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	allowed := l.Allowance(asset, from, spender)
	if allowed.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := l.Transfer(asset, from, to, amount); err != nil {
		return err
	}
	l.allowances[key(asset)][key(from)][key(spender)] = allowed.Sub(allowed, amount)
	return nil
}
