package vault

import (
	"errors"
	"fmt"
	"math/big"

	"margincore/core/bank"
	"margincore/core/events"
	"margincore/crypto"
	"margincore/native/common"
)

var (
	ErrUnauthorized  = errors.New("vault: caller is not the administrator")
	ErrInvalidAmount = errors.New("vault: amount must be positive")

	errNilLedger = errors.New("vault: ledger not configured")

	// ErrBalanceUnderflow is a fatal invariant violation: a debit was
	// requested for more than the tracked balance of a position.
	ErrBalanceUnderflow = fmt.Errorf("%w: vault debit exceeds tracked balance", common.ErrInvariant)
)

// Vault tracks custodial holdings per (position id, asset) on top of a pooled
// custodian account in the bank ledger. All mutation goes through Credit and
// Debit so the conservation invariant
//
//	sum over ids of balance(id, asset) == total(asset) <= custodial holding
//
// is enforced in exactly one place. The vault performs no authorization of
// credit/debit callers; that is the engine's concern.
type Vault struct {
	ledger    *bank.Ledger
	custodian crypto.Address
	admin     crypto.Address
	emitter   events.Emitter

	balances map[[32]byte]map[string]*big.Int
	totals   map[string]*big.Int
}

// New constructs a vault pooling funds in the custodian bank account. The
// admin is the only identity allowed to sweep excess tokens.
func New(ledger *bank.Ledger, custodian, admin crypto.Address) *Vault {
	return &Vault{
		ledger:    ledger,
		custodian: custodian,
		admin:     admin,
		emitter:   events.NoopEmitter{},
		balances:  make(map[[32]byte]map[string]*big.Int),
		totals:    make(map[string]*big.Int),
	}
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (v *Vault) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		v.emitter = events.NoopEmitter{}
		return
	}
	v.emitter = emitter
}

// Custodian returns the pooled custody account address.
func (v *Vault) Custodian() crypto.Address { return v.custodian }

func assetKey(asset crypto.Address) string { return string(asset.Bytes()) }

// Balance returns the tracked balance for the position and asset.
func (v *Vault) Balance(id [32]byte, asset crypto.Address) *big.Int {
	assets, ok := v.balances[id]
	if !ok {
		return big.NewInt(0)
	}
	bal, ok := assets[assetKey(asset)]
	if !ok || bal == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(bal)
}

// Total returns the tracked total for the asset across all positions.
func (v *Vault) Total(asset crypto.Address) *big.Int {
	total, ok := v.totals[assetKey(asset)]
	if !ok || total == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(total)
}

func (v *Vault) setBalance(id [32]byte, asset crypto.Address, amount *big.Int) {
	assets, ok := v.balances[id]
	if !ok {
		assets = make(map[string]*big.Int)
		v.balances[id] = assets
	}
	assets[assetKey(asset)] = amount
}

// Credit pulls amount of the asset from the source's allowance into custody
// and records it against the position. No partial credit: if the pull fails
// nothing changes.
func (v *Vault) Credit(id [32]byte, asset, source crypto.Address, amount *big.Int) error {
	if v == nil || v.ledger == nil {
		return errNilLedger
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := v.ledger.TransferFrom(asset, v.custodian, source, v.custodian, amount); err != nil {
		return err
	}
	v.setBalance(id, asset, new(big.Int).Add(v.Balance(id, asset), amount))
	v.totals[assetKey(asset)] = new(big.Int).Add(v.Total(asset), amount)
	return nil
}

// Debit releases amount of the asset from the position's tracked balance to
// the recipient. Debiting beyond the tracked balance is a fatal invariant
// violation, never a recoverable shortfall.
func (v *Vault) Debit(id [32]byte, asset, recipient crypto.Address, amount *big.Int) error {
	if v == nil || v.ledger == nil {
		return errNilLedger
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	balance := v.Balance(id, asset)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, debit %s", ErrBalanceUnderflow, balance, amount)
	}
	v.setBalance(id, asset, balance.Sub(balance, amount))
	v.totals[assetKey(asset)] = new(big.Int).Sub(v.Total(asset), amount)
	if err := v.ledger.Transfer(asset, v.custodian, recipient, amount); err != nil {
		// The tracked total never exceeds the custodial holding, so the
		// transfer cannot fail after the balance check above.
		return fmt.Errorf("%w: custody transfer failed: %v", common.ErrInvariant, err)
	}
	return nil
}

// SweepExcess transfers un-credited custodial holdings of the asset to the
// recipient. Only the administrator may call it. Repeat calls are idempotent:
// a zero delta performs no transfer and emits no event.
func (v *Vault) SweepExcess(asset, caller, recipient crypto.Address) (*big.Int, error) {
	if v == nil || v.ledger == nil {
		return nil, errNilLedger
	}
	if !caller.Equal(v.admin) {
		return nil, ErrUnauthorized
	}
	actual := v.ledger.BalanceOf(asset, v.custodian)
	excess := new(big.Int).Sub(actual, v.Total(asset))
	if excess.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	if err := v.ledger.Transfer(asset, v.custodian, recipient, excess); err != nil {
		return nil, err
	}
	v.emit(newExcessWithdrawnEvent(asset, recipient, excess))
	return excess, nil
}

// Audit verifies the conservation invariant for the asset. A mismatch is a
// fatal invariant violation.
func (v *Vault) Audit(asset crypto.Address) error {
	sum := big.NewInt(0)
	for _, assets := range v.balances {
		if bal, ok := assets[assetKey(asset)]; ok && bal != nil {
			sum.Add(sum, bal)
		}
	}
	total := v.Total(asset)
	if sum.Cmp(total) != 0 {
		return fmt.Errorf("%w: position sum %s != total %s", common.ErrInvariant, sum, total)
	}
	if v.ledger != nil {
		actual := v.ledger.BalanceOf(asset, v.custodian)
		if total.Cmp(actual) > 0 {
			return fmt.Errorf("%w: total %s exceeds custodial holding %s", common.ErrInvariant, total, actual)
		}
	}
	return nil
}
