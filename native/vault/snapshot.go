package vault

import "math/big"

// Snapshot captures the vault's tracked balances for later restoration. It
// does not include the underlying bank ledger, which snapshots independently.
type Snapshot struct {
	balances map[[32]byte]map[string]*big.Int
	totals   map[string]*big.Int
}

// Snapshot returns a deep copy of the tracked per-position balances.
func (v *Vault) Snapshot() *Snapshot {
	if v == nil {
		return nil
	}
	snap := &Snapshot{
		balances: make(map[[32]byte]map[string]*big.Int, len(v.balances)),
		totals:   make(map[string]*big.Int, len(v.totals)),
	}
	for id, assets := range v.balances {
		copied := make(map[string]*big.Int, len(assets))
		for asset, bal := range assets {
			copied[asset] = new(big.Int).Set(bal)
		}
		snap.balances[id] = copied
	}
	for asset, total := range v.totals {
		snap.totals[asset] = new(big.Int).Set(total)
	}
	return snap
}

// Restore replaces the tracked balances with the snapshot's. Restore takes
// ownership of the snapshot's maps.
func (v *Vault) Restore(snapshot *Snapshot) {
	if v == nil || snapshot == nil {
		return
	}
	v.balances = snapshot.balances
	v.totals = snapshot.totals
}
