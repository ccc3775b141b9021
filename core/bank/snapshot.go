package bank

import "math/big"

// Snapshot returns a deep copy of the ledger state for later restoration.
func (l *Ledger) Snapshot() *Ledger {
	if l == nil {
		return nil
	}
	snap := NewLedger()
	for asset, holders := range l.balances {
		copied := make(map[string]*big.Int, len(holders))
		for holder, bal := range holders {
			copied[holder] = new(big.Int).Set(bal)
		}
		snap.balances[asset] = copied
	}
	for asset, owners := range l.allowances {
		copiedOwners := make(map[string]map[string]*big.Int, len(owners))
		for owner, spenders := range owners {
			copiedSpenders := make(map[string]*big.Int, len(spenders))
			for spender, allowed := range spenders {
				copiedSpenders[spender] = new(big.Int).Set(allowed)
			}
			copiedOwners[owner] = copiedSpenders
		}
		snap.allowances[asset] = copiedOwners
	}
	return snap
}

// Restore replaces the ledger state with the snapshot's. The snapshot must not
// be reused afterwards; Restore takes ownership of its maps.
func (l *Ledger) Restore(snapshot *Ledger) {
	if l == nil || snapshot == nil {
		return
	}
	l.balances = snapshot.balances
	l.allowances = snapshot.allowances
}
