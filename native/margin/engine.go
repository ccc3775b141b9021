package margin

import (
	"math/big"

	"margincore/core/bank"
	"margincore/core/events"
	"margincore/crypto"
	"margincore/native/common"
	"margincore/native/vault"
)

// Engine is the margin position lifecycle state machine. All entry points
// execute as one atomic unit of work: on any error the ledger, vault, and
// engine state are restored to their pre-call values and no events are
// emitted. A non-reentrant guard rejects delegate callbacks that re-enter the
// engine during their own consent call.
type Engine struct {
	state     EngineState
	ledger    *bank.Ledger
	collat    *vault.Vault
	emitter   events.Emitter
	modeView  common.StateView
	delegates map[string]interface{}
	nowFn     func() int64
	locked    bool
	pending   []events.Event
}

func NewEngine() *Engine {
	return &Engine{
		emitter:   events.NoopEmitter{},
		delegates: make(map[string]interface{}),
		nowFn:     func() int64 { return 0 },
	}
}

// SetState wires the persistence surface.
func (e *Engine) SetState(state EngineState) { e.state = state }

// SetLedger wires the token ledger used for fee pulls and direct settlement.
func (e *Engine) SetLedger(ledger *bank.Ledger) { e.ledger = ledger }

// SetVault wires the custodial collateral vault.
func (e *Engine) SetVault(v *vault.Vault) { e.collat = v }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetModeView wires the administrative operation mode gating entry points. A
// nil view leaves the engine fully operational.
func (e *Engine) SetModeView(view common.StateView) { e.modeView = view }

// SetNowFunc overrides the engine clock. Timestamps are unix seconds.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return 0 }
	}
	e.nowFn = now
}

// RegisterDelegate marks the address as a programmable owner. Privileged
// operations on positions or loans held by the address are routed through the
// delegate's capability interfaces.
func (e *Engine) RegisterDelegate(addr crypto.Address, delegate interface{}) {
	if delegate == nil {
		delete(e.delegates, string(addr.Bytes()))
		return
	}
	e.delegates[string(addr.Bytes())] = delegate
}

func (e *Engine) ready() error {
	switch {
	case e == nil, e.state == nil:
		return errNilState
	case e.ledger == nil:
		return errNilLedger
	case e.collat == nil:
		return errNilVault
	}
	return nil
}

// begin acquires the reentrancy lock and snapshots all mutable state. The
// returned finish func must be invoked exactly once with the operation's
// final error: a non-nil error rolls everything back and drops queued events,
// nil flushes the queued events.
func (e *Engine) begin() (func(err error), error) {
	if e.locked {
		return nil, errReentrant
	}
	e.locked = true
	e.pending = e.pending[:0]
	ledgerSnap := e.ledger.Snapshot()
	vaultSnap := e.collat.Snapshot()
	stateSnap := e.state.Snapshot()
	return func(err error) {
		if err != nil {
			e.ledger.Restore(ledgerSnap)
			e.collat.Restore(vaultSnap)
			_ = e.state.Restore(stateSnap)
		} else {
			for _, evt := range e.pending {
				e.emitter.Emit(evt)
			}
		}
		e.pending = e.pending[:0]
		e.locked = false
	}, nil
}

func (e *Engine) queue(evt events.Event) {
	if evt != nil {
		e.pending = append(e.pending, evt)
	}
}

func (e *Engine) openPosition(id [32]byte) (*Position, error) {
	pos, ok := e.state.Position(id)
	if !ok || e.state.Status(id) != StatusOpen {
		return nil, errPositionNotFound
	}
	return pos, nil
}

// --- Read surface ---

// ContainsPosition reports whether the position is currently open.
func (e *Engine) ContainsPosition(id [32]byte) bool {
	if e == nil || e.state == nil {
		return false
	}
	return e.state.Status(id) == StatusOpen
}

// IsPositionClosed reports whether the id belongs to a closed position.
// Closed is distinguishable from never-used forever.
func (e *Engine) IsPositionClosed(id [32]byte) bool {
	if e == nil || e.state == nil {
		return false
	}
	return e.state.Status(id) == StatusClosed
}

// GetPosition returns a copy of the open position record.
func (e *Engine) GetPosition(id [32]byte) (*Position, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.openPosition(id)
}

// PositionBalance returns the held-asset collateral tracked for the position.
func (e *Engine) PositionBalance(id [32]byte) *big.Int {
	if err := e.ready(); err != nil {
		return big.NewInt(0)
	}
	pos, err := e.openPosition(id)
	if err != nil {
		return big.NewInt(0)
	}
	return e.collat.Balance(id, pos.HeldAsset)
}

// TotalOwedRepaid returns the cumulative owed-asset amount repaid to lenders
// of the position across all closes.
func (e *Engine) TotalOwedRepaid(id [32]byte) *big.Int {
	if e == nil || e.state == nil {
		return big.NewInt(0)
	}
	return e.state.TotalOwedRepaid(id)
}

// FilledAmount returns the cumulative amount filled against the offering.
func (e *Engine) FilledAmount(hash [32]byte) *big.Int {
	if e == nil || e.state == nil {
		return big.NewInt(0)
	}
	return e.state.FilledAmount(hash)
}

// CanceledAmount returns the cumulative amount canceled by the payer.
func (e *Engine) CanceledAmount(hash [32]byte) *big.Int {
	if e == nil || e.state == nil {
		return big.NewInt(0)
	}
	return e.state.CanceledAmount(hash)
}
