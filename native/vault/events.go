package vault

import (
	"encoding/hex"
	"math/big"

	"margincore/core/events"
	"margincore/core/types"
	"margincore/crypto"
)

// EventTypeExcessWithdrawn is emitted when the administrator sweeps
// un-credited tokens out of custody.
const EventTypeExcessWithdrawn = "vault.excess_tokens_withdrawn"

type vaultEvent struct {
	evt *types.Event
}

func (e vaultEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e vaultEvent) Event() *types.Event { return e.evt }

func newExcessWithdrawnEvent(asset, recipient crypto.Address, amount *big.Int) events.Event {
	return vaultEvent{evt: &types.Event{
		Type: EventTypeExcessWithdrawn,
		Attributes: map[string]string{
			"asset":     hex.EncodeToString(asset.Bytes()),
			"recipient": hex.EncodeToString(recipient.Bytes()),
			"amount":    amount.String(),
		},
	}}
}

func (v *Vault) emit(evt events.Event) {
	if v == nil || v.emitter == nil || evt == nil {
		return
	}
	v.emitter.Emit(evt)
}
