package margin

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"margincore/core/bank"
	"margincore/core/events"
	"margincore/crypto"
	"margincore/native/vault"
)

func addr(fill byte) crypto.Address {
	return crypto.NewAddress(crypto.MGNPrefix, bytes.Repeat([]byte{fill}, 20))
}

// testExchange fills at a fixed price of 2 held per owed, settling through a
// pre-funded bank account. An optional shortBy skims the output to simulate a
// venue that cannot honor its own quote.
type testExchange struct {
	ledger  *bank.Ledger
	account crypto.Address
	owed    crypto.Address
	held    crypto.Address
	shortBy *big.Int
	fail    bool
}

func (x *testExchange) Address() crypto.Address { return x.account }

func (x *testExchange) Exchange(sellAsset, buyAsset crypto.Address, sellAmount *big.Int, order []byte) (*big.Int, error) {
	if x.fail {
		return nil, errors.New("venue unavailable")
	}
	var out *big.Int
	if sellAsset.Equal(x.owed) {
		out = new(big.Int).Mul(sellAmount, big.NewInt(2))
	} else {
		out = new(big.Int).Quo(sellAmount, big.NewInt(2))
	}
	if x.shortBy != nil {
		out.Sub(out, x.shortBy)
	}
	return out, nil
}

func (x *testExchange) ExchangeCost(sellAsset, buyAsset crypto.Address, desiredBuy *big.Int, order []byte) (*big.Int, error) {
	if x.fail {
		return nil, errors.New("venue unavailable")
	}
	if sellAsset.Equal(x.owed) {
		cost := new(big.Int).Add(desiredBuy, big.NewInt(1))
		return cost.Quo(cost, big.NewInt(2)), nil
	}
	return new(big.Int).Mul(desiredBuy, big.NewInt(2)), nil
}

type fixture struct {
	t        *testing.T
	ledger   *bank.Ledger
	vault    *vault.Vault
	state    *MemoryState
	engine   *Engine
	recorder *events.Recorder
	exchange *testExchange
	mode     *AdminSwitch

	owed      crypto.Address
	held      crypto.Address
	trader    crypto.Address
	lenderKey *crypto.PrivateKey
	lender    crypto.Address
	feeTaker  crypto.Address
	custodian crypto.Address
	admin     crypto.Address
	operator  crypto.Address

	now int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	f := &fixture{
		t:         t,
		ledger:    bank.NewLedger(),
		state:     NewMemoryState(),
		recorder:  &events.Recorder{},
		owed:      addr(0x01),
		held:      addr(0x02),
		trader:    addr(0xAA),
		lenderKey: key,
		lender:    key.PubKey().Address(),
		feeTaker:  addr(0xFE),
		custodian: addr(0xCC),
		admin:     addr(0xAD),
		operator:  addr(0x0F),
	}
	f.vault = vault.New(f.ledger, f.custodian, f.admin)
	f.mode = NewAdminSwitch(f.operator)
	f.exchange = &testExchange{ledger: f.ledger, account: addr(0xEE), owed: f.owed, held: f.held}

	f.engine = NewEngine()
	f.engine.SetState(f.state)
	f.engine.SetLedger(f.ledger)
	f.engine.SetVault(f.vault)
	f.engine.SetEmitter(f.recorder)
	f.engine.SetModeView(f.mode)
	f.engine.SetNowFunc(func() int64 { return f.now })

	fund := big.NewInt(100_000_000)
	for _, account := range []crypto.Address{f.trader, f.lender, f.exchange.account} {
		for _, asset := range []crypto.Address{f.owed, f.held} {
			if err := f.ledger.Mint(asset, account, fund); err != nil {
				t.Fatalf("mint: %v", err)
			}
			if err := f.ledger.Approve(asset, account, f.custodian, fund); err != nil {
				t.Fatalf("approve: %v", err)
			}
		}
	}
	return f
}

func (f *fixture) offering() *LoanOffering {
	return &LoanOffering{
		OwedAsset:      f.owed,
		HeldAsset:      f.held,
		Payer:          f.lender,
		FeeRecipient:   f.feeTaker,
		LenderFeeAsset: f.owed,
		TakerFeeAsset:  f.owed,
		MaxAmount:      big.NewInt(2_000_000),
		MinAmount:      big.NewInt(10),
		Expiration:     1_000_000,
		Salt:           big.NewInt(7),
		CallTimeLimit:  100,
		MaxDuration:    1000,
		InterestRate:   10_000, // 1% per period
		InterestPeriod: 60,
	}
}

func (f *fixture) sign(offer *LoanOffering) []byte {
	f.t.Helper()
	sig, err := f.lenderKey.Sign(offer.Hash())
	if err != nil {
		f.t.Fatalf("sign offering: %v", err)
	}
	return sig
}

// open opens a standard position: principal 1,000,000 owed sold at 2 held per
// owed plus a 500,000 held deposit, for 2,500,000 held collateral.
func (f *fixture) open() [32]byte {
	f.t.Helper()
	offer := f.offering()
	id, err := f.engine.OpenPosition(OpenRequest{
		Trader:             f.trader,
		Nonce:              1,
		Principal:          big.NewInt(1_000_000),
		Deposit:            big.NewInt(500_000),
		DepositInHeldAsset: true,
		Offering:           offer,
		Signature:          f.sign(offer),
		Exchange:           f.exchange,
	})
	if err != nil {
		f.t.Fatalf("open position: %v", err)
	}
	return id
}

func (f *fixture) audit() {
	f.t.Helper()
	for _, asset := range []crypto.Address{f.owed, f.held} {
		if err := f.vault.Audit(asset); err != nil {
			f.t.Fatalf("vault audit: %v", err)
		}
	}
}

func (f *fixture) lastEvent(eventType string) map[string]string {
	f.t.Helper()
	evts := f.recorder.Events()
	for i := len(evts) - 1; i >= 0; i-- {
		if evts[i].EventType() == eventType {
			return evts[i].(marginEvent).Event().Attributes
		}
	}
	f.t.Fatalf("no %s event recorded", eventType)
	return nil
}

func (f *fixture) eventCount(eventType string) int {
	count := 0
	for _, evt := range f.recorder.Events() {
		if evt.EventType() == eventType {
			count++
		}
	}
	return count
}
