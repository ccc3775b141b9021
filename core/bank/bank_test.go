package bank

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"margincore/crypto"
)

func addr(fill byte) crypto.Address {
	return crypto.NewAddress(crypto.MGNPrefix, bytes.Repeat([]byte{fill}, 20))
}

func TestMintAndTransfer(t *testing.T) {
	ledger := NewLedger()
	asset := addr(0x01)
	alice := addr(0xA1)
	bob := addr(0xB1)

	if err := ledger.Mint(asset, alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(asset, alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := ledger.BalanceOf(asset, alice); got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("alice balance = %s, want 60", got)
	}
	if got := ledger.BalanceOf(asset, bob); got.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("bob balance = %s, want 40", got)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	ledger := NewLedger()
	asset := addr(0x01)
	alice := addr(0xA1)
	bob := addr(0xB1)

	if err := ledger.Mint(asset, alice, big.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	err := ledger.Transfer(asset, alice, bob, big.NewInt(11))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("transfer err = %v, want ErrInsufficientBalance", err)
	}
	if got := ledger.BalanceOf(asset, alice); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("failed transfer mutated balance: %s", got)
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	ledger := NewLedger()
	asset := addr(0x01)
	owner := addr(0xA1)
	spender := addr(0xC1)
	vault := addr(0xD1)

	if err := ledger.Mint(asset, owner, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Approve(asset, owner, spender, big.NewInt(70)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := ledger.TransferFrom(asset, spender, owner, vault, big.NewInt(50)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	if got := ledger.Allowance(asset, owner, spender); got.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("allowance = %s, want 20", got)
	}
	err := ledger.TransferFrom(asset, spender, owner, vault, big.NewInt(21))
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("transferFrom err = %v, want ErrInsufficientAllowance", err)
	}
	if got := ledger.BalanceOf(asset, vault); got.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("vault balance = %s, want 50", got)
	}
}

func TestTransferFromRequiresBalanceAndAllowance(t *testing.T) {
	ledger := NewLedger()
	asset := addr(0x01)
	owner := addr(0xA1)
	spender := addr(0xC1)
	vault := addr(0xD1)

	if err := ledger.Mint(asset, owner, big.NewInt(5)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Approve(asset, owner, spender, big.NewInt(10)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	err := ledger.TransferFrom(asset, spender, owner, vault, big.NewInt(6))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("transferFrom err = %v, want ErrInsufficientBalance", err)
	}
	// The failed transfer must not consume allowance.
	if got := ledger.Allowance(asset, owner, spender); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("allowance = %s, want 10", got)
	}
}
