package core

import (
	"errors"
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	issuer = common.HexToAddress("0x1100000000000000000000000000000000000000")
	alice  = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob    = common.HexToAddress("0xBB00000000000000000000000000000000000000")
	carol  = common.HexToAddress("0xCC00000000000000000000000000000000000000")
)

func TestLedgerSeed(t *testing.T) {
	l := NewLedger()
	l.Seed(1, issuer, 1000)

	if bal := l.Balance(1, issuer); bal != 1000 {
		t.Errorf("issuer balance = %d, want 1000", bal)
	}
	holders := l.Holders(1)
	if len(holders) != 1 || holders[0] != issuer {
		t.Errorf("holders = %v, want [issuer]", holders)
	}
	if err := l.CheckConservation(1, 1000); err != nil {
		t.Errorf("conservation violated after seed: %v", err)
	}
}

func TestLedgerMove(t *testing.T) {
	l := NewLedger()
	l.Seed(1, issuer, 1000)

	registered, err := l.Move(1, issuer, alice, 300)
	if err != nil {
		t.Fatalf("move failed: %v", err)
	}
	if !registered {
		t.Error("expected alice to be newly registered")
	}
	if bal := l.Balance(1, issuer); bal != 700 {
		t.Errorf("issuer balance = %d, want 700", bal)
	}
	if bal := l.Balance(1, alice); bal != 300 {
		t.Errorf("alice balance = %d, want 300", bal)
	}

	// Second move to the same holder must not register again
	registered, err = l.Move(1, issuer, alice, 100)
	if err != nil {
		t.Fatalf("second move failed: %v", err)
	}
	if registered {
		t.Error("alice registered twice")
	}

	if err := l.CheckConservation(1, 1000); err != nil {
		t.Errorf("conservation violated: %v", err)
	}
}

func TestLedgerMoveValidation(t *testing.T) {
	l := NewLedger()
	l.Seed(1, issuer, 100)

	if _, err := l.Move(1, issuer, alice, 0); !errors.Is(err, ErrValidation) {
		t.Errorf("zero shares: got %v, want ErrValidation", err)
	}
	if _, err := l.Move(1, issuer, common.Address{}, 10); !errors.Is(err, ErrValidation) {
		t.Errorf("zero address: got %v, want ErrValidation", err)
	}
	if _, err := l.Move(1, issuer, alice, 101); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("overdraw: got %v, want ErrInsufficientBalance", err)
	}
	if _, err := l.Move(1, alice, bob, 1); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("empty sender: got %v, want ErrInsufficientBalance", err)
	}
}

func TestLedgerRevert(t *testing.T) {
	l := NewLedger()
	l.Seed(1, issuer, 1000)

	registered, err := l.Move(1, issuer, alice, 250)
	if err != nil {
		t.Fatalf("move failed: %v", err)
	}

	l.Revert(1, issuer, alice, 250, registered)

	if bal := l.Balance(1, issuer); bal != 1000 {
		t.Errorf("issuer balance after revert = %d, want 1000", bal)
	}
	if bal := l.Balance(1, alice); bal != 0 {
		t.Errorf("alice balance after revert = %d, want 0", bal)
	}
	holders := l.Holders(1)
	if len(holders) != 1 || holders[0] != issuer {
		t.Errorf("holders after revert = %v, want [issuer]", holders)
	}

	// A later move must register alice again, in the new position
	if registered, _ := l.Move(1, issuer, alice, 1); !registered {
		t.Error("alice not re-registered after revert")
	}
}

func TestHolderRegistrationIdempotent(t *testing.T) {
	l := NewLedger()
	l.Seed(1, issuer, 1000)

	// Cycle alice's balance from zero to positive and back several times
	for i := 0; i < 5; i++ {
		if _, err := l.Move(1, issuer, alice, 10); err != nil {
			t.Fatalf("move to alice: %v", err)
		}
		if _, err := l.Move(1, alice, issuer, 10); err != nil {
			t.Fatalf("move back: %v", err)
		}
	}

	holders := l.Holders(1)
	if len(holders) != 2 {
		t.Fatalf("holder sequence = %v, want exactly [issuer, alice]", holders)
	}
	if holders[0] != issuer || holders[1] != alice {
		t.Errorf("holder order = %v, want [issuer, alice]", holders)
	}
}

func TestConservationDetectsOverflow(t *testing.T) {
	l := NewLedger()
	// A wrapped state whose uint64 sum comes back around to the total
	l.Restore(1, map[common.Address]uint64{issuer: math.MaxUint64, alice: 2}, []common.Address{issuer, alice})

	if err := l.CheckConservation(1, 1); err == nil {
		t.Error("conservation accepted balances that overflow uint64")
	}
}

func TestLedgerRestore(t *testing.T) {
	l := NewLedger()
	l.Restore(7, map[common.Address]uint64{issuer: 60, alice: 40}, []common.Address{issuer, alice})

	if err := l.CheckConservation(7, 100); err != nil {
		t.Errorf("conservation after restore: %v", err)
	}
	// Restored holders must not be re-registered
	if registered, _ := l.Move(7, issuer, alice, 5); registered {
		t.Error("alice registered again after restore")
	}
}
