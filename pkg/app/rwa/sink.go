package rwa

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Sink is the outbound payment rail. A Pay call hands control to code
// outside this system's authority: the recipient may be hostile and invoke
// back into the App while Pay is executing. This is why every payment-bearing
// operation applies its ledger effects first and holds the reentrancy guard
// across the call.
type Sink interface {
	Pay(to common.Address, amount int64) error
}

// Payment records one outbound payment delivered through a RecorderSink.
type Payment struct {
	To        common.Address `json:"to"`
	Amount    int64          `json:"amount"`
	Timestamp int64          `json:"timestamp"` // Unix milliseconds
}

// RecorderSink is the node's stand-in for an external settlement rail: it
// records every outbound payment and always succeeds. Tests substitute
// failing or reentrant sinks to exercise the rollback and guard paths.
type RecorderSink struct {
	mu       sync.Mutex
	payments []Payment
	log      *zap.SugaredLogger
}

// NewRecorderSink creates a recording sink. log may be nil.
func NewRecorderSink(log *zap.SugaredLogger) *RecorderSink {
	return &RecorderSink{log: log}
}

// Pay records the payment.
func (s *RecorderSink) Pay(to common.Address, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.payments = append(s.payments, Payment{
		To:        to,
		Amount:    amount,
		Timestamp: time.Now().UnixMilli(),
	})
	if s.log != nil {
		s.log.Infow("payment_out", "to", to.Hex(), "amount", amount)
	}
	return nil
}

// Payments returns a copy of all recorded payments in delivery order.
func (s *RecorderSink) Payments() []Payment {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]Payment(nil), s.payments...)
}

// Total returns the sum of all recorded payment amounts.
func (s *RecorderSink) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, p := range s.payments {
		total += p.Amount
	}
	return total
}
