package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TxState is a request transaction state.
type TxState string

const (
	TxPending           TxState = "PENDING"
	TxInsufficientFunds TxState = "INSUFFICIENT_FUNDS"
	TxAuthorized        TxState = "AUTHORIZED"
	TxGenerating        TxState = "GENERATING"
	TxCompleted         TxState = "COMPLETED"
	TxPartial           TxState = "PARTIAL"
	TxBilled            TxState = "BILLED"
)

// txTransitions is the legal state graph. INSUFFICIENT_FUNDS and BILLED
// are terminal. PARTIAL marks a stream cancelled or errored mid-flight;
// billing still runs on the accumulated text.
var txTransitions = map[TxState][]TxState{
	TxPending:    {TxInsufficientFunds, TxAuthorized},
	TxAuthorized: {TxGenerating},
	TxGenerating: {TxCompleted, TxPartial},
	TxCompleted:  {TxBilled},
	TxPartial:    {TxBilled},
}

// Transaction tracks a single request through the billing lifecycle.
type Transaction struct {
	ID        string
	UserID    string
	State     TxState
	StartedAt time.Time
	UpdatedAt time.Time
}

// NewTransaction creates a transaction in PENDING.
func NewTransaction(userID string) *Transaction {
	now := time.Now()
	return &Transaction{
		ID:        uuid.New().String(),
		UserID:    userID,
		State:     TxPending,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// To advances the transaction to next, rejecting illegal transitions.
func (t *Transaction) To(next TxState) error {
	for _, allowed := range txTransitions[t.State] {
		if allowed == next {
			t.State = next
			t.UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("illegal transaction transition %s -> %s", t.State, next)
}

// Terminal reports whether no further transitions are possible.
func (t *Transaction) Terminal() bool {
	return len(txTransitions[t.State]) == 0
}
