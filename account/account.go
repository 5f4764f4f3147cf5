package account

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rolemesh/rolemesh/model"
)

// ErrInsufficientFunds is returned by Debit when the balance cannot cover the
// requested amount. No partial debit happens.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Account is a user's balance plus accumulated token usage.
type Account struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
	Usage   Usage  `json:"usage"`
}

// Usage accumulates token consumption across chat turns.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Store manages user accounts. Accounts are created lazily on first touch
// with the store's starting balance.
type Store interface {
	// Ensure returns the user's account, creating it if absent.
	Ensure(ctx context.Context, userID string) (Account, error)

	// Debit subtracts amount from the balance, creating the account first if
	// needed. Fails with ErrInsufficientFunds without changing the balance.
	Debit(ctx context.Context, userID string, amount int64) error

	// Credit adds amount to the balance, creating the account first if needed.
	Credit(ctx context.Context, userID string, amount int64) error

	// RecordUsage accumulates token consumption on the account.
	RecordUsage(ctx context.Context, userID string, usage model.TokenUsage) error
}

// InMemoryOptions configures an InMemoryStore.
type InMemoryOptions struct {
	// StartingBalance is granted to every lazily created account.
	StartingBalance int64
}

// InMemoryStore is a process-local Store.
type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	opts     InMemoryOptions
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty account store.
func NewInMemoryStore(optFns ...func(o *InMemoryOptions)) *InMemoryStore {
	opts := InMemoryOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryStore{accounts: make(map[string]*Account), opts: opts}
}

// Ensure implements Store.
func (s *InMemoryStore) Ensure(_ context.Context, userID string) (Account, error) {
	if userID == "" {
		return Account{}, fmt.Errorf("ensure account: empty user ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.ensureLocked(userID), nil
}

// Debit implements Store.
func (s *InMemoryStore) Debit(_ context.Context, userID string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.ensureLocked(userID)
	if acc.Balance < amount {
		return fmt.Errorf("debit %d from %q (balance %d): %w", amount, userID, acc.Balance, ErrInsufficientFunds)
	}
	acc.Balance -= amount
	return nil
}

// Credit implements Store.
func (s *InMemoryStore) Credit(_ context.Context, userID string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(userID).Balance += amount
	return nil
}

// RecordUsage implements Store.
func (s *InMemoryStore) RecordUsage(_ context.Context, userID string, usage model.TokenUsage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.ensureLocked(userID)
	acc.Usage.PromptTokens += usage.PromptTokens
	acc.Usage.CompletionTokens += usage.CompletionTokens
	acc.Usage.TotalTokens += usage.TotalTokens
	return nil
}

func (s *InMemoryStore) ensureLocked(userID string) *Account {
	acc, ok := s.accounts[userID]
	if !ok {
		acc = &Account{UserID: userID, Balance: s.opts.StartingBalance}
		s.accounts[userID] = acc
	}
	return acc
}
