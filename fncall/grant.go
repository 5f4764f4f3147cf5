package fncall

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Chain submission errors a TransactionSender may return. GrantAllocator
// classifies them for the retry policy.
var (
	// ErrInsufficientBalance: the funding wallet cannot cover the transfer.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidRecipient: the recipient address failed validation on chain.
	ErrInvalidRecipient = errors.New("invalid recipient")
	// ErrSignatureRejected: the wallet refused to sign the transaction.
	ErrSignatureRejected = errors.New("signature rejected")
)

// TransactionSender submits a value transfer to a blockchain and returns the
// transaction hash. Implementations wrap a wallet plus an RPC client; this
// package treats signing and broadcast as an opaque external operation.
type TransactionSender interface {
	SendTransaction(ctx context.Context, recipient string, amountWei *big.Int) (txHash string, err error)
}

var weiPerToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// ToWei converts a whole-token amount to wei (18 decimals).
func ToWei(amount uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(amount), weiPerToken)
}

// ToWeiWithGas converts a whole-token amount to wei plus 0.01 native token of
// gas headroom so the recipient can move the funds.
func ToWeiWithGas(amount uint64) *big.Int {
	headroom := new(big.Int).Exp(big.NewInt(10), big.NewInt(16), nil)
	return new(big.Int).Add(ToWei(amount), headroom)
}

// GrantAllocator is the allocate_grant handler: a character decides mid
// conversation to award a grant, and the executor settles it on chain. The
// handler is idempotent-unfriendly by nature (a duplicate submit transfers
// twice), so senders should deduplicate by request where the chain allows.
type GrantAllocator struct {
	sender TransactionSender
}

// NewGrantAllocator constructs the handler around a chain boundary.
func NewGrantAllocator(sender TransactionSender) *GrantAllocator {
	return &GrantAllocator{sender: sender}
}

// Name implements Handler.
func (g *GrantAllocator) Name() string { return "allocate_grant" }

// Description implements Handler.
func (g *GrantAllocator) Description() string {
	return "Allocate a token grant to a recipient address, settled on chain"
}

// Parameters implements Handler.
func (g *GrantAllocator) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"recipient": map[string]any{
				"type":        "string",
				"description": "Destination wallet address",
			},
			"amount": map[string]any{
				"type":        "integer",
				"description": "Grant size in whole tokens",
			},
		},
		"required": []string{"recipient", "amount"},
	}
}

// Call implements Handler. Argument and balance problems are permanent;
// transport failures are transient and retried by the executor.
func (g *GrantAllocator) Call(ctx context.Context, args map[string]any) (any, error) {
	if err := ValidateArguments(args, g.Parameters()); err != nil {
		return nil, &HandlerError{Function: g.Name(), Code: "VALIDATION_ERROR", Message: err.Error()}
	}

	recipient, _ := args["recipient"].(string)
	if strings.TrimSpace(recipient) == "" {
		return nil, NewPermanent(g.Name(), "VALIDATION_ERROR", "recipient must not be empty")
	}
	amount, err := intArg(args["amount"])
	if err != nil || amount <= 0 {
		return nil, NewPermanent(g.Name(), "VALIDATION_ERROR", "amount must be a positive integer")
	}

	txHash, err := g.sender.SendTransaction(ctx, recipient, ToWeiWithGas(uint64(amount)))
	if err != nil {
		switch {
		case errors.Is(err, ErrInsufficientBalance):
			return nil, NewPermanent(g.Name(), "INSUFFICIENT_BALANCE", err.Error())
		case errors.Is(err, ErrInvalidRecipient):
			return nil, NewPermanent(g.Name(), "INVALID_RECIPIENT", err.Error())
		case errors.Is(err, ErrSignatureRejected):
			return nil, NewPermanent(g.Name(), "SIGNATURE_REJECTED", err.Error())
		default:
			return nil, NewTransient(g.Name(), "CHAIN_UNAVAILABLE", err.Error())
		}
	}

	return map[string]any{
		"tx_hash":   txHash,
		"recipient": recipient,
		"amount":    amount,
	}, nil
}

func intArg(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
