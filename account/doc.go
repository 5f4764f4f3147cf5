// Package account tracks per-user credit balances and token usage. Chat turns
// debit a configurable price before generation; usage is recorded after.
package account
