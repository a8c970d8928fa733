// Package ledger is the single entry point for balance mutations on bank
// accounts and cards. Callers pass the Store bound to their own transaction so
// that the balance change commits or rolls back together with the ledger entry
// that caused it.
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mywallet/mywallet/app/models"
)

var (
	ErrAccountNotFound = errors.New("bank account not found")
	ErrCardNotFound    = errors.New("card not found")
	ErrInvalidAmount   = errors.New("amount must be greater than zero")
)

// Store is the row-level persistence the adapter needs. Lock* methods must
// take a write lock on the row for the rest of the surrounding transaction.
type Store interface {
	LockBankAccount(id string) (*models.BankAccount, error)
	UpdateBankAccountBalance(id string, balance decimal.Decimal) error
	LockCard(id string) (*models.Card, error)
	UpdateCardAvailableLimit(id string, available decimal.Decimal) error
}

// Debit subtracts amount from the account balance and returns the updated account.
func Debit(store Store, accountID string, amount decimal.Decimal) (*models.BankAccount, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return adjustBalance(store, accountID, amount.Neg())
}

// Credit adds amount to the account balance and returns the updated account.
func Credit(store Store, accountID string, amount decimal.Decimal) (*models.BankAccount, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return adjustBalance(store, accountID, amount)
}

func adjustBalance(store Store, accountID string, delta decimal.Decimal) (*models.BankAccount, error) {
	if accountID == "" {
		return nil, ErrAccountNotFound
	}

	account, err := store.LockBankAccount(accountID)
	if err != nil {
		return nil, err
	}

	account.Balance = account.Balance.Add(delta)
	if err := store.UpdateBankAccountBalance(account.ID, account.Balance); err != nil {
		return nil, fmt.Errorf("update balance of account %s: %w", account.ID, err)
	}
	return account, nil
}

// ChargeCard books amount against the card's available limit. The limit may go
// negative: an over-limit charge is still a real expense that must be recorded.
func ChargeCard(store Store, cardID string, amount decimal.Decimal) (*models.Card, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if cardID == "" {
		return nil, ErrCardNotFound
	}

	card, err := store.LockCard(cardID)
	if err != nil {
		return nil, err
	}

	card.AvailableLimit = card.AvailableLimit.Sub(amount)
	if err := store.UpdateCardAvailableLimit(card.ID, card.AvailableLimit); err != nil {
		return nil, fmt.Errorf("update available limit of card %s: %w", card.ID, err)
	}
	return card, nil
}
