package ledger

import (
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mywallet/mywallet/app/models"
)

type gormStore struct {
	db *gorm.DB
}

// NewGormStore returns a Store bound to db. Pass the transaction handle when
// the mutation must be atomic with other writes.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) LockBankAccount(id string) (*models.BankAccount, error) {
	var account models.BankAccount
	err := s.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (s *gormStore) UpdateBankAccountBalance(id string, balance decimal.Decimal) error {
	return s.db.Model(&models.BankAccount{}).Where("id = ?", id).Update("balance", balance).Error
}

func (s *gormStore) LockCard(id string) (*models.Card, error) {
	var card models.Card
	err := s.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &card, nil
}

func (s *gormStore) UpdateCardAvailableLimit(id string, available decimal.Decimal) error {
	return s.db.Model(&models.Card{}).Where("id = ?", id).Update("available_limit", available).Error
}
