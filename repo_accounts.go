package auth

import (
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Accounts is the lookup surface the auth core needs; account lifecycle
// management lives elsewhere.
type Accounts interface {
	repository.Repository[*Account]
}

func NewAccountsRepository(db *bun.DB) Accounts {
	handlers := repository.ModelHandlers[*Account]{
		NewRecord: func() *Account {
			return &Account{}
		},
		GetID: func(record *Account) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *Account, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "name"
		},
	}
	return repository.NewRepository(db, handlers)
}
