package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ConsumeResetTokenSQL deletes a still-valid reset token and returns the row.
// The expiry predicate inside the DELETE makes redemption race-safe: two
// concurrent redemptions of the same secret can both read it, but only the
// one whose delete returns a row proceeds.
var ConsumeResetTokenSQL = `DELETE FROM "password_reset"
WHERE
	"token" = ?
AND "expires_at" > ?
RETURNING *;`

// PasswordResets stores single-use reset tokens. Expired rows are never
// returned; they are logically dead even though no sweeper removes them.
type PasswordResets interface {
	repository.Repository[*PasswordReset]

	GetValidByToken(ctx context.Context, secret string, now time.Time) (*PasswordReset, error)
	GetValidByTokenTx(ctx context.Context, tx bun.IDB, secret string, now time.Time) (*PasswordReset, error)
	ConsumeTx(ctx context.Context, tx bun.IDB, secret string, now time.Time) (*PasswordReset, error)
}

type passwordResets struct {
	repository.Repository[*PasswordReset]
	db *bun.DB
}

var _ PasswordResets = (*passwordResets)(nil)

func NewPasswordResetsRepository(db *bun.DB) PasswordResets {
	handlers := repository.ModelHandlers[*PasswordReset]{
		NewRecord: func() *PasswordReset {
			return &PasswordReset{}
		},
		GetID: func(record *PasswordReset) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *PasswordReset, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "token"
		},
	}
	return &passwordResets{
		Repository: repository.NewRepository(db, handlers),
		db:         db,
	}
}

func (r *passwordResets) GetValidByToken(ctx context.Context, secret string, now time.Time) (*PasswordReset, error) {
	return r.GetValidByTokenTx(ctx, r.db, secret, now)
}

// GetValidByTokenTx is the shared expiry predicate for check and redeem: the
// token must exist and its expiry must still be in the future.
func (r *passwordResets) GetValidByTokenTx(ctx context.Context, tx bun.IDB, secret string, now time.Time) (*PasswordReset, error) {
	record := &PasswordReset{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", secret).
		Where("?TableAlias.expires_at > ?", now).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

func (r *passwordResets) ConsumeTx(ctx context.Context, tx bun.IDB, secret string, now time.Time) (*PasswordReset, error) {
	res, err := r.Repository.RawTx(ctx, tx, ConsumeResetTokenSQL, secret, now)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound()
	}

	return res[0], nil
}
