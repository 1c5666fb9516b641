package auth_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/ringhub/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestChangePasswordHandler(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	currentHash, err := auth.HashPassword("oldpassword")
	require.NoError(t, err)

	storedUser := func() *auth.User {
		return &auth.User{
			ID:           userID,
			Email:        "pepe@example.com",
			PasswordHash: currentHash,
		}
	}

	t.Run("correct current password", func(t *testing.T) {
		repo, users, _ := newResetRepo()
		sink := new(MockActivitySink)
		handler := auth.NewChangePasswordHandler(repo).
			WithActivitySink(sink).
			WithLogger(testLogger{})

		users.On("GetByIdentifierTx", mock.Anything, mock.Anything, userID.String(), mock.Anything).
			Return(storedUser(), nil).Once()

		var storedHash string
		users.On("ResetPasswordTx", mock.Anything, mock.Anything, userID, mock.AnythingOfType("string")).
			Run(func(args mock.Arguments) {
				storedHash = args.Get(3).(string)
			}).
			Return(nil).Once()

		sink.On("Record", mock.Anything, mock.MatchedBy(func(evt auth.ActivityEvent) bool {
			return evt.EventType == auth.ActivityEventPasswordChanged &&
				evt.UserID == userID.String()
		})).Return(nil).Once()

		err := handler.Execute(ctx, auth.ChangePasswordMessage{
			UserID:          userID,
			CurrentPassword: "oldpassword",
			NewPassword:     "newpassword",
		})

		require.NoError(t, err)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(storedHash), []byte("newpassword")))

		users.AssertExpectations(t)
		sink.AssertExpectations(t)
	})

	t.Run("wrong current password", func(t *testing.T) {
		repo, users, _ := newResetRepo()
		handler := auth.NewChangePasswordHandler(repo).WithLogger(testLogger{})

		users.On("GetByIdentifierTx", mock.Anything, mock.Anything, userID.String(), mock.Anything).
			Return(storedUser(), nil).Once()

		err := handler.Execute(ctx, auth.ChangePasswordMessage{
			UserID:          userID,
			CurrentPassword: "notmypassword",
			NewPassword:     "newpassword",
		})

		assert.ErrorIs(t, err, auth.ErrCurrentPasswordIncorrect)
		users.AssertNotCalled(t, "ResetPasswordTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown user", func(t *testing.T) {
		repo, users, _ := newResetRepo()
		handler := auth.NewChangePasswordHandler(repo).WithLogger(testLogger{})

		users.On("GetByIdentifierTx", mock.Anything, mock.Anything, userID.String(), mock.Anything).
			Return(nil, repository.NewRecordNotFound()).Once()

		err := handler.Execute(ctx, auth.ChangePasswordMessage{
			UserID:          userID,
			CurrentPassword: "oldpassword",
			NewPassword:     "newpassword",
		})

		assert.ErrorIs(t, err, auth.ErrIdentityNotFound)
	})

	t.Run("short new password rejected before any store access", func(t *testing.T) {
		repo, _, _ := newResetRepo()
		handler := auth.NewChangePasswordHandler(repo).WithLogger(testLogger{})

		err := handler.Execute(ctx, auth.ChangePasswordMessage{
			UserID:          userID,
			CurrentPassword: "oldpassword",
			NewPassword:     "nope",
		})

		require.Error(t, err)
		repo.AssertNotCalled(t, "RunInTx", mock.Anything, mock.Anything, mock.Anything)
	})
}
