package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ringhub/go-auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestController(mockAuth *MockAuthenticator) (*auth.AuthController, *MockRepositoryManager) {
	repo := new(MockRepositoryManager)
	httpAuth, _ := auth.NewHTTPAuthenticator(mockAuth, newHTTPConfig())
	return auth.NewAuthController(httpAuth, repo).
		WithLogger(testLogger{}), repo
}

func TestLoginPost(t *testing.T) {
	t.Run("valid credentials return the token and the user", func(t *testing.T) {
		mockAuth := new(MockAuthenticator)
		controller, repo := newTestController(mockAuth)
		mockCtx := new(MockContext)

		accountID := uuid.New()
		userID := uuid.New().String()

		mockAuth.On("Login", mock.Anything, "pepe@example.com", "password123").
			Return(&auth.LoginResult{
				Token: "valid.jwt.token",
				User: auth.UserProjection{
					ID:        userID,
					Email:     "pepe@example.com",
					FirstName: "Pepe",
					Role:      auth.RoleUser,
					Account: auth.AccountProjection{
						ID:   accountID.String(),
						Name: auth.DefaultAccountName,
					},
				},
			}, nil)

		accounts := new(MockAccounts)
		repo.On("Accounts").Return(accounts)
		accounts.On("GetByID", mock.Anything, accountID.String(), mock.Anything).
			Return(&auth.Account{ID: accountID, Name: "Pepe Industries"}, nil)

		mockCtx.On("Bind", mock.AnythingOfType("*auth.LoginRequest")).
			Run(func(args mock.Arguments) {
				payload := args.Get(0).(*auth.LoginRequest)
				payload.Identifier = "pepe@example.com"
				payload.Password = "password123"
			}).Return(nil)
		mockCtx.On("Context").Return(context.Background())
		mockCtx.On("Cookie", mock.Anything).Return()

		var body *auth.LoginResult
		mockCtx.On("JSON", 200, mock.Anything).
			Run(func(args mock.Arguments) {
				body = args.Get(1).(*auth.LoginResult)
			}).Return(nil)

		err := controller.LoginPost(mockCtx)

		require.NoError(t, err)
		require.NotNil(t, body)
		assert.Equal(t, "valid.jwt.token", body.Token)
		assert.Equal(t, userID, body.User.ID)
		assert.Equal(t, "pepe@example.com", body.User.Email)
		assert.Equal(t, auth.RoleUser, body.User.Role)
		// the synthetic account summary got replaced with the stored record
		assert.Equal(t, accountID.String(), body.User.Account.ID)
		assert.Equal(t, "Pepe Industries", body.User.Account.Name)

		mockCtx.AssertExpectations(t)
	})

	t.Run("bad credentials and missing fields share one response", func(t *testing.T) {
		// two requests, one with a wrong password and one with no password at
		// all, must produce the same status and body
		responses := make([]map[string]any, 0, 2)

		run := func(identifier, password string, expectLogin bool) {
			mockAuth := new(MockAuthenticator)
			controller, _ := newTestController(mockAuth)
			mockCtx := new(MockContext)

			if expectLogin {
				mockAuth.On("Login", mock.Anything, identifier, password).
					Return(nil, auth.ErrInvalidCredentials)
				mockCtx.On("Context").Return(context.Background())
			}

			mockCtx.On("Bind", mock.AnythingOfType("*auth.LoginRequest")).
				Run(func(args mock.Arguments) {
					payload := args.Get(0).(*auth.LoginRequest)
					payload.Identifier = identifier
					payload.Password = password
				}).Return(nil)
			mockCtx.On("JSON", 401, mock.Anything).
				Run(func(args mock.Arguments) {
					responses = append(responses, args.Get(1).(map[string]any))
				}).Return(nil)

			err := controller.LoginPost(mockCtx)
			require.NoError(t, err)
			mockCtx.AssertExpectations(t)
		}

		run("pepe@example.com", "wrongpass", true)
		run("pepe@example.com", "", false)

		require.Len(t, responses, 2)
		assert.Equal(t, responses[0], responses[1])
	})

	t.Run("missing fields consume the failure delay", func(t *testing.T) {
		// the short-circuit rejection must cost as much wall clock as a
		// failed store lookup would
		mockAuth := new(MockAuthenticator)
		controller, _ := newTestController(mockAuth)
		mockCtx := new(MockContext)

		mockCtx.On("Bind", mock.AnythingOfType("*auth.LoginRequest")).
			Run(func(args mock.Arguments) {
				payload := args.Get(0).(*auth.LoginRequest)
				payload.Identifier = "pepe@example.com"
			}).Return(nil)
		mockCtx.On("JSON", 401, mock.Anything).Return(nil)

		start := time.Now()
		err := controller.LoginPost(mockCtx)
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.GreaterOrEqual(t, elapsed, auth.DefaultFailureDelay)
		mockAuth.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestLogoutPost(t *testing.T) {
	mockAuth := new(MockAuthenticator)
	controller, _ := newTestController(mockAuth)
	mockCtx := new(MockContext)

	mockCtx.On("Cookie", mock.Anything).Return()
	mockCtx.On("JSON", 200, map[string]any{"success": true}).Return(nil)

	err := controller.LogoutPost(mockCtx)

	require.NoError(t, err)
	mockCtx.AssertExpectations(t)
}

func TestPasswordResetCheckRequiresToken(t *testing.T) {
	mockAuth := new(MockAuthenticator)
	controller, _ := newTestController(mockAuth)
	mockCtx := new(MockContext)

	mockCtx.On("Param", "token", "").Return("")
	mockCtx.On("JSON", 400, mock.Anything).Return(nil)

	err := controller.PasswordResetCheck(mockCtx)

	require.NoError(t, err)
	mockCtx.AssertExpectations(t)
}

func TestLoginRequestValidate(t *testing.T) {
	assert.NoError(t, auth.LoginRequest{Identifier: "pepe@example.com", Password: "secret"}.Validate())
	assert.Error(t, auth.LoginRequest{Password: "secret"}.Validate())
	assert.Error(t, auth.LoginRequest{Identifier: "pepe@example.com"}.Validate())
}

func TestRegistrationCreatePayloadValidate(t *testing.T) {
	valid := auth.RegistrationCreatePayload{
		FirstName:       "Pepe",
		LastName:        "Rone",
		Email:           "pepe@example.com",
		Password:        "password123",
		ConfirmPassword: "password123",
		AccountID:       uuid.NewString(),
	}

	t.Run("valid payload", func(t *testing.T) {
		assert.NoError(t, valid.Validate())
	})

	t.Run("password confirmation must match", func(t *testing.T) {
		payload := valid
		payload.ConfirmPassword = "different123"
		assert.Error(t, payload.Validate())
	})

	t.Run("email must be well formed", func(t *testing.T) {
		payload := valid
		payload.Email = "not-an-email"
		assert.Error(t, payload.Validate())
	})

	t.Run("account id must be a uuid", func(t *testing.T) {
		payload := valid
		payload.AccountID = "42"
		assert.Error(t, payload.Validate())
	})

	t.Run("short password rejected", func(t *testing.T) {
		payload := valid
		payload.Password = "nope"
		payload.ConfirmPassword = "nope"
		assert.Error(t, payload.Validate())
	})
}

func TestPasswordChangePayloadValidate(t *testing.T) {
	valid := auth.PasswordChangePayload{
		CurrentPassword: "oldpassword",
		NewPassword:     "newpassword",
		ConfirmPassword: "newpassword",
	}

	assert.NoError(t, valid.Validate())

	mismatch := valid
	mismatch.ConfirmPassword = "other"
	assert.Error(t, mismatch.Validate())

	missing := valid
	missing.CurrentPassword = ""
	assert.Error(t, missing.Validate())
}

func TestPasswordResetPayloadValidate(t *testing.T) {
	valid := auth.PasswordResetPayload{
		Token:           "some-secret",
		Password:        "Str0ng!pass",
		ConfirmPassword: "Str0ng!pass",
	}

	assert.NoError(t, valid.Validate())

	t.Run("reset passwords have a higher length floor", func(t *testing.T) {
		payload := valid
		payload.Password = "short1!"
		payload.ConfirmPassword = "short1!"
		assert.Error(t, payload.Validate())
	})

	t.Run("token required", func(t *testing.T) {
		payload := valid
		payload.Token = ""
		assert.Error(t, payload.Validate())
	})
}

func TestProfileUpdatePayloadValidate(t *testing.T) {
	assert.NoError(t, auth.ProfileUpdatePayload{}.Validate())
	assert.NoError(t, auth.ProfileUpdatePayload{FirstName: strptr("Pepe")}.Validate())
	assert.Error(t, auth.ProfileUpdatePayload{Email: strptr("")}.Validate())
}

func TestValidateStringEquals(t *testing.T) {
	rule := auth.ValidateStringEquals("expected")

	assert.NoError(t, rule("expected"))
	assert.Error(t, rule("other"))
	assert.Error(t, rule(42))
}
