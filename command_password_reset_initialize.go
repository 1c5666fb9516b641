package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// ResetTokenTTL is how long an issued reset secret stays redeemable.
var ResetTokenTTL = time.Hour

// PasswordResetAckMessage is returned on every forgot-password request,
// whether or not the email exists. Both paths must produce byte-identical
// responses so the endpoint cannot be used to enumerate accounts.
const PasswordResetAckMessage = "If that email address is in our system, we have sent a password reset link to it."

type InitializePasswordResetMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Customer email."`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

type InitializePasswordResetResponse struct {
	// Message is the generic acknowledgment; identical on every path.
	Message string
	// Reset is only populated when a matching user exists. It never reaches
	// the HTTP response; it exists so delivery and tests can observe the
	// issued secret.
	Reset *PasswordReset
}

// ResetNotifier hands an issued secret to the delivery mechanism.
type ResetNotifier func(email, secret string)

type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	notifier ResetNotifier
	logger   Logger
}

func NewInitializePasswordResetHandler(repo RepositoryManager) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:     repo,
		notifier: printEmailNotification,
		logger:   defLogger{},
	}
}

// WithNotifier overrides the delivery hook, e.g. with a real mailer.
func (h *InitializePasswordResetHandler) WithNotifier(n ResetNotifier) *InitializePasswordResetHandler {
	if n != nil {
		h.notifier = n
	}
	return h
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	resp := &InitializePasswordResetResponse{Message: PasswordResetAckMessage}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email := NormalizeEmail(event.Email)

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().GetByIdentifierTx(ctx, tx, email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				// no token, no error: the acknowledgment is the same either way
				return nil
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
		}

		secret, err := newResetSecret()
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate reset secret")
		}

		reset := &PasswordReset{
			Token:     secret,
			UserID:    &user.ID,
			Email:     user.Email,
			ExpiresAt: time.Now().Add(ResetTokenTTL),
		}

		created, err := h.repo.PasswordResets().CreateTx(ctx, tx, reset)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create password reset record")
		}
		resp.Reset = created

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	// Deliver only once the token is committed; a secret the store never
	// kept must not reach the user's inbox.
	if resp.Reset != nil {
		go h.notifier(resp.Reset.Email, resp.Reset.Token)
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

// newResetSecret returns a random opaque secret. It is never derived from
// user data.
func newResetSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func printEmailNotification(email, secret string) {
	fmt.Println("====== SENDING EMAIL NOTIFICATION =======")
	fmt.Printf("to: %s\n", email)
	fmt.Printf(
		"link: /password-reset/%s\n",
		secret,
	)
}
