package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// PasswordResetSuccessMessage acknowledges a redeemed reset token.
const PasswordResetSuccessMessage = "Your password has been updated. You can now sign in with your new password."

type FinalizePasswordResetMessage struct {
	Token    string `json:"token" doc:"Reset password secret"`
	Password string `json:"password" example:"some_secret_word" doc:"New password"`
}

func (p FinalizePasswordResetMessage) Type() string { return "user.password_reset_finalize" }

// ResetTokenCheck reports whether a secret would currently redeem.
type ResetTokenCheck struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

type FinalizePasswordResetHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(repo RepositoryManager) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	reset := &PasswordReset{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := ValidateResetPassword(event.Password); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// claim the token first: the conditional delete is the single point
		// that decides the winner when redemptions race
		var err error
		reset, err = h.repo.PasswordResets().ConsumeTx(ctx, tx, event.Token, time.Now())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				// unknown, expired, and already-used all look the same
				return ErrInvalidOrExpiredResetToken
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve password reset request")
		}

		if reset.UserID == nil {
			return goerrors.New("password reset record is not associated with a user", goerrors.CategoryInternal)
		}

		passwordHash, err := HashPassword(event.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash new password")
		}

		if err := h.repo.Users().ResetPasswordTx(ctx, tx, *reset.UserID, passwordHash); err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidOrExpiredResetToken
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password in database")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	h.recordActivity(ctx, reset)

	return nil
}

// Check reports whether a secret would currently redeem, using the same
// expiry predicate as redemption. It has no side effects; clients call it
// before rendering a reset form.
func (h *FinalizePasswordResetHandler) Check(ctx context.Context, secret string) (*ResetTokenCheck, error) {
	_, err := h.repo.PasswordResets().GetValidByToken(ctx, secret, time.Now())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return &ResetTokenCheck{
				Valid:   false,
				Message: ErrInvalidOrExpiredResetToken.Message,
			}, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not check password reset token")
	}

	return &ResetTokenCheck{
		Valid:   true,
		Message: "Token is valid.",
	}, nil
}

func (h *FinalizePasswordResetHandler) recordActivity(ctx context.Context, reset *PasswordReset) {
	if reset == nil || reset.UserID == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventPasswordResetSuccess,
		Actor: ActorRef{
			ID:   reset.UserID.String(),
			Type: "user",
		},
		UserID: reset.UserID.String(),
		Metadata: map[string]any{
			"password_reset_id": reset.ID.String(),
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during password reset: %v", err)
	}
}
