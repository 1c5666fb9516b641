package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// DefaultPhoneRegion is the region used to parse phone numbers submitted
// without an international prefix.
var DefaultPhoneRegion = "US"

// UpdateProfileMessage is a partial patch: nil fields leave the stored value
// untouched. A pointer to an empty string clears the field; an absent field
// is not the same as an empty one.
type UpdateProfileMessage struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     *string   `json:"email,omitempty"`
	FirstName *string   `json:"first_name,omitempty"`
	LastName  *string   `json:"last_name,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	// OnResponse receives the sanitized projection of the updated user.
	OnResponse func(UserProjection)
}

func (m UpdateProfileMessage) Type() string { return "user.profile_update" }

type UpdateProfileHandler struct {
	repo   RepositoryManager
	logger Logger
}

func NewUpdateProfileHandler(repo RepositoryManager) *UpdateProfileHandler {
	return &UpdateProfileHandler{
		repo:   repo,
		logger: defLogger{},
	}
}

func (h *UpdateProfileHandler) WithLogger(logger Logger) *UpdateProfileHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *UpdateProfileHandler) Execute(ctx context.Context, event UpdateProfileMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateProfileHandler) execute(ctx context.Context, event UpdateProfileMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	updated := &User{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().GetByIdentifierTx(ctx, tx, event.UserID.String())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrIdentityNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for profile update")
		}

		if event.Email != nil {
			email := NormalizeEmail(*event.Email)
			if !IsEmailShaped(email) {
				return goerrors.New("invalid email address", goerrors.CategoryValidation).
					WithMetadata(map[string]any{"email": *event.Email})
			}

			if email != user.Email {
				taken, err := h.repo.Users().EmailTakenTx(ctx, tx, user.AccountID, email, user.ID)
				if err != nil {
					return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email uniqueness")
				}
				if taken {
					return ErrDuplicateEmail
				}
			}

			user.Email = email
		}

		if event.FirstName != nil {
			user.FirstName = *event.FirstName
		}

		if event.LastName != nil {
			user.LastName = *event.LastName
		}

		if event.Phone != nil {
			phone, err := normalizePhone(*event.Phone)
			if err != nil {
				return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid phone number")
			}
			user.Phone = phone
		}

		updated, err = h.repo.Users().UpdateTx(ctx, tx, user, repository.UpdateByID(user.ID.String()))
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist profile update")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "profile update transaction failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(ProjectUser(identityFromUser(updated), updated.Account))
	}

	return nil
}

// normalizePhone stores numbers in E.164 form. An empty string clears the
// field.
func normalizePhone(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}

	num, err := phonenumbers.Parse(raw, DefaultPhoneRegion)
	if err != nil {
		return "", err
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}
