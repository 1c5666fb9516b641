package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
)

// UserTracker is a store we can use to retrieve users
type UserTracker interface {
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
	TrackAttemptedLogin(ctx context.Context, user *User) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error
}

// DefaultFailureDelay is the artificial delay applied to every failure branch
// of VerifyIdentity so response latency does not reveal whether the email
// exists or the password matched. The success path is not delayed.
var DefaultFailureDelay = 10 * time.Millisecond

// UserProvider resolves and verifies identities against a user store.
//
// Every rejection, malformed input, unknown email, inactive user, wrong
// password, or internal store failure, consumes the configured failure delay
// and surfaces as ErrInvalidCredentials. Underlying causes are logged, never
// returned.
type UserProvider struct {
	store        UserTracker
	failureDelay time.Duration
	logger       Logger

	// ActiveCheck gates which users may authenticate. The default accepts
	// every resolved user; a suspended/disabled predicate can be plugged in
	// here without touching the verification flow.
	ActiveCheck func(*User) error
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(store UserTracker) *UserProvider {
	return &UserProvider{
		store:        store,
		failureDelay: DefaultFailureDelay,
		logger:       defLogger{},
		ActiveCheck:  func(*User) error { return nil },
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

// WithFailureDelay overrides the artificial delay on failure branches.
func (u *UserProvider) WithFailureDelay(d time.Duration) *UserProvider {
	if d >= 0 {
		u.failureDelay = d
	}
	return u
}

// VerifyIdentity will find the user, compare to the password, and return a
// sanitized identity. The password hash never leaves this method.
func (u *UserProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	email := NormalizeEmail(identifier)

	if identifier == "" || password == "" || !IsEmailShaped(email) {
		return nil, u.reject()
	}

	user, err := u.store.GetByIdentifier(ctx, email)
	if err != nil {
		if !errors.IsNotFound(err) {
			// fail closed: a store outage must not leak through an auth endpoint
			u.logger.Error("VerifyIdentity store lookup failed: %v", err)
		}
		return nil, u.reject()
	}

	if err := u.activeCheck(user); err != nil {
		u.logger.Warn("VerifyIdentity user %s not active: %v", user.ID.String(), err)
		return nil, u.reject()
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if err2 := u.store.TrackAttemptedLogin(ctx, user); err2 != nil {
			u.logger.Error("VerifyIdentity failed to track login attempt: %v", err2)
		}
		return nil, u.reject()
	}

	if err := u.store.TrackSuccessfulLogin(ctx, user); err != nil {
		u.logger.Error("VerifyIdentity failed to track successful login: %v", err)
	}

	return identityFromUser(user), nil
}

// FindIdentityByIdentifier resolves an identity without verifying a password.
// Used for token validation refetches and impersonation.
func (u *UserProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	user, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}

	if err := u.activeCheck(user); err != nil {
		return nil, ErrIdentityNotFound
	}

	return identityFromUser(user), nil
}

func (u *UserProvider) activeCheck(user *User) error {
	if user == nil {
		return ErrIdentityNotFound
	}
	if u.ActiveCheck != nil {
		return u.ActiveCheck(user)
	}
	return nil
}

// reject consumes the uniform failure delay and returns the generic
// credential error. Every failure branch funnels through here.
func (u *UserProvider) reject() error {
	if u.failureDelay > 0 {
		time.Sleep(u.failureDelay)
	}
	return ErrInvalidCredentials
}

type authIdentity struct {
	id        string
	username  string
	email     string
	role      string
	accountID string
	firstName string
	lastName  string
}

func (a authIdentity) ID() string        { return a.id }
func (a authIdentity) Username() string  { return a.username }
func (a authIdentity) Email() string     { return a.email }
func (a authIdentity) Role() string      { return a.role }
func (a authIdentity) AccountID() string { return a.accountID }
func (a authIdentity) FirstName() string { return a.firstName }
func (a authIdentity) LastName() string  { return a.lastName }

var _ Identity = authIdentity{}

func identityFromUser(user *User) authIdentity {
	return authIdentity{
		id:        user.ID.String(),
		username:  user.Username,
		email:     user.Email,
		role:      string(user.Role),
		accountID: user.AccountID.String(),
		firstName: user.FirstName,
		lastName:  user.LastName,
	}
}
