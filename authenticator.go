package auth

import (
	"context"
	"reflect"
	"time"
)

type Auther struct {
	provider       IdentityProvider
	tokenService   TokenService
	tokenValidator TokenValidator
	issuer         *SessionIssuer
	logger         Logger
	activitySink   ActivitySink
}

// NewAuthenticator returns a new Authenticator. The signing secret is
// process-wide configuration loaded once; running without one is a
// misconfiguration we refuse to start with.
func NewAuthenticator(provider IdentityProvider, opts Config) *Auther {
	if opts.GetSigningKey() == "" {
		panic("auth: missing signing key, refusing to start without one")
	}

	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetTokenExpiration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	return &Auther{
		provider:     provider,
		tokenService: tokenService,
		issuer:       NewSessionIssuer(tokenService),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
		s.issuer.WithLogger(logger)
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithTokenValidator sets a custom token validator for externally issued tokens.
func (s *Auther) WithTokenValidator(validator TokenValidator) *Auther {
	s.tokenValidator = validator
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies the credentials and returns the authenticated session: a
// signed token plus the sanitized user projection. Every failure surfaces as
// ErrInvalidCredentials; the cause is logged and emitted to the activity
// sink only.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	identity, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		s.logger.Error("Login verify identity error: %v", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return nil, ErrInvalidCredentials
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      ErrIdentityNotFound.Error(),
		})
		return nil, ErrInvalidCredentials
	}

	result, err := s.issuer.Issue(identity, nil)
	if err != nil {
		s.logger.Error("Login token generation failed: %v", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromIdentity(identity), identity.ID(), map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return nil, ErrInvalidCredentials
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, s.actorFromIdentity(identity), identity.ID(), map[string]any{
		"identifier": identifier,
	})

	return result, nil
}

// Impersonate mints a token for the given identifier without a password
// check. Callers are responsible for gating access to this.
func (s *Auther) Impersonate(ctx context.Context, identifier string) (string, error) {
	identity, err := s.provider.FindIdentityByIdentifier(ctx, identifier)
	if err != nil {
		s.logger.Error("Impersonate find identity error: %v", err)
		s.emitAuthEvent(ctx, ActivityEventImpersonationFailure, ActorRef{Type: "system"}, "", map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return "", err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Impersonate identity is nil")
		s.emitAuthEvent(ctx, ActivityEventImpersonationFailure, ActorRef{Type: "system"}, "", map[string]any{
			"identifier": identifier,
			"error":      ErrIdentityNotFound.Error(),
		})
		return "", ErrIdentityNotFound
	}

	token, err := s.tokenService.Generate(identity)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventImpersonationFailure, ActorRef{Type: "system"}, identity.ID(), map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return "", err
	}

	s.emitAuthEvent(ctx, ActivityEventImpersonationSuccess, ActorRef{Type: "system"}, identity.ID(), map[string]any{
		"identifier": identifier,
	})

	return token, nil
}

// Refresh exchanges a still valid token for a freshly signed one bound to the
// same subject. The identity is re-resolved so a deleted user cannot refresh.
func (s *Auther) Refresh(ctx context.Context, raw string) (string, error) {
	identity, err := s.IdentityFromToken(ctx, raw)
	if err != nil {
		return "", err
	}

	token, err := s.tokenService.Generate(identity)
	if err != nil {
		s.logger.Error("Refresh token generation failed: %v", err)
		return "", ErrInvalidToken
	}

	return token, nil
}

// SessionFromToken validates the raw token and projects its claims into a
// session. It performs no store access; use IdentityFromToken when the
// current identity record matters.
func (s *Auther) SessionFromToken(raw string) (Session, error) {
	validator := s.tokenValidator
	if validator == nil {
		validator = s.tokenService
	}

	claims, err := validator.Validate(raw)
	if err != nil {
		s.logger.Error("SessionFromToken validation failed: %v", err)
		return nil, ErrInvalidToken
	}

	session, err := sessionFromAuthClaims(claims)
	if err != nil {
		s.logger.Error("SessionFromToken failed to create session from claims: %v", err)
		return nil, ErrInvalidToken
	}

	return session, nil
}

// IdentityFromSession re-resolves the current identity for the session's
// subject. A session whose user no longer resolves is treated as invalid;
// the token is a capability hint, not a standalone credential.
func (s *Auther) IdentityFromSession(ctx context.Context, session Session) (Identity, error) {
	identity, err := s.provider.FindIdentityByIdentifier(ctx, session.GetUserID())
	if err != nil {
		s.logger.Error("IdentityFromSession find identity by identifier: %v", err)
		return nil, ErrInvalidToken
	}

	return identity, nil
}

// IdentityFromToken validates the token and re-fetches the current identity
// record in one step. This is the verification path protected routes use.
func (s *Auther) IdentityFromToken(ctx context.Context, raw string) (Identity, error) {
	session, err := s.SessionFromToken(raw)
	if err != nil {
		return nil, err
	}

	return s.IdentityFromSession(ctx, session)
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func (s *Auther) actorFromIdentity(identity Identity) ActorRef {
	if identity == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   identity.ID(),
		Type: "user",
	}
}

var _ Authenticator = (*Auther)(nil)
