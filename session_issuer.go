package auth

// DefaultDisplayName stands in for users registered without a first name so
// clients never render a null.
const DefaultDisplayName = "User"

// DefaultAccountName labels the synthetic account summary used when the
// identity has no resolvable account record.
const DefaultAccountName = "Default Account"

// AccountProjection is the client-safe view of an account.
type AccountProjection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserProjection is the client-safe view of a user: no password hash, no
// internal bookkeeping columns.
type UserProjection struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name,omitempty"`
	Role      string            `json:"role"`
	Account   AccountProjection `json:"account"`
}

// LoginResult is the authenticated session response: a signed token plus the
// sanitized user projection.
type LoginResult struct {
	Token string         `json:"token"`
	User  UserProjection `json:"user"`
}

// SessionIssuer builds authenticated session responses from verified
// identities. It is pure composition over the token service; no store access
// happens here.
type SessionIssuer struct {
	tokens TokenService
	logger Logger
}

// NewSessionIssuer creates a SessionIssuer on top of a TokenService.
func NewSessionIssuer(tokens TokenService) *SessionIssuer {
	return &SessionIssuer{
		tokens: tokens,
		logger: defLogger{},
	}
}

func (i *SessionIssuer) WithLogger(l Logger) *SessionIssuer {
	if l != nil {
		i.logger = l
	}
	return i
}

// Issue signs session claims for the identity and wraps them with the user
// projection. A nil account falls back to a synthetic default summary keyed
// by the identity's account association.
func (i *SessionIssuer) Issue(identity Identity, account *Account) (*LoginResult, error) {
	token, err := i.tokens.Generate(identity)
	if err != nil {
		i.logger.Error("SessionIssuer failed to sign claims: %v", err)
		return nil, err
	}

	return &LoginResult{
		Token: token,
		User:  ProjectUser(identity, account),
	}, nil
}

// ProjectUser builds the sanitized user projection with safe defaults.
func ProjectUser(identity Identity, account *Account) UserProjection {
	firstName := identity.FirstName()
	if firstName == "" {
		firstName = DefaultDisplayName
	}

	summary := AccountProjection{
		ID:   identity.AccountID(),
		Name: DefaultAccountName,
	}
	if account != nil {
		summary.ID = account.ID.String()
		summary.Name = account.Name
	}

	return UserProjection{
		ID:        identity.ID(),
		Email:     identity.Email(),
		FirstName: firstName,
		LastName:  identity.LastName(),
		Role:      identity.Role(),
		Account:   summary,
	}
}
