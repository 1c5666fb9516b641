package auth

import (
	stderrors "errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// AuthControllerRoutes holds the mount points for the JSON endpoints.
type AuthControllerRoutes struct {
	Login          string
	Logout         string
	Refresh        string
	Register       string
	Me             string
	PasswordChange string
	PasswordForgot string
	PasswordReset  string
}

// AuthController exposes the authentication flows as a JSON API.
type AuthController struct {
	Debug  bool
	Logger Logger
	Repo   RepositoryManager
	Auth   *RouteAuthenticator
	Routes *AuthControllerRoutes

	activitySink  ActivitySink
	resetNotifier ResetNotifier
}

func NewAuthController(auth *RouteAuthenticator, repo RepositoryManager) *AuthController {
	return &AuthController{
		Auth:   auth,
		Repo:   repo,
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Login:          "/login",
			Logout:         "/logout",
			Refresh:        "/refresh",
			Register:       "/register",
			Me:             "/me",
			PasswordChange: "/password",
			PasswordForgot: "/password/forgot",
			PasswordReset:  "/password/reset",
		},
	}
}

func (a *AuthController) WithLogger(logger Logger) *AuthController {
	a.Logger = logger
	return a
}

func (a *AuthController) WithActivitySink(sink ActivitySink) *AuthController {
	a.activitySink = sink
	return a
}

func (a *AuthController) WithResetNotifier(n ResetNotifier) *AuthController {
	a.resetNotifier = n
	return a
}

// RegisterAuthRoutes mounts the controller. Password change and profile
// update require a verified session; everything else is public.
func RegisterAuthRoutes[T any](app router.Router[T], controller *AuthController, cfg Config) {
	protected := controller.Auth.ProtectedRoute(cfg, controller.Auth.MakeClientRouteAuthErrorHandler(false))

	app.Post(controller.Routes.Login, controller.LoginPost)
	app.Post(controller.Routes.Logout, controller.LogoutPost)
	app.Post(controller.Routes.Refresh, controller.RefreshPost)
	app.Post(controller.Routes.Register, controller.RegistrationCreate)

	app.Post(controller.Routes.PasswordForgot, controller.PasswordForgotPost)
	app.Post(controller.Routes.PasswordReset, controller.PasswordResetPost)
	app.Get(fmt.Sprintf("%s/:token", controller.Routes.PasswordReset), controller.PasswordResetCheck)

	app.Get(controller.Routes.Me, controller.MeGet, protected)
	app.Put(controller.Routes.Me, controller.ProfileUpdate, protected)
	app.Post(controller.Routes.PasswordChange, controller.PasswordChangePost, protected)
}

// LoginRequest is the login body.
type LoginRequest struct {
	Identifier      string `form:"identifier" json:"identifier"`
	Password        string `form:"password" json:"password"`
	ExtendedSession bool   `form:"extended_session" json:"extended_session"`
}

func (r LoginRequest) GetIdentifier() string    { return r.Identifier }
func (r LoginRequest) GetPassword() string      { return r.Password }
func (r LoginRequest) GetExtendedSession() bool { return r.ExtendedSession }

// Validate will validate the payload
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 255)),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload: %v", err)
		return a.badRequest(ctx, "Error parsing body")
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("login validate payload: %v", err)
		// Missing fields get the same response as bad credentials so the
		// endpoint does not leak which part was wrong, and the same delay
		// so it is not distinguishable by timing either.
		time.Sleep(DefaultFailureDelay)
		return a.invalidCredentials(ctx)
	}

	result, err := a.Auth.Login(ctx, payload)
	if err != nil {
		return a.invalidCredentials(ctx)
	}

	// The verifier only carries the account association; swap the synthetic
	// summary for the real record when it resolves.
	if account, err := a.Repo.Accounts().GetByID(ctx.Context(), result.User.Account.ID); err == nil && account != nil {
		result.User.Account = AccountProjection{
			ID:   account.ID.String(),
			Name: account.Name,
		}
	}

	return ctx.JSON(router.StatusOK, result)
}

// LogoutPost clears the session cookie. Tokens stay valid until expiry so
// this is an acknowledgment, not a revocation.
func (a *AuthController) LogoutPost(ctx router.Context) error {
	a.Auth.Logout(ctx)
	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
	})
}

// RefreshRequest carries the token to exchange for a fresh one.
type RefreshRequest struct {
	Token string `form:"token" json:"token"`
}

// Validate will validate the payload
func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

func (a *AuthController) RefreshPost(ctx router.Context) error {
	payload := new(RefreshRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("refresh parse payload: %v", err)
		return a.badRequest(ctx, "Error parsing body")
	}

	raw := payload.Token
	if raw == "" {
		raw = TokenFromRequest(ctx, a.Auth.cfg)
	}

	if raw == "" {
		return a.invalidToken(ctx)
	}

	token, err := a.Auth.auth.Refresh(ctx.Context(), raw)
	if err != nil {
		a.Logger.Error("refresh token: %v", err)
		return a.invalidToken(ctx)
	}

	a.Auth.setCookieToken(ctx, token, a.Auth.cookieDuration)

	return ctx.JSON(router.StatusOK, map[string]any{
		"token": token,
	})
}

// RegistrationCreatePayload is the registration body.
type RegistrationCreatePayload struct {
	FirstName       string `form:"first_name" json:"first_name"`
	LastName        string `form:"last_name" json:"last_name"`
	Email           string `form:"email" json:"email"`
	Phone           string `form:"phone_number" json:"phone_number"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
	AccountID       string `form:"account_id" json:"account_id"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.Length(10, 15)),
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, 72)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
		validation.Field(&r.AccountID, validation.Required, is.UUIDv4),
	)
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register user parse payload: %v", err)
		return a.badRequest(ctx, "Error parsing body")
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register user validate payload: %v", err)
		return a.validationFailed(ctx, err)
	}

	accountID, err := uuid.Parse(payload.AccountID)
	if err != nil {
		return a.validationFailed(ctx, err)
	}

	var projection UserProjection

	req := RegisterUserMessage{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Phone:     payload.Phone,
		Password:  payload.Password,
		AccountID: accountID,
		OnResponse: func(u UserProjection) {
			projection = u
		},
	}

	ph := NewRegisterUserHandler(a.Repo).WithLogger(a.Logger)

	if err := ph.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("register user execute: %v", err)
		return a.richError(ctx, err)
	}

	if a.Debug {
		fmt.Println(print.MaybePrettyJSON(projection))
	}

	return ctx.JSON(router.StatusCreated, map[string]any{
		"user": projection,
	})
}

func (a *AuthController) MeGet(ctx router.Context) error {
	identity, err := GetRouterIdentity(ctx, a.Auth.contextKey(a.Auth.cfg))
	if err != nil {
		return a.invalidToken(ctx)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"user": map[string]any{
			"id":         identity.ID(),
			"email":      identity.Email(),
			"username":   identity.Username(),
			"role":       identity.Role(),
			"account_id": identity.AccountID(),
		},
	})
}

// ProfileUpdatePayload carries the fields to patch. Absent fields keep
// their stored value.
type ProfileUpdatePayload struct {
	Email     *string `form:"email" json:"email"`
	FirstName *string `form:"first_name" json:"first_name"`
	LastName  *string `form:"last_name" json:"last_name"`
	Phone     *string `form:"phone_number" json:"phone_number"`
}

// Validate will validate the payload
func (r ProfileUpdatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.NilOrNotEmpty),
		validation.Field(&r.FirstName, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.NilOrNotEmpty, validation.Length(1, 200)),
	)
}

func (a *AuthController) ProfileUpdate(ctx router.Context) error {
	identity, err := GetRouterIdentity(ctx, a.Auth.contextKey(a.Auth.cfg))
	if err != nil {
		return a.invalidToken(ctx)
	}

	userID, err := uuid.Parse(identity.ID())
	if err != nil {
		return a.invalidToken(ctx)
	}

	payload := new(ProfileUpdatePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("profile update parse payload: %v", err)
		return a.badRequest(ctx, "Error parsing body")
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("profile update validate payload: %v", err)
		return a.validationFailed(ctx, err)
	}

	var projection UserProjection

	req := UpdateProfileMessage{
		UserID:    userID,
		Email:     payload.Email,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Phone:     payload.Phone,
		OnResponse: func(u UserProjection) {
			projection = u
		},
	}

	ph := NewUpdateProfileHandler(a.Repo).WithLogger(a.Logger)

	if err := ph.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("profile update execute: %v", err)
		return a.richError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"user": projection,
	})
}

// PasswordChangePayload carries the current and replacement passwords.
type PasswordChangePayload struct {
	CurrentPassword string `form:"current_password" json:"current_password"`
	NewPassword     string `form:"new_password" json:"new_password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r PasswordChangePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(MinPasswordLength, 72)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.NewPassword)),
		),
	)
}

func (a *AuthController) PasswordChangePost(ctx router.Context) error {
	identity, err := GetRouterIdentity(ctx, a.Auth.contextKey(a.Auth.cfg))
	if err != nil {
		return a.invalidToken(ctx)
	}

	userID, err := uuid.Parse(identity.ID())
	if err != nil {
		return a.invalidToken(ctx)
	}

	payload := new(PasswordChangePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password change parse payload: %v", err)
		return a.badRequest(ctx, "Error parsing body")
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("password change validate payload: %v", err)
		return a.validationFailed(ctx, err)
	}

	req := ChangePasswordMessage{
		UserID:          userID,
		CurrentPassword: payload.CurrentPassword,
		NewPassword:     payload.NewPassword,
	}

	ph := NewChangePasswordHandler(a.Repo).
		WithLogger(a.Logger).
		WithActivitySink(a.activitySink)

	if err := ph.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("password change execute: %v", err)
		return a.richError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"success": true,
	})
}

// PasswordForgotPayload holds the address requesting recovery.
type PasswordForgotPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r PasswordForgotPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// PasswordForgotPost always acknowledges with the same message, whether or
// not the address matched an account.
func (a *AuthController) PasswordForgotPost(ctx router.Context) error {
	payload := new(PasswordForgotPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password forgot parse payload: %v", err)
		return a.badRequest(ctx, "Error parsing body")
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("password forgot validate payload: %v", err)
		return a.validationFailed(ctx, err)
	}

	var res *InitializePasswordResetResponse

	req := InitializePasswordResetMessage{
		Email: payload.Email,
		OnResponse: func(resp *InitializePasswordResetResponse) {
			res = resp
		},
	}

	ph := NewInitializePasswordResetHandler(a.Repo).WithLogger(a.Logger)
	if a.resetNotifier != nil {
		ph = ph.WithNotifier(a.resetNotifier)
	}

	if err := ph.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("password forgot execute: %v", err)
		return a.richError(ctx, err)
	}

	if a.Debug {
		fmt.Println(print.MaybePrettyJSON(res))
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"message": res.Message,
	})
}

// PasswordResetPayload carries the emailed secret and the replacement
// password.
type PasswordResetPayload struct {
	Token           string `form:"token" json:"token"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r PasswordResetPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required, validation.Length(MinResetPasswordLength, 72)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) PasswordResetPost(ctx router.Context) error {
	payload := new(PasswordResetPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset parse payload: %v", err)
		return a.badRequest(ctx, "Error parsing body")
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("password reset validate payload: %v", err)
		return a.validationFailed(ctx, err)
	}

	req := FinalizePasswordResetMessage{
		Token:    payload.Token,
		Password: payload.Password,
	}

	ph := NewFinalizePasswordResetHandler(a.Repo).
		WithLogger(a.Logger).
		WithActivitySink(a.activitySink)

	if err := ph.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("password reset execute: %v", err)
		return a.richError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"message": PasswordResetSuccessMessage,
	})
}

// PasswordResetCheck reports whether a reset secret is still redeemable
// without consuming it. Reset forms call this before showing the password
// fields.
func (a *AuthController) PasswordResetCheck(ctx router.Context) error {
	secret := ctx.Param("token", "")
	if secret == "" {
		return a.badRequest(ctx, "Missing reset token")
	}

	ph := NewFinalizePasswordResetHandler(a.Repo).WithLogger(a.Logger)

	check, err := ph.Check(ctx.Context(), secret)
	if err != nil {
		a.Logger.Error("password reset check: %v", err)
		return a.richError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"valid":   check.Valid,
		"message": check.Message,
	})
}

func (a *AuthController) invalidCredentials(ctx router.Context) error {
	return ctx.JSON(router.StatusUnauthorized, map[string]any{
		"error": ErrInvalidCredentials.Message,
		"code":  ErrInvalidCredentials.TextCode,
	})
}

func (a *AuthController) invalidToken(ctx router.Context) error {
	return ctx.JSON(router.StatusUnauthorized, map[string]any{
		"error": ErrInvalidToken.Message,
		"code":  ErrInvalidToken.TextCode,
	})
}

func (a *AuthController) badRequest(ctx router.Context, msg string) error {
	return ctx.JSON(router.StatusBadRequest, map[string]any{
		"error": msg,
	})
}

func (a *AuthController) validationFailed(ctx router.Context, err error) error {
	return ctx.JSON(router.StatusBadRequest, map[string]any{
		"error":   "Validation failed",
		"details": err.Error(),
	})
}

// richError maps domain errors onto their HTTP status, falling back to a
// generic 500 for anything uncategorized.
func (a *AuthController) richError(ctx router.Context, err error) error {
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.Code > 0 {
		return ctx.JSON(richErr.Code, map[string]any{
			"error": richErr.Message,
			"code":  richErr.TextCode,
		})
	}

	return ctx.JSON(router.StatusInternalServerError, map[string]any{
		"error": "Internal server error",
	})
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != str {
			return stderrors.New("values must match")
		}
		return nil
	}
}
