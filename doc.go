// Package auth implements the credential-authentication and password-recovery
// core: verifying email/password pairs, issuing and validating signed session
// tokens, and managing single-use password reset tokens.
//
// Login flow:
//   - UserProvider verifies credentials against the Users repository with a
//     uniform artificial delay on every failure branch, so response latency
//     does not reveal whether an email exists or a password matched.
//   - Auther signs a JWT for the verified identity; SessionIssuer wraps the
//     token with a sanitized user projection and account summary.
//
// Protected requests:
//   - Tokens are a capability hint, not a standalone credential. Validation
//     re-resolves the current user record by subject id, so deleting a user
//     implicitly revokes every outstanding token.
//
// Password recovery:
//   - InitializePasswordResetHandler always acknowledges with the same message
//     whether or not the email exists. When it does, a random secret is
//     persisted with a one hour expiry and handed to the notifier.
//   - FinalizePasswordResetHandler consumes the secret with a conditional
//     delete, so a token redeems at most once even under concurrent requests.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther and the
//     reset handlers to describe login, impersonation, and password reset
//     events. Sinks run best-effort (errors are logged) so you can forward to
//     a database or queue without blocking authentication.
package auth
