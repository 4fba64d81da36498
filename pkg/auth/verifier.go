package auth

import (
	"context"
	"errors"

	"github.com/folioterm/folioterm/pkg/command"
	"github.com/folioterm/folioterm/pkg/logger"
	"github.com/folioterm/folioterm/pkg/store"

	"github.com/google/uuid"
)

// Verifier checks terminal login credentials against the user store and mints
// a session token on success. Implements command.CredentialVerifier.
type Verifier struct {
	users *store.UserStore
}

// NewVerifier wraps a user store.
func NewVerifier(users *store.UserStore) *Verifier {
	return &Verifier{users: users}
}

// Verify authenticates the pair and returns a signed JWT. Rejected
// credentials surface as command.ErrInvalidCredentials; everything else is an
// infrastructure error.
func (v *Verifier) Verify(ctx context.Context, username, password string) (string, error) {
	isAdmin, err := v.users.Authenticate(ctx, username, password)
	if err != nil {
		if !errors.Is(err, command.ErrInvalidCredentials) {
			logger.AuthError("authentication backend failure for %s: %v", username, err)
		}
		return "", err
	}

	token, err := GenerateUserToken(uuid.NewString(), username, isAdmin)
	if err != nil {
		return "", err
	}
	return token, nil
}
