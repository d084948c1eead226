package cloud

import (
	"context"
	"errors"

	ferrors "github.com/jrsteele09/go-fermax-cloud/internal/errors"
)

// Credential problems reported by ValidateCredentials.
const (
	ProblemInvalidAuth   = "invalid_auth"
	ProblemCannotConnect = "cannot_connect"
	ProblemUnknown       = "unknown"
)

// ValidateCredentials logs in and fetches the user profile to prove the account
// works. It returns "" on success or one of the Problem* codes.
func ValidateCredentials(ctx context.Context, c *Client) (string, error) {
	if err := c.Login(ctx); err != nil {
		return CredentialProblem(err), err
	}
	if _, err := c.GetUserInfo(ctx); err != nil {
		return CredentialProblem(err), err
	}
	return "", nil
}

// CredentialProblem classifies a setup error so the caller can choose between
// asking for new credentials and retrying later.
func CredentialProblem(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ferrors.ErrAuth):
		return ProblemInvalidAuth
	case errors.Is(err, ferrors.ErrConnection):
		return ProblemCannotConnect
	default:
		return ProblemUnknown
	}
}
