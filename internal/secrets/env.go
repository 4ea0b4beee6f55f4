package secrets

import (
	"context"

	"cardsignup/internal/types"
)

// EnvAccessor implements Accessor with a key taken from the local
// environment. It exists for local development only; config refuses it
// outside APP_ENV=local.
type EnvAccessor struct {
	key types.SecretString
}

// NewEnvAccessor creates an EnvAccessor returning key for every secret.
func NewEnvAccessor(key types.SecretString) *EnvAccessor {
	return &EnvAccessor{key: key}
}

// Access returns the configured key regardless of the requested name.
func (a *EnvAccessor) Access(_ context.Context, projectID, secretID, versionID string) (*Payload, error) {
	name := ResourceName(projectID, secretID, versionID)
	if a.key.IsZero() {
		return nil, accessError(name, errEmptyLocalKey)
	}
	return &Payload{
		Name:     name,
		Value:    a.key,
		Checksum: Checksum([]byte(a.key.Unmask())),
		Verified: true,
	}, nil
}
