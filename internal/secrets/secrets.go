// Package secrets retrieves the payment processor's API key from a managed
// secret store. Every Access call round-trips to the store; nothing is cached
// across invocations.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"

	"cardsignup/internal/types"
)

// LatestVersion is the version alias resolving to the most recent version.
const LatestVersion = "latest"

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Payload is the result of a secret access. Every backend returns this one
// shape: a checksum mismatch is reported through Verified rather than by a
// different return type, and the caller decides whether to use the value.
type Payload struct {
	// Name is the fully-qualified resource name that was accessed.
	Name string
	// Value is the payload text. Only trust it when Verified is true.
	Value types.SecretString
	// Checksum is the CRC-32C reported by the store alongside the payload.
	Checksum int64
	// Verified is false when the locally computed CRC-32C differs from Checksum.
	Verified bool
}

// Accessor fetches one version of a named secret.
type Accessor interface {
	Access(ctx context.Context, projectID, secretID, versionID string) (*Payload, error)
}

// ResourceName builds the fully-qualified secret version name.
func ResourceName(projectID, secretID, versionID string) string {
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", projectID, secretID, versionID)
}

// Checksum computes the CRC-32C (Castagnoli) of data as the store reports it.
func Checksum(data []byte) int64 {
	return int64(crc32.Checksum(data, castagnoli))
}

func accessError(name string, err error) *types.AppError {
	return types.NewAppErrorWithDetails(
		types.ErrCodeSecretAccess,
		fmt.Sprintf("failed to access secret version %s", name),
		err,
		map[string]any{"secret": name},
	)
}

var errEmptyLocalKey = errors.New("STRIPE_SECRET_KEY is empty")
