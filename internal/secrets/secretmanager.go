package secrets

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	gax "github.com/googleapis/gax-go/v2"

	"cardsignup/internal/types"
)

// versionAccessor is the subset of the Secret Manager client used here.
type versionAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// SecretManagerAccessor implements Accessor on Google Cloud Secret Manager
// and verifies the CRC-32C checksum returned with each payload.
type SecretManagerAccessor struct {
	mu     sync.Mutex
	client versionAccessor
	closer func() error
	logger *slog.Logger
}

// NewSecretManagerAccessor creates an accessor whose client is created lazily
// on first use with Application Default Credentials.
func NewSecretManagerAccessor(logger *slog.Logger) *SecretManagerAccessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SecretManagerAccessor{logger: logger}
}

// newSecretManagerAccessorWithClient injects a client for tests.
func newSecretManagerAccessorWithClient(client versionAccessor, logger *slog.Logger) *SecretManagerAccessor {
	a := NewSecretManagerAccessor(logger)
	a.client = client
	return a
}

func (a *SecretManagerAccessor) ensureClient(ctx context.Context) (versionAccessor, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}

	c, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating Secret Manager client: %w", err)
	}
	a.client = c
	a.closer = c.Close
	return c, nil
}

// Access fetches projects/{project}/secrets/{secret}/versions/{version}.
//
// On checksum mismatch a corruption warning is logged and the payload is
// returned with Verified=false and a nil error.
func (a *SecretManagerAccessor) Access(ctx context.Context, projectID, secretID, versionID string) (*Payload, error) {
	name := ResourceName(projectID, secretID, versionID)

	client, err := a.ensureClient(ctx)
	if err != nil {
		return nil, accessError(name, err)
	}

	resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return nil, accessError(name, err)
	}
	if resp.GetPayload() == nil {
		return nil, accessError(name, fmt.Errorf("empty payload"))
	}

	data := resp.GetPayload().GetData()
	reported := resp.GetPayload().GetDataCrc32C()

	payload := &Payload{
		Name:     resp.GetName(),
		Value:    types.SecretString(data),
		Checksum: reported,
	}
	if payload.Name == "" {
		payload.Name = name
	}

	if computed := Checksum(data); computed != reported {
		a.logger.WarnContext(ctx, "data corruption detected",
			"secret", payload.Name,
			"reported_crc32c", reported,
			"computed_crc32c", computed,
		)
		return payload, nil
	}

	if !utf8.Valid(data) {
		return nil, types.NewAppError(
			types.ErrCodeSecretAccess,
			fmt.Sprintf("secret version %s is not valid UTF-8", payload.Name),
			nil,
		)
	}

	payload.Verified = true
	return payload, nil
}

// Close releases the underlying client if one was created.
func (a *SecretManagerAccessor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closer == nil {
		return nil
	}
	err := a.closer()
	a.client, a.closer = nil, nil
	return err
}
