package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardsignup/internal/types"
)

func TestEnvAccessor(t *testing.T) {
	a := NewEnvAccessor(types.SecretString("sk_test_local"))

	payload, err := a.Access(context.Background(), "p", "s", "1")
	require.NoError(t, err)
	assert.True(t, payload.Verified)
	assert.Equal(t, "sk_test_local", payload.Value.Unmask())
	assert.Equal(t, ResourceName("p", "s", "1"), payload.Name)
}

func TestEnvAccessor_EmptyKey(t *testing.T) {
	a := NewEnvAccessor("")

	_, err := a.Access(context.Background(), "p", "s", "1")
	assert.Equal(t, types.ErrCodeSecretAccess, types.CodeOf(err))
}
