package registry_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/autom8ter/patchkit/errors"
	"github.com/autom8ter/patchkit/store"
	"github.com/autom8ter/patchkit/store/registry"
	"github.com/autom8ter/patchkit/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	registry.Register("registry-test-mem", func(ctx context.Context, params map[string]any) (store.Store, error) {
		return testutil.NewMemoryStore(), nil
	})
	registry.Register("registry-test-broken", func(ctx context.Context, params map[string]any) (store.Store, error) {
		return nil, fmt.Errorf("connection refused")
	})
	t.Run("open registered", func(t *testing.T) {
		s, err := registry.Open(ctx, "registry-test-mem", nil)
		assert.Nil(t, err)
		assert.NotNil(t, s)
		assert.Nil(t, s.Close())
	})
	t.Run("open unregistered", func(t *testing.T) {
		_, err := registry.Open(ctx, "nope", nil)
		assert.True(t, errors.Is(err, errors.Setup))
	})
	t.Run("opener failure is a setup error", func(t *testing.T) {
		_, err := registry.Open(ctx, "registry-test-broken", nil)
		assert.True(t, errors.Is(err, errors.Setup))
		assert.Contains(t, err.Error(), "connection refused")
	})
	t.Run("drivers", func(t *testing.T) {
		assert.Contains(t, registry.Drivers(), "registry-test-mem")
	})
}
