package registry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resolvd/resolvd/pkg/registry"
)

func TestRegistry_Execute(t *testing.T) {
	r := registry.NewRegistry()
	r.Register("check_order_status", func(ctx context.Context, params map[string]any) (map[string]any, error) {
		return map[string]any{
			"order_id": params["order_id"],
			"status":   "shipped",
		}, nil
	})

	res, err := r.Execute(context.Background(), "check_order_status", map[string]any{"order_id": "12345"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "shipped", res.Data["status"])
	assert.Equal(t, "12345", res.Data["order_id"])
}

func TestRegistry_ToolErrorIsFailedResult(t *testing.T) {
	r := registry.NewRegistry()
	r.Register("issue_store_credit", func(ctx context.Context, params map[string]any) (map[string]any, error) {
		return nil, errors.New("payments backend unavailable")
	})

	res, err := r.Execute(context.Background(), "issue_store_credit", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "payments backend unavailable")
	assert.False(t, res.ShouldEscalate)
}

func TestRegistry_UnknownToolEscalates(t *testing.T) {
	r := registry.NewRegistry()

	res, err := r.Execute(context.Background(), "teleport_package", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.True(t, res.ShouldEscalate)
	assert.Contains(t, res.Error, "not registered")
}

func TestRegistry_RegisterOverwrites(t *testing.T) {
	r := registry.NewRegistry()
	r.Register("tool", func(ctx context.Context, params map[string]any) (map[string]any, error) {
		return map[string]any{"version": 1}, nil
	})
	r.Register("tool", func(ctx context.Context, params map[string]any) (map[string]any, error) {
		return map[string]any{"version": 2}, nil
	})

	res, err := r.Execute(context.Background(), "tool", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Data["version"])
	assert.Equal(t, []string{"tool"}, r.Names())
}
