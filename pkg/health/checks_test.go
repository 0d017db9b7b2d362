package health

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/JailtonJunior94/observable-service/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheCheck(t *testing.T) {
	s := store.NewMemory()
	check := CacheCheck(s, true)

	assert.Equal(t, CacheCheckName, check.Name)
	assert.True(t, check.Critical)
	assert.NoError(t, check.Probe(context.Background()))

	require.NoError(t, s.Close())
	assert.ErrorIs(t, check.Probe(context.Background()), store.ErrClosed)
}

func TestMemoryCheck(t *testing.T) {
	assert.NoError(t, MemoryCheck(1<<20).Probe(context.Background()))
	assert.Error(t, MemoryCheck(0).Probe(context.Background()))
	assert.False(t, MemoryCheck(0).Critical)
}

func TestDiskCheck(t *testing.T) {
	dir := t.TempDir()

	check := DiskCheck(dir, 100.1)
	assert.Equal(t, DiskCheckName, check.Name)
	assert.False(t, check.Critical)
	assert.NoError(t, check.Probe(context.Background()))

	err := DiskCheck(dir, 0).Probe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "used, limit 0.0%")

	assert.Error(t, DiskCheck(filepath.Join(dir, "missing"), 90).Probe(context.Background()))
}

func TestFaultSet(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEvaluator(t)
	mustRegister(t, e, CacheCheck(store.NewMemory(), false))
	faults := NewFaultSet(e)

	t.Run("critical fault makes the service unhealthy", func(t *testing.T) {
		fault, err := faults.Set("payments", true, "")
		require.NoError(t, err)
		assert.Equal(t, "simulated failure", fault.Message)

		report := e.CheckHealth(ctx)
		assert.Equal(t, StatusUnhealthy, report.Status)
		assert.False(t, report.Checks["payments"].OK)
		assert.True(t, report.Checks["cache"].OK)
	})

	t.Run("setting again updates criticality", func(t *testing.T) {
		_, err := faults.Set("payments", false, "slow upstream")
		require.NoError(t, err)

		report := e.CheckHealth(ctx)
		assert.Equal(t, StatusDegraded, report.Status)
		assert.Equal(t, "slow upstream", report.Checks["payments"].Error)
		assert.Len(t, faults.List(), 1)
	})

	t.Run("built-in checks cannot be overridden", func(t *testing.T) {
		_, err := faults.Set(CacheCheckName, true, "")
		assert.True(t, errors.Is(err, ErrReservedCheck))
	})

	t.Run("clearing restores health", func(t *testing.T) {
		assert.True(t, faults.Clear("payments"))
		assert.False(t, faults.Clear("payments"))
		assert.Empty(t, faults.List())
		assert.Equal(t, StatusHealthy, e.CheckHealth(ctx).Status)
	})
}
