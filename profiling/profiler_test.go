package profiling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfiler_ProfileIfSlowSQL(t *testing.T) {
	cfg := Config{
		Enabled:          true,
		SQLTimeThreshold: 100 * time.Millisecond,
		Duration:         1 * time.Second,
		Cooldown:         200 * time.Millisecond,
	}

	t.Run("disabled profiler is nil", func(t *testing.T) {
		assert.Nil(t, NewProfiler(Config{Enabled: false}, nil))
	})

	t.Run("should not trigger below the SQL-time threshold", func(t *testing.T) {
		profiler := NewProfiler(cfg, nil)
		require.NotNil(t, profiler)

		profiler.ProfileIfSlowSQL("/fast", 50*time.Millisecond)

		assert.False(t, profiler.isCoolingDown("/fast"), "cooldown should not be set for a fast request")
	})

	t.Run("should trigger over the SQL-time threshold", func(t *testing.T) {
		profiler := NewProfiler(cfg, nil)
		require.NotNil(t, profiler)

		profiler.ProfileIfSlowSQL("/slow", 150*time.Millisecond)

		assert.True(t, profiler.isCoolingDown("/slow"), "cooldown should be set for a slow request")
	})

	t.Run("should respect cooldown period", func(t *testing.T) {
		profiler := NewProfiler(cfg, nil)
		require.NotNil(t, profiler)

		profiler.ProfileIfSlowSQL("/slow-cooldown", 150*time.Millisecond)
		require.True(t, profiler.isCoolingDown("/slow-cooldown"))

		cooldownEnd := profiler.cooldowns["/slow-cooldown"]

		profiler.ProfileIfSlowSQL("/slow-cooldown", 150*time.Millisecond)
		assert.Equal(t, cooldownEnd, profiler.cooldowns["/slow-cooldown"], "cooldown time should not be extended on second call")
	})

	t.Run("should allow profiling again after cooldown", func(t *testing.T) {
		profiler := NewProfiler(cfg, nil)
		require.NotNil(t, profiler)

		profiler.ProfileIfSlowSQL("/slow-after-cooldown", 150*time.Millisecond)
		require.True(t, profiler.isCoolingDown("/slow-after-cooldown"))

		time.Sleep(cfg.Cooldown + 50*time.Millisecond)

		assert.False(t, profiler.isCoolingDown("/slow-after-cooldown"), "cooldown should expire")
	})
}
