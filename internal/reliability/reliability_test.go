package reliability

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottledLogger_SuppressesWithinWindow(t *testing.T) {
	tl := NewThrottledLogger(zerolog.Nop(), time.Minute)
	assert.True(t, tl.ready("k"))
	assert.False(t, tl.ready("k"), "second call within the window should be suppressed")
}

func TestThrottledLogger_DistinctKeysDoNotShareThrottle(t *testing.T) {
	tl := NewThrottledLogger(zerolog.Nop(), time.Minute)
	assert.True(t, tl.ready("a"))
	assert.True(t, tl.ready("b"))
}

func TestHealthReporter_SampleReturnsPositiveUptime(t *testing.T) {
	hr := NewHealthReporter(zerolog.Nop())
	time.Sleep(time.Millisecond)
	snap := hr.Sample()
	assert.Greater(t, snap.UptimeSeconds, 0.0)
	assert.GreaterOrEqual(t, snap.CPUPercent, 0.0)
	assert.GreaterOrEqual(t, snap.MemPercent, 0.0)
}

func TestBackupConfig_EnabledRequiresBucket(t *testing.T) {
	assert.False(t, BackupConfig{}.Enabled())
	assert.True(t, BackupConfig{Bucket: "b"}.Enabled())
}

func TestBackupUploader_DisabledConfigIsNoOp(t *testing.T) {
	u, err := NewBackupUploader(context.Background(), BackupConfig{}, t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	assert.NoError(t, u.CreateAndUpload(context.Background()))
	backups, err := u.ListBackups(context.Background())
	require.NoError(t, err)
	assert.Empty(t, backups)
	assert.NoError(t, u.RotateOldBackups(context.Background()))
}
