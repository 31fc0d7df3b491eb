package logging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riddler/statifier/logging"
)

func TestMemoryAdapterRecordsAboveMinimum(t *testing.T) {
	a := logging.NewMemoryAdapter(10, logging.Info)

	a.Log(logging.Debug, "should be dropped", nil)
	a.Log(logging.Warn, "should be kept", map[string]any{"x": 1})

	entries := a.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "should be kept", entries[0].Message)
	assert.Equal(t, logging.Warn, entries[0].Level)
}

func TestMemoryAdapterRingBuffer(t *testing.T) {
	a := logging.NewMemoryAdapter(3, logging.Trace)
	for i := 0; i < 5; i++ {
		a.Log(logging.Info, "msg", map[string]any{"i": i})
	}
	entries := a.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, 2, entries[0].Metadata["i"])
	assert.Equal(t, 4, entries[2].Metadata["i"])
}

func TestMemoryAdapterReset(t *testing.T) {
	a := logging.NewMemoryAdapter(10, logging.Trace)
	a.Log(logging.Info, "msg", nil)
	require.Len(t, a.Entries(), 1)
	a.Reset()
	assert.Empty(t, a.Entries())
}

func TestFeatureRegistryNeverLowersLevel(t *testing.T) {
	r := logging.NewFeatureRegistry()
	r.Mark("deep-history", logging.Supported)
	r.Mark("deep-history", logging.Partial)
	assert.Equal(t, logging.Supported, r.Get("deep-history"))
}

func TestFeatureRegistryDefaultsUnsupported(t *testing.T) {
	r := logging.NewFeatureRegistry()
	assert.Equal(t, logging.Unsupported, r.Get("never-marked"))
}

func TestFeatureRegistrySnapshotIsACopy(t *testing.T) {
	r := logging.NewFeatureRegistry()
	r.Mark("parallel", logging.Supported)

	snap := r.Snapshot()
	snap["parallel"] = logging.Unsupported

	assert.Equal(t, logging.Supported, r.Get("parallel"))
}

func TestFeatureRegistryDumpYAML(t *testing.T) {
	r := logging.NewFeatureRegistry()
	r.Mark("deep-history", logging.Partial)

	out, err := r.DumpYAML()
	require.NoError(t, err)
	assert.Contains(t, out, "deep-history: partial")
}
