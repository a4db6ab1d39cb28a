package sampler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFdinfoFixture(t *testing.T, pidDir string, files map[string]string) {
	t.Helper()
	fdinfoDir := filepath.Join(pidDir, "fdinfo")
	require.NoError(t, os.MkdirAll(fdinfoDir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(fdinfoDir, name), []byte(content), 0o644))
	}
}

func TestReadFdinfoSumsEnginesAcrossFiles(t *testing.T) {
	pidDir := t.TempDir()
	writeFdinfoFixture(t, pidDir, map[string]string{
		"0": "drm-client-id:\t1\n" +
			"drm-pdev:\t0000:01:00.0\n" +
			"drm-engine-render:\t1000 ns\n" +
			"drm-engine-gfx:\t2000 ns\n",
	})

	result := ReadFdinfo(pidDir)
	require.NotNil(t, result)
	assert.Equal(t, uint64(3000), result.TotalNs)
	assert.Equal(t, uint64(1000), result.EngineNs["render"])
	assert.Equal(t, uint64(2000), result.EngineNs["gfx"])
}

func TestReadFdinfoDedupesSameClientAcrossFds(t *testing.T) {
	pidDir := t.TempDir()
	// Two fds onto the same (client-id, pdev) pair shouldn't double-count;
	// only the first fd's engine time is kept.
	writeFdinfoFixture(t, pidDir, map[string]string{
		"0": "drm-client-id:\t7\ndrm-pdev:\t0000:01:00.0\ndrm-engine-render:\t5000 ns\n",
		"1": "drm-client-id:\t7\ndrm-pdev:\t0000:01:00.0\ndrm-engine-render:\t5000 ns\n",
	})

	result := ReadFdinfo(pidDir)
	require.NotNil(t, result)
	assert.Equal(t, uint64(5000), result.TotalNs)
}

func TestReadFdinfoCountsDistinctClientsSeparately(t *testing.T) {
	pidDir := t.TempDir()
	writeFdinfoFixture(t, pidDir, map[string]string{
		"0": "drm-client-id:\t1\ndrm-pdev:\t0000:01:00.0\ndrm-engine-render:\t1000 ns\n",
		"1": "drm-client-id:\t2\ndrm-pdev:\t0000:01:00.0\ndrm-engine-render:\t1000 ns\n",
	})

	result := ReadFdinfo(pidDir)
	require.NotNil(t, result)
	assert.Equal(t, uint64(2000), result.TotalNs)
}

func TestReadFdinfoIgnoresCapacityLines(t *testing.T) {
	pidDir := t.TempDir()
	writeFdinfoFixture(t, pidDir, map[string]string{
		"0": "drm-client-id:\t1\ndrm-pdev:\t0000:01:00.0\n" +
			"drm-engine-capacity-render:\t4\n" +
			"drm-engine-render:\t1000 ns\n",
	})

	result := ReadFdinfo(pidDir)
	require.NotNil(t, result)
	assert.Equal(t, uint64(1000), result.TotalNs)
	_, hasCapacity := result.EngineNs["capacity-render"]
	assert.False(t, hasCapacity)
}

func TestReadFdinfoNoDrmFilesReturnsNil(t *testing.T) {
	pidDir := t.TempDir()
	writeFdinfoFixture(t, pidDir, map[string]string{
		"0": "pos:\t0\nflags:\t02\nmnt_id:\t25\n",
	})

	assert.Nil(t, ReadFdinfo(pidDir))
}

func TestReadFdinfoMissingDirReturnsNil(t *testing.T) {
	assert.Nil(t, ReadFdinfo(filepath.Join(t.TempDir(), "does-not-exist")))
}
