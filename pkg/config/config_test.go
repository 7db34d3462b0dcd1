package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "orchestrator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0640))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "vnf_types: [firewall, spamfilter]\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"firewall", "spamfilter"}, cfg.VNFTypes)
	assert.Equal(t, 1, cfg.MinInstances)
	assert.Equal(t, 10, cfg.MaxInstances)
	assert.Equal(t, 80.0, cfg.ScalingThresholds.CPU.Upper)
	assert.Equal(t, 20, cfg.Forecasting.WindowSize)
	assert.Equal(t, 9090, cfg.HTTP.MetricsPort)
	assert.Equal(t, 8080, cfg.HTTP.FlowPort)
}

func TestLoadRejectsUnrecognizedKey(t *testing.T) {
	path := writeConfig(t, "vnf_types: [firewall]\nbogus_key: true\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus_key")
}

func TestLoadRejectsInvalidInstanceBounds(t *testing.T) {
	path := writeConfig(t, "vnf_types: [firewall]\nmin_instances: 5\nmax_instances: 2\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_instances")
}

func TestLoadRejectsEmptyVNFTypes(t *testing.T) {
	path := writeConfig(t, "min_instances: 1\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vnf_types")
}

func TestLoadRejectsPathTraversal(t *testing.T) {
	_, err := Load("../../../etc/passwd.yaml")
	require.Error(t, err)
}

func TestLoadOverridesViaEnv(t *testing.T) {
	path := writeConfig(t, "vnf_types: [firewall]\n")
	t.Setenv("ORCH_MIN_INSTANCES", "2")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.MinInstances)
}
