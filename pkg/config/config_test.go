package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestReservedHostCpusCapsAtEight(t *testing.T) {
	assert.Equal(t, 0, reservedHostCpus(3))
	assert.Equal(t, 2, reservedHostCpus(8))
	assert.Equal(t, 8, reservedHostCpus(64))
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.xml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().ClientListen, cfg.ClientListen)
}

func TestSaveLoadRoundTrips(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ClientListen = AddressPort{Address: "127.0.0.1", Port: 9999}
	cfg.ContainerWorkers = countAttr{Count: 7}

	path := filepath.Join(t.TempDir(), "emexd.xml")
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `port="9999"`)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", loaded.ClientListen.Address)
	assert.Equal(t, 9999, loaded.ClientListen.Port)
	assert.Equal(t, 7, loaded.ContainerWorkers.Count)
}

func TestValidateRejectsBadAllowedCpus(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowedCpus = idsAttr{IDs: "not-a-range"}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroContainerWorkers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ContainerWorkers = countAttr{Count: 0}
	assert.Error(t, cfg.Validate())
}
