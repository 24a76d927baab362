package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLocalModeDefaultsUpstreamToPortPlusOne(t *testing.T) {
	t.Setenv("PORT_BACKEND", "8080")
	t.Setenv("UPSTREAM_MODE", "")
	t.Setenv("UPSTREAM_HOSTS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, UpstreamLocal, cfg.UpstreamMode)
	require.Len(t, cfg.UpstreamAddrs, 1)
	assert.Equal(t, 8081, cfg.UpstreamAddrs[0].Port)
}

func TestLoadRemoteModeParsesHostList(t *testing.T) {
	t.Setenv("PORT_BACKEND", "8080")
	t.Setenv("UPSTREAM_MODE", "remote")
	t.Setenv("UPSTREAM_HOSTS", "10.0.0.1:7860, 10.0.0.2:7861")

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.UpstreamAddrs, 2)
	assert.Equal(t, "10.0.0.1", cfg.UpstreamAddrs[0].Host)
	assert.Equal(t, 7861, cfg.UpstreamAddrs[1].Port)
}

func TestLoadMissingPortFails(t *testing.T) {
	t.Setenv("PORT_BACKEND", "")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRemoteModeRequiresHosts(t *testing.T) {
	t.Setenv("PORT_BACKEND", "8080")
	t.Setenv("UPSTREAM_MODE", "remote")
	t.Setenv("UPSTREAM_HOSTS", "")
	_, err := Load()
	assert.Error(t, err)
}
