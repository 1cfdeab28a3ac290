package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolveConfigPath(t *testing.T) {
	t.Cleanup(func() { configPath = "" })

	t.Setenv("CONFIG_PATH", "")
	configPath = ""
	assert.Equal(t, "config.yaml", resolveConfigPath())

	t.Setenv("CONFIG_PATH", "/etc/testcompanion/config.yaml")
	assert.Equal(t, "/etc/testcompanion/config.yaml", resolveConfigPath())

	configPath = "local.yaml"
	assert.Equal(t, "local.yaml", resolveConfigPath(), "flag wins over env")
}

func TestRetryBudget(t *testing.T) {
	assert.Equal(t, 35*time.Second, retryBudget(30*time.Second, 0))
	assert.Equal(t, 105*time.Second, retryBudget(30*time.Second, 2))
	assert.Equal(t, 15*time.Second, retryBudget(10*time.Second, -1))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"aggregator", "completion", "chat", "watcher", "migrate"} {
		assert.True(t, names[want], want)
	}
}
