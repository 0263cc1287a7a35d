package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{
		"logLevel": "debug",
		"field": { "width": 12000.0 },
		"radio": { "commandDelay": "200ms" }
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "robocup.cfg.json"), []byte(cfg), 0644))

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", GetString("logLevel"))
	assert.Equal(t, 12000.0, GetFloat("field.width"))
	assert.Equal(t, 200*time.Millisecond, GetDuration("radio.commandDelay"))
	// untouched keys keep their defaults
	assert.Equal(t, 6000.0, GetFloat("field.height"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "robocup.cfg.json"), []byte(`{}`), 0644))

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "info", GetString("logLevel"))
	assert.Equal(t, 9000.0, GetFloat("field.width"))
	assert.Equal(t, 6000.0, GetFloat("field.height"))
	assert.Equal(t, 20, GetInt("gamestate.ballHistory"))
	assert.Equal(t, 20, GetInt("gamestate.robotHistory"))
	assert.Equal(t, 100*time.Millisecond, GetDuration("gamestate.ballLost"))
	assert.Equal(t, 200*time.Millisecond, GetDuration("gamestate.robotLost"))
	assert.Equal(t, 50*time.Millisecond, GetDuration("gamestate.velocityWindow"))
	assert.Equal(t, 350.0, GetFloat("gamestate.ballDeceleration"))
	assert.Equal(t, 150*time.Millisecond, GetDuration("radio.commandDelay"))
	assert.Equal(t, 1000, GetInt("planner.iterationBudget"))
	assert.Equal(t, 0.05, GetFloat("planner.goalBias"))
	assert.Equal(t, "nats://localhost:4222", GetString("refbox.natsURL"))
	assert.Equal(t, "referee.events", GetString("refbox.subject"))
	assert.False(t, GetBool("influx.enabled"))
	assert.False(t, GetBool("otel.enabled"))
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "info", GetString("logLevel"))
}

func TestLoad_MalformedFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "robocup.cfg.json"), []byte(`{not json`), 0644))

	err := Load(dir)
	assert.Error(t, err)
}
