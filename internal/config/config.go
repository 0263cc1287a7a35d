// Package config loads runtime configuration through viper with
// defaults for every tunable in the control stack.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Load sets default values and reads the optional JSON config file from
// configDir. A missing file is not an error; the defaults are a
// complete working configuration for simulator runs.
func Load(configDir string) error {
	// Logging
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	// Field geometry (mm). Origin at the lower-left corner; blue defends
	// the x=0 goal line.
	viper.SetDefault("field.width", 9000.0)
	viper.SetDefault("field.height", 6000.0)
	viper.SetDefault("field.goalWidth", 1000.0)
	viper.SetDefault("field.defenseAreaWidth", 2000.0)
	viper.SetDefault("field.defenseAreaDepth", 1000.0)

	// Game state store
	viper.SetDefault("gamestate.ballHistory", 20)
	viper.SetDefault("gamestate.robotHistory", 20)
	viper.SetDefault("gamestate.ballLost", "100ms")
	viper.SetDefault("gamestate.robotLost", "200ms")
	viper.SetDefault("gamestate.velocityWindow", "50ms")
	// Rolling-friction deceleration of the ball, mm/s^2. Empirical.
	viper.SetDefault("gamestate.ballDeceleration", 350.0)
	viper.SetDefault("gamestate.analysisInterval", "50ms")

	// Coordinator
	viper.SetDefault("coordinator.tick", "8ms")
	viper.SetDefault("coordinator.stopGrace", "2s")
	viper.SetDefault("coordinator.restartBackoff", "500ms")

	// Path planning
	viper.SetDefault("planner.iterationBudget", 1000)
	viper.SetDefault("planner.goalBias", 0.05)

	// Radio / actuation
	viper.SetDefault("radio.addr", "localhost:14550")
	viper.SetDefault("radio.commandDelay", "150ms")
	viper.SetDefault("radio.moveTTL", "500ms")

	// Vision ingest
	viper.SetDefault("vision.url", "ws://localhost:10006/detections")

	// Referee ingest
	viper.SetDefault("refbox.natsURL", "nats://localhost:4222")
	viper.SetDefault("refbox.subject", "referee.events")

	// InfluxDB performance export
	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "robocup")
	viper.SetDefault("influx.bucket", "robocup_performance")
	viper.SetDefault("influx.interval", "5s")

	// OpenTelemetry
	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "robocup")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
	viper.SetDefault("otel.batchTimeout", "5s")

	// Simulator
	viper.SetDefault("sim.step", "16ms")
	viper.SetDefault("sim.setup", "full_teams")

	viper.SetConfigName("robocup.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetFloat returns a float64 config value.
func GetFloat(key string) float64 {
	return viper.GetFloat64(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}
