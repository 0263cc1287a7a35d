// Command robocup runs the full control stack for one match: vision or
// simulator in, referee and tactics in the middle, radio out.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/rfccambridge/robocup-prototype/internal/config"
	"github.com/rfccambridge/robocup-prototype/internal/control"
	"github.com/rfccambridge/robocup-prototype/internal/coordinator"
	"github.com/rfccambridge/robocup-prototype/internal/field"
	"github.com/rfccambridge/robocup-prototype/internal/gamestate"
	"github.com/rfccambridge/robocup-prototype/internal/logging"
	"github.com/rfccambridge/robocup-prototype/internal/planner"
	"github.com/rfccambridge/robocup-prototype/internal/radio"
	"github.com/rfccambridge/robocup-prototype/internal/refbox"
	"github.com/rfccambridge/robocup-prototype/internal/sim"
	"github.com/rfccambridge/robocup-prototype/internal/strategy"
	"github.com/rfccambridge/robocup-prototype/internal/telemetry"
	"github.com/rfccambridge/robocup-prototype/internal/vision"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "robocup:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		modeFlag  = flag.String("mode", "full_game", "control mode: manual_ui, goalie_test, attacker_test, defender_test, scripted_demo, full_game")
		teamFlag  = flag.String("team", "blue", "home team color: blue or yellow")
		bothTeams = flag.Bool("control-both-teams", false, "run control loops for both teams")
		simulate  = flag.Bool("simulate", false, "run against the simulator instead of vision and radio")
		noRadio   = flag.Bool("no-radio", false, "skip the radio provider")
		noRefbox  = flag.Bool("no-refbox", false, "skip the referee provider and begin the game immediately")
		configDir = flag.String("config", ".", "directory holding robocup.cfg.json")
		debug     = flag.Bool("debug", false, "force debug logging")
	)
	flag.Parse()

	if err := config.Load(*configDir); err != nil {
		return err
	}
	level := viper.GetString("logLevel")
	if *debug {
		level = "debug"
	}

	sessionStart := time.Now()
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("creating logs directory: %w", err)
	}
	logFile, err := os.Create(logging.LogFilePath(logsDir, "robocup", sessionStart))
	if err != nil {
		return fmt.Errorf("creating log file: %w", err)
	}
	defer logFile.Close()

	var otelProvider *telemetry.OTelProvider
	if viper.GetBool("otel.enabled") {
		otelFile, err := os.Create(logging.LogFilePath(logsDir, "robocup.otel", sessionStart))
		if err != nil {
			return fmt.Errorf("creating otel log file: %w", err)
		}
		defer otelFile.Close()
		otelProvider, err = telemetry.NewOTelProvider(telemetry.OTelConfigFromViper(otelFile))
		if err != nil {
			return err
		}
	} else {
		otelProvider, err = telemetry.NewOTelProvider(telemetry.OTelConfig{})
		if err != nil {
			return err
		}
	}
	defer otelProvider.Shutdown(context.Background())

	logManager := logging.NewManager()
	logManager.Setup(logFile, level, otelProvider.LoggerProvider())
	log := logManager.Logger()
	defer logManager.Flush(context.Background())

	team, err := gamestate.ParseTeam(*teamFlag)
	if err != nil {
		return err
	}
	mode := control.ParseMode(*modeFlag)

	store := gamestate.NewStore(gamestate.ConfigFromViper())
	f := field.FromConfig()
	pl := planner.FromConfig(f, sessionStart.UnixNano())

	coord := coordinator.New(store, log, coordinator.OptionsFromViper())

	if *simulate {
		// The simulator replaces both the camera feed and the robots.
		*noRadio = true
		coord.Add(sim.New(f, log))
	} else {
		coord.Add(vision.New(log))
	}

	if *noRefbox {
		// Nobody will send the start command, begin immediately.
		store.SetGameBegun()
	} else {
		coord.Add(refbox.New(log))
	}

	coord.Add(control.NewLoop(team, mode, strategy.ForMode(mode), f, pl, log))
	if *bothTeams {
		// The planner is single-owner, so the second loop gets its own.
		awayPlanner := planner.FromConfig(f, sessionStart.UnixNano()+1)
		coord.Add(control.NewLoop(team.Opponent(), mode, strategy.ForMode(mode), f, awayPlanner, log))
	}

	if !*noRadio {
		transport, err := radio.Dial(viper.GetString("radio.addr"))
		if err != nil {
			return err
		}
		coord.Add(radio.New(team, transport, log))
		if *bothTeams {
			awayTransport, err := radio.Dial(viper.GetString("radio.addr"))
			if err != nil {
				return err
			}
			coord.Add(radio.New(team.Opponent(), awayTransport, log))
		}
	}

	if viper.GetBool("influx.enabled") {
		zl := zerolog.New(os.Stdout).With().Timestamp().Logger()
		writer := telemetry.NewInfluxWriter(zl, logging.LogFilePath(logsDir, "robocup.influx", sessionStart)+".gz")
		if err := writer.Connect(); err != nil {
			return err
		}
		defer writer.Close()
		coord.Add(telemetry.NewReporter(writer))
	}

	store.StartAnalysis()
	defer store.StopAnalysis()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("robocup control stack starting",
		"team", team.String(), "mode", mode.String(),
		"simulate", *simulate, "radio", !*noRadio, "refbox", !*noRefbox)
	return coord.Run(ctx)
}
