package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/movehub-pilot/controller/domain/drive"
	"github.com/movehub-pilot/controller/domain/hub"
	"github.com/movehub-pilot/controller/domain/pilot"
	"github.com/movehub-pilot/controller/pkg/config"
	"github.com/movehub-pilot/controller/pkg/display"
	"github.com/movehub-pilot/controller/pkg/gamepad"
	customlog "github.com/movehub-pilot/controller/pkg/log"
	"github.com/movehub-pilot/controller/pkg/telemetry"
)

func main() {
	configDir := flag.String("config", "config", "directory containing pilot_config.yaml")
	simulate := flag.Bool("simulate", false, "force the simulated hub regardless of configuration")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *simulate {
		cfg.Hub.Simulate = true
	}

	logger, err := customlog.NewLogrusLogger(cfg.Logging.Level, cfg.Logging.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Infof("MoveHub pilot starting (simulate=%v)", cfg.Hub.Simulate)

	device, err := gamepad.OpenLinuxDevice(gamepad.Options{
		DevicePath:      cfg.Input.DevicePath,
		EventPath:       cfg.Input.EventPath,
		StickDeadzone:   cfg.Input.StickDeadzone,
		TriggerDeadzone: cfg.Input.TriggerDeadzone,
	}, logger)
	if err != nil {
		logger.Fatalf("Failed to open gamepad: %v", err)
	}

	var h hub.Hub
	if cfg.Hub.Simulate {
		h = hub.NewSimulatedHub(logger)
	} else {
		h = hub.NewRealHub(hub.RealHubOptions{
			DeviceName:     cfg.Hub.DeviceName,
			ScanTimeout:    time.Duration(cfg.Hub.ScanTimeoutMs) * time.Millisecond,
			ConnectTimeout: time.Duration(cfg.Hub.ConnectTimeoutMs) * time.Millisecond,
		}, logger)
	}

	mapper := drive.NewMapper(drive.Tuning{
		GearMultipliers: [3]float64{
			cfg.Drive.GearMultipliers[0],
			cfg.Drive.GearMultipliers[1],
			cfg.Drive.GearMultipliers[2],
		},
		BrakeThreshold: cfg.Drive.BrakeThreshold,
		ReverseCap:     cfg.Drive.ReverseCap,
	})
	smoother := drive.NewSmoother(cfg.Drive.Smoothing.Enabled, map[drive.Mode]drive.SlewRates{
		drive.ModeComfort: {Accel: cfg.Drive.Smoothing.ComfortAccel, Brake: cfg.Drive.Smoothing.ComfortBrake},
		drive.ModeSport:   {Accel: cfg.Drive.Smoothing.SportAccel, Brake: cfg.Drive.Smoothing.SportBrake},
	})

	// telemetry surface: console always, HTTP/websocket and ZeroMQ per config.
	// Everything hangs off one bounded broadcaster so a slow consumer can
	// never stall a tick.
	sinks := []pilot.Sink{display.NewConsole(logger)}

	var server *telemetry.Server
	if cfg.Telemetry.Enabled {
		server = telemetry.NewServer(cfg, logger)
		sinks = append(sinks, server)
	}

	var zmqPub *telemetry.ZMQPublisher
	if cfg.Telemetry.Enabled && cfg.Telemetry.ZMQ.Enabled {
		zmqPub, err = telemetry.NewZMQPublisher(cfg.Telemetry.ZMQ.PublishBindAddress, cfg.Telemetry.ZMQ.Topic, logger)
		if err != nil {
			logger.Fatalf("Failed to start ZeroMQ publisher: %v", err)
		}
		sinks = append(sinks, zmqPub)
	}

	broadcaster := telemetry.NewBroadcaster("telemetry", cfg.Telemetry.QueueSize, logger, sinks...)
	broadcaster.Start()

	loop := pilot.New(device, h, mapper, smoother, broadcaster, logger, pilot.Options{
		TickRate:      cfg.Drive.TickRateHz,
		InnerDeadzone: cfg.Drive.InnerDeadzone,
		Simulated:     cfg.Hub.Simulate,
	})

	if server != nil {
		go func() {
			if err := server.Listen(); err != nil {
				logger.Errorf("Telemetry server stopped: %v", err)
			}
		}()
	}

	// SIGINT/SIGTERM cancel the loop context; the loop performs its own
	// safe stop before returning.
	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		logger.Infof("Received %v, shutting down", sig)
		cancel()
	}()

	status, runErr := loop.Run(ctx)
	if runErr != nil {
		logger.Errorf("Control loop stopped: %v", runErr)
	}

	broadcaster.Stop()
	if zmqPub != nil {
		zmqPub.Close()
	}
	if server != nil {
		if err := server.Shutdown(); err != nil {
			logger.Errorf("Telemetry server shutdown failed: %v", err)
		}
	}

	switch status {
	case pilot.ExitNormal:
		logger.Infof("Shutdown complete")
	case pilot.ExitHubInitFailed:
		os.Exit(2)
	case pilot.ExitInputLost:
		os.Exit(3)
	}
}
