package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/dovechaser/internal/actuator"
	"github.com/banshee-data/dovechaser/internal/aim"
	"github.com/banshee-data/dovechaser/internal/anglemap"
	"github.com/banshee-data/dovechaser/internal/ballistics"
	"github.com/banshee-data/dovechaser/internal/chaser"
	"github.com/banshee-data/dovechaser/internal/config"
	"github.com/banshee-data/dovechaser/internal/monitor"
	"github.com/banshee-data/dovechaser/internal/monitoring"
	"github.com/banshee-data/dovechaser/internal/perception"
	"github.com/banshee-data/dovechaser/internal/serialmux"
	"github.com/banshee-data/dovechaser/internal/target"
	"github.com/banshee-data/dovechaser/internal/timeutil"
	"github.com/banshee-data/dovechaser/internal/version"
)

var (
	configPath   = flag.String("config", "", "Aim config JSON (defaults apply when empty)")
	servoPort    = flag.String("servo-port", "/dev/ttyACM0", "Serial port of the servo co-processor")
	detectorPort = flag.String("detector-port", "/dev/ttyACM1", "Serial port of the detection bridge")
	baudRate     = flag.Int("baud", serialmux.DefaultBaudRate, "Baud rate of both serial links")
	noServo      = flag.Bool("no-servo", false, "Run without the servo co-processor (track only, never fire)")
	devMode      = flag.Bool("dev", false, "Replay detections from -fixtures instead of opening serial ports")
	fixturesPath = flag.String("fixtures", "fixtures/detections.txt", "Detection lines replayed in dev mode")
	listen       = flag.String("listen", "localhost:8081", "Debug HTTP listen address (empty to disable)")
	debug        = flag.Bool("debug", false, "Enable debug logging (overrides the config)")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

// link is a serial link that also reports line statistics.
type link interface {
	serialmux.SerialMuxInterface
	monitor.LinkStats
}

func loadConfig(path string) (*config.AimConfig, error) {
	if path == "" {
		return config.EmptyAimConfig(), nil
	}
	return config.LoadAimConfig(path)
}

// readFixtures returns the non-empty, non-comment lines of path.
func readFixtures(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, l := range strings.Split(string(data), "\n") {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		lines = append(lines, l)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%s has no fixture lines", path)
	}
	return lines, nil
}

func openLinks(cfg *config.AimConfig) (servo, detector link, err error) {
	opts := serialmux.PortOptions{BaudRate: *baudRate}

	if *devMode {
		lines, err := readFixtures(*fixturesPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read fixtures: %w", err)
		}
		detector = serialmux.NewMockSerialMux("detector", lines, cfg.GetFrameInterval())
	} else {
		detector, err = serialmux.OpenSerialMux("detector", *detectorPort, opts)
		if err != nil {
			return nil, nil, err
		}
	}

	switch {
	case *noServo:
		servo = serialmux.NewDisabledSerialMux("servo")
	case *devMode:
		servo = serialmux.NewMockSerialMux("servo", []string{"PUMP_FULL 1"}, time.Second)
	default:
		servo, err = serialmux.OpenSerialMux("servo", *servoPort, opts)
		if err != nil {
			detector.Close()
			return nil, nil, err
		}
	}
	return servo, detector, nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	monitoring.SetDebug(*debug || cfg.GetDebug())

	angles, err := anglemap.Build(anglemap.GeometryFromConfig(cfg))
	if err != nil {
		log.Fatalf("failed to build angle map: %v", err)
	}
	lo, hi := angles.BetaRange()
	log.Printf("angle map: mechanical pitch [%d, %d]", lo, hi)

	servoLink, detectorLink, err := openLinks(cfg)
	if err != nil {
		log.Fatalf("failed to open serial links: %v", err)
	}
	defer servoLink.Close()
	defer detectorLink.Close()

	if err := servoLink.Initialise(); err != nil {
		log.Fatalf("failed to initialise servo link: %v", err)
	}

	clock := timeutil.RealClock{}
	tracker := target.NewTracker(cfg.GetHistoryWindow())
	servo := actuator.NewServoLink(servoLink, actuator.DutyFromConfig(cfg), clock)
	corrector := ballistics.NewCorrector(ballistics.ParamsFromConfig(cfg))
	ctrl := aim.NewController(aim.ConfigFromConfig(cfg), angles, tracker, corrector, servo, clock)
	runner := chaser.NewRunner(ctrl, servo, servo, clock, cfg.GetShootingTime())

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, l := range []link{servoLink, detectorLink} {
		wg.Add(1)
		go func(l link) {
			defer wg.Done()
			if err := l.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("%s monitor stopped: %v", l.Name(), err)
				stop()
			}
		}(l)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := servo.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("servo watch stopped: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := perception.Feed(ctx, detectorLink, tracker, perception.FrameFromConfig(cfg))
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("perception feed stopped: %v", err)
		}
	}()

	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		// The loop only returns on cancellation or an actuator fault; either
		// way the process shuts down.
		defer stop()
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("engagement loop stopped: %v", err)
		}
		if err := ctrl.Home(); err != nil {
			log.Printf("failed to home turret: %v", err)
		}
	}()

	if *listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()

			mux := http.NewServeMux()
			servoLink.AttachAdminRoutes(mux)
			detectorLink.AttachAdminRoutes(mux)
			monitor.AttachRoutes(mux, monitor.Sources{
				Aim:         ctrl,
				Target:      tracker,
				Engagements: runner,
				Links:       []monitor.LinkStats{servoLink, detectorLink},
				AngleMap:    angles,
			})

			server := &http.Server{Addr: *listen, Handler: mux}
			go func() {
				log.Printf("debug server listening on %s", *listen)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Printf("debug server failed: %v", err)
				}
			}()

			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Printf("debug server shutdown error: %v", err)
				server.Close()
			}
		}()
	}

	<-ctx.Done()
	<-runnerDone
	// Unblock the readers stuck in port reads.
	servoLink.Close()
	detectorLink.Close()
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
