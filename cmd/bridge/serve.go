package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/otto"
	"github.com/rustyeddy/otto/api"
	"github.com/rustyeddy/otto/bus"
	"github.com/rustyeddy/otto/config"
	"github.com/rustyeddy/otto/logging"
	"github.com/rustyeddy/otto/maintenance"
	"github.com/rustyeddy/otto/manager"
	"github.com/rustyeddy/otto/scenario"
	"github.com/rustyeddy/otto/sse"
	"github.com/rustyeddy/otto/store"

	_ "github.com/rustyeddy/otto/drivers/irblaster"
	_ "github.com/rustyeddy/otto/drivers/mock"
)

var (
	httpAddr       string
	brokerURL      string
	brokerClientID string
	storePath      string
	devicesDir     string
	scenariosDir   string
	roomsFile      string
	sentinelTopics []string
	maintWindow    time.Duration

	logLevel  string
	logFormat string
	logOutput string
	logFile   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway against a broker and device fleet",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&httpAddr, "addr", ":8011", "HTTP listen address for the REST/SSE API")
	serveCmd.Flags().StringVar(&brokerURL, "broker", "tcp://localhost:1883", "MQTT broker URL")
	serveCmd.Flags().StringVar(&brokerClientID, "client-id", "", "MQTT client id (random suffix if empty)")
	serveCmd.Flags().StringVar(&storePath, "store", "gateway.db", "state repository path (sqlite file, or :memory:)")
	serveCmd.Flags().StringVar(&devicesDir, "devices-dir", "config/devices", "device config directory")
	serveCmd.Flags().StringVar(&scenariosDir, "scenarios-dir", "config/scenarios", "scenario config directory")
	serveCmd.Flags().StringVar(&roomsFile, "rooms-file", "config/rooms.json", "room directory file")
	serveCmd.Flags().StringSliceVar(&sentinelTopics, "maintenance-topic", []string{"/devices/wbrules/meta/online"}, "sentinel topics that arm the maintenance window")
	serveCmd.Flags().DurationVar(&maintWindow, "maintenance-window", 10*time.Second, "how long a sentinel keeps the maintenance window armed")

	serveCmd.Flags().StringVar(&logLevel, "log-level", logging.DefaultLevel, "log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&logFormat, "log-format", logging.DefaultFormat, "log format (text, json)")
	serveCmd.Flags().StringVar(&logOutput, "log-output", logging.DefaultOutput, "log output (stdout, stderr, file, string)")
	serveCmd.Flags().StringVar(&logFile, "log-file", "", "log file path (required when log-output=file)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if strings.EqualFold(logOutput, "file") && strings.TrimSpace(logFile) == "" {
		return errors.New("log-output=file requires --log-file")
	}

	logSvc, err := logging.NewService(logging.Config{
		Level: logLevel, Format: logFormat, Output: logOutput, FilePath: logFile,
	})
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	log := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.NewSQLiteStore(storePath, log)
	if err != nil {
		return err
	}
	if err := st.Initialize(ctx); err != nil {
		return fmt.Errorf("store: initialize: %w", err)
	}

	sseMgr := sse.New(log)
	guard := maintenance.New(maintenance.Config{Topics: sentinelTopics, Duration: maintWindow})

	pahoBus := bus.NewPahoBus(bus.Config{Broker: brokerURL, ClientID: brokerClientID}, log)
	pahoBus.SetOnConnectionLost(func(wills []bus.Will) {
		for _, w := range wills {
			log.Warn("bus: publishing deferred will after connection loss", "device", w.DeviceID, "topic", w.Topic)
			_ = pahoBus.Publish(context.Background(), w.Topic, w.Payload, w.QoS, w.Retain)
		}
	})

	deviceMgr := manager.New(pahoBus, st, sseMgr, guard, log)

	deviceFiles, errs := config.LoadDevices(devicesDir)
	for _, e := range errs {
		log.Warn("config: device load error", "error", e)
	}
	for _, f := range deviceFiles {
		drv, err := manager.Build(f.DeviceClass, f.ToDeviceConfig(), deviceMgr.Deps())
		if err != nil {
			log.Error("manager: build device failed", "device", f.DeviceID, "class", f.DeviceClass, "error", err)
			continue
		}
		deviceMgr.RegisterDevice(drv)
	}

	rooms, err := config.LoadRooms(roomsFile)
	if err != nil {
		log.Warn("config: rooms load error", "error", err)
		rooms = config.Rooms{}
	}

	scenarioMgr := scenario.NewManager(deviceMgr, rooms, st, sseMgr, log)
	scenarioDefs, errs := config.LoadScenarios(scenariosDir)
	for _, e := range errs {
		log.Warn("config: scenario load error", "error", e)
	}
	if errs := scenarioMgr.LoadDefinitions(scenarioDefs); len(errs) > 0 {
		for _, e := range errs {
			log.Warn("scenario: definition rejected", "error", e)
		}
	}

	for _, a := range scenarioMgr.BuildAdapters(pahoBus, sseMgr) {
		deviceMgr.RegisterDevice(a)
	}

	if err := deviceMgr.SetupAll(ctx); err != nil {
		return fmt.Errorf("manager: setup: %w", err)
	}

	subs := deviceMgr.Subscriptions()
	for _, topic := range guard.SubscriptionTopics() {
		if _, already := subs[topic]; !already {
			subs[topic] = func(msg bus.Message) { deviceMgr.HandleInbound(msg.Topic, msg.Payload) }
		}
	}
	if err := pahoBus.ConnectAndSubscribe(ctx, subs); err != nil {
		return fmt.Errorf("bus: %w", err)
	}
	defer pahoBus.Disconnect(context.Background())

	if err := scenarioMgr.Initialize(ctx); err != nil {
		log.Warn("scenario: restore previous active scenario failed", "error", err)
	}

	srv := api.New(api.Deps{
		Manager:   deviceMgr,
		Scenarios: scenarioMgr,
		Store:     st,
		SSE:       sseMgr,
		Bus:       pahoBus,
		Rooms:     rooms,
		Version:   otto.Version,
		BrokerURL: brokerURL,
		Log:       log,
		Logging:   logSvc,
	})

	httpSrv := &http.Server{Addr: httpAddr, Handler: srv}

	errCh := make(chan error, 1)
	go func() {
		log.Info("bridge: listening", "addr", httpAddr, "broker", brokerURL)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("bridge: shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("bridge: http shutdown failed", "error", err)
	}

	scenarioMgr.Shutdown(shutdownCtx)
	if err := deviceMgr.Shutdown(shutdownCtx); err != nil {
		log.Warn("bridge: device manager shutdown failed", "error", err)
	}
	return nil
}
