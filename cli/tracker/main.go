package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dispatchd/fleettrack/cli/tracker/api"
	"github.com/dispatchd/fleettrack/cli/tracker/cache"
	"github.com/dispatchd/fleettrack/cli/tracker/config"
	"github.com/dispatchd/fleettrack/cli/tracker/feed"
	"github.com/dispatchd/fleettrack/cli/tracker/sim"
	"github.com/dispatchd/fleettrack/cli/tracker/store"
	syncsvc "github.com/dispatchd/fleettrack/cli/tracker/sync"
)

func main() {
	configFilePath := ""
	flag.StringVar(&configFilePath, "c", "", "")
	flag.Parse()
	settings, err := getConfig(configFilePath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
		return
	}

	configureLogging(settings)

	positionCache, err := cache.New(settings.Cache)
	if err != nil {
		log.Fatalf("Failed to initialize position cache: %v", err)
		return
	}
	defer positionCache.Close()

	vehicleStore, err := store.New(settings.Store)
	if err != nil {
		log.Fatalf("Failed to initialize vehicle store: %v", err)
		return
	}
	defer vehicleStore.Close()

	feeds := &feed.Repository{}
	if err := feeds.LoadSinks(settings.Feeds); err != nil {
		log.Fatalf("Failed to initialize feed sinks: %v", err)
		return
	}
	defer feeds.Close()

	writer := &feed.Writer{Cache: positionCache, Feeds: feeds}

	syncService := syncsvc.NewService(positionCache, vehicleStore, settings.GetSyncInterval())
	syncService.Start()
	defer syncService.Stop()

	simulator := sim.NewSimulator(writer, settings.GetUpdateInterval(), settings.GetBounds())
	if settings.AutoPopulate {
		if err := simulator.PopulateFromStore(vehicleStore); err != nil {
			log.WithField("err", err).Error("Failed to populate simulator from the vehicle store")
		}
	}
	simulator.Start()
	defer simulator.Stop()

	go runApi(positionCache, writer, simulator, syncService, settings.ApiPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")
}

func getConfig(configFilePath string) (config.Settings, error) {
	if configFilePath == "" {
		return config.Settings{}, errors.New("config path is not set")
	}

	c, err := config.New(configFilePath)
	if err != nil {
		return c, fmt.Errorf("failed to parse config: %v", err)
	}
	return c, nil
}

func configureLogging(settings config.Settings) {
	log.SetLevel(settings.GetLogLevel())

	consoleFmt := &log.TextFormatter{ForceColors: true, FullTimestamp: false}
	log.SetFormatter(consoleFmt)
	log.SetOutput(os.Stdout)

	if settings.LogFilePath != "" {
		logDir := filepath.Dir(settings.LogFilePath)
		if _, err := os.Stat(logDir); os.IsNotExist(err) {
			if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
				log.Fatalf("Failed to create log directory: %v", err)
			}
		}

		lumberjackLogger := &lumberjack.Logger{
			Filename:   settings.LogFilePath,
			MaxSize:    100,
			MaxBackups: 366,
			MaxAge:     settings.LogMaxAgeDays,
			Compress:   true,
		}

		fileFmt := &log.TextFormatter{DisableColors: true, FullTimestamp: true}
		hook := lfshook.NewHook(lfshook.WriterMap{
			log.PanicLevel: lumberjackLogger,
			log.FatalLevel: lumberjackLogger,
			log.ErrorLevel: lumberjackLogger,
			log.WarnLevel:  lumberjackLogger,
			log.InfoLevel:  lumberjackLogger,
			log.DebugLevel: lumberjackLogger,
			log.TraceLevel: lumberjackLogger,
		}, fileFmt)

		log.AddHook(hook)
	}
}

func runApi(positionCache cache.Cache, writer *feed.Writer, simulator *sim.Simulator, syncService *syncsvc.Service, port int32) {
	handler := api.NewHandler(positionCache, writer, simulator, syncService)
	controller := api.NewController(handler)

	log.Infof("Starting API on port %d", port)
	if err := controller.Run(port); err != nil {
		log.Fatal(err)
	}
}
