package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"couchsync/api"
	"couchsync/config"
	"couchsync/handlers"
	"couchsync/internal/imagecache"
	"couchsync/internal/storage"
	"couchsync/services/offline"
	"couchsync/services/party"
	"couchsync/services/profiles"
	"couchsync/services/progress"
	"couchsync/utils"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	// Optional .env for local development; missing file is fine
	_ = godotenv.Load()

	fmt.Println("couchsync backend starting...")

	// Determine config path (env or default)
	configPath := os.Getenv("COUCHSYNC_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("data", "settings.json")
	}

	// Init config manager and load settings (creates defaults if missing)
	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Set up file logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			multiWriter := io.MultiWriter(os.Stdout, fileWriter)
			log.SetOutput(multiWriter)
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	store, err := storage.NewFileStore(settings.Storage.Directory)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}

	images := imagecache.New(afero.NewOsFs(), settings.Storage.ImageDirectory)

	profilesSvc, err := profiles.NewService(store)
	if err != nil {
		log.Fatalf("failed to init profiles service: %v", err)
	}

	progressSvc, err := progress.NewService(store, settings.Progress.MaxEntries, progress.Thresholds{
		MinSeconds: settings.Progress.ResumeMinSeconds,
		MinPercent: settings.Progress.ResumeMinPercent,
		MaxPercent: settings.Progress.ResumeMaxPercent,
	})
	if err != nil {
		log.Fatalf("failed to init progress service: %v", err)
	}

	offlineSvc, err := offline.NewService(store, images, settings.Offline.MaxItems,
		time.Duration(settings.Offline.MaxAgeDays)*24*time.Hour)
	if err != nil {
		log.Fatalf("failed to init offline service: %v", err)
	}

	partySvc := party.NewService(settings.Party.CodeLength,
		time.Duration(settings.Party.TTLHours)*time.Hour)
	if err := partySvc.Start(context.Background()); err != nil {
		log.Fatalf("failed to start party janitor: %v", err)
	}

	r := utils.NewRouter()
	api.Register(r,
		handlers.NewProfilesHandler(profilesSvc),
		handlers.NewProgressHandler(progressSvc, profilesSvc),
		handlers.NewPartyHandler(partySvc, profilesSvc),
		handlers.NewOfflineHandler(offlineSvc, profilesSvc),
	)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	fmt.Printf("Server starting on %s\n", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := partySvc.Stop(shutdownCtx); err != nil {
		log.Printf("party janitor shutdown error: %v", err)
	}

	// Let in-flight image downloads finish before exiting
	offlineSvc.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
}
