package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/verdantlabs/leafsense/internal/connectivity"
	"github.com/verdantlabs/leafsense/internal/delivery/http"
	"github.com/verdantlabs/leafsense/internal/orchestrator"
	"github.com/verdantlabs/leafsense/internal/remote"
	"github.com/verdantlabs/leafsense/internal/store"
	"github.com/verdantlabs/leafsense/internal/syncer"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Configuration
	cfg := loadConfig()

	// Persistent store
	st, err := store.NewStore(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Could not open database at %s: %v", cfg.DatabasePath, err)
	}
	defer st.Close()
	log.Printf("Opened database at %s", cfg.DatabasePath)

	if err := os.MkdirAll(cfg.ImageDir, 0755); err != nil {
		log.Fatalf("Could not create image directory %s: %v", cfg.ImageDir, err)
	}

	// Dependency Injection: cloud path
	probeURL := cfg.ProbeURL
	if probeURL == "" {
		probeURL = cfg.CloudURL
	}
	checker := connectivity.NewHTTPChecker(probeURL)

	var analyzer orchestrator.RemoteAnalyzer
	if cfg.CloudAPIKey != "" {
		analyzer = remote.NewClient(cfg.CloudURL, cfg.CloudAPIKey)
		log.Printf("Cloud analyzer configured at %s", cfg.CloudURL)
	} else {
		log.Println("No cloud API key set, running local-only")
	}

	engine := orchestrator.NewOrchestrator(analyzer, checker)

	loader := func(path string) ([]byte, error) {
		return os.ReadFile(filepath.Join(cfg.ImageDir, path))
	}
	sync := syncer.NewCoordinator(st, engine, loader, nil)

	// Opportunistic reconciliation while the service runs. Passes that
	// cannot proceed (offline, no credential, already running) are
	// refused by the coordinator itself.
	stopAutoSync := make(chan struct{})
	go autoSync(st, sync, cfg.AutoSyncInterval, stopAutoSync)

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName:      "LeafSense API v1.0",
		BodyLimit:    16 * 1024 * 1024, // room for full-resolution leaf photos
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorHandler: http.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Routes
	http.SetupRoutes(app, st, engine, sync, cfg.ImageDir)

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	close(stopAutoSync)
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited gracefully")
}

func autoSync(st *store.Store, sync *syncer.Coordinator, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			settings, err := st.GetSettings()
			if err != nil {
				log.Printf("Auto-sync settings error: %v", err)
				continue
			}
			if !settings.AutoSync {
				continue
			}
			sync.Run(context.Background())
		}
	}
}

type Config struct {
	DatabasePath     string
	ImageDir         string
	CloudURL         string
	CloudAPIKey      string
	ProbeURL         string
	Port             string
	AutoSyncInterval time.Duration
}

func loadConfig() *Config {
	return &Config{
		DatabasePath:     getEnv("LEAFSENSE_DB", "leafsense.db"),
		ImageDir:         getEnv("LEAFSENSE_IMAGE_DIR", "images"),
		CloudURL:         getEnv("CLOUD_API_URL", "https://api.leafsense.example.com"),
		CloudAPIKey:      getEnv("CLOUD_API_KEY", ""),
		ProbeURL:         getEnv("CONNECTIVITY_PROBE_URL", ""),
		Port:             getEnv("PORT", "8080"),
		AutoSyncInterval: getDurationEnv("AUTO_SYNC_INTERVAL", time.Minute),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Invalid %s value %q, using %s", key, value, defaultValue)
	}
	return defaultValue
}
