package main

import (
	"crypto/tls"
	"log"
	"net/http"

	"audience-live/internal/auth"
	"audience-live/internal/config"
	"audience-live/internal/db"
	"audience-live/internal/engine"
	"audience-live/internal/handlers"
	"audience-live/internal/services"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	// Initialize database
	if err := db.InitDatabase(cfg.DBPath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Initialize services
	archive := services.NewArchiveService(db.DB)
	presentations, err := services.NewPresentationStore(cfg.DataPath)
	if err != nil {
		log.Fatalf("Failed to initialize presentation store: %v", err)
	}

	wsService := services.NewWebSocketService(services.WebSocketServiceConfig{
		SendBufferSize: cfg.Engine.SendBufferSize,
		EventRate:      cfg.Engine.EventRate,
		EventBurst:     cfg.Engine.EventBurst,
	})
	go wsService.Run()

	// Initialize the session engine
	registry := engine.NewRegistry(engine.RegistryConfig{
		CodeLength:      cfg.Engine.CodeLength,
		MaxCodeAttempts: cfg.Engine.MaxCodeAttempts,
		EvictionGrace:   cfg.Engine.EvictionGrace,
		IdleTimeout:     cfg.Engine.IdleTimeout,
		DisconnectGrace: cfg.Engine.DisconnectGrace,
		SweepInterval:   cfg.Engine.SweepInterval,
	})
	broadcaster := engine.NewBroadcaster(wsService, archive)
	aggregator := engine.NewAggregator(broadcaster, archive)
	registry.SetObserver(broadcaster)
	go registry.Run()
	defer registry.Close()

	authenticator := auth.NewAuthenticator(cfg.Auth.JWTSecret, !cfg.IsProduction())

	// Initialize handlers
	wsHandler := handlers.NewWebSocketHandler(wsService, registry, broadcaster, aggregator, presentations, archive, authenticator)
	sessionHandler := handlers.NewSessionHandler(registry, archive)
	presentationHandler := handlers.NewPresentationHandler(presentations)

	// Setup routes
	router := handlers.SetupRoutes(wsHandler, sessionHandler, presentationHandler)

	// Configure server
	server := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
		Handler: router,
	}

	// Configure TLS if enabled
	if cfg.TLS.Enabled {
		server.TLSConfig = &tls.Config{
			MinVersion: getTLSVersion(cfg.TLS.MinVersion),
		}

		log.Printf("Starting HTTPS server on %s:%s", cfg.Server.Host, cfg.Server.Port)
		log.Printf("TLS Certificate: %s", cfg.TLS.CertFile)
		log.Printf("TLS Key: %s", cfg.TLS.KeyFile)
		log.Printf("TLS Min Version: %s", cfg.TLS.MinVersion)

		log.Fatal(server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile))
	} else {
		log.Printf("Starting HTTP server on %s:%s", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Warning: HTTP mode is not recommended for production")

		log.Fatal(server.ListenAndServe())
	}
}

// getTLSVersion converts string version to tls.Version constant
func getTLSVersion(version string) uint16 {
	switch version {
	case "1.0":
		return tls.VersionTLS10
	case "1.1":
		return tls.VersionTLS11
	case "1.2":
		return tls.VersionTLS12
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}
