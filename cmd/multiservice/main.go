// Command multiservice runs any combination of the release backend
// services (registry, update, feedback) in one process.
//
// The service set is determined by the --services flag or the services
// field in the configuration file. This unified command keeps small
// deployments to a single binary and a single port; the standalone
// commands exist for deployments that scale the services independently.
//
// # Configuration File
//
// Create a YAML file with service settings:
//
//	services: ["registry", "update", "feedback"]
//	http_addr: ":8090"
//	admin_token: "admin:secret"
//	database:
//	  host: "localhost"
//	  port: 5432
//	  user: "postgres"
//	  database: "g3release"
//	artifacts:
//	  dir: "/var/lib/g3release/artifacts"
//	ipfs:
//	  api_url: "http://localhost:5001"
//	  gateway: "https://ipfs.io"
//	keys:
//	  signing_key: ""
//
// # HTTP Configuration Mode
//
// Use --wait-config to start an HTTP server that waits for configuration:
//
//	go run ./cmd/multiservice --wait-config --addr=:8090
//
// Then POST configuration to start the services:
//
//	curl -X POST http://localhost:8090/config -d @config.yaml
//
// # Usage
//
//	go run ./cmd/multiservice --config=config.yaml
//	go run ./cmd/multiservice --services=registry,update --addr=:8090
//	go run ./cmd/multiservice --wait-config --addr=:8090
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gopkg.in/yaml.v3"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/cmd/common"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/crypto"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/services"
)

func main() {
	var (
		configPath    = flag.String("config", "", "Path to YAML config file")
		waitConfig    = flag.Bool("wait-config", false, "Wait for config via HTTP POST to /config")
		serviceList   = flag.String("services", "", "Comma-separated services: registry, update, feedback")
		addr          = flag.String("addr", ":8090", "HTTP listen address")
		adminToken    = flag.String("admin-token", "", "Admin token (user:pass)")
		artifactsDir  = flag.String("artifacts-dir", "", "Local artifact storage directory")
		dbHost        = flag.String("db-host", "", "PostgreSQL host (empty uses in-memory store)")
		ipfsAPI       = flag.String("ipfs-api", "", "IPFS node API URL (empty disables IPFS)")
		signingKeyHex = flag.String("signing-key", "", "Ed25519 manifest signing key (hex)")
		logJSON       = flag.Bool("log-json", false, "Log in JSON format")
		debug         = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	isFlagSet := func(name string) bool {
		found := false
		flag.Visit(func(f *flag.Flag) {
			if f.Name == name {
				found = true
			}
		})
		return found
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		cancel()
	}()

	var cfg *common.Config
	var err error

	if *waitConfig {
		cfg, err = waitForConfig(ctx, *addr)
		if err != nil {
			if ctx.Err() != nil {
				fmt.Println("Shutdown during config wait")
				return
			}
			fmt.Printf("Error waiting for config: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, err = common.LoadConfig(*configPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	applyFlagOverrides(cfg, *serviceList, *addr, *adminToken, *artifactsDir,
		*dbHost, *ipfsAPI, *signingKeyHex, *logJSON, *debug, isFlagSet("addr"))

	if err := validateConfig(cfg); err != nil {
		fmt.Printf("Configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg); err != nil {
		if ctx.Err() != nil {
			return
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func waitForConfig(ctx context.Context, addr string) (*common.Config, error) {
	configCh := make(chan *common.Config, 1)
	errCh := make(chan error, 1)

	var configOnce sync.Once

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("waiting"))
	})

	r.Post("/config", func(w http.ResponseWriter, r *http.Request) {
		configOnce.Do(func() {
			cfg, err := parseConfigFromRequest(r)
			if err != nil {
				errCh <- err
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			configCh <- cfg
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("configuration accepted"))
		})
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		fmt.Printf("Waiting for configuration on %s (POST /config)\n", addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- fmt.Errorf("config server: %w", err)
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-errCh:
		return nil, err
	case cfg := <-configCh:
		fmt.Println("Configuration received, starting services...")
		return cfg, nil
	}
}

func parseConfigFromRequest(r *http.Request) (*common.Config, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	cfg := common.DefaultConfig()
	if err := yaml.Unmarshal(body, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

func applyFlagOverrides(cfg *common.Config, serviceList, addr, adminToken,
	artifactsDir, dbHost, ipfsAPI, signingKeyHex string, logJSON, debug bool,
	addrExplicit bool) {

	if serviceList != "" {
		cfg.Services = strings.Split(serviceList, ",")
	}
	if addrExplicit || cfg.HTTPAddr == "" {
		cfg.HTTPAddr = addr
	}
	if adminToken != "" {
		cfg.AdminToken = adminToken
	}
	if artifactsDir != "" {
		cfg.Artifacts.Dir = artifactsDir
	}
	if dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if ipfsAPI != "" {
		cfg.IPFS.APIURL = ipfsAPI
	}
	if signingKeyHex != "" {
		cfg.Keys.SigningKey = signingKeyHex
	}
	if logJSON {
		cfg.LogJSON = true
	}
	if debug {
		cfg.LogDebug = true
	}
}

func validateConfig(cfg *common.Config) error {
	if len(cfg.Services) == 0 {
		return fmt.Errorf("at least one service is required (via --services or config file)")
	}
	for _, s := range cfg.Services {
		if _, err := common.ToServiceType(strings.TrimSpace(s)); err != nil {
			return err
		}
	}
	return nil
}

func run(ctx context.Context, cfg *common.Config) error {
	log := common.NewLogger(cfg.LogJSON, cfg.LogDebug)

	store, err := common.NewStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	artifacts, err := common.NewArtifactStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening artifact store: %w", err)
	}

	r := chi.NewRouter()

	// Register service routes FIRST (they add middleware)
	for _, name := range cfg.Services {
		switch services.ServiceType(strings.TrimSpace(name)) {
		case services.RegistryService:
			registryCfg := &services.RegistryConfig{
				Store:           store,
				Artifacts:       artifacts,
				PublisherKeys:   cfg.PublisherKeys,
				AdminToken:      cfg.AdminToken,
				Gateway:         cfg.IPFS.Gateway,
				DownloadBaseURL: cfg.Download.BaseURL,
				Trackers:        cfg.Download.Trackers,
				Log:             log.With("service", "registry"),
			}
			if pinner := common.NewPinner(cfg); pinner != nil {
				registryCfg.Pinner = pinner
			}

			registry, err := services.NewRegistry(registryCfg)
			if err != nil {
				return fmt.Errorf("create registry: %w", err)
			}
			registry.RegisterPublicRoutes(r)
			registry.RegisterAdminRoutes(r)

			if registryCfg.Pinner != nil && cfg.IPFS.PinSweepSchedule != "" {
				sweeper, err := registry.StartPinSweeper(cfg.IPFS.PinSweepSchedule)
				if err != nil {
					return fmt.Errorf("pin sweeper: %w", err)
				}
				defer sweeper.Stop()
			}

		case services.UpdateService:
			var signingKey crypto.PrivateKey
			if cfg.Keys.SigningKey != "" {
				signingKey, err = common.LoadOrGenerateSigningKey(cfg.Keys.SigningKey)
				if err != nil {
					return fmt.Errorf("signing key: %w", err)
				}
			}

			updateServer, err := services.NewUpdateServer(&services.UpdateConfig{
				Store:          store,
				Artifacts:      artifacts,
				SigningKey:     signingKey,
				AllowedOrigins: cfg.Download.AllowedOrigins,
				Log:            log.With("service", "update"),
			})
			if err != nil {
				return fmt.Errorf("create update server: %w", err)
			}
			updateServer.RegisterRoutes(r)

		case services.FeedbackService:
			feedbackServer, err := services.NewFeedbackServer(&services.FeedbackConfig{
				Store:          store,
				Limiter:        common.NewRateLimiter(cfg),
				AdminToken:     cfg.AdminToken,
				AllowedOrigins: cfg.Download.AllowedOrigins,
				Log:            log.With("service", "feedback"),
			})
			if err != nil {
				return fmt.Errorf("create feedback server: %w", err)
			}
			feedbackServer.RegisterRoutes(r)
			feedbackServer.RegisterAdminRoutes(r)
		}
	}

	// Add health endpoint AFTER service routes (middleware already registered)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	httpServer := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     r,
		ReadTimeout: 10 * time.Minute,
		// Uploads and downloads both move installer-sized files.
		WriteTimeout: 10 * time.Minute,
	}

	go func() {
		fmt.Printf("Services %s listening on %s\n", strings.Join(cfg.Services, ", "), cfg.HTTPAddr)
		if cfg.AdminToken == "" {
			fmt.Println("Warning: No admin token configured, /admin/* routes are unprotected")
		}
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			fmt.Printf("HTTP server error: %v\n", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	fmt.Println("Shutting down services...")
	return httpServer.Shutdown(shutdownCtx)
}
