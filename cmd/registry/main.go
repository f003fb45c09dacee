// Command registry runs the release registry service.
//
// The registry owns release metadata and drives the publish workflow:
// signed submissions, artifact uploads, digest verification, manifest
// generation and IPFS distribution.
//
// # Configuration File
//
// Create a YAML file with registry settings:
//
//	http_addr: ":8090"
//	metrics_addr: ":9090"
//	admin_token: "admin:secret"
//	publisher_keys: []
//	database:
//	  host: "localhost"
//	  port: 5432
//	  user: "postgres"
//	  database: "g3release"
//	artifacts:
//	  dir: "/var/lib/g3release/artifacts"
//	  gcs_bucket: ""
//	ipfs:
//	  api_url: "http://localhost:5001"
//	  gateway: "https://ipfs.io"
//	  pin_sweep_schedule: "@hourly"
//	download:
//	  base_url: "https://updates.example.com"
//	  trackers:
//	    - "udp://tracker.opentrackr.org:1337/announce"
//
// # Endpoints
//
// Public (no auth):
//   - GET /api/releases - List releases grouped by channel
//   - GET /api/releases/{channel}/latest - Latest published release
//   - GET /api/releases/{id} - Release detail
//   - GET /livez, /readyz - Health checks
//
// Admin (basic auth when admin_token set):
//   - POST /admin/releases - Submit a signed release
//   - PUT /admin/releases/{id}/artifacts/{filename} - Upload an artifact
//   - POST /admin/releases/{id}/publish - Verify, pin and publish
//   - DELETE /admin/releases/{id} - Delete an unpublished release
//
// # Usage
//
//	go run ./cmd/registry --config=registry.yaml
//	go run ./cmd/registry --addr=:8090 --admin-token="admin:secret"
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/api/httpserver"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/cmd/common"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/services"
)

func main() {
	var (
		configPath      = flag.String("config", "", "Path to YAML config file")
		addr            = flag.String("addr", ":8090", "HTTP listen address")
		metricsAddr     = flag.String("metrics-addr", "", "Metrics listen address (empty disables)")
		adminToken      = flag.String("admin-token", "", "Basic auth token for admin operations (user:pass)")
		artifactsDir    = flag.String("artifacts-dir", "", "Local artifact storage directory")
		dbHost          = flag.String("db-host", "", "PostgreSQL host (empty uses in-memory store)")
		ipfsAPI         = flag.String("ipfs-api", "", "IPFS node API URL (empty disables IPFS)")
		downloadBaseURL = flag.String("download-base-url", "", "Public update server URL for magnet web seeds")
		logJSON         = flag.Bool("log-json", false, "Log in JSON format")
		debug           = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	// isFlagSet checks if a flag was explicitly provided on command line
	isFlagSet := func(name string) bool {
		found := false
		flag.Visit(func(f *flag.Flag) {
			if f.Name == name {
				found = true
			}
		})
		return found
	}

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	applyFlagOverrides(cfg, *addr, *metricsAddr, *adminToken, *artifactsDir,
		*dbHost, *ipfsAPI, *downloadBaseURL, *logJSON, *debug, isFlagSet("addr"))

	if err := run(cfg); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func applyFlagOverrides(cfg *common.Config, addr, metricsAddr, adminToken,
	artifactsDir, dbHost, ipfsAPI, downloadBaseURL string, logJSON, debug bool,
	addrExplicit bool) {

	if addrExplicit || cfg.HTTPAddr == "" {
		cfg.HTTPAddr = addr
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
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
	if downloadBaseURL != "" {
		cfg.Download.BaseURL = downloadBaseURL
	}
	if logJSON {
		cfg.LogJSON = true
	}
	if debug {
		cfg.LogDebug = true
	}
}

func run(cfg *common.Config) error {
	log := common.NewLogger(cfg.LogJSON, cfg.LogDebug).With("service", "registry")
	ctx := context.Background()

	store, err := common.NewStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()
	if cfg.Database.Host == "" {
		log.Warn("No database configured, releases are kept in memory")
	}

	artifacts, err := common.NewArtifactStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening artifact store: %w", err)
	}

	registryCfg := &services.RegistryConfig{
		Store:           store,
		Artifacts:       artifacts,
		PublisherKeys:   cfg.PublisherKeys,
		AdminToken:      cfg.AdminToken,
		Gateway:         cfg.IPFS.Gateway,
		DownloadBaseURL: cfg.Download.BaseURL,
		Trackers:        cfg.Download.Trackers,
		Log:             log,
	}

	if pinner := common.NewPinner(cfg); pinner != nil {
		if version, err := pinner.Version(ctx); err != nil {
			log.Warn("IPFS node unreachable, continuing anyway", "url", cfg.IPFS.APIURL, "err", err)
		} else {
			log.Info("IPFS node connected", "version", version)
		}
		registryCfg.Pinner = pinner
	}

	registry, err := services.NewRegistry(registryCfg)
	if err != nil {
		return fmt.Errorf("create registry: %w", err)
	}

	if registryCfg.Pinner != nil && cfg.IPFS.PinSweepSchedule != "" {
		sweeper, err := registry.StartPinSweeper(cfg.IPFS.PinSweepSchedule)
		if err != nil {
			return fmt.Errorf("pin sweeper: %w", err)
		}
		defer sweeper.Stop()
	}

	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		Name:                     "registry",
		ListenAddr:               cfg.HTTPAddr,
		MetricsAddr:              cfg.MetricsAddr,
		EnablePprof:              cfg.EnablePprof,
		Log:                      log,
		DrainDuration:            30 * time.Second,
		GracefulShutdownDuration: 10 * time.Second,
		// Artifact uploads and publish-time pinning move installer-sized
		// files, so both directions get generous timeouts.
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
	},
		httpserver.RegistrarFunc(registry.RegisterPublicRoutes),
		httpserver.RegistrarFunc(registry.RegisterAdminRoutes),
	)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	if cfg.AdminToken == "" {
		log.Warn("No admin token configured, /admin/* routes are unprotected")
	}

	srv.RunInBackground()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down registry")
	srv.Shutdown()
	return nil
}
