// Command updated serves update manifests and artifact downloads to
// installed applications.
//
// Manifests are derived from the release store on every request, so a
// publish on the registry is visible to clients immediately. The optional
// signing key enables the signed manifest endpoint for clients that verify
// authorship independently of TLS.
//
// # Configuration File
//
// Create a YAML file with update server settings:
//
//	http_addr: ":8091"
//	metrics_addr: ":9091"
//	database:
//	  host: "localhost"
//	  port: 5432
//	  user: "postgres"
//	  database: "g3release"
//	artifacts:
//	  dir: "/var/lib/g3release/artifacts"
//	download:
//	  allowed_origins:
//	    - "https://app.example.com"
//	keys:
//	  signing_key: ""
//
// # Endpoints
//
//   - GET /latest.yml, /latest-mac.yml, ... - Per-platform update manifests
//   - GET /signed/latest.json, ... - Signed manifests (when a key is set)
//   - GET /download/{channel}/{version}/{filename} - Artifact downloads
//   - GET /api/check?platform=...&channel=...&version=... - Update check
//   - GET /livez, /readyz - Health checks
//
// # Usage
//
//	go run ./cmd/updated --config=updated.yaml
//	go run ./cmd/updated --addr=:8091 --artifacts-dir=./artifacts
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/api/httpserver"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/cmd/common"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/crypto"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/manifest"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/services"
)

func main() {
	var (
		configPath    = flag.String("config", "", "Path to YAML config file")
		addr          = flag.String("addr", ":8091", "HTTP listen address")
		metricsAddr   = flag.String("metrics-addr", "", "Metrics listen address (empty disables)")
		artifactsDir  = flag.String("artifacts-dir", "", "Local artifact storage directory")
		dbHost        = flag.String("db-host", "", "PostgreSQL host (empty uses in-memory store)")
		signingKeyHex = flag.String("signing-key", "", "Ed25519 manifest signing key (hex, empty disables signed manifests)")
		origins       = flag.String("origins", "", "Comma-separated CORS origins (empty allows any)")
		logJSON       = flag.Bool("log-json", false, "Log in JSON format")
		debug         = flag.Bool("debug", false, "Enable debug logging")
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

	applyFlagOverrides(cfg, *addr, *metricsAddr, *artifactsDir, *dbHost,
		*signingKeyHex, *origins, *logJSON, *debug, isFlagSet("addr"))

	if err := run(cfg); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func applyFlagOverrides(cfg *common.Config, addr, metricsAddr, artifactsDir,
	dbHost, signingKeyHex, origins string, logJSON, debug bool, addrExplicit bool) {

	if addrExplicit || cfg.HTTPAddr == "" {
		cfg.HTTPAddr = addr
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if artifactsDir != "" {
		cfg.Artifacts.Dir = artifactsDir
	}
	if dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if signingKeyHex != "" {
		cfg.Keys.SigningKey = signingKeyHex
	}
	if origins != "" {
		cfg.Download.AllowedOrigins = strings.Split(origins, ",")
	}
	if logJSON {
		cfg.LogJSON = true
	}
	if debug {
		cfg.LogDebug = true
	}
}

func run(cfg *common.Config) error {
	log := common.NewLogger(cfg.LogJSON, cfg.LogDebug).With("service", "updated")

	store, err := common.NewStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()
	if cfg.Database.Host == "" {
		log.Warn("No database configured, releases are kept in memory")
	}

	artifacts, err := common.NewArtifactStore(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("opening artifact store: %w", err)
	}

	// Signed manifests require an explicitly configured key. Clients
	// verify against a public key they already know.
	var signingKey crypto.PrivateKey
	if cfg.Keys.SigningKey != "" {
		signingKey, err = common.LoadOrGenerateSigningKey(cfg.Keys.SigningKey)
		if err != nil {
			return fmt.Errorf("signing key: %w", err)
		}
		pubKey, _ := signingKey.PublicKey()
		log.Info("Manifest signing enabled", "publicKey", pubKey.String())
	}

	updateServer, err := services.NewUpdateServer(&services.UpdateConfig{
		Store:          store,
		Artifacts:      artifacts,
		SigningKey:     signingKey,
		AllowedOrigins: cfg.Download.AllowedOrigins,
		Log:            log,
	})
	if err != nil {
		return fmt.Errorf("create update server: %w", err)
	}

	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		Name:                     "updated",
		ListenAddr:               cfg.HTTPAddr,
		MetricsAddr:              cfg.MetricsAddr,
		EnablePprof:              cfg.EnablePprof,
		Log:                      log,
		DrainDuration:            30 * time.Second,
		GracefulShutdownDuration: 10 * time.Second,
		ReadTimeout:              15 * time.Second,
		// Downloads stream installer-sized files to slow links.
		WriteTimeout: 10 * time.Minute,
	}, updateServer)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	log.Info("Serving update manifests", "manifests", strings.Join(manifest.Names(), " "))

	srv.RunInBackground()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down update server")
	srv.Shutdown()
	return nil
}
