// Command feedbackd runs the feedback intake service.
//
// The service accepts bug reports, feature requests and general feedback
// from the applications, rate-limited per client IP, and exposes stored
// reports to operators behind basic auth.
//
// # Configuration File
//
// Create a YAML file with feedback settings:
//
//	http_addr: ":8092"
//	metrics_addr: ":9092"
//	admin_token: "admin:secret"
//	database:
//	  host: "localhost"
//	  port: 5432
//	  user: "postgres"
//	  database: "g3release"
//	feedback:
//	  rate_limit: 10
//	  rate_window: 1h
//	redis:
//	  addr: "localhost:6379"
//
// # Endpoints
//
// Public (no auth):
//   - POST /api/feedback - Submit a feedback report
//   - GET /livez, /readyz - Health checks
//
// Admin (basic auth when admin_token set):
//   - GET /admin/feedback - List stored reports with filters
//   - GET /admin/feedback.csv - CSV export
//
// # Usage
//
//	go run ./cmd/feedbackd --config=feedback.yaml
//	go run ./cmd/feedbackd --addr=:8092 --admin-token="admin:secret"
package main

import (
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
		configPath  = flag.String("config", "", "Path to YAML config file")
		addr        = flag.String("addr", ":8092", "HTTP listen address")
		metricsAddr = flag.String("metrics-addr", "", "Metrics listen address (empty disables)")
		adminToken  = flag.String("admin-token", "", "Basic auth token for admin operations (user:pass)")
		dbHost      = flag.String("db-host", "", "PostgreSQL host (empty uses in-memory store)")
		redisAddr   = flag.String("redis-addr", "", "Redis address for the shared rate limiter")
		rateLimit   = flag.Int("rate-limit", 0, "Submissions allowed per IP per window (0 keeps config value)")
		logJSON     = flag.Bool("log-json", false, "Log in JSON format")
		debug       = flag.Bool("debug", false, "Enable debug logging")
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

	applyFlagOverrides(cfg, *addr, *metricsAddr, *adminToken, *redisAddr,
		*dbHost, *rateLimit, *logJSON, *debug, isFlagSet("addr"))

	if err := run(cfg); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func applyFlagOverrides(cfg *common.Config, addr, metricsAddr, adminToken,
	redisAddr, dbHost string, rateLimit int, logJSON, debug bool, addrExplicit bool) {

	if addrExplicit || cfg.HTTPAddr == "" {
		cfg.HTTPAddr = addr
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if adminToken != "" {
		cfg.AdminToken = adminToken
	}
	if redisAddr != "" {
		cfg.Redis.Addr = redisAddr
	}
	if dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if rateLimit != 0 {
		cfg.Feedback.RateLimit = rateLimit
	}
	if logJSON {
		cfg.LogJSON = true
	}
	if debug {
		cfg.LogDebug = true
	}
}

func run(cfg *common.Config) error {
	log := common.NewLogger(cfg.LogJSON, cfg.LogDebug).With("service", "feedbackd")

	store, err := common.NewStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()
	if cfg.Database.Host == "" {
		log.Warn("No database configured, reports are kept in memory")
	}

	limiter := common.NewRateLimiter(cfg)
	if limiter == nil {
		log.Warn("Rate limiting disabled")
	}

	feedbackServer, err := services.NewFeedbackServer(&services.FeedbackConfig{
		Store:          store,
		Limiter:        limiter,
		AdminToken:     cfg.AdminToken,
		AllowedOrigins: cfg.Download.AllowedOrigins,
		Log:            log,
	})
	if err != nil {
		return fmt.Errorf("create feedback server: %w", err)
	}

	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		Name:                     "feedbackd",
		ListenAddr:               cfg.HTTPAddr,
		MetricsAddr:              cfg.MetricsAddr,
		EnablePprof:              cfg.EnablePprof,
		Log:                      log,
		DrainDuration:            30 * time.Second,
		GracefulShutdownDuration: 10 * time.Second,
		ReadTimeout:              15 * time.Second,
		WriteTimeout:             15 * time.Second,
	},
		feedbackServer,
		httpserver.RegistrarFunc(feedbackServer.RegisterAdminRoutes),
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

	log.Info("Shutting down feedback service")
	srv.Shutdown()
	return nil
}
