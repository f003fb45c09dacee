// Package common provides shared utilities for the release backend CLI
// commands.
//
// This package contains the configuration model and helper functions used
// across the standalone service binaries (registry, updated, feedbackd,
// multiservice) and the publish CLI to reduce code duplication:
//
//   - YAML configuration loading with .env and environment overrides
//   - Key loading and generation for Ed25519 signing keys
//   - Factory functions for stores, artifact backends and rate limiters
package common

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-redis/redis/v8"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/crypto"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/ipfs"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/services"
)

// LoadOrGenerateSigningKey loads an Ed25519 private key from a hex string,
// or generates a new key pair if hexKey is empty.
func LoadOrGenerateSigningKey(hexKey string) (crypto.PrivateKey, error) {
	if hexKey != "" {
		keyBytes, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("invalid hex: %w", err)
		}
		return crypto.NewPrivateKeyFromBytes(keyBytes), nil
	}
	_, privKey, err := crypto.GenerateKeyPair()
	return privKey, err
}

// NewLogger builds the process logger. JSON output suits log shippers,
// text output terminals.
func NewLogger(jsonOutput, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if jsonOutput {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// Store combines release and feedback persistence. Both backends
// implement both halves.
type Store interface {
	services.ReleaseStore
	services.FeedbackStore
}

// NewStore opens the configured persistence backend: PostgreSQL when a
// database host is set, otherwise an in-memory store that loses its
// contents on restart.
func NewStore(cfg *Config) (Store, error) {
	if cfg.Database.Host == "" {
		return services.NewInMemoryStore(), nil
	}
	return services.NewPostgresStore(&services.PostgresConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	})
}

// NewArtifactStore opens the configured artifact backend: Google Cloud
// Storage when a bucket is set, otherwise a local directory.
func NewArtifactStore(ctx context.Context, cfg *Config) (services.ArtifactStore, error) {
	if cfg.Artifacts.GCSBucket != "" {
		return services.NewGCSArtifactStore(ctx, cfg.Artifacts.GCSBucket,
			cfg.Artifacts.GCSPrefix, cfg.Artifacts.GCSCredentialsFile)
	}
	return services.NewLocalArtifactStore(cfg.Artifacts.Dir), nil
}

// NewPinner creates an IPFS client when an API URL is configured.
// Returns nil if no URL is set, indicating artifacts should not be
// distributed over IPFS.
func NewPinner(cfg *Config) *ipfs.Client {
	if cfg.IPFS.APIURL == "" {
		return nil
	}
	return ipfs.NewClient(cfg.IPFS.APIURL)
}

// NewRateLimiter creates the feedback rate limiter: Redis-backed when an
// address is configured so the budget is shared across replicas, otherwise
// per-process. Returns nil when the limit is zero or negative.
func NewRateLimiter(cfg *Config) services.RateLimiter {
	if cfg.Feedback.RateLimit <= 0 {
		return nil
	}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return services.NewRedisRateLimiter(client, cfg.Feedback.RateLimit, cfg.Feedback.RateWindow)
	}
	return services.NewLocalRateLimiter(cfg.Feedback.RateLimit, cfg.Feedback.RateWindow)
}

// ToServiceType converts a configuration string to a services.ServiceType.
func ToServiceType(s string) (services.ServiceType, error) {
	t := services.ServiceType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown service type %q (want registry, update or feedback)", s)
	}
	return t, nil
}
