package update

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/manifest"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/release"
)

// State is the updater's position in the update flow.
type State string

const (
	StateIdle            State = "idle"
	StateChecking        State = "checking"
	StateUpdateAvailable State = "update-available"
	StateDownloading     State = "downloading"
	StateDownloaded      State = "downloaded"
	StateInstalling      State = "installing"
)

// Prompter is how the updater asks the user for consent. Both gates are
// hard requirements: no download and no install ever happens without a
// true from the matching method.
type Prompter interface {
	// ConfirmDownload asks whether to download the offered update.
	ConfirmDownload(m *manifest.Manifest) bool

	// ConfirmInstall asks whether to install the downloaded update now.
	ConfirmInstall(m *manifest.Manifest) bool
}

// Installer receives the verified installer file once the user consents.
type Installer interface {
	Install(ctx context.Context, path string) error
}

// Config assembles an Updater.
type Config struct {
	// Source provides manifests, usually an HTTPSource.
	Source Source

	// Platform and Channel identify this installation's manifest.
	Platform release.Platform
	Channel  release.Channel

	// CurrentVersion is the running app version.
	CurrentVersion string

	// StagingDir is where downloads land. Defaults to the user cache dir.
	StagingDir string

	// BaseURL resolves relative file URLs; for an HTTPSource it defaults
	// to the source's own base URL.
	BaseURL string

	// Prompter gates downloads and installs. Required.
	Prompter Prompter

	// Installer receives verified installers. Required.
	Installer Installer

	// CheckInterval is the periodic re-check interval for Run. Zero
	// disables periodic checks; Run then only reacts to CheckNow.
	CheckInterval time.Duration

	// Progress, when set, receives download progress.
	Progress ProgressFunc

	Log *slog.Logger
}

// Updater drives the user-gated update flow for one installation.
type Updater struct {
	checker    *Checker
	downloader *Downloader
	prompter   Prompter
	installer  Installer
	progress   ProgressFunc
	interval   time.Duration
	log        *slog.Logger

	mu             sync.Mutex
	state          State
	offered        *manifest.Manifest
	downloadedPath string
	declinedUntil  string // version whose download the user declined

	checkNowCh chan struct{}
}

// New validates the configuration and creates an updater in StateIdle.
func New(cfg Config) (*Updater, error) {
	if cfg.Prompter == nil {
		return nil, errors.New("prompter cannot be nil")
	}
	if cfg.Installer == nil {
		return nil, errors.New("installer cannot be nil")
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	checker, err := NewChecker(cfg.Source, cfg.Platform, cfg.Channel, cfg.CurrentVersion)
	if err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		if httpSource, ok := cfg.Source.(*HTTPSource); ok {
			baseURL = httpSource.BaseURL()
		}
	}

	return &Updater{
		checker:    checker,
		downloader: NewDownloader(cfg.StagingDir, baseURL),
		prompter:   cfg.Prompter,
		installer:  cfg.Installer,
		progress:   cfg.Progress,
		interval:   cfg.CheckInterval,
		log:        cfg.Log,
		state:      StateIdle,
		checkNowCh: make(chan struct{}, 1),
	}, nil
}

// State returns the updater's current state.
func (u *Updater) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Offered returns the manifest currently offered to the user, nil when
// none is.
func (u *Updater) Offered() *manifest.Manifest {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.offered
}

func (u *Updater) setState(s State) {
	u.mu.Lock()
	u.state = s
	u.mu.Unlock()
}

// CheckNow asks a running Run loop to check immediately. It never blocks;
// a check already queued is enough.
func (u *Updater) CheckNow() {
	select {
	case u.checkNowCh <- struct{}{}:
	default:
	}
}

// Run checks at startup and then on every interval tick until the context
// ends. Check failures are logged at debug and swallowed: the app runs
// identically with or without a reachable update endpoint.
func (u *Updater) Run(ctx context.Context) {
	u.runOnceQuietly(ctx)

	var tick <-chan time.Time
	if u.interval > 0 {
		ticker := time.NewTicker(u.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			u.runOnceQuietly(ctx)
		case <-u.checkNowCh:
			u.runOnceQuietly(ctx)
		}
	}
}

func (u *Updater) runOnceQuietly(ctx context.Context) {
	if err := u.RunOnce(ctx); err != nil {
		if errors.Is(err, ErrManifestUnavailable) {
			u.log.Debug("Update check skipped", "err", err)
			return
		}
		u.log.Warn("Update attempt failed", "err", err)
	}
}

// RunOnce performs one full pass of the flow: check, gate, download,
// gate, install. It returns ErrManifestUnavailable when the check could
// not complete; callers deciding to surface that are outside this
// package, the updater itself never does.
func (u *Updater) RunOnce(ctx context.Context) error {
	u.setState(StateChecking)

	decision, err := u.checker.Check(ctx)
	if err != nil {
		u.setState(StateIdle)
		return err
	}
	if !decision.UpdateAvailable {
		u.setState(StateIdle)
		return nil
	}

	m := decision.Manifest

	u.mu.Lock()
	declined := u.declinedUntil != "" && m.Version == u.declinedUntil
	alreadyDownloaded := u.downloadedPath != "" && u.offered != nil && u.offered.Version == m.Version
	u.offered = m
	u.mu.Unlock()

	if declined {
		u.setState(StateIdle)
		return nil
	}

	u.setState(StateUpdateAvailable)
	u.log.Info("Update available", "version", m.Version, "current", u.checker.CurrentVersion())

	var installerPath string
	if alreadyDownloaded {
		u.mu.Lock()
		installerPath = u.downloadedPath
		u.mu.Unlock()
	} else {
		if !u.prompter.ConfirmDownload(m) {
			// Not offered again until a newer version appears.
			u.mu.Lock()
			u.declinedUntil = m.Version
			u.offered = nil
			u.mu.Unlock()
			u.setState(StateIdle)
			u.log.Info("Update declined", "version", m.Version)
			return nil
		}

		primary, ok := m.Primary()
		if !ok {
			u.setState(StateIdle)
			return fmt.Errorf("%w: manifest has no primary installer", ErrManifestUnavailable)
		}

		u.setState(StateDownloading)
		installerPath, err = u.downloader.Download(ctx, primary, u.progress)
		if err != nil {
			u.setState(StateIdle)
			return err
		}

		u.mu.Lock()
		u.downloadedPath = installerPath
		u.mu.Unlock()
	}

	u.setState(StateDownloaded)

	if !u.prompter.ConfirmInstall(m) {
		// Keep the download; the next pass re-offers the install without
		// re-fetching.
		u.log.Info("Install postponed", "version", m.Version)
		return nil
	}

	u.setState(StateInstalling)
	if err := u.installer.Install(ctx, installerPath); err != nil {
		u.setState(StateDownloaded)
		return fmt.Errorf("installing %s: %w", m.Version, err)
	}

	u.mu.Lock()
	u.downloadedPath = ""
	u.offered = nil
	u.mu.Unlock()
	u.setState(StateIdle)
	u.log.Info("Update handed to installer", "version", m.Version)
	return nil
}
