// Command publish provides CLI tools for publishing releases to the
// registry.
//
// # Commands
//
// stage: Scan a build directory and show what would be published.
//
//	publish stage --dir=dist --version=1.4.0
//
// push: Submit a signed release, upload its artifacts and publish it.
//
//	publish push --dir=dist --version=1.4.0 --registry=https://releases.example.com
//
// status: Show the latest release on each channel.
//
//	publish status --registry=https://releases.example.com
//
// links: Show distribution links for a published release.
//
//	publish links --version=1.4.0 --registry=https://releases.example.com
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/cmd/common"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/release"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/services"
)

const defaultRegistryURL = "http://localhost:8090"

func main() {
	// Flags override the environment, the environment overrides .env.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "stage":
		err = runStage(args)
	case "push":
		err = runPush(args)
	case "status":
		err = runStatus(args)
	case "links":
		err = runLinks(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`publish - Release publishing tools

Usage:
  publish <command> [options]

Commands:
  stage     Scan a build directory and show what would be published
  push      Submit, upload and publish a release
  status    Show the latest release on each channel
  links     Show distribution links for a release

Run 'publish <command> --help' for command-specific options.`)
}

// newPublisher assembles a publisher client from flag values with
// environment fallbacks for the secrets.
func newPublisher(registryURL, adminToken, signingKeyHex string) (*services.Publisher, error) {
	if registryURL == "" {
		registryURL = defaultRegistryURL
	}
	if adminToken == "" {
		adminToken = os.Getenv("G3RELEASE_ADMIN_TOKEN")
	}
	if signingKeyHex == "" {
		signingKeyHex = os.Getenv("G3RELEASE_SIGNING_KEY")
	}

	signingKey, err := common.LoadOrGenerateSigningKey(signingKeyHex)
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}

	return services.NewPublisher(&services.PublisherConfig{
		RegistryURL: strings.TrimRight(registryURL, "/"),
		AdminToken:  adminToken,
		SigningKey:  signingKey,
		Log:         common.NewLogger(false, false),
	})
}

// loadNotes resolves release notes from an inline flag or a file.
func loadNotes(notes, notesFile string) (string, error) {
	if notesFile == "" {
		return notes, nil
	}
	data, err := os.ReadFile(notesFile)
	if err != nil {
		return "", fmt.Errorf("reading notes: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func formatSize(bytes int64) string {
	const mib = 1024 * 1024
	if bytes >= mib {
		return fmt.Sprintf("%.1f MiB", float64(bytes)/mib)
	}
	return fmt.Sprintf("%.1f KiB", float64(bytes)/1024)
}

// --- Stage Command ---

func runStage(args []string) error {
	var (
		dir     string
		version string
	)

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--dir", "-d":
			i++
			if i < len(args) {
				dir = args[i]
			}
		case "--version", "-v":
			i++
			if i < len(args) {
				version = args[i]
			}
		case "--help", "-h":
			printStageHelp()
			return nil
		}
	}

	if dir == "" {
		return fmt.Errorf("--dir is required")
	}
	if version == "" {
		return fmt.Errorf("--version is required")
	}

	// Staging is local, any key will do.
	publisher, err := newPublisher(defaultRegistryURL, "", "")
	if err != nil {
		return err
	}

	rel, err := publisher.StageRelease(dir, version, "")
	if err != nil {
		return err
	}

	fmt.Printf("Release %s (%s channel), %d artifacts:\n\n", rel.Version, rel.Channel, len(rel.Artifacts))
	for _, art := range rel.Artifacts {
		marker := ""
		if art.StoreOnly {
			marker = "  [store only]"
		}
		fmt.Printf("  %-8s  %-44s  %10s%s\n", art.Platform, art.Filename, formatSize(art.Size), marker)
	}
	fmt.Println("\nRun 'publish push' with the same directory to publish.")
	return nil
}

func printStageHelp() {
	fmt.Println(`publish stage - Scan a build directory and show what would be published

Usage:
  publish stage --dir=<dir> --version=<semver>

Options:
  --dir, -d        Directory of build outputs
  --version, -v    Release version (channel derives from the prerelease tag)`)
}

// --- Push Command ---

func runPush(args []string) error {
	var (
		registryURL   string
		dir           string
		version       string
		notes         string
		notesFile     string
		adminToken    string
		signingKeyHex string
		timeout       = 30 * time.Minute
	)

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--registry", "-r":
			i++
			if i < len(args) {
				registryURL = args[i]
			}
		case "--dir", "-d":
			i++
			if i < len(args) {
				dir = args[i]
			}
		case "--version", "-v":
			i++
			if i < len(args) {
				version = args[i]
			}
		case "--notes", "-n":
			i++
			if i < len(args) {
				notes = args[i]
			}
		case "--notes-file":
			i++
			if i < len(args) {
				notesFile = args[i]
			}
		case "--admin-token", "-t":
			i++
			if i < len(args) {
				adminToken = args[i]
			}
		case "--signing-key", "-k":
			i++
			if i < len(args) {
				signingKeyHex = args[i]
			}
		case "--timeout":
			i++
			if i < len(args) {
				timeout, _ = time.ParseDuration(args[i])
			}
		case "--help", "-h":
			printPushHelp()
			return nil
		}
	}

	if dir == "" {
		return fmt.Errorf("--dir is required")
	}
	if version == "" {
		return fmt.Errorf("--version is required")
	}
	if registryURL == "" {
		registryURL = defaultRegistryURL
	}

	publisher, err := newPublisher(registryURL, adminToken, signingKeyHex)
	if err != nil {
		return err
	}

	releaseNotes, err := loadNotes(notes, notesFile)
	if err != nil {
		return err
	}

	rel, err := publisher.StageRelease(dir, version, releaseNotes)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		cancel()
	}()

	fmt.Printf("Pushing %s (%d artifacts) to %s\n", rel.Version, len(rel.Artifacts), registryURL)

	published, err := publisher.Push(ctx, dir, rel)
	if err != nil {
		return err
	}

	fmt.Printf("\nPublished %s on channel %s\n", published.Version, published.Channel)
	if len(published.Manifests) > 0 {
		fmt.Printf("Manifests: %s\n", strings.Join(published.Manifests, ", "))
	}
	printLinks(published.Links)
	return nil
}

func printPushHelp() {
	fmt.Println(`publish push - Submit a signed release, upload its artifacts and publish it

Usage:
  publish push --dir=<dir> --version=<semver> [options]

Options:
  --dir, -d          Directory of build outputs
  --version, -v      Release version (channel derives from the prerelease tag)
  --notes, -n        Release notes shown in update prompts
  --notes-file       Read release notes from a file
  --registry, -r     Registry URL (default http://localhost:8090)
  --admin-token, -t  Admin token, or G3RELEASE_ADMIN_TOKEN
  --signing-key, -k  Hex Ed25519 publisher key, or G3RELEASE_SIGNING_KEY
  --timeout          Overall push timeout (default 30m)

Pushing the same version twice is safe: an identical already-published
release returns its existing links.`)
}

// --- Status Command ---

func runStatus(args []string) error {
	var registryURL string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--registry", "-r":
			i++
			if i < len(args) {
				registryURL = args[i]
			}
		case "--help", "-h":
			printStatusHelp()
			return nil
		}
	}

	publisher, err := newPublisher(registryURL, "", "")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, channel := range release.Channels() {
		rel, err := publisher.LatestRelease(ctx, channel)
		if errors.Is(err, services.ErrNotFound) {
			fmt.Printf("%s: no published release\n", channel)
			continue
		}
		if err != nil {
			return err
		}

		platforms := make([]string, 0, len(rel.Platforms()))
		for _, p := range rel.Platforms() {
			platforms = append(platforms, string(p))
		}
		fmt.Printf("%s: %s (%s), %d artifacts for %s\n",
			channel, rel.Version, rel.Date.Format("2006-01-02"),
			len(rel.Artifacts), strings.Join(platforms, ", "))
	}
	return nil
}

func printStatusHelp() {
	fmt.Println(`publish status - Show the latest release on each channel

Usage:
  publish status [--registry=<url>]`)
}

// --- Links Command ---

func runLinks(args []string) error {
	var (
		registryURL string
		version     string
	)

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--registry", "-r":
			i++
			if i < len(args) {
				registryURL = args[i]
			}
		case "--version", "-v":
			i++
			if i < len(args) {
				version = args[i]
			}
		case "--help", "-h":
			printLinksHelp()
			return nil
		}
	}

	if version == "" {
		return fmt.Errorf("--version is required")
	}

	publisher, err := newPublisher(registryURL, "", "")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	list, err := publisher.ListReleases(ctx)
	if err != nil {
		return err
	}

	var rel *release.Release
	for _, candidate := range append(list.Stable, list.Beta...) {
		if candidate.Version == version {
			rel = candidate
			break
		}
	}
	if rel == nil {
		return fmt.Errorf("release %s not found", version)
	}
	if !rel.Published {
		return fmt.Errorf("release %s is not published yet", version)
	}

	links := make([]*services.ArtifactLinks, 0, len(rel.Artifacts))
	for _, art := range rel.Artifacts {
		if art.StoreOnly {
			continue
		}
		links = append(links, &services.ArtifactLinks{
			Filename:   art.Filename,
			CID:        art.CID,
			GatewayURL: art.GatewayURL,
			Magnet:     art.Magnet,
		})
	}
	fmt.Printf("Release %s (%s channel)\n", rel.Version, rel.Channel)
	printLinks(links)
	return nil
}

func printLinksHelp() {
	fmt.Println(`publish links - Show distribution links for a published release

Usage:
  publish links --version=<semver> [--registry=<url>]`)
}

func printLinks(links []*services.ArtifactLinks) {
	for _, link := range links {
		fmt.Printf("\n%s\n", link.Filename)
		if link.CID != "" {
			fmt.Printf("  cid:     %s\n", link.CID)
		}
		if link.GatewayURL != "" {
			fmt.Printf("  gateway: %s\n", link.GatewayURL)
		}
		if link.Magnet != "" {
			fmt.Printf("  magnet:  %s\n", link.Magnet)
		}
	}
}
