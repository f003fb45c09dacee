// Command demo-updater exercises the user-gated update flow against a
// live update server from the terminal.
//
// The flow matches what the desktop applications run on startup: fetch the
// platform manifest, compare versions, ask before downloading, verify the
// download, ask again before installing. Both prompts appear on stdin;
// declining the download suppresses that version until a newer one ships.
//
// # Usage
//
//	go run ./cmd/demo-updater --server=http://localhost:8091 --version=1.0.0
//	go run ./cmd/demo-updater --server=http://localhost:8091 --version=1.0.0 --watch --interval=1m
//	go run ./cmd/demo-updater --server=http://localhost:8091 --version=1.0.0 --yes
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/cmd/common"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/manifest"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/release"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/update"
)

func main() {
	var (
		serverURL   = flag.String("server", "http://localhost:8091", "Update server base URL")
		platformStr = flag.String("platform", string(release.HostPlatform()), "Platform to check updates for")
		channelStr  = flag.String("channel", "stable", "Release channel")
		version     = flag.String("version", "", "Version currently installed")
		stagingDir  = flag.String("staging", "", "Download staging directory (default user cache)")
		watch       = flag.Bool("watch", false, "Keep checking on an interval instead of exiting")
		interval    = flag.Duration("interval", 30*time.Minute, "Check interval in watch mode")
		autoYes     = flag.Bool("yes", false, "Answer yes to both prompts")
	)
	flag.Parse()

	if *version == "" {
		fmt.Println("Error: --version is required")
		os.Exit(1)
	}

	platform, err := release.ParsePlatform(*platformStr)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	channel, err := release.ParseChannel(*channelStr)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		cancel()
	}()

	log := common.NewLogger(false, false)

	cfg := update.Config{
		Source:         update.NewHTTPSource(*serverURL),
		Platform:       platform,
		Channel:        channel,
		CurrentVersion: *version,
		StagingDir:     *stagingDir,
		Prompter: &consolePrompter{
			in:      bufio.NewReader(os.Stdin),
			autoYes: *autoYes,
		},
		Installer: &update.StagedInstaller{Log: log},
		Progress:  printProgress,
		Log:       log,
	}
	if *watch {
		cfg.CheckInterval = *interval
	}

	prompter := cfg.Prompter.(*consolePrompter)

	updater, err := update.New(cfg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Checking %s for %s/%s updates over version %s\n",
		*serverURL, platform, channel, *version)

	if *watch {
		updater.Run(ctx)
		return
	}

	if err := updater.RunOnce(ctx); err != nil {
		if errors.Is(err, update.ErrManifestUnavailable) {
			// The applications stay silent here; the demo says why it
			// has nothing to show.
			fmt.Printf("No manifest reachable: %v\n", err)
			return
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if !prompter.sawOffer {
		fmt.Println("Already up to date.")
	}
}

// consolePrompter asks for both update consents on the terminal.
type consolePrompter struct {
	in       *bufio.Reader
	autoYes  bool
	sawOffer bool
}

func (p *consolePrompter) ConfirmDownload(m *manifest.Manifest) bool {
	p.sawOffer = true
	fmt.Printf("\nUpdate available: version %s", m.Version)
	if date, err := m.Date(); err == nil {
		fmt.Printf(" (released %s)", date.Format("2006-01-02"))
	}
	fmt.Println()
	if m.ReleaseNotes != "" {
		fmt.Printf("\n%s\n", m.ReleaseNotes)
	}
	if primary, ok := m.Primary(); ok {
		fmt.Printf("\nDownload size: %s\n", formatSize(primary.Size))
	}
	return p.ask("Download now? [y/N] ")
}

func (p *consolePrompter) ConfirmInstall(m *manifest.Manifest) bool {
	p.sawOffer = true
	fmt.Printf("\nVersion %s downloaded and verified.\n", m.Version)
	return p.ask("Install now? [y/N] ")
}

func (p *consolePrompter) ask(prompt string) bool {
	if p.autoYes {
		fmt.Printf("%sy (auto)\n", prompt)
		return true
	}
	fmt.Print(prompt)
	line, err := p.in.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func printProgress(received, total int64) {
	if total > 0 {
		fmt.Printf("\rDownloading... %s / %s (%d%%)   ",
			formatSize(received), formatSize(total), received*100/total)
	} else {
		fmt.Printf("\rDownloading... %s   ", formatSize(received))
	}
	if received == total && total > 0 {
		fmt.Println()
	}
}

func formatSize(bytes int64) string {
	const mib = 1024 * 1024
	if bytes >= mib {
		return fmt.Sprintf("%.1f MiB", float64(bytes)/mib)
	}
	return fmt.Sprintf("%.1f KiB", float64(bytes)/1024)
}
