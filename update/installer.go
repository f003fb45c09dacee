package update

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// StagedInstaller is the default Installer. It leaves the verified file
// staged for the platform's own install step (the NSIS installer run, the
// DMG mount, the package manager) and only prepares what can be prepared
// portably: AppImages become executable.
type StagedInstaller struct {
	Log *slog.Logger
}

// Install stages the installer file.
func (s *StagedInstaller) Install(ctx context.Context, path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("staged installer missing: %w", err)
	}
	if fi.Size() == 0 {
		return fmt.Errorf("staged installer %s is empty", path)
	}

	if strings.HasSuffix(strings.ToLower(path), ".appimage") {
		if err := os.Chmod(path, 0o755); err != nil {
			return err
		}
	}

	if s.Log != nil {
		s.Log.Info("Installer staged", "path", path, "size", fi.Size())
	}
	return nil
}
