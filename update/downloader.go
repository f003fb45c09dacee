package update

import (
	"context"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/common"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/crypto"
	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/manifest"
)

// ProgressFunc receives download progress. total is the expected size
// from the manifest, which can be zero for manifests written by hand.
type ProgressFunc func(received, total int64)

// Downloader fetches update files into a staging directory and verifies
// them against their manifest digest. Files arrive as <name>.partial and
// are renamed only after the digest matches, so a crash mid-download can
// never leave a file that looks complete.
type Downloader struct {
	dir        string
	baseURL    string
	httpClient *http.Client
}

// NewDownloader creates a downloader staging into dir. Relative file URLs
// resolve against baseURL, the update service root the manifest came from.
func NewDownloader(dir, baseURL string) *Downloader {
	return &Downloader{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Minute,
		},
	}
}

// resolve turns a manifest file URL into an absolute URL and the local
// filename to stage it under.
func (d *Downloader) resolve(entry manifest.FileEntry) (string, string, error) {
	fileURL := entry.URL
	if !strings.Contains(fileURL, "://") {
		if d.baseURL == "" {
			return "", "", fmt.Errorf("relative file url %q with no base url", fileURL)
		}
		fileURL = d.baseURL + "/" + strings.TrimPrefix(fileURL, "/")
	}

	parsed, err := url.Parse(fileURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid file url %q: %w", entry.URL, err)
	}
	name := path.Base(parsed.Path)
	if name == "" || name == "." || name == "/" {
		return "", "", fmt.Errorf("file url %q has no filename", entry.URL)
	}
	return fileURL, name, nil
}

// Download fetches one manifest file entry, resuming a previous partial
// download when the server supports range requests. It returns the path
// of the verified file.
func (d *Downloader) Download(ctx context.Context, entry manifest.FileEntry, progress ProgressFunc) (string, error) {
	want, err := crypto.NewDigestFromString(entry.SHA512)
	if err != nil {
		return "", fmt.Errorf("manifest digest for %q: %w", entry.URL, err)
	}

	fileURL, name, err := d.resolve(entry)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", err
	}
	target := filepath.Join(d.dir, name)
	partial := target + ".partial"

	// A finished download from a previous run is reused if it still
	// matches the manifest.
	if _, err := os.Stat(target); err == nil {
		if f, err := os.Open(target); err == nil {
			verifyErr := crypto.VerifyReader(f, want)
			f.Close()
			if verifyErr == nil {
				return target, nil
			}
		}
		os.Remove(target)
	}

	hasher := sha512.New()
	offset := d.resumeOffset(partial, entry.Size, hasher)

	resp, err := d.get(ctx, fileURL, offset)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Server ignored the range request; start over.
		if offset > 0 {
			hasher = sha512.New()
			offset = 0
		}
	case http.StatusPartialContent:
		// Continue from offset.
	default:
		return "", fmt.Errorf("downloading %s: unexpected status %d", fileURL, resp.StatusCode)
	}

	if err := d.writePartial(partial, offset, resp.Body, hasher, entry.Size, progress); err != nil {
		return "", err
	}

	got, err := crypto.NewDigestFromBytes(hasher.Sum(nil))
	if err != nil {
		return "", err
	}
	if !got.Equal(want) {
		os.Remove(partial)
		return "", fmt.Errorf("%w: %s", ErrChecksumMismatch, name)
	}

	if err := os.Rename(partial, target); err != nil {
		return "", err
	}
	return target, nil
}

// resumeOffset replays an existing partial file into the hasher and
// returns its size, or zero when starting fresh.
func (d *Downloader) resumeOffset(partial string, expectedSize int64, hasher hash.Hash) int64 {
	fi, err := os.Stat(partial)
	if err != nil || fi.Size() == 0 {
		return 0
	}
	if expectedSize > 0 && fi.Size() >= expectedSize {
		// Leftover from a different release; hashing it would poison the
		// digest.
		os.Remove(partial)
		return 0
	}

	f, err := os.Open(partial)
	if err != nil {
		return 0
	}
	defer f.Close()

	n, err := io.Copy(hasher, f)
	if err != nil || n != fi.Size() {
		hasher.Reset()
		os.Remove(partial)
		return 0
	}
	return n
}

func (d *Downloader) get(ctx context.Context, fileURL string, offset int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", common.UserAgent())
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", fileURL, err)
	}
	return resp, nil
}

func (d *Downloader) writePartial(partial string, offset int64, body io.Reader, hasher hash.Hash, total int64, progress ProgressFunc) error {
	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(partial, flags, 0o644)
	if err != nil {
		return err
	}

	received := offset
	buf := make([]byte, 128*1024)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				f.Close()
				return err
			}
			hasher.Write(buf[:n])
			received += int64(n)
			if progress != nil {
				progress(received, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			f.Close()
			// The partial file stays for the next attempt to resume.
			return fmt.Errorf("download interrupted: %w", readErr)
		}
	}
	return f.Close()
}
