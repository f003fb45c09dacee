package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/genesisreloop-alt/G3ZKPBETAFINAL-sub001/release"
)

// ArtifactStore holds artifact bytes addressed by channel, version and
// filename. Implementations must reject path components that escape the
// store root.
type ArtifactStore interface {
	Put(ctx context.Context, channel release.Channel, version, filename string, r io.Reader) (int64, error)
	Open(ctx context.Context, channel release.Channel, version, filename string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, channel release.Channel, version, filename string) error
}

// LocalArtifactStore keeps artifacts on the local filesystem under a root
// directory, laid out as <channel>/<version>/<filename>.
type LocalArtifactStore struct {
	root string
}

// NewLocalArtifactStore creates a filesystem-backed artifact store.
func NewLocalArtifactStore(root string) *LocalArtifactStore {
	return &LocalArtifactStore{root: root}
}

func (s *LocalArtifactStore) path(channel release.Channel, version, filename string) (string, error) {
	rel, err := release.ArtifactPath(channel, version, filename)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(rel)), nil
}

// Put writes an artifact, replacing any previous content. The write goes
// through a temporary file so readers never observe a partial artifact.
func (s *LocalArtifactStore) Put(ctx context.Context, channel release.Channel, version, filename string, r io.Reader) (int64, error) {
	target, err := s.path(channel, version, filename)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("creating artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filename+".upload-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("writing artifact: %w", err)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return 0, err
	}
	return n, nil
}

// Open returns a reader over a stored artifact together with its size.
func (s *LocalArtifactStore) Open(ctx context.Context, channel release.Channel, version, filename string) (io.ReadCloser, int64, error) {
	target, err := s.path(channel, version, filename)
	if err != nil {
		return nil, 0, err
	}

	f, err := os.Open(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// Delete removes a stored artifact. Deleting a missing artifact is not an
// error.
func (s *LocalArtifactStore) Delete(ctx context.Context, channel release.Channel, version, filename string) error {
	target, err := s.path(channel, version, filename)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// GCSArtifactStore keeps artifacts in a Google Cloud Storage bucket under an
// optional object prefix.
type GCSArtifactStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSArtifactStore creates a GCS-backed artifact store and verifies the
// bucket is reachable. Pass an empty credentialsFile to use application
// default credentials.
func NewGCSArtifactStore(ctx context.Context, bucket, prefix, credentialsFile string) (*GCSArtifactStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("accessing bucket %s: %w", bucket, err)
	}

	return &GCSArtifactStore{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *GCSArtifactStore) object(channel release.Channel, version, filename string) (*storage.ObjectHandle, error) {
	rel, err := release.ArtifactPath(channel, version, filename)
	if err != nil {
		return nil, err
	}
	name := rel
	if s.prefix != "" {
		name = path.Join(s.prefix, rel)
	}
	return s.client.Bucket(s.bucket).Object(name), nil
}

// Put uploads an artifact object, replacing any previous content.
func (s *GCSArtifactStore) Put(ctx context.Context, channel release.Channel, version, filename string, r io.Reader) (int64, error) {
	obj, err := s.object(channel, version, filename)
	if err != nil {
		return 0, err
	}

	w := obj.NewWriter(ctx)
	w.ContentType = "application/octet-stream"

	n, err := io.Copy(w, r)
	if err != nil {
		w.Close()
		return 0, fmt.Errorf("writing object: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("finalizing object: %w", err)
	}
	return n, nil
}

// Open returns a reader over a stored artifact object together with its size.
func (s *GCSArtifactStore) Open(ctx context.Context, channel release.Channel, version, filename string) (io.ReadCloser, int64, error) {
	obj, err := s.object(channel, version, filename)
	if err != nil {
		return nil, 0, err
	}

	r, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}
	return r, r.Attrs.Size, nil
}

// Delete removes a stored artifact object. Deleting a missing object is not
// an error.
func (s *GCSArtifactStore) Delete(ctx context.Context, channel release.Channel, version, filename string) error {
	obj, err := s.object(channel, version, filename)
	if err != nil {
		return err
	}
	if err := obj.Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return err
	}
	return nil
}

// Close releases the underlying storage client.
func (s *GCSArtifactStore) Close() error {
	return s.client.Close()
}
