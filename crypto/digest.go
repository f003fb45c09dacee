package crypto

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
)

// DigestSize is the size of a SHA-512 digest in bytes.
const DigestSize = sha512.Size

// Digest is the SHA-512 digest of an installer artifact. Digests travel in
// update manifests base64-encoded, matching the checksum format desktop
// update clients already verify against.
type Digest []byte

// NewDigestFromBytes creates a Digest from a raw byte slice.
// This function makes a copy of the input data to ensure immutability.
func NewDigestFromBytes(data []byte) (Digest, error) {
	if len(data) != DigestSize {
		return nil, fmt.Errorf("invalid digest size: got %d bytes, want %d", len(data), DigestSize)
	}
	d := make([]byte, DigestSize)
	copy(d, data)
	return Digest(d), nil
}

// NewDigestFromString creates a Digest from its base64 manifest encoding.
func NewDigestFromString(data string) (Digest, error) {
	rawBytes, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("invalid digest encoding: %w", err)
	}
	return NewDigestFromBytes(rawBytes)
}

// Bytes returns the digest as a byte slice.
func (d Digest) Bytes() []byte {
	return d
}

// Equal compares two digests for equality in constant time.
func (d Digest) Equal(other Digest) bool {
	return subtle.ConstantTimeCompare(d, other) == 1
}

// String returns the base64 encoding used in update manifests.
func (d Digest) String() string {
	return base64.StdEncoding.EncodeToString(d)
}

// HashBytes computes the SHA-512 digest of a byte slice.
func HashBytes(data []byte) Digest {
	sum := sha512.Sum512(data)
	return Digest(sum[:])
}

// HashReader computes the SHA-512 digest of everything the reader yields,
// returning the digest and the number of bytes consumed. Artifacts are
// hashed streaming so multi-hundred-megabyte installers never need to fit
// in memory.
func HashReader(r io.Reader) (Digest, int64, error) {
	h := sha512.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return nil, 0, err
	}
	return Digest(h.Sum(nil)), n, nil
}

// HashFile computes the SHA-512 digest and size of the file at path.
func HashFile(path string) (Digest, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	digest, size, err := HashReader(f)
	if err != nil {
		return nil, 0, fmt.Errorf("hashing %s: %w", path, err)
	}
	return digest, size, nil
}

// VerifyReader hashes the reader and checks the result against want.
// It returns an error describing the mismatch, never a partial digest.
func VerifyReader(r io.Reader, want Digest) error {
	if len(want) != DigestSize {
		return errors.New("verification digest has invalid size")
	}
	got, _, err := HashReader(r)
	if err != nil {
		return err
	}
	if !got.Equal(want) {
		return fmt.Errorf("digest mismatch: got %s, want %s", got, want)
	}
	return nil
}
