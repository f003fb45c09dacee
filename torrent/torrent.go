// Package torrent derives BitTorrent metadata for published artifacts.
// The backend does not run a tracker or seed over the BitTorrent wire;
// it computes the canonical single-file info dictionary so magnet links
// can point peers at the release, with the plain HTTPS download endpoint
// and the IPFS gateway acting as web seeds.
package torrent

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// PieceLength is the piece size used for all artifact torrents. 256 KiB
// keeps metadata small for installer-sized files while staying a size
// every client accepts.
const PieceLength = 256 * 1024

// Info is the single-file torrent info dictionary for one artifact.
// Identical inputs produce identical info bytes, and therefore identical
// infohashes, no matter where the torrent is generated.
type Info struct {
	// Name is the artifact filename peers save the download as.
	Name string

	// Length is the file size in bytes.
	Length int64

	// Pieces is the concatenation of the SHA-1 digest of every piece.
	Pieces []byte
}

// BuildInfo hashes the reader piece by piece and assembles the info
// dictionary. The reader must yield the exact artifact bytes; the caller
// is responsible for rewinding files.
func BuildInfo(name string, r io.Reader) (*Info, error) {
	if name == "" {
		return nil, errors.New("torrent: name must not be empty")
	}

	info := &Info{Name: name}
	buf := make([]byte, PieceLength)

	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			sum := sha1.Sum(buf[:n])
			info.Pieces = append(info.Pieces, sum[:]...)
			info.Length += int64(n)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("torrent: reading %s: %w", name, err)
		}
	}

	if info.Length == 0 {
		return nil, fmt.Errorf("torrent: %s is empty", name)
	}
	return info, nil
}

// PieceCount returns the number of pieces in the torrent.
func (i *Info) PieceCount() int {
	return len(i.Pieces) / sha1.Size
}

// Bencode serializes the info dictionary in canonical bencode form with
// lexicographically ordered keys. The infohash is defined over these
// bytes, so the encoding must never change.
func (i *Info) Bencode() []byte {
	var b bytes.Buffer
	b.WriteByte('d')
	bencodeString(&b, "length")
	bencodeInt(&b, i.Length)
	bencodeString(&b, "name")
	bencodeString(&b, i.Name)
	bencodeString(&b, "piece length")
	bencodeInt(&b, PieceLength)
	bencodeString(&b, "pieces")
	bencodeBytes(&b, i.Pieces)
	b.WriteByte('e')
	return b.Bytes()
}

// InfoHash returns the SHA-1 digest of the bencoded info dictionary.
func (i *Info) InfoHash() [sha1.Size]byte {
	return sha1.Sum(i.Bencode())
}

// InfoHashHex returns the infohash in the lowercase hex form magnet links
// carry.
func (i *Info) InfoHashHex() string {
	sum := i.InfoHash()
	return hex.EncodeToString(sum[:])
}

func bencodeString(b *bytes.Buffer, s string) {
	fmt.Fprintf(b, "%d:%s", len(s), s)
}

func bencodeBytes(b *bytes.Buffer, data []byte) {
	fmt.Fprintf(b, "%d:", len(data))
	b.Write(data)
}

func bencodeInt(b *bytes.Buffer, n int64) {
	fmt.Fprintf(b, "i%de", n)
}
