// Package bundle combines many payloads into a single deterministic archive blob.
package bundle

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/ocipack/ocipack/types"
)

// Compression selects the compression wrapped around the tar stream.
type Compression int

const (
	CompressionUndef Compression = iota // undefined compression is the invalid zero value
	CompressionNone                     // CompressionNone writes a plain tar
	CompressionGzip                     // CompressionGzip wraps the tar in gzip
	CompressionZstd                     // CompressionZstd wraps the tar in zstd
)

// ErrEntryInvalid is returned when an entry name cannot be stored in the archive.
var ErrEntryInvalid = errors.New("invalid bundle entry")

// epoch is used for every header so identical input produces identical bytes.
var epoch = time.Unix(0, 0).UTC()

// Entry is a single named payload in a bundle.
type Entry struct {
	Name string
	Data []byte
}

// Bundler packs entries into one blob.
type Bundler interface {
	// Bundle returns the archive bytes, entries are written in the order given.
	Bundle(entries []Entry) ([]byte, error)
	// MediaType is the media type of the blob returned by Bundle.
	MediaType() string
}

// Tar is a [Bundler] writing a tar archive with optional compression.
type Tar struct {
	Compression Compression
	// Level is the compression level, zero selects the library default.
	Level int
}

// New returns a tar bundler with the requested compression.
func New(c Compression) Tar {
	return Tar{Compression: c}
}

// MediaType returns the bundle media type for the configured compression.
func (t Tar) MediaType() string {
	switch t.Compression {
	case CompressionNone:
		return types.MediaTypeBundleTar
	case CompressionZstd:
		return types.MediaTypeBundleTarZstd
	default:
		return types.MediaTypeBundleTarGzip
	}
}

// Bundle writes every entry into a tar archive, in order, and compresses the result.
func (t Tar) Bundle(entries []Entry) ([]byte, error) {
	buf := &bytes.Buffer{}
	var w io.Writer = buf
	var closeFn func() error
	switch t.Compression {
	case CompressionNone:
		// plain tar
	case CompressionGzip, CompressionUndef:
		level := gzip.DefaultCompression
		if t.Level != 0 {
			level = t.Level
		}
		gzw, err := gzip.NewWriterLevel(buf, level)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip writer: %w", err)
		}
		w = gzw
		closeFn = gzw.Close
	case CompressionZstd:
		level := zstd.SpeedDefault
		if t.Level > 0 {
			level = zstd.EncoderLevelFromZstd(t.Level)
		}
		zw, err := zstd.NewWriter(buf, zstd.WithEncoderLevel(level), zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		w = zw
		closeFn = zw.Close
	default:
		return nil, fmt.Errorf("unsupported compression %d", int(t.Compression))
	}
	tw := tar.NewWriter(w)
	for _, e := range entries {
		name, err := entryName(e.Name)
		if err != nil {
			return nil, err
		}
		hdr := &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     name,
			Mode:     0644,
			Size:     int64(len(e.Data)),
			ModTime:  epoch,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("failed to write header for %s: %w", name, err)
		}
		if _, err := tw.Write(e.Data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close tar: %w", err)
	}
	if closeFn != nil {
		if err := closeFn(); err != nil {
			return nil, fmt.Errorf("failed to close compressor: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// Unbundle extracts the entries of an archive created by [Tar.Bundle].
func Unbundle(b []byte, c Compression) ([]Entry, error) {
	var r io.Reader = bytes.NewReader(b)
	switch c {
	case CompressionNone:
		// plain tar
	case CompressionGzip, CompressionUndef:
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read gzip: %w", err)
		}
		defer gzr.Close()
		r = gzr
	case CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read zstd: %w", err)
		}
		defer zr.Close()
		r = zr
	default:
		return nil, fmt.Errorf("unsupported compression %d", int(c))
	}
	entries := []Entry{}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar: %w", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", hdr.Name, err)
		}
		entries = append(entries, Entry{Name: hdr.Name, Data: data})
	}
	return entries, nil
}

// CompressionFor returns the compression matching a bundle media type.
func CompressionFor(mediaType string) (Compression, error) {
	switch types.MediaTypeBase(mediaType) {
	case types.MediaTypeBundleTar:
		return CompressionNone, nil
	case types.MediaTypeBundleTarGzip:
		return CompressionGzip, nil
	case types.MediaTypeBundleTarZstd:
		return CompressionZstd, nil
	}
	return CompressionUndef, fmt.Errorf("media type %s is not a bundle", mediaType)
}

func entryName(name string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || clean == "." || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("entry name %q%.0w", name, ErrEntryInvalid)
	}
	return clean, nil
}

func (c Compression) MarshalText() ([]byte, error) {
	var ret string
	switch c {
	case CompressionNone:
		ret = "none"
	case CompressionGzip:
		ret = "gzip"
	case CompressionZstd:
		ret = "zstd"
	}
	if ret == "" {
		return []byte{}, fmt.Errorf("unknown compression value %d", int(c))
	}
	return []byte(ret), nil
}

func (c *Compression) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	default:
		return fmt.Errorf("unknown compression value \"%s\"", b)
	case "none", "tar":
		*c = CompressionNone
	case "gzip", "gz":
		*c = CompressionGzip
	case "zstd", "zst":
		*c = CompressionZstd
	}
	return nil
}

// String returns the text form of the compression, or "undef".
func (c Compression) String() string {
	b, err := c.MarshalText()
	if err != nil {
		return "undef"
	}
	return string(b)
}
