// Package content computes content addressed descriptors for blobs.
package content

import (
	"fmt"
	"io"

	// imports required for go-digest
	_ "crypto/sha256"

	"github.com/opencontainers/go-digest"

	"github.com/ocipack/ocipack/types"
)

// Algorithm is the digest algorithm used for every descriptor.
const Algorithm = digest.Canonical

// Address returns a descriptor with the digest and size of b.
// The media type is left for the caller to set.
func Address(b []byte) types.Descriptor {
	return types.Descriptor{
		Digest: Algorithm.FromBytes(b),
		Size:   int64(len(b)),
	}
}

// AddressMediaType returns a descriptor for b with the media type set.
func AddressMediaType(b []byte, mediaType string) types.Descriptor {
	d := Address(b)
	d.MediaType = mediaType
	return d
}

// AddressReader consumes r in a single pass and returns its descriptor.
func AddressReader(r io.Reader) (types.Descriptor, error) {
	dig := Algorithm.Digester()
	n, err := io.Copy(dig.Hash(), r)
	if err != nil {
		return types.Descriptor{}, fmt.Errorf("failed to read content after %d bytes: %w", n, err)
	}
	return types.Descriptor{
		Digest: dig.Digest(),
		Size:   n,
	}, nil
}

// Verify checks that b matches the size and digest of desc.
func Verify(desc types.Descriptor, b []byte) error {
	if int64(len(b)) != desc.Size {
		return fmt.Errorf("size mismatch for %s, expected %d, received %d%.0w", desc.Digest.String(), desc.Size, len(b), types.ErrSizeInvalid)
	}
	if err := desc.Digest.Validate(); err != nil {
		return fmt.Errorf("descriptor digest %q: %v%.0w", desc.Digest.String(), err, types.ErrDigestInvalid)
	}
	v := desc.Digest.Verifier()
	_, _ = v.Write(b)
	if !v.Verified() {
		return fmt.Errorf("digest mismatch, expected %s, received %s%.0w", desc.Digest.String(), desc.Digest.Algorithm().FromBytes(b).String(), types.ErrDigestInvalid)
	}
	return nil
}

// VerifyReader streams r and checks it against the size and digest of desc.
func VerifyReader(desc types.Descriptor, r io.Reader) error {
	if err := desc.Digest.Validate(); err != nil {
		return fmt.Errorf("descriptor digest %q: %v%.0w", desc.Digest.String(), err, types.ErrDigestInvalid)
	}
	dig := desc.Digest.Algorithm().Digester()
	n, err := io.Copy(dig.Hash(), r)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", desc.Digest.String(), err)
	}
	if n != desc.Size {
		return fmt.Errorf("size mismatch for %s, expected %d, received %d%.0w", desc.Digest.String(), desc.Size, n, types.ErrSizeInvalid)
	}
	if dig.Digest() != desc.Digest {
		return fmt.Errorf("digest mismatch, expected %s, received %s%.0w", desc.Digest.String(), dig.Digest().String(), types.ErrDigestInvalid)
	}
	return nil
}
