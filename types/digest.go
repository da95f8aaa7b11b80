package types

import "github.com/opencontainers/go-digest"

// EmptyJSON is the content of the empty JSON blob referenced by [DescriptorEmptyJSON].
const EmptyJSON = "{}"

const (
	// DigestEmptyJSON is the sha256 digest of the two byte body "{}".
	DigestEmptyJSON digest.Digest = "sha256:44136fa355b3678a1146ad16f7e8649e94fb4fc21fe77e8310c060f61caaff8a"
	// DigestEmptyBytes is the sha256 digest of zero bytes.
	// This is not the digest of the empty descriptor, see [DigestEmptyJSON].
	DigestEmptyBytes digest.Digest = "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)
