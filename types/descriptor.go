package types

import (
	// imports required for go-digest
	_ "crypto/sha256"
	_ "crypto/sha512"

	"github.com/opencontainers/go-digest"
)

// Descriptor is used in manifests to refer to content by media type, size, and digest.
type Descriptor struct {
	// MediaType describe the type of the content.
	MediaType string `json:"mediaType"`

	// Digest uniquely identifies the content.
	Digest digest.Digest `json:"digest"`

	// Size in bytes of content.
	Size int64 `json:"size"`

	// URLs contains the source URLs of this content.
	URLs []string `json:"urls,omitempty"`

	// Annotations contains arbitrary metadata relating to the targeted content.
	Annotations map[string]string `json:"annotations,omitempty"`

	// Data is an embedding of the targeted content. This is encoded as a base64
	// string when marshalled to JSON (automatically, by encoding/json). If
	// present, Data can be used directly to avoid fetching the targeted content.
	Data []byte `json:"data,omitempty"`

	// ArtifactType is the media type of the artifact this descriptor refers to.
	ArtifactType string `json:"artifactType,omitempty"`
}

// DescriptorEmptyJSON returns the well known descriptor of the empty JSON object "{}".
// A new copy is returned on every call so callers may attach annotations safely.
func DescriptorEmptyJSON() Descriptor {
	return Descriptor{
		MediaType: MediaTypeOCI1Empty,
		Digest:    DigestEmptyJSON,
		Size:      int64(len(EmptyJSON)),
	}
}

// Copy returns a memory safe copy of the Descriptor.
func (d Descriptor) Copy() Descriptor {
	d2 := d
	if d.URLs != nil {
		d2.URLs = make([]string, len(d.URLs))
		copy(d2.URLs, d.URLs)
	}
	if d.Annotations != nil {
		d2.Annotations = make(map[string]string, len(d.Annotations))
		for k, v := range d.Annotations {
			d2.Annotations[k] = v
		}
	}
	if d.Data != nil {
		d2.Data = make([]byte, len(d.Data))
		copy(d2.Data, d.Data)
	}
	return d2
}

// Equal reports whether two descriptors reference the same content with the same metadata.
func (d Descriptor) Equal(d2 Descriptor) bool {
	if d.MediaType != d2.MediaType || d.Digest != d2.Digest || d.Size != d2.Size || d.ArtifactType != d2.ArtifactType {
		return false
	}
	if len(d.Annotations) != len(d2.Annotations) {
		return false
	}
	for k, v := range d.Annotations {
		if v2, ok := d2.Annotations[k]; !ok || v != v2 {
			return false
		}
	}
	return true
}
