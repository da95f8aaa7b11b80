package types

import (
	"fmt"

	"github.com/opencontainers/go-digest"
)

// Index references manifests, used here for the index.json of an OCI Layout.
type Index struct {
	// SchemaVersion is the image manifest schema that this image follows
	SchemaVersion int `json:"schemaVersion"`

	// MediaType specifies the type of this document data structure e.g. `application/vnd.oci.image.index.v1+json`
	MediaType string `json:"mediaType,omitempty"`

	// Manifests references the tagged and untagged manifests in the layout.
	Manifests []Descriptor `json:"manifests"`

	// Annotations contains arbitrary metadata for the image index.
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Manifest defines an OCI image manifest used to describe an artifact.
type Manifest struct {
	// SchemaVersion is the image manifest schema that this image follows
	SchemaVersion int `json:"schemaVersion"`

	// MediaType specifies the type of this document data structure e.g. `application/vnd.oci.image.manifest.v1+json`
	MediaType string `json:"mediaType"`

	// ArtifactType specifies the IANA media type of artifact when the manifest is used for an artifact.
	ArtifactType string `json:"artifactType,omitempty"`

	// Config references a configuration object by digest.
	// Artifacts without a meaningful config point to the empty JSON descriptor.
	Config Descriptor `json:"config"`

	// Layers is an indexed list of layers referenced by the manifest.
	// Order is significant and is never sorted.
	Layers []Descriptor `json:"layers"`

	// Subject is an optional link from the image manifest to another manifest forming an association between the image manifest and the other manifest.
	Subject *Descriptor `json:"subject,omitempty"`

	// Annotations contains arbitrary metadata for the image manifest.
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Validate checks the fields required by the image manifest schema.
func (m Manifest) Validate() error {
	if m.SchemaVersion != 2 {
		return fmt.Errorf("schemaVersion must be 2, received %d%.0w", m.SchemaVersion, ErrManifestInvalid)
	}
	if m.MediaType == "" {
		return fmt.Errorf("mediaType is required%.0w", ErrManifestInvalid)
	}
	if err := validateDesc("config", m.Config); err != nil {
		return err
	}
	if m.Layers == nil {
		return fmt.Errorf("layers must be an array%.0w", ErrManifestInvalid)
	}
	for i, l := range m.Layers {
		if err := validateDesc(fmt.Sprintf("layers[%d]", i), l); err != nil {
			return err
		}
	}
	if m.Subject != nil {
		if err := validateDesc("subject", *m.Subject); err != nil {
			return err
		}
	}
	return nil
}

// Copy returns a memory safe copy of the Manifest.
func (m Manifest) Copy() Manifest {
	m2 := m
	m2.Config = m.Config.Copy()
	if m.Layers != nil {
		m2.Layers = make([]Descriptor, len(m.Layers))
		for i, l := range m.Layers {
			m2.Layers[i] = l.Copy()
		}
	}
	if m.Subject != nil {
		s := m.Subject.Copy()
		m2.Subject = &s
	}
	if m.Annotations != nil {
		m2.Annotations = make(map[string]string, len(m.Annotations))
		for k, v := range m.Annotations {
			m2.Annotations[k] = v
		}
	}
	return m2
}

// Validate reports a descriptor missing its media type, with a malformed digest, or a negative size.
func (d Descriptor) Validate() error {
	return validateDesc("descriptor", d)
}

func validateDesc(field string, d Descriptor) error {
	if d.MediaType == "" {
		return fmt.Errorf("%s.mediaType is required%.0w", field, ErrManifestInvalid)
	}
	if err := d.Digest.Validate(); err != nil {
		return fmt.Errorf("%s.digest %q is invalid: %v%.0w", field, d.Digest.String(), err, ErrManifestInvalid)
	}
	if d.Size < 0 {
		return fmt.Errorf("%s.size %d is negative%.0w", field, d.Size, ErrManifestInvalid)
	}
	return nil
}

// GetDesc returns a descriptor for a tag or digest, including child descriptors.
func (i Index) GetDesc(arg string) (Descriptor, error) {
	var dig digest.Digest
	tag := ""
	if RefTagRE.MatchString(arg) {
		tag = arg
	} else {
		var err error
		dig, err = digest.Parse(arg)
		if err != nil {
			return Descriptor{}, err
		}
	}
	for _, d := range i.Manifests {
		if tag != "" && d.Annotations != nil && d.Annotations[AnnotRefName] == tag {
			return d, nil
		}
		if dig != "" && d.Digest == dig {
			return d, nil
		}
	}
	return Descriptor{}, fmt.Errorf("%s%.0w", arg, ErrNotFound)
}

// AddDesc adds an entry to the Index.
// A tagged entry replaces any existing entry with the same tag, the old entry is removed from the index.
// Entries for content already listed are not duplicated.
func (i *Index) AddDesc(d Descriptor) {
	tag := ""
	if d.Annotations != nil {
		tag = d.Annotations[AnnotRefName]
	}
	for pos := len(i.Manifests) - 1; pos >= 0; pos-- {
		cur := i.Manifests[pos]
		curTag := ""
		if cur.Annotations != nil {
			curTag = cur.Annotations[AnnotRefName]
		}
		switch {
		case tag != "" && curTag == tag && cur.Digest == d.Digest:
			// already tagged
			return
		case tag != "" && curTag == tag:
			i.Manifests = append(i.Manifests[:pos], i.Manifests[pos+1:]...)
		case tag == "" && cur.Digest == d.Digest:
			// untagged entry for existing content
			return
		case curTag == "" && cur.Digest == d.Digest:
			// replace the untagged entry with the tagged one
			i.Manifests = append(i.Manifests[:pos], i.Manifests[pos+1:]...)
		}
	}
	i.Manifests = append(i.Manifests, d)
}

// RmDesc deletes a descriptor from the index.
// When the descriptor is tagged, only the entry with that tag is removed.
func (i *Index) RmDesc(d Descriptor) {
	tag := ""
	if d.Annotations != nil {
		tag = d.Annotations[AnnotRefName]
	}
	for pos := len(i.Manifests) - 1; pos >= 0; pos-- {
		cur := i.Manifests[pos]
		if cur.Digest != d.Digest {
			continue
		}
		if tag != "" && (cur.Annotations == nil || cur.Annotations[AnnotRefName] != tag) {
			continue
		}
		i.Manifests = append(i.Manifests[:pos], i.Manifests[pos+1:]...)
	}
}

// Copy returns a memory safe copy of the Index.
func (i Index) Copy() Index {
	i2 := i
	if i.Manifests != nil {
		i2.Manifests = make([]Descriptor, len(i.Manifests))
		for pos, d := range i.Manifests {
			i2.Manifests[pos] = d.Copy()
		}
	}
	if i.Annotations != nil {
		i2.Annotations = make(map[string]string, len(i.Annotations))
		for k, v := range i.Annotations {
			i2.Annotations[k] = v
		}
	}
	return i2
}
