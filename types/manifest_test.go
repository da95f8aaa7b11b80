package types

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/opencontainers/go-digest"
)

func TestEmptyConstants(t *testing.T) {
	t.Parallel()
	if d := digest.FromString(EmptyJSON); d != DigestEmptyJSON {
		t.Errorf("empty JSON digest mismatch, expected %s, computed %s", DigestEmptyJSON, d)
	}
	if d := digest.FromBytes([]byte{}); d != DigestEmptyBytes {
		t.Errorf("empty bytes digest mismatch, expected %s, computed %s", DigestEmptyBytes, d)
	}
	if DigestEmptyJSON == DigestEmptyBytes {
		t.Errorf("empty JSON and empty bytes digests must differ")
	}
	e := DescriptorEmptyJSON()
	if e.MediaType != MediaTypeOCI1Empty || e.Digest != DigestEmptyJSON || e.Size != 2 {
		t.Errorf("unexpected empty descriptor: %v", e)
	}
	// mutating a returned copy must not leak into later calls
	e.Annotations = map[string]string{"x": "y"}
	e.Size = 5
	e2 := DescriptorEmptyJSON()
	if e2.Annotations != nil || e2.Size != 2 {
		t.Errorf("empty descriptor was mutated: %v", e2)
	}
}

func TestManifestValidate(t *testing.T) {
	t.Parallel()
	digA := digest.FromString("A")
	descA := Descriptor{
		MediaType: MediaTypeItem,
		Digest:    digA,
		Size:      1,
	}
	good := Manifest{
		SchemaVersion: 2,
		MediaType:     MediaTypeOCI1Manifest,
		ArtifactType:  ArtifactTypeDefault,
		Config:        DescriptorEmptyJSON(),
		Layers:        []Descriptor{descA},
	}
	tt := []struct {
		name      string
		mod       func(m *Manifest)
		expectErr error
		errField  string
	}{
		{
			name: "good",
			mod:  func(m *Manifest) {},
		},
		{
			name: "empty layers",
			mod:  func(m *Manifest) { m.Layers = []Descriptor{} },
		},
		{
			name:      "nil layers",
			mod:       func(m *Manifest) { m.Layers = nil },
			expectErr: ErrManifestInvalid,
			errField:  "layers",
		},
		{
			name:      "schema version",
			mod:       func(m *Manifest) { m.SchemaVersion = 1 },
			expectErr: ErrManifestInvalid,
			errField:  "schemaVersion",
		},
		{
			name:      "missing media type",
			mod:       func(m *Manifest) { m.MediaType = "" },
			expectErr: ErrManifestInvalid,
			errField:  "mediaType",
		},
		{
			name:      "missing config",
			mod:       func(m *Manifest) { m.Config = Descriptor{} },
			expectErr: ErrManifestInvalid,
			errField:  "config",
		},
		{
			name: "bad layer digest",
			mod: func(m *Manifest) {
				m.Layers = []Descriptor{descA, {MediaType: MediaTypeItem, Digest: "sha256:abc", Size: 1}}
			},
			expectErr: ErrManifestInvalid,
			errField:  "layers[1]",
		},
		{
			name:      "negative size",
			mod:       func(m *Manifest) { m.Layers = []Descriptor{{MediaType: MediaTypeItem, Digest: digA, Size: -1}} },
			expectErr: ErrManifestInvalid,
			errField:  "layers[0].size",
		},
		{
			name:      "bad subject",
			mod:       func(m *Manifest) { m.Subject = &Descriptor{MediaType: MediaTypeOCI1Manifest} },
			expectErr: ErrManifestInvalid,
			errField:  "subject",
		},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			m := good.Copy()
			tc.mod(&m)
			err := m.Validate()
			if tc.expectErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.expectErr) {
				t.Fatalf("unexpected error, expected %v, received %v", tc.expectErr, err)
			}
			if !strings.Contains(err.Error(), tc.errField) {
				t.Errorf("error does not name the field %s: %v", tc.errField, err)
			}
		})
	}
}

func TestDescriptorValidate(t *testing.T) {
	t.Parallel()
	dig := digest.FromString("A")
	tt := []struct {
		name      string
		d         Descriptor
		expectErr error
	}{
		{
			name: "valid",
			d:    Descriptor{MediaType: MediaTypeOCI1Manifest, Digest: dig, Size: 1},
		},
		{
			name:      "missing media type",
			d:         Descriptor{Digest: dig, Size: 1},
			expectErr: ErrManifestInvalid,
		},
		{
			name:      "bad digest",
			d:         Descriptor{MediaType: MediaTypeOCI1Manifest, Digest: "sha256:bad", Size: 1},
			expectErr: ErrManifestInvalid,
		},
		{
			name:      "negative size",
			d:         Descriptor{MediaType: MediaTypeOCI1Manifest, Digest: dig, Size: -1},
			expectErr: ErrManifestInvalid,
		},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.d.Validate()
			if tc.expectErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.expectErr != nil && !errors.Is(err, tc.expectErr) {
				t.Fatalf("unexpected error, expected %v, received %v", tc.expectErr, err)
			}
		})
	}
}

func TestManifestJSON(t *testing.T) {
	t.Parallel()
	digA := digest.FromString("A")
	digSubj := digest.FromString("subject")
	m := Manifest{
		SchemaVersion: 2,
		MediaType:     MediaTypeOCI1Manifest,
		ArtifactType:  ArtifactTypeDefault,
		Config:        DescriptorEmptyJSON(),
		Layers:        []Descriptor{},
	}
	raw, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"layers":[]`) {
		t.Errorf("layers should marshal as an empty array: %s", raw)
	}
	if strings.Contains(string(raw), `"subject"`) {
		t.Errorf("subject should be omitted: %s", raw)
	}
	m.Layers = []Descriptor{{MediaType: MediaTypeItem, Digest: digA, Size: 1, Annotations: map[string]string{AnnotTitle: "A.abi"}}}
	m.Subject = &Descriptor{MediaType: MediaTypeOCI1Manifest, Digest: digSubj, Size: 7}
	raw, err = json.Marshal(m)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	var parsed Manifest
	err = json.Unmarshal(raw, &parsed)
	if err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if !parsed.Config.Equal(m.Config) || len(parsed.Layers) != 1 || !parsed.Layers[0].Equal(m.Layers[0]) {
		t.Errorf("round trip mismatch, expected %v, received %v", m, parsed)
	}
	if parsed.Subject == nil || !parsed.Subject.Equal(*m.Subject) {
		t.Errorf("subject mismatch, expected %v, received %v", m.Subject, parsed.Subject)
	}
}

func TestManifestCopy(t *testing.T) {
	t.Parallel()
	m := Manifest{
		SchemaVersion: 2,
		MediaType:     MediaTypeOCI1Manifest,
		Config:        DescriptorEmptyJSON(),
		Layers:        []Descriptor{{MediaType: MediaTypeItem, Digest: digest.FromString("A"), Size: 1, Annotations: map[string]string{AnnotTitle: "A"}}},
		Subject:       &Descriptor{MediaType: MediaTypeOCI1Manifest, Digest: digest.FromString("S"), Size: 1},
		Annotations:   map[string]string{"k": "v"},
	}
	m2 := m.Copy()
	m2.Layers[0].Annotations[AnnotTitle] = "changed"
	m2.Subject.Size = 99
	m2.Annotations["k"] = "changed"
	if m.Layers[0].Annotations[AnnotTitle] != "A" || m.Subject.Size != 1 || m.Annotations["k"] != "v" {
		t.Errorf("copy shares memory with the original: %v", m)
	}
}

func TestIndex(t *testing.T) {
	t.Parallel()
	digA := digest.FromString("A")
	digB := digest.FromString("B")
	descA := Descriptor{MediaType: MediaTypeOCI1Manifest, Digest: digA, Size: 1}
	descATag := Descriptor{MediaType: MediaTypeOCI1Manifest, Digest: digA, Size: 1, Annotations: map[string]string{AnnotRefName: "v1"}}
	descBTag := Descriptor{MediaType: MediaTypeOCI1Manifest, Digest: digB, Size: 1, Annotations: map[string]string{AnnotRefName: "v1"}}

	t.Run("add untagged", func(t *testing.T) {
		i := Index{SchemaVersion: 2, Manifests: []Descriptor{}}
		i.AddDesc(descA)
		i.AddDesc(descA)
		if len(i.Manifests) != 1 {
			t.Errorf("expected 1 entry, received %d", len(i.Manifests))
		}
	})
	t.Run("tag replaces untagged", func(t *testing.T) {
		i := Index{SchemaVersion: 2, Manifests: []Descriptor{descA}}
		i.AddDesc(descATag)
		if len(i.Manifests) != 1 || i.Manifests[0].Annotations[AnnotRefName] != "v1" {
			t.Errorf("unexpected manifests: %v", i.Manifests)
		}
	})
	t.Run("retag", func(t *testing.T) {
		i := Index{SchemaVersion: 2, Manifests: []Descriptor{descATag}}
		i.AddDesc(descBTag)
		if len(i.Manifests) != 1 || i.Manifests[0].Digest != digB {
			t.Errorf("unexpected manifests: %v", i.Manifests)
		}
		d, err := i.GetDesc("v1")
		if err != nil {
			t.Fatalf("failed to get tag: %v", err)
		}
		if d.Digest != digB {
			t.Errorf("unexpected digest for tag, expected %s, received %s", digB, d.Digest)
		}
	})
	t.Run("get", func(t *testing.T) {
		i := Index{SchemaVersion: 2, Manifests: []Descriptor{descATag}}
		d, err := i.GetDesc(digA.String())
		if err != nil || d.Digest != digA {
			t.Errorf("failed to get by digest: %v, %v", d, err)
		}
		_, err = i.GetDesc("missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("unexpected error, expected %v, received %v", ErrNotFound, err)
		}
		_, err = i.GetDesc("sha256:abc")
		if err == nil {
			t.Errorf("invalid digest did not fail")
		}
	})
	t.Run("rm", func(t *testing.T) {
		i := Index{SchemaVersion: 2, Manifests: []Descriptor{descATag, descA, descBTag}}
		i.RmDesc(descATag)
		if len(i.Manifests) != 2 {
			t.Errorf("expected 2 entries, received %v", i.Manifests)
		}
		i.RmDesc(descA)
		if len(i.Manifests) != 1 || i.Manifests[0].Digest != digB {
			t.Errorf("unexpected manifests: %v", i.Manifests)
		}
	})
}
