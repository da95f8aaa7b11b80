// Package ocipack builds content addressed OCI artifact manifests from a set of named payloads.
package ocipack

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/ocipack/ocipack/bundle"
	"github.com/ocipack/ocipack/content"
	"github.com/ocipack/ocipack/types"
)

// Payload is a named blob to include in the artifact.
type Payload struct {
	Name string
	Data []byte
}

// Blob is the content behind a descriptor in the manifest.
type Blob struct {
	Descriptor types.Descriptor
	Data       []byte
}

// Artifact is the result of [Build]: the manifest and every blob it references.
type Artifact struct {
	Manifest types.Manifest
	// Blobs are unique by digest, in the order they are first referenced (config, then layers).
	Blobs []Blob
}

// Raw returns the serialized manifest.
// The descriptor from [Artifact.Descriptor] is computed over these exact bytes.
func (a Artifact) Raw() ([]byte, error) {
	return json.MarshalIndent(a.Manifest, "", "  ")
}

// Descriptor returns the descriptor of the serialized manifest.
func (a Artifact) Descriptor() (types.Descriptor, error) {
	raw, err := a.Raw()
	if err != nil {
		return types.Descriptor{}, err
	}
	d := content.AddressMediaType(raw, a.Manifest.MediaType)
	d.ArtifactType = a.Manifest.ArtifactType
	return d, nil
}

// Blob returns the blob for a digest.
func (a Artifact) Blob(d digest.Digest) (Blob, bool) {
	for _, b := range a.Blobs {
		if b.Descriptor.Digest == d {
			return b, true
		}
	}
	return Blob{}, false
}

// Build packages the payloads into an artifact using the selected strategy.
// Payload order is preserved in the resulting layers and bundles.
// No artifact is returned on error.
func Build(ctx context.Context, s Strategy, payloads []Payload, opts ...Opt) (Artifact, error) {
	c := newConf(opts...)
	if _, err := s.MarshalText(); err != nil {
		return Artifact{}, err
	}
	if len(payloads) == 0 {
		return Artifact{}, fmt.Errorf("strategy %s: no payloads to package%.0w", s, types.ErrEmptyInput)
	}
	var art Artifact
	var err error
	switch s {
	case StrategySingleLayer, StrategyConfig, StrategyPerItem:
		art, err = buildBase(ctx, s, payloads, c)
	case StrategySubject:
		art, err = buildSubject(ctx, payloads, c)
	}
	if err != nil {
		return Artifact{}, err
	}
	if err := art.Manifest.Validate(); err != nil {
		// every field is set above, a failure here is a bug in the builder
		panic(fmt.Sprintf("ocipack: strategy %s built an invalid manifest: %v", s, err))
	}
	c.log.Debug("manifest built",
		"strategy", s.String(),
		"artifactType", art.Manifest.ArtifactType,
		"config", art.Manifest.Config.Digest.String(),
		"layers", len(art.Manifest.Layers),
		"blobs", len(art.Blobs))
	return art, nil
}

func buildSubject(ctx context.Context, payloads []Payload, c conf) (Artifact, error) {
	if c.subject == nil {
		return Artifact{}, fmt.Errorf("strategy %s: a subject descriptor is required%.0w", StrategySubject, types.ErrMissingSubject)
	}
	switch c.base {
	case StrategySingleLayer, StrategyConfig, StrategyPerItem:
	default:
		return Artifact{}, fmt.Errorf("strategy %s: base strategy %s cannot be wrapped%.0w", StrategySubject, c.base, types.ErrStrategyInvalid)
	}
	if err := c.subject.Validate(); err != nil {
		return Artifact{}, fmt.Errorf("strategy %s: subject: %w", StrategySubject, err)
	}
	art, err := buildBase(ctx, c.base, payloads, c)
	if err != nil {
		return Artifact{}, err
	}
	return attachSubject(art, *c.subject), nil
}

// attachSubject links a finished artifact to a subject without altering config or layers.
func attachSubject(art Artifact, subject types.Descriptor) Artifact {
	s := subject.Copy()
	art.Manifest.Subject = &s
	return art
}

func buildBase(ctx context.Context, s Strategy, payloads []Payload, c conf) (Artifact, error) {
	m := types.Manifest{
		SchemaVersion: 2,
		MediaType:     types.MediaTypeOCI1Manifest,
		ArtifactType:  c.artifactType,
		Layers:        []types.Descriptor{},
	}
	if len(c.annotations) > 0 {
		m.Annotations = make(map[string]string, len(c.annotations))
		for k, v := range c.annotations {
			m.Annotations[k] = v
		}
	}
	blobs := []Blob{}
	switch s {
	case StrategySingleLayer, StrategyConfig:
		bundleBlob, err := buildBundle(payloads, c)
		if err != nil {
			return Artifact{}, fmt.Errorf("strategy %s: %w", s, err)
		}
		if s == StrategySingleLayer {
			m.Config = types.DescriptorEmptyJSON()
			m.Layers = append(m.Layers, bundleBlob.Descriptor.Copy())
			blobs = append(blobs, emptyBlob(), bundleBlob)
		} else {
			m.Config = bundleBlob.Descriptor.Copy()
			blobs = append(blobs, bundleBlob)
		}
	case StrategyPerItem:
		layers, err := addressItems(ctx, payloads, c)
		if err != nil {
			return Artifact{}, fmt.Errorf("strategy %s: %w", s, err)
		}
		m.Config = types.DescriptorEmptyJSON()
		m.Layers = layers
		blobs = append(blobs, emptyBlob())
		for i, l := range layers {
			blobs = append(blobs, Blob{Descriptor: l, Data: payloads[i].Data})
		}
	default:
		return Artifact{}, fmt.Errorf("strategy %s is not a base strategy%.0w", s, types.ErrStrategyInvalid)
	}
	return Artifact{Manifest: m, Blobs: uniqueBlobs(blobs)}, nil
}

func buildBundle(payloads []Payload, c conf) (Blob, error) {
	entries := make([]bundle.Entry, len(payloads))
	for i, p := range payloads {
		entries[i] = bundle.Entry{Name: p.Name, Data: p.Data}
	}
	raw, err := c.bundler.Bundle(entries)
	if err != nil {
		return Blob{}, fmt.Errorf("failed to bundle %d payloads: %w", len(payloads), err)
	}
	if c.bundler.MediaType() == "" {
		return Blob{}, fmt.Errorf("bundler returned an empty media type%.0w", types.ErrManifestInvalid)
	}
	return Blob{
		Descriptor: content.AddressMediaType(raw, c.bundler.MediaType()),
		Data:       raw,
	}, nil
}

// addressItems digests each payload in parallel, the result is indexed by input position.
func addressItems(ctx context.Context, payloads []Payload, c conf) ([]types.Descriptor, error) {
	layers := make([]types.Descriptor, len(payloads))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, p := range payloads {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d := content.AddressMediaType(p.Data, c.itemMediaType)
			d.Annotations = map[string]string{
				types.AnnotTitle: p.Name,
			}
			layers[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return layers, nil
}

func emptyBlob() Blob {
	return Blob{
		Descriptor: types.DescriptorEmptyJSON(),
		Data:       []byte(types.EmptyJSON),
	}
}

func uniqueBlobs(blobs []Blob) []Blob {
	seen := map[digest.Digest]bool{}
	ret := make([]Blob, 0, len(blobs))
	for _, b := range blobs {
		if seen[b.Descriptor.Digest] {
			continue
		}
		seen[b.Descriptor.Digest] = true
		ret = append(ret, b)
	}
	return ret
}
