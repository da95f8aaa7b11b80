// Package store is used to write artifacts to different types of storage (memory, disk)
package store

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/opencontainers/go-digest"

	"github.com/ocipack/ocipack"
	"github.com/ocipack/ocipack/config"
	"github.com/ocipack/ocipack/types"
)

type Store interface {
	// RepoGet returns a repo from the store. An empty string is the root of the store.
	RepoGet(repoStr string) (Repo, error)
	// Close releases the store, it is unusable afterwards.
	Close() error
}

type Repo interface {
	// IndexGet returns the current top level index for a repo.
	IndexGet() (types.Index, error)
	// IndexAdd adds a new entry to the index.
	IndexAdd(desc types.Descriptor) error
	// BlobGet returns a reader to an entry from the CAS.
	BlobGet(d digest.Digest) (io.ReadSeekCloser, error)
	// BlobCreate is used to create a new blob.
	BlobCreate(opts ...BlobOpt) (BlobCreator, error)
}

// BlobCreator is used to upload new blobs.
type BlobCreator interface {
	// WriteCloser is used to push the blob content.
	// Close verifies the digest when one was provided and moves the content into the CAS.
	io.WriteCloser
	// Cancel is used to stop an upload.
	Cancel()
	// Size reports the number of bytes pushed.
	Size() int64
	// Digest is used to get the current digest of the content.
	Digest() digest.Digest
	// Verify ensures a digest matches the content.
	Verify(digest.Digest) error
}

type blobConfig struct {
	algo   digest.Algorithm
	expect digest.Digest
}

type BlobOpt func(*blobConfig)

// BlobWithAlgorithm indicates which algorithm to use to generate the digest.
func BlobWithAlgorithm(a digest.Algorithm) BlobOpt {
	return func(bc *blobConfig) {
		bc.algo = a
	}
}

// BlobWithDigest indicates the expected digest of the blob.
// Close fails when the content does not match.
func BlobWithDigest(d digest.Digest) BlobOpt {
	return func(bc *blobConfig) {
		bc.expect = d
		if d != "" {
			bc.algo = d.Algorithm()
		}
	}
}

func newBlobConfig(opts ...BlobOpt) (blobConfig, error) {
	conf := blobConfig{
		algo: digest.Canonical,
	}
	for _, opt := range opts {
		opt(&conf)
	}
	if !conf.algo.Available() {
		return conf, fmt.Errorf("digest algorithm %s is not available%.0w", conf.algo, types.ErrDigestInvalid)
	}
	return conf, nil
}

type storeConf struct {
	log *slog.Logger
}

type Opts func(*storeConf)

// WithLog includes a logger on the store.
func WithLog(log *slog.Logger) Opts {
	return func(sc *storeConf) {
		sc.log = log
	}
}

func newStoreConf(opts ...Opts) storeConf {
	sc := storeConf{}
	for _, opt := range opts {
		opt(&sc)
	}
	if sc.log == nil {
		sc.log = slog.New(slog.DiscardHandler)
	}
	return sc
}

// New returns the store selected by the config.
func New(conf config.Config, opts ...Opts) (Store, error) {
	switch conf.Storage.StoreType {
	case config.StoreDir:
		return NewDir(conf, opts...), nil
	case config.StoreMem:
		return NewMem(conf, opts...), nil
	}
	return nil, fmt.Errorf("unsupported store type %d", int(conf.Storage.StoreType))
}

// Put pushes a blob into the repo, verifying the size and digest of the content.
// Blobs that already exist are left as is.
func Put(repo Repo, desc types.Descriptor, raw []byte) error {
	if int64(len(raw)) != desc.Size {
		return fmt.Errorf("blob %s has size %d, expected %d%.0w", desc.Digest, len(raw), desc.Size, types.ErrSizeInvalid)
	}
	if rdr, err := repo.BlobGet(desc.Digest); err == nil {
		_ = rdr.Close()
		return nil
	}
	bc, err := repo.BlobCreate(BlobWithDigest(desc.Digest))
	if err != nil {
		return err
	}
	if _, err := bc.Write(raw); err != nil {
		bc.Cancel()
		return fmt.Errorf("failed to write blob %s: %w", desc.Digest, err)
	}
	if err := bc.Verify(desc.Digest); err != nil {
		bc.Cancel()
		return err
	}
	return bc.Close()
}

// PutArtifact pushes every blob and the manifest of an artifact, then adds the manifest to the index.
// The manifest is tagged when tag is not empty.
func PutArtifact(repo Repo, art ocipack.Artifact, tag string) (types.Descriptor, error) {
	for _, blob := range art.Blobs {
		if err := Put(repo, blob.Descriptor, blob.Data); err != nil {
			return types.Descriptor{}, err
		}
	}
	raw, err := art.Raw()
	if err != nil {
		return types.Descriptor{}, err
	}
	desc, err := art.Descriptor()
	if err != nil {
		return types.Descriptor{}, err
	}
	if err := Put(repo, desc, raw); err != nil {
		return types.Descriptor{}, err
	}
	if tag != "" {
		if !types.RefTagRE.MatchString(tag) {
			return types.Descriptor{}, fmt.Errorf("invalid tag %q", tag)
		}
		desc.Annotations = map[string]string{types.AnnotRefName: tag}
	}
	if err := repo.IndexAdd(desc); err != nil {
		return types.Descriptor{}, err
	}
	return desc, nil
}
