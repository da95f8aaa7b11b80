package store

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/opencontainers/go-digest"

	"github.com/ocipack/ocipack/config"
	"github.com/ocipack/ocipack/types"
)

type mem struct {
	mu    sync.Mutex
	repos map[string]*memRepo
	log   *slog.Logger
}

type memRepo struct {
	mu    sync.Mutex
	name  string
	index types.Index
	blobs map[digest.Digest][]byte
	log   *slog.Logger
}

type memRepoUpload struct {
	buffer *bytes.Buffer
	w      io.Writer
	d      digest.Digester
	expect digest.Digest
	mr     *memRepo
}

// NewMem returns a store that only holds content in memory.
func NewMem(conf config.Config, opts ...Opts) Store {
	sc := newStoreConf(opts...)
	return &mem{
		repos: map[string]*memRepo{},
		log:   sc.log,
	}
}

func (m *mem) RepoGet(repoStr string) (Repo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.repos == nil {
		return nil, fmt.Errorf("store is closed")
	}
	if mr, ok := m.repos[repoStr]; ok {
		return mr, nil
	}
	mr := &memRepo{
		name:  repoStr,
		index: newIndex(),
		blobs: map[digest.Digest][]byte{},
		log:   m.log,
	}
	m.repos[repoStr] = mr
	return mr, nil
}

func (m *mem) Close() error {
	// mem is unusable after close, reset the repos to free memory
	m.mu.Lock()
	m.repos = nil
	m.mu.Unlock()
	return nil
}

// IndexGet returns the current top level index for a repo.
func (mr *memRepo) IndexGet() (types.Index, error) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	return mr.index.Copy(), nil
}

// IndexAdd adds a new entry to the index.
func (mr *memRepo) IndexAdd(desc types.Descriptor) error {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.index.AddDesc(desc.Copy())
	mr.log.Debug("index updated", "repo", mr.name, "digest", desc.Digest.String())
	return nil
}

// BlobGet returns a reader to an entry from the CAS.
func (mr *memRepo) BlobGet(d digest.Digest) (io.ReadSeekCloser, error) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	b, ok := mr.blobs[d]
	if !ok {
		return nil, fmt.Errorf("failed to load digest %s: %w", d.String(), types.ErrNotFound)
	}
	return types.BytesReadCloser{Reader: bytes.NewReader(b)}, nil
}

// BlobCreate is used to create a new blob.
func (mr *memRepo) BlobCreate(opts ...BlobOpt) (BlobCreator, error) {
	conf, err := newBlobConfig(opts...)
	if err != nil {
		return nil, err
	}
	buffer := &bytes.Buffer{}
	d := conf.algo.Digester()
	return &memRepoUpload{
		buffer: buffer,
		w:      io.MultiWriter(buffer, d.Hash()),
		d:      d,
		expect: conf.expect,
		mr:     mr,
	}, nil
}

// Write sends data to the buffer.
func (mru *memRepoUpload) Write(p []byte) (int, error) {
	if mru.w == nil {
		return 0, fmt.Errorf("writer is closed")
	}
	return mru.w.Write(p)
}

func (mru *memRepoUpload) Close() error {
	if mru.w == nil {
		return fmt.Errorf("writer is closed")
	}
	mru.w = nil
	if mru.expect != "" && mru.d.Digest() != mru.expect {
		return fmt.Errorf("digest mismatch, expected %s, received %s%.0w", mru.expect, mru.d.Digest(), types.ErrDigestInvalid)
	}
	// relocate []byte to in memory blob store
	mru.mr.mu.Lock()
	mru.mr.blobs[mru.d.Digest()] = mru.buffer.Bytes()
	mru.mr.mu.Unlock()
	mru.mr.log.Debug("blob written", "digest", mru.d.Digest().String(), "size", mru.buffer.Len())
	return nil
}

// Cancel is used to stop an upload.
func (mru *memRepoUpload) Cancel() {
	mru.w = nil
	mru.buffer.Reset()
}

// Size reports the number of bytes pushed.
func (mru *memRepoUpload) Size() int64 {
	return int64(mru.buffer.Len())
}

// Digest is used to get the current digest of the content.
func (mru *memRepoUpload) Digest() digest.Digest {
	return mru.d.Digest()
}

// Verify ensures a digest matches the content.
func (mru *memRepoUpload) Verify(expect digest.Digest) error {
	if mru.d.Digest() != expect {
		return fmt.Errorf("digest mismatch, expected %s, received %s%.0w", expect, mru.d.Digest(), types.ErrDigestInvalid)
	}
	return nil
}
