package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/opencontainers/go-digest"

	"github.com/ocipack/ocipack/config"
	"github.com/ocipack/ocipack/types"
)

const (
	indexFile  = "index.json"
	layoutFile = "oci-layout"
	blobsDir   = "blobs"
	uploadDir  = "_uploads"
)

type dir struct {
	mu    sync.Mutex
	root  string
	repos map[string]*dirRepo
	log   *slog.Logger
}

type dirRepo struct {
	mu     sync.Mutex
	name   string
	path   string
	exists bool
	index  types.Index
	log    *slog.Logger
}

type dirRepoUpload struct {
	fh       *os.File
	w        io.Writer
	size     int64
	d        digest.Digester
	expect   digest.Digest
	path     string
	filename string
	log      *slog.Logger
}

// NewDir returns a directory store writing an OCI Layout per repo under the configured root.
func NewDir(conf config.Config, opts ...Opts) Store {
	sc := newStoreConf(opts...)
	root := conf.Storage.RootDir
	if root == "" {
		root = "."
	}
	return &dir{
		root:  root,
		repos: map[string]*dirRepo{},
		log:   sc.log,
	}
}

func (d *dir) RepoGet(repoStr string) (Repo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.repos == nil {
		return nil, fmt.Errorf("store is closed")
	}
	if dr, ok := d.repos[repoStr]; ok {
		return dr, nil
	}
	if repoStr != "" && stringsHasAny(strings.Split(repoStr, "/"), indexFile, layoutFile, blobsDir, uploadDir, "..", ".") {
		return nil, fmt.Errorf("repo %s cannot contain %s, %s, %s, or relative paths%.0w", repoStr, indexFile, layoutFile, blobsDir, types.ErrRepoNotAllowed)
	}
	dr := &dirRepo{
		path:  filepath.Join(d.root, filepath.FromSlash(repoStr)),
		name:  repoStr,
		log:   d.log,
		index: newIndex(),
	}
	statDir, err := os.Stat(dr.path)
	if err == nil && statDir.IsDir() {
		statIndex, errIndex := os.Stat(filepath.Join(dr.path, indexFile))
		if errIndex == nil && !statIndex.IsDir() && verifyLayout(filepath.Join(dr.path, layoutFile)) {
			dr.exists = true
			if err := dr.repoLoad(); err != nil {
				return nil, err
			}
		}
	}
	d.repos[repoStr] = dr
	return dr, nil
}

func (d *dir) Close() error {
	d.mu.Lock()
	d.repos = nil
	d.mu.Unlock()
	return nil
}

// IndexGet returns the current top level index for a repo.
func (dr *dirRepo) IndexGet() (types.Index, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	return dr.index.Copy(), nil
}

// IndexAdd adds a new entry to the index and writes the change to index.json.
func (dr *dirRepo) IndexAdd(desc types.Descriptor) error {
	if err := dr.repoInit(); err != nil {
		return err
	}
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.index.AddDesc(desc.Copy())
	dr.log.Debug("index updated", "repo", dr.name, "digest", desc.Digest.String())
	return dr.repoSave()
}

// BlobGet returns a reader to an entry from the CAS.
func (dr *dirRepo) BlobGet(d digest.Digest) (io.ReadSeekCloser, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid digest %s: %v%.0w", d.String(), err, types.ErrDigestInvalid)
	}
	fh, err := os.Open(filepath.Join(dr.path, blobsDir, d.Algorithm().String(), d.Encoded()))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load digest %s: %w", d.String(), types.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load digest %s: %w", d.String(), err)
	}
	return fh, nil
}

// BlobCreate is used to create a new blob.
func (dr *dirRepo) BlobCreate(opts ...BlobOpt) (BlobCreator, error) {
	conf, err := newBlobConfig(opts...)
	if err != nil {
		return nil, err
	}
	if err := dr.repoInit(); err != nil {
		return nil, err
	}
	// create a temp file in the repo blob store, under an upload folder
	tmpDir := filepath.Join(dr.path, uploadDir)
	//#nosec G301 directory permissions are intentionally world readable.
	err = os.MkdirAll(tmpDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", tmpDir, err)
	}
	tf, err := os.CreateTemp(tmpDir, "upload.*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file in %s: %w", tmpDir, err)
	}
	// start a new digester with the appropriate algo
	d := conf.algo.Digester()
	return &dirRepoUpload{
		fh:       tf,
		w:        io.MultiWriter(tf, d.Hash()),
		d:        d,
		expect:   conf.expect,
		path:     dr.path,
		filename: tf.Name(),
		log:      dr.log,
	}, nil
}

// repoInit creates the layout files when they are missing, existing content is never overwritten.
func (dr *dirRepo) repoInit() error {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	if dr.exists {
		return nil
	}
	fi, err := os.Stat(dr.path)
	if err == nil && !fi.IsDir() {
		return fmt.Errorf("repo %s is not a directory", dr.path)
	}
	if err != nil {
		//#nosec G301 directory permissions are intentionally world readable.
		err = os.MkdirAll(dr.path, 0755)
		if err != nil {
			return fmt.Errorf("failed to create repo directory %s: %w", dr.path, err)
		}
	}
	indexName := filepath.Join(dr.path, indexFile)
	fi, err = os.Stat(indexName)
	if err == nil && fi.IsDir() {
		return fmt.Errorf("index.json is a directory: %s", indexName)
	}
	if err != nil {
		dr.index = newIndex()
		if err := dr.repoSave(); err != nil {
			return err
		}
	} else if err := dr.repoLoad(); err != nil {
		return err
	}
	layoutName := filepath.Join(dr.path, layoutFile)
	if !verifyLayout(layoutName) {
		lJSON, err := json.Marshal(types.Layout{Version: types.LayoutVersion})
		if err != nil {
			return err
		}
		//#nosec G306 file permissions are intentionally world readable.
		err = os.WriteFile(layoutName, lJSON, 0644)
		if err != nil {
			return err
		}
	}
	dr.log.Debug("layout initialized", "path", dr.path)
	dr.exists = true
	return nil
}

func (dr *dirRepo) repoLoad() error {
	//#nosec G304 internal method is only called with filenames within the configured root.
	fh, err := os.Open(filepath.Join(dr.path, indexFile))
	if err != nil {
		return err
	}
	defer fh.Close()
	i := types.Index{}
	if err := json.NewDecoder(fh).Decode(&i); err != nil {
		return fmt.Errorf("failed to parse %s in %s: %w", indexFile, dr.path, err)
	}
	if i.Manifests == nil {
		i.Manifests = []types.Descriptor{}
	}
	dr.index = i
	return nil
}

// repoSave writes index.json with a temp file and rename, the caller must hold the lock.
func (dr *dirRepo) repoSave() error {
	fh, err := os.CreateTemp(dr.path, "index.json.*")
	if err != nil {
		return err
	}
	err = json.NewEncoder(fh).Encode(dr.index)
	if err != nil {
		_ = fh.Close()
		_ = os.Remove(fh.Name())
		return err
	}
	err = fh.Close()
	if err != nil {
		_ = os.Remove(fh.Name())
		return err
	}
	err = os.Rename(fh.Name(), filepath.Join(dr.path, indexFile))
	if err != nil {
		_ = os.Remove(fh.Name())
		return err
	}
	return nil
}

// Write is used to push content into the blob.
func (dru *dirRepoUpload) Write(p []byte) (int, error) {
	if dru.w == nil {
		return 0, fmt.Errorf("writer is closed")
	}
	n, err := dru.w.Write(p)
	dru.size += int64(n)
	return n, err
}

// Close finishes an upload, verifying digest if requested, and moves it into the blob store.
func (dru *dirRepoUpload) Close() error {
	if dru.w == nil {
		return fmt.Errorf("writer is closed")
	}
	dru.w = nil
	err := dru.fh.Close()
	if err != nil {
		_ = os.Remove(dru.filename)
		return err
	}
	if dru.expect != "" && dru.d.Digest() != dru.expect {
		_ = os.Remove(dru.filename)
		return fmt.Errorf("digest mismatch, expected %s, received %s%.0w", dru.expect, dru.d.Digest(), types.ErrDigestInvalid)
	}
	// move temp file to blob store
	tgtDir := filepath.Join(dru.path, blobsDir, dru.d.Digest().Algorithm().String())
	//#nosec G301 directory permissions are intentionally world readable.
	err = os.MkdirAll(tgtDir, 0755)
	if err != nil {
		_ = os.Remove(dru.filename)
		return fmt.Errorf("unable to create blob storage directory %s: %w", tgtDir, err)
	}
	blobName := filepath.Join(tgtDir, dru.d.Digest().Encoded())
	err = os.Rename(dru.filename, blobName)
	if err != nil {
		_ = os.Remove(dru.filename)
		return err
	}
	// the upload dir is only removed once empty
	_ = os.Remove(filepath.Dir(dru.filename))
	dru.log.Debug("blob written", "digest", dru.d.Digest().String(), "size", dru.size)
	return nil
}

// Cancel is used to stop an upload.
func (dru *dirRepoUpload) Cancel() {
	dru.w = nil
	if dru.fh != nil {
		_ = dru.fh.Close()
	}
	_ = os.Remove(dru.filename)
	_ = os.Remove(filepath.Dir(dru.filename))
}

// Size reports the number of bytes pushed.
func (dru *dirRepoUpload) Size() int64 {
	return dru.size
}

// Digest is used to get the current digest of the content.
func (dru *dirRepoUpload) Digest() digest.Digest {
	return dru.d.Digest()
}

// Verify ensures a digest matches the content.
func (dru *dirRepoUpload) Verify(expect digest.Digest) error {
	if dru.d.Digest() != expect {
		return fmt.Errorf("digest mismatch, expected %s, received %s%.0w", expect, dru.d.Digest(), types.ErrDigestInvalid)
	}
	return nil
}

func newIndex() types.Index {
	return types.Index{
		SchemaVersion: 2,
		MediaType:     types.MediaTypeOCI1ManifestList,
		Manifests:     []types.Descriptor{},
	}
}

func stringsHasAny(list []string, check ...string) bool {
	for _, l := range list {
		for _, c := range check {
			if l == c {
				return true
			}
		}
	}
	return false
}

func verifyLayout(filename string) bool {
	//#nosec G304 internal method is only called with filenames within the configured root.
	b, err := os.ReadFile(filename)
	if err != nil {
		return false
	}
	l := types.Layout{}
	err = json.Unmarshal(b, &l)
	if err != nil {
		return false
	}
	return l.Version == types.LayoutVersion
}
