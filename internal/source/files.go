// Package source gathers the payloads that are packaged into an artifact.
package source

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ocipack/ocipack"
	"github.com/ocipack/ocipack/types"
)

// File is a qualifying source file.
type File struct {
	// Name is the path relative to the listed directory, using forward slashes.
	Name string
	// Path is the absolute path to the file.
	Path string
}

// ListFiles returns the regular files in dir with one of the extensions, sorted by name.
// An empty extension list matches every file.
// Hidden directories are skipped when recursing.
func ListFiles(dir string, exts []string, recursive bool) ([]File, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	fi, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read source directory %s: %w", dir, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", dir)
	}
	files := []File{}
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p == root {
				return nil
			}
			if !recursive || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !matchExt(d.Name(), exts) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, File{Name: filepath.ToSlash(rel), Path: p})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})
	return files, nil
}

// ReadPayloads loads the content of each file, preserving order.
func ReadPayloads(files []File) ([]ocipack.Payload, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no source files found%.0w", types.ErrEmptyInput)
	}
	payloads := make([]ocipack.Payload, 0, len(files))
	for _, f := range files {
		//#nosec G304 paths come from the listing of a user provided directory.
		b, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Path, err)
		}
		payloads = append(payloads, ocipack.Payload{Name: f.Name, Data: b})
	}
	return payloads, nil
}

func matchExt(name string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if ext == e {
			return true
		}
	}
	return false
}
