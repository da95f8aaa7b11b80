package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-git/gcfg"

	"github.com/ocipack/ocipack"
	"github.com/ocipack/ocipack/types"
)

// GitmodulesFile is the name of the submodule descriptor in the root of a working tree.
const GitmodulesFile = ".gitmodules"

// Format selects the encoding of a submodule record.
type Format int

const (
	FormatUndef Format = iota // undefined format is the invalid zero value
	FormatJSON                // FormatJSON encodes records as compact JSON
	FormatCBOR                // FormatCBOR encodes records with deterministic CBOR
)

// Submodule describes one entry of a .gitmodules file and the commit pinned in HEAD.
type Submodule struct {
	Name   string `json:"name" cbor:"name"`
	Path   string `json:"path" cbor:"path"`
	URL    string `json:"url" cbor:"url"`
	Commit string `json:"commit" cbor:"commit"`
	Branch string `json:"branch,omitempty" cbor:"branch,omitempty"`
}

var cborEnc cbor.EncMode

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("source: CBOR encoder initialization failed: " + err.Error())
	}
}

// ParseGitmodules reads the submodule sections of a git config formatted file.
// Submodules are returned in file order, unknown keys are ignored.
func ParseGitmodules(r io.Reader) ([]Submodule, error) {
	subs := []Submodule{}
	pos := map[string]int{}
	err := gcfg.ReadWithCallback(r, func(section, subsection, key, value string, blank bool) error {
		if !strings.EqualFold(section, "submodule") || subsection == "" {
			return nil
		}
		i, ok := pos[subsection]
		if !ok {
			i = len(subs)
			pos[subsection] = i
			subs = append(subs, Submodule{Name: subsection})
		}
		switch strings.ToLower(key) {
		case "path":
			subs[i].Path = value
		case "url":
			subs[i].URL = value
		case "branch":
			subs[i].Branch = value
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", GitmodulesFile, err)
	}
	for _, s := range subs {
		if s.Path == "" {
			return nil, fmt.Errorf("submodule %q has no path", s.Name)
		}
	}
	return subs, nil
}

// Submodules parses the .gitmodules of the repository and resolves the commit of each entry.
func (r *Repository) Submodules(ctx context.Context) ([]Submodule, error) {
	//#nosec G304 the repository directory is provided by the user.
	fh, err := os.Open(filepath.Join(r.dir, GitmodulesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no %s in %s%.0w", GitmodulesFile, r.dir, types.ErrNotFound)
		}
		return nil, err
	}
	defer fh.Close()
	subs, err := ParseGitmodules(fh)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		commit, err := r.Commit(ctx, subs[i].Path)
		if err != nil {
			return nil, fmt.Errorf("submodule %s: %w", subs[i].Name, err)
		}
		subs[i].Commit = commit
	}
	return subs, nil
}

// Encode serializes the record in the requested format.
func (s Submodule) Encode(f Format) ([]byte, error) {
	switch f {
	case FormatJSON, FormatUndef:
		return json.Marshal(s)
	case FormatCBOR:
		return cborEnc.Marshal(s)
	}
	return nil, fmt.Errorf("unknown record format %d", int(f))
}

// SubmodulePayloads encodes each submodule as its own payload, named after the submodule.
func SubmodulePayloads(subs []Submodule, f Format) ([]ocipack.Payload, error) {
	if len(subs) == 0 {
		return nil, fmt.Errorf("no submodules found%.0w", types.ErrEmptyInput)
	}
	payloads := make([]ocipack.Payload, 0, len(subs))
	for _, s := range subs {
		b, err := s.Encode(f)
		if err != nil {
			return nil, fmt.Errorf("failed to encode submodule %s: %w", s.Name, err)
		}
		payloads = append(payloads, ocipack.Payload{Name: s.Name, Data: b})
	}
	return payloads, nil
}

// MediaType returns the media type of a record in this format.
func (f Format) MediaType() string {
	if f == FormatCBOR {
		return types.MediaTypeSubmoduleCBOR
	}
	return types.MediaTypeSubmoduleJSON
}

func (f Format) MarshalText() ([]byte, error) {
	var ret string
	switch f {
	case FormatJSON:
		ret = "json"
	case FormatCBOR:
		ret = "cbor"
	}
	if ret == "" {
		return []byte{}, fmt.Errorf("unknown format value %d", int(f))
	}
	return []byte(ret), nil
}

func (f *Format) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	default:
		return fmt.Errorf("unknown format value \"%s\"", b)
	case "json":
		*f = FormatJSON
	case "cbor":
		*f = FormatCBOR
	}
	return nil
}
