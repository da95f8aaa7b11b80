package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/ocipack/ocipack/types"
)

const testGitmodules = `# pinned dependencies
[submodule "openzeppelin"]
	path = lib/openzeppelin
	url = https://github.com/OpenZeppelin/openzeppelin-contracts.git
	branch = release-v5.0
[submodule "forge-std"]
	path = lib/forge-std
	url = https://github.com/foundry-rs/forge-std
	shallow = true
[core]
	bare = false
`

const (
	commitOZ    = "a1b2c3d4e5f60718293a4b5c6d7e8f9012345678"
	commitForge = "0123456789abcdef0123456789abcdef01234567"
)

func TestParseGitmodules(t *testing.T) {
	t.Parallel()
	subs, err := ParseGitmodules(strings.NewReader(testGitmodules))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	expect := []Submodule{
		{Name: "openzeppelin", Path: "lib/openzeppelin", URL: "https://github.com/OpenZeppelin/openzeppelin-contracts.git", Branch: "release-v5.0"},
		{Name: "forge-std", Path: "lib/forge-std", URL: "https://github.com/foundry-rs/forge-std"},
	}
	if len(subs) != len(expect) {
		t.Fatalf("unexpected submodules: %v", subs)
	}
	for i := range expect {
		if subs[i] != expect[i] {
			t.Errorf("submodule %d, expected %v, received %v", i, expect[i], subs[i])
		}
	}
	_, err = ParseGitmodules(strings.NewReader("[submodule \"nopath\"]\n\turl = x\n"))
	if err == nil {
		t.Errorf("submodule without a path did not fail")
	}
	_, err = ParseGitmodules(strings.NewReader("[submodule \"broken\"\n"))
	if err == nil {
		t.Errorf("malformed file did not fail")
	}
}

func fakeGit(commits map[string]string) execFn {
	return func(ctx context.Context, dir string, args ...string) (string, error) {
		if len(args) != 4 || args[0] != "ls-tree" {
			return "", fmt.Errorf("unexpected git args %v", args)
		}
		c, ok := commits[args[3]]
		if !ok {
			return "", nil
		}
		return fmt.Sprintf("160000 commit %s\t%s\n", c, args[3]), nil
	}
}

func TestRepositorySubmodules(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, GitmodulesFile), testGitmodules)
	r := &Repository{dir: dir, exec: fakeGit(map[string]string{"lib/openzeppelin": commitOZ, "lib/forge-std": commitForge})}
	subs, err := r.Submodules(ctx)
	if err != nil {
		t.Fatalf("failed to load submodules: %v", err)
	}
	if len(subs) != 2 || subs[0].Commit != commitOZ || subs[1].Commit != commitForge {
		t.Errorf("unexpected submodules: %v", subs)
	}

	r = &Repository{dir: dir, exec: fakeGit(map[string]string{"lib/openzeppelin": commitOZ})}
	_, err = r.Submodules(ctx)
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("unexpected error, expected %v, received %v", types.ErrNotFound, err)
	}

	r = NewRepository(t.TempDir())
	_, err = r.Submodules(ctx)
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("unexpected error, expected %v, received %v", types.ErrNotFound, err)
	}
}

func TestRepositoryGit(t *testing.T) {
	t.Parallel()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git is not available")
	}
	ctx := context.Background()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, GitmodulesFile), testGitmodules)
	r := NewRepository(dir)
	for _, args := range [][]string{
		{"init", "-q"},
		{"update-index", "--add", "--cacheinfo", "160000," + commitOZ + ",lib/openzeppelin"},
		{"update-index", "--add", "--cacheinfo", "160000," + commitForge + ",lib/forge-std"},
		{"-c", "user.name=test", "-c", "user.email=test@example.com", "-c", "commit.gpgsign=false", "commit", "-q", "-m", "pin"},
	} {
		if _, err := r.Run(ctx, args...); err != nil {
			t.Fatalf("failed to set up repository: %v", err)
		}
	}
	subs, err := r.Submodules(ctx)
	if err != nil {
		t.Fatalf("failed to load submodules: %v", err)
	}
	if len(subs) != 2 || subs[0].Commit != commitOZ || subs[1].Commit != commitForge {
		t.Errorf("unexpected submodules: %v", subs)
	}
	if r.Dir() != dir {
		t.Errorf("unexpected dir %s", r.Dir())
	}
}

func TestSubmodulePayloads(t *testing.T) {
	t.Parallel()
	subs := []Submodule{
		{Name: "openzeppelin", Path: "lib/openzeppelin", URL: "https://example.com/oz.git", Commit: commitOZ, Branch: "main"},
		{Name: "forge-std", Path: "lib/forge-std", URL: "https://example.com/forge-std.git", Commit: commitForge},
	}
	t.Run("json", func(t *testing.T) {
		payloads, err := SubmodulePayloads(subs, FormatJSON)
		if err != nil {
			t.Fatalf("failed to encode: %v", err)
		}
		if len(payloads) != 2 || payloads[0].Name != "openzeppelin" || payloads[1].Name != "forge-std" {
			t.Fatalf("unexpected payloads: %v", payloads)
		}
		expect := `{"name":"forge-std","path":"lib/forge-std","url":"https://example.com/forge-std.git","commit":"` + commitForge + `"}`
		if string(payloads[1].Data) != expect {
			t.Errorf("unexpected json, expected %s, received %s", expect, payloads[1].Data)
		}
		var s Submodule
		if err := json.Unmarshal(payloads[0].Data, &s); err != nil || s != subs[0] {
			t.Errorf("json round trip failed: %v, %v", s, err)
		}
	})
	t.Run("cbor", func(t *testing.T) {
		payloads, err := SubmodulePayloads(subs, FormatCBOR)
		if err != nil {
			t.Fatalf("failed to encode: %v", err)
		}
		again, err := SubmodulePayloads(subs, FormatCBOR)
		if err != nil {
			t.Fatalf("failed to encode: %v", err)
		}
		for i := range payloads {
			if string(payloads[i].Data) != string(again[i].Data) {
				t.Errorf("cbor encoding is not deterministic")
			}
			var s Submodule
			if err := cbor.Unmarshal(payloads[i].Data, &s); err != nil || s != subs[i] {
				t.Errorf("cbor round trip failed: %v, %v", s, err)
			}
		}
	})
	t.Run("empty", func(t *testing.T) {
		_, err := SubmodulePayloads(nil, FormatJSON)
		if !errors.Is(err, types.ErrEmptyInput) {
			t.Errorf("unexpected error, expected %v, received %v", types.ErrEmptyInput, err)
		}
	})
	t.Run("unknown format", func(t *testing.T) {
		_, err := SubmodulePayloads(subs, Format(9))
		if err == nil {
			t.Errorf("unknown format did not fail")
		}
	})
}

func TestFormat(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		f         Format
		str       string
		mediaType string
	}{
		{f: FormatJSON, str: "json", mediaType: types.MediaTypeSubmoduleJSON},
		{f: FormatCBOR, str: "cbor", mediaType: types.MediaTypeSubmoduleCBOR},
	} {
		b, err := tc.f.MarshalText()
		if err != nil || string(b) != tc.str {
			t.Errorf("marshal %d, expected %s, received %s, %v", tc.f, tc.str, b, err)
		}
		var f Format
		if err := f.UnmarshalText([]byte(strings.ToUpper(tc.str))); err != nil || f != tc.f {
			t.Errorf("unmarshal %s, expected %d, received %d, %v", tc.str, tc.f, f, err)
		}
		if tc.f.MediaType() != tc.mediaType {
			t.Errorf("unexpected media type %s", tc.f.MediaType())
		}
	}
	var f Format
	if err := f.UnmarshalText([]byte("xml")); err == nil {
		t.Errorf("unknown format did not fail")
	}
	if _, err := FormatUndef.MarshalText(); err == nil {
		t.Errorf("undefined format did not fail")
	}
}
