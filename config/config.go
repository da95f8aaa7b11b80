// Package config contains data types for configuration of ocipack.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/ocipack/ocipack/bundle"
	"github.com/ocipack/ocipack/internal/source"
	"github.com/ocipack/ocipack/types"
)

type Store int

const (
	StoreUndef Store = iota // undefined backend storage is the invalid zero value
	StoreMem                // StoreMem only uses memory, nothing is written to disk
	StoreDir                // StoreDir writes an OCI Layout to a directory
)

type Config struct {
	ArtifactType string            `yaml:"artifactType" json:"artifactType"`
	Source       ConfigSource      `yaml:"source" json:"source"`
	Bundle       ConfigBundle      `yaml:"bundle" json:"bundle"`
	Item         ConfigItem        `yaml:"item" json:"item"`
	Output       ConfigOutput      `yaml:"output" json:"output"`
	Storage      ConfigStorage     `yaml:"storage" json:"storage"`
	Concurrency  int               `yaml:"concurrency" json:"concurrency"`
	Annotations  map[string]string `yaml:"annotations" json:"annotations"`
	Log          *slog.Logger      `yaml:"-" json:"-"`
}

type ConfigSource struct {
	Dir       string   `yaml:"dir" json:"dir"`
	Ext       []string `yaml:"ext" json:"ext"`
	Recursive bool     `yaml:"recursive" json:"recursive"`
	RepoDir   string   `yaml:"repoDir" json:"repoDir"`
}

type ConfigBundle struct {
	Compression bundle.Compression `yaml:"compression" json:"compression"`
	Level       int                `yaml:"level" json:"level"`
}

type ConfigItem struct {
	MediaType    string        `yaml:"mediaType" json:"mediaType"`
	RecordFormat source.Format `yaml:"recordFormat" json:"recordFormat"`
}

type ConfigOutput struct {
	File string `yaml:"file" json:"file"`
	Tag  string `yaml:"tag" json:"tag"`
}

type ConfigStorage struct {
	StoreType Store  `yaml:"storeType" json:"storeType"`
	RootDir   string `yaml:"rootDir" json:"rootDir"`
}

// SetDefaults fills in zero values with the defaults.
func (c *Config) SetDefaults() {
	if c.ArtifactType == "" {
		c.ArtifactType = types.ArtifactTypeDefault
	}
	if c.Source.Dir == "" {
		c.Source.Dir = "."
	}
	if len(c.Source.Ext) == 0 {
		c.Source.Ext = []string{".abi"}
	}
	if c.Source.RepoDir == "" {
		c.Source.RepoDir = "."
	}
	if c.Bundle.Compression == bundle.CompressionUndef {
		c.Bundle.Compression = bundle.CompressionGzip
	}
	if c.Item.MediaType == "" {
		c.Item.MediaType = types.MediaTypeItem
	}
	if c.Item.RecordFormat == source.FormatUndef {
		c.Item.RecordFormat = source.FormatJSON
	}
	if c.Storage.StoreType == StoreDir && c.Storage.RootDir == "" {
		c.Storage.RootDir = "."
	}
	if c.Log == nil {
		c.Log = slog.New(slog.DiscardHandler)
	}
}

// LoadFile reads a YAML (.yaml, .yml) or JSON with comments (.json, .jsonc) config file.
// Values in the file replace the current values, unset fields are left as is.
func (c *Config) LoadFile(filename string) error {
	//#nosec G304 the config file is provided by the user.
	b, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", filename, err)
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		err = dec.Decode(c)
		if errors.Is(err, io.EOF) {
			// empty file
			err = nil
		}
	case ".json", ".jsonc":
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(b)))
		dec.DisallowUnknownFields()
		err = dec.Decode(c)
	default:
		return fmt.Errorf("unsupported config file type %s", filename)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config %s: %w", filename, err)
	}
	return nil
}

func (s Store) MarshalText() ([]byte, error) {
	var ret string
	switch s {
	case StoreMem:
		ret = "mem"
	case StoreDir:
		ret = "dir"
	}
	if ret == "" {
		return []byte{}, fmt.Errorf("unknown store value %d", int(s))
	}
	return []byte(ret), nil
}

func (s *Store) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	default:
		return fmt.Errorf("unknown store value \"%s\"", b)
	case "mem":
		*s = StoreMem
	case "dir":
		*s = StoreDir
	}
	return nil
}
