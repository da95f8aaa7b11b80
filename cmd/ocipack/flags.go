package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ocipack/ocipack"
	"github.com/ocipack/ocipack/bundle"
	"github.com/ocipack/ocipack/config"
	"github.com/ocipack/ocipack/content"
	"github.com/ocipack/ocipack/internal/store"
	"github.com/ocipack/ocipack/types"
)

// outputOpts are the flags shared by every command that builds an artifact.
type outputOpts struct {
	artifactType string
	compression  string
	level        int
	annotations  []string
	created      string
	concurrency  int
	base         string
	subject      string
	subjectMT    string
	output       string
	layout       string
	tag          string
	dryRun       bool
}

func (oo *outputOpts) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&oo.artifactType, "artifact-type", "", "artifact type of the manifest")
	cmd.Flags().StringVar(&oo.compression, "compression", "", "bundle compression (none, gzip, zstd)")
	cmd.Flags().IntVar(&oo.level, "level", 0, "bundle compression level, 0 for the default")
	cmd.Flags().StringArrayVar(&oo.annotations, "annotation", nil, "manifest annotation (key=value), may be repeated")
	cmd.Flags().StringVar(&oo.created, "created", "", "creation time annotation (RFC 3339), unset to keep builds reproducible")
	cmd.Flags().IntVar(&oo.concurrency, "concurrency", 0, "number of items addressed in parallel")
	cmd.Flags().StringVar(&oo.subject, "subject", "", "manifest file the artifact refers to")
	cmd.Flags().StringVar(&oo.subjectMT, "subject-media-type", "", "media type of the subject, defaults to the mediaType in the subject file")
	cmd.Flags().StringVar(&oo.output, "output", "", "manifest output file, - for stdout")
	cmd.Flags().StringVar(&oo.layout, "layout", "", "OCI Layout directory to push the artifact into")
	cmd.Flags().StringVar(&oo.tag, "tag", "", "tag for the manifest in the OCI Layout")
	cmd.Flags().BoolVar(&oo.dryRun, "dry-run", false, "build and verify the artifact without writing any files")
	_ = cmd.RegisterFlagCompletionFunc("compression", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"none", "gzip", "zstd"}, cobra.ShellCompDirectiveNoFileComp
	})
}

// apply sets config values from the flags that were explicitly provided.
func (oo *outputOpts) apply(cmd *cobra.Command, conf *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("artifact-type") {
		conf.ArtifactType = oo.artifactType
	}
	if flags.Changed("compression") {
		err := conf.Bundle.Compression.UnmarshalText([]byte(oo.compression))
		if err != nil {
			return fmt.Errorf("unable to parse compression %s: %w", oo.compression, err)
		}
	}
	if flags.Changed("level") {
		conf.Bundle.Level = oo.level
	}
	if flags.Changed("concurrency") {
		conf.Concurrency = oo.concurrency
	}
	// the map may be shared with the loaded config
	conf.Annotations = maps.Clone(conf.Annotations)
	if (len(oo.annotations) > 0 || oo.created != "") && conf.Annotations == nil {
		conf.Annotations = map[string]string{}
	}
	for _, a := range oo.annotations {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return fmt.Errorf("annotation %q must be in the form key=value", a)
		}
		conf.Annotations[k] = v
	}
	if oo.created != "" {
		t, err := time.Parse(time.RFC3339, oo.created)
		if err != nil {
			return fmt.Errorf("unable to parse created time %s: %w", oo.created, err)
		}
		conf.Annotations[types.AnnotCreated] = t.UTC().Format(time.RFC3339)
	}
	if flags.Changed("output") {
		conf.Output.File = oo.output
	}
	if flags.Changed("tag") {
		conf.Output.Tag = oo.tag
	}
	if flags.Changed("layout") {
		conf.Storage.StoreType = config.StoreDir
		conf.Storage.RootDir = oo.layout
	}
	if oo.dryRun {
		conf.Storage.StoreType = config.StoreMem
	}
	return nil
}

// buildOpts converts the config into options for [ocipack.Build].
func (oo *outputOpts) buildOpts(conf config.Config, base ocipack.Strategy) ([]ocipack.Opt, error) {
	opts := []ocipack.Opt{
		ocipack.WithArtifactType(conf.ArtifactType),
		ocipack.WithBundler(bundle.Tar{Compression: conf.Bundle.Compression, Level: conf.Bundle.Level}),
		ocipack.WithItemMediaType(conf.Item.MediaType),
		ocipack.WithAnnotations(conf.Annotations),
		ocipack.WithConcurrency(conf.Concurrency),
		ocipack.WithLog(conf.Log),
	}
	if oo.base != "" {
		var err error
		base, err = ocipack.ParseStrategy(oo.base)
		if err != nil {
			return nil, fmt.Errorf("unable to parse base strategy %s: %w", oo.base, err)
		}
	}
	if base != ocipack.StrategyUndef {
		opts = append(opts, ocipack.WithBase(base))
	}
	if oo.subject != "" {
		subject, err := loadSubject(oo.subject, oo.subjectMT)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ocipack.WithSubject(subject))
	}
	return opts, nil
}

// loadSubject addresses a manifest file to use as the subject descriptor.
func loadSubject(filename, mediaType string) (types.Descriptor, error) {
	//#nosec G304 the subject file is provided by the user.
	raw, err := os.ReadFile(filename)
	if err != nil {
		return types.Descriptor{}, fmt.Errorf("failed to read subject %s: %w", filename, err)
	}
	m := struct {
		MediaType    string `json:"mediaType"`
		ArtifactType string `json:"artifactType"`
	}{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return types.Descriptor{}, fmt.Errorf("failed to parse subject %s: %v%.0w", filename, err, types.ErrManifestInvalid)
	}
	if mediaType == "" {
		mediaType = m.MediaType
	}
	mediaType = types.MediaTypeBase(mediaType)
	if mediaType == "" {
		return types.Descriptor{}, fmt.Errorf("subject %s has no mediaType, set --subject-media-type%.0w", filename, types.ErrManifestInvalid)
	}
	if !types.MediaTypeImage(mediaType) && !types.MediaTypeIndex(mediaType) {
		return types.Descriptor{}, fmt.Errorf("subject %s has mediaType %s, a manifest or index is required%.0w", filename, mediaType, types.ErrManifestInvalid)
	}
	d := content.AddressMediaType(raw, mediaType)
	d.ArtifactType = m.ArtifactType
	return d, nil
}

// writeArtifact writes the manifest file and pushes the artifact into the configured store.
func writeArtifact(cmd *cobra.Command, conf config.Config, art ocipack.Artifact, dryRun bool) error {
	raw, err := art.Raw()
	if err != nil {
		return err
	}
	desc, err := art.Descriptor()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	// status lines stay off stdout when it carries the manifest
	status := out
	if conf.Output.File == "-" {
		status = cmd.ErrOrStderr()
	}
	if conf.Storage.StoreType != config.StoreUndef {
		s, err := store.New(conf, store.WithLog(conf.Log))
		if err != nil {
			return err
		}
		defer s.Close()
		repo, err := s.RepoGet("")
		if err != nil {
			return err
		}
		desc, err = store.PutArtifact(repo, art, conf.Output.Tag)
		if err != nil {
			return fmt.Errorf("failed to push artifact: %w", err)
		}
		if conf.Storage.StoreType == config.StoreDir {
			color.New(color.FgGreen).Fprintf(status, "pushed %s to %s\n", desc.Digest, conf.Storage.RootDir)
		}
	}
	switch {
	case dryRun:
		color.New(color.FgYellow).Fprintf(status, "dry run, %s not written\n", conf.Output.File)
	case conf.Output.File == "-":
		if _, err := out.Write(append(raw, '\n')); err != nil {
			return err
		}
	default:
		if err := writeFileAtomic(conf.Output.File, raw); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(status, "wrote %s\n", conf.Output.File)
	}
	fmt.Fprintf(status, "digest: %s\nsize: %d\nlayers: %d\n", desc.Digest, desc.Size, len(art.Manifest.Layers))
	return nil
}

// writeFileAtomic replaces filename with a temp file and rename, leaving no partial file on failure.
func writeFileAtomic(filename string, raw []byte) error {
	fh, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".*")
	if err != nil {
		return err
	}
	_, err = fh.Write(raw)
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
	//#nosec G302 manifests are intentionally world readable.
	err = os.Chmod(fh.Name(), 0644)
	if err != nil {
		_ = os.Remove(fh.Name())
		return err
	}
	err = os.Rename(fh.Name(), filename)
	if err != nil {
		_ = os.Remove(fh.Name())
		return err
	}
	return nil
}
