package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ocipack/ocipack"
	"github.com/ocipack/ocipack/internal/source"
	"github.com/ocipack/ocipack/types"
)

type buildOpts struct {
	root      *rootOpts
	out       outputOpts
	dir       string
	ext       []string
	recursive bool
}

func newBuildCmd(root *rootOpts) *cobra.Command {
	opts := buildOpts{
		root: root,
	}
	newCmd := &cobra.Command{
		Use:   "build <strategy>",
		Short: "Build an artifact from the files in a directory",
		Long: fmt.Sprintf(`Build an artifact from the files in a directory.
The strategy is one of: %s (or a, b, c, d).
The manifest is written to manifest-<strategy>.json unless --output is set.`, strings.Join(ocipack.StrategyNames(), ", ")),
		Example: `
# bundle every .abi file into a single layer
ocipack build single-layer --dir ./contracts

# one layer per file, pushed into an OCI Layout
ocipack build per-item --dir ./contracts --layout ./oci --tag v1

# link a per-item artifact to an existing manifest
ocipack build subject --base per-item --subject manifest-single-layer.json`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: ocipack.StrategyNames(),
		RunE:      opts.run,
	}
	newCmd.Flags().StringVar(&opts.dir, "dir", "", "directory containing the input files")
	newCmd.Flags().StringSliceVar(&opts.ext, "ext", nil, "file extension to include, may be repeated (default .abi)")
	newCmd.Flags().BoolVar(&opts.recursive, "recursive", false, "include files in subdirectories")
	newCmd.Flags().StringVar(&opts.out.base, "base", "", "base strategy wrapped by the subject strategy (default single-layer)")
	opts.out.addFlags(newCmd)
	return newCmd
}

func (opts *buildOpts) run(cmd *cobra.Command, args []string) error {
	strategy, err := ocipack.ParseStrategy(args[0])
	if err != nil {
		return err
	}
	conf := opts.root.conf
	if cmd.Flags().Changed("dir") {
		conf.Source.Dir = opts.dir
	}
	if cmd.Flags().Changed("ext") {
		conf.Source.Ext = opts.ext
	}
	if cmd.Flags().Changed("recursive") {
		conf.Source.Recursive = opts.recursive
	}
	if err := opts.out.apply(cmd, &conf); err != nil {
		return err
	}
	if conf.Output.File == "" {
		conf.Output.File = fmt.Sprintf("manifest-%s.json", strategy)
	}
	conf.SetDefaults()

	files, err := source.ListFiles(conf.Source.Dir, conf.Source.Ext, conf.Source.Recursive)
	if err != nil {
		return err
	}
	conf.Log.Info("files found", "dir", conf.Source.Dir, "count", len(files))
	if len(files) == 0 {
		return fmt.Errorf("no files matching %s in %s%.0w", strings.Join(conf.Source.Ext, ", "), conf.Source.Dir, types.ErrEmptyInput)
	}
	payloads, err := source.ReadPayloads(files)
	if err != nil {
		return err
	}
	buildOpts, err := opts.out.buildOpts(conf, ocipack.StrategyUndef)
	if err != nil {
		return err
	}
	art, err := ocipack.Build(cmd.Context(), strategy, payloads, buildOpts...)
	if err != nil {
		return err
	}
	return writeArtifact(cmd, conf, art, opts.out.dryRun)
}
