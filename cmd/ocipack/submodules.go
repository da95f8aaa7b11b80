package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ocipack/ocipack"
	"github.com/ocipack/ocipack/internal/source"
)

type submodulesOpts struct {
	root   *rootOpts
	out    outputOpts
	repo   string
	format string
}

func newSubmodulesCmd(root *rootOpts) *cobra.Command {
	opts := submodulesOpts{
		root: root,
	}
	newCmd := &cobra.Command{
		Use:   "submodules",
		Short: "Build an artifact describing the git submodules of a repository",
		Long: `Build an artifact describing the git submodules of a repository.
Each submodule listed in .gitmodules is recorded with the commit pinned in HEAD,
and stored as its own layer. With --subject the artifact is linked to that manifest.`,
		Example: `
# record the submodules of the current repository
ocipack submodules

# CBOR records linked to an existing artifact
ocipack submodules --repo ../app --format cbor --subject manifest-per-item.json`,
		Args: cobra.NoArgs,
		RunE: opts.run,
	}
	newCmd.Flags().StringVar(&opts.repo, "repo", "", "git working tree containing .gitmodules (default .)")
	newCmd.Flags().StringVar(&opts.format, "format", "", "record format (json, cbor)")
	_ = newCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"json", "cbor"}, cobra.ShellCompDirectiveNoFileComp
	})
	opts.out.addFlags(newCmd)
	return newCmd
}

func (opts *submodulesOpts) run(cmd *cobra.Command, args []string) error {
	conf := opts.root.conf
	if cmd.Flags().Changed("repo") {
		conf.Source.RepoDir = opts.repo
	}
	if cmd.Flags().Changed("format") {
		err := conf.Item.RecordFormat.UnmarshalText([]byte(opts.format))
		if err != nil {
			return fmt.Errorf("unable to parse format %s: %w", opts.format, err)
		}
	}
	if err := opts.out.apply(cmd, &conf); err != nil {
		return err
	}
	if conf.Output.File == "" {
		conf.Output.File = "manifest-submodules.json"
	}
	conf.SetDefaults()
	// records carry their own media type, overriding the generic item type
	conf.Item.MediaType = conf.Item.RecordFormat.MediaType()

	subs, err := source.NewRepository(conf.Source.RepoDir).Submodules(cmd.Context())
	if err != nil {
		return err
	}
	conf.Log.Info("submodules found", "repo", conf.Source.RepoDir, "count", len(subs))
	payloads, err := source.SubmodulePayloads(subs, conf.Item.RecordFormat)
	if err != nil {
		return err
	}
	strategy := ocipack.StrategyPerItem
	if opts.out.subject != "" {
		strategy = ocipack.StrategySubject
	}
	buildOpts, err := opts.out.buildOpts(conf, ocipack.StrategyPerItem)
	if err != nil {
		return err
	}
	art, err := ocipack.Build(cmd.Context(), strategy, payloads, buildOpts...)
	if err != nil {
		return err
	}
	return writeArtifact(cmd, conf, art, opts.out.dryRun)
}
