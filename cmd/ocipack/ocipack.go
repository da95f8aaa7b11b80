package main

import (
	"fmt"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ocipack/ocipack/config"
)

func main() {
	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

type rootOpts struct {
	log      *slog.Logger
	levelStr string
	confFile string
	conf     config.Config
}

func newRootCmd() *cobra.Command {
	opts := rootOpts{}
	newCmd := &cobra.Command{
		Use:           "ocipack <cmd>",
		Short:         "Package files as content addressed OCI artifacts",
		Long:          "Package files as content addressed OCI artifacts, writing the manifest and optionally an OCI Layout",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.log = slog.New(slog.DiscardHandler)
	newCmd.PersistentFlags().StringVarP(&opts.levelStr, "verbosity", "v", "warn", "Log level (debug, info, warn, error)")
	_ = newCmd.RegisterFlagCompletionFunc("verbosity", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})
	newCmd.PersistentFlags().StringVar(&opts.confFile, "config", "", "config file (yaml or jsonc)")
	newCmd.PersistentPreRunE = opts.preRun
	newCmd.AddCommand(
		newBuildCmd(&opts),
		newSubmodulesCmd(&opts),
		newInspectCmd(&opts),
	)
	return newCmd
}

func (opts *rootOpts) preRun(cmd *cobra.Command, args []string) error {
	err := opts.setupLogger(cmd)
	if err != nil {
		return err
	}
	if opts.confFile != "" {
		err = opts.conf.LoadFile(opts.confFile)
		if err != nil {
			return err
		}
		opts.log.Debug("config loaded", "file", opts.confFile)
	}
	opts.conf.Log = opts.log
	return nil
}

func (opts *rootOpts) setupLogger(cmd *cobra.Command) error {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(opts.levelStr))
	if err != nil {
		return fmt.Errorf("unable to parse verbosity %s: %v", opts.levelStr, err)
	}
	handler := charmlog.NewWithOptions(cmd.ErrOrStderr(), charmlog.Options{
		Level:  charmlog.Level(lvl),
		Prefix: "ocipack",
	})
	opts.log = slog.New(handler)
	return nil
}
