package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ocipack/ocipack/bundle"
	"github.com/ocipack/ocipack/config"
	"github.com/ocipack/ocipack/content"
	"github.com/ocipack/ocipack/internal/store"
	"github.com/ocipack/ocipack/types"
)

type inspectOpts struct {
	root    *rootOpts
	layout  string
	entries bool
}

func newInspectCmd(root *rootOpts) *cobra.Command {
	opts := inspectOpts{
		root: root,
	}
	newCmd := &cobra.Command{
		Use:   "inspect <manifest>",
		Short: "Validate a manifest and list its descriptors",
		Long: `Validate a manifest and list its descriptors.
With --layout, every referenced blob is verified against the OCI Layout,
and --entries lists the files packed in each bundle.`,
		Args: cobra.ExactArgs(1),
		RunE: opts.run,
	}
	newCmd.Flags().StringVar(&opts.layout, "layout", "", "OCI Layout directory to verify blobs against")
	newCmd.Flags().BoolVar(&opts.entries, "entries", false, "list the entries of bundle blobs, requires --layout")
	return newCmd
}

type inspectRow struct {
	role string
	desc types.Descriptor
}

func (opts *inspectOpts) run(cmd *cobra.Command, args []string) error {
	//#nosec G304 the manifest file is provided by the user.
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read manifest %s: %w", args[0], err)
	}
	m := types.Manifest{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("failed to parse manifest %s: %v%.0w", args[0], err, types.ErrManifestInvalid)
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("manifest %s: %w", args[0], err)
	}
	if !types.MediaTypeImage(m.MediaType) {
		return fmt.Errorf("manifest %s has unsupported mediaType %s%.0w", args[0], m.MediaType, types.ErrManifestInvalid)
	}
	if opts.entries && opts.layout == "" {
		return fmt.Errorf("--entries requires --layout")
	}
	desc := content.AddressMediaType(raw, m.MediaType)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "manifest: %s\nsize: %d\nartifactType: %s\n", desc.Digest, desc.Size, m.ArtifactType)

	rows := []inspectRow{{role: "config", desc: m.Config}}
	for i, l := range m.Layers {
		rows = append(rows, inspectRow{role: "layer " + strconv.Itoa(i), desc: l})
	}
	if m.Subject != nil {
		rows = append(rows, inspectRow{role: "subject", desc: *m.Subject})
	}

	var repo store.Repo
	if opts.layout != "" {
		conf := opts.root.conf
		conf.Storage.StoreType = config.StoreDir
		conf.Storage.RootDir = opts.layout
		conf.SetDefaults()
		s := store.NewDir(conf, store.WithLog(conf.Log))
		defer s.Close()
		repo, err = s.RepoGet("")
		if err != nil {
			return err
		}
	}

	header := []string{"Role", "Media Type", "Digest", "Size", "Title"}
	if repo != nil {
		header = append(header, "Status")
	}
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	errs := []error{}
	verified := 0
	for _, r := range rows {
		row := []string{r.role, r.desc.MediaType, r.desc.Digest.String(), strconv.FormatInt(r.desc.Size, 10), r.desc.Annotations[types.AnnotTitle]}
		if repo != nil {
			status := "ok"
			// the subject may live elsewhere, it is only reported
			if err := verifyBlob(repo, r.desc); err != nil {
				status = err.Error()
				if r.role != "subject" {
					errs = append(errs, fmt.Errorf("%s: %w", r.role, err))
				}
			} else {
				verified++
			}
			row = append(row, status)
		}
		table.Append(row)
	}
	table.Render()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if repo == nil {
		return nil
	}
	color.New(color.FgGreen).Fprintf(out, "verified %d blobs in %s\n", verified, opts.layout)
	if opts.entries {
		for _, r := range rows {
			if !types.MediaTypeBundle(r.desc.MediaType) {
				continue
			}
			if err := listEntries(cmd, repo, r.role, r.desc); err != nil {
				return err
			}
		}
	}
	return nil
}

// listEntries prints the name and size of each file in a bundle blob.
func listEntries(cmd *cobra.Command, repo store.Repo, role string, d types.Descriptor) error {
	c, err := bundle.CompressionFor(d.MediaType)
	if err != nil {
		return err
	}
	rdr, err := repo.BlobGet(d.Digest)
	if err != nil {
		return err
	}
	b, err := io.ReadAll(rdr)
	_ = rdr.Close()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", d.Digest, err)
	}
	entries, err := bundle.Unbundle(b, c)
	if err != nil {
		return fmt.Errorf("%s: %w", role, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s entries:\n", role)
	for _, e := range entries {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\t%d\n", e.Name, len(e.Data))
	}
	return nil
}

func verifyBlob(repo store.Repo, d types.Descriptor) error {
	rdr, err := repo.BlobGet(d.Digest)
	if err != nil {
		return err
	}
	defer rdr.Close()
	return content.VerifyReader(d, rdr)
}
