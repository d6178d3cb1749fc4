package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gritvcs/grit/pkg/repo"
)

func newPackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Inspect and ingest pack files",
	}
	cmd.AddCommand(newPackListCmd())
	cmd.AddCommand(newPackIngestCmd())
	cmd.AddCommand(newPackExportCmd())
	return cmd
}

func newPackListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known packs in lookup precedence order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			names, err := r.Store.ListPacks()
			if err != nil {
				return err
			}
			for _, name := range names {
				idx, err := r.Store.PackIndexFor(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%d objects)\n", name, len(idx.Entries()))
			}
			return nil
		},
	}
}

func newPackIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <pack-file>",
		Short: "Validate a pack file and add it to the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read pack file: %w", err)
			}
			hashes, err := r.Store.IngestPack(raw)
			if err != nil {
				return err
			}
			logrus.WithField("objects", len(hashes)).Debug("pack ingested")
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d objects\n", len(hashes))
			return nil
		},
	}
}

func newPackExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <pack-file>",
		Short: "Write every object in the store into a standalone pack file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			hashes, err := r.Store.List()
			if err != nil {
				return err
			}
			data, err := r.Store.ExportPack(hashes)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[0], data, 0o644); err != nil {
				return fmt.Errorf("write pack file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d objects to %s\n", len(hashes), args[0])
			return nil
		},
	}
}

func newRepackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repack",
		Short: "Pack loose objects not already covered by a pack",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			summary, err := r.Store.Repack()
			if err != nil {
				return err
			}
			if summary.PackedObjects == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to pack")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "packed %d objects into %s\n", summary.PackedObjects, summary.PackName)
			return nil
		},
	}
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the integrity of loose objects and packs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			summary, err := r.Store.Verify()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d loose objects, %d packs, %d packed objects\n",
				summary.LooseObjects, summary.PackFiles, summary.PackObjects)
			return nil
		},
	}
}
