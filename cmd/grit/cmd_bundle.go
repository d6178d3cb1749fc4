package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gritvcs/grit/pkg/repo"
)

func newBundleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Export or import whole-repository bundles",
	}
	cmd.AddCommand(newBundleCreateCmd())
	cmd.AddCommand(newBundleUnbundleCmd())
	return cmd
}

func newBundleCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <file>",
		Short: "Write all objects and refs to a bundle file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("create bundle file: %w", err)
			}
			if err := r.ExportBundle(f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close bundle file: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote bundle %s\n", args[0])
			return nil
		},
	}
}

func newBundleUnbundleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unbundle <file>",
		Short: "Import objects and refs from a bundle file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open bundle file: %w", err)
			}
			defer f.Close()

			if err := r.ImportBundle(f); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported bundle %s\n", args[0])
			return nil
		},
	}
}
