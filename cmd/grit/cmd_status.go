package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gritvcs/grit/pkg/repo"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show staged files and working-tree changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			entries, err := r.Status()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing staged")
				return nil
			}

			out := cmd.OutOrStdout()
			for _, e := range entries {
				if e.Status == repo.StatusClean {
					fmt.Fprintf(out, "staged:    %s\n", e.Path)
				} else {
					fmt.Fprintf(out, "%-9s  %s\n", e.Status.String()+":", e.Path)
				}
			}
			return nil
		},
	}
}
