package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gritvcs/grit/pkg/repo"
)

func newTagCmd() *cobra.Command {
	var deleteTag string
	var annotate bool
	var message string

	cmd := &cobra.Command{
		Use:   "tag [name] [target]",
		Short: "List, create, or delete tags",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			if strings.TrimSpace(deleteTag) != "" {
				if len(args) > 0 {
					return fmt.Errorf("tag --delete does not accept positional args")
				}
				return r.DeleteTag(deleteTag)
			}

			if len(args) == 0 {
				tags, err := r.ListTags()
				if err != nil {
					return err
				}
				for _, name := range tags {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}

			name := args[0]
			targetRev := "HEAD"
			if len(args) == 2 {
				targetRev = args[1]
			}
			target, err := r.ResolveRevision(targetRev)
			if err != nil {
				return fmt.Errorf("cannot resolve %s: %w", targetRev, err)
			}

			if annotate || message != "" {
				tagger := os.Getenv("USER")
				if tagger == "" {
					tagger = "unknown"
				}
				tagger, err = r.Author(tagger)
				if err != nil {
					return err
				}
				if message == "" {
					message = name
				}
				_, err = r.CreateTag(name, target, tagger, message)
				return err
			}
			return r.CreateLightweightTag(name, target)
		},
	}

	cmd.Flags().StringVarP(&deleteTag, "delete", "d", "", "delete the named tag")
	cmd.Flags().BoolVarP(&annotate, "annotate", "a", false, "create an annotated tag object")
	cmd.Flags().StringVarP(&message, "message", "m", "", "tag message (implies --annotate)")

	return cmd
}
