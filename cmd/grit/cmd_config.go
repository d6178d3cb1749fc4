package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gritvcs/grit/pkg/repo"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config <key> [value]",
		Short: "Read or write repository configuration",
		Long:  "Supported keys: user.name, user.email, core.compression.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			cfg, err := r.ReadConfig()
			if err != nil {
				return err
			}

			key := args[0]
			if len(args) == 1 {
				switch key {
				case "user.name":
					fmt.Fprintln(cmd.OutOrStdout(), cfg.User.Name)
				case "user.email":
					fmt.Fprintln(cmd.OutOrStdout(), cfg.User.Email)
				case "core.compression":
					fmt.Fprintln(cmd.OutOrStdout(), cfg.Core.Compression)
				default:
					return fmt.Errorf("unknown config key %q", key)
				}
				return nil
			}

			value := args[1]
			switch key {
			case "user.name":
				cfg.User.Name = value
			case "user.email":
				cfg.User.Email = value
			case "core.compression":
				level, err := strconv.Atoi(value)
				if err != nil {
					return fmt.Errorf("core.compression must be an integer: %w", err)
				}
				cfg.Core.Compression = level
			default:
				return fmt.Errorf("unknown config key %q", key)
			}
			return r.WriteConfig(cfg)
		},
	}
}

func newRemoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Manage named remotes",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name> <url>",
		Short: "Add or update a named remote",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			return r.SetRemote(args[0], args[1])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List configured remotes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}
			cfg, err := r.ReadConfig()
			if err != nil {
				return err
			}
			for name, url := range cfg.Remotes {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, url)
			}
			return nil
		},
	})

	return cmd
}
