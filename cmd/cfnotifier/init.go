package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cfnotifier/cfnotifier/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented config template to the --config path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		created, err := config.WriteTemplate(path)
		if err != nil {
			return err
		}
		if !created {
			fmt.Fprintf(cmd.OutOrStdout(), "Config already exists at %s, leaving it untouched.\n", path)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created config template at %s. Fill in your Cloudflare credentials and zone ids.\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
