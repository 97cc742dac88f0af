package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// tokenCmd manages the stored bearer token
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the stored bearer token",
	Long: `Manage the bearer token sent with every request.

Available subcommands:
  set   - Store a token
  show  - Print the stored token
  clear - Remove the stored token and user record`,
}

var tokenSetCmd = &cobra.Command{
	Use:   "set [token]",
	Short: "Store a bearer token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.SetToken(args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "token stored")
		return nil
	},
}

var tokenShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored bearer token",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		token, err := store.Token()
		if err != nil {
			return err
		}
		if token == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "(signed out)")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var tokenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored token and user record",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.ClearToken(); err != nil {
			return err
		}
		if err := store.ClearUser(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "signed out")
		return nil
	},
}
