// Package commands implements the mextdomen CLI.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"

	flagConfig  string
	flagDataDir string
	flagKey     string
	flagJSON    bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mextdomen",
	Short: "mextdomen - embedded directory service",
	Long: `mextdomen is a self-contained directory service: users, groups,
organizational units, domains and group policies stored in a single
encrypted database file, served over LDAP, gRPC and REST.

Use "mextdomen [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Config file path (default: XDG config dir)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Database file path (overrides config db_path)")
	rootCmd.PersistentFlags().StringVar(&flagKey, "key", "", "Master key as 64 hex characters (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine readable JSON output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(ouCmd)
	rootCmd.AddCommand(domainCmd)
	rootCmd.AddCommand(gpoCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mextdomen %s (%s)\n", Version, Commit)
	},
}
