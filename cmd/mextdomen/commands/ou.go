package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mextdomen/mextdomen/internal/cli/output"
	"github.com/mextdomen/mextdomen/pkg/directory"
	"github.com/mextdomen/mextdomen/pkg/models"
)

var ouCmd = &cobra.Command{
	Use:   "ou",
	Short: "Manage organizational units",
}

var ouCreateParent string

var ouCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new organizational unit",
	Args:  cobra.ExactArgs(1),
	RunE:  runOUCreate,
}

var ouListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all organizational units",
	Args:  cobra.NoArgs,
	RunE:  runOUList,
}

func init() {
	ouCreateCmd.Flags().StringVar(&ouCreateParent, "parent", "", "Parent DN (default: first domain's base DN)")

	ouCmd.AddCommand(ouCreateCmd)
	ouCmd.AddCommand(ouListCmd)
}

func runOUCreate(cmd *cobra.Command, args []string) error {
	name := args[0]

	return withService(func(service *directory.Service) error {
		parent := ouCreateParent
		if parent == "" {
			domains, err := service.ListDomains()
			if err != nil {
				return err
			}
			if len(domains) == 0 {
				return fmt.Errorf("no domain exists: pass --parent or create a domain first")
			}
			parent = domains[0].DN()
		}

		ou := models.NewOU(name, directory.OUDN(name, parent), nil)
		if err := service.CreateOU(ou); err != nil {
			return err
		}

		if flagJSON {
			return output.PrintJSON(os.Stdout, ou)
		}
		fmt.Printf("Created OU %s\n", ou.DN)
		return nil
	})
}

func runOUList(cmd *cobra.Command, args []string) error {
	return withService(func(service *directory.Service) error {
		ous, err := service.ListOUs()
		if err != nil {
			return err
		}

		if flagJSON {
			return output.PrintJSON(os.Stdout, ous)
		}

		rows := make([][]string, len(ous))
		for i, ou := range ous {
			rows[i] = []string{
				ou.ID.String(),
				ou.Name,
				ou.DN,
				formatTime(ou.CreatedAt),
			}
		}
		output.PrintTable(os.Stdout, []string{"ID", "Name", "DN", "Created"}, rows)
		return nil
	})
}
