package commands

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mextdomen/mextdomen/internal/cli/output"
	"github.com/mextdomen/mextdomen/pkg/directory"
	"github.com/mextdomen/mextdomen/pkg/models"
)

var gpoCmd = &cobra.Command{
	Use:   "gpo",
	Short: "Manage group policy objects",
}

var (
	gpoCreateDisplayName string
	gpoCreateDescription string
	gpoCreateLinkedTo    []string
	gpoCreateEnforced    bool
	gpoCreateDisabled    bool
)

var gpoCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new GPO linked to one or more OUs",
	Args:  cobra.ExactArgs(1),
	RunE:  runGPOCreate,
}

var gpoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all GPOs",
	Args:  cobra.NoArgs,
	RunE:  runGPOList,
}

var gpoLinkCmd = &cobra.Command{
	Use:   "link <gpo-id> <ou-id>",
	Short: "Link a GPO to an OU",
	Args:  cobra.ExactArgs(2),
	RunE:  runGPOLink,
}

var gpoUnlinkCmd = &cobra.Command{
	Use:   "unlink <gpo-id> <ou-id>",
	Short: "Unlink a GPO from an OU",
	Args:  cobra.ExactArgs(2),
	RunE:  runGPOUnlink,
}

var gpoSetInheritanceCmd = &cobra.Command{
	Use:   "set-inheritance <ou-id> <true|false>",
	Short: "Block or allow GPO inheritance on an OU",
	Args:  cobra.ExactArgs(2),
	RunE:  runGPOSetInheritance,
}

var gpoSetEnforcedCmd = &cobra.Command{
	Use:   "set-enforced <ou-id> <true|false>",
	Short: "Mark an OU's GPO links as enforced",
	Args:  cobra.ExactArgs(2),
	RunE:  runGPOSetEnforced,
}

func init() {
	gpoCreateCmd.Flags().StringVar(&gpoCreateDisplayName, "display-name", "", "Display name (default: the GPO name)")
	gpoCreateCmd.Flags().StringVar(&gpoCreateDescription, "description", "", "Description")
	gpoCreateCmd.Flags().StringArrayVar(&gpoCreateLinkedTo, "linked-to", nil, "OU ID to link the GPO to (repeatable)")
	gpoCreateCmd.Flags().BoolVar(&gpoCreateEnforced, "enforced", false, "Enforce the GPO past inheritance blocks")
	gpoCreateCmd.Flags().BoolVar(&gpoCreateDisabled, "disabled", false, "Create the GPO disabled")
	_ = gpoCreateCmd.MarkFlagRequired("linked-to")

	gpoCmd.AddCommand(gpoCreateCmd)
	gpoCmd.AddCommand(gpoListCmd)
	gpoCmd.AddCommand(gpoLinkCmd)
	gpoCmd.AddCommand(gpoUnlinkCmd)
	gpoCmd.AddCommand(gpoSetInheritanceCmd)
	gpoCmd.AddCommand(gpoSetEnforcedCmd)
}

// parseUUIDArg parses a positional UUID argument with a named error.
func parseUUIDArg(what, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q: %w", what, raw, err)
	}
	return id, nil
}

func runGPOCreate(cmd *cobra.Command, args []string) error {
	name := args[0]
	displayName := gpoCreateDisplayName
	if displayName == "" {
		displayName = name
	}

	linkedTo := make([]uuid.UUID, 0, len(gpoCreateLinkedTo))
	for _, raw := range gpoCreateLinkedTo {
		id, err := parseUUIDArg("OU ID", raw)
		if err != nil {
			return err
		}
		linkedTo = append(linkedTo, id)
	}

	return withService(func(service *directory.Service) error {
		now := time.Now().UTC()
		gpo := &models.GroupPolicy{
			ID:                uuid.New(),
			Name:              name,
			DisplayName:       displayName,
			Description:       gpoCreateDescription,
			Version:           1,
			PolicyType:        models.PolicySecurity,
			Target:            models.PolicyTarget{Kind: models.TargetAll},
			Settings:          map[string]models.PolicyValue{},
			Enabled:           !gpoCreateDisabled,
			Enforced:          gpoCreateEnforced,
			SecurityFiltering: []models.SidOrID{},
			CreatedAt:         now,
			UpdatedAt:         now,
			LinkedTo:          linkedTo,
		}

		if err := service.CreateGPO(gpo); err != nil {
			return err
		}

		if flagJSON {
			return output.PrintJSON(os.Stdout, gpo)
		}
		fmt.Printf("Created GPO %s (%s)\n", gpo.Name, gpo.ID)
		return nil
	})
}

func runGPOList(cmd *cobra.Command, args []string) error {
	return withService(func(service *directory.Service) error {
		gpos, err := service.ListGPOs()
		if err != nil {
			return err
		}

		if flagJSON {
			return output.PrintJSON(os.Stdout, gpos)
		}

		rows := make([][]string, len(gpos))
		for i, g := range gpos {
			rows[i] = []string{
				g.ID.String(),
				g.Name,
				yesNo(g.Enabled),
				yesNo(g.Enforced),
				fmt.Sprintf("%d", len(g.LinkedTo)),
			}
		}
		output.PrintTable(os.Stdout, []string{"ID", "Name", "Enabled", "Enforced", "Links"}, rows)
		return nil
	})
}

func runGPOLink(cmd *cobra.Command, args []string) error {
	gpoID, err := parseUUIDArg("GPO ID", args[0])
	if err != nil {
		return err
	}
	ouID, err := parseUUIDArg("OU ID", args[1])
	if err != nil {
		return err
	}

	return withService(func(service *directory.Service) error {
		if err := service.LinkGPOToOU(gpoID, ouID); err != nil {
			return err
		}
		fmt.Printf("Linked GPO %s to OU %s\n", gpoID, ouID)
		return nil
	})
}

func runGPOUnlink(cmd *cobra.Command, args []string) error {
	gpoID, err := parseUUIDArg("GPO ID", args[0])
	if err != nil {
		return err
	}
	ouID, err := parseUUIDArg("OU ID", args[1])
	if err != nil {
		return err
	}

	return withService(func(service *directory.Service) error {
		if err := service.UnlinkGPOFromOU(gpoID, ouID); err != nil {
			return err
		}
		fmt.Printf("Unlinked GPO %s from OU %s\n", gpoID, ouID)
		return nil
	})
}

func runGPOSetInheritance(cmd *cobra.Command, args []string) error {
	ouID, err := parseUUIDArg("OU ID", args[0])
	if err != nil {
		return err
	}
	block, err := strconv.ParseBool(args[1])
	if err != nil {
		return fmt.Errorf("invalid boolean %q: %w", args[1], err)
	}

	return withService(func(service *directory.Service) error {
		if err := service.SetBlockInheritance(ouID, block); err != nil {
			return err
		}
		fmt.Printf("Set block-inheritance=%t on OU %s\n", block, ouID)
		return nil
	})
}

func runGPOSetEnforced(cmd *cobra.Command, args []string) error {
	ouID, err := parseUUIDArg("OU ID", args[0])
	if err != nil {
		return err
	}
	enforced, err := strconv.ParseBool(args[1])
	if err != nil {
		return fmt.Errorf("invalid boolean %q: %w", args[1], err)
	}

	return withService(func(service *directory.Service) error {
		if err := service.SetGPOEnforced(ouID, enforced); err != nil {
			return err
		}
		fmt.Printf("Set enforced=%t on GPO links of OU %s\n", enforced, ouID)
		return nil
	})
}
