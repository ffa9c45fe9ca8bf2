package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mextdomen/mextdomen/internal/cli/output"
	"github.com/mextdomen/mextdomen/pkg/directory"
	"github.com/mextdomen/mextdomen/pkg/models"
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage groups",
}

var (
	groupCreateSAM         string
	groupCreateDescription string
	groupMemberUserID      string
)

var groupCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new group",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupCreate,
}

var groupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all groups",
	Args:  cobra.NoArgs,
	RunE:  runGroupList,
}

var groupAddMemberCmd = &cobra.Command{
	Use:   "add-member <sam-account-name>",
	Short: "Add a user to a group",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupAddMember,
}

var groupRemoveMemberCmd = &cobra.Command{
	Use:   "remove-member <sam-account-name>",
	Short: "Remove a user from a group",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupRemoveMember,
}

var groupListMembersCmd = &cobra.Command{
	Use:   "list-members <sam-account-name>",
	Short: "List the members of a group",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupListMembers,
}

var groupDeleteCmd = &cobra.Command{
	Use:   "delete <sam-account-name>",
	Short: "Delete a group",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupDelete,
}

func init() {
	groupCreateCmd.Flags().StringVar(&groupCreateSAM, "sam-account-name", "", "SAM account name (default: upper-cased group name)")
	groupCreateCmd.Flags().StringVar(&groupCreateDescription, "description", "", "Group description")

	groupAddMemberCmd.Flags().StringVar(&groupMemberUserID, "user-id", "", "User ID to add")
	_ = groupAddMemberCmd.MarkFlagRequired("user-id")
	groupRemoveMemberCmd.Flags().StringVar(&groupMemberUserID, "user-id", "", "User ID to remove")
	_ = groupRemoveMemberCmd.MarkFlagRequired("user-id")

	groupCmd.AddCommand(groupCreateCmd)
	groupCmd.AddCommand(groupListCmd)
	groupCmd.AddCommand(groupAddMemberCmd)
	groupCmd.AddCommand(groupRemoveMemberCmd)
	groupCmd.AddCommand(groupListMembersCmd)
	groupCmd.AddCommand(groupDeleteCmd)
}

// findGroupBySAM resolves a group argument, mapping a miss to a CLI error.
func findGroupBySAM(service *directory.Service, sam string) (*models.Group, error) {
	group, err := service.FindGroupBySAMAccountName(sam)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, fmt.Errorf("group not found: %s", sam)
	}
	return group, nil
}

func runGroupCreate(cmd *cobra.Command, args []string) error {
	name := args[0]
	sam := groupCreateSAM
	if sam == "" {
		sam = strings.ToUpper(name)
	}

	return withService(func(service *directory.Service) error {
		var domainID uuid.UUID
		if domains, err := service.ListDomains(); err == nil && len(domains) > 0 {
			domainID = domains[0].ID
		}

		group := models.NewGroup(name, sam, domainID, models.GroupSecurity, models.ScopeGlobal)
		group.Description = groupCreateDescription

		if err := service.CreateGroup(group); err != nil {
			return err
		}

		if flagJSON {
			return output.PrintJSON(os.Stdout, group)
		}
		fmt.Printf("Created group %s (%s)\n", group.SAMAccountName, group.ID)
		return nil
	})
}

func runGroupList(cmd *cobra.Command, args []string) error {
	return withService(func(service *directory.Service) error {
		groups, err := service.ListGroups()
		if err != nil {
			return err
		}

		if flagJSON {
			return output.PrintJSON(os.Stdout, groups)
		}

		rows := make([][]string, len(groups))
		for i, g := range groups {
			rows[i] = []string{
				g.ID.String(),
				g.Name,
				g.SAMAccountName,
				fmt.Sprintf("%d", len(g.Members)),
				formatTime(g.CreatedAt),
			}
		}
		output.PrintTable(os.Stdout, []string{"ID", "Name", "SAM", "Members", "Created"}, rows)
		return nil
	})
}

func runGroupAddMember(cmd *cobra.Command, args []string) error {
	userID, err := uuid.Parse(groupMemberUserID)
	if err != nil {
		return fmt.Errorf("invalid user ID %q: %w", groupMemberUserID, err)
	}

	return withService(func(service *directory.Service) error {
		group, err := findGroupBySAM(service, args[0])
		if err != nil {
			return err
		}
		if err := service.AddMemberToGroup(group.ID, userID); err != nil {
			return err
		}
		fmt.Printf("Added %s to %s\n", userID, group.SAMAccountName)
		return nil
	})
}

func runGroupRemoveMember(cmd *cobra.Command, args []string) error {
	userID, err := uuid.Parse(groupMemberUserID)
	if err != nil {
		return fmt.Errorf("invalid user ID %q: %w", groupMemberUserID, err)
	}

	return withService(func(service *directory.Service) error {
		group, err := findGroupBySAM(service, args[0])
		if err != nil {
			return err
		}
		if err := service.RemoveMemberFromGroup(group.ID, userID); err != nil {
			return err
		}
		fmt.Printf("Removed %s from %s\n", userID, group.SAMAccountName)
		return nil
	})
}

func runGroupListMembers(cmd *cobra.Command, args []string) error {
	return withService(func(service *directory.Service) error {
		group, err := findGroupBySAM(service, args[0])
		if err != nil {
			return err
		}

		members := make([]*models.User, 0, len(group.Members))
		for _, id := range group.Members {
			user, err := service.GetUser(id)
			if err != nil {
				return fmt.Errorf("load member %s: %w", id, err)
			}
			members = append(members, user)
		}

		if flagJSON {
			return output.PrintJSON(os.Stdout, members)
		}

		rows := make([][]string, len(members))
		for i, u := range members {
			rows[i] = []string{u.ID.String(), u.Username, u.DisplayName}
		}
		output.PrintTable(os.Stdout, []string{"ID", "Username", "Display name"}, rows)
		return nil
	})
}

func runGroupDelete(cmd *cobra.Command, args []string) error {
	return withService(func(service *directory.Service) error {
		group, err := findGroupBySAM(service, args[0])
		if err != nil {
			return err
		}
		if err := service.DeleteGroup(group.ID); err != nil {
			return err
		}
		fmt.Printf("Deleted group %s\n", group.SAMAccountName)
		return nil
	})
}
