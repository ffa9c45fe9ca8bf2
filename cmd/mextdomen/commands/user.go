package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mextdomen/mextdomen/internal/cli/output"
	"github.com/mextdomen/mextdomen/internal/cli/prompt"
	"github.com/mextdomen/mextdomen/pkg/directory"
	"github.com/mextdomen/mextdomen/pkg/models"
	"github.com/mextdomen/mextdomen/pkg/sid"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var (
	userCreateEmail       string
	userCreateDisplayName string
	userCreateGivenName   string
	userCreateSurname     string
	userCreatePassword    string

	userRenameUsername    string
	userRenameDisplayName string
)

var userCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Create a new user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserCreate,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	Args:  cobra.NoArgs,
	RunE:  runUserList,
}

var userShowCmd = &cobra.Command{
	Use:   "show <username>",
	Short: "Show a user's details",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserShow,
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Delete a user",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserDelete,
}

var userRenameCmd = &cobra.Command{
	Use:   "rename <username>",
	Short: "Change a user's username or display name",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserRename,
}

func init() {
	userCreateCmd.Flags().StringVar(&userCreateEmail, "email", "", "Email address")
	userCreateCmd.Flags().StringVar(&userCreateDisplayName, "display-name", "", "Display name")
	userCreateCmd.Flags().StringVar(&userCreateGivenName, "given-name", "", "Given name")
	userCreateCmd.Flags().StringVar(&userCreateSurname, "surname", "", "Surname")
	userCreateCmd.Flags().StringVarP(&userCreatePassword, "password", "p", "", "Password (prompts when omitted)")

	userRenameCmd.Flags().StringVar(&userRenameUsername, "new-username", "", "New username")
	userRenameCmd.Flags().StringVar(&userRenameDisplayName, "display-name", "", "New display name")

	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userShowCmd)
	userCmd.AddCommand(userDeleteCmd)
	userCmd.AddCommand(userRenameCmd)
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	username := args[0]

	password := userCreatePassword
	if password == "" {
		var err error
		password, err = prompt.PasswordWithConfirmation("Password", "Confirm password", 8)
		if err != nil {
			return err
		}
	}

	return withService(func(service *directory.Service) error {
		hash, err := models.NewBcryptHash(password)
		if err != nil {
			return err
		}

		dnsName := "corp.acme.com"
		var domainIDs []uuid.UUID
		userSID := sid.NewNTAuthority(1001)
		if domains, err := service.ListDomains(); err == nil && len(domains) > 0 {
			dnsName = domains[0].DNSName
			domainIDs = []uuid.UUID{domains[0].ID}
			if domains[0].SID != nil {
				userSID = domains[0].SID.WithRID(1001)
			}
		}

		now := time.Now().UTC()
		primaryGroup := uint32(513)
		user := &models.User{
			ID:                 uuid.New(),
			SID:                userSID,
			Username:           username,
			UserPrincipalName:  username + "@" + dnsName,
			Email:              userCreateEmail,
			DisplayName:        userCreateDisplayName,
			GivenName:          userCreateGivenName,
			Surname:            userCreateSurname,
			PasswordHash:       hash,
			LastPasswordChange: now,
			Enabled:            true,
			Domains:            domainIDs,
			Groups:             []uuid.UUID{},
			CreatedAt:          now,
			UpdatedAt:          now,
			Meta:               map[string]string{},
			PrimaryGroupID:     &primaryGroup,
		}

		if err := service.CreateUser(user); err != nil {
			return err
		}

		if flagJSON {
			return output.PrintJSON(os.Stdout, user)
		}
		fmt.Printf("Created user %s (%s)\n", user.Username, user.ID)
		return nil
	})
}

func runUserList(cmd *cobra.Command, args []string) error {
	return withService(func(service *directory.Service) error {
		users, err := service.ListUsers()
		if err != nil {
			return err
		}

		if flagJSON {
			return output.PrintJSON(os.Stdout, users)
		}

		rows := make([][]string, len(users))
		for i, u := range users {
			rows[i] = []string{
				u.ID.String(),
				u.Username,
				u.Email,
				yesNo(u.Enabled),
				formatTime(u.CreatedAt),
			}
		}
		output.PrintTable(os.Stdout, []string{"ID", "Username", "Email", "Enabled", "Created"}, rows)
		return nil
	})
}

func runUserShow(cmd *cobra.Command, args []string) error {
	return withService(func(service *directory.Service) error {
		user, err := service.FindUserByUsername(args[0])
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("user not found: %s", args[0])
		}

		if flagJSON {
			return output.PrintJSON(os.Stdout, user)
		}

		output.PrintKeyValues(os.Stdout, [][2]string{
			{"ID", user.ID.String()},
			{"SID", user.SID.String()},
			{"Username", user.Username},
			{"UPN", user.UserPrincipalName},
			{"Email", user.Email},
			{"Display name", user.DisplayName},
			{"Enabled", yesNo(user.Enabled)},
			{"Failed logins", fmt.Sprintf("%d", user.FailedLogins)},
			{"Last login", formatTimePtr(user.LastLogin)},
			{"Created", formatTime(user.CreatedAt)},
			{"Updated", formatTime(user.UpdatedAt)},
		})
		return nil
	})
}

func runUserDelete(cmd *cobra.Command, args []string) error {
	return withService(func(service *directory.Service) error {
		user, err := service.FindUserByUsername(args[0])
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("user not found: %s", args[0])
		}

		if err := service.DeleteUser(user.ID); err != nil {
			return err
		}
		fmt.Printf("Deleted user %s\n", args[0])
		return nil
	})
}

func runUserRename(cmd *cobra.Command, args []string) error {
	if userRenameUsername == "" && userRenameDisplayName == "" {
		return fmt.Errorf("nothing to change: pass --new-username or --display-name")
	}

	return withService(func(service *directory.Service) error {
		user, err := service.FindUserByUsername(args[0])
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("user not found: %s", args[0])
		}

		var newUsername, newDisplayName *string
		if userRenameUsername != "" {
			newUsername = &userRenameUsername
		}
		if userRenameDisplayName != "" {
			newDisplayName = &userRenameDisplayName
		}

		if err := service.RenameUser(user.ID, newUsername, newDisplayName); err != nil {
			return err
		}
		fmt.Printf("Renamed user %s\n", args[0])
		return nil
	})
}
