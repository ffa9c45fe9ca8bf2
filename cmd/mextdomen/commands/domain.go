package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mextdomen/mextdomen/internal/cli/output"
	"github.com/mextdomen/mextdomen/pkg/directory"
)

var domainCmd = &cobra.Command{
	Use:   "domain",
	Short: "Manage domains",
}

var domainCreateDNS string

var domainCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create and bootstrap a new domain",
	Long: `Create a domain together with its well-known containers and the
built-in Domain Users and Domain Admins groups.`,
	Args: cobra.ExactArgs(1),
	RunE: runDomainCreate,
}

var domainListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all domains",
	Args:  cobra.NoArgs,
	RunE:  runDomainList,
}

func init() {
	domainCreateCmd.Flags().StringVar(&domainCreateDNS, "dns-name", "", "DNS name of the domain")
	_ = domainCreateCmd.MarkFlagRequired("dns-name")

	domainCmd.AddCommand(domainCreateCmd)
	domainCmd.AddCommand(domainListCmd)
}

func runDomainCreate(cmd *cobra.Command, args []string) error {
	return withService(func(service *directory.Service) error {
		domain, err := service.BootstrapDomain(args[0], domainCreateDNS)
		if err != nil {
			return err
		}

		if flagJSON {
			return output.PrintJSON(os.Stdout, domain)
		}
		output.PrintKeyValues(os.Stdout, [][2]string{
			{"ID", domain.ID.String()},
			{"Name", domain.Name},
			{"DNS name", domain.DNSName},
			{"NetBIOS name", domain.NetBIOSName},
			{"SID", domain.SID.String()},
			{"Base DN", domain.DN()},
		})
		return nil
	})
}

func runDomainList(cmd *cobra.Command, args []string) error {
	return withService(func(service *directory.Service) error {
		domains, err := service.ListDomains()
		if err != nil {
			return err
		}

		if flagJSON {
			return output.PrintJSON(os.Stdout, domains)
		}

		rows := make([][]string, len(domains))
		for i, d := range domains {
			rows[i] = []string{
				d.ID.String(),
				d.Name,
				d.DNSName,
				d.NetBIOSName,
				yesNo(d.Enabled),
			}
		}
		output.PrintTable(os.Stdout, []string{"ID", "Name", "DNS", "NetBIOS", "Enabled"}, rows)
		return nil
	})
}
