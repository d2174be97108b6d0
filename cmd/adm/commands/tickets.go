package commands

import (
	"strconv"

	"appfeedback/internal/models"
	contextutils "appfeedback/internal/utils"

	"github.com/spf13/cobra"
)

// TicketCommands returns the ticket inspection commands
func TicketCommands(provider ContainerProvider) *cobra.Command {
	ticketsCmd := &cobra.Command{
		Use:   "tickets",
		Short: "Ticket inspection commands",
	}
	ticketsCmd.AddCommand(listTicketsCmd(provider))
	ticketsCmd.AddCommand(ticketStatsCmd(provider))
	return ticketsCmd
}

func listTicketsCmd(provider ContainerProvider) *cobra.Command {
	var includeArchived bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tickets, newest report first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			container, err := provider(ctx)
			if err != nil {
				return err
			}
			ticketService, err := container.GetTicketService()
			if err != nil {
				return err
			}

			tickets, err := ticketService.ListTickets(ctx, includeArchived)
			if err != nil {
				return contextutils.WrapError(err, "failed to list tickets")
			}
			cmd.Printf("%-60s %-10s %-8s %-8s %s\n", "Ticket", "Platform", "Reports", "Archived", "Name")
			for _, t := range tickets {
				cmd.Printf("%-60s %-10s %-8d %-8s %s\n", t.ID, t.Platform, len(t.ReportIDs), strconv.FormatBool(t.Archived), t.Name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&includeArchived, "include-archived", false, "Include archived tickets")
	return cmd
}

func ticketStatsCmd(provider ContainerProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "stats TICKET_ID",
		Short: "Print the daily stats of a ticket as JSON",
		Long: `Print the daily stats of a ticket as JSON. The pseudo ticket ids
"` + models.AllAndroidReportsStatsTicketID + `" and "` + models.UnticketedAndroidReportsStatsTicketID + `" select the aggregate buckets.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			container, err := provider(ctx)
			if err != nil {
				return err
			}
			statsService, err := container.GetStatsService()
			if err != nil {
				return err
			}

			stats, err := statsService.GetTicketStats(ctx, args[0])
			if err != nil {
				return contextutils.WrapError(err, "failed to load ticket stats")
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}
