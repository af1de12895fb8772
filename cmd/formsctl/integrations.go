package main

import (
	"fmt"

	"github.com/aisa-it/aiforms/internal/aiforms/dto"
	"github.com/spf13/cobra"
)

var (
	syncAll bool

	ticketPriority string
	ticketTemplate string
	ticketLink     string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Export templates to the external table",
	Long: `Export templates of the current user to the external table.
Admins can export every template with --all. When the server runs a task
queue the export is only scheduled.`,
	RunE: runSync,
}

var ticketCmd = &cobra.Command{
	Use:   "ticket <summary>",
	Short: "Create a support ticket",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicket,
}

func init() {
	syncCmd.Flags().BoolVar(&syncAll, "all", false, "Export all templates (admin only)")

	ticketCmd.Flags().StringVar(&ticketPriority, "priority", "Average", "High, Average or Low")
	ticketCmd.Flags().StringVar(&ticketTemplate, "template", "", "Related template title")
	ticketCmd.Flags().StringVar(&ticketLink, "link", "", "Page link")
}

func runSync(cmd *cobra.Command, args []string) error {
	s, done, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer done()

	res, err := s.SyncTemplates(cmd.Context(), syncAll)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if res.Queued {
		fmt.Fprintln(out, "Export scheduled")
		return nil
	}
	fmt.Fprintf(out, "Exported %d templates\n", res.SuccessCount)
	for _, e := range res.Errors {
		fmt.Fprintf(out, "  %s: %s\n", e.TemplateID, e.Error)
	}
	if !res.Success {
		return fmt.Errorf("%d templates failed", len(res.Errors))
	}
	return nil
}

func runTicket(cmd *cobra.Command, args []string) error {
	s, done, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer done()

	path, err := s.CreateSupportTicket(cmd.Context(), dto.SupportTicketRequest{
		Summary:  args[0],
		Priority: ticketPriority,
		Template: ticketTemplate,
		Link:     ticketLink,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Ticket saved to %s\n", path)
	return nil
}
