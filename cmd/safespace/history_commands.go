package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"safespace/internal/ipc"
)

func newFailuresCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "failures",
		Short: "Show recent tracked failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Failures(limit)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Failures) == 0 {
					fmt.Fprintln(stdout, "No failures recorded")
					return nil
				}
				rows := make([][]string, 0, len(resp.Failures))
				for _, failure := range resp.Failures {
					rows = append(rows, []string{
						failure.Timestamp,
						failure.Kind,
						yesNo(failure.Critical),
						failure.Message,
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"Time", "Kind", "Critical", "Message"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft}))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of failures to show")
	return cmd
}

func newReportsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Show recent accident reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Reports(limit)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Reports) == 0 {
					fmt.Fprintln(stdout, "No reports recorded")
					return nil
				}
				rows := make([][]string, 0, len(resp.Reports))
				for _, report := range resp.Reports {
					source := "manual"
					if report.AIDetected {
						source = "ai"
					}
					rows = append(rows, []string{
						shortID(report.ID),
						report.Lane,
						source,
						strconv.Itoa(report.MediaCount),
						report.Status,
						report.CreatedAt,
						report.ResolvedAt,
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"ID", "Lane", "Source", "Media", "Status", "Created", "Resolved"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignLeft}))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of reports to show")
	return cmd
}

func newInstructionsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "instructions",
		Short: "Show recent Central Unit instructions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Instructions(limit)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Instructions) == 0 {
					fmt.Fprintln(stdout, "No instructions recorded")
					return nil
				}
				rows := make([][]string, 0, len(resp.Instructions))
				for _, instruction := range resp.Instructions {
					rows = append(rows, []string{
						instruction.ReceivedAt,
						instruction.Event,
						yesNo(instruction.IsAccident),
						strconv.Itoa(instruction.SpeedLimit),
						strings.Join(instruction.LaneStates, ","),
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"Received", "Event", "Accident", "Speed", "Lanes"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft}))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of instructions to show")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
