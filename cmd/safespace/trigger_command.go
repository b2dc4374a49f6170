package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"safespace/internal/ipc"
)

func newTriggerCommand(ctx *commandContext) *cobra.Command {
	var lane string

	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Raise a manual accident report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Trigger(lane)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if !resp.Accepted {
					fmt.Fprintf(stdout, "Trigger %s\n", resp.Message)
					return nil
				}
				fmt.Fprintf(stdout, "Report %s submitted\n", resp.ReportID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&lane, "lane", "0", "Lane number to report the accident on")
	return cmd
}

func newDetectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Run every loaded model against the current frame",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Detect()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Results) == 0 {
					fmt.Fprintln(stdout, "No models loaded")
					return nil
				}
				rows := make([][]string, 0, len(resp.Results))
				for _, result := range resp.Results {
					rows = append(rows, []string{result.Model, fmt.Sprintf("%d", result.Boxes)})
				}
				fmt.Fprintln(stdout, renderTable([]string{"Model", "Boxes"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}
