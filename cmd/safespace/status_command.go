package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"safespace/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show node and road display status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}

				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)

				for _, line := range renderSectionHeader("Node Status", colorize) {
					fmt.Fprintln(stdout, line)
				}
				runningKind := statusError
				if status.Running {
					runningKind = statusOK
				}
				fmt.Fprintln(stdout, renderStatusLine("Daemon", runningKind, fmt.Sprintf("%s (pid %d)", yesNo(status.Running), status.PID), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Node ID", statusInfo, status.NodeID, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Central Unit link", boolKind(status.Online), onlineLabel(status.Online), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Camera", boolKind(status.CameraActive), activeLabel(status.CameraActive), colorize))
				awaitingKind := statusOK
				if status.AwaitingConfirmation {
					awaitingKind = statusWarn
				}
				fmt.Fprintln(stdout, renderStatusLine("Awaiting confirmation", awaitingKind, yesNo(status.AwaitingConfirmation), colorize))
				fmt.Fprintln(stdout, renderStatusLine("Models", modelsKind(status.Models), modelsLabel(status.Models), colorize))
				if status.StartedAt != "" {
					fmt.Fprintln(stdout, renderStatusLine("Started", statusInfo, status.StartedAt, colorize))
				}
				fmt.Fprintln(stdout)

				for _, line := range renderSectionHeader("Road Display", colorize) {
					fmt.Fprintln(stdout, line)
				}
				alertKind := statusOK
				alertMessage := "clear"
				if status.AlertActive {
					alertKind = statusError
					alertMessage = "accident reported"
				}
				fmt.Fprintln(stdout, renderStatusLine("Alert", alertKind, alertMessage, colorize))
				fmt.Fprintln(stdout, renderStatusLine("Speed limit", statusInfo, strconv.Itoa(status.SpeedLimit), colorize))

				if len(status.Lanes) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(status.Lanes))
				for _, lane := range status.Lanes {
					rows = append(rows, []string{strconv.Itoa(lane.Index), lane.Status})
				}
				fmt.Fprintln(stdout, renderTable([]string{"Lane", "Guidance"}, rows, []columnAlignment{alignRight, alignLeft}))
				return nil
			})
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the safespaced daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			err := ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stop()
				if err != nil {
					return err
				}
				if resp.Stopped {
					fmt.Fprintln(stdout, "Daemon stopped")
				} else {
					fmt.Fprintln(stdout, "Stop request sent")
				}
				return nil
			})
			if err != nil && strings.Contains(err.Error(), "not found") {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			return err
		},
	}
}

func onlineLabel(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}

func activeLabel(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}

func modelsKind(models []string) statusKind {
	if len(models) == 0 {
		return statusWarn
	}
	return statusOK
}

func modelsLabel(models []string) string {
	if len(models) == 0 {
		return "none loaded"
	}
	return strings.Join(models, ", ")
}
