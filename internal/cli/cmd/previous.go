package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/driftpaper/driftpaper/internal/ipc"
)

func NewPreviousCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "previous",
		Short: "Switch back to the previous wallpaper",
		Run: func(cmd *cobra.Command, args []string) {
			display, _ := cmd.Flags().GetString("display")
			if err := ipc.SendPrevious(display); err != nil {
				log.Fatalf("Failed to send 'previous' command: %v", err)
			}
			log.Info("Previous wallpaper command sent")
		},
	}
	cmd.Flags().StringP("display", "D", "", "Only rotate the named display")
	return cmd
}
