package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/driftpaper/driftpaper/internal/ipc"
)

func NewNextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Switch to the next wallpaper",
		Run: func(cmd *cobra.Command, args []string) {
			display, _ := cmd.Flags().GetString("display")
			if err := ipc.SendNext(display); err != nil {
				log.Fatalf("Failed to send 'next' command: %v", err)
			}
			log.Info("Next wallpaper command sent")
		},
	}
	cmd.Flags().StringP("display", "D", "", "Only rotate the named display")
	return cmd
}
