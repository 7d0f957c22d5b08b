package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/driftpaper/driftpaper/internal/ipc"
)

func NewReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Re-read the config file and reconcile all displays",
		Run: func(cmd *cobra.Command, args []string) {
			if err := ipc.SendReload(); err != nil {
				log.Fatalf("Failed to send 'reload' command: %v", err)
			}
			log.Info("Reload command sent")
		},
	}
}
