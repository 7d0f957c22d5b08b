package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/driftpaper/driftpaper/internal/cli/cmd/utils"
	"github.com/driftpaper/driftpaper/internal/ipc"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get driftpaper status",
		Long:  `Returns the current status of the driftpaper process, including the wallpaper and next rotation of every display.`,
		Run: func(cmd *cobra.Command, args []string) {
			response, err := ipc.SendStatus()
			if err != nil {
				log.Errorf("Error fetching status: %v", err)
				return
			}

			utils.PrintJSONColored(response)
		},
	}
}
