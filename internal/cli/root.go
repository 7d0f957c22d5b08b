package cli

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/driftpaper/driftpaper"
	"github.com/driftpaper/driftpaper/internal/cli/cmd"
	"github.com/driftpaper/driftpaper/internal/cli/cmd/utils"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "driftpaper",
	Short: "A per-monitor rotating wallpaper daemon",
	Long: `Driftpaper renders a wallpaper on every connected monitor and rotates
images on a per-monitor schedule, crossfading between them with OpenGL.`,
	Run: func(c *cobra.Command, args []string) {
		if v, err := c.Flags().GetBool("show-config"); err == nil && v {
			log.Infof("Using config file: %v", viper.ConfigFileUsed())
			log.Infof("All settings:")
			utils.PrintJSONColored(viper.AllSettings())
			return
		}

		if v, err := c.Flags().GetBool("installconfig"); err == nil && v {
			utils.InstallDefaultConfig()
			return
		}

		if v, err := c.Flags().GetBool("version"); err == nil && v {
			babyBlue := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
			green := lipgloss.NewStyle().Foreground(lipgloss.Color("76"))
			log.Infof("%v version %v",
				babyBlue.Render("driftpaper"),
				green.Render(strings.Trim(driftpaper.Version, "\n\r ")))
			return
		}

		if v, err := c.Flags().GetBool("debug"); err == nil && v {
			log.SetLevel(log.DebugLevel)
			viper.Set("debug", true)
		}

		cmd.StartManager()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.AddCommand(cmd.NewStartCmd())
	rootCmd.AddCommand(cmd.NewStopCmd())
	rootCmd.AddCommand(cmd.NewNextCmd())
	rootCmd.AddCommand(cmd.NewPreviousCmd())
	rootCmd.AddCommand(cmd.NewStatusCmd())
	rootCmd.AddCommand(cmd.NewReloadCmd())
	rootCmd.AddCommand(cmd.NewGenManCmd(rootCmd))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(InitConfig)
	RegisterFlags(rootCmd)
}
