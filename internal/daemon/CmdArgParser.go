package daemon

import (
	"os"

	"github.com/spf13/cobra"

	"PowerKeeper/internal/util"
)

var (
	FlagConfigFilePath string
	FlagUser           string
	FlagPassword       string
	FlagManifestFile   string
	FlagStateFile      string
	FlagLogLevel       string

	RootCmd = &cobra.Command{
		Use:     "powerkeeperd",
		Short:   "Daemon matching machine power to batch job demand",
		Long:    "",
		Version: util.Version(),
	}
	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the daemon in the foreground",
		Long:  "",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := Start(); err != util.ErrorSuccess {
				os.Exit(err)
			}
		},
	}
	stopCmd = &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Long:  "",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := Stop(); err != util.ErrorSuccess {
				os.Exit(err)
			}
		},
	}
	reloadCmd = &cobra.Command{
		Use:   "reload",
		Short: "Make the running daemon reload its machine manifest",
		Long:  "",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if err := Reload(); err != util.ErrorSuccess {
				os.Exit(err)
			}
		},
	}
)

func ParseCmdArgs() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(util.ErrorExecuteFailed)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&FlagConfigFilePath, "config", "C", util.DefaultConfigPath,
		"Path to configuration file")

	RootCmd.AddCommand(startCmd)
	{
		startCmd.Flags().StringVarP(&FlagUser, "user", "u", "",
			"Management interface user, overrides configuration")
		startCmd.Flags().StringVarP(&FlagPassword, "password", "p", "",
			"Management interface password, overrides configuration and the IPMIPASSWORD environment variable")
		startCmd.Flags().StringVarP(&FlagManifestFile, "manifest", "m", "",
			"Path to machine manifest, overrides configuration")
		startCmd.Flags().StringVarP(&FlagStateFile, "state-file", "s", "",
			"Path to state snapshot file, overrides configuration")
		startCmd.Flags().StringVarP(&FlagLogLevel, "level", "l", "",
			"Log level (trace/debug/info/warn/error), overrides configuration")
	}

	RootCmd.AddCommand(stopCmd)

	RootCmd.AddCommand(reloadCmd)
	{
		reloadCmd.Flags().StringVarP(&FlagManifestFile, "manifest", "m", "",
			"Path to a new machine manifest, defaults to the one the daemon was started with")
	}
}
