package client

import (
	"os"

	"github.com/spf13/cobra"

	"PowerKeeper/internal/machine"
	"PowerKeeper/internal/util"
)

var (
	FlagConfigFilePath string
	FlagNoHeader       bool

	RootCmd = &cobra.Command{
		Use:     "pkctl",
		Short:   "Inspect and override the power keeper daemon",
		Long:    "",
		Version: util.Version(),
	}
	stateCmd = &cobra.Command{
		Use:   "state [flags] state machine...",
		Short: "Force machines into a power state",
		Long:  "Force machines into one of: " + joinStateNames(),
		Args:  cobra.MinimumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			if err := ChangeState(args[0], args[1:]); err != util.ErrorSuccess {
				os.Exit(err)
			}
		},
	}
	statusCmd = &cobra.Command{
		Use:   "status [flags] [machine...]",
		Short: "Show the tracked power state of the machines, default is all",
		Long:  "",
		Run: func(cmd *cobra.Command, args []string) {
			if err := ShowStatus(args); err != util.ErrorSuccess {
				os.Exit(err)
			}
		},
	}
)

func joinStateNames() string {
	names := ""
	for i, name := range machine.StateNames() {
		if i > 0 {
			names += ", "
		}
		names += name
	}
	return names
}

func ParseCmdArgs() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(util.ErrorExecuteFailed)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&FlagConfigFilePath, "config", "C", util.DefaultConfigPath,
		"Path to configuration file")

	RootCmd.AddCommand(stateCmd)

	RootCmd.AddCommand(statusCmd)
	{
		statusCmd.Flags().BoolVarP(&FlagNoHeader, "noheader", "H", false,
			"Do not print header line in the output")
	}
}
