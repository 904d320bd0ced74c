package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/m3rciful/relaybot/bot/app"
	"github.com/m3rciful/relaybot/bot/config"
	"github.com/m3rciful/relaybot/core/buildinfo"
	corecmd "github.com/m3rciful/relaybot/core/cmd"
)

const defaultConfigPath = "config.yaml"

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "relaybot",
		Short:        "Telegram feedback relay between users and one operator",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config (default $CONFIG_PATH or "+defaultConfigPath+")")

	path := func() string {
		return corecmd.ResolveConfigPath(configPath, "CONFIG_PATH", defaultConfigPath)
	}
	cmd.AddCommand(newRunCmd(path))
	cmd.AddCommand(newMigrateCmd(path))
	cmd.AddCommand(newReportCmd(path))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newRunCmd(path func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the bot until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return corecmd.Run(corecmd.Options{
				ConfigPath: path(),
				LoadConfig: func(p string) (corecmd.ConfigCarrier, error) {
					return config.Load(p)
				},
				Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
					return app.New(cfg.(*config.AppConfig))
				},
			})
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "relaybot %s\n", buildinfo.String())
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
