package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loykin/reqpipe/cmd/reqpipe/config"
)

const defaultConfigPath = "./config/config.yaml"

var rootCmd = &cobra.Command{
	Use:           "reqpipe",
	Short:         "Execute API client requests and stream their events",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	v := viper.GetViper()
	v.SetDefault("config", defaultConfigPath)
	config.SetDefaults(v)
	// Environment variables support: REQPIPE_CONFIG, REQPIPE_SERVER_ADDR, ...
	config.BindEnv(v)

	rootCmd.PersistentFlags().String("config", v.GetString("config"), "path to a config yaml")
	_ = v.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		exitHandler.Fail(err, "command execution failed")
	}
}
