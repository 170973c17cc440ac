package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/emberkv/emberkv/internal/config"
	"github.com/emberkv/emberkv/internal/version"
)

var (
	rootCmd = &cobra.Command{
		Use:   "emberkv",
		Short: "in-memory namespaced key-value server",
		Long: fmt.Sprintf(`EmberKV (v%s)

An in-memory key-value server speaking the Redis protocol, with strings,
lists, hashes, sets and sorted sets in independent namespaces.`, version.Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version of EmberKV",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// initConfig loads .env files and maps EMBERKV_* variables onto the keys.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	config.BindEnv(viper.GetViper())
}
