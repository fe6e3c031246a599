package autorest

import (
	"fmt"
	"os"

	"github.com/edgeflare/autorest/pkg/config"
	"github.com/spf13/cobra"
)

var cfgFile string
var cfg *config.Config
var rootCmd = &cobra.Command{
	Use:   "autorest",
	Short: "autorest serves reflected database tables as a REST API",
	Long: `autorest inspects the configured databases at startup and synthesizes a
REST endpoint for every discovered table, without hand-written schema or
model code.`,
	Run: func(cmd *cobra.Command, args []string) {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			fmt.Println(config.Version)
			return
		}

		// If no subcommand is provided, print help
		cmd.Help() //nolint:errcheck
	},
}

func Main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/autorest.yaml)")
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Print the version number")

	rootCmd.AddCommand(serveCmd)
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Println("Error loading config:", err)
		os.Exit(1)
	}
}
