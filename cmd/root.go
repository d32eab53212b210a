package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"perftest/internal/banner"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "perftest",
	Short: "Load-test orchestrator for LLM gateway endpoints",
	Long: `
perftest drives closed-loop load against an OpenAI-compatible gateway and
reports normalized latency statistics per scenario.

It runs as an HTTP service (serve) that triggers tests on request, or fires
scenarios directly from the terminal (run).`,
}

func Execute() {
	// Custom Help with Banner
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.perftest.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stubCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".perftest")
		}
	}
	viper.AutomaticEnv()
	viper.ReadInConfig()
}
