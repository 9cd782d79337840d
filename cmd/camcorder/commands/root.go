package commands

import (
	"fmt"
	"os"

	"github.com/bryanchriswhite/camcorder/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is stamped at build time
var Version = "dev"

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "camcorder",
		Short: "camcorder - camera and recorder engine",
		Long: `camcorder drives a camera device through its lifecycle: preview,
still capture bursts and audio/video recording.

Features:
  • Device capability tables loaded from YAML profiles
  • Typed attribute store with state and range checks
  • GStreamer or in-memory pipeline backends
  • V4L2 sensor controls and GPIO strobe
  • REST API with websocket message stream
  • MJPEG preview over HTTP`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := viper.GetString("log_level")
			if level == "" {
				level = "info"
			}
			logger.Init(level, true)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/camcorder/config.yaml)")
	rootCmd.PersistentFlags().Int("port", 0, "server port (default is 8080)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("backend", "", "pipeline backend override (gstreamer, sim)")
	rootCmd.PersistentFlags().StringSlice("device-config", nil, "device capability files, overriding the active profile")

	// Bind flags to viper
	viper.BindPFlag("server_port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))
	viper.BindPFlag("device_configs", rootCmd.PersistentFlags().Lookup("device-config"))
	viper.SetEnvPrefix("camcorder")
	viper.AutomaticEnv()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}
