package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/bryanchriswhite/camcorder/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage camcorder configuration",
	Long:  `View and manage camcorder settings and device capability tables.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the current settings. With --device, display the capability table
of the active profile instead, defaults included.`,
	Example: `  # Show configuration as YAML (default)
  camcorder config show

  # Show configuration as JSON
  camcorder config show --format json

  # Show the resolved device capability table
  camcorder config show --device`,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a configuration value",
	Example: `  # Set server port
  camcorder config set server_port 9090

  # Set log level
  camcorder config set log_level debug`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Get a configuration value",
	Example: `  # Get server port
  camcorder config get server_port

  # Get the preview frame rate
  camcorder config get preview.fps`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	RunE:  runConfigPath,
}

var (
	formatFlag string
	deviceFlag bool
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configPathCmd)

	configShowCmd.Flags().StringVarP(&formatFlag, "format", "f", "yaml", "output format (yaml or json)")
	configShowCmd.Flags().BoolVar(&deviceFlag, "device", false, "show the active device capability table")
}

func encode(v any) error {
	switch formatFlag {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	case "yaml":
		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		return encoder.Encode(v)
	default:
		return fmt.Errorf("unsupported format: %s (use 'yaml' or 'json')", formatFlag)
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	_, cfg, profile, err := loadSettings()
	if err != nil {
		return err
	}
	if !deviceFlag {
		return encode(cfg)
	}

	store, err := config.Load(profile.DeviceConfigs...)
	if err != nil {
		return err
	}
	return encode(store.Entries())
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch key {
	case "server_port":
		var port int
		if _, err := fmt.Sscanf(value, "%d", &port); err != nil || port <= 0 {
			return fmt.Errorf("invalid port number: %s", value)
		}
		err = configMgr.SetPort(port)
	case "log_level":
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[value] {
			return fmt.Errorf("invalid log level: %s (use: debug, info, warn, error)", value)
		}
		err = configMgr.SetLogLevel(value)
	default:
		return fmt.Errorf("unsupported key: %s (edit %s for other settings)", key, configMgr.Path())
	}
	if err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("✅ Configuration updated: %s = %s\n", key, value)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// round-trip through YAML so dotted keys follow the file layout
	data, err := yaml.Marshal(configMgr.Get())
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}

	v, ok := lookup(tree, key)
	if !ok {
		return fmt.Errorf("configuration key not found: %s", key)
	}
	fmt.Println(v)
	return nil
}

func lookup(tree map[string]any, key string) (any, bool) {
	var cur any = tree
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println(configMgr.Path())
	return nil
}
