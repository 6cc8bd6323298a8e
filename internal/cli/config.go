package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chardev/chardev/pkg/api"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default name of the config file
const DefaultConfigFile = "config.yaml"

// DefaultDeviceNode is used when neither flags nor the config file name an
// endpoint.
const DefaultDeviceNode = "/dev/char_dev"

const configVersion = "0.1.0"

// Config represents the configuration for chardevctl
type Config struct {
	// Version of the configuration file format
	Version string `yaml:"version" json:"version"`
	// ServerURL is the URL of chardevd, e.g. http://127.0.0.1:8790
	ServerURL string `yaml:"server_url,omitempty" json:"server_url,omitempty"`
	// DeviceNode is the socket chardevd registers the device at
	DeviceNode string `yaml:"device_node,omitempty" json:"device_node,omitempty"`
}

var config *Config

// GetDefaultConfigPath returns the default path for the config file,
// $XDG_CONFIG_HOME/chardev/config.yaml on Linux.
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "chardev", DefaultConfigFile), nil
}

// LoadConfig loads the configuration from the specified file
// If no file is specified, it uses the default config location
func LoadConfig(file string) error {
	if file == "" {
		var err error
		file, err = GetDefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get default config path: %w", err)
		}
	}

	yamlStr, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("unable to read config file: %w", err)
	}

	var c Config
	if err = yaml.Unmarshal(yamlStr, &c); err != nil {
		return fmt.Errorf("unable to parse config file: %w", err)
	}
	if err := c.ValidateConfig(); err != nil {
		return err
	}

	c.ServerURL = MorphServer(c.ServerURL)
	config = &c
	return nil
}

// GetConfig returns the current configuration
func GetConfig() *Config {
	return config
}

// WriteConfig writes the configuration to file.
func (cfg *Config) WriteConfig(file string) error {
	if file == "" {
		return errors.New("file path cannot be empty")
	}

	err := os.MkdirAll(filepath.Dir(file), os.ModePerm)
	if err != nil {
		return fmt.Errorf("unable to create config directory: %w", err)
	}

	yamlStr, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("unable to generate configuration: %w", err)
	}

	err = os.WriteFile(file, yamlStr, os.FileMode(0600))
	if err != nil {
		return fmt.Errorf("unable to write config file: %w", err)
	}

	return nil
}

// ValidateConfig checks that at most one endpoint is set and that a server
// URL names a port.
func (cfg *Config) ValidateConfig() error {
	if cfg.ServerURL != "" && cfg.DeviceNode != "" {
		return errors.New("set either server_url or device_node, not both")
	}
	if cfg.ServerURL != "" && !strings.Contains(strings.TrimPrefix(strings.TrimPrefix(cfg.ServerURL, "http://"), "https://"), ":") {
		return errors.New("server_url must include port number")
	}
	return nil
}

// MorphServer adds http:// to a server without a scheme and drops trailing
// slashes.
func MorphServer(server string) string {
	if server == "" {
		return server
	}
	server = strings.TrimRight(server, "/")
	if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
		server = "http://" + server
	}
	return server
}

// resolveTarget picks the endpoint: flags first, then the config file, then
// the default device node.
func resolveTarget() (string, error) {
	switch {
	case serverURL != "" && deviceNode != "":
		return "", errors.New("--server and --device cannot be used together")
	case serverURL != "":
		return MorphServer(serverURL), nil
	case deviceNode != "":
		return deviceNode, nil
	}

	if err := LoadConfig(configFile); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
	} else if cfg := GetConfig(); cfg.ServerURL != "" {
		return cfg.ServerURL, nil
	} else if cfg.DeviceNode != "" {
		return cfg.DeviceNode, nil
	}
	return DefaultDeviceNode, nil
}

// newClient is replaced in tests.
var newClient = func(target string) (*api.Client, error) {
	return api.NewClient(target)
}

func getClient() (*api.Client, error) {
	target, err := resolveTarget()
	if err != nil {
		return nil, err
	}
	return newClient(target)
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long: `Manage the chardevctl configuration file.

Examples:
  # Reach chardevd over HTTP
  chardevctl config set --server 127.0.0.1:8790

  # Reach chardevd through its device node
  chardevctl config set --device /run/chardev/char_dev`,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Write the endpoint given by --server or --device to the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return setEndpointConfig(cmd)
		},
	}
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := LoadConfig(configFile); err != nil {
				return err
			}
			if jsonOutput {
				printJSON(cmd, GetConfig())
			} else {
				GetConfig().Print(cmd)
			}
			return nil
		},
	}

	configCmd.AddCommand(setCmd, showCmd)
	return configCmd
}

// Print prints the configuration in a human-readable format
func (cfg *Config) Print(cmd *cobra.Command) {
	if cfg.ServerURL != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Server: %s\n", cfg.ServerURL)
	}
	if cfg.DeviceNode != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Device node: %s\n", cfg.DeviceNode)
	}
}

func setEndpointConfig(cmd *cobra.Command) error {
	configPath := configFile
	if configPath == "" {
		var err error
		configPath, err = GetDefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get default config path: %w", err)
		}
	}

	cfg := &Config{
		Version:    configVersion,
		ServerURL:  MorphServer(serverURL),
		DeviceNode: deviceNode,
	}
	if cfg.ServerURL == "" && cfg.DeviceNode == "" {
		return errors.New("one of --server or --device is required")
	}
	if err := cfg.ValidateConfig(); err != nil {
		return err
	}
	if err := cfg.WriteConfig(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if jsonOutput {
		printJSON(cmd, map[string]string{
			"server":      cfg.ServerURL,
			"device_node": cfg.DeviceNode,
			"config_file": configPath,
		})
	} else {
		cfg.Print(cmd)
		fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n", configPath)
	}
	return nil
}
