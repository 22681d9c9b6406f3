package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// projectConfigFiles is the search order for project config files
var projectConfigFiles = []string{"bytevault.toml", "bv.toml"}

// ProjectConfig is the project-level TOML configuration
type ProjectConfig struct {
	Server           string            `toml:"server"`
	CompilerVersion  string            `toml:"compiler_version,omitempty"`
	EvmVersion       string            `toml:"evm_version,omitempty"`
	OptimizationRuns *int              `toml:"optimization_runs,omitempty"`
	SourceDir        string            `toml:"source_dir,omitempty"`
	Sources          []string          `toml:"sources,omitempty"`
	StandardJSON     string            `toml:"standard_json,omitempty"`
	Libraries        map[string]string `toml:"libraries,omitempty"`
	Deployments      []DeploymentTOML  `toml:"deployments,omitempty"`
}

// DeploymentTOML describes one on-chain deployment in the project config
type DeploymentTOML struct {
	ChainID          int64  `toml:"chain_id"`
	Address          string `toml:"address"`
	TransactionHash  string `toml:"transaction_hash,omitempty"`
	BlockNumber      *int64 `toml:"block_number,omitempty"`
	TransactionIndex *int64 `toml:"transaction_index,omitempty"`
	Deployer         string `toml:"deployer,omitempty"`
	CreationCode     string `toml:"creation_code,omitempty"`
	CreationCodeFile string `toml:"creation_code_file,omitempty"`
	RuntimeCode      string `toml:"runtime_code,omitempty"`
	RuntimeCodeFile  string `toml:"runtime_code_file,omitempty"`
}

// ServerConfig is the global server configuration (stored in ~/.bytevault/config.yaml)
type ServerConfig struct {
	Server string `yaml:"server"`
}

func createConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.AddCommand(createConfigInitCmd())
	cmd.AddCommand(createConfigShowCmd())

	return cmd
}

func createConfigInitCmd() *cobra.Command {
	var serverURL string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create config file",
		Long: `Create a bytevault.toml configuration file in the current directory.

This file stores project-specific settings like the server URL,
compiler settings, source files, and known deployments for batch import.

EXAMPLES:
  # Create config with default server
  bytevault config init

  # Create config for a specific server
  bytevault config init --server https://bytevault.example.com

  # Overwrite existing config
  bytevault config init --force
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(serverURL, force)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "server URL")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")

	return cmd
}

func createConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current config",
		Long: `Display the current configuration.

Shows both the local project config (bytevault.toml) and the global config from ~/.bytevault/config.yaml.

EXAMPLES:
  bytevault config show
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow()
		},
	}

	return cmd
}

func runConfigInit(serverURL string, force bool) error {
	configPath := "bytevault.toml"

	// Check if any config file already exists
	for _, cfgFile := range projectConfigFiles {
		if _, err := os.Stat(cfgFile); err == nil && !force {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", cfgFile)
		}
	}

	// Generate TOML config
	content := fmt.Sprintf(`# Bytevault project configuration

server = "%s"
compiler_version = "v0.8.18+commit.87f61d96"

# Source files to submit (paths relative to this file)
source_dir = "src"
# sources = ["src/Token.sol"]

# Standard JSON input instead of loose source files
# standard_json = "build/input.json"

# evm_version = "london"
# optimization_runs = 200

# [libraries]
# "src/Lib.sol:Lib" = "0x0000000000000000000000000000000000000000"

# Deployments to verify with 'bytevault import'
# [[deployments]]
# chain_id = 1
# address = "0x0000000000000000000000000000000000000000"
# transaction_hash = "0x..."
# creation_code_file = "artifacts/creation.hex"
# runtime_code_file = "artifacts/runtime.hex"
`, serverURL)

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Created %s\n", configPath)
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("  Server: %s\n", serverURL)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  1. Edit %s to add sources and deployments\n", configPath)
	fmt.Println("  2. Run 'bytevault auth login' to authenticate")
	fmt.Println("  3. Run 'bytevault import' to verify the deployments")

	return nil
}

func runConfigShow() error {
	fmt.Println("Configuration sources (in order of precedence):")
	fmt.Println()

	// 1. Command line flags
	fmt.Println("1. Command line flags")
	fmt.Println("   --server, --api-key, --config")
	fmt.Println()

	// 2. Environment variables
	fmt.Println("2. Environment variables")
	serverEnv := os.Getenv("BYTEVAULT_SERVER")
	keyEnv := os.Getenv("BYTEVAULT_API_KEY")
	if serverEnv != "" {
		fmt.Printf("   BYTEVAULT_SERVER=%s\n", serverEnv)
	} else {
		fmt.Println("   BYTEVAULT_SERVER=(not set)")
	}
	if keyEnv != "" {
		fmt.Printf("   BYTEVAULT_API_KEY=%s\n", maskAPIKey(keyEnv))
	} else {
		fmt.Println("   BYTEVAULT_API_KEY=(not set)")
	}
	fmt.Println()

	// 3. Local project config
	fmt.Println("3. Local project config (bytevault.toml or bv.toml)")
	projectConfig, configPath, err := loadProjectConfig()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("   (not found)")
		} else {
			fmt.Printf("   Error: %v\n", err)
		}
	} else {
		fmt.Printf("   Loaded from: %s\n", configPath)
		if projectConfig.Server != "" {
			fmt.Printf("   server: %s\n", projectConfig.Server)
		}
		if projectConfig.CompilerVersion != "" {
			fmt.Printf("   compiler_version: %s\n", projectConfig.CompilerVersion)
		}
		if projectConfig.SourceDir != "" {
			fmt.Printf("   source_dir: %s\n", projectConfig.SourceDir)
		}
		if len(projectConfig.Sources) > 0 {
			fmt.Printf("   sources: %v\n", projectConfig.Sources)
		}
		if projectConfig.StandardJSON != "" {
			fmt.Printf("   standard_json: %s\n", projectConfig.StandardJSON)
		}
		if len(projectConfig.Deployments) > 0 {
			fmt.Printf("   deployments: %d\n", len(projectConfig.Deployments))
		}
	}
	fmt.Println()

	// 4. Global config
	fmt.Println("4. Global config (~/.bytevault/config.yaml)")
	globalPath := filepath.Join(credentialsDir(), "config.yaml")
	globalData, err := os.ReadFile(globalPath)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("   (not found)")
		} else {
			fmt.Printf("   Error: %v\n", err)
		}
	} else {
		var globalConfig ServerConfig
		if err := yaml.Unmarshal(globalData, &globalConfig); err == nil {
			if globalConfig.Server != "" {
				fmt.Printf("   server: %s\n", globalConfig.Server)
			}
		}
	}
	fmt.Println()

	// 5. Credentials
	fmt.Println("5. Credentials (~/.bytevault/credentials)")
	creds, err := loadCredentials()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("   (not found)")
		} else {
			fmt.Printf("   Error: %v\n", err)
		}
	} else {
		if len(creds.Servers) == 0 {
			fmt.Println("   (no credentials stored)")
		} else {
			for server, cred := range creds.Servers {
				fmt.Printf("   %s: %s\n", server, maskAPIKey(cred.APIKey))
			}
		}
	}
	fmt.Println()

	// Effective config
	fmt.Println("Effective configuration:")
	fmt.Printf("   Server:  %s\n", getServer())
	if key := getAPIKey(); key != "" {
		fmt.Printf("   API Key: %s\n", maskAPIKey(key))
	} else {
		fmt.Println("   API Key: (not set)")
	}

	return nil
}

// loadProjectConfig loads the project config from the first matching config file.
// Returns the config, the path it was loaded from, and an error.
func loadProjectConfig() (*ProjectConfig, string, error) {
	// If --config flag was provided, use that directly
	if cfgFile != "" {
		config, err := loadProjectConfigFromPath(cfgFile)
		if err != nil {
			return nil, cfgFile, err
		}
		return config, cfgFile, nil
	}

	// Search for config files in order
	for _, name := range projectConfigFiles {
		if _, err := os.Stat(name); err == nil {
			config, err := loadProjectConfigFromPath(name)
			if err != nil {
				return nil, name, err
			}
			return config, name, nil
		}
	}
	return nil, "", os.ErrNotExist
}

// loadProjectConfigFromPath loads a project config from a specific path
func loadProjectConfigFromPath(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config ProjectConfig
	if _, err := toml.Decode(string(data), &config); err != nil {
		return nil, fmt.Errorf("parsing TOML: %w", err)
	}

	return &config, nil
}

// loadProjectConfigSilent loads the project config without returning errors for missing files.
// Returns nil if the file doesn't exist, but returns errors for parse failures.
func loadProjectConfigSilent() *ProjectConfig {
	config, _, err := loadProjectConfig()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		// Show actionable errors (parse failures)
		fmt.Fprintf(os.Stderr, "Warning: failed to load project config: %v\n", err)
		return nil
	}
	return config
}
