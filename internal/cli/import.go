package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bytevault/bytevault/pkg/client"
)

func createImportCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Verify the deployments declared in the project config",
		Long: `Submit a batch import for the deployments in bytevault.toml.

The sources are compiled once on the server and every declared
deployment is matched against the compiled output. Each deployment
reports its own outcome; one bad deployment does not fail the rest.

EXAMPLES:
  # Import everything declared in bytevault.toml
  bytevault import

  # Show what would be submitted without sending it
  bytevault import --dry-run
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be submitted without submitting")

	return cmd
}

func runImport(dryRun bool) error {
	cfg, configPath, err := loadProjectConfig()
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no project config found (run 'bytevault config init' first)")
		}
		return err
	}

	if len(cfg.Deployments) == 0 {
		return fmt.Errorf("no deployments declared in %s", configPath)
	}
	if cfg.CompilerVersion == "" {
		return fmt.Errorf("compiler_version missing from %s", configPath)
	}

	// Paths in the config are relative to the config file
	baseDir := filepath.Dir(configPath)

	req := client.BatchImportRequest{
		CompilerVersion:  cfg.CompilerVersion,
		EvmVersion:       cfg.EvmVersion,
		OptimizationRuns: cfg.OptimizationRuns,
		Libraries:        cfg.Libraries,
	}

	if cfg.StandardJSON != "" {
		input, err := os.ReadFile(filepath.Join(baseDir, cfg.StandardJSON))
		if err != nil {
			return fmt.Errorf("reading standard JSON input: %w", err)
		}
		req.Input = json.RawMessage(input)
	} else {
		sourceDir := cfg.SourceDir
		if sourceDir != "" {
			sourceDir = filepath.Join(baseDir, sourceDir)
		}
		files := make([]string, len(cfg.Sources))
		for i, f := range cfg.Sources {
			files[i] = filepath.Join(baseDir, f)
		}
		sources, err := collectSources(sourceDir, files)
		if err != nil {
			return err
		}
		req.SourceFiles = sources
	}

	for i, d := range cfg.Deployments {
		contract, err := toContractImport(baseDir, d)
		if err != nil {
			return fmt.Errorf("deployment %d: %w", i+1, err)
		}
		req.Contracts = append(req.Contracts, contract)
	}

	fmt.Printf("Importing %d deployment(s) with compiler %s\n", len(req.Contracts), req.CompilerVersion)
	for _, c := range req.Contracts {
		fmt.Printf("  • chain %d, %s\n", c.ChainID, c.Address)
	}

	if dryRun {
		fmt.Println()
		fmt.Println("Dry run - nothing submitted")
		return nil
	}

	c := client.New(getServer(), getAPIKey())
	result, err := c.BatchImport(context.Background(), req)
	if err != nil {
		return fmt.Errorf("import request failed: %w", err)
	}

	fmt.Println()

	if result.CompilationFailure != nil {
		fmt.Println("❌ Compilation failed - no deployments were imported")
		fmt.Printf("   %s\n", result.CompilationFailure.Message)
		return fmt.Errorf("import failed")
	}

	verified := 0
	for i, item := range result.Results {
		d := req.Contracts[i]
		switch item.Status {
		case "verified":
			verified++
			matchType := item.RuntimeMatchType
			if matchType == "" {
				matchType = item.CreationMatchType
			}
			fmt.Printf("✅ chain %d, %s: verified (%s match)\n", d.ChainID, d.Address, matchType)
		default:
			fmt.Printf("❌ chain %d, %s: %s", d.ChainID, d.Address, item.Status)
			if item.Message != "" {
				fmt.Printf(" - %s", item.Message)
			}
			fmt.Println()
		}
	}

	fmt.Println()
	fmt.Printf("%d/%d deployments verified\n", verified, len(result.Results))

	if verified < len(result.Results) {
		return fmt.Errorf("some deployments were not verified")
	}
	return nil
}

func toContractImport(baseDir string, d DeploymentTOML) (client.ContractImport, error) {
	contract := client.ContractImport{
		ChainID:          d.ChainID,
		Address:          d.Address,
		TransactionHash:  d.TransactionHash,
		BlockNumber:      d.BlockNumber,
		TransactionIndex: d.TransactionIndex,
		Deployer:         d.Deployer,
		CreationCode:     d.CreationCode,
		RuntimeCode:      d.RuntimeCode,
	}

	if contract.CreationCode == "" && d.CreationCodeFile != "" {
		code, err := readBytecode(filepath.Join(baseDir, d.CreationCodeFile))
		if err != nil {
			return contract, err
		}
		contract.CreationCode = code
	}
	if contract.RuntimeCode == "" && d.RuntimeCodeFile != "" {
		code, err := readBytecode(filepath.Join(baseDir, d.RuntimeCodeFile))
		if err != nil {
			return contract, err
		}
		contract.RuntimeCode = code
	}

	if contract.CreationCode == "" && contract.RuntimeCode == "" {
		return contract, fmt.Errorf("needs creation_code or runtime_code")
	}

	return contract, nil
}
