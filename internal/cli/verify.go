package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bytevault/bytevault/pkg/client"
)

func createVerifyCmd() *cobra.Command {
	var bytecode string
	var bytecodeType string
	var compilerVersion string
	var evmVersion string
	var optimizationRuns int
	var sourceFiles []string
	var sourceDir string
	var standardJSON string
	var libraries []string
	var chainID int64
	var address string
	var txHash string
	var deployer string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify bytecode against contract sources",
		Long: `Verify that bytecode was produced by the given sources.

The sources are recompiled on the server and the output is matched
against the submitted bytecode. When --chain-id and --address are
given, a successful verification is recorded as a verified contract.

EXAMPLES:
  # Verify creation bytecode against a source directory
  bytevault verify \
    --bytecode ./artifacts/creation.hex \
    --type creation \
    --compiler v0.8.18+commit.87f61d96 \
    --source-dir src

  # Verify and record the deployment
  bytevault verify \
    --bytecode 0x6080... \
    --type runtime \
    --compiler v0.8.18+commit.87f61d96 \
    --sources src/Token.sol \
    --chain-id 1 \
    --address 0x1234...

  # Verify against a standard JSON input
  bytevault verify \
    --bytecode ./artifacts/creation.hex \
    --type creation \
    --compiler v0.8.18+commit.87f61d96 \
    --standard-json build/input.json
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := verifyOptions{
				bytecode:        bytecode,
				bytecodeType:    bytecodeType,
				compilerVersion: compilerVersion,
				evmVersion:      evmVersion,
				sourceFiles:     sourceFiles,
				sourceDir:       sourceDir,
				standardJSON:    standardJSON,
				libraries:       libraries,
				chainID:         chainID,
				address:         address,
				txHash:          txHash,
				deployer:        deployer,
			}
			if cmd.Flags().Changed("optimization-runs") {
				opts.optimizationRuns = &optimizationRuns
			}
			return runVerify(opts)
		},
	}

	cmd.Flags().StringVar(&bytecode, "bytecode", "", "bytecode as hex or a path to a hex file (required)")
	cmd.Flags().StringVar(&bytecodeType, "type", "creation", "bytecode type: creation or runtime")
	cmd.Flags().StringVar(&compilerVersion, "compiler", "", "compiler version, e.g. v0.8.18+commit.87f61d96 (required)")
	cmd.Flags().StringVar(&evmVersion, "evm-version", "", "EVM version, e.g. london")
	cmd.Flags().IntVar(&optimizationRuns, "optimization-runs", 0, "optimizer runs (omit to disable the optimizer)")
	cmd.Flags().StringSliceVar(&sourceFiles, "sources", nil, "source files to submit")
	cmd.Flags().StringVar(&sourceDir, "source-dir", "", "directory to walk for source files")
	cmd.Flags().StringVar(&standardJSON, "standard-json", "", "standard JSON input file (instead of sources)")
	cmd.Flags().StringSliceVar(&libraries, "library", nil, "linked library as name=address (repeatable)")
	cmd.Flags().Int64Var(&chainID, "chain-id", 0, "chain ID of the deployment to record")
	cmd.Flags().StringVar(&address, "address", "", "contract address of the deployment to record")
	cmd.Flags().StringVar(&txHash, "tx-hash", "", "deployment transaction hash")
	cmd.Flags().StringVar(&deployer, "deployer", "", "deployer address")
	_ = cmd.MarkFlagRequired("bytecode")
	_ = cmd.MarkFlagRequired("compiler")

	return cmd
}

type verifyOptions struct {
	bytecode         string
	bytecodeType     string
	compilerVersion  string
	evmVersion       string
	optimizationRuns *int
	sourceFiles      []string
	sourceDir        string
	standardJSON     string
	libraries        []string
	chainID          int64
	address          string
	txHash           string
	deployer         string
}

func runVerify(opts verifyOptions) error {
	code, err := readBytecode(opts.bytecode)
	if err != nil {
		return err
	}

	var metadata *client.DeploymentMetadata
	if opts.chainID != 0 || opts.address != "" {
		if opts.chainID == 0 || opts.address == "" {
			return fmt.Errorf("--chain-id and --address must be given together")
		}
		metadata = &client.DeploymentMetadata{
			ChainID:         opts.chainID,
			ContractAddress: opts.address,
			TransactionHash: opts.txHash,
			Deployer:        opts.deployer,
		}
	}

	c := client.New(getServer(), getAPIKey())
	ctx := context.Background()

	var result *client.VerifyResult
	if opts.standardJSON != "" {
		input, err := os.ReadFile(opts.standardJSON)
		if err != nil {
			return fmt.Errorf("reading standard JSON input: %w", err)
		}
		result, err = c.VerifyStandardJSON(ctx, client.VerifyStandardJSONRequest{
			Bytecode:        code,
			BytecodeType:    opts.bytecodeType,
			CompilerVersion: opts.compilerVersion,
			Input:           json.RawMessage(input),
			Metadata:        metadata,
		})
		if err != nil {
			return fmt.Errorf("verification request failed: %w", err)
		}
	} else {
		sources, err := collectSources(opts.sourceDir, opts.sourceFiles)
		if err != nil {
			return err
		}
		libs, err := parseKeyValues(opts.libraries)
		if err != nil {
			return fmt.Errorf("parsing libraries: %w", err)
		}
		result, err = c.VerifyMultiPart(ctx, client.VerifyMultiPartRequest{
			Bytecode:         code,
			BytecodeType:     opts.bytecodeType,
			CompilerVersion:  opts.compilerVersion,
			EvmVersion:       opts.evmVersion,
			OptimizationRuns: opts.optimizationRuns,
			SourceFiles:      sources,
			Libraries:        libs,
			Metadata:         metadata,
		})
		if err != nil {
			return fmt.Errorf("verification request failed: %w", err)
		}
	}

	if result.Status != "success" {
		fmt.Println("❌ NOT VERIFIED")
		if result.Message != "" {
			fmt.Printf("   Reason: %s\n", result.Message)
		}
		return fmt.Errorf("verification failed")
	}

	src := result.Source
	switch src.MatchType {
	case "full":
		fmt.Println("✅ VERIFIED - Full match")
		fmt.Println("   Bytecode exactly matches the compiled output (including metadata)")
	default:
		fmt.Println("✅ VERIFIED - Partial match")
		fmt.Println("   Executable code matches, but metadata differs")
		fmt.Println("   (This can happen with different source paths or comments)")
	}
	fmt.Println()
	fmt.Printf("   Contract: %s (%s)\n", src.ContractName, src.FileName)
	fmt.Printf("   Compiler: %s\n", src.CompilerVersion)
	if src.ConstructorArguments != "" {
		fmt.Printf("   Constructor args: %s\n", src.ConstructorArguments)
	}
	if metadata != nil {
		fmt.Printf("   Recorded deployment %d/%s\n", metadata.ChainID, metadata.ContractAddress)
	}

	return nil
}
