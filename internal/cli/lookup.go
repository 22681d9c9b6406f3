package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bytevault/bytevault/pkg/client"
)

func createLookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Look up verified contracts",
	}

	cmd.AddCommand(createLookupBytecodeCmd())
	cmd.AddCommand(createLookupAddressCmd())
	cmd.AddCommand(createLookupEventCmd())
	cmd.AddCommand(createLookupCodeCmd())

	return cmd
}

func createLookupBytecodeCmd() *cobra.Command {
	var bytecodeType string

	cmd := &cobra.Command{
		Use:   "bytecode <hex-or-file>",
		Short: "Find verified sources matching bytecode",
		Long: `Find verified sources whose compiled output matches the given bytecode.

EXAMPLES:
  # Look up runtime bytecode fetched from a node
  bytevault lookup bytecode 0x6080... --type runtime

  # Look up creation bytecode from a file
  bytevault lookup bytecode ./artifacts/creation.hex --type creation
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookupBytecode(args[0], bytecodeType)
		},
	}

	cmd.Flags().StringVar(&bytecodeType, "type", "runtime", "bytecode type: creation or runtime")

	return cmd
}

func createLookupAddressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address <chain-id> <address>",
		Short: "Find verified contracts at an address",
		Long: `Find verified contracts deployed at an address on a chain.

EXAMPLES:
  bytevault lookup address 1 0x1234...
`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chainID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid chain ID: %s", args[0])
			}
			return runLookupAddress(chainID, args[1])
		},
	}

	return cmd
}

func createLookupEventCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event <selector>",
		Short: "Find contracts declaring an event",
		Long: `Find verified contracts whose ABI declares an event with the given
32-byte selector (the topic0 of emitted logs).

EXAMPLES:
  # Transfer(address,address,uint256)
  bytevault lookup event 0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookupEvent(args[0])
		},
	}

	return cmd
}

func createLookupCodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "code <keccak-digest>",
		Short: "Fetch stored code by keccak digest",
		Long: `Fetch stored code blobs addressed by their keccak256 digest.

EXAMPLES:
  bytevault lookup code 0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookupCode(args[0])
		},
	}

	return cmd
}

func runLookupBytecode(arg, bytecodeType string) error {
	code, err := readBytecode(arg)
	if err != nil {
		return err
	}

	c := client.New(getServer(), getAPIKey())
	sources, err := c.LookupBytecode(context.Background(), code, bytecodeType)
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}

	if len(sources) == 0 {
		fmt.Println("No verified sources match this bytecode")
		return nil
	}

	printSources(sources)
	return nil
}

func runLookupAddress(chainID int64, address string) error {
	c := client.New(getServer(), getAPIKey())
	contracts, err := c.LookupContract(context.Background(), chainID, address)
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}

	for _, contract := range contracts {
		fmt.Printf("Contract at chain %d, %s\n", contract.ChainID, contract.Address)
		if contract.TransactionHash != "" {
			fmt.Printf("  Deployed in: %s (block %d)\n", contract.TransactionHash, contract.BlockNumber)
		}
		if contract.Deployer != "" {
			fmt.Printf("  Deployer:    %s\n", contract.Deployer)
		}
		fmt.Println()
		printSources(contract.Sources)
	}

	return nil
}

func runLookupEvent(selector string) error {
	c := client.New(getServer(), getAPIKey())
	sources, err := c.LookupEvent(context.Background(), selector)
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}

	if len(sources) == 0 {
		fmt.Println("No verified contracts declare this event")
		return nil
	}

	printSources(sources)
	return nil
}

func runLookupCode(digest string) error {
	c := client.New(getServer(), getAPIKey())
	entries, err := c.LookupCode(context.Background(), digest)
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No stored code for this digest")
		return nil
	}

	for _, entry := range entries {
		fmt.Printf("digest:  %s\n", entry.Digest)
		fmt.Printf("keccak:  %s\n", entry.KeccakDigest)
		fmt.Printf("code:    %s\n", entry.Code)
	}

	return nil
}

func printSources(sources []client.Source) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CONTRACT\tFILE\tCOMPILER\tMATCH")
	for _, s := range sources {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ContractName, s.FileName, s.CompilerVersion, s.MatchType)
	}
	w.Flush()
}
