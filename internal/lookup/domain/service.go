// Package domain contains the business logic for the read-only lookup APIs.
package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/bytevault/bytevault/internal/ingest"
	"github.com/bytevault/bytevault/internal/storage"
	"github.com/bytevault/bytevault/internal/validation"
	verifydomain "github.com/bytevault/bytevault/internal/verify/domain"
)

// Common errors returned by the lookup service.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = errors.New("not found")
)

// eventScanPageSize bounds how many compilations one selector scan page
// loads.
const eventScanPageSize = 200

// Store is the slice of the storage layer the lookup domain reads from.
type Store interface {
	GetCode(ctx context.Context, digest []byte) (*storage.Code, error)
	FindCodeByKeccak(ctx context.Context, keccakDigest []byte) ([]storage.Code, error)
	GetSource(ctx context.Context, digest []byte) (*storage.Source, error)
	ListDeploymentsByAddress(ctx context.Context, chainID int64, address []byte) ([]storage.Deployment, error)
	ListVerifiedContractsByDeployment(ctx context.Context, deploymentID string) ([]storage.VerifiedContract, error)
	GetCompiledContract(ctx context.Context, id string) (*storage.CompiledContract, error)
	FindCompilationsByCode(ctx context.Context, codeDigest []byte) ([]storage.CompiledContract, error)
	ListCompilations(ctx context.Context, limit, offset int) ([]storage.CompiledContract, error)
	ListCompiledContractSources(ctx context.Context, compilationID string) ([]storage.CompiledContractSource, error)
}

type service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new lookup service.
func NewService(store Store, logger *slog.Logger) *service {
	return &service{store: store, logger: logger}
}

// LookupByBytecode returns the verified sources of every compilation whose
// code matches the submitted bytecode: first by exact sha256 digest, then
// through the keccak secondary index.
func (s *service) LookupByBytecode(ctx context.Context, req BytecodeLookupRequest) ([]verifydomain.Source, error) {
	if err := validation.ValidateBytecode(req.Bytecode); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	code, err := validation.DecodeHex(req.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: bytecode must not be empty", ErrInvalidRequest)
	}

	seen := make(map[string]bool)
	var compilations []storage.CompiledContract

	exact, err := s.store.FindCompilationsByCode(ctx, storage.ContentDigest(code))
	if err != nil {
		return nil, fmt.Errorf("finding compilations: %w", err)
	}
	for _, c := range exact {
		if !seen[c.ID] {
			seen[c.ID] = true
			compilations = append(compilations, c)
		}
	}

	// On-chain runtime code rarely hashes to a stored digest directly (the
	// stored runtime digest is normalized), so also chase the keccak index.
	rows, err := s.store.FindCodeByKeccak(ctx, storage.KeccakDigest(code))
	if err != nil {
		return nil, fmt.Errorf("keccak lookup: %w", err)
	}
	for _, row := range rows {
		found, err := s.store.FindCompilationsByCode(ctx, row.Digest)
		if err != nil {
			return nil, fmt.Errorf("finding compilations: %w", err)
		}
		for _, c := range found {
			if !seen[c.ID] {
				seen[c.ID] = true
				compilations = append(compilations, c)
			}
		}
	}

	sources := make([]verifydomain.Source, 0, len(compilations))
	for _, c := range compilations {
		src, err := s.buildSource(ctx, &c, nil)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *src)
	}
	return sources, nil
}

// LookupByAddress returns every known deployment at an address along with
// the verified sources backing it.
func (s *service) LookupByAddress(ctx context.Context, chainID int64, address string) ([]ContractLookup, error) {
	if err := validation.ValidateChainID(chainID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := validation.ValidateAddress(address); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	decoded, err := validation.DecodeHex(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	deployments, err := s.store.ListDeploymentsByAddress(ctx, chainID, decoded)
	if err != nil {
		return nil, fmt.Errorf("listing deployments: %w", err)
	}
	if len(deployments) == 0 {
		return nil, ErrNotFound
	}

	lookups := make([]ContractLookup, 0, len(deployments))
	for _, d := range deployments {
		lookup := ContractLookup{
			ChainID:          d.ChainID,
			Address:          hexutil.Encode(d.Address),
			TransactionHash:  hexutil.Encode(d.TransactionHash),
			BlockNumber:      d.BlockNumber,
			TransactionIndex: d.TransactionIndex,
			Sources:          []verifydomain.Source{},
		}
		if len(d.Deployer) > 0 {
			lookup.Deployer = hexutil.Encode(d.Deployer)
		}

		verdicts, err := s.store.ListVerifiedContractsByDeployment(ctx, d.ID)
		if err != nil {
			return nil, fmt.Errorf("listing verified contracts: %w", err)
		}
		for _, v := range verdicts {
			compilation, err := s.store.GetCompiledContract(ctx, v.CompilationID)
			if err != nil {
				return nil, fmt.Errorf("loading compilation %s: %w", v.CompilationID, err)
			}
			src, err := s.buildSource(ctx, compilation, &v)
			if err != nil {
				return nil, err
			}
			lookup.Sources = append(lookup.Sources, *src)
		}
		lookups = append(lookups, lookup)
	}
	return lookups, nil
}

// LookupByEventSelector returns the sources of every compilation whose ABI
// declares an event with the given topic hash.
func (s *service) LookupByEventSelector(ctx context.Context, selector string) ([]verifydomain.Source, error) {
	decoded, err := validation.DecodeHex(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if len(decoded) != 32 {
		return nil, fmt.Errorf("%w: event selector must be 32 bytes", ErrInvalidRequest)
	}

	var sources []verifydomain.Source
	for offset := 0; ; offset += eventScanPageSize {
		page, err := s.store.ListCompilations(ctx, eventScanPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("listing compilations: %w", err)
		}
		for _, c := range page {
			if !abiDeclaresEvent(c.CompilationArtifacts, decoded) {
				continue
			}
			src, err := s.buildSource(ctx, &c, nil)
			if err != nil {
				return nil, err
			}
			sources = append(sources, *src)
		}
		if len(page) < eventScanPageSize {
			break
		}
	}
	return sources, nil
}

// LookupCodeByKeccak resolves a caller-supplied keccak256 digest through the
// secondary index.
func (s *service) LookupCodeByKeccak(ctx context.Context, digest string) ([]CodeLookup, error) {
	decoded, err := validation.DecodeHex(digest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if len(decoded) != 32 {
		return nil, fmt.Errorf("%w: keccak digest must be 32 bytes", ErrInvalidRequest)
	}

	rows, err := s.store.FindCodeByKeccak(ctx, decoded)
	if err != nil {
		return nil, fmt.Errorf("keccak lookup: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}

	lookups := make([]CodeLookup, len(rows))
	for i, row := range rows {
		lookups[i] = CodeLookup{
			Digest:       hexutil.Encode(row.Digest),
			KeccakDigest: hexutil.Encode(row.KeccakDigest),
			Code:         hexutil.Encode(row.Code),
		}
	}
	return lookups, nil
}

// buildSource assembles the Source response from storage rows. When a
// verdict is present its values drive the match type, constructor arguments
// and resolved libraries; without one the compilation is reported on its
// own with no match claim.
func (s *service) buildSource(ctx context.Context, c *storage.CompiledContract, verdict *storage.VerifiedContract) (*verifydomain.Source, error) {
	sourceFiles, err := s.loadSourceFiles(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	src := &verifydomain.Source{
		CompilerVersion:  c.Version,
		CompilerSettings: c.CompilerSettings,
		SourceType:       sourceTypeForLanguage(c.Language),
		SourceFiles:      sourceFiles,

		CompilationArtifacts:      c.CompilationArtifacts,
		CreationInputArtifacts:    c.CreationCodeArtifacts,
		DeployedBytecodeArtifacts: c.RuntimeCodeArtifacts,
	}
	src.FileName, src.ContractName = splitName(c.FullyQualifiedName, c.Name)
	src.ABI = extractABI(c.CompilationArtifacts)

	if verdict != nil {
		src.MatchType = verdictMatchType(verdict)
		creation := parseSideValues(verdict.CreationValues)
		runtime := parseSideValues(verdict.RuntimeValues)
		src.ConstructorArguments = creation.ConstructorArguments
		src.Libraries = mergeLibraryMaps(creation.Libraries, runtime.Libraries)
	}
	return src, nil
}

func (s *service) loadSourceFiles(ctx context.Context, compilationID string) (map[string]string, error) {
	links, err := s.store.ListCompiledContractSources(ctx, compilationID)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	files := make(map[string]string, len(links))
	for _, link := range links {
		source, err := s.store.GetSource(ctx, link.SourceDigest)
		if err != nil {
			return nil, fmt.Errorf("loading source %s: %w", link.Path, err)
		}
		files[link.Path] = source.Content
	}
	return files, nil
}

// verdictMatchType reports the strongest match type across the verdict's two
// sides.
func verdictMatchType(v *storage.VerifiedContract) string {
	best := ""
	sides := []struct {
		matched  bool
		metadata *bool
	}{
		{v.CreationMatch, v.CreationMetadataMatch},
		{v.RuntimeMatch, v.RuntimeMetadataMatch},
	}
	for _, side := range sides {
		if !side.matched {
			continue
		}
		t := ingest.MatchTypePartial
		if side.metadata != nil && *side.metadata {
			t = ingest.MatchTypeFull
		}
		if best == "" || t == ingest.MatchTypeFull {
			best = t
		}
	}
	return best
}

// abiDeclaresEvent reports whether the compilation's ABI contains an event
// whose topic hash equals the selector.
func abiDeclaresEvent(artifacts []byte, selector []byte) bool {
	doc := extractABI(artifacts)
	if doc == nil {
		return false
	}
	parsed, err := abi.JSON(strings.NewReader(string(doc)))
	if err != nil {
		return false
	}
	for _, event := range parsed.Events {
		if bytes.Equal(event.ID.Bytes(), selector) {
			return true
		}
	}
	return false
}

func sourceTypeForLanguage(language string) string {
	switch strings.ToLower(language) {
	case "vyper":
		return verifydomain.SourceTypeVyper
	case "yul":
		return verifydomain.SourceTypeYul
	default:
		return verifydomain.SourceTypeSolidity
	}
}

func splitName(fqn, fallback string) (fileName, contractName string) {
	if idx := strings.LastIndex(fqn, ":"); idx >= 0 {
		return fqn[:idx], fqn[idx+1:]
	}
	return fqn, fallback
}

func mergeLibraryMaps(maps ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, m := range maps {
		for name, addr := range m {
			merged[name] = addr
		}
	}
	if len(merged) == 0 {
		return nil
	}
	return merged
}

func extractABI(artifacts json.RawMessage) json.RawMessage {
	if artifacts == nil {
		return nil
	}
	var doc struct {
		ABI json.RawMessage `json:"abi"`
	}
	if err := json.Unmarshal(artifacts, &doc); err != nil {
		return nil
	}
	return doc.ABI
}
