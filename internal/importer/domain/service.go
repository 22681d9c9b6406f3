// Package domain contains the business logic for batch contract imports.
package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bytevault/bytevault/internal/config"
	"github.com/bytevault/bytevault/internal/ingest"
	"github.com/bytevault/bytevault/internal/validation"
	"github.com/bytevault/bytevault/internal/verifier"
)

// Common errors returned by the importer service.
var ErrInvalidRequest = errors.New("invalid request")

// Ingester is the slice of the ingestion service the importer needs.
type Ingester interface {
	RunBatch(ctx context.Context, actor string, compilation *verifier.Compilation, deployments []*ingest.Deployment, concurrency int) []ingest.ItemResult
}

type service struct {
	client   verifier.Client
	ingester Ingester
	cfg      config.ImportConfig
	logger   *slog.Logger
}

// NewService creates a new batch import service.
func NewService(client verifier.Client, ingester Ingester, cfg config.ImportConfig, logger *slog.Logger) *service {
	return &service{
		client:   client,
		ingester: ingester,
		cfg:      cfg,
		logger:   logger,
	}
}

// BatchImport compiles the shared sources once and ingests every deployment
// against the result. Items fail independently; only a compilation failure
// is reported at the top level.
func (s *service) BatchImport(ctx context.Context, actor string, req BatchImportRequest) (*BatchImportResult, error) {
	deployments, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	compilation, err := s.compile(ctx, req, deployments[0])
	if err != nil {
		var compErr *verifier.CompilationError
		if errors.As(err, &compErr) {
			return &BatchImportResult{CompilationFailure: compErr.Message}, nil
		}
		return nil, err
	}

	results := s.ingester.RunBatch(ctx, actor, compilation, deployments, s.cfg.Concurrency)

	outcome := &BatchImportResult{Items: make([]ItemOutcome, len(results))}
	succeeded := 0
	for i, r := range results {
		outcome.Items[i] = ItemOutcome{
			Status:            r.Status,
			Message:           r.Message,
			CreationMatchType: r.CreationMatchType,
			RuntimeMatchType:  r.RuntimeMatchType,
		}
		if r.Status == ingest.ItemStatusSuccess {
			succeeded++
		}
	}
	s.logger.Info("batch import finished",
		"contract", compilation.FullyQualifiedName,
		"items", len(results),
		"succeeded", succeeded)
	return outcome, nil
}

// validate checks the request shape and converts every contract into an
// ingestion deployment.
func (s *service) validate(req BatchImportRequest) ([]*ingest.Deployment, error) {
	if len(req.Contracts) == 0 {
		return nil, fmt.Errorf("%w: at least one contract is required", ErrInvalidRequest)
	}
	if s.cfg.MaxBatchSize > 0 && len(req.Contracts) > s.cfg.MaxBatchSize {
		return nil, fmt.Errorf("%w: batch exceeds the maximum of %d contracts", ErrInvalidRequest, s.cfg.MaxBatchSize)
	}
	if err := validation.ValidateCompilerVersion(req.CompilerVersion); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	hasSources := len(req.SourceFiles) > 0
	hasInput := len(req.Input) > 0
	if hasSources == hasInput {
		return nil, fmt.Errorf("%w: exactly one of sourceFiles and input must be given", ErrInvalidRequest)
	}

	deployments := make([]*ingest.Deployment, len(req.Contracts))
	for i, c := range req.Contracts {
		deployment, err := toDeployment(c)
		if err != nil {
			return nil, fmt.Errorf("%w: contract %d: %v", ErrInvalidRequest, i, err)
		}
		deployments[i] = deployment
	}
	return deployments, nil
}

// compile resolves the shared sources into a compilation, using the first
// contract's code as the bytecode the compiler output is matched against.
func (s *service) compile(ctx context.Context, req BatchImportRequest, first *ingest.Deployment) (*verifier.Compilation, error) {
	bytecode, bytecodeType := first.CreationCode, verifier.BytecodeTypeCreation
	if bytecode == nil {
		bytecode, bytecodeType = first.RuntimeCode, verifier.BytecodeTypeRuntime
	}

	if len(req.Input) > 0 {
		return s.client.VerifyStandardJSON(ctx, &verifier.StandardJSONRequest{
			Bytecode:        bytecode,
			BytecodeType:    bytecodeType,
			CompilerVersion: req.CompilerVersion,
			Input:           req.Input,
		})
	}
	return s.client.VerifyMultiPart(ctx, &verifier.MultiPartRequest{
		Bytecode:         bytecode,
		BytecodeType:     bytecodeType,
		CompilerVersion:  req.CompilerVersion,
		EvmVersion:       req.EvmVersion,
		OptimizationRuns: req.OptimizationRuns,
		SourceFiles:      req.SourceFiles,
		Libraries:        req.Libraries,
	})
}

// toDeployment validates and decodes one contract reference.
func toDeployment(c ContractImport) (*ingest.Deployment, error) {
	if err := validation.ValidateChainID(c.ChainID); err != nil {
		return nil, err
	}
	if err := validation.ValidateAddress(c.Address); err != nil {
		return nil, err
	}
	if c.CreationCode == "" && c.RuntimeCode == "" {
		return nil, errors.New("at least one of creationCode and runtimeCode is required")
	}

	address, err := validation.DecodeHex(c.Address)
	if err != nil {
		return nil, err
	}
	deployment := &ingest.Deployment{
		ChainID:          c.ChainID,
		Address:          address,
		BlockNumber:      c.BlockNumber,
		TransactionIndex: c.TransactionIndex,
	}

	if c.TransactionHash != "" {
		if err := validation.ValidateTransactionHash(c.TransactionHash); err != nil {
			return nil, err
		}
		deployment.TransactionHash, err = validation.DecodeHex(c.TransactionHash)
		if err != nil {
			return nil, err
		}
	}
	if c.Deployer != "" {
		if err := validation.ValidateAddress(c.Deployer); err != nil {
			return nil, err
		}
		deployment.Deployer, err = validation.DecodeHex(c.Deployer)
		if err != nil {
			return nil, err
		}
	}
	if c.CreationCode != "" {
		if err := validation.ValidateBytecode(c.CreationCode); err != nil {
			return nil, err
		}
		deployment.CreationCode, err = validation.DecodeHex(c.CreationCode)
		if err != nil {
			return nil, err
		}
	}
	if c.RuntimeCode != "" {
		if err := validation.ValidateBytecode(c.RuntimeCode); err != nil {
			return nil, err
		}
		deployment.RuntimeCode, err = validation.DecodeHex(c.RuntimeCode)
		if err != nil {
			return nil, err
		}
	}
	return deployment, nil
}
