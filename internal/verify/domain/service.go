// Package domain contains the business logic for single-contract
// verification requests.
package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bytevault/bytevault/internal/ingest"
	"github.com/bytevault/bytevault/internal/match"
	"github.com/bytevault/bytevault/internal/validation"
	"github.com/bytevault/bytevault/internal/verifier"
)

// Common errors returned by the verification service.
var (
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNoMatch re-exports the ingestion outcome so transport does not
	// reach into the ingest package.
	ErrNoMatch = ingest.ErrNoMatch
)

// Ingester is the slice of the ingestion service the verify domain needs.
type Ingester interface {
	Evaluate(compilation *verifier.Compilation, deployment *ingest.Deployment) (*match.Match, *match.Match, error)
	Ingest(ctx context.Context, actor string, compilation *verifier.Compilation, deployment *ingest.Deployment) (*ingest.Result, error)
}

type service struct {
	client   verifier.Client
	ingester Ingester
	logger   *slog.Logger
}

// NewService creates a new verification service.
func NewService(client verifier.Client, ingester Ingester, logger *slog.Logger) *service {
	return &service{
		client:   client,
		ingester: ingester,
		logger:   logger,
	}
}

// VerifyMultiPart compiles loose source files and matches the result against
// the submitted bytecode.
func (s *service) VerifyMultiPart(ctx context.Context, actor string, req MultiPartRequest) (*VerifyResult, error) {
	bytecode, err := validateCommon(req.Bytecode, req.BytecodeType, req.CompilerVersion, req.Metadata)
	if err != nil {
		return nil, err
	}
	if len(req.SourceFiles) == 0 {
		return nil, fmt.Errorf("%w: at least one source file is required", ErrInvalidRequest)
	}

	compilation, err := s.client.VerifyMultiPart(ctx, &verifier.MultiPartRequest{
		Bytecode:         bytecode,
		BytecodeType:     req.BytecodeType,
		CompilerVersion:  req.CompilerVersion,
		EvmVersion:       req.EvmVersion,
		OptimizationRuns: req.OptimizationRuns,
		SourceFiles:      req.SourceFiles,
		Libraries:        req.Libraries,
	})
	if err != nil {
		return nil, err
	}
	return s.verify(ctx, actor, compilation, bytecode, req.BytecodeType, req.Metadata)
}

// VerifyStandardJSON compiles a solc standard-json input and matches the
// result against the submitted bytecode.
func (s *service) VerifyStandardJSON(ctx context.Context, actor string, req StandardJSONRequest) (*VerifyResult, error) {
	bytecode, err := validateCommon(req.Bytecode, req.BytecodeType, req.CompilerVersion, req.Metadata)
	if err != nil {
		return nil, err
	}
	if len(req.Input) == 0 {
		return nil, fmt.Errorf("%w: input document is required", ErrInvalidRequest)
	}

	compilation, err := s.client.VerifyStandardJSON(ctx, &verifier.StandardJSONRequest{
		Bytecode:        bytecode,
		BytecodeType:    req.BytecodeType,
		CompilerVersion: req.CompilerVersion,
		Input:           req.Input,
	})
	if err != nil {
		return nil, err
	}
	return s.verify(ctx, actor, compilation, bytecode, req.BytecodeType, req.Metadata)
}

// verify matches the compilation against the submitted bytecode and persists
// the verdict when the request located a concrete deployment.
func (s *service) verify(ctx context.Context, actor string, compilation *verifier.Compilation, bytecode []byte, bytecodeType string, metadata *DeploymentMetadata) (*VerifyResult, error) {
	deployment, err := buildDeployment(bytecode, bytecodeType, metadata)
	if err != nil {
		return nil, err
	}

	if metadata == nil {
		creationMatch, runtimeMatch, err := s.ingester.Evaluate(compilation, deployment)
		if err != nil {
			return nil, err
		}
		return &VerifyResult{Source: buildSource(compilation, creationMatch, runtimeMatch)}, nil
	}

	result, err := s.ingester.Ingest(ctx, actor, compilation, deployment)
	if err != nil {
		return nil, err
	}
	s.logger.Info("verified contract",
		"chain_id", deployment.ChainID,
		"contract", compilation.FullyQualifiedName,
		"inserted", result.Inserted)
	return &VerifyResult{
		Source:    buildSource(compilation, result.CreationMatch, result.RuntimeMatch),
		Persisted: true,
	}, nil
}

// validateCommon checks the fields shared by both request flavors and
// decodes the submitted bytecode.
func validateCommon(bytecode, bytecodeType, compilerVersion string, metadata *DeploymentMetadata) ([]byte, error) {
	if bytecodeType != verifier.BytecodeTypeCreation && bytecodeType != verifier.BytecodeTypeRuntime {
		return nil, fmt.Errorf("%w: bytecode type must be %q or %q", ErrInvalidRequest, verifier.BytecodeTypeCreation, verifier.BytecodeTypeRuntime)
	}
	if err := validation.ValidateBytecode(bytecode); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	decoded, err := validation.DecodeHex(bytecode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if len(decoded) == 0 {
		return nil, fmt.Errorf("%w: bytecode must not be empty", ErrInvalidRequest)
	}
	if err := validation.ValidateCompilerVersion(compilerVersion); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if metadata != nil {
		if err := validation.ValidateChainID(metadata.ChainID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		if err := validation.ValidateAddress(metadata.ContractAddress); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		if metadata.TransactionHash != "" {
			if err := validation.ValidateTransactionHash(metadata.TransactionHash); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
			}
		}
	}
	return decoded, nil
}

// buildDeployment assembles the deployment the matcher runs against. The
// submitted bytecode fills the side named by the bytecode type; metadata may
// supply the other side when the caller observed both.
func buildDeployment(bytecode []byte, bytecodeType string, metadata *DeploymentMetadata) (*ingest.Deployment, error) {
	deployment := &ingest.Deployment{}
	if bytecodeType == verifier.BytecodeTypeCreation {
		deployment.CreationCode = bytecode
	} else {
		deployment.RuntimeCode = bytecode
	}

	if metadata == nil {
		return deployment, nil
	}

	deployment.ChainID = metadata.ChainID
	address, err := validation.DecodeHex(metadata.ContractAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	deployment.Address = address
	if metadata.TransactionHash != "" {
		txHash, err := validation.DecodeHex(metadata.TransactionHash)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		deployment.TransactionHash = txHash
	}
	deployment.BlockNumber = metadata.BlockNumber
	deployment.TransactionIndex = metadata.TransactionIndex
	if metadata.Deployer != "" {
		deployer, err := validation.DecodeHex(metadata.Deployer)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		deployment.Deployer = deployer
	}
	if metadata.RuntimeCode != "" && deployment.RuntimeCode == nil {
		code, err := validation.DecodeHex(metadata.RuntimeCode)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		deployment.RuntimeCode = code
	}
	if metadata.CreationCode != "" && deployment.CreationCode == nil {
		code, err := validation.DecodeHex(metadata.CreationCode)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		deployment.CreationCode = code
	}
	return deployment, nil
}
