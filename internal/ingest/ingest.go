// Package ingest persists verification outcomes: it runs the matcher over a
// compilation and an observed deployment, then writes the full row chain
// (code, sources, identity, deployment, compilation, verdict) in one
// transaction.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bytevault/bytevault/internal/match"
	"github.com/bytevault/bytevault/internal/observability/metrics"
	"github.com/bytevault/bytevault/internal/storage"
	"github.com/bytevault/bytevault/internal/verifier"
)

// ErrNoMatch is returned when the matcher found no match on either side. It
// is a normal per-item outcome, not a fault.
var ErrNoMatch = errors.New("compiled code does not match deployed code")

// Match types exposed on responses. A full match additionally has the
// metadata section unchanged.
const (
	MatchTypeFull    = "full"
	MatchTypePartial = "partial"
)

// MatchType derives the response match type from a matcher verdict.
func MatchType(m *match.Match) string {
	if m == nil {
		return ""
	}
	if m.MetadataMatch {
		return MatchTypeFull
	}
	return MatchTypePartial
}

// Deployment describes one observed on-chain deployment to verify against.
// A nil TransactionHash marks a genesis contract; its hash is derived from
// the code digests. Nil creation or runtime code means that side's code does
// not exist on chain, which is distinct from empty code.
type Deployment struct {
	ChainID          int64
	Address          []byte
	TransactionHash  []byte
	BlockNumber      *int64
	TransactionIndex *int64
	Deployer         []byte
	CreationCode     []byte
	RuntimeCode      []byte
}

// Result is a successful ingestion: every persisted row plus the per-side
// verdicts that produced it.
type Result struct {
	Contract    *storage.Contract
	Deployment  *storage.Deployment
	Compilation *storage.CompiledContract
	Verified    *storage.VerifiedContract
	// Inserted is false when an identical (compilation, deployment) verdict
	// already existed and the write was a no-op.
	Inserted bool

	CreationMatch *match.Match
	RuntimeMatch  *match.Match
}

// Service orchestrates matcher runs and transactional persistence.
type Service struct {
	store  storage.Store
	logger *slog.Logger
}

// NewService creates a new ingestion service
func NewService(store storage.Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Ingest verifies one deployment against one compilation and persists the
// outcome. ErrNoMatch reports that neither side matched; every other error
// is a structural import failure and nothing is written.
func (s *Service) Ingest(ctx context.Context, actor string, compilation *verifier.Compilation, deployment *Deployment) (*Result, error) {
	creationMatch, runtimeMatch, err := runMatcher(compilation, deployment)
	if err != nil {
		return nil, err
	}
	if creationMatch == nil && runtimeMatch == nil {
		return nil, ErrNoMatch
	}

	verified := &storage.VerifiedContract{}
	if err := setSide(creationMatch,
		&verified.CreationMatch, &verified.CreationValues, &verified.CreationTransformations, &verified.CreationMetadataMatch,
		match.ValidateCreationValues, match.ValidateCreationTransformations); err != nil {
		return nil, err
	}
	if err := setSide(runtimeMatch,
		&verified.RuntimeMatch, &verified.RuntimeValues, &verified.RuntimeTransformations, &verified.RuntimeMetadataMatch,
		match.ValidateRuntimeValues, match.ValidateRuntimeTransformations); err != nil {
		return nil, err
	}

	result := &Result{CreationMatch: creationMatch, RuntimeMatch: runtimeMatch}
	err = s.store.InTx(ctx, func(tx storage.Tx) error {
		onChainCreationDigest, err := tx.InternCode(ctx, actor, deployment.CreationCode)
		if err != nil {
			return err
		}
		onChainRuntimeDigest, err := tx.InternCode(ctx, actor, deployment.RuntimeCode)
		if err != nil {
			return err
		}

		contract, err := tx.UpsertContract(ctx, actor, onChainCreationDigest, onChainRuntimeDigest)
		if err != nil {
			return err
		}
		result.Contract = contract

		row := deploymentRow(deployment, onChainCreationDigest, onChainRuntimeDigest, contract.ID)
		stored, err := tx.UpsertDeployment(ctx, actor, row)
		if err != nil {
			return err
		}
		result.Deployment = stored

		compiled, err := s.upsertCompilation(ctx, tx, actor, compilation)
		if err != nil {
			return err
		}
		result.Compilation = compiled

		verified.DeploymentID = stored.ID
		verified.CompilationID = compiled.ID
		insertedRow, inserted, err := tx.InsertVerifiedContract(ctx, actor, verified)
		if err != nil {
			return err
		}
		result.Verified = insertedRow
		result.Inserted = inserted
		return nil
	})
	if err != nil {
		return nil, err
	}

	if verified.CreationMatch {
		metrics.Match("creation", MatchType(creationMatch))
	}
	if verified.RuntimeMatch {
		metrics.Match("runtime", MatchType(runtimeMatch))
	}
	s.logger.Info("ingested verification",
		"chain_id", deployment.ChainID,
		"contract", result.Contract.ID,
		"compilation", result.Compilation.ID,
		"inserted", result.Inserted,
		"creation_match", verified.CreationMatch,
		"runtime_match", verified.RuntimeMatch)
	return result, nil
}

// Evaluate runs the matcher without persisting anything. Verification
// requests that carry no deployment context still get a verdict this way.
func (s *Service) Evaluate(compilation *verifier.Compilation, deployment *Deployment) (creationMatch, runtimeMatch *match.Match, err error) {
	creationMatch, runtimeMatch, err = runMatcher(compilation, deployment)
	if err != nil {
		return nil, nil, err
	}
	if creationMatch == nil && runtimeMatch == nil {
		return nil, nil, ErrNoMatch
	}
	return creationMatch, runtimeMatch, nil
}

// runMatcher applies the matcher per side. A side without both compiled and
// deployed code never matches.
func runMatcher(compilation *verifier.Compilation, deployment *Deployment) (creationMatch, runtimeMatch *match.Match, err error) {
	if compilation.CreationCode != nil && deployment.CreationCode != nil {
		compilationArtifacts, err := match.ParseCompilationArtifacts(compilation.CompilationArtifacts)
		if err != nil {
			return nil, nil, err
		}
		creationArtifacts, err := match.ParseCreationCodeArtifacts(compilation.CreationCodeArtifacts)
		if err != nil {
			return nil, nil, err
		}
		creationMatch, err = match.VerifyCreationCode(deployment.CreationCode, compilation.CreationCode, creationArtifacts, compilationArtifacts)
		if err != nil {
			return nil, nil, fmt.Errorf("matching creation code: %w", err)
		}
	}

	if compilation.RuntimeCode != nil && deployment.RuntimeCode != nil {
		runtimeArtifacts, err := match.ParseRuntimeCodeArtifacts(compilation.RuntimeCodeArtifacts)
		if err != nil {
			return nil, nil, err
		}
		runtimeMatch, err = match.VerifyRuntimeCode(deployment.RuntimeCode, compilation.RuntimeCode, runtimeArtifacts)
		if err != nil {
			return nil, nil, fmt.Errorf("matching runtime code: %w", err)
		}
	}
	return creationMatch, runtimeMatch, nil
}

// setSide fills one side of the verified row, validating the documents
// against the closed schema before anything touches the database.
func setSide(m *match.Match, matched *bool, values, transformations *json.RawMessage, metadataMatch **bool,
	validateValues, validateTransformations func(json.RawMessage) error) error {
	if m == nil {
		return nil
	}

	valuesDoc, err := json.Marshal(&m.Values)
	if err != nil {
		return err
	}
	transformationsDoc, err := json.Marshal(m.Transformations)
	if err != nil {
		return err
	}
	if err := validateValues(valuesDoc); err != nil {
		return err
	}
	if err := validateTransformations(transformationsDoc); err != nil {
		return err
	}

	*matched = true
	*values = valuesDoc
	*transformations = transformationsDoc
	metadata := m.MetadataMatch
	*metadataMatch = &metadata
	return nil
}

// deploymentRow builds the storage row, deriving the genesis fields when the
// deployment has no creation transaction.
func deploymentRow(d *Deployment, creationDigest, runtimeDigest []byte, contractID string) *storage.Deployment {
	row := &storage.Deployment{
		ChainID:          d.ChainID,
		Address:          d.Address,
		TransactionHash:  d.TransactionHash,
		BlockNumber:      storage.GenesisBlockNumber,
		TransactionIndex: storage.GenesisBlockNumber,
		Deployer:         d.Deployer,
		ContractID:       contractID,
	}
	if row.TransactionHash == nil {
		row.TransactionHash = storage.GenesisTransactionHash(creationDigest, runtimeDigest)
	}
	if d.BlockNumber != nil {
		row.BlockNumber = *d.BlockNumber
	}
	if d.TransactionIndex != nil {
		row.TransactionIndex = *d.TransactionIndex
	}
	if row.Deployer == nil {
		row.Deployer = []byte{}
	}
	return row
}

// upsertCompilation persists the compiled contract, its code and its source
// files.
func (s *Service) upsertCompilation(ctx context.Context, tx storage.Tx, actor string, compilation *verifier.Compilation) (*storage.CompiledContract, error) {
	creationDigest, err := tx.InternCode(ctx, actor, compilation.CreationCode)
	if err != nil {
		return nil, err
	}
	runtimeDigest, err := tx.InternCode(ctx, actor, compilation.RuntimeCode)
	if err != nil {
		return nil, err
	}

	compiled, err := tx.UpsertCompiledContract(ctx, actor, &storage.CompiledContract{
		Compiler:              compilation.Compiler,
		Language:              compilation.Language,
		Version:               compilation.Version,
		Name:                  compilation.Name,
		FullyQualifiedName:    compilation.FullyQualifiedName,
		CompilerSettings:      compilation.CompilerSettings,
		CompilationArtifacts:  compilation.CompilationArtifacts,
		CreationCodeDigest:    creationDigest,
		CreationCodeArtifacts: compilation.CreationCodeArtifacts,
		RuntimeCodeDigest:     runtimeDigest,
		RuntimeCodeArtifacts:  compilation.RuntimeCodeArtifacts,
	})
	if err != nil {
		return nil, err
	}

	for path, content := range compilation.Sources {
		sourceDigest, err := tx.InternSource(ctx, actor, content)
		if err != nil {
			return nil, err
		}
		link := &storage.CompiledContractSource{
			CompilationID: compiled.ID,
			SourceDigest:  sourceDigest,
			Path:          path,
		}
		if err := tx.LinkCompiledContractSource(ctx, link); err != nil {
			return nil, err
		}
	}
	return compiled, nil
}
