// Package storage defines the persistent model for the bytecode database:
// content-addressed code and sources, chain-agnostic contract identities,
// per-chain deployments, compilations and the verified-contract links
// joining them.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bytevault/bytevault/internal/config"
)

// Code is a content-addressed bytecode row. Digest is sha256 of Code and is
// the primary key. KeccakDigest exists for external lookups only; it cannot
// serve as identity because a caller-supplied keccak digest cannot be
// verified by the store.
//
// Code == nil means "no code exists" (hard-fork inserted contracts), which is
// distinct from empty code. The nil case is represented by the reserved
// sentinel row whose digest is empty.
type Code struct {
	Digest       []byte
	KeccakDigest []byte
	Code         []byte
	CreatedAt    string
	CreatedBy    string
}

// Source is a content-addressed source file row, same discipline as Code.
type Source struct {
	Digest       []byte
	KeccakDigest []byte
	Content      string
	CreatedAt    string
	CreatedBy    string
}

// Contract is the chain-agnostic identity of a contract: the pair of its
// creation and runtime code digests. Two deployments with byte-identical
// code collapse to one row.
type Contract struct {
	ID                 string
	CreationCodeDigest []byte
	RuntimeCodeDigest  []byte
}

// Deployment is one on-chain occurrence of a Contract. An address may carry
// several deployments on one chain (CREATE2 redeploy after SELFDESTRUCT), so
// the natural key includes the creation transaction hash.
//
// Genesis deployments have no creation transaction; their TransactionHash is
// derived with GenesisTransactionHash and BlockNumber/TransactionIndex are
// both set to GenesisBlockNumber.
type Deployment struct {
	ID               string
	ChainID          int64
	Address          []byte
	TransactionHash  []byte
	BlockNumber      int64
	TransactionIndex int64
	Deployer         []byte
	ContractID       string
}

// GenesisBlockNumber is the reserved block number and transaction index for
// deployments that have no creation transaction.
const GenesisBlockNumber = -1

// CompiledContract is one compiler invocation's result. RuntimeCodeDigest
// refers to the normalized runtime code: link targets and immutable slots
// zeroed, so differently-linked builds of the same contract hash identically.
type CompiledContract struct {
	ID                    string
	Compiler              string
	Language              string
	Version               string
	Name                  string
	FullyQualifiedName    string
	CompilerSettings      json.RawMessage
	CompilationArtifacts  json.RawMessage
	CreationCodeDigest    []byte
	CreationCodeArtifacts json.RawMessage
	RuntimeCodeDigest     []byte
	RuntimeCodeArtifacts  json.RawMessage
}

// CompiledContractSource links a compilation to one of its source files.
type CompiledContractSource struct {
	CompilationID string
	SourceDigest  []byte
	Path          string
}

// VerifiedContract joins a Deployment with a CompiledContract along with the
// matcher verdict per side. For a side with Match == false the Values,
// Transformations and MetadataMatch fields must all be nil; with Match == true
// they must all be set. At least one side must match.
type VerifiedContract struct {
	ID            int64
	DeploymentID  string
	CompilationID string

	CreationMatch           bool
	CreationValues          json.RawMessage
	CreationTransformations json.RawMessage
	CreationMetadataMatch   *bool

	RuntimeMatch           bool
	RuntimeValues          json.RawMessage
	RuntimeTransformations json.RawMessage
	RuntimeMetadataMatch   *bool
}

// CheckInvariants reports whether the row satisfies the persisted-schema
// constraints, without inspecting the values/transformations documents
// themselves (those are validated by the match package schema validator).
func (v *VerifiedContract) CheckInvariants() error {
	if !v.CreationMatch && !v.RuntimeMatch {
		return fmt.Errorf("%w: neither creation nor runtime matched", ErrSchemaViolation)
	}
	checkSide := func(side string, match bool, values, transformations json.RawMessage, metadataMatch *bool) error {
		populated := values != nil && transformations != nil && metadataMatch != nil
		empty := values == nil && transformations == nil && metadataMatch == nil
		if match && !populated {
			return fmt.Errorf("%w: %s side matched but details are missing", ErrSchemaViolation, side)
		}
		if !match && !empty {
			return fmt.Errorf("%w: %s side did not match but details are present", ErrSchemaViolation, side)
		}
		return nil
	}
	if err := checkSide("creation", v.CreationMatch, v.CreationValues, v.CreationTransformations, v.CreationMetadataMatch); err != nil {
		return err
	}
	return checkSide("runtime", v.RuntimeMatch, v.RuntimeValues, v.RuntimeTransformations, v.RuntimeMetadataMatch)
}

// APIKey represents an API key used to authenticate write requests. The key
// name is the actor recorded in created_by columns.
type APIKey struct {
	ID         string
	Name       string
	KeyHash    string
	CreatedAt  string
	LastUsedAt string
	RevokedAt  string
}

// CodeStore handles content-addressed bytecode rows.
type CodeStore interface {
	// InternCode stores code if absent and returns its sha256 digest.
	// Duplicate content is the expected steady state, never an error.
	// InternCode(ctx, actor, nil) returns the no-code sentinel digest
	// without writing.
	InternCode(ctx context.Context, actor string, code []byte) ([]byte, error)
	GetCode(ctx context.Context, digest []byte) (*Code, error)
	// FindCodeByKeccak serves external keccak256 lookups through the
	// non-unique secondary index.
	FindCodeByKeccak(ctx context.Context, keccakDigest []byte) ([]Code, error)
}

// SourceStore handles content-addressed source rows.
type SourceStore interface {
	InternSource(ctx context.Context, actor string, content string) ([]byte, error)
	GetSource(ctx context.Context, digest []byte) (*Source, error)
}

// ContractStore handles contract identities and deployments.
type ContractStore interface {
	// UpsertContract inserts or finds the identity for the digest pair.
	UpsertContract(ctx context.Context, actor string, creationCodeDigest, runtimeCodeDigest []byte) (*Contract, error)
	GetContract(ctx context.Context, id string) (*Contract, error)
	// UpsertDeployment inserts or finds a deployment by its natural key
	// (chain_id, address, transaction_hash).
	UpsertDeployment(ctx context.Context, actor string, d *Deployment) (*Deployment, error)
	GetDeployment(ctx context.Context, chainID int64, address, transactionHash []byte) (*Deployment, error)
	ListDeploymentsByAddress(ctx context.Context, chainID int64, address []byte) ([]Deployment, error)
}

// CompilationStore handles compiled contracts and their source links.
type CompilationStore interface {
	// UpsertCompiledContract inserts or finds a compilation by its natural
	// key (compiler, language, creation_code_digest, runtime_code_digest).
	UpsertCompiledContract(ctx context.Context, actor string, c *CompiledContract) (*CompiledContract, error)
	LinkCompiledContractSource(ctx context.Context, link *CompiledContractSource) error
	ListCompiledContractSources(ctx context.Context, compilationID string) ([]CompiledContractSource, error)
	GetCompiledContract(ctx context.Context, id string) (*CompiledContract, error)
	// FindCompilationsByCode returns compilations whose creation or runtime
	// code digest equals the given digest.
	FindCompilationsByCode(ctx context.Context, codeDigest []byte) ([]CompiledContract, error)
	// ListCompilations pages through all compilations, newest first.
	ListCompilations(ctx context.Context, limit, offset int) ([]CompiledContract, error)
}

// VerifiedContractStore handles the persisted matcher results.
type VerifiedContractStore interface {
	// InsertVerifiedContract is a no-op when the (compilation, deployment)
	// pair already exists; the bool result reports whether a row was
	// created.
	InsertVerifiedContract(ctx context.Context, actor string, v *VerifiedContract) (*VerifiedContract, bool, error)
	ListVerifiedContractsByDeployment(ctx context.Context, deploymentID string) ([]VerifiedContract, error)
}

// APIKeyStore handles API key operations.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, name string) (key string, err error)
	ValidateAPIKey(ctx context.Context, key string) (*APIKey, error)
	ListAPIKeys(ctx context.Context) ([]APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error
}

// Tx is the set of operations available both on the bare store and inside a
// transaction. Domain services define their own minimal interfaces based on
// their actual usage.
type Tx interface {
	CodeStore
	SourceStore
	ContractStore
	CompilationStore
	VerifiedContractStore
}

// Store combines all storage interfaces with lifecycle methods.
type Store interface {
	Tx
	APIKeyStore

	// InTx runs fn inside one database transaction. The ingestion pipeline
	// relies on this to make the whole per-contract upsert atomic: a
	// genuine failure anywhere rolls the item back.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Migrate(ctx context.Context) error
}

// New creates a new store based on configuration.
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
