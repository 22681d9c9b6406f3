package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// dbtx is the subset of database/sql shared by *sql.DB and *sql.Tx, so the
// same query methods can run bare or inside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	pgQueries
	db     *sql.DB
	logger *slog.Logger
}

// pgQueries implements Tx against either a *sql.DB or a *sql.Tx.
type pgQueries struct {
	q dbtx
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{pgQueries: pgQueries{q: db}, db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// InTx runs fn inside one database transaction.
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(pgQueries{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	-- Content-addressed bytecode. code IS NULL means "no code exists",
	-- represented by the sentinel row with an empty digest.
	CREATE TABLE IF NOT EXISTS code (
		digest BYTEA PRIMARY KEY,
		digest_keccak BYTEA NOT NULL,
		code BYTEA,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_by TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_code_digest_keccak ON code(digest_keccak);

	-- Content-addressed source files
	CREATE TABLE IF NOT EXISTS sources (
		digest BYTEA PRIMARY KEY,
		digest_keccak BYTEA NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_by TEXT NOT NULL
	);

	-- Chain-agnostic contract identities
	CREATE TABLE IF NOT EXISTS contracts (
		id UUID PRIMARY KEY,
		creation_code_digest BYTEA NOT NULL REFERENCES code(digest),
		runtime_code_digest BYTEA NOT NULL REFERENCES code(digest),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_by TEXT NOT NULL,
		UNIQUE(creation_code_digest, runtime_code_digest)
	);

	CREATE INDEX IF NOT EXISTS idx_contracts_creation_code ON contracts(creation_code_digest);
	CREATE INDEX IF NOT EXISTS idx_contracts_runtime_code ON contracts(runtime_code_digest);

	-- Per-chain deployments. One address may have several rows per chain
	-- (CREATE2 redeploy after SELFDESTRUCT), hence the transaction hash in
	-- the natural key. Genesis deployments use block_number = -1.
	CREATE TABLE IF NOT EXISTS contract_deployments (
		id UUID PRIMARY KEY,
		chain_id BIGINT NOT NULL,
		address BYTEA NOT NULL,
		transaction_hash BYTEA NOT NULL,
		block_number BIGINT NOT NULL,
		transaction_index BIGINT NOT NULL,
		deployer BYTEA NOT NULL,
		contract_id UUID NOT NULL REFERENCES contracts(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_by TEXT NOT NULL,
		UNIQUE(chain_id, address, transaction_hash)
	);

	CREATE INDEX IF NOT EXISTS idx_deployments_contract_id ON contract_deployments(contract_id);
	CREATE INDEX IF NOT EXISTS idx_deployments_lookup ON contract_deployments(chain_id, address);

	-- One compiler invocation's result. The runtime code digest refers to
	-- normalized code (library targets and immutable slots zeroed).
	CREATE TABLE IF NOT EXISTS compiled_contracts (
		id UUID PRIMARY KEY,
		compiler TEXT NOT NULL,
		language TEXT NOT NULL,
		version TEXT NOT NULL,
		name TEXT NOT NULL,
		fully_qualified_name TEXT NOT NULL,
		compiler_settings JSONB NOT NULL,
		compilation_artifacts JSONB NOT NULL,
		creation_code_digest BYTEA NOT NULL REFERENCES code(digest),
		creation_code_artifacts JSONB NOT NULL,
		runtime_code_digest BYTEA NOT NULL REFERENCES code(digest),
		runtime_code_artifacts JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_by TEXT NOT NULL,
		UNIQUE(compiler, language, creation_code_digest, runtime_code_digest)
	);

	CREATE INDEX IF NOT EXISTS idx_compiled_contracts_creation_code ON compiled_contracts(creation_code_digest);
	CREATE INDEX IF NOT EXISTS idx_compiled_contracts_runtime_code ON compiled_contracts(runtime_code_digest);

	-- Source files per compilation
	CREATE TABLE IF NOT EXISTS compiled_contracts_sources (
		id UUID PRIMARY KEY,
		compilation_id UUID NOT NULL REFERENCES compiled_contracts(id),
		source_digest BYTEA NOT NULL REFERENCES sources(digest),
		path TEXT NOT NULL,
		UNIQUE(compilation_id, path)
	);

	CREATE INDEX IF NOT EXISTS idx_compiled_sources_digest ON compiled_contracts_sources(source_digest);

	-- Matcher verdicts. Only one side has to match: a proxy returning
	-- custom runtime code gives creation-only, a create2 factory gives
	-- runtime-only.
	CREATE TABLE IF NOT EXISTS verified_contracts (
		id BIGSERIAL PRIMARY KEY,
		deployment_id UUID NOT NULL REFERENCES contract_deployments(id),
		compilation_id UUID NOT NULL REFERENCES compiled_contracts(id),
		creation_match BOOLEAN NOT NULL,
		creation_values JSONB,
		creation_transformations JSONB,
		creation_metadata_match BOOLEAN,
		runtime_match BOOLEAN NOT NULL,
		runtime_values JSONB,
		runtime_transformations JSONB,
		runtime_metadata_match BOOLEAN,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_by TEXT NOT NULL,
		UNIQUE(compilation_id, deployment_id),
		CONSTRAINT verified_contracts_match_exists
			CHECK (creation_match = true OR runtime_match = true),
		CONSTRAINT verified_contracts_creation_match_integrity
			CHECK ((creation_match = false AND creation_values IS NULL AND creation_transformations IS NULL AND creation_metadata_match IS NULL) OR
			       (creation_match = true AND creation_values IS NOT NULL AND creation_transformations IS NOT NULL AND creation_metadata_match IS NOT NULL)),
		CONSTRAINT verified_contracts_runtime_match_integrity
			CHECK ((runtime_match = false AND runtime_values IS NULL AND runtime_transformations IS NULL AND runtime_metadata_match IS NULL) OR
			       (runtime_match = true AND runtime_values IS NOT NULL AND runtime_transformations IS NOT NULL AND runtime_metadata_match IS NOT NULL))
	);

	CREATE INDEX IF NOT EXISTS idx_verified_contracts_deployment ON verified_contracts(deployment_id);
	CREATE INDEX IF NOT EXISTS idx_verified_contracts_compilation ON verified_contracts(compilation_id);

	-- API keys
	CREATE TABLE IF NOT EXISTS api_keys (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		key_hash TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		last_used_at TIMESTAMPTZ,
		revoked_at TIMESTAMPTZ
	);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// Ensure the no-code sentinel exists.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO code (digest, digest_keccak, code, created_by)
		VALUES ('\x'::bytea, '\x'::bytea, NULL, 'migration')
		ON CONFLICT (digest) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("seeding no-code sentinel: %w", err)
	}

	s.logger.Info("database migrations complete")
	return nil
}

// InternCode stores code if absent and returns its sha256 digest.
func (s pgQueries) InternCode(ctx context.Context, actor string, code []byte) ([]byte, error) {
	if code == nil {
		return NoCodeDigest, nil
	}
	digest := ContentDigest(code)
	query := `
		INSERT INTO code (digest, digest_keccak, code, created_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (digest) DO NOTHING
	`
	if _, err := s.q.ExecContext(ctx, query, digest, KeccakDigest(code), code, actor); err != nil {
		return nil, fmt.Errorf("interning code: %w", err)
	}
	return digest, nil
}

// GetCode retrieves a code row by its sha256 digest
func (s pgQueries) GetCode(ctx context.Context, digest []byte) (*Code, error) {
	query := `SELECT digest, digest_keccak, code, created_at, created_by FROM code WHERE digest = $1`
	var c Code
	var createdAt time.Time
	err := s.q.QueryRowContext(ctx, query, digest).Scan(&c.Digest, &c.KeccakDigest, &c.Code, &createdAt, &c.CreatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt = createdAt.Format(time.RFC3339)
	return &c, nil
}

// FindCodeByKeccak retrieves code rows through the keccak secondary index
func (s pgQueries) FindCodeByKeccak(ctx context.Context, keccakDigest []byte) ([]Code, error) {
	query := `SELECT digest, digest_keccak, code FROM code WHERE digest_keccak = $1`
	rows, err := s.q.QueryContext(ctx, query, keccakDigest)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []Code
	for rows.Next() {
		var c Code
		if err := rows.Scan(&c.Digest, &c.KeccakDigest, &c.Code); err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

// InternSource stores a source file if absent and returns its sha256 digest
func (s pgQueries) InternSource(ctx context.Context, actor string, content string) ([]byte, error) {
	digest := ContentDigest([]byte(content))
	query := `
		INSERT INTO sources (digest, digest_keccak, content, created_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (digest) DO NOTHING
	`
	if _, err := s.q.ExecContext(ctx, query, digest, KeccakDigest([]byte(content)), content, actor); err != nil {
		return nil, fmt.Errorf("interning source: %w", err)
	}
	return digest, nil
}

// GetSource retrieves a source row by its sha256 digest
func (s pgQueries) GetSource(ctx context.Context, digest []byte) (*Source, error) {
	query := `SELECT digest, digest_keccak, content, created_at, created_by FROM sources WHERE digest = $1`
	var src Source
	var createdAt time.Time
	err := s.q.QueryRowContext(ctx, query, digest).Scan(&src.Digest, &src.KeccakDigest, &src.Content, &createdAt, &src.CreatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	src.CreatedAt = createdAt.Format(time.RFC3339)
	return &src, nil
}

// UpsertContract inserts or finds the identity for the digest pair
func (s pgQueries) UpsertContract(ctx context.Context, actor string, creationCodeDigest, runtimeCodeDigest []byte) (*Contract, error) {
	query := `
		INSERT INTO contracts (id, creation_code_digest, runtime_code_digest, created_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (creation_code_digest, runtime_code_digest) DO NOTHING
	`
	if _, err := s.q.ExecContext(ctx, query, generateID(), creationCodeDigest, runtimeCodeDigest, actor); err != nil {
		return nil, fmt.Errorf("inserting contract: %w", err)
	}

	var c Contract
	err := s.q.QueryRowContext(ctx,
		`SELECT id, creation_code_digest, runtime_code_digest FROM contracts WHERE creation_code_digest = $1 AND runtime_code_digest = $2`,
		creationCodeDigest, runtimeCodeDigest,
	).Scan(&c.ID, &c.CreationCodeDigest, &c.RuntimeCodeDigest)
	if err != nil {
		return nil, fmt.Errorf("selecting contract: %w", err)
	}
	return &c, nil
}

// GetContract retrieves a contract identity by id
func (s pgQueries) GetContract(ctx context.Context, id string) (*Contract, error) {
	var c Contract
	err := s.q.QueryRowContext(ctx,
		`SELECT id, creation_code_digest, runtime_code_digest FROM contracts WHERE id = $1`, id,
	).Scan(&c.ID, &c.CreationCodeDigest, &c.RuntimeCodeDigest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &c, err
}

// UpsertDeployment inserts or finds a deployment by its natural key
func (s pgQueries) UpsertDeployment(ctx context.Context, actor string, d *Deployment) (*Deployment, error) {
	query := `
		INSERT INTO contract_deployments (id, chain_id, address, transaction_hash, block_number, transaction_index, deployer, contract_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (chain_id, address, transaction_hash) DO NOTHING
	`
	_, err := s.q.ExecContext(ctx, query, generateID(), d.ChainID, d.Address, d.TransactionHash,
		d.BlockNumber, d.TransactionIndex, d.Deployer, d.ContractID, actor)
	if err != nil {
		return nil, fmt.Errorf("inserting deployment: %w", err)
	}
	return s.GetDeployment(ctx, d.ChainID, d.Address, d.TransactionHash)
}

// GetDeployment retrieves a deployment by its natural key
func (s pgQueries) GetDeployment(ctx context.Context, chainID int64, address, transactionHash []byte) (*Deployment, error) {
	query := `
		SELECT id, chain_id, address, transaction_hash, block_number, transaction_index, deployer, contract_id
		FROM contract_deployments
		WHERE chain_id = $1 AND address = $2 AND transaction_hash = $3
	`
	var d Deployment
	err := s.q.QueryRowContext(ctx, query, chainID, address, transactionHash).Scan(
		&d.ID, &d.ChainID, &d.Address, &d.TransactionHash, &d.BlockNumber, &d.TransactionIndex, &d.Deployer, &d.ContractID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &d, err
}

// ListDeploymentsByAddress lists deployments of an address on a chain,
// newest first
func (s pgQueries) ListDeploymentsByAddress(ctx context.Context, chainID int64, address []byte) ([]Deployment, error) {
	query := `
		SELECT id, chain_id, address, transaction_hash, block_number, transaction_index, deployer, contract_id
		FROM contract_deployments
		WHERE chain_id = $1 AND address = $2
		ORDER BY block_number DESC, transaction_index DESC
	`
	rows, err := s.q.QueryContext(ctx, query, chainID, address)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deployments []Deployment
	for rows.Next() {
		var d Deployment
		if err := rows.Scan(&d.ID, &d.ChainID, &d.Address, &d.TransactionHash, &d.BlockNumber, &d.TransactionIndex, &d.Deployer, &d.ContractID); err != nil {
			return nil, err
		}
		deployments = append(deployments, d)
	}
	return deployments, rows.Err()
}

// UpsertCompiledContract inserts or finds a compilation by its natural key
func (s pgQueries) UpsertCompiledContract(ctx context.Context, actor string, c *CompiledContract) (*CompiledContract, error) {
	query := `
		INSERT INTO compiled_contracts (id, compiler, language, version, name, fully_qualified_name,
			compiler_settings, compilation_artifacts, creation_code_digest, creation_code_artifacts,
			runtime_code_digest, runtime_code_artifacts, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (compiler, language, creation_code_digest, runtime_code_digest) DO NOTHING
	`
	_, err := s.q.ExecContext(ctx, query, generateID(), c.Compiler, c.Language, c.Version, c.Name,
		c.FullyQualifiedName, []byte(c.CompilerSettings), []byte(c.CompilationArtifacts),
		c.CreationCodeDigest, []byte(c.CreationCodeArtifacts), c.RuntimeCodeDigest, []byte(c.RuntimeCodeArtifacts), actor)
	if err != nil {
		return nil, fmt.Errorf("inserting compiled contract: %w", err)
	}

	var out CompiledContract
	err = s.q.QueryRowContext(ctx, `
		SELECT id, compiler, language, version, name, fully_qualified_name, compiler_settings,
			compilation_artifacts, creation_code_digest, creation_code_artifacts, runtime_code_digest, runtime_code_artifacts
		FROM compiled_contracts
		WHERE compiler = $1 AND language = $2 AND creation_code_digest = $3 AND runtime_code_digest = $4
	`, c.Compiler, c.Language, c.CreationCodeDigest, c.RuntimeCodeDigest).Scan(
		&out.ID, &out.Compiler, &out.Language, &out.Version, &out.Name, &out.FullyQualifiedName,
		&out.CompilerSettings, &out.CompilationArtifacts, &out.CreationCodeDigest, &out.CreationCodeArtifacts,
		&out.RuntimeCodeDigest, &out.RuntimeCodeArtifacts,
	)
	if err != nil {
		return nil, fmt.Errorf("selecting compiled contract: %w", err)
	}
	return &out, nil
}

// LinkCompiledContractSource links a compilation to one of its source files
func (s pgQueries) LinkCompiledContractSource(ctx context.Context, link *CompiledContractSource) error {
	query := `
		INSERT INTO compiled_contracts_sources (id, compilation_id, source_digest, path)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (compilation_id, path) DO NOTHING
	`
	_, err := s.q.ExecContext(ctx, query, generateID(), link.CompilationID, link.SourceDigest, link.Path)
	return err
}

// ListCompiledContractSources lists the source links of a compilation
func (s pgQueries) ListCompiledContractSources(ctx context.Context, compilationID string) ([]CompiledContractSource, error) {
	query := `SELECT compilation_id, source_digest, path FROM compiled_contracts_sources WHERE compilation_id = $1 ORDER BY path`
	rows, err := s.q.QueryContext(ctx, query, compilationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []CompiledContractSource
	for rows.Next() {
		var l CompiledContractSource
		if err := rows.Scan(&l.CompilationID, &l.SourceDigest, &l.Path); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// GetCompiledContract retrieves a compilation by id
func (s pgQueries) GetCompiledContract(ctx context.Context, id string) (*CompiledContract, error) {
	var out CompiledContract
	err := s.q.QueryRowContext(ctx, `
		SELECT id, compiler, language, version, name, fully_qualified_name, compiler_settings,
			compilation_artifacts, creation_code_digest, creation_code_artifacts, runtime_code_digest, runtime_code_artifacts
		FROM compiled_contracts WHERE id = $1
	`, id).Scan(
		&out.ID, &out.Compiler, &out.Language, &out.Version, &out.Name, &out.FullyQualifiedName,
		&out.CompilerSettings, &out.CompilationArtifacts, &out.CreationCodeDigest, &out.CreationCodeArtifacts,
		&out.RuntimeCodeDigest, &out.RuntimeCodeArtifacts,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &out, err
}

// FindCompilationsByCode finds compilations by creation or runtime code digest
func (s pgQueries) FindCompilationsByCode(ctx context.Context, codeDigest []byte) ([]CompiledContract, error) {
	query := `
		SELECT id, compiler, language, version, name, fully_qualified_name, compiler_settings,
			compilation_artifacts, creation_code_digest, creation_code_artifacts, runtime_code_digest, runtime_code_artifacts
		FROM compiled_contracts
		WHERE creation_code_digest = $1 OR runtime_code_digest = $1
	`
	rows, err := s.q.QueryContext(ctx, query, codeDigest)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var compilations []CompiledContract
	for rows.Next() {
		var c CompiledContract
		if err := rows.Scan(&c.ID, &c.Compiler, &c.Language, &c.Version, &c.Name, &c.FullyQualifiedName,
			&c.CompilerSettings, &c.CompilationArtifacts, &c.CreationCodeDigest, &c.CreationCodeArtifacts,
			&c.RuntimeCodeDigest, &c.RuntimeCodeArtifacts); err != nil {
			return nil, err
		}
		compilations = append(compilations, c)
	}
	return compilations, rows.Err()
}

// ListCompilations pages through all compilations, newest first
func (s pgQueries) ListCompilations(ctx context.Context, limit, offset int) ([]CompiledContract, error) {
	query := `
		SELECT id, compiler, language, version, name, fully_qualified_name, compiler_settings,
			compilation_artifacts, creation_code_digest, creation_code_artifacts, runtime_code_digest, runtime_code_artifacts
		FROM compiled_contracts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.q.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var compilations []CompiledContract
	for rows.Next() {
		var c CompiledContract
		if err := rows.Scan(&c.ID, &c.Compiler, &c.Language, &c.Version, &c.Name, &c.FullyQualifiedName,
			&c.CompilerSettings, &c.CompilationArtifacts, &c.CreationCodeDigest, &c.CreationCodeArtifacts,
			&c.RuntimeCodeDigest, &c.RuntimeCodeArtifacts); err != nil {
			return nil, err
		}
		compilations = append(compilations, c)
	}
	return compilations, rows.Err()
}

// InsertVerifiedContract persists a matcher verdict; inserting an existing
// (compilation, deployment) pair is a no-op
func (s pgQueries) InsertVerifiedContract(ctx context.Context, actor string, v *VerifiedContract) (*VerifiedContract, bool, error) {
	if err := v.CheckInvariants(); err != nil {
		return nil, false, err
	}
	query := `
		INSERT INTO verified_contracts (deployment_id, compilation_id,
			creation_match, creation_values, creation_transformations, creation_metadata_match,
			runtime_match, runtime_values, runtime_transformations, runtime_metadata_match, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (compilation_id, deployment_id) DO NOTHING
	`
	res, err := s.q.ExecContext(ctx, query, v.DeploymentID, v.CompilationID,
		v.CreationMatch, jsonOrNil(v.CreationValues), jsonOrNil(v.CreationTransformations), v.CreationMetadataMatch,
		v.RuntimeMatch, jsonOrNil(v.RuntimeValues), jsonOrNil(v.RuntimeTransformations), v.RuntimeMetadataMatch, actor)
	if err != nil {
		return nil, false, fmt.Errorf("inserting verified contract: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	var out VerifiedContract
	var cv, ct, rv, rt []byte
	err = s.q.QueryRowContext(ctx, `
		SELECT id, deployment_id, compilation_id,
			creation_match, creation_values, creation_transformations, creation_metadata_match,
			runtime_match, runtime_values, runtime_transformations, runtime_metadata_match
		FROM verified_contracts WHERE compilation_id = $1 AND deployment_id = $2
	`, v.CompilationID, v.DeploymentID).Scan(
		&out.ID, &out.DeploymentID, &out.CompilationID,
		&out.CreationMatch, &cv, &ct, &out.CreationMetadataMatch,
		&out.RuntimeMatch, &rv, &rt, &out.RuntimeMetadataMatch,
	)
	if err != nil {
		return nil, false, fmt.Errorf("selecting verified contract: %w", err)
	}
	out.CreationValues, out.CreationTransformations = cv, ct
	out.RuntimeValues, out.RuntimeTransformations = rv, rt
	return &out, affected > 0, nil
}

// ListVerifiedContractsByDeployment lists verdicts for a deployment
func (s pgQueries) ListVerifiedContractsByDeployment(ctx context.Context, deploymentID string) ([]VerifiedContract, error) {
	query := `
		SELECT id, deployment_id, compilation_id,
			creation_match, creation_values, creation_transformations, creation_metadata_match,
			runtime_match, runtime_values, runtime_transformations, runtime_metadata_match
		FROM verified_contracts WHERE deployment_id = $1 ORDER BY id
	`
	rows, err := s.q.QueryContext(ctx, query, deploymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var verdicts []VerifiedContract
	for rows.Next() {
		var v VerifiedContract
		var cv, ct, rv, rt []byte
		if err := rows.Scan(&v.ID, &v.DeploymentID, &v.CompilationID,
			&v.CreationMatch, &cv, &ct, &v.CreationMetadataMatch,
			&v.RuntimeMatch, &rv, &rt, &v.RuntimeMetadataMatch); err != nil {
			return nil, err
		}
		v.CreationValues, v.CreationTransformations = cv, ct
		v.RuntimeValues, v.RuntimeTransformations = rv, rt
		verdicts = append(verdicts, v)
	}
	return verdicts, rows.Err()
}

// CreateAPIKey creates a new API key
func (s *PostgresStore) CreateAPIKey(ctx context.Context, name string) (string, error) {
	key := generateAPIKey()
	hash := hashAPIKey(key)
	_, err := s.db.ExecContext(ctx, "INSERT INTO api_keys (id, key_hash, name) VALUES ($1, $2, $3)", generateID(), hash, name)
	if err != nil {
		return "", err
	}
	return key, nil
}

// ValidateAPIKey validates an API key
func (s *PostgresStore) ValidateAPIKey(ctx context.Context, key string) (*APIKey, error) {
	hash := hashAPIKey(key)
	var ak APIKey
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, "SELECT id, key_hash, name, created_at FROM api_keys WHERE key_hash = $1 AND revoked_at IS NULL", hash).Scan(
		&ak.ID, &ak.KeyHash, &ak.Name, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ak.CreatedAt = createdAt.Format(time.RFC3339)
	_, _ = s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = NOW() WHERE id = $1", ak.ID)
	return &ak, nil
}

// ListAPIKeys lists all API keys
func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at, last_used_at FROM api_keys WHERE revoked_at IS NULL")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		var createdAt time.Time
		var lastUsed sql.NullTime
		if err := rows.Scan(&k.ID, &k.Name, &createdAt, &lastUsed); err != nil {
			return nil, err
		}
		k.CreatedAt = createdAt.Format(time.RFC3339)
		if lastUsed.Valid {
			k.LastUsedAt = lastUsed.Time.Format(time.RFC3339)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeAPIKey revokes an API key
func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE api_keys SET revoked_at = NOW() WHERE id = $1", id)
	return err
}

// jsonOrNil converts an optional JSON document to a driver value, keeping
// SQL NULL distinct from an empty document.
func jsonOrNil(doc []byte) any {
	if doc == nil {
		return nil
	}
	return []byte(doc)
}
