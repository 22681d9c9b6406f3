package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	sqliteQueries
	db     *sql.DB
	logger *slog.Logger
}

// sqliteQueries implements Tx against either a *sql.DB or a *sql.Tx.
type sqliteQueries struct {
	q dbtx
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent transactions.
	db.SetMaxOpenConns(1)

	return &SQLiteStore{sqliteQueries: sqliteQueries{q: db}, db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InTx runs fn inside one database transaction.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(sqliteQueries{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	-- Content-addressed bytecode. code IS NULL means "no code exists",
	-- represented by the sentinel row with an empty digest.
	CREATE TABLE IF NOT EXISTS code (
		digest BLOB PRIMARY KEY,
		digest_keccak BLOB NOT NULL,
		code BLOB,
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		created_by TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_code_digest_keccak ON code(digest_keccak);

	-- Content-addressed source files
	CREATE TABLE IF NOT EXISTS sources (
		digest BLOB PRIMARY KEY,
		digest_keccak BLOB NOT NULL,
		content TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		created_by TEXT NOT NULL
	);

	-- Chain-agnostic contract identities
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		creation_code_digest BLOB NOT NULL REFERENCES code(digest),
		runtime_code_digest BLOB NOT NULL REFERENCES code(digest),
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		created_by TEXT NOT NULL,
		UNIQUE(creation_code_digest, runtime_code_digest)
	);

	CREATE INDEX IF NOT EXISTS idx_contracts_creation_code ON contracts(creation_code_digest);
	CREATE INDEX IF NOT EXISTS idx_contracts_runtime_code ON contracts(runtime_code_digest);

	-- Per-chain deployments. Genesis deployments use block_number = -1.
	CREATE TABLE IF NOT EXISTS contract_deployments (
		id TEXT PRIMARY KEY,
		chain_id INTEGER NOT NULL,
		address BLOB NOT NULL,
		transaction_hash BLOB NOT NULL,
		block_number INTEGER NOT NULL,
		transaction_index INTEGER NOT NULL,
		deployer BLOB NOT NULL,
		contract_id TEXT NOT NULL REFERENCES contracts(id),
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		created_by TEXT NOT NULL,
		UNIQUE(chain_id, address, transaction_hash)
	);

	CREATE INDEX IF NOT EXISTS idx_deployments_contract_id ON contract_deployments(contract_id);
	CREATE INDEX IF NOT EXISTS idx_deployments_lookup ON contract_deployments(chain_id, address);

	-- One compiler invocation's result
	CREATE TABLE IF NOT EXISTS compiled_contracts (
		id TEXT PRIMARY KEY,
		compiler TEXT NOT NULL,
		language TEXT NOT NULL,
		version TEXT NOT NULL,
		name TEXT NOT NULL,
		fully_qualified_name TEXT NOT NULL,
		compiler_settings TEXT NOT NULL,
		compilation_artifacts TEXT NOT NULL,
		creation_code_digest BLOB NOT NULL REFERENCES code(digest),
		creation_code_artifacts TEXT NOT NULL,
		runtime_code_digest BLOB NOT NULL REFERENCES code(digest),
		runtime_code_artifacts TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		created_by TEXT NOT NULL,
		UNIQUE(compiler, language, creation_code_digest, runtime_code_digest)
	);

	CREATE INDEX IF NOT EXISTS idx_compiled_contracts_creation_code ON compiled_contracts(creation_code_digest);
	CREATE INDEX IF NOT EXISTS idx_compiled_contracts_runtime_code ON compiled_contracts(runtime_code_digest);

	-- Source files per compilation
	CREATE TABLE IF NOT EXISTS compiled_contracts_sources (
		id TEXT PRIMARY KEY,
		compilation_id TEXT NOT NULL REFERENCES compiled_contracts(id),
		source_digest BLOB NOT NULL REFERENCES sources(digest),
		path TEXT NOT NULL,
		UNIQUE(compilation_id, path)
	);

	CREATE INDEX IF NOT EXISTS idx_compiled_sources_digest ON compiled_contracts_sources(source_digest);

	-- Matcher verdicts. Only one side has to match.
	CREATE TABLE IF NOT EXISTS verified_contracts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		deployment_id TEXT NOT NULL REFERENCES contract_deployments(id),
		compilation_id TEXT NOT NULL REFERENCES compiled_contracts(id),
		creation_match INTEGER NOT NULL,
		creation_values TEXT,
		creation_transformations TEXT,
		creation_metadata_match INTEGER,
		runtime_match INTEGER NOT NULL,
		runtime_values TEXT,
		runtime_transformations TEXT,
		runtime_metadata_match INTEGER,
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		created_by TEXT NOT NULL,
		UNIQUE(compilation_id, deployment_id),
		CHECK (creation_match = 1 OR runtime_match = 1),
		CHECK ((creation_match = 0 AND creation_values IS NULL AND creation_transformations IS NULL AND creation_metadata_match IS NULL) OR
		       (creation_match = 1 AND creation_values IS NOT NULL AND creation_transformations IS NOT NULL AND creation_metadata_match IS NOT NULL)),
		CHECK ((runtime_match = 0 AND runtime_values IS NULL AND runtime_transformations IS NULL AND runtime_metadata_match IS NULL) OR
		       (runtime_match = 1 AND runtime_values IS NOT NULL AND runtime_transformations IS NOT NULL AND runtime_metadata_match IS NOT NULL))
	);

	CREATE INDEX IF NOT EXISTS idx_verified_contracts_deployment ON verified_contracts(deployment_id);
	CREATE INDEX IF NOT EXISTS idx_verified_contracts_compilation ON verified_contracts(compilation_id);

	-- API keys
	CREATE TABLE IF NOT EXISTS api_keys (
		id TEXT PRIMARY KEY,
		key_hash TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		created_at TEXT DEFAULT (datetime('now')),
		last_used_at TEXT,
		revoked_at TEXT
	);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// Ensure the no-code sentinel exists.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO code (digest, digest_keccak, code, created_by)
		VALUES (x'', x'', NULL, 'migration')
		ON CONFLICT (digest) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("seeding no-code sentinel: %w", err)
	}

	s.logger.Info("database migrations complete")
	return nil
}

// InternCode stores code if absent and returns its sha256 digest.
func (s sqliteQueries) InternCode(ctx context.Context, actor string, code []byte) ([]byte, error) {
	if code == nil {
		return NoCodeDigest, nil
	}
	digest := ContentDigest(code)
	query := `
		INSERT INTO code (digest, digest_keccak, code, created_by)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (digest) DO NOTHING
	`
	if _, err := s.q.ExecContext(ctx, query, digest, KeccakDigest(code), code, actor); err != nil {
		return nil, fmt.Errorf("interning code: %w", err)
	}
	return digest, nil
}

// GetCode retrieves a code row by its sha256 digest
func (s sqliteQueries) GetCode(ctx context.Context, digest []byte) (*Code, error) {
	query := `SELECT digest, digest_keccak, code, created_at, created_by FROM code WHERE digest = ?`
	var c Code
	err := s.q.QueryRowContext(ctx, query, digest).Scan(&c.Digest, &c.KeccakDigest, &c.Code, &c.CreatedAt, &c.CreatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindCodeByKeccak retrieves code rows through the keccak secondary index
func (s sqliteQueries) FindCodeByKeccak(ctx context.Context, keccakDigest []byte) ([]Code, error) {
	query := `SELECT digest, digest_keccak, code FROM code WHERE digest_keccak = ?`
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
func (s sqliteQueries) InternSource(ctx context.Context, actor string, content string) ([]byte, error) {
	digest := ContentDigest([]byte(content))
	query := `
		INSERT INTO sources (digest, digest_keccak, content, created_by)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (digest) DO NOTHING
	`
	if _, err := s.q.ExecContext(ctx, query, digest, KeccakDigest([]byte(content)), content, actor); err != nil {
		return nil, fmt.Errorf("interning source: %w", err)
	}
	return digest, nil
}

// GetSource retrieves a source row by its sha256 digest
func (s sqliteQueries) GetSource(ctx context.Context, digest []byte) (*Source, error) {
	query := `SELECT digest, digest_keccak, content, created_at, created_by FROM sources WHERE digest = ?`
	var src Source
	err := s.q.QueryRowContext(ctx, query, digest).Scan(&src.Digest, &src.KeccakDigest, &src.Content, &src.CreatedAt, &src.CreatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &src, nil
}

// UpsertContract inserts or finds the identity for the digest pair
func (s sqliteQueries) UpsertContract(ctx context.Context, actor string, creationCodeDigest, runtimeCodeDigest []byte) (*Contract, error) {
	query := `
		INSERT INTO contracts (id, creation_code_digest, runtime_code_digest, created_by)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (creation_code_digest, runtime_code_digest) DO NOTHING
	`
	if _, err := s.q.ExecContext(ctx, query, generateID(), creationCodeDigest, runtimeCodeDigest, actor); err != nil {
		return nil, fmt.Errorf("inserting contract: %w", err)
	}

	var c Contract
	err := s.q.QueryRowContext(ctx,
		`SELECT id, creation_code_digest, runtime_code_digest FROM contracts WHERE creation_code_digest = ? AND runtime_code_digest = ?`,
		creationCodeDigest, runtimeCodeDigest,
	).Scan(&c.ID, &c.CreationCodeDigest, &c.RuntimeCodeDigest)
	if err != nil {
		return nil, fmt.Errorf("selecting contract: %w", err)
	}
	return &c, nil
}

// GetContract retrieves a contract identity by id
func (s sqliteQueries) GetContract(ctx context.Context, id string) (*Contract, error) {
	var c Contract
	err := s.q.QueryRowContext(ctx,
		`SELECT id, creation_code_digest, runtime_code_digest FROM contracts WHERE id = ?`, id,
	).Scan(&c.ID, &c.CreationCodeDigest, &c.RuntimeCodeDigest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &c, err
}

// UpsertDeployment inserts or finds a deployment by its natural key
func (s sqliteQueries) UpsertDeployment(ctx context.Context, actor string, d *Deployment) (*Deployment, error) {
	query := `
		INSERT INTO contract_deployments (id, chain_id, address, transaction_hash, block_number, transaction_index, deployer, contract_id, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
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
func (s sqliteQueries) GetDeployment(ctx context.Context, chainID int64, address, transactionHash []byte) (*Deployment, error) {
	query := `
		SELECT id, chain_id, address, transaction_hash, block_number, transaction_index, deployer, contract_id
		FROM contract_deployments
		WHERE chain_id = ? AND address = ? AND transaction_hash = ?
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
func (s sqliteQueries) ListDeploymentsByAddress(ctx context.Context, chainID int64, address []byte) ([]Deployment, error) {
	query := `
		SELECT id, chain_id, address, transaction_hash, block_number, transaction_index, deployer, contract_id
		FROM contract_deployments
		WHERE chain_id = ? AND address = ?
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
func (s sqliteQueries) UpsertCompiledContract(ctx context.Context, actor string, c *CompiledContract) (*CompiledContract, error) {
	query := `
		INSERT INTO compiled_contracts (id, compiler, language, version, name, fully_qualified_name,
			compiler_settings, compilation_artifacts, creation_code_digest, creation_code_artifacts,
			runtime_code_digest, runtime_code_artifacts, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (compiler, language, creation_code_digest, runtime_code_digest) DO NOTHING
	`
	_, err := s.q.ExecContext(ctx, query, generateID(), c.Compiler, c.Language, c.Version, c.Name,
		c.FullyQualifiedName, string(c.CompilerSettings), string(c.CompilationArtifacts),
		c.CreationCodeDigest, string(c.CreationCodeArtifacts), c.RuntimeCodeDigest, string(c.RuntimeCodeArtifacts), actor)
	if err != nil {
		return nil, fmt.Errorf("inserting compiled contract: %w", err)
	}

	var out CompiledContract
	var settings, compArts, creationArts, runtimeArts string
	err = s.q.QueryRowContext(ctx, `
		SELECT id, compiler, language, version, name, fully_qualified_name, compiler_settings,
			compilation_artifacts, creation_code_digest, creation_code_artifacts, runtime_code_digest, runtime_code_artifacts
		FROM compiled_contracts
		WHERE compiler = ? AND language = ? AND creation_code_digest = ? AND runtime_code_digest = ?
	`, c.Compiler, c.Language, c.CreationCodeDigest, c.RuntimeCodeDigest).Scan(
		&out.ID, &out.Compiler, &out.Language, &out.Version, &out.Name, &out.FullyQualifiedName,
		&settings, &compArts, &out.CreationCodeDigest, &creationArts, &out.RuntimeCodeDigest, &runtimeArts,
	)
	if err != nil {
		return nil, fmt.Errorf("selecting compiled contract: %w", err)
	}
	out.CompilerSettings = []byte(settings)
	out.CompilationArtifacts = []byte(compArts)
	out.CreationCodeArtifacts = []byte(creationArts)
	out.RuntimeCodeArtifacts = []byte(runtimeArts)
	return &out, nil
}

// LinkCompiledContractSource links a compilation to one of its source files
func (s sqliteQueries) LinkCompiledContractSource(ctx context.Context, link *CompiledContractSource) error {
	query := `
		INSERT INTO compiled_contracts_sources (id, compilation_id, source_digest, path)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (compilation_id, path) DO NOTHING
	`
	_, err := s.q.ExecContext(ctx, query, generateID(), link.CompilationID, link.SourceDigest, link.Path)
	return err
}

// ListCompiledContractSources lists the source links of a compilation
func (s sqliteQueries) ListCompiledContractSources(ctx context.Context, compilationID string) ([]CompiledContractSource, error) {
	query := `SELECT compilation_id, source_digest, path FROM compiled_contracts_sources WHERE compilation_id = ? ORDER BY path`
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
func (s sqliteQueries) GetCompiledContract(ctx context.Context, id string) (*CompiledContract, error) {
	var out CompiledContract
	var settings, compArts, creationArts, runtimeArts string
	err := s.q.QueryRowContext(ctx, `
		SELECT id, compiler, language, version, name, fully_qualified_name, compiler_settings,
			compilation_artifacts, creation_code_digest, creation_code_artifacts, runtime_code_digest, runtime_code_artifacts
		FROM compiled_contracts WHERE id = ?
	`, id).Scan(
		&out.ID, &out.Compiler, &out.Language, &out.Version, &out.Name, &out.FullyQualifiedName,
		&settings, &compArts, &out.CreationCodeDigest, &creationArts, &out.RuntimeCodeDigest, &runtimeArts,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out.CompilerSettings = []byte(settings)
	out.CompilationArtifacts = []byte(compArts)
	out.CreationCodeArtifacts = []byte(creationArts)
	out.RuntimeCodeArtifacts = []byte(runtimeArts)
	return &out, nil
}

// FindCompilationsByCode finds compilations by creation or runtime code digest
func (s sqliteQueries) FindCompilationsByCode(ctx context.Context, codeDigest []byte) ([]CompiledContract, error) {
	query := `
		SELECT id, compiler, language, version, name, fully_qualified_name, compiler_settings,
			compilation_artifacts, creation_code_digest, creation_code_artifacts, runtime_code_digest, runtime_code_artifacts
		FROM compiled_contracts
		WHERE creation_code_digest = ? OR runtime_code_digest = ?
	`
	rows, err := s.q.QueryContext(ctx, query, codeDigest, codeDigest)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var compilations []CompiledContract
	for rows.Next() {
		var c CompiledContract
		var settings, compArts, creationArts, runtimeArts string
		if err := rows.Scan(&c.ID, &c.Compiler, &c.Language, &c.Version, &c.Name, &c.FullyQualifiedName,
			&settings, &compArts, &c.CreationCodeDigest, &creationArts, &c.RuntimeCodeDigest, &runtimeArts); err != nil {
			return nil, err
		}
		c.CompilerSettings = []byte(settings)
		c.CompilationArtifacts = []byte(compArts)
		c.CreationCodeArtifacts = []byte(creationArts)
		c.RuntimeCodeArtifacts = []byte(runtimeArts)
		compilations = append(compilations, c)
	}
	return compilations, rows.Err()
}

// ListCompilations pages through all compilations, newest first
func (s sqliteQueries) ListCompilations(ctx context.Context, limit, offset int) ([]CompiledContract, error) {
	query := `
		SELECT id, compiler, language, version, name, fully_qualified_name, compiler_settings,
			compilation_artifacts, creation_code_digest, creation_code_artifacts, runtime_code_digest, runtime_code_artifacts
		FROM compiled_contracts
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.q.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var compilations []CompiledContract
	for rows.Next() {
		var c CompiledContract
		var settings, compArts, creationArts, runtimeArts string
		if err := rows.Scan(&c.ID, &c.Compiler, &c.Language, &c.Version, &c.Name, &c.FullyQualifiedName,
			&settings, &compArts, &c.CreationCodeDigest, &creationArts, &c.RuntimeCodeDigest, &runtimeArts); err != nil {
			return nil, err
		}
		c.CompilerSettings = []byte(settings)
		c.CompilationArtifacts = []byte(compArts)
		c.CreationCodeArtifacts = []byte(creationArts)
		c.RuntimeCodeArtifacts = []byte(runtimeArts)
		compilations = append(compilations, c)
	}
	return compilations, rows.Err()
}

// InsertVerifiedContract persists a matcher verdict; inserting an existing
// (compilation, deployment) pair is a no-op
func (s sqliteQueries) InsertVerifiedContract(ctx context.Context, actor string, v *VerifiedContract) (*VerifiedContract, bool, error) {
	if err := v.CheckInvariants(); err != nil {
		return nil, false, err
	}
	query := `
		INSERT INTO verified_contracts (deployment_id, compilation_id,
			creation_match, creation_values, creation_transformations, creation_metadata_match,
			runtime_match, runtime_values, runtime_transformations, runtime_metadata_match, created_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (compilation_id, deployment_id) DO NOTHING
	`
	res, err := s.q.ExecContext(ctx, query, v.DeploymentID, v.CompilationID,
		v.CreationMatch, jsonTextOrNil(v.CreationValues), jsonTextOrNil(v.CreationTransformations), v.CreationMetadataMatch,
		v.RuntimeMatch, jsonTextOrNil(v.RuntimeValues), jsonTextOrNil(v.RuntimeTransformations), v.RuntimeMetadataMatch, actor)
	if err != nil {
		return nil, false, fmt.Errorf("inserting verified contract: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	var out VerifiedContract
	var cv, ct, rv, rt sql.NullString
	err = s.q.QueryRowContext(ctx, `
		SELECT id, deployment_id, compilation_id,
			creation_match, creation_values, creation_transformations, creation_metadata_match,
			runtime_match, runtime_values, runtime_transformations, runtime_metadata_match
		FROM verified_contracts WHERE compilation_id = ? AND deployment_id = ?
	`, v.CompilationID, v.DeploymentID).Scan(
		&out.ID, &out.DeploymentID, &out.CompilationID,
		&out.CreationMatch, &cv, &ct, &out.CreationMetadataMatch,
		&out.RuntimeMatch, &rv, &rt, &out.RuntimeMetadataMatch,
	)
	if err != nil {
		return nil, false, fmt.Errorf("selecting verified contract: %w", err)
	}
	assignJSONText(&out, cv, ct, rv, rt)
	return &out, affected > 0, nil
}

// ListVerifiedContractsByDeployment lists verdicts for a deployment
func (s sqliteQueries) ListVerifiedContractsByDeployment(ctx context.Context, deploymentID string) ([]VerifiedContract, error) {
	query := `
		SELECT id, deployment_id, compilation_id,
			creation_match, creation_values, creation_transformations, creation_metadata_match,
			runtime_match, runtime_values, runtime_transformations, runtime_metadata_match
		FROM verified_contracts WHERE deployment_id = ? ORDER BY id
	`
	rows, err := s.q.QueryContext(ctx, query, deploymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var verdicts []VerifiedContract
	for rows.Next() {
		var v VerifiedContract
		var cv, ct, rv, rt sql.NullString
		if err := rows.Scan(&v.ID, &v.DeploymentID, &v.CompilationID,
			&v.CreationMatch, &cv, &ct, &v.CreationMetadataMatch,
			&v.RuntimeMatch, &rv, &rt, &v.RuntimeMetadataMatch); err != nil {
			return nil, err
		}
		assignJSONText(&v, cv, ct, rv, rt)
		verdicts = append(verdicts, v)
	}
	return verdicts, rows.Err()
}

// CreateAPIKey creates a new API key
func (s *SQLiteStore) CreateAPIKey(ctx context.Context, name string) (string, error) {
	key := generateAPIKey()
	hash := hashAPIKey(key)
	_, err := s.db.ExecContext(ctx, "INSERT INTO api_keys (id, key_hash, name) VALUES (?, ?, ?)", generateID(), hash, name)
	if err != nil {
		return "", err
	}
	return key, nil
}

// ValidateAPIKey validates an API key
func (s *SQLiteStore) ValidateAPIKey(ctx context.Context, key string) (*APIKey, error) {
	hash := hashAPIKey(key)
	var ak APIKey
	err := s.db.QueryRowContext(ctx, "SELECT id, key_hash, name, created_at FROM api_keys WHERE key_hash = ? AND revoked_at IS NULL", hash).Scan(
		&ak.ID, &ak.KeyHash, &ak.Name, &ak.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	_, _ = s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = datetime('now') WHERE id = ?", ak.ID)
	return &ak, nil
}

// ListAPIKeys lists all API keys
func (s *SQLiteStore) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at, last_used_at FROM api_keys WHERE revoked_at IS NULL")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		var lastUsed sql.NullString
		if err := rows.Scan(&k.ID, &k.Name, &k.CreatedAt, &lastUsed); err != nil {
			return nil, err
		}
		k.LastUsedAt = lastUsed.String
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeAPIKey revokes an API key
func (s *SQLiteStore) RevokeAPIKey(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE api_keys SET revoked_at = datetime('now') WHERE id = ?", id)
	return err
}

// jsonTextOrNil stores an optional JSON document as TEXT, keeping SQL NULL
// distinct from an empty document.
func jsonTextOrNil(doc []byte) any {
	if doc == nil {
		return nil
	}
	return string(doc)
}

func assignJSONText(v *VerifiedContract, cv, ct, rv, rt sql.NullString) {
	if cv.Valid {
		v.CreationValues = []byte(cv.String)
	}
	if ct.Valid {
		v.CreationTransformations = []byte(ct.String)
	}
	if rv.Valid {
		v.RuntimeValues = []byte(rv.String)
	}
	if rt.Valid {
		v.RuntimeTransformations = []byte(rt.String)
	}
}
