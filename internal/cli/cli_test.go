package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetServer(t *testing.T) {
	// Save original values
	origServer := server
	defer func() { server = origServer }()
	t.Setenv("HOME", t.TempDir())

	t.Run("flag takes precedence", func(t *testing.T) {
		server = "http://flag-server:8080"
		t.Setenv("BYTEVAULT_SERVER", "http://env-server:8080")
		assert.Equal(t, "http://flag-server:8080", getServer())
	})

	t.Run("env var when no flag", func(t *testing.T) {
		server = ""
		t.Setenv("BYTEVAULT_SERVER", "http://env-server:8080")
		assert.Equal(t, "http://env-server:8080", getServer())
	})

	t.Run("default when nothing set", func(t *testing.T) {
		server = ""
		t.Setenv("BYTEVAULT_SERVER", "")
		os.Unsetenv("BYTEVAULT_SERVER")
		assert.Equal(t, "http://localhost:8080", getServer())
	})
}

func TestGetAPIKey(t *testing.T) {
	origKey := apiKey
	origServer := server
	defer func() {
		apiKey = origKey
		server = origServer
	}()
	t.Setenv("HOME", t.TempDir())

	t.Run("flag takes precedence", func(t *testing.T) {
		apiKey = "flag-key"
		t.Setenv("BYTEVAULT_API_KEY", "env-key")
		assert.Equal(t, "flag-key", getAPIKey())
	})

	t.Run("env var when no flag", func(t *testing.T) {
		apiKey = ""
		t.Setenv("BYTEVAULT_API_KEY", "env-key")
		assert.Equal(t, "env-key", getAPIKey())
	})

	t.Run("credentials file fallback", func(t *testing.T) {
		apiKey = ""
		server = "http://cred-server:8080"
		t.Setenv("BYTEVAULT_API_KEY", "")
		os.Unsetenv("BYTEVAULT_API_KEY")

		require.NoError(t, saveCredential("http://cred-server:8080", "bv_key_stored"))
		assert.Equal(t, "bv_key_stored", getAPIKey())
	})
}

func TestCredentialsRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	require.NoError(t, saveCredential("http://a.example", "key-a"))
	require.NoError(t, saveCredential("http://b.example", "key-b"))

	creds, err := loadCredentials()
	require.NoError(t, err)
	assert.Equal(t, "key-a", creds.Servers["http://a.example"].APIKey)
	assert.Equal(t, "key-b", creds.Servers["http://b.example"].APIKey)

	// Credentials file must not be world readable
	info, err := os.Stat(credentialsFilePath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", maskAPIKey("short"))
	assert.Equal(t, "bv_key_a...wxyz", maskAPIKey("bv_key_abcdefghijklmnopqrstuvwxyz"))
}

func TestCollectSources(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Token.sol"), []byte("contract Token {}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "Lib.vy"), []byte("# vyper"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("docs"), 0644))

	sources, err := collectSources(dir, nil)
	require.NoError(t, err)
	assert.Len(t, sources, 2)
	assert.Equal(t, "contract Token {}", sources[filepath.ToSlash(filepath.Join(dir, "Token.sol"))])

	t.Run("explicit files", func(t *testing.T) {
		sources, err := collectSources("", []string{filepath.Join(dir, "Token.sol")})
		require.NoError(t, err)
		assert.Len(t, sources, 1)
	})

	t.Run("no sources", func(t *testing.T) {
		empty := t.TempDir()
		_, err := collectSources(empty, nil)
		assert.Error(t, err)
	})
}

func TestReadBytecode(t *testing.T) {
	t.Run("hex passthrough", func(t *testing.T) {
		code, err := readBytecode("0x6001600155")
		require.NoError(t, err)
		assert.Equal(t, "0x6001600155", code)
	})

	t.Run("file with prefix", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "code.hex")
		require.NoError(t, os.WriteFile(path, []byte("0x6001600155\n"), 0644))
		code, err := readBytecode(path)
		require.NoError(t, err)
		assert.Equal(t, "0x6001600155", code)
	})

	t.Run("file without prefix", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "code.hex")
		require.NoError(t, os.WriteFile(path, []byte("6001600155"), 0644))
		code, err := readBytecode(path)
		require.NoError(t, err)
		assert.Equal(t, "0x6001600155", code)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := readBytecode(filepath.Join(t.TempDir(), "missing.hex"))
		assert.Error(t, err)
	})
}

func TestParseKeyValues(t *testing.T) {
	libs, err := parseKeyValues([]string{"src/Lib.sol:Lib=0x1234", "a=b"})
	require.NoError(t, err)
	assert.Equal(t, "0x1234", libs["src/Lib.sol:Lib"])
	assert.Equal(t, "b", libs["a"])

	_, err = parseKeyValues([]string{"no-equals"})
	assert.Error(t, err)

	libs, err = parseKeyValues(nil)
	require.NoError(t, err)
	assert.Nil(t, libs)
}

func TestLoadProjectConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bytevault.toml")
	content := `
server = "http://localhost:9090"
compiler_version = "v0.8.18+commit.87f61d96"
source_dir = "src"
optimization_runs = 200

[libraries]
"src/Lib.sol:Lib" = "0x0000000000000000000000000000000000000001"

[[deployments]]
chain_id = 1
address = "0x7d53f102f4d4aa014db4e10d6deec2009b3cda6b"
runtime_code = "0x6001600155"

[[deployments]]
chain_id = 10
address = "0x7d53f102f4d4aa014db4e10d6deec2009b3cda6b"
creation_code_file = "artifacts/creation.hex"
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := loadProjectConfigFromPath(configPath)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9090", cfg.Server)
	assert.Equal(t, "v0.8.18+commit.87f61d96", cfg.CompilerVersion)
	assert.Equal(t, "src", cfg.SourceDir)
	require.NotNil(t, cfg.OptimizationRuns)
	assert.Equal(t, 200, *cfg.OptimizationRuns)
	assert.Equal(t, "0x0000000000000000000000000000000000000001", cfg.Libraries["src/Lib.sol:Lib"])

	require.Len(t, cfg.Deployments, 2)
	assert.Equal(t, int64(1), cfg.Deployments[0].ChainID)
	assert.Equal(t, "0x6001600155", cfg.Deployments[0].RuntimeCode)
	assert.Equal(t, "artifacts/creation.hex", cfg.Deployments[1].CreationCodeFile)
}

func TestToContractImport(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "artifacts"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "artifacts", "creation.hex"), []byte("60016001556002"), 0644))

	t.Run("inline code", func(t *testing.T) {
		contract, err := toContractImport(dir, DeploymentTOML{
			ChainID:     1,
			Address:     "0x7d53f102f4d4aa014db4e10d6deec2009b3cda6b",
			RuntimeCode: "0x6001600155",
		})
		require.NoError(t, err)
		assert.Equal(t, "0x6001600155", contract.RuntimeCode)
	})

	t.Run("code from file", func(t *testing.T) {
		contract, err := toContractImport(dir, DeploymentTOML{
			ChainID:          1,
			Address:          "0x7d53f102f4d4aa014db4e10d6deec2009b3cda6b",
			CreationCodeFile: "artifacts/creation.hex",
		})
		require.NoError(t, err)
		assert.Equal(t, "0x60016001556002", contract.CreationCode)
	})

	t.Run("no code at all", func(t *testing.T) {
		_, err := toContractImport(dir, DeploymentTOML{
			ChainID: 1,
			Address: "0x7d53f102f4d4aa014db4e10d6deec2009b3cda6b",
		})
		assert.Error(t, err)
	})
}
