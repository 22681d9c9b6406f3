package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// sourceExtensions are the file types submitted as contract sources
var sourceExtensions = map[string]bool{
	".sol": true,
	".vy":  true,
	".yul": true,
}

// collectSources reads source files from an explicit list and/or a directory
// walk. Keys are paths as the compiler will see them (slash-separated,
// relative to the working directory).
func collectSources(sourceDir string, files []string) (map[string]string, error) {
	sources := make(map[string]string)

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading source %s: %w", path, err)
		}
		sources[filepath.ToSlash(path)] = string(data)
	}

	if sourceDir != "" {
		err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if !sourceExtensions[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading source %s: %w", path, err)
			}
			sources[filepath.ToSlash(path)] = string(data)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("no source files found")
	}

	return sources, nil
}

// readBytecode accepts either a hex string or a path to a file containing one
func readBytecode(arg string) (string, error) {
	if strings.HasPrefix(arg, "0x") || strings.HasPrefix(arg, "0X") {
		return arg, nil
	}

	data, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("reading bytecode file %s: %w", arg, err)
	}

	code := strings.TrimSpace(string(data))
	if !strings.HasPrefix(code, "0x") {
		code = "0x" + code
	}
	return code, nil
}

// parseKeyValues parses repeated key=value flags into a map
func parseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	result := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid key=value pair: %q", pair)
		}
		result[key] = value
	}
	return result, nil
}
