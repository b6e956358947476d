// Package secrets reads API keys that live outside the configuration file.
package secrets

import (
	"fmt"
	"os"
	"strings"
)

// Ref points at a secret kept on disk.
type Ref struct {
	// Name gives error messages context about which secret failed to load.
	Name string
	// File is the path of the file holding the secret value.
	File string
}

// Read returns the trimmed contents of the referenced file. A missing path,
// an unreadable file and an empty (or whitespace-only) file are all errors.
func Read(ref Ref) (string, error) {
	name := strings.TrimSpace(ref.Name)
	if name == "" {
		name = "secret"
	}

	file := strings.TrimSpace(ref.File)
	if file == "" {
		return "", fmt.Errorf("%s is not configured", name)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("reading %s from file %q: %w", name, file, err)
	}

	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("%s file %q is empty", name, file)
	}

	return secret, nil
}
