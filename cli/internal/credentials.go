package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/devilmonastery/notedesk/internal/session"
)

// CredentialsDirEnv overrides the directory holding per-context credentials
const CredentialsDirEnv = "NOTEDESK_CREDENTIALS_DIR"

// credentialsPath returns the path to the credentials file for a context
func credentialsPath(contextName string) (string, error) {
	dir := os.Getenv(CredentialsDirEnv)
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".config", "notedesk")
	}

	filename := fmt.Sprintf("credentials-%s.json", contextName)
	return filepath.Join(dir, filename), nil
}

// newTokenStore returns the file-backed token store of the current context
func newTokenStore(config *Config) (*session.FileStore, error) {
	if config.CurrentContext == "" {
		return nil, fmt.Errorf("no current context set")
	}
	path, err := credentialsPath(config.CurrentContext)
	if err != nil {
		return nil, err
	}
	return session.NewFileStore(path), nil
}
