// Package state persists the terminal client's local configuration:
// a global config in the user's home directory and a per-directory link
// record binding a working directory to a remote project and environment.
//
// Both files are whole-file JSON, read and written in full. A missing file
// means the corresponding state simply does not exist yet; a file that
// exists but cannot be parsed is a hard error, never silently reset.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/envmgr/envmgr/internal/clierr"
)

// stateDirName is the directory both config files live under.
const stateDirName = ".envmgr"

// configFileName is the file name used for both global and link config.
const configFileName = "config.json"

// DefaultEnvFile is the variable file a fresh link points at.
const DefaultEnvFile = ".env.local"

// Global is the user-wide client configuration.
type Global struct {
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	APIURL       string `json:"apiUrl,omitempty"`
}

// Link binds a working directory to one remote project and environment.
type Link struct {
	ProjectID       string            `json:"projectId"`
	ProjectName     string            `json:"projectName"`
	EnvironmentID   string            `json:"environmentId"`
	EnvironmentName string            `json:"environmentName"`
	EnvFilePath     string            `json:"envFilePath"`
	EnvAliases      map[string]string `json:"envAliases,omitempty"`
}

// DefaultGlobalDir returns ~/.envmgr.
func DefaultGlobalDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, stateDirName), nil
}

// LoadGlobal reads the global config from dir. A missing file yields an
// empty config.
func LoadGlobal(dir string) (*Global, error) {
	var g Global
	if err := loadJSON(filepath.Join(dir, configFileName), &g); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Global{}, nil
		}
		return nil, err
	}
	return &g, nil
}

// SaveGlobal writes the global config to dir, creating it if needed. The
// file is written 0600 since it holds a bearer token.
func SaveGlobal(dir string, g *Global) error {
	return saveJSON(dir, g, 0o600)
}

// LoadLink reads the link record under workdir/.envmgr. A missing file
// yields clierr.ErrNotLinked.
func LoadLink(workdir string) (*Link, error) {
	var l Link
	path := filepath.Join(workdir, stateDirName, configFileName)
	if err := loadJSON(path, &l); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, clierr.ErrNotLinked
		}
		return nil, err
	}
	if l.EnvFilePath == "" {
		l.EnvFilePath = DefaultEnvFile
	}
	return &l, nil
}

// SaveLink writes the link record under workdir/.envmgr.
func SaveLink(workdir string, l *Link) error {
	return saveJSON(filepath.Join(workdir, stateDirName), l, 0o644)
}

func loadJSON(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%w: %s: %v", clierr.ErrMalformedState, path, err)
	}
	return nil
}

func saveJSON(dir string, v any, perm os.FileMode) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	path := filepath.Join(dir, configFileName)
	if err := os.WriteFile(path, append(b, '\n'), perm); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}
