package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/vidhik-labs/vidhik-cli/internal/core/domain"
)

// ConfigStore is a file-based settings store using TOML.
// Settings live in a TOML file within the vidhik config directory; keys
// absent from the file keep their defaults, so a partial file is valid.
type ConfigStore struct {
	mu       sync.RWMutex
	filePath string
	settings domain.Settings
}

// NewConfigStore creates a TOML-based settings store.
// If configDir is empty, defaults to ~/.vidhik/config.toml.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(home, ".vidhik")
	}

	// Ensure directory exists
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, err
	}

	s := &ConfigStore{
		filePath: filepath.Join(configDir, "config.toml"),
		settings: domain.DefaultSettings(),
	}
	s.settings.DataDir = configDir

	if err := s.Load(); err != nil {
		return nil, err
	}

	return s, nil
}

// Settings returns a copy of the current settings.
func (s *ConfigStore) Settings() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Load reads the TOML file over the defaults. A missing file is fine;
// the defaults stand.
func (s *ConfigStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	// Unmarshal into the current settings so file keys override defaults
	// and absent keys keep them.
	if err := toml.Unmarshal(data, &s.settings); err != nil {
		return fmt.Errorf("parse %s: %w", s.filePath, err)
	}

	if err := s.settings.Validate(); err != nil {
		return fmt.Errorf("%s: %w", s.filePath, err)
	}
	return nil
}

// Save persists the current settings to disk.
func (s *ConfigStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := toml.Marshal(s.settings)
	if err != nil {
		return err
	}

	// Write with restricted permissions
	return os.WriteFile(s.filePath, data, 0600)
}

// Update applies fn to the settings and persists the result.
func (s *ConfigStore) Update(fn func(*domain.Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := s.settings
	fn(&updated)
	if err := updated.Validate(); err != nil {
		return err
	}
	s.settings = updated

	data, err := toml.Marshal(s.settings)
	if err != nil {
		return err
	}
	return os.WriteFile(s.filePath, data, 0600)
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}
