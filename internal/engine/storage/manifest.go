package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

const (
	// ManifestName is the file at the store root describing its on-disk format.
	ManifestName = ".kvcache.yaml"

	// FormatVersion is the entry format written by this package.
	FormatVersion = "1.0.0"

	// supportedFormats is the constraint an existing store must satisfy.
	supportedFormats = "^1"
)

// Manifest errors.
var (
	ErrIncompatibleStore = errors.New("store uses an incompatible format version")
	ErrInvalidManifest   = errors.New("store manifest is invalid")
)

// Manifest describes a store root.
type Manifest struct {
	FormatVersion string    `yaml:"format_version"`
	Extension     string    `yaml:"extension"`
	CreatedAt     time.Time `yaml:"created_at"`
}

// EnsureManifest creates the store root and its manifest when missing, then
// checks that an existing manifest is readable by this version.
func (s *Storage) EnsureManifest(store string, now time.Time) (*Manifest, error) {
	if store == "" {
		return nil, ErrEmptyStore
	}

	if err := os.MkdirAll(store, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	path := filepath.Join(store, ManifestName)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s.writeManifest(path, now)
	case err != nil:
		return nil, fmt.Errorf("failed to read store manifest: %w", err)
	}

	var m Manifest
	if err = yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	if err = checkFormat(m.FormatVersion); err != nil {
		return nil, err
	}
	if m.Extension != "" && m.Extension != EntryExtension {
		return nil, fmt.Errorf("%w: entry extension %q, want %q",
			ErrIncompatibleStore, m.Extension, EntryExtension)
	}

	return &m, nil
}

func (s *Storage) writeManifest(path string, now time.Time) (*Manifest, error) {
	m := &Manifest{
		FormatVersion: FormatVersion,
		Extension:     EntryExtension,
		CreatedAt:     now.UTC().Truncate(time.Second),
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode store manifest: %w", err)
	}

	// Two processes may open a fresh store at once; the loser keeps the winner's file.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if errors.Is(err, fs.ErrExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create store manifest: %w", err)
	}
	defer f.Close()

	if _, err = f.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write store manifest: %w", err)
	}

	s.log.Debug().Str("path", path).Str("format_version", FormatVersion).Msg("created store manifest")
	return m, nil
}

func checkFormat(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%w: format_version %q: %w", ErrInvalidManifest, version, err)
	}

	c, err := semver.NewConstraint(supportedFormats)
	if err != nil {
		return fmt.Errorf("invalid format constraint: %w", err)
	}
	if !c.Check(v) {
		return fmt.Errorf("%w: %s does not satisfy %s", ErrIncompatibleStore, v, supportedFormats)
	}
	return nil
}
