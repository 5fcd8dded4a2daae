package config

import (
	"bytes"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"golang.org/x/xerrors"
)

// FromFile loads config from a specified file. If file does not exist or is
// empty the default config is used.
func FromFile(path string, def *FullNode) (*FullNode, error) {
	file, err := os.Open(path)
	switch {
	case os.IsNotExist(err):
		return def, nil
	case err != nil:
		return nil, err
	}

	defer file.Close() //nolint:errcheck
	return FromReader(file, def)
}

// FromReader loads config from a reader instance.
func FromReader(reader io.Reader, def *FullNode) (*FullNode, error) {
	cfg := *def
	_, err := toml.NewDecoder(reader).Decode(&cfg)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// WriteFile atomically persists cfg as TOML at path.
func WriteFile(path string, cfg *FullNode) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return xerrors.Errorf("encoding config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
