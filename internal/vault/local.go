package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"finledger/internal/logger"
	"github.com/rs/zerolog"
)

// LocalVault keeps documents in a directory tree.
type LocalVault struct {
	root string
	log  zerolog.Logger
}

// NewLocalVault creates a vault rooted at dir. The directory is created on
// first write.
func NewLocalVault(dir string) *LocalVault {
	return &LocalVault{root: dir, log: logger.WithComponent("vault")}
}

// Put copies r to <root>/<key> and returns the key. An existing document with
// the same key is replaced.
func (v *LocalVault) Put(ctx context.Context, doc Document, r io.Reader) (string, error) {
	const op = "LocalVault.Put"

	key, err := doc.Key()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	dest := filepath.Join(v.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("%s: failed to create directory: %w", op, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("%s: failed to create file: %w", op, err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("%s: failed to write document: %w", op, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%s: failed to close document: %w", op, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("%s: failed to store document: %w", op, err)
	}

	v.log.Info().
		Str("key", key).
		Int64("bytes", n).
		Msg("Document stored")
	return key, nil
}

// Open returns the document stored under ref.
func (v *LocalVault) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	const op = "LocalVault.Open"

	key, err := cleanRef(ref)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	f, err := os.Open(filepath.Join(v.root, filepath.FromSlash(key)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return f, nil
}
