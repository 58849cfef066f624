package hooks

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/Paintersrp/procwarden/internal/logging"
)

// MarkExit creates an empty marker at path when success is true, or at its
// error marker otherwise. Missing parent directories are created.
func MarkExit(path string, success bool) (string, error) {
	target := path
	if !success {
		target = ErrPath(path)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create marker directory: %w", err)
	}
	if err := renameio.WriteFile(target, nil, 0o644); err != nil {
		return "", fmt.Errorf("write exit marker: %w", err)
	}
	return target, nil
}

// WriteAtomic replaces path with the output of write. The file is never
// observed half written.
func WriteAtomic(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			log := logging.WithComponent("hooks")
			log.Debug().Err(err).Str("path", path).Msg("cleanup pending file")
		}
	}()

	if err := write(pending); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
