package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// FilePersister persists artifacts. It abstracts away where and how the
// bytes end up.
type FilePersister interface {
	Persist(ctx context.Context, path string, data io.Reader) error
}

// LocalFilePersister writes artifacts to the local disk, replacing any file
// already at the path.
type LocalFilePersister struct{}

func (l *LocalFilePersister) Persist(_ context.Context, path string, data io.Reader) (err error) {
	cp := filepath.Clean(path)

	dir := filepath.Dir(cp)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating directory %q", dir)
	}

	f, err := os.OpenFile(cp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "creating file %q", cp)
	}
	defer func() {
		// only report the close error if nothing failed before it
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "closing file %q", cp)
		}
	}()

	if _, err = io.Copy(f, data); err != nil {
		return errors.Wrapf(err, "writing file %q", cp)
	}
	return nil
}

// MemoryPersister keeps artifacts in memory, keyed by cleaned path.
type MemoryPersister struct {
	Files map[string][]byte
}

func (m *MemoryPersister) Persist(_ context.Context, path string, data io.Reader) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return errors.Wrapf(err, "reading artifact %q", path)
	}
	if m.Files == nil {
		m.Files = map[string][]byte{}
	}
	m.Files[filepath.Clean(path)] = b
	return nil
}
