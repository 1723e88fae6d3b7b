package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"RiskCast/internal/domain/models"
	domrepo "RiskCast/internal/domain/repository"
)

var _ domrepo.ArtifactStore = (*FileArtifactStore)(nil)

// FileArtifactStore keeps artifacts as <root>/<namespace>/<name>.json.
type FileArtifactStore struct {
	root string
}

func NewFileArtifactStore(root string) *FileArtifactStore {
	return &FileArtifactStore{root: root}
}

func (s *FileArtifactStore) Root() string { return s.root }

// Create claims a namespace with a single mkdir, which fails if it already exists.
func (s *FileArtifactStore) Create(_ context.Context, namespace string) error {
	if err := validName(namespace); err != nil {
		return err
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create artifact root: %w", err)
	}
	if err := os.Mkdir(filepath.Join(s.root, namespace), 0o755); err != nil {
		return fmt.Errorf("create namespace %s: %w", namespace, err)
	}
	return nil
}

func (s *FileArtifactStore) Namespaces(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: artifact root %s", models.ErrNotFound, s.root)
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact root: %w", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// Put writes through a temp file and rename so readers never see a partial artifact.
func (s *FileArtifactStore) Put(_ context.Context, namespace, name string, data []byte) error {
	if err := validName(namespace); err != nil {
		return err
	}
	if err := validName(name); err != nil {
		return err
	}
	dir := filepath.Join(s.root, namespace)
	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", namespace, name, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("put %s/%s: %w", namespace, name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("put %s/%s: %w", namespace, name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name+".json")); err != nil {
		return fmt.Errorf("put %s/%s: %w", namespace, name, err)
	}
	return nil
}

func (s *FileArtifactStore) Get(_ context.Context, namespace, name string) ([]byte, error) {
	if err := validName(namespace); err != nil {
		return nil, err
	}
	if err := validName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, namespace, name+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: artifact %s/%s", models.ErrNotFound, namespace, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", namespace, name, err)
	}
	return data, nil
}

func (s *FileArtifactStore) Delete(_ context.Context, namespace string) error {
	if err := validName(namespace); err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.root, namespace)); err != nil {
		return fmt.Errorf("delete namespace %s: %w", namespace, err)
	}
	return nil
}

func validName(n string) error {
	if n == "" || n == "." || n == ".." || strings.ContainsAny(n, `/\`) {
		return fmt.Errorf("%w: bad artifact name %q", models.ErrInvalidInput, n)
	}
	return nil
}
