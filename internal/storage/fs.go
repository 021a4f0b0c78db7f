package storage

import (
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

type FSStore struct{ base string }

func NewFSStore(base string) (*FSStore, error) {
	if base == "" {
		base = "./data/resources"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{base: base}, nil
}

func (s *FSStore) Put(key string, r io.Reader) (string, error) {
	key = cleanKey(key)
	if key == "" {
		return "", errors.New("empty key")
	}
	dst := filepath.Join(s.base, key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return key, nil
}

func (s *FSStore) Get(key string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.base, cleanKey(key)))
}

func (s *FSStore) URL(key string) (string, error) {
	u := url.URL{Scheme: "file", Path: filepath.Join(s.base, cleanKey(key))}
	return u.String(), nil
}

// cleanKey keeps keys inside the base directory.
func cleanKey(key string) string {
	key = filepath.ToSlash(filepath.Clean("/" + key))
	return strings.TrimPrefix(key, "/")
}
