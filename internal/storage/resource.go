// Package storage holds the learning resources (videos, documents) the
// platform serves alongside quizzes.
package storage

import "io"

type ResourceStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	URL(key string) (string, error) // fs returns "file://..." for dev
}
