// SPDX-License-Identifier: GPL-3.0-or-later

package restworker

import (
	"io"
	"sync"
)

// Document renders the current value of a resource.
//
// Format writes the document into w and returns the number of bytes
// written. The data argument is the opaque context registered along with
// the document; it is passed through unmodified.
//
// The [*jsondoc.Document] type satisfies this interface.
type Document interface {
	Format(w io.Writer, data any) (int, error)
}

// Resource is a registered resource. It is immutable once registered.
type Resource struct {
	// Path is the unique lookup key.
	Path string

	// Document renders the resource.
	Document Document

	// Data is the opaque context passed to Document.
	Data any
}

// Registry maps paths to resources.
//
// The zero value is not ready to use; construct using [NewRegistry].
// A [*Registry] is safe for concurrent use. Since resources are immutable,
// a [*Resource] obtained from [Registry.Lookup] stays valid even if the
// path is concurrently unregistered.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Resource
}

// NewRegistry creates an empty [*Registry] sized for hint entries.
func NewRegistry(hint int) *Registry {
	return &Registry{entries: make(map[string]*Resource, max(hint, 0))}
}

// Register adds a resource. It returns [ErrAlreadyExists] and leaves the
// existing entry intact if path is already registered.
func (r *Registry) Register(path string, doc Document, data any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.entries[path]; found {
		return ErrAlreadyExists
	}
	r.entries[path] = &Resource{Path: path, Document: doc, Data: data}
	return nil
}

// Lookup returns the resource registered at path.
func (r *Registry) Lookup(path string) (*Resource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, found := r.entries[path]
	return res, found
}

// Unregister removes the resource at path or returns [ErrNotFound].
func (r *Registry) Unregister(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.entries[path]; !found {
		return ErrNotFound
	}
	delete(r.entries, path)
	return nil
}

// Len returns the number of registered resources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear removes all the resources.
func (r *Registry) Clear() {
	r.mu.Lock()
	clear(r.entries)
	r.mu.Unlock()
}
