// Package storage defines the read-only view of the notes corpus.
package storage

// Provider lists and reads corpus files. Paths are relative to the corpus
// root and use forward slashes.
type Provider interface {
	// List returns the names of regular files directly inside dir whose name
	// ends with ext, sorted by name. A missing dir yields an error that
	// matches fs.ErrNotExist.
	List(dir, ext string) ([]string, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
}
