package primitives

import (
	"os"
	"path/filepath"
)

// Filepath is a type-safe wrapper around file paths used for zone directories and zone files.
//
// Example usage:
//
//	dir := primitives.Filepath("/data/zones")
//	zf := dir.ZoneFile(primitives.Abs(0, 0, 3))
//	data, err := os.ReadFile(zf.String())
type Filepath string

// ZoneFile returns the path of the file holding absolute zone a inside this directory.
func (f Filepath) ZoneFile(a AbsZone) Filepath {
	return f.Join(a.Name())
}

// String converts the Filepath to a standard string.
func (f Filepath) String() string {
	return string(f)
}

// Join concatenates path elements to this path and returns a new Filepath.
//
// Example:
//
//	dataDir := primitives.Filepath("/data")
//	zonePath := dataDir.Join("000003")
//	// Returns Filepath("/data/000003")
func (f Filepath) Join(elem ...string) Filepath {
	parts := append([]string{string(f)}, elem...)
	return Filepath(filepath.Join(parts...))
}

// Base returns the last element of the path (the filename).
func (f Filepath) Base() string {
	return filepath.Base(string(f))
}

// IsEmpty checks whether the filepath is an empty string.
func (f Filepath) IsEmpty() bool {
	return string(f) == ""
}

// MkdirAll creates this path as a directory, along with any necessary parents.
//
// Parameters:
//   - perm: File permissions for created directories (e.g., 0o750)
//
// Returns:
//   - error: nil on success, error if directory creation fails
func (f Filepath) MkdirAll(perm os.FileMode) error {
	return os.MkdirAll(string(f), perm)
}
