package storage

import (
	"errors"
	"strings"
)

// ErrInvalidName is returned for ids and filenames that could escape their
// directory or key prefix.
var ErrInvalidName = errors.New("storage: invalid name")

// CheckName rejects empty names, path separators and dot segments.
func CheckName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") || strings.ContainsRune(name, 0) {
		return ErrInvalidName
	}
	return nil
}
