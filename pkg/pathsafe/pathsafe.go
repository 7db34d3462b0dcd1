// Package pathsafe validates file paths accepted from configuration or flags before they
// are opened, treating any externally supplied path as untrusted input.
package pathsafe

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AllowedDirectory is one entry in a Validator's allow-list.
type AllowedDirectory struct {
	Path       string
	Extensions []string
	Recursive  bool
}

// Validator checks candidate paths against length, traversal, and allow-list rules.
type Validator struct {
	allowedDirs   []AllowedDirectory
	maxPathLength int
	maxFileSize   int64
}

// NewValidator creates a Validator with conservative defaults and no allow-list
// (meaning any absolute path outside a short list of dangerous system directories is
// accepted; call AddAllowedDirectory to restrict further).
func NewValidator() *Validator {
	return &Validator{
		maxPathLength: 4096,
		maxFileSize:   100 * 1024 * 1024,
	}
}

// AddAllowedDirectory restricts future ValidatePath calls to paths under dir.
func (v *Validator) AddAllowedDirectory(dir AllowedDirectory) {
	dir.Path = filepath.Clean(dir.Path)
	v.allowedDirs = append(v.allowedDirs, dir)
}

// SetMaxPathLength overrides the default maximum path length.
func (v *Validator) SetMaxPathLength(n int) { v.maxPathLength = n }

// SetMaxFileSize overrides the default maximum file size accepted by SafeReadFile.
func (v *Validator) SetMaxFileSize(n int64) { v.maxFileSize = n }

var dangerousSystemPrefixes = []string{"/etc/", "/proc/", "/sys/", "/dev/", "/root/", "/boot/"}

// ValidatePath rejects empty paths, overlong paths, null bytes, and directory traversal,
// and — when an allow-list is configured — paths outside it.
func (v *Validator) ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("pathsafe: path cannot be empty")
	}
	if len(path) > v.maxPathLength {
		return fmt.Errorf("pathsafe: path too long: %d bytes (max %d)", len(path), v.maxPathLength)
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("pathsafe: path contains null byte")
	}

	clean := filepath.Clean(path)
	if strings.Contains(clean, "..") {
		return fmt.Errorf("pathsafe: path contains directory traversal: %s", path)
	}

	if len(v.allowedDirs) > 0 {
		return v.validateAgainstAllowedDirs(clean)
	}

	if strings.HasPrefix(clean, "/") {
		for _, prefix := range dangerousSystemPrefixes {
			if strings.HasPrefix(clean, prefix) {
				return fmt.Errorf("pathsafe: path under restricted system directory: %s", clean)
			}
		}
	}
	return nil
}

func (v *Validator) validateAgainstAllowedDirs(clean string) error {
	for _, dir := range v.allowedDirs {
		if v.isAllowed(clean, dir) {
			return nil
		}
	}
	return fmt.Errorf("pathsafe: path not in any allowed directory: %s", clean)
}

func (v *Validator) isAllowed(clean string, dir AllowedDirectory) bool {
	absDir, err := filepath.Abs(dir.Path)
	if err != nil {
		return false
	}
	absClean, err := filepath.Abs(clean)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absClean)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	if !dir.Recursive && strings.Contains(rel, string(filepath.Separator)) {
		return false
	}
	if len(dir.Extensions) > 0 {
		ext := strings.ToLower(filepath.Ext(clean))
		for _, allowedExt := range dir.Extensions {
			if ext == strings.ToLower(allowedExt) {
				return true
			}
		}
		return false
	}
	return true
}

// SafeReadFile validates path, then reads it, rejecting directories and oversized files.
func (v *Validator) SafeReadFile(path string) ([]byte, error) {
	if err := v.ValidatePath(path); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("pathsafe: stat failed: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("pathsafe: path is a directory, not a file: %s", path)
	}
	if info.Size() > v.maxFileSize {
		return nil, fmt.Errorf("pathsafe: file too large: %d bytes (max %d)", info.Size(), v.maxFileSize)
	}
	return os.ReadFile(path)
}

// SecureJoin joins base with components, rejecting any component that attempts to escape
// base via traversal or path separators.
func SecureJoin(base string, components ...string) (string, error) {
	v := NewValidator()
	if err := v.ValidatePath(base); err != nil {
		return "", fmt.Errorf("pathsafe: invalid base path: %w", err)
	}
	result := base
	for _, c := range components {
		clean := filepath.Clean(c)
		if strings.Contains(clean, "..") || strings.ContainsAny(clean, "/\\") {
			return "", fmt.Errorf("pathsafe: invalid path component: %s", c)
		}
		result = filepath.Join(result, clean)
	}
	result = filepath.Clean(result)
	rel, err := filepath.Rel(base, result)
	if err != nil {
		return "", fmt.Errorf("pathsafe: failed to compute relative path: %w", err)
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("pathsafe: path escapes base directory: %s", result)
	}
	return result, nil
}

// SecureFileMode is the permission mode used when writing checkpoint/config artifacts.
const SecureFileMode = 0640

// SecureCreateFile validates path, then creates (or truncates) it with SecureFileMode.
func SecureCreateFile(path string) (*os.File, error) {
	v := NewValidator()
	if err := v.ValidatePath(path); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, SecureFileMode)
}
