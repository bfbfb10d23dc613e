package rotar

import (
	"fmt"
	"strings"
)

// defaults
const (
	DefaultLevels = 3
	DefaultCount  = 10
)

// Config describes one backup set.  Levels and Count bound the shape
// of the rotation tree; Dir is the directory holding the archives and
// their tokens.
type Config struct {
	Name   string // backup name; prefix of every archive file
	Dir    string // directory holding archives and tokens
	Levels int    // total backup levels, including the full backup
	Count  int    // max sibling archives per incremental level
}

// Check validates the configuration.  It is called before any I/O.
func (cfg *Config) Check() error {
	if cfg.Name == "" {
		return &ConfigError{Field: "name", Value: cfg.Name, Want: "must not be empty"}
	}
	if strings.ContainsAny(cfg.Name, "/\\") {
		return &ConfigError{Field: "name", Value: cfg.Name, Want: "must not contain path separators"}
	}
	if cfg.Count < 1 || cfg.Count > MaxCount {
		return &ConfigError{Field: "count", Value: cfg.Count, Want: "must be between 1 and 99"}
	}
	if cfg.Levels < 0 {
		return &ConfigError{Field: "levels", Value: cfg.Levels, Want: "must be non-negative"}
	}
	return nil
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field string
	Value interface{}
	Want  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %v (%s)", e.Field, e.Value, e.Want)
}

// InconsistentTreeError reports an archive whose parent archive is
// missing.  This signals external tampering or a crash mid-rotation;
// it is never repaired automatically because a wrong guess would
// corrupt a restore chain.
type InconsistentTreeError struct {
	Dir    string
	Name   string
	Orphan Path
}

func (e *InconsistentTreeError) Error() string {
	return fmt.Sprintf("inconsistent backup tree in %s: %s has no parent archive",
		e.Dir, FileName(e.Name, e.Orphan))
}

// ArchiveError reports a failed archive driver call.  Op is "create"
// or "apply".
type ArchiveError struct {
	Op      string
	Archive string
	Err     error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive %s failed for %s: %v", e.Op, e.Archive, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// TransportError reports a failed transport driver call.  Op is
// "push" or "pull".
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
