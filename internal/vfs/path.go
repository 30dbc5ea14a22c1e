// Package vfs maps the IDE's virtual path space onto flat object store keys.
// Every session gets its own key namespace under "sessions/{id}/". All
// functions here are pure; callers own the I/O.
package vfs

import (
	"errors"
	"strings"
)

const (
	// Root is the virtual filesystem root.
	Root = "/"

	// SessionObjectRoot is the top-level key prefix shared by all sessions.
	SessionObjectRoot = "sessions"

	// KeepSentinel is the empty marker object that makes an otherwise-empty
	// directory listable. It never appears in directory listings.
	KeepSentinel = ".keep"

	// DefaultSessionID is used when the client does not pick a session.
	DefaultSessionID = "default"
)

// ErrInvalidPath is returned when a virtual path cannot be mapped to an
// object key (the root directory has no key of its own).
var ErrInvalidPath = errors.New("path points to root directory")

// ResolveSessionID trims the client-supplied session identifier and falls
// back to DefaultSessionID when it is blank. The session identifier is a
// workspace selector, not a credential.
func ResolveSessionID(raw string) string {
	return ResolveSessionIDOr(raw, DefaultSessionID)
}

// ResolveSessionIDOr is ResolveSessionID with an explicit fallback.
func ResolveSessionIDOr(raw, fallback string) string {
	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		return trimmed
	}
	return fallback
}

// NormalizePath canonicalizes a user-supplied virtual path. Blank input maps
// to the root. Backslashes are treated as separators, "." and empty segments
// are dropped, and ".." pops the previous segment (excess ".." beyond the
// root is dropped rather than rejected). The result is always absolute and
// never contains ".", "..", or empty segments.
func NormalizePath(raw string) string {
	return NormalizePathOr(raw, Root)
}

// NormalizePathOr is NormalizePath with an explicit fallback for blank input.
func NormalizePathOr(raw, fallback string) string {
	input := strings.TrimSpace(raw)
	if input == "" {
		input = fallback
	}

	input = strings.ReplaceAll(input, "\\", "/")
	if !strings.HasPrefix(input, "/") {
		input = "/" + input
	}

	var segments []string
	for _, part := range strings.Split(input, "/") {
		switch part {
		case "", ".":
		case "..":
			if len(segments) > 0 {
				segments = segments[:len(segments)-1]
			}
		default:
			segments = append(segments, part)
		}
	}

	if len(segments) == 0 {
		return Root
	}
	return "/" + strings.Join(segments, "/")
}

// RelativePath strips the leading slash from a normalized virtual path. The
// root maps to the empty string.
func RelativePath(path string) string {
	if path == Root {
		return ""
	}
	return strings.TrimPrefix(path, "/")
}

// SessionPrefix returns the object key prefix owned by a session, without a
// trailing slash.
func SessionPrefix(sessionID string) string {
	return SessionObjectRoot + "/" + sessionID
}

// FileKey maps a normalized virtual path to its object key. The root has no
// key; attempting to build one fails with ErrInvalidPath.
func FileKey(sessionID, path string) (string, error) {
	rel := RelativePath(path)
	if rel == "" {
		return "", ErrInvalidPath
	}
	return SessionPrefix(sessionID) + "/" + rel, nil
}

// DirectoryPrefix returns the delimited-list prefix for a directory. The
// root maps to "sessions/{id}/", any other directory appends its relative
// path plus a trailing slash.
func DirectoryPrefix(sessionID, dirPath string) string {
	prefix := SessionPrefix(sessionID) + "/"
	if rel := RelativePath(dirPath); rel != "" {
		return prefix + rel + "/"
	}
	return prefix
}

// Entry is a decoded object key: the file's display name and its absolute
// virtual path.
type Entry struct {
	Name string
	Path string
}

// DecodeKey maps an object key back into the session's virtual path space.
// Keys outside the session prefix, the bare prefix itself, and ".keep"
// sentinels (at any depth) all decode to nothing.
func DecodeKey(sessionID, key string) (Entry, bool) {
	prefix := SessionPrefix(sessionID) + "/"
	if !strings.HasPrefix(key, prefix) {
		return Entry{}, false
	}

	rel := strings.TrimPrefix(key, prefix)
	if rel == "" {
		return Entry{}, false
	}

	name := rel
	if idx := strings.LastIndex(rel, "/"); idx >= 0 {
		name = rel[idx+1:]
	}
	if name == KeepSentinel {
		return Entry{}, false
	}

	return Entry{Name: name, Path: "/" + rel}, true
}
