package asset

import (
	"errors"
	"path"
	"regexp"
	"strings"
)

// BakedPrefix is the reserved namespace only the bake worker may write
// mappings under.
const BakedPrefix = "/.baked/"

// ErrInvalidPath is returned when a string fails path validation.
var ErrInvalidPath = errors.New("asset: invalid path")

// Path is a user-visible mapping key: a UTF-8 string beginning with "/",
// composed of non-empty segments separated by "/". Folder paths end in "/";
// file paths do not.
type Path string

// filePathPattern matches a file path: one or more "/segment" groups, no
// trailing slash, no empty segments, no NUL.
var filePathPattern = regexp.MustCompile(`^(/[^/\x00]+)+$`)

// anyPathPattern matches either a file or a folder path: same as above but
// each segment may be followed by an optional trailing slash.
var anyPathPattern = regexp.MustCompile(`^/([^/\x00]+/?)+$`)

// IsValidFilePath reports whether p is a valid path for a file mapping: no
// trailing slash, no empty segments, no NUL byte.
func IsValidFilePath(p string) bool {
	return filePathPattern.MatchString(p)
}

// IsValidPath reports whether p is a valid path for either a file or a
// folder mapping operand (used by delete/rename, which accept either).
func IsValidPath(p string) bool {
	return anyPathPattern.MatchString(p)
}

// ParsePath validates p as a mapping path (file or folder form).
func ParsePath(p string) (Path, error) {
	if !IsValidPath(p) {
		return "", ErrInvalidPath
	}
	return Path(p), nil
}

// ParseFilePath validates p strictly as a file path (no trailing slash).
func ParseFilePath(p string) (Path, error) {
	if !IsValidFilePath(p) {
		return "", ErrInvalidPath
	}
	return Path(p), nil
}

// IsFolder reports whether p denotes a folder (trailing "/").
func (p Path) IsFolder() bool {
	return strings.HasSuffix(string(p), "/")
}

// IsBaked reports whether p falls under the reserved /.baked/ namespace.
func (p Path) IsBaked() bool {
	return strings.HasPrefix(string(p), BakedPrefix)
}

// Extension returns the lowercase extension of the final path segment,
// without the leading dot, or "" if there is none.
func (p Path) Extension() string {
	base := path.Base(string(p))
	idx := strings.LastIndex(base, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(base[idx+1:])
}

// HasPrefix reports whether p starts with prefix, used for folder-subtree
// matching in delete/rename.
func (p Path) HasPrefix(prefix Path) bool {
	return strings.HasPrefix(string(p), string(prefix))
}

// WithPrefixReplaced returns p with its leading oldPrefix replaced by
// newPrefix. Callers must have already verified p.HasPrefix(oldPrefix).
func (p Path) WithPrefixReplaced(oldPrefix, newPrefix Path) Path {
	return newPrefix + p[len(oldPrefix):]
}

// BakedArtifactPath builds the canonical mapping path for a baked artifact
// of the given source hash: /.baked/<hash>/<name>.
func BakedArtifactPath(source Hash, name string) Path {
	return Path(BakedPrefix + string(source) + "/" + name)
}
