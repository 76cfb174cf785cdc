package fileio

import (
	"strings"

	"ftcp/protocol"
)

// SanitizeFilename reduces a peer-supplied filename to a safe basename.
// Path traversal tokens and absolute path forms are rejected outright;
// path separators become underscores and anything outside [A-Za-z0-9._-]
// is dropped. An empty result is rejected.
func SanitizeFilename(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", protocol.Errf(protocol.ErrInvalidArg, "path traversal in filename %q", name)
	}
	if strings.HasPrefix(name, "/") || strings.HasPrefix(name, "\\") {
		return "", protocol.Errf(protocol.ErrInvalidArg, "absolute path not allowed: %q", name)
	}
	if len(name) >= 2 && name[1] == ':' && name[0] >= 'A' && name[0] <= 'Z' {
		return "", protocol.Errf(protocol.ErrInvalidArg, "drive path not allowed: %q", name)
	}

	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z',
			c >= '0' && c <= '9', c == '.', c == '_', c == '-':
			b.WriteByte(c)
		case c == '/' || c == '\\':
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "", protocol.Errf(protocol.ErrInvalidArg, "filename %q sanitizes to empty", name)
	}
	return b.String(), nil
}
