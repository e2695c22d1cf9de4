package errors

import (
	"strings"
	"unicode"
)

// ValidatePluginName validates a plugin name before it is used in URLs,
// cache keys, or plugin-directory file paths. The rules are intentionally
// conservative: upstream catalogs accept nearly anything, but a name that
// reaches the filesystem must not traverse out of the plugin directory.
func ValidatePluginName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "plugin name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidInput, "plugin name too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "plugin name contains control characters")
		}
	}

	dangerous := []string{
		"..",   // parent directory
		"/",    // path separator
		"\\",   // Windows path separator
		"\x00", // null byte
		"@",    // reserved for the Name@Constraint specifier form
	}
	for _, pattern := range dangerous {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidInput, "plugin name contains invalid sequence %q", pattern)
		}
	}

	return nil
}
