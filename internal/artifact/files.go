package artifact

import (
	"path"
	"regexp"
	"strings"
)

// Exports of the same chat are saved as "<name>.txt", "<name> (1).txt", ...
var copySuffix = regexp.MustCompile(`^( ?\(\d+\))?$`)

// IsExportFile reports whether file is a .txt or .zip export named
// prefix, optionally followed by a copy counter. The prefix comparison
// ignores case; "Al" does not match an export of "Alice".
func IsExportFile(file, prefix string) bool {
	ext := strings.ToLower(path.Ext(file))
	if ext != ".txt" && ext != ".zip" {
		return false
	}
	stem := file[:len(file)-len(ext)]
	if len(stem) < len(prefix) || !strings.EqualFold(stem[:len(prefix)], prefix) {
		return false
	}
	return copySuffix.MatchString(stem[len(prefix):])
}
