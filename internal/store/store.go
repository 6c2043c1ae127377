package store

import (
	"errors"
	"runtime/debug"
	"strings"
)

// ErrNotFound is returned when a lookup matches no user.
var ErrNotFound = errors.New("user not found")

// Metadata describes the database behind a store, as reported by the
// connection diagnostics.
type Metadata struct {
	ProductName    string
	ProductVersion string
	URL            string
	User           string
	Schema         string
	DriverName     string
	DriverVersion  string
}

// moduleVersion reports the version of a dependency compiled into the
// binary, or "unknown" when build info is unavailable (e.g. under go test).
func moduleVersion(path string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, dep := range info.Deps {
		if dep.Path == path {
			if dep.Replace != nil {
				return dep.Replace.Version
			}
			return dep.Version
		}
	}
	return "unknown"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching fragment anywhere, with
// wildcard characters in fragment matched literally. Use with ESCAPE '\'.
func containsPattern(fragment string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(fragment)) + "%"
}
