// Copyright (c) 2025 the batproxy contributors
// released under the MIT license

package proxy

import "fmt"

const (
	// SemVer is the semantic version of batproxy.
	SemVer = "1.1.0"
)

var (
	// Commit is the current git commit.
	Commit = ""

	// Ver is the full version of batproxy, used in the CLI and logs.
	Ver = fmt.Sprintf("batproxy-%s", SemVer)
)

// SetVersionString initializes the version strings from the linker
// flags, if the build set any.
func SetVersionString(version, commit string) {
	Commit = commit
	if version != "" {
		Ver = fmt.Sprintf("batproxy-%s", version)
	} else if commit != "" {
		Ver = fmt.Sprintf("batproxy-%s-%s", SemVer, commit)
	} else {
		Ver = fmt.Sprintf("batproxy-%s", SemVer)
	}
}
