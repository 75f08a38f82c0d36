// Package version reports the build's VCS revision for --version
// (spec.md §6.1), via runtime/debug.ReadBuildInfo the same way the
// teacher's version package does.
package version

import "runtime/debug"

func readParts() (revision string, modified, ok bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false, false
	}
	settings := make(map[string]string)
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	return settings["vcs.revision"], settings["vcs.modified"] == "true", true
}

// Read returns a full revision string suitable for --version output.
func Read() string {
	revision, modified, ok := readParts()
	if !ok {
		return "<unknown>"
	}
	modifiedSuffix := ""
	if modified {
		modifiedSuffix = " (modified)"
	}
	if revision == "" {
		return "<unknown>" + modifiedSuffix
	}
	return revision + modifiedSuffix
}

// ReadBrief returns a short revision suitable for log-line prefixes.
func ReadBrief() string {
	revision, modified, ok := readParts()
	if !ok || revision == "" {
		return "devel"
	}
	modifiedSuffix := ""
	if modified {
		modifiedSuffix = "+"
	}
	if len(revision) > 8 {
		revision = revision[:8]
	}
	return revision + modifiedSuffix
}
