// Package paths resolves the ordered list of plugin roots.
//
// Roots are plain directory paths, highest priority first. Nothing here
// touches the filesystem: a root that does not exist is the scanner's
// problem, and it simply yields no plugins.
package paths

import (
	"path/filepath"
	"slices"
	"strings"
)

// Static is a fixed, caller-ordered list of roots.
type Static []string

// Roots returns a copy of the list.
func (s Static) Roots() []string {
	return slices.Clone(s)
}

// Default returns the conventional roots for app: the user's data directory,
// then /etc, then /usr/lib. getenv is consulted for XDG_DATA_HOME and HOME;
// when neither is set the user root is omitted.
func Default(app string, getenv func(string) string) Static {
	var roots Static
	if user := userDataDir(getenv); user != "" {
		roots = append(roots, filepath.Join(user, app, "plugins"))
	}
	return append(roots,
		filepath.Join("/etc", app, "plugins"),
		filepath.Join("/usr/lib", app, "plugins"),
	)
}

// Clean trims, drops empty entries and removes later duplicates so the first
// (highest priority) occurrence of a root wins.
func Clean(roots []string) Static {
	out := make(Static, 0, len(roots))
	seen := make(map[string]struct{}, len(roots))
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		root = filepath.Clean(root)
		if _, ok := seen[root]; ok {
			continue
		}
		seen[root] = struct{}{}
		out = append(out, root)
	}
	return out
}

func userDataDir(getenv func(string) string) string {
	if dir := getenv("XDG_DATA_HOME"); filepath.IsAbs(dir) {
		return dir
	}
	if home := getenv("HOME"); home != "" {
		return filepath.Join(home, ".local", "share")
	}
	return ""
}
