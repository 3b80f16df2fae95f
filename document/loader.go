package document

import (
	"io/fs"
	"os"
	"path"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/m4xw311/docchat/errors"
	"github.com/rs/zerolog/log"
)

// LoadFiles reads every regular file under root matching one of the include
// globs into s, skipping paths matched by a hidden glob. Document ids are the
// slash separated paths relative to root. It returns the ids that were loaded.
func LoadFiles(s *Store, root string, include, hidden []string) ([]string, error) {
	if root == "" {
		root = "."
	}
	return LoadFS(s, os.DirFS(root), include, hidden)
}

// LoadFS is LoadFiles over an arbitrary file system.
func LoadFS(s *Store, fsys fs.FS, include, hidden []string) ([]string, error) {
	seen := make(map[string]bool)
	var matched []string
	for _, pattern := range include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.New("invalid document glob %q", pattern)
		}
		paths, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to expand document glob %q", pattern)
		}
		for _, p := range paths {
			if !seen[p] {
				seen[p] = true
				matched = append(matched, p)
			}
		}
	}
	sort.Strings(matched)

	var loaded []string
	for _, p := range matched {
		restricted, err := isPathRestricted(p, hidden)
		if err != nil {
			return loaded, err
		}
		if restricted {
			log.Debug().Str("path", p).Msg("skipping hidden document")
			continue
		}

		info, err := fs.Stat(fsys, p)
		if err != nil {
			return loaded, errors.Wrapf(err, "failed to stat document '%s'", p)
		}
		if !info.Mode().IsRegular() {
			continue
		}

		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return loaded, errors.Wrapf(err, "failed to read document '%s'", p)
		}
		s.Put(path.Clean(p), string(content))
		loaded = append(loaded, path.Clean(p))
	}
	return loaded, nil
}

// isPathRestricted checks if a path matches any of the glob patterns.
func isPathRestricted(p string, patterns []string) (bool, error) {
	for _, pattern := range patterns {
		match, err := doublestar.Match(pattern, p)
		if err != nil {
			return false, errors.Wrapf(err, "invalid glob pattern '%s'", pattern)
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
