package stylesheet

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// candidates lists the files an import target may refer to within one
// base directory, in lookup order.
func candidates(base, target string) []string {
	dir, name := filepath.Split(filepath.FromSlash(target))
	dir = filepath.Join(base, dir)
	switch filepath.Ext(name) {
	case ".scss", ".css":
		return []string{filepath.Join(dir, name), filepath.Join(dir, "_"+name)}
	}
	return []string{
		filepath.Join(dir, name+".scss"),
		filepath.Join(dir, "_"+name+".scss"),
		filepath.Join(dir, name, "_index.scss"),
		filepath.Join(dir, name, "index.scss"),
		filepath.Join(dir, name+".css"),
	}
}

func isFile(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}

// resolveImport finds target relative to fromDir first and then in each
// load path. A partial and a non-partial with the same name in one
// directory is an error.
func (c *compiler) resolveImport(target, fromDir string) (string, error) {
	bases := make([]string, 0, len(c.loadPaths)+1)
	if fromDir != "" {
		bases = append(bases, fromDir)
	}
	bases = append(bases, c.loadPaths...)

	var searched []string
	for _, base := range bases {
		cands := candidates(base, target)
		var found []string
		for _, cand := range cands {
			if isFile(cand) {
				found = append(found, cand)
			}
		}
		if len(found) >= 2 && samePair(found[0], found[1]) {
			return "", fmt.Errorf("it's not clear which file to import for %q, found %s and %s",
				target, c.display(found[0]), c.display(found[1]))
		}
		if len(found) > 0 {
			return found[0], nil
		}
		searched = append(searched, c.display(base))
	}
	return "", fmt.Errorf("can't find stylesheet to import %q (searched %s)", target, strings.Join(searched, ", "))
}

// samePair reports whether a and b are "name.scss" and "_name.scss" in the same directory.
func samePair(a, b string) bool {
	return filepath.Dir(a) == filepath.Dir(b) &&
		strings.TrimPrefix(filepath.Base(b), "_") == filepath.Base(a)
}

// display renders p relative to the base directory for messages.
func (c *compiler) display(p string) string {
	if c.baseDir != "" {
		if rel, err := filepath.Rel(c.baseDir, p); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(p)
}
