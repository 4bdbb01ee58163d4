package data

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
)

// LoadDir reads global data files (*.yaml, *.yml, *.json) from dir. Each
// file becomes a top-level key named after the file stem. A missing
// directory yields empty data.
func LoadDir(dir string) (Data, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return Data{}, nil
	}
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "read data directory").
			WithContext("path", dir).Build()
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := Data{}
	for _, name := range names {
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}
		full := filepath.Join(dir, name)
		raw, err := os.ReadFile(full)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "read data file").WithFile(full).Build()
		}
		var v any
		if ext == ".json" {
			err = json.Unmarshal(raw, &v)
		} else {
			err = yaml.Unmarshal(raw, &v)
		}
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryConfig, "parse data file").WithFile(full).Fatal().Build()
		}
		key := strings.TrimSuffix(name, filepath.Ext(name))
		if _, dup := out[key]; dup {
			return nil, errors.ConfigError(fmt.Sprintf("data key %q defined by more than one file", key)).
				WithFile(full).Build()
		}
		out[key] = v
	}
	return out, nil
}
