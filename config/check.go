package config

import (
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/teranos/gitlab-ls/errors"
)

// UnknownKeys decodes a config file strictly and returns the keys that do not
// map to a setting, e.g. a misspelt "ttl_second". Viper silently ignores them.
func UnknownKeys(path string) ([]string, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, errors.Wrapf(errors.Mark(err, errors.ErrConfig), "failed to parse %s", path)
	}
	var keys []string
	for _, k := range md.Undecoded() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)
	return keys, nil
}
