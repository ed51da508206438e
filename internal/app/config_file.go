package app

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// EditableKeys are the keys `vibefs config get|set` accepts.
var EditableKeys = []string{
	"base_url",
	"file_ttl",
	"render.style",
	"render.line_numbers",
	"render.markdown",
}

// legacyKeys maps the original key names onto their current equivalents.
var legacyKeys = map[string]string{
	"pygments.style":   "render.style",
	"pygments.linenos": "render.line_numbers",
}

// canonicalKey resolves a legacy key name to the key it now lives under.
func canonicalKey(key string) string {
	if current, ok := legacyKeys[key]; ok {
		return current
	}
	return key
}

// applyLegacyKeys carries values stored under a legacy name over to the current key
// when the file does not set the current key itself.
func applyLegacyKeys(v *viper.Viper) {
	for legacy, current := range legacyKeys {
		if v.InConfig(legacy) && !v.InConfig(current) {
			v.SetDefault(current, v.Get(legacy))
		}
	}
}

// ErrUnknownConfigKey is returned for keys outside EditableKeys.
var ErrUnknownConfigKey = errors.New("config: unknown key")

// GetConfigValue reads key from the config file only, ignoring defaults and environment.
// Legacy key names are accepted.
func GetConfigValue(path, key string) (any, bool, error) {
	key = canonicalKey(key)
	if !slices.Contains(EditableKeys, key) {
		return nil, false, unknownKey(key)
	}

	v, err := readConfigFile(path)
	if err != nil {
		return nil, false, err
	}

	applyLegacyKeys(v)
	if !v.IsSet(key) {
		return nil, false, nil
	}
	return v.Get(key), true, nil
}

// SetConfigValue converts raw to the key's type, stores it in the config file and returns
// the stored value. Other keys already in the file are preserved.
func SetConfigValue(path, key, raw string) (any, error) {
	key = canonicalKey(key)
	if !slices.Contains(EditableKeys, key) {
		return nil, unknownKey(key)
	}

	value, err := convertConfigValue(key, raw)
	if err != nil {
		return nil, err
	}

	v, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	v.Set(key, value)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("config: create directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return nil, fmt.Errorf("config: write file: %w", err)
	}
	return value, nil
}

func readConfigFile(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(configFileType)
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return v, nil
}

func convertConfigValue(key, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	switch key {
	case "file_ttl":
		ttl, err := strconv.Atoi(raw)
		if err != nil || ttl <= 0 {
			return nil, fmt.Errorf("config: file_ttl must be a positive number of seconds, got %q", raw)
		}
		return ttl, nil
	case "render.line_numbers", "render.markdown":
		switch strings.ToLower(raw) {
		case "true", "1", "yes", "on", "inline", "table":
			return true, nil
		default:
			return false, nil
		}
	case "base_url":
		if raw == "" {
			return "", nil
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("config: base_url must be an absolute URL, got %q", raw)
		}
		return strings.TrimRight(raw, "/"), nil
	default:
		return raw, nil
	}
}

func unknownKey(key string) error {
	return fmt.Errorf("%w: %s. Valid keys: %s", ErrUnknownConfigKey, key, strings.Join(EditableKeys, ", "))
}
