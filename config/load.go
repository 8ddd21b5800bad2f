package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/ghodss/yaml"
	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/mapstructure"

	"github.com/go-thor/restproxy/errors"
)

// Load reads a client configuration file. The format is chosen by extension:
// .toml, .yaml/.yml or .json. Unset fields take their Default values.
func Load(path string) (ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ClientConfig{}, errors.Wrap(errors.KindConfiguration, err, "read config")
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes a configuration document in the format named by ext
func Parse(data []byte, ext string) (ClientConfig, error) {
	raw := map[string]interface{}{}
	var err error
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "toml":
		err = toml.Unmarshal(data, &raw)
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &raw)
	case "json":
		err = jsoniter.Unmarshal(data, &raw)
	default:
		return ClientConfig{}, errors.Configuration("unsupported config format %q", ext)
	}
	if err != nil {
		return ClientConfig{}, errors.Wrap(errors.KindConfiguration, err, "parse config")
	}

	var cfg ClientConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &cfg,
	})
	if err != nil {
		return ClientConfig{}, errors.Wrap(errors.KindConfiguration, err, "create decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return ClientConfig{}, errors.Wrap(errors.KindConfiguration, err, "decode config")
	}

	if err := mergo.Merge(&cfg, Default()); err != nil {
		return ClientConfig{}, errors.Wrap(errors.KindConfiguration, err, "apply defaults")
	}
	cfg.Headers = copyHeaders(cfg.Headers)

	if err := cfg.Validate(); err != nil {
		return ClientConfig{}, errors.Wrap(errors.KindConfiguration, err, "invalid config")
	}
	return cfg, nil
}

// FileContext is a Context backed by a configuration file loaded once
type FileContext struct {
	*StaticContext
	path string
}

// NewFileContext loads path and serves its configuration and headers
func NewFileContext(path string) (*FileContext, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &FileContext{StaticContext: NewStaticContext(cfg, cfg.Headers), path: path}, nil
}

// Path returns the file the context was loaded from
func (f *FileContext) Path() string {
	return f.path
}

func (f *FileContext) String() string {
	return fmt.Sprintf("FileContext(%s)", f.path)
}
