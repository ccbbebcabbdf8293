// Package schemafile loads listq schemas from YAML declarations.
//
// One file declares one schema. Custom fields keep their operators and
// options in YAML but receive their builder from code, through
// WithCustom. Unknown keys are rejected so typos fail at load time
// rather than silently dropping a declaration.
package schemafile

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/listq/listq"
)

type fileSchema struct {
	Name       string                     `yaml:"name"`
	Fields     map[string]listq.Field     `yaml:"fields"`
	Aliases    []string                   `yaml:"aliases"`
	Joins      map[string]listq.Join      `yaml:"joins"`
	Composites map[string]listq.Composite `yaml:"composites"`
	Customs    map[string]fileCustom      `yaml:"customs"`

	Filterable []string `yaml:"filterable"`
	Sortable   []string `yaml:"sortable"`

	DefaultLimit int              `yaml:"default_limit"`
	MaxLimit     int              `yaml:"max_limit"`
	DefaultOrder *listq.OrderSpec `yaml:"default_order"`

	PaginationTypes       []listq.PaginationType `yaml:"pagination_types"`
	DefaultPaginationType listq.PaginationType   `yaml:"default_pagination_type"`

	OnUnsupportedCompositeOp listq.CompositeOpPolicy `yaml:"on_unsupported_composite_op"`
	ReplaceInvalidParams     *bool                   `yaml:"replace_invalid_params"`
}

type fileCustom struct {
	Operators []listq.Operator `yaml:"operators"`
	Options   map[string]any   `yaml:"options"`
}

type options struct {
	builders map[string]listq.CustomBuilder
	settings *listq.Settings
	codec    listq.Codec
}

// Option adjusts schema loading.
type Option func(*options)

// WithCustom attaches the builder for a custom field declared in the
// file. Loading fails if the file declares no such custom field.
func WithCustom(field string, build listq.CustomBuilder) Option {
	return func(o *options) {
		if o.builders == nil {
			o.builders = map[string]listq.CustomBuilder{}
		}
		o.builders[field] = build
	}
}

// WithSettings overrides the process-wide defaults applied to the
// loaded schema.
func WithSettings(s *listq.Settings) Option {
	return func(o *options) { o.settings = s }
}

// WithCodec overrides the cursor codec of the loaded schema.
func WithCodec(c listq.Codec) Option {
	return func(o *options) { o.codec = c }
}

// Parse builds a schema from YAML source. fallbackName is used when the
// document sets no name; Load passes the file's base name.
func Parse(data []byte, fallbackName string, opts ...Option) (*listq.Schema, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var fs fileSchema
	if err := dec.Decode(&fs); err != nil {
		return nil, errors.Wrap(err, "decode schema")
	}

	cfg := listq.SchemaConfig{
		Name:       fs.Name,
		Fields:     fs.Fields,
		Aliases:    fs.Aliases,
		Joins:      fs.Joins,
		Composites: fs.Composites,

		Filterable: fs.Filterable,
		Sortable:   fs.Sortable,

		DefaultLimit: fs.DefaultLimit,
		MaxLimit:     fs.MaxLimit,
		DefaultOrder: fs.DefaultOrder,

		PaginationTypes:       fs.PaginationTypes,
		DefaultPaginationType: fs.DefaultPaginationType,

		OnUnsupportedCompositeOp: fs.OnUnsupportedCompositeOp,
		ReplaceInvalidParams:     fs.ReplaceInvalidParams,

		Codec:    o.codec,
		Settings: o.settings,
	}
	if cfg.Name == "" {
		cfg.Name = fallbackName
	}

	if len(fs.Customs) > 0 {
		cfg.Customs = make(map[string]listq.Custom, len(fs.Customs))
		for name, c := range fs.Customs {
			cfg.Customs[name] = listq.Custom{
				Build:     o.builders[name],
				Operators: c.Operators,
				Options:   c.Options,
			}
		}
	}
	for name := range o.builders {
		if _, ok := fs.Customs[name]; !ok {
			return nil, errors.Errorf("builder for custom field %q, but the file declares no such field", name)
		}
	}

	return listq.NewSchema(cfg)
}

// Load reads one schema file. The schema name defaults to the file's
// base name without extension.
func Load(path string, opts ...Option) (*listq.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read schema file %s", path)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	s, err := Parse(data, name, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "schema file %s", path)
	}
	return s, nil
}

// LoadDir loads every *.yml and *.yaml schema in a directory, keyed by
// schema name. Options apply to every file, so WithCustom is only
// usable here when each named custom field appears in every file;
// otherwise load files individually.
func LoadDir(dir string, opts ...Option) (map[string]*listq.Schema, error) {
	var paths []string
	for _, pattern := range []string{"*.yml", "*.yaml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, errors.Wrapf(err, "scan schema dir %s", dir)
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, errors.Errorf("no schema files in %s", dir)
	}

	schemas := make(map[string]*listq.Schema, len(paths))
	for _, path := range paths {
		s, err := Load(path, opts...)
		if err != nil {
			return nil, err
		}
		if _, dup := schemas[s.Name()]; dup {
			return nil, errors.Errorf("duplicate schema name %q in %s", s.Name(), dir)
		}
		schemas[s.Name()] = s
	}
	return schemas, nil
}
