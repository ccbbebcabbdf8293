package listq

import (
	"sort"
)

// FieldKind distinguishes the five field families a schema can declare.
type FieldKind string

const (
	// KindPlain is a stored column on the base relation.
	KindPlain FieldKind = "plain"
	// KindAlias names a computed expression from the select list. Alias
	// fields are order-only: they cannot be filtered and cannot feed a
	// cursor.
	KindAlias FieldKind = "alias"
	// KindJoin reaches a field on an associated relation through a
	// named binding.
	KindJoin FieldKind = "join"
	// KindComposite fans a filter out over several member fields, for
	// "full name" style searches.
	KindComposite FieldKind = "composite"
	// KindCustom delegates predicate construction to a user-supplied
	// builder.
	KindCustom FieldKind = "custom"
)

// StorageType is the declared value type of a field. It drives operand
// coercion, operator defaults, and cursor value decoding.
type StorageType string

const (
	TypeInt         StorageType = "int"
	TypeFloat       StorageType = "float"
	TypeDecimal     StorageType = "decimal"
	TypeString      StorageType = "string"
	TypeBool        StorageType = "bool"
	TypeDate        StorageType = "date"
	TypeDatetime    StorageType = "datetime"
	TypeEnum        StorageType = "enum"
	TypeStringArray StorageType = "string_array"
	TypeIntArray    StorageType = "int_array"
	TypeMap         StorageType = "map"
)

var storageTypes = map[StorageType]bool{
	TypeInt: true, TypeFloat: true, TypeDecimal: true, TypeString: true,
	TypeBool: true, TypeDate: true, TypeDatetime: true, TypeEnum: true,
	TypeStringArray: true, TypeIntArray: true, TypeMap: true,
}

// CompositeOpPolicy decides what happens when a filter uses an operator
// a composite field cannot express.
type CompositeOpPolicy string

const (
	// CompositeOpWarn drops the filter (it compiles to a match-all
	// predicate) and logs a warning.
	CompositeOpWarn CompositeOpPolicy = "warn_and_ignore"
	// CompositeOpError rejects the request with a validation error.
	CompositeOpError CompositeOpPolicy = "error"
)

// CustomBuilder produces the predicate for a custom field. It receives
// the validated filter and the options declared on the field. Builders
// may return portable algebra nodes or a Raw SQL fragment; Raw limits
// the schema to SQL-backed executors.
type CustomBuilder func(f Filter, opts map[string]any) (Expr, error)

// Field declares a plain field.
type Field struct {
	Type StorageType `yaml:"type"`
	// Column overrides the storage column name when it differs from
	// the logical name.
	Column     string     `yaml:"column,omitempty"`
	Operators  []Operator `yaml:"operators,omitempty"`
	EnumValues []string   `yaml:"values,omitempty"`
}

// Join declares a field reached through an association binding.
type Join struct {
	Binding string      `yaml:"binding"`
	Field   string      `yaml:"field"`
	Type    StorageType `yaml:"type"`
	// Path is the access path into fetched rows; defaults to
	// [Binding, Field].
	Path       []string   `yaml:"path,omitempty"`
	Operators  []Operator `yaml:"operators,omitempty"`
	EnumValues []string   `yaml:"values,omitempty"`
}

// Composite declares a field that filters across several members.
type Composite struct {
	Members []string `yaml:"members"`
}

// Custom declares a field whose predicate is built by application code.
type Custom struct {
	Build     CustomBuilder
	Operators []Operator
	Options   map[string]any
}

// NoLimit disables the maximum page size for a schema.
const NoLimit = -1

// SchemaConfig declares the queryable surface of one list endpoint.
type SchemaConfig struct {
	Name       string
	Fields     map[string]Field
	Aliases    []string
	Joins      map[string]Join
	Composites map[string]Composite
	Customs    map[string]Custom

	// Filterable and Sortable whitelist the fields requests may use.
	// Alias fields cannot be filterable; custom fields cannot be
	// sortable.
	Filterable []string
	Sortable   []string

	// DefaultLimit and MaxLimit bound page sizes. Zero means "inherit
	// from settings"; MaxLimit NoLimit disables the cap.
	DefaultLimit int
	MaxLimit     int

	DefaultOrder *OrderSpec

	// PaginationTypes lists the enabled strategies; empty enables all.
	PaginationTypes       []PaginationType
	DefaultPaginationType PaginationType

	OnUnsupportedCompositeOp CompositeOpPolicy

	// ReplaceInvalidParams switches validation from rejecting to
	// repairing: out-of-range values are clamped, unknown fields and
	// broken filters dropped.
	ReplaceInvalidParams *bool

	// Codec overrides the cursor wire format.
	Codec Codec

	// Settings supplies process-wide defaults; nil uses
	// DefaultSettings.
	Settings *Settings
}

// FieldDescriptor is the resolved, immutable form of one declared
// field. Descriptors are shared by reference between the schema, plans,
// and adapters; callers must not mutate them.
type FieldDescriptor struct {
	Name        string
	Kind        FieldKind
	Type        StorageType
	Column      string
	Binding     string
	RemoteField string
	Path        []string
	Members     []string
	Build       CustomBuilder
	Options     map[string]any
	EnumValues  []string

	operators map[Operator]bool
	enumSet   map[string]bool
	members   []*FieldDescriptor
}

// Allows reports whether the field accepts the operator.
func (fd *FieldDescriptor) Allows(op Operator) bool {
	return fd.operators[op]
}

// AllowedOperators returns the field's operators in a stable order.
func (fd *FieldDescriptor) AllowedOperators() []Operator {
	ops := make([]Operator, 0, len(fd.operators))
	for op := range fd.operators {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// MemberFields returns the resolved member descriptors of a composite
// field, in declaration order.
func (fd *FieldDescriptor) MemberFields() []*FieldDescriptor {
	return fd.members
}

func (fd *FieldDescriptor) allowsEnumValue(v string) bool {
	if fd.enumSet == nil {
		return true
	}
	return fd.enumSet[v]
}

// Schema is a compiled, immutable field registry plus the pagination
// policy for one list endpoint. Build one per endpoint at startup and
// share it between requests.
type Schema struct {
	name       string
	all        map[string]*FieldDescriptor
	filterable map[string]*FieldDescriptor
	sortable   map[string]*FieldDescriptor

	defaultLimit int
	maxLimit     int

	defaultOrder []OrderTerm

	paginationTypes   map[PaginationType]bool
	defaultPagination PaginationType

	compositePolicy CompositeOpPolicy
	replaceInvalid  bool
	codec           Codec
	settings        Settings
}

// MustNewSchema is NewSchema for package-level schema variables; it
// panics on configuration errors.
func MustNewSchema(cfg SchemaConfig) *Schema {
	s, err := NewSchema(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

// NewSchema validates a declaration and compiles it into a Schema.
// Every returned error is a *ConfigError naming the offending field.
func NewSchema(cfg SchemaConfig) (*Schema, error) {
	if cfg.Name == "" {
		return nil, configErr("", "", "schema name is required")
	}

	settings := DefaultSettings()
	if cfg.Settings != nil {
		settings = *cfg.Settings
	}

	s := &Schema{
		name:       cfg.Name,
		all:        map[string]*FieldDescriptor{},
		filterable: map[string]*FieldDescriptor{},
		sortable:   map[string]*FieldDescriptor{},
		settings:   settings,
	}

	if err := s.registerFields(cfg); err != nil {
		return nil, err
	}
	if err := s.applyCapabilities(cfg); err != nil {
		return nil, err
	}
	if err := s.applyPagination(cfg, settings); err != nil {
		return nil, err
	}

	s.compositePolicy = cfg.OnUnsupportedCompositeOp
	if s.compositePolicy == "" {
		s.compositePolicy = CompositeOpWarn
	}
	if s.compositePolicy != CompositeOpWarn && s.compositePolicy != CompositeOpError {
		return nil, configErr(cfg.Name, "", "unknown composite operator policy %q", s.compositePolicy)
	}

	s.replaceInvalid = settings.ReplaceInvalidParams
	if cfg.ReplaceInvalidParams != nil {
		s.replaceInvalid = *cfg.ReplaceInvalidParams
	}

	s.codec = cfg.Codec
	if s.codec == nil {
		s.codec = StdCodec{}
	}

	return s, nil
}

func (s *Schema) registerFields(cfg SchemaConfig) error {
	add := func(fd *FieldDescriptor) error {
		if fd.Name == "" {
			return configErr(s.name, "", "field with empty name")
		}
		if _, dup := s.all[fd.Name]; dup {
			return configErr(s.name, fd.Name, "duplicate field name")
		}
		s.all[fd.Name] = fd
		return nil
	}

	checkType := func(name string, t StorageType, enumValues []string) error {
		if t == "" {
			return configErr(s.name, name, "missing storage type")
		}
		if !storageTypes[t] {
			return configErr(s.name, name, "unknown storage type %q", t)
		}
		if t == TypeEnum && len(enumValues) == 0 {
			return configErr(s.name, name, "enum field declares no values")
		}
		if t != TypeEnum && len(enumValues) > 0 {
			return configErr(s.name, name, "values are only valid on enum fields")
		}
		return nil
	}

	buildOps := func(name string, t StorageType, declared []Operator) (map[Operator]bool, error) {
		allowed := DefaultOperators(t)
		if len(declared) == 0 {
			declared = allowed
		}
		allowedSet := map[Operator]bool{}
		for _, op := range allowed {
			allowedSet[op] = true
		}
		set := map[Operator]bool{}
		for _, op := range declared {
			if !allowedSet[op] {
				return nil, configErr(s.name, name, "operator %q is not applicable to type %q", op, t)
			}
			set[op] = true
		}
		return set, nil
	}

	for name, f := range cfg.Fields {
		if err := checkType(name, f.Type, f.EnumValues); err != nil {
			return err
		}
		ops, err := buildOps(name, f.Type, f.Operators)
		if err != nil {
			return err
		}
		column := f.Column
		if column == "" {
			column = name
		}
		fd := &FieldDescriptor{
			Name: name, Kind: KindPlain, Type: f.Type, Column: column,
			EnumValues: f.EnumValues, operators: ops,
		}
		if f.Type == TypeEnum {
			fd.enumSet = stringSet(f.EnumValues)
		}
		if err := add(fd); err != nil {
			return err
		}
	}

	for _, name := range cfg.Aliases {
		if err := add(&FieldDescriptor{Name: name, Kind: KindAlias}); err != nil {
			return err
		}
	}

	for name, j := range cfg.Joins {
		if j.Binding == "" || j.Field == "" {
			return configErr(s.name, name, "join field needs a binding and a remote field")
		}
		if err := checkType(name, j.Type, j.EnumValues); err != nil {
			return err
		}
		ops, err := buildOps(name, j.Type, j.Operators)
		if err != nil {
			return err
		}
		path := j.Path
		if len(path) == 0 {
			path = []string{j.Binding, j.Field}
		}
		fd := &FieldDescriptor{
			Name: name, Kind: KindJoin, Type: j.Type,
			Binding: j.Binding, RemoteField: j.Field, Path: path,
			EnumValues: j.EnumValues, operators: ops,
		}
		if j.Type == TypeEnum {
			fd.enumSet = stringSet(j.EnumValues)
		}
		if err := add(fd); err != nil {
			return err
		}
	}

	for name, c := range cfg.Composites {
		if len(c.Members) < 2 {
			return configErr(s.name, name, "composite field needs at least two members")
		}
		ops := map[Operator]bool{}
		for op := range compositeOps {
			ops[op] = true
		}
		fd := &FieldDescriptor{
			Name: name, Kind: KindComposite, Type: TypeString,
			Members: c.Members, operators: ops,
		}
		if err := add(fd); err != nil {
			return err
		}
	}

	for name, c := range cfg.Customs {
		if c.Build == nil {
			return configErr(s.name, name, "custom field needs a builder")
		}
		if len(c.Operators) == 0 {
			return configErr(s.name, name, "custom field declares no operators")
		}
		set := map[Operator]bool{}
		for _, op := range c.Operators {
			set[op] = true
		}
		fd := &FieldDescriptor{
			Name: name, Kind: KindCustom,
			Build: c.Build, Options: c.Options, operators: set,
		}
		if err := add(fd); err != nil {
			return err
		}
	}

	// Composite members resolve after all groups are in.
	for _, fd := range s.all {
		if fd.Kind != KindComposite {
			continue
		}
		for _, m := range fd.Members {
			member, ok := s.all[m]
			if !ok {
				return configErr(s.name, fd.Name, "unknown composite member %q", m)
			}
			if member.Kind != KindPlain && member.Kind != KindJoin {
				return configErr(s.name, fd.Name, "composite member %q must be a plain or join field", m)
			}
			fd.members = append(fd.members, member)
		}
	}

	return nil
}

func (s *Schema) applyCapabilities(cfg SchemaConfig) error {
	for _, name := range cfg.Filterable {
		fd, ok := s.all[name]
		if !ok {
			return configErr(s.name, name, "filterable field is not declared")
		}
		if fd.Kind == KindAlias {
			return configErr(s.name, name, "alias fields cannot be filtered")
		}
		s.filterable[name] = fd
	}
	for _, name := range cfg.Sortable {
		fd, ok := s.all[name]
		if !ok {
			return configErr(s.name, name, "sortable field is not declared")
		}
		if fd.Kind == KindCustom {
			return configErr(s.name, name, "custom fields cannot be ordered")
		}
		s.sortable[name] = fd
	}
	return nil
}

func (s *Schema) applyPagination(cfg SchemaConfig, settings Settings) error {
	s.defaultLimit = cfg.DefaultLimit
	if s.defaultLimit == 0 {
		s.defaultLimit = settings.DefaultLimit
	}
	if s.defaultLimit < 1 {
		return configErr(s.name, "", "default limit must be at least 1")
	}

	s.maxLimit = cfg.MaxLimit
	if s.maxLimit == 0 {
		s.maxLimit = settings.MaxLimit
	}
	if s.maxLimit < NoLimit {
		return configErr(s.name, "", "invalid max limit %d", cfg.MaxLimit)
	}
	if s.maxLimit != NoLimit && s.defaultLimit > s.maxLimit {
		return configErr(s.name, "", "default limit %d exceeds max limit %d", s.defaultLimit, s.maxLimit)
	}

	types := cfg.PaginationTypes
	if len(types) == 0 {
		types = []PaginationType{PaginateOffset, PaginatePage, PaginateCursor}
	}
	s.paginationTypes = map[PaginationType]bool{}
	for _, t := range types {
		switch t {
		case PaginateOffset, PaginatePage, PaginateCursor:
			s.paginationTypes[t] = true
		default:
			return configErr(s.name, "", "unknown pagination type %q", t)
		}
	}

	s.defaultPagination = cfg.DefaultPaginationType
	if s.defaultPagination == "" {
		if s.paginationTypes[settings.DefaultPaginationType] {
			s.defaultPagination = settings.DefaultPaginationType
		} else {
			s.defaultPagination = types[0]
		}
	}
	if !s.paginationTypes[s.defaultPagination] {
		return configErr(s.name, "", "default pagination type %q is not enabled", s.defaultPagination)
	}

	if cfg.DefaultOrder != nil {
		spec := cfg.DefaultOrder
		if len(spec.Directions) > len(spec.Fields) {
			return configErr(s.name, "", "default order has more directions than fields")
		}
		for i, name := range spec.Fields {
			fd, ok := s.sortable[name]
			if !ok {
				return configErr(s.name, name, "default order field is not sortable")
			}
			dir := OrderAsc
			if i < len(spec.Directions) {
				d, ok := ParseDirection(string(spec.Directions[i]))
				if !ok {
					return configErr(s.name, name, "unknown order direction %q", spec.Directions[i])
				}
				dir = d
			}
			s.defaultOrder = append(s.defaultOrder, OrderTerm{Field: fd, Direction: dir})
		}
	}

	return nil
}

// Name returns the schema name.
func (s *Schema) Name() string { return s.name }

// Resolve looks up any declared field by logical name.
func (s *Schema) Resolve(name string) (*FieldDescriptor, error) {
	fd, ok := s.all[name]
	if !ok {
		return nil, misuseErr("resolve", "unknown field %q on schema %q", name, s.name)
	}
	return fd, nil
}

// Filterable looks up a field usable in filters.
func (s *Schema) Filterable(name string) (*FieldDescriptor, bool) {
	fd, ok := s.filterable[name]
	return fd, ok
}

// Sortable looks up a field usable in orderings.
func (s *Schema) Sortable(name string) (*FieldDescriptor, bool) {
	fd, ok := s.sortable[name]
	return fd, ok
}

// FieldsOfKind returns the declared fields of one kind, sorted by name.
func (s *Schema) FieldsOfKind(kind FieldKind) []*FieldDescriptor {
	var out []*FieldDescriptor
	for _, fd := range s.all {
		if fd.Kind == kind {
			out = append(out, fd)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DefaultOrder returns a copy of the schema's default ordering.
func (s *Schema) DefaultOrder() []OrderTerm {
	if len(s.defaultOrder) == 0 {
		return nil
	}
	out := make([]OrderTerm, len(s.defaultOrder))
	copy(out, s.defaultOrder)
	return out
}

// DefaultLimit returns the page size applied when a request names none.
func (s *Schema) DefaultLimit() int { return s.defaultLimit }

// MaxLimit returns the page size cap, or NoLimit when uncapped.
func (s *Schema) MaxLimit() int { return s.maxLimit }

// Codec returns the cursor codec in effect for the schema.
func (s *Schema) Codec() Codec { return s.codec }

func stringSet(vals []string) map[string]bool {
	set := make(map[string]bool, len(vals))
	for _, v := range vals {
		set[v] = true
	}
	return set
}
