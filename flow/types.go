// Package flow implements the typed Flow model: the
// in-memory representation FDL compiles into and the Scheduler executes
// against.
package flow

// TypeSpec is a parsed FDL type expression:
// `base := primitive | custom_type_name`, with optional `map<T>`, `[]` and
// `?` suffixes applied in that parse order. `[]?` (nullable array) is valid;
// `?[]` is rejected by the parser.
type TypeSpec struct {
	Base     string // primitive name or custom type name
	MapValue *TypeSpec // non-nil when Base was wrapped in map<...>
	IsArray  bool
	Nullable bool
}

// Primitive FDL base types.
const (
	TypeBool    = "bool"
	TypeInt     = "int"
	TypeLong    = "long"
	TypeDouble  = "double"
	TypeDecimal = "decimal"
	TypeString  = "string"
	TypeDate    = "date"
	TypeAny     = "any"
)

// ParamSpec is one entry of `args.in`/`args.out` or one field of a
// `args.defs` custom type.
type ParamSpec struct {
	Name        string
	Type        TypeSpec
	Default     string // raw GML expression source, empty if absent
	Description string
}

// TypeDef is a user type declared under `args.defs`.
type TypeDef struct {
	Name   string
	Fields []ParamSpec
}

// OutputSpec is `args.out`: either an ordered list of named params, or a
// single implicit-result type.
type OutputSpec struct {
	Params    []ParamSpec // set when args.out is a map
	SingleType *TypeSpec  // set when args.out is a bare type string
}

// McpServerRef is one entry of `flow.mcp_servers`.
type McpServerRef struct {
	ID   string
	URL  string
	Name string
}

// Meta carries the flow's descriptive fields.
type Meta struct {
	Name        string
	Description string
}
