package schema

import "strings"

// Type is the closed set of API-facing scalar types every native column type
// maps onto.
type Type string

const (
	TypeInteger Type = "integer"
	TypeFloat   Type = "float"
	TypeBoolean Type = "boolean"
	TypeString  Type = "string"
)

// scalarTypes maps normalized native type names onto the scalar set. The
// table is deliberately closed: anything absent maps to string, so an exotic
// column type can never keep the rest of the API from coming up.
var scalarTypes = map[string]Type{
	// integers
	"int":       TypeInteger,
	"integer":   TypeInteger,
	"smallint":  TypeInteger,
	"mediumint": TypeInteger,
	"tinyint":   TypeInteger,
	"bigint":    TypeInteger,
	"int2":      TypeInteger,
	"int4":      TypeInteger,
	"int8":      TypeInteger,
	"int16":     TypeInteger,
	"int32":     TypeInteger,
	"int64":     TypeInteger,
	"uint8":     TypeInteger,
	"uint16":    TypeInteger,
	"uint32":    TypeInteger,
	"uint64":    TypeInteger,
	"serial":    TypeInteger,
	"bigserial": TypeInteger,

	// floats
	"real":             TypeFloat,
	"float":            TypeFloat,
	"float4":           TypeFloat,
	"float8":           TypeFloat,
	"float32":          TypeFloat,
	"float64":          TypeFloat,
	"double":           TypeFloat,
	"double precision": TypeFloat,
	"numeric":          TypeFloat,
	"decimal":          TypeFloat,

	// booleans
	"bool":    TypeBoolean,
	"boolean": TypeBoolean,

	// strings
	"char":              TypeString,
	"character":         TypeString,
	"varchar":           TypeString,
	"character varying": TypeString,
	"nvarchar":          TypeString,
	"text":              TypeString,
	"string":            TypeString,
	"fixedstring":       TypeString,
	"uuid":              TypeString,
}

// MapNativeType maps an engine's native column type onto the scalar set.
// The second return reports whether the type was recognized; unrecognized
// types come back as TypeString so callers can log and continue.
func MapNativeType(native string) (Type, bool) {
	name := strings.ToLower(strings.TrimSpace(native))
	// drop length/precision arguments: varchar(255), decimal(10,2)
	if i := strings.IndexByte(name, '('); i > 0 {
		name = strings.TrimSpace(name[:i])
	}
	name = strings.TrimSuffix(name, " unsigned")

	if t, ok := scalarTypes[name]; ok {
		return t, true
	}
	return TypeString, false
}
