package models

import "strings"

// DeclaredType is the family a column's database type belongs to. It decides how
// comparison operands are coerced and whether pattern matching needs a text cast.
type DeclaredType int

const (
	TypeOther DeclaredType = iota
	TypeInteger
	TypeNumeric
	TypeFloat
	TypeText
	TypeBoolean
	TypeTimestamp
)

var declaredTypeNames = map[DeclaredType]string{
	TypeOther:     "other",
	TypeInteger:   "integer",
	TypeNumeric:   "numeric",
	TypeFloat:     "float",
	TypeText:      "text",
	TypeBoolean:   "boolean",
	TypeTimestamp: "timestamp",
}

func (t DeclaredType) String() string {
	if name, ok := declaredTypeNames[t]; ok {
		return name
	}
	return declaredTypeNames[TypeOther]
}

// IsIntegerFamily reports whether pattern matching must cast the column to text.
func (t DeclaredType) IsIntegerFamily() bool {
	return t == TypeInteger
}

var databaseTypeFamilies = map[string]DeclaredType{
	"int":              TypeInteger,
	"integer":          TypeInteger,
	"int2":             TypeInteger,
	"int4":             TypeInteger,
	"int8":             TypeInteger,
	"smallint":         TypeInteger,
	"mediumint":        TypeInteger,
	"tinyint":          TypeInteger,
	"bigint":           TypeInteger,
	"big int":          TypeInteger,
	"unsigned big int": TypeInteger,
	"serial":           TypeInteger,
	"smallserial":      TypeInteger,
	"bigserial":        TypeInteger,
	"serial2":          TypeInteger,
	"serial4":          TypeInteger,
	"serial8":          TypeInteger,

	"numeric": TypeNumeric,
	"decimal": TypeNumeric,
	"money":   TypeNumeric,

	"real":             TypeFloat,
	"float":            TypeFloat,
	"float4":           TypeFloat,
	"float8":           TypeFloat,
	"double":           TypeFloat,
	"double precision": TypeFloat,

	"text":              TypeText,
	"char":              TypeText,
	"character":         TypeText,
	"varchar":           TypeText,
	"character varying": TypeText,
	"nchar":             TypeText,
	"nvarchar":          TypeText,
	"varying character": TypeText,
	"native character":  TypeText,
	"bpchar":            TypeText,
	"citext":            TypeText,
	"clob":              TypeText,
	"string":            TypeText,
	"name":              TypeText,

	"bool":    TypeBoolean,
	"boolean": TypeBoolean,

	"timestamp":                   TypeTimestamp,
	"timestamptz":                 TypeTimestamp,
	"timestamp with time zone":    TypeTimestamp,
	"timestamp without time zone": TypeTimestamp,
	"datetime":                    TypeTimestamp,
	"date":                        TypeTimestamp,
	"time":                        TypeTimestamp,
	"timetz":                      TypeTimestamp,
	"time with time zone":         TypeTimestamp,
	"time without time zone":      TypeTimestamp,
}

// ParseDeclaredType classifies a database type name such as "INTEGER",
// "varchar(255)" or "timestamp(6) with time zone".
func ParseDeclaredType(databaseType string) DeclaredType {
	name := strings.ToLower(strings.TrimSpace(databaseType))
	if open := strings.IndexByte(name, '('); open >= 0 {
		rest := ""
		if end := strings.IndexByte(name[open:], ')'); end >= 0 {
			rest = name[open+end+1:]
		}
		name = strings.TrimSpace(name[:open]) + rest
	}
	name = strings.Join(strings.Fields(name), " ")

	if family, ok := databaseTypeFamilies[name]; ok {
		return family
	}
	return TypeOther
}
