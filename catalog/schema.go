package catalog

import "maps"

type FieldType int

const (
	Keyword FieldType = iota // Exact-match string
	Text                     // Tokenized string, supports phrase queries
	Integer
	Time
	Bool
)

func (t FieldType) String() string {
	switch t {
	case Keyword:
		return "keyword"
	case Text:
		return "text"
	case Integer:
		return "integer"
	case Time:
		return "time"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// Field describes how a document field is indexed and stored.
type Field struct {
	Type     FieldType
	Indexed  bool
	Stored   bool
	Multiple bool
}

// Built-in field names computed for every resource.
const (
	FieldAbsPath         = "abspath"
	FieldName            = "name"
	FieldParentPaths     = "parent_paths"
	FieldFormat          = "format"
	FieldTitle           = "title"
	FieldModifyTime      = "mtime"
	FieldLastAuthor      = "last_author"
	FieldLinks           = "links"
	FieldOnChangeReindex = "onchange_reindex"
	FieldNextTimeEvent   = "next_time_event"
)

type Schema map[string]Field

func DefaultSchema() Schema {
	return Schema{
		FieldAbsPath:         {Type: Keyword, Indexed: true, Stored: true},
		FieldName:            {Type: Keyword, Indexed: true, Stored: true},
		FieldParentPaths:     {Type: Keyword, Indexed: true, Multiple: true},
		FieldFormat:          {Type: Keyword, Indexed: true, Stored: true},
		FieldTitle:           {Type: Text, Indexed: true, Stored: true},
		FieldModifyTime:      {Type: Time, Indexed: true, Stored: true},
		FieldLastAuthor:      {Type: Keyword, Indexed: true, Stored: true},
		FieldLinks:           {Type: Keyword, Indexed: true, Stored: true, Multiple: true},
		FieldOnChangeReindex: {Type: Keyword, Indexed: true, Multiple: true},
		FieldNextTimeEvent:   {Type: Time, Indexed: true, Stored: true},
	}
}

// With returns a copy of the schema containing the additional field.
func (s Schema) With(name string, field Field) Schema {
	clone := make(Schema, len(s)+1)
	maps.Copy(clone, s)
	clone[name] = field

	return clone
}

// Field returns the definition of name. Unknown fields are stored keywords
// that are not indexed.
func (s Schema) Field(name string) Field {
	if field, ok := s[name]; ok {
		return field
	}
	return Field{Type: Keyword, Stored: true}
}
