package jsonschema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Schema is a JSON Schema document describing tool parameters. Only the
// subset of the standard needed for function/tool declarations is
// modeled: object shapes, primitive types, arrays, maps, enums, and
// $defs-based references for recursive types.
type Schema struct {
	Type                 string             `json:"type,omitempty"`
	Description          string             `json:"description,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	AdditionalProperties *Schema            `json:"additionalProperties,omitempty"`
	Enum                 []any              `json:"enum,omitempty"`
	Ref                  string             `json:"$ref,omitempty"`
	Defs                 map[string]*Schema `json:"$defs,omitempty"`
}

// FromType builds a Schema from the Go type T by reflection. Field names
// follow json tags; jsonschema tags add descriptions, enums, and explicit
// required markers. Self-referential struct types are emitted once under
// $defs and referenced from the recursion point.
func FromType[T any]() (*Schema, error) {
	g := &generator{
		expanding: make(map[reflect.Type]string),
		defs:      make(map[string]*Schema),
	}

	schema, err := g.walk(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}

	if len(g.defs) > 0 {
		schema.Defs = g.defs
	}

	return schema, nil
}

// generator carries walk state. expanding maps named struct types
// currently on the walk stack to their definition names, so re-entering
// one yields a $ref instead of infinite descent.
type generator struct {
	expanding map[reflect.Type]string
	defs      map[string]*Schema
}

func (g *generator) walk(t reflect.Type) (*Schema, error) {
	switch t.Kind() {
	case reflect.Pointer:
		return g.walk(t.Elem())
	case reflect.String:
		return &Schema{Type: "string"}, nil
	case reflect.Bool:
		return &Schema{Type: "boolean"}, nil
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}, nil
	case reflect.Slice, reflect.Array:
		items, err := g.walk(t.Elem())
		if err != nil {
			return nil, err
		}
		return &Schema{Type: "array", Items: items}, nil
	case reflect.Map:
		values, err := g.walk(t.Elem())
		if err != nil {
			return nil, err
		}
		return &Schema{Type: "object", AdditionalProperties: values}, nil
	case reflect.Struct:
		return g.walkStruct(t)
	case reflect.Interface:
		// No constraint can be derived; accept anything.
		return &Schema{}, nil
	default:
		return nil, fmt.Errorf("jsonschema: unsupported kind %s", t.Kind())
	}
}

func (g *generator) walkStruct(t reflect.Type) (*Schema, error) {
	if name, ok := g.expanding[t]; ok {
		// Recursion point: hand out a reference now, the definition is
		// registered when the outer expansion completes.
		g.defs[name] = nil
		return &Schema{Ref: "#/$defs/" + name}, nil
	}

	name := definitionName(t)
	if t.Name() != "" {
		g.expanding[t] = name
		defer delete(g.expanding, t)
	}

	schema := &Schema{
		Type:       "object",
		Properties: make(map[string]*Schema),
	}
	var required []string

	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		fieldName, omitEmpty, skip := jsonName(field)
		if skip {
			continue
		}

		fieldSchema, err := g.walk(field.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}

		requiredByTag := false
		if fieldSchema.Ref == "" {
			requiredByTag, err = applyTag(field, fieldSchema)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", field.Name, err)
			}
		}

		if requiredByTag || (field.Type.Kind() != reflect.Pointer && !omitEmpty) {
			required = append(required, fieldName)
		}

		schema.Properties[fieldName] = fieldSchema
	}

	schema.Required = required

	// A nil placeholder in defs means a nested field referenced this type
	// while it was being expanded.
	if _, referenced := g.defs[name]; referenced {
		g.defs[name] = schema
	}

	return schema, nil
}

// jsonName resolves a struct field's wire name from its json tag.
func jsonName(field reflect.StructField) (name string, omitEmpty, skip bool) {
	name = field.Name

	tag, ok := field.Tag.Lookup("json")
	if !ok {
		return name, false, false
	}

	if tag == "-" {
		return "", false, true
	}

	tagName, options, _ := strings.Cut(tag, ",")
	if tagName != "" {
		name = tagName
	}

	return name, strings.Contains(options, "omitempty"), false
}

// applyTag interprets the jsonschema struct tag. Supported entries:
// "description=...", repeated "enum=..." values (converted to the field's
// Go type), and a bare "required".
func applyTag(field reflect.StructField, schema *Schema) (requiredByTag bool, err error) {
	tag, ok := field.Tag.Lookup("jsonschema")
	if !ok {
		return false, nil
	}

	for _, entry := range strings.Split(tag, ",") {
		key, value, hasValue := strings.Cut(entry, "=")

		switch {
		case key == "required" && !hasValue:
			requiredByTag = true
		case key == "description" && hasValue:
			schema.Description = value
		case key == "enum" && hasValue:
			parsed, err := enumValue(field.Type, value)
			if err != nil {
				return false, err
			}
			schema.Enum = append(schema.Enum, parsed)
		}
	}

	return requiredByTag, nil
}

// enumValue converts a tag literal to the field's Go type so the emitted
// enum has the same JSON type as regular values of the field.
func enumValue(t reflect.Type, raw string) (any, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch t.Kind() {
	case reflect.String:
		return raw, nil
	case reflect.Bool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("enum value %q is not a bool: %w", raw, err)
		}
		return v, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("enum value %q is not an integer: %w", raw, err)
		}
		return v, nil
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("enum value %q is not a number: %w", raw, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("enum tag unsupported on %s fields", t.Kind())
	}
}

func definitionName(t reflect.Type) string {
	if t.Name() == "" {
		return "anonymous"
	}

	return strings.ToLower(t.Name())
}

// JSON renders the schema, optionally indented.
func (s *Schema) JSON(indent bool) (string, error) {
	var (
		raw []byte
		err error
	)

	if indent {
		raw, err = json.MarshalIndent(s, "", "  ")
	} else {
		raw, err = json.Marshal(s)
	}

	if err != nil {
		return "", fmt.Errorf("marshaling schema: %w", err)
	}

	return string(raw), nil
}

func (s *Schema) String() string {
	rendered, err := s.JSON(false)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}

	return rendered
}
