package analysis

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rlch/convexgen"
)

// The YAML interchange form of a Schema keeps declaration order:
//
//	schemaValidation: false        # omitted when true
//	tables:
//	  users:
//	    fields:
//	      name: string
//	      age: number?             # trailing ? marks an optional field
//	      profile:                 # object types use the long form
//	        type: object
//	        optional: true
//	        fields:
//	          bio: string
//	    indexes:
//	      by_name: [name]
//
// Non-object types use the compact form of convexgen.ParseTypeString.

// ErrInvalidSchemaYAML is returned when a schema YAML document is malformed.
var ErrInvalidSchemaYAML = errors.New("invalid schema yaml")

// LoadSchema loads a Schema from a YAML file.
// The path can be absolute or relative to baseDir.
func LoadSchema(path, baseDir string) (*convexgen.Schema, error) {
	if path == "" {
		return nil, nil
	}

	// Resolve relative paths
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}

	schema, err := ReadSchema(data)
	if err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}

	return schema, nil
}

// ReadSchema decodes a Schema from YAML and validates it with a SchemaBuilder.
func ReadSchema(data []byte) (*convexgen.Schema, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	b := convexgen.NewSchemaBuilder()

	if len(doc.Content) == 0 {
		return b.Build()
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, nodeError(root, "expected a mapping")
	}

	for key, value := range pairs(root) {
		switch key.Value {
		case "schemaValidation":
			enabled, err := strconv.ParseBool(value.Value)
			if err != nil {
				return nil, nodeError(value, "schemaValidation must be a boolean")
			}

			b.SetSchemaValidation(enabled)
		case "tables":
			if err := readTables(b, value); err != nil {
				return nil, err
			}
		default:
			return nil, nodeError(key, "unknown key %q", key.Value)
		}
	}

	return b.Build()
}

func readTables(b *convexgen.SchemaBuilder, node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return nodeError(node, "tables must be a mapping")
	}

	for name, body := range pairs(node) {
		var (
			fields  []*convexgen.Field
			indexes *yaml.Node
		)

		if body.Kind == yaml.MappingNode {
			for key, value := range pairs(body) {
				switch key.Value {
				case "fields":
					var err error
					if fields, err = readFields(value, name.Value); err != nil {
						return err
					}
				case "indexes":
					indexes = value
				default:
					return nodeError(key, "unknown table key %q", key.Value)
				}
			}
		} else if body.Tag != "!!null" {
			return nodeError(body, "table %q must be a mapping", name.Value)
		}

		table, err := b.DefineTable(name.Value, fields...)
		if err != nil {
			return err
		}

		if indexes == nil {
			continue
		}

		if indexes.Kind != yaml.MappingNode {
			return nodeError(indexes, "indexes must be a mapping")
		}

		for idxName, list := range pairs(indexes) {
			var paths []string
			if err := list.Decode(&paths); err != nil {
				return nodeError(list, "index %q must be a list of field names", idxName.Value)
			}

			if _, err := table.DefineIndex(idxName.Value, paths...); err != nil {
				return err
			}
		}
	}

	return nil
}

func readFields(node *yaml.Node, path string) ([]*convexgen.Field, error) {
	if node.Kind != yaml.MappingNode {
		if node.Tag == "!!null" {
			return nil, nil
		}

		return nil, nodeError(node, "%s: fields must be a mapping", path)
	}

	var fields []*convexgen.Field

	for key, value := range pairs(node) {
		typ, optional, err := readType(value, path+"."+key.Value)
		if err != nil {
			return nil, err
		}

		fields = append(fields, &convexgen.Field{Name: key.Value, Type: typ, Optional: optional})
	}

	return fields, nil
}

func readType(node *yaml.Node, path string) (*convexgen.Type, bool, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		s, optional := strings.CutSuffix(strings.TrimSpace(node.Value), "?")

		typ, err := convexgen.ParseTypeString(s)
		if err != nil {
			return nil, false, nodeError(node, "%s: %v", path, err)
		}

		return typ, optional, nil
	case yaml.MappingNode:
		var (
			kind     string
			optional bool
			fields   *yaml.Node
			elem     *yaml.Node
		)

		for key, value := range pairs(node) {
			switch key.Value {
			case "type":
				kind = value.Value
			case "optional":
				if err := value.Decode(&optional); err != nil {
					return nil, false, nodeError(value, "%s: optional must be a boolean", path)
				}
			case "fields":
				fields = value
			case "elem":
				elem = value
			default:
				return nil, false, nodeError(key, "%s: unknown type key %q", path, key.Value)
			}
		}

		if kind == "" && fields != nil {
			kind = string(convexgen.KindObject)
		}

		switch convexgen.Kind(kind) {
		case convexgen.KindObject:
			var sub []*convexgen.Field

			if fields != nil {
				var err error
				if sub, err = readFields(fields, path); err != nil {
					return nil, false, err
				}
			}

			return convexgen.Object(sub...), optional, nil
		case convexgen.KindArray:
			if elem == nil {
				return nil, false, nodeError(node, "%s: array needs elem", path)
			}

			inner, innerOptional, err := readType(elem, path+"[]")
			if err != nil {
				return nil, false, err
			}

			if innerOptional {
				return nil, false, fmt.Errorf("%s[]: %w", path, convexgen.ErrMisplacedOptional)
			}

			return convexgen.Array(inner), optional, nil
		default:
			typ, err := convexgen.ParseTypeString(kind)
			if err != nil {
				return nil, false, nodeError(node, "%s: %v", path, err)
			}

			return typ, optional, nil
		}
	default:
		return nil, false, nodeError(node, "%s: expected a type", path)
	}
}

// pairs iterates over the key/value nodes of a mapping in document order.
func pairs(node *yaml.Node) func(yield func(key, value *yaml.Node) bool) {
	return func(yield func(key, value *yaml.Node) bool) {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if !yield(node.Content[i], node.Content[i+1]) {
				return
			}
		}
	}
}

func nodeError(node *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrInvalidSchemaYAML, node.Line, fmt.Sprintf(format, args...))
}

// WriteSchema writes a Schema as YAML to the given writer, in declaration order.
func WriteSchema(w io.Writer, schema *convexgen.Schema) (err error) {
	if _, err := fmt.Fprintln(w, "# Generated by convexgen from schema.ts."); err != nil {
		return err
	}

	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}

	root := mapping()

	if !schema.SchemaValidation {
		root.Content = append(root.Content, scalar("schemaValidation"), boolScalar(false))
	}

	tables := mapping()

	for _, t := range schema.Tables() {
		body := mapping()

		if len(t.Fields) > 0 {
			body.Content = append(body.Content, scalar("fields"), fieldsNode(t.Fields))
		}

		if len(t.Indexes) > 0 {
			indexes := mapping()

			for _, idx := range t.Indexes {
				list := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
				for _, f := range idx.Fields {
					list.Content = append(list.Content, scalar(f))
				}

				indexes.Content = append(indexes.Content, scalar(idx.Name), list)
			}

			body.Content = append(body.Content, scalar("indexes"), indexes)
		}

		tables.Content = append(tables.Content, scalar(t.Name), body)
	}

	root.Content = append(root.Content, scalar("tables"), tables)

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	defer func() {
		if cerr := encoder.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return encoder.Encode(root)
}

func fieldsNode(fields []*convexgen.Field) *yaml.Node {
	node := mapping()
	for _, f := range fields {
		node.Content = append(node.Content, scalar(f.Name), typeNode(f.Type, f.Optional))
	}

	return node
}

func typeNode(t *convexgen.Type, optional bool) *yaml.Node {
	if !containsObject(t) {
		s := t.String()
		if optional {
			s += "?"
		}

		return scalar(s)
	}

	node := mapping()
	node.Content = append(node.Content, scalar("type"), scalar(string(t.Kind)))

	if optional {
		node.Content = append(node.Content, scalar("optional"), boolScalar(true))
	}

	switch t.Kind {
	case convexgen.KindObject:
		node.Content = append(node.Content, scalar("fields"), fieldsNode(t.Fields))
	case convexgen.KindArray:
		node.Content = append(node.Content, scalar("elem"), typeNode(t.Elem, false))
	}

	return node
}

func containsObject(t *convexgen.Type) bool {
	switch t.Kind {
	case convexgen.KindObject:
		return true
	case convexgen.KindArray:
		return containsObject(t.Elem)
	default:
		return false
	}
}

func mapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func boolScalar(value bool) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(value)}
}
