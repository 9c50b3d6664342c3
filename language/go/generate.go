package golang

import (
	"bytes"
	"cmp"
	"fmt"
	"go/format"
	"slices"
	"strings"

	"github.com/rlch/convexgen"
)

const generatedHeader = "// Code generated by convexgen. DO NOT EDIT.\n"

// generator holds state during code generation. Both files share one package
// scope, so every top-level name goes through names.
type generator struct {
	pkg    string
	schema *convexgen.Schema
	funcs  []*convexgen.Function

	names    *namer
	idTypes  map[string]string
	docTypes map[string]string

	// queue holds struct declarations discovered while rendering types.
	queue []*structDecl
}

type structDecl struct {
	name   string
	doc    string
	fields []*convexgen.Field
	// table is set for table documents, which carry the system fields.
	table string
	path  string
}

func newGenerator(pkg string, schema *convexgen.Schema, funcs []*convexgen.Function) *generator {
	g := &generator{
		pkg:      pkg,
		schema:   schema,
		funcs:    funcs,
		names:    newNamer(),
		idTypes:  make(map[string]string),
		docTypes: make(map[string]string),
	}

	for _, t := range schema.Tables() {
		base := ExportedName(t.Name)
		g.idTypes[t.Name] = g.names.unique(base + "ID")
		g.docTypes[t.Name] = g.names.unique(base)
	}

	return g
}

// Generate produces all output files.
func (g *generator) Generate() (map[string][]byte, error) {
	files := make(map[string][]byte)

	src, err := gofmt(SchemaFile, g.schemaFile())
	if err != nil {
		return nil, err
	}

	files[SchemaFile] = src

	if len(g.funcs) == 0 {
		return files, nil
	}

	src, err = gofmt(FunctionsFile, g.functionsFile())
	if err != nil {
		return nil, err
	}

	files[FunctionsFile] = src

	return files, nil
}

func gofmt(name string, src []byte) ([]byte, error) {
	out, err := format.Source(src)
	if err != nil {
		return nil, fmt.Errorf("formatting %s: %w", name, err)
	}

	return out, nil
}

func (g *generator) header(b *bytes.Buffer) {
	b.WriteString(generatedHeader)
	fmt.Fprintf(b, "\npackage %s\n", g.pkg)
}

func (g *generator) schemaFile() []byte {
	var b bytes.Buffer

	g.header(&b)

	tables := g.schema.Tables()
	if len(tables) > 0 {
		b.WriteString("\n// Table names.\nconst (\n")

		for _, t := range tables {
			fmt.Fprintf(&b, "\t%s = %q\n", g.names.unique("Table"+ExportedName(t.Name)), t.Name)
		}

		b.WriteString(")\n")
	}

	for _, t := range tables {
		idType := g.idTypes[t.Name]

		fmt.Fprintf(&b, "\n// %s identifies a document in the %q table.\ntype %s string\n", idType, t.Name, idType)

		g.writeStruct(&b, &structDecl{
			name:   g.docTypes[t.Name],
			doc:    fmt.Sprintf("%s is a document in the %q table.", g.docTypes[t.Name], t.Name),
			fields: t.Fields,
			table:  t.Name,
			path:   t.Name,
		})
		g.flush(&b)

		if len(t.Indexes) > 0 {
			fmt.Fprintf(&b, "\n// Indexes of the %q table.\nconst (\n", t.Name)

			for _, idx := range t.Indexes {
				name := g.names.unique("Index" + ExportedName(t.Name) + ExportedName(idx.Name))
				fmt.Fprintf(&b, "\t%s = %q // %s\n", name, idx.Name, strings.Join(idx.Fields, ", "))
			}

			b.WriteString(")\n")
		}
	}

	return b.Bytes()
}

func (g *generator) functionsFile() []byte {
	var b bytes.Buffer

	g.header(&b)

	funcs := slices.Clone(g.funcs)
	slices.SortFunc(funcs, func(a, b *convexgen.Function) int {
		return cmp.Or(cmp.Compare(a.Module, b.Module), cmp.Compare(a.Name, b.Name))
	})

	for start := 0; start < len(funcs); {
		end := start + 1
		for end < len(funcs) && funcs[end].Module == funcs[start].Module {
			end++
		}

		g.writeModule(&b, funcs[start:end])
		start = end
	}

	return b.Bytes()
}

func (g *generator) writeModule(b *bytes.Buffer, funcs []*convexgen.Function) {
	module := funcs[0].Module
	base := ExportedName(module)
	typeName := g.names.unique(base + "Function")

	consts := make([]string, len(funcs))
	for i, fn := range funcs {
		consts[i] = g.names.unique(base + ExportedName(fn.Name))
	}

	fmt.Fprintf(b, "\n// %s is a function of the %q module.\ntype %s string\n", typeName, module, typeName)

	fmt.Fprintf(b, "\n// Functions of the %q module.\nconst (\n", module)

	for i, fn := range funcs {
		fmt.Fprintf(b, "\t%s %s = %q\n", consts[i], typeName, fn.Path())
	}

	b.WriteString(")\n")

	fmt.Fprintf(b, "\n// String returns the function path.\nfunc (f %s) String() string {\n\treturn string(f)\n}\n", typeName)

	fmt.Fprintf(b, "\n// Kind returns the function kind.\nfunc (f %s) Kind() string {\n\tswitch f {\n", typeName)

	for i, fn := range funcs {
		fmt.Fprintf(b, "\tcase %s:\n\t\treturn %q\n", consts[i], string(fn.Kind))
	}

	b.WriteString("\t}\n\n\treturn \"\"\n}\n")

	parse := g.names.unique("Parse" + base)

	fmt.Fprintf(b, "\n// %s returns the function of the %q module with the given path.\n", parse, module)
	fmt.Fprintf(b, "func %s(s string) (%s, bool) {\n\tswitch f := %s(s); f {\n", parse, typeName, typeName)
	fmt.Fprintf(b, "\tcase %s:\n\t\treturn f, true\n\t}\n\n\treturn \"\", false\n}\n", strings.Join(consts, ", "))

	for i, fn := range funcs {
		g.writeFunction(b, fn, consts[i])
	}
}

func (g *generator) writeFunction(b *bytes.Buffer, fn *convexgen.Function, base string) {
	if fn.Args != nil {
		name := g.names.unique(base + "Args")

		g.writeStruct(b, &structDecl{
			name:   name,
			doc:    fmt.Sprintf("%s are the arguments of %s.", name, fn.Path()),
			fields: fn.Args,
			path:   fn.Path(),
		})
	}

	if ret := fn.Returns; ret != nil {
		hint := base + "Result"

		if ret.Kind == convexgen.KindObject {
			g.goType(ret, hint, fn.Path()+".returns")
		} else {
			name := g.names.unique(hint)
			typ := g.goType(ret, hint, fn.Path()+".returns")
			fmt.Fprintf(b, "\n// %s is the return value of %s.\ntype %s = %s\n", name, fn.Path(), name, typ)
		}
	}

	g.flush(b)
}

func (g *generator) writeStruct(b *bytes.Buffer, decl *structDecl) {
	fields := newNamer()

	if decl.table == "" && len(decl.fields) == 0 {
		fmt.Fprintf(b, "\n// %s\ntype %s struct{}\n", decl.doc, decl.name)

		return
	}

	fmt.Fprintf(b, "\n// %s\ntype %s struct {\n", decl.doc, decl.name)

	if decl.table != "" {
		fields.unique("ID")
		fields.unique("CreationTime")

		fmt.Fprintf(b, "\tID %s `json:\"%s\"`\n", g.idTypes[decl.table], convexgen.FieldID)
		fmt.Fprintf(b, "\tCreationTime float64 `json:\"%s\"`\n", convexgen.FieldCreationTime)
	}

	for _, f := range decl.fields {
		goName := ExportedName(f.Name)
		typ := g.fieldType(f, decl.name+goName, decl.path+"."+f.Name)

		tag := f.Name
		if f.Optional {
			tag += ",omitempty"
		}

		fmt.Fprintf(b, "\t%s %s `json:\"%s\"`\n", fields.unique(goName), typ, tag)
	}

	b.WriteString("}\n")
}

// flush writes the struct declarations queued while rendering field types.
func (g *generator) flush(b *bytes.Buffer) {
	for len(g.queue) > 0 {
		decl := g.queue[0]
		g.queue = g.queue[1:]

		g.writeStruct(b, decl)
	}
}

// fieldType returns the Go type of a field. Optional scalars, IDs and objects
// become pointers; slices and any are already nillable.
func (g *generator) fieldType(f *convexgen.Field, hint, path string) string {
	typ := g.goType(f.Type, hint, path)

	if f.Optional {
		switch f.Type.Kind {
		case convexgen.KindString, convexgen.KindNumber, convexgen.KindBoolean,
			convexgen.KindID, convexgen.KindObject:
			return "*" + typ
		}
	}

	return typ
}

// goType returns the Go type for t. Objects are declared as named structs;
// hint names them and path documents them.
func (g *generator) goType(t *convexgen.Type, hint, path string) string {
	switch t.Kind {
	case convexgen.KindString:
		return "string"
	case convexgen.KindNumber:
		return "float64"
	case convexgen.KindBoolean:
		return "bool"
	case convexgen.KindBytes:
		return "[]byte"
	case convexgen.KindID:
		if name, ok := g.idTypes[t.Table]; ok {
			return name
		}

		return "string"
	case convexgen.KindArray:
		return "[]" + g.goType(t.Elem, hint+"Item", path+"[]")
	case convexgen.KindObject:
		name := g.names.unique(hint)
		g.queue = append(g.queue, &structDecl{
			name:   name,
			doc:    fmt.Sprintf("%s is the value of %s.", name, path),
			fields: t.Fields,
			path:   path,
		})

		return name
	default:
		// null
		return "any"
	}
}
