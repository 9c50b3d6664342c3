package convexgen

import (
	"strconv"
	"strings"
)

const (
	// DefaultMaxLineWidth is the target line width for smart splitting.
	DefaultMaxLineWidth = 100
)

// Format renders a Schema as schema.ts source. Parsing and compiling the result
// yields an equal Schema.
func Format(s *Schema) string {
	return FormatWithWidth(s, DefaultMaxLineWidth)
}

// FormatWithWidth renders a Schema with a specific target line width. Nested
// objects that fit within the width are kept on one line.
func FormatWithWidth(s *Schema, maxWidth int) string {
	var b strings.Builder

	f := &formatter{b: &b, indent: 0, maxWidth: maxWidth}
	f.formatSchema(s)

	return strings.TrimSpace(b.String()) + "\n"
}

type formatter struct {
	b        *strings.Builder
	indent   int
	maxWidth int
}

func (f *formatter) write(s string) {
	f.b.WriteString(s)
}

func (f *formatter) writeLine(s string) {
	f.writeIndent()
	f.write(s)
	f.write("\n")
}

func (f *formatter) writeIndent() {
	for range f.indent {
		f.write("  ")
	}
}

func (f *formatter) blankLine() {
	f.write("\n")
}

// wouldExceedWidth checks if adding content would exceed max width.
func (f *formatter) wouldExceedWidth(content string) bool {
	return f.indent*2+len(content) > f.maxWidth
}

func (f *formatter) formatSchema(s *Schema) {
	f.writeLine(`import { defineSchema, defineTable } from "convex/server";`)
	f.writeLine(`import { v } from "convex/values";`)
	f.blankLine()

	if s == nil || len(s.tables) == 0 {
		f.write("export default defineSchema({}")
		f.formatOptions(s)
		f.write(");\n")

		return
	}

	f.writeLine("export default defineSchema({")
	f.indent++

	for _, t := range s.tables {
		f.formatTable(t)
	}

	f.indent--
	f.write("}")
	f.formatOptions(s)
	f.write(");\n")
}

func (f *formatter) formatOptions(s *Schema) {
	if s != nil && !s.SchemaValidation {
		f.write(", { " + OptionSchemaValidation + ": false }")
	}
}

func (f *formatter) formatTable(t *Table) {
	f.writeIndent()
	f.write(f.key(t.Name) + ": defineTable({")

	if len(t.Fields) == 0 {
		f.write("})")
	} else {
		f.write("\n")
		f.indent++

		for _, field := range t.Fields {
			f.writeLine(f.formatField(field) + ",")
		}

		f.indent--
		f.writeIndent()
		f.write("})")
	}

	for _, idx := range t.Indexes {
		f.write(f.formatIndex(idx))
	}

	f.write(",\n")
}

func (f *formatter) formatIndex(idx *Index) string {
	fields := make([]string, len(idx.Fields))
	for i, name := range idx.Fields {
		fields[i] = f.quotedString(name)
	}

	return ".index(" + f.quotedString(idx.Name) + ", [" + strings.Join(fields, ", ") + "])"
}

func (f *formatter) formatField(field *Field) string {
	value := f.formatType(field.Type)
	if field.Optional {
		value = "v.optional(" + value + ")"
	}

	return f.key(field.Name) + ": " + value
}

func (f *formatter) formatType(t *Type) string {
	switch t.Kind {
	case KindID:
		return "v.id(" + f.quotedString(t.Table) + ")"
	case KindArray:
		return "v.array(" + f.formatType(t.Elem) + ")"
	case KindObject:
		return f.formatObject(t)
	default:
		return "v." + string(t.Kind) + "()"
	}
}

// formatObject renders v.object on one line when it fits, otherwise one field
// per line at the next indent level.
func (f *formatter) formatObject(t *Type) string {
	if len(t.Fields) == 0 {
		return "v.object({})"
	}

	parts := make([]string, len(t.Fields))
	for i, field := range t.Fields {
		parts[i] = f.formatField(field)
	}

	single := "v.object({ " + strings.Join(parts, ", ") + " })"
	if !f.wouldExceedWidth(single) && !strings.Contains(single, "\n") {
		return single
	}

	var b strings.Builder

	f.indent++
	b.WriteString("v.object({\n")

	for _, field := range t.Fields {
		b.WriteString(strings.Repeat("  ", f.indent))
		b.WriteString(f.formatField(field))
		b.WriteString(",\n")
	}

	f.indent--
	b.WriteString(strings.Repeat("  ", f.indent))
	b.WriteString("})")

	return b.String()
}

func (f *formatter) key(name string) string {
	if isIdentifier(name) {
		return name
	}

	return f.quotedString(name)
}

func (f *formatter) quotedString(s string) string {
	return strconv.Quote(s)
}
