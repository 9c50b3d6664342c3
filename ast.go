// Package convexgen models the schema and function declarations of a Convex-style
// document platform: it parses schema.ts and function modules, builds a validated
// Schema, validates documents and arguments against it, and feeds code generators.
package convexgen

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// =============================================================================
// Common embedded types for AST nodes
// =============================================================================

// NodeMeta contains position and token information common to all AST nodes.
// Participle automatically populates these fields during parsing.
type NodeMeta struct {
	Pos    lexer.Position `parser:""`
	EndPos lexer.Position `parser:""`
	Tokens []lexer.Token  `parser:""`
}

// Span returns the source span of this node.
func (n *NodeMeta) Span() Span { return Span{Start: n.Pos, End: n.EndPos} }

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
}

// =============================================================================
// Top-level AST nodes
// =============================================================================

// File is a parsed schema or function module file.
type File struct {
	NodeMeta

	Statements []*Statement `parser:"@@*"`
}

// Statement is a single top-level statement. Only imports and exports are
// meaningful to the declaration model; anything else, such as a router,
// a helper function or a plain constant, is kept as an Opaque run.
type Statement struct {
	NodeMeta

	Import *Import `parser:"  @@"`
	Export *Export `parser:"| @@"`
	Other  *Opaque `parser:"| @@"`
}

// Import represents an import statement.
// Examples:
//
//	import { v } from 'convex/values';
//	import schema from './schema';
type Import struct {
	NodeMeta

	Names   []string `parser:"'import' ( '{' (@Ident Comma?)* '}'"`
	Default *string  `parser:"         | @Ident )"`
	From    string   `parser:"'from' @String Semi?"`
}

// Export is either the default export (a schema or a function registration)
// or a named const export holding a function registration. Other exports,
// `export default http` or `export const LIMIT = 5` among them, land in
// Default or Other.
type Export struct {
	NodeMeta

	Schema       *SchemaCall   `parser:"'export' ( 'default' ( @@"`
	Registration *Registration `parser:"                     | (?= Ident '(' '{' ('args' | 'returns' | 'handler' | '}')) @@"`
	Default      *Opaque       `parser:"                     | @@ )"`
	Const        *ConstDecl    `parser:"         | 'const' (?= Ident '=' Ident '(' '{' ('args' | 'returns' | 'handler' | '}')) @@"`
	Other        *Opaque       `parser:"         | @@ ) Semi?"`
}

// ConstDecl is `name = registration`.
type ConstDecl struct {
	NodeMeta

	Name         string        `parser:"@Ident '='"`
	Registration *Registration `parser:"@@"`
}

// =============================================================================
// Schema declarations
// =============================================================================

// SchemaCall is `defineSchema({ ...tables }, { ...options })`.
type SchemaCall struct {
	NodeMeta

	Tables  []*TableDecl   `parser:"'defineSchema' '(' '{' (@@ Comma?)* '}'"`
	Options *SchemaOptions `parser:"(Comma @@?)? ')'"`
}

// SchemaOptions is the optional second argument of defineSchema.
type SchemaOptions struct {
	NodeMeta

	Entries []*SchemaOption `parser:"'{' (@@ Comma?)* '}' Comma?"`
}

// SchemaOption is a single boolean option such as `schemaValidation: false`.
type SchemaOption struct {
	NodeMeta

	Name  string `parser:"@(Ident | String) Colon"`
	Value string `parser:"@('true' | 'false')"`
}

// TableDecl is `name: defineTable({ ...fields }).index(...)...`.
type TableDecl struct {
	NodeMeta

	Name    string         `parser:"@(Ident | String) Colon"`
	Fields  *ObjectLiteral `parser:"'defineTable' '(' @@ Comma? ')'"`
	Indexes []*IndexDecl   `parser:"@@*"`
}

// IndexDecl is `.index("by_email", ["email"])`.
type IndexDecl struct {
	NodeMeta

	Name   string   `parser:"Dot 'index' '(' @String Comma"`
	Fields []string `parser:"'[' (@String Comma?)* ']' Comma? ')'"`
}

// ObjectLiteral is a `{ name: validator, ... }` map of validators.
type ObjectLiteral struct {
	NodeMeta

	Properties []*Property `parser:"'{' (@@ Comma?)* '}'"`
}

// Property is a single `name: validator` entry.
type Property struct {
	NodeMeta

	Name  string     `parser:"@(Ident | String) Colon"`
	Value *Validator `parser:"@@"`
}

// Validator is a `v.kind(...)` call. Depending on Kind, exactly one of Table,
// Object or Elem is set.
// Examples:
//
//	v.string()
//	v.id("posts")
//	v.array(v.number())
//	v.optional(v.object({ foo: v.string() }))
type Validator struct {
	NodeMeta

	Namespace string         `parser:"@Ident Dot"`
	Kind      string         `parser:"@Ident '('"`
	Table     *string        `parser:"( @String"`
	Object    *ObjectLiteral `parser:"| @@"`
	Elem      *Validator     `parser:"| @@ )? Comma? ')'"`
}

// =============================================================================
// Function registrations
// =============================================================================

// Registration is `query({ args: {...}, returns: v.x(), handler: ... })`.
type Registration struct {
	NodeMeta

	Kind  string              `parser:"@Ident '(' '{'"`
	Props []*RegistrationProp `parser:"(@@ Comma?)* '}' Comma? ')'"`
}

// RegistrationProp is one property of a registration object.
type RegistrationProp struct {
	NodeMeta

	Args    *ObjectLiteral `parser:"  'args' Colon @@"`
	Returns *Validator     `parser:"| 'returns' Colon @@"`
	Handler *Handler       `parser:"| 'handler' Colon @@"`
}

// Handler is an opaque handler expression, captured as balanced token groups.
// Text holds the original source after parsing.
type Handler struct {
	NodeMeta

	Items []*HandlerItem `parser:"@@+"`
	Text  string
}

// HandlerItem is a token or a bracketed group at the top level of a handler.
// Top-level commas end the handler.
type HandlerItem struct {
	NodeMeta

	Group *Group  `parser:"  @@"`
	Token *string `parser:"| @(Ident | String | Template | Number | Op | Dot | Colon | Semi)"`
}

// Group is a balanced (), [] or {} group inside a handler body.
type Group struct {
	NodeMeta

	Paren   *GroupBody `parser:"  '(' @@ ')'"`
	Bracket *GroupBody `parser:"| '[' @@ ']'"`
	Brace   *GroupBody `parser:"| '{' @@ '}'"`
}

// GroupBody is the content of a balanced group.
type GroupBody struct {
	NodeMeta

	Items []*GroupItem `parser:"@@*"`
}

// GroupItem is a token or nested group inside a balanced group; commas are allowed.
type GroupItem struct {
	NodeMeta

	Group *Group  `parser:"  @@"`
	Token *string `parser:"| @(Ident | String | Template | Number | Op | Dot | Colon | Semi | Comma)"`
}

// Opaque is a run of tokens and balanced groups that the declaration model
// does not interpret. It ends before the next top-level export or import
// declaration.
type Opaque struct {
	NodeMeta

	Items []*OpaqueItem `parser:"@@+"`
}

// OpaqueItem is a token or a balanced group inside an Opaque run.
type OpaqueItem struct {
	NodeMeta

	Group *Group  `parser:"  @@"`
	Token *string `parser:"| (?! 'export' | 'import' (Ident | '{')) @(Ident | String | Template | Number | Op | Dot | Colon | Semi | Comma)"`
}

// =============================================================================
// Accessors
// =============================================================================

// Schema returns the defineSchema call of the file, or nil for function modules.
func (f *File) Schema() *SchemaCall {
	if f == nil {
		return nil
	}

	for _, st := range f.Statements {
		if st.Export != nil && st.Export.Schema != nil {
			return st.Export.Schema
		}
	}

	return nil
}

// NamedRegistration pairs an exported registration with its export name.
type NamedRegistration struct {
	Name         string
	Registration *Registration
}

// Registrations returns all exported function registrations in declaration order.
// The default export is named "default".
func (f *File) Registrations() []NamedRegistration {
	if f == nil {
		return nil
	}

	var out []NamedRegistration

	for _, st := range f.Statements {
		if st.Export == nil {
			continue
		}

		switch {
		case st.Export.Const != nil:
			out = append(out, NamedRegistration{Name: st.Export.Const.Name, Registration: st.Export.Const.Registration})
		case st.Export.Registration != nil:
			out = append(out, NamedRegistration{Name: "default", Registration: st.Export.Registration})
		}
	}

	return out
}

// Option returns the value of a schema option and whether it was set.
func (o *SchemaOptions) Option(name string) (bool, bool) {
	if o == nil {
		return false, false
	}

	for _, e := range o.Entries {
		if e.Name == name {
			return e.Value == "true", true
		}
	}

	return false, false
}

// Args returns the args object of the registration, or nil.
func (r *Registration) Args() *ObjectLiteral {
	for _, p := range r.Props {
		if p.Args != nil {
			return p.Args
		}
	}

	return nil
}

// Returns returns the returns validator of the registration, or nil.
func (r *Registration) Returns() *Validator {
	for _, p := range r.Props {
		if p.Returns != nil {
			return p.Returns
		}
	}

	return nil
}

// Handler returns the handler of the registration, or nil.
func (r *Registration) Handler() *Handler {
	for _, p := range r.Props {
		if p.Handler != nil {
			return p.Handler
		}
	}

	return nil
}
