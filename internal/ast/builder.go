package ast

import (
	"vex/internal/source"
)

type Hints struct{ Files, Items, Stmts, Exprs, Types, Patterns uint }

// Builder owns every arena of a compilation unit plus the interner its
// nodes reference.
type Builder struct {
	Files    *Files
	Items    *Items
	Stmts    *Stmts
	Exprs    *Exprs
	Types    *Types
	Patterns *Patterns
	Strings  *source.Interner
}

func NewBuilder(hints Hints, strings *source.Interner) *Builder {
	if hints.Files == 0 {
		hints.Files = 1 << 2
	}
	if hints.Items == 0 {
		hints.Items = 1 << 5
	}
	if hints.Stmts == 0 {
		hints.Stmts = 1 << 8
	}
	if hints.Exprs == 0 {
		hints.Exprs = 1 << 8
	}
	if hints.Types == 0 {
		hints.Types = 1 << 6
	}
	if hints.Patterns == 0 {
		hints.Patterns = 1 << 6
	}
	if strings == nil {
		strings = source.NewInterner()
	}
	return &Builder{
		Files:    NewFiles(hints.Files),
		Items:    NewItems(hints.Items),
		Stmts:    NewStmts(hints.Stmts),
		Exprs:    NewExprs(hints.Exprs),
		Types:    NewTypes(hints.Types),
		Patterns: NewPatterns(hints.Patterns),
		Strings:  strings,
	}
}

// Intern is shorthand for interning a name through the builder.
func (b *Builder) Intern(s string) source.StringID {
	return b.Strings.Intern(s)
}

// Name resolves an interned name back to its text.
func (b *Builder) Name(id source.StringID) string {
	return b.Strings.MustLookup(id)
}

func (b *Builder) PushItem(file FileID, item ItemID) {
	data := b.Files.Get(file)
	data.Items = append(data.Items, item)
}

func (b *Builder) PushImport(file FileID, imp Import) {
	data := b.Files.Get(file)
	data.Imports = append(data.Imports, imp)
}
