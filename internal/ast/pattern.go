package ast

import (
	"vex/internal/source"
)

type PatternKind uint8

const (
	PatIdent PatternKind = iota
	PatWildcard
	PatLiteral
	PatTuple
	PatStruct
	PatEnum
	PatArray
	PatOr
)

type PatField struct {
	Name    source.StringID
	Pattern PatternID
}

// Pattern is a single-arena node: the payload fields are inline because
// patterns are small and uniform compared to expressions.
type Pattern struct {
	Kind   PatternKind
	Span   source.Span
	Name   source.StringID
	Elems  []PatternID
	Fields []PatField
	Rest   bool
}

// Patterns manages allocation of match and let patterns.
type Patterns struct {
	Arena *Arena[Pattern]
}

func NewPatterns(capHint uint) *Patterns {
	if capHint == 0 {
		capHint = 1 << 6
	}
	return &Patterns{Arena: NewArena[Pattern](capHint)}
}

// Get returns the pattern with the given ID.
func (p *Patterns) Get(id PatternID) *Pattern {
	return p.Arena.Get(uint32(id))
}

// NewIdent creates a binding pattern.
func (p *Patterns) NewIdent(span source.Span, name source.StringID) PatternID {
	return PatternID(p.Arena.Allocate(Pattern{Kind: PatIdent, Span: span, Name: name}))
}

// NewWildcard creates a `_` pattern.
func (p *Patterns) NewWildcard(span source.Span) PatternID {
	return PatternID(p.Arena.Allocate(Pattern{Kind: PatWildcard, Span: span}))
}

// NewLiteral creates a literal pattern; the literal text is interned.
func (p *Patterns) NewLiteral(span source.Span, value source.StringID) PatternID {
	return PatternID(p.Arena.Allocate(Pattern{Kind: PatLiteral, Span: span, Name: value}))
}

// NewTuple creates a tuple destructuring pattern.
func (p *Patterns) NewTuple(span source.Span, elems []PatternID) PatternID {
	return PatternID(p.Arena.Allocate(Pattern{
		Kind:  PatTuple,
		Span:  span,
		Elems: append([]PatternID(nil), elems...),
	}))
}

// NewStruct creates a struct destructuring pattern. Rest marks `..`.
func (p *Patterns) NewStruct(span source.Span, name source.StringID, fields []PatField, rest bool) PatternID {
	return PatternID(p.Arena.Allocate(Pattern{
		Kind:   PatStruct,
		Span:   span,
		Name:   name,
		Fields: append([]PatField(nil), fields...),
		Rest:   rest,
	}))
}

// NewEnum creates an enum variant pattern with optional payload patterns.
func (p *Patterns) NewEnum(span source.Span, name source.StringID, elems []PatternID) PatternID {
	return PatternID(p.Arena.Allocate(Pattern{
		Kind:  PatEnum,
		Span:  span,
		Name:  name,
		Elems: append([]PatternID(nil), elems...),
	}))
}

// NewArray creates an array destructuring pattern. Rest marks `..`.
func (p *Patterns) NewArray(span source.Span, elems []PatternID, rest bool) PatternID {
	return PatternID(p.Arena.Allocate(Pattern{
		Kind:  PatArray,
		Span:  span,
		Elems: append([]PatternID(nil), elems...),
		Rest:  rest,
	}))
}

// NewOr creates an alternation pattern.
func (p *Patterns) NewOr(span source.Span, elems []PatternID) PatternID {
	return PatternID(p.Arena.Allocate(Pattern{
		Kind:  PatOr,
		Span:  span,
		Elems: append([]PatternID(nil), elems...),
	}))
}

// Bindings appends every identifier the pattern introduces to dst and
// returns the extended slice. Wildcards and literals bind nothing.
func (p *Patterns) Bindings(id PatternID, dst []source.StringID) []source.StringID {
	pat := p.Get(id)
	if pat == nil {
		return dst
	}
	switch pat.Kind {
	case PatIdent:
		dst = append(dst, pat.Name)
	case PatTuple, PatEnum, PatArray, PatOr:
		for _, elem := range pat.Elems {
			dst = p.Bindings(elem, dst)
		}
	case PatStruct:
		for _, field := range pat.Fields {
			if field.Pattern.IsValid() {
				dst = p.Bindings(field.Pattern, dst)
				continue
			}
			dst = append(dst, field.Name)
		}
	}
	return dst
}
