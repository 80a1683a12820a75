package ast

import (
	"vex/internal/source"
)

type TypeKind uint8

const (
	TypeNamed TypeKind = iota
	// TypeRef is `&T` or `&T!` depending on Mut.
	TypeRef
	// TypeRawPtr is `*T`, only usable behind unsafe.
	TypeRawPtr
	TypeUnit
)

// TypeData is a syntactic type annotation. The analyzers only need the
// shape of the annotation, not a resolved type.
type TypeData struct {
	Kind TypeKind
	Span source.Span
	Name source.StringID
	Elem TypeID
	Mut  bool
}

// Types manages allocation of type annotations.
type Types struct {
	Arena *Arena[TypeData]
}

func NewTypes(capHint uint) *Types {
	if capHint == 0 {
		capHint = 1 << 6
	}
	return &Types{Arena: NewArena[TypeData](capHint)}
}

// Get returns the type annotation with the given ID.
func (t *Types) Get(id TypeID) *TypeData {
	return t.Arena.Get(uint32(id))
}

// NewNamed creates a named type annotation.
func (t *Types) NewNamed(span source.Span, name source.StringID) TypeID {
	return TypeID(t.Arena.Allocate(TypeData{Kind: TypeNamed, Span: span, Name: name}))
}

// NewRef creates a reference type annotation.
func (t *Types) NewRef(span source.Span, elem TypeID, mut bool) TypeID {
	return TypeID(t.Arena.Allocate(TypeData{Kind: TypeRef, Span: span, Elem: elem, Mut: mut}))
}

// NewRawPtr creates a raw pointer type annotation.
func (t *Types) NewRawPtr(span source.Span, elem TypeID) TypeID {
	return TypeID(t.Arena.Allocate(TypeData{Kind: TypeRawPtr, Span: span, Elem: elem}))
}

// NewUnit creates the unit type annotation.
func (t *Types) NewUnit(span source.Span) TypeID {
	return TypeID(t.Arena.Allocate(TypeData{Kind: TypeUnit, Span: span}))
}

// IsRawPtr reports whether the annotation is a raw pointer type.
func (t *Types) IsRawPtr(id TypeID) bool {
	data := t.Get(id)
	return data != nil && data.Kind == TypeRawPtr
}
