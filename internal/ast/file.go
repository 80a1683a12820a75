package ast

import (
	"vex/internal/source"
)

type ImportKind uint8

const (
	// ImportNamed pulls specific names into scope: `import mod::{a, b}`.
	ImportNamed ImportKind = iota
	// ImportNamespace binds the module under an alias: `import mod as m`.
	ImportNamespace
	// ImportModule binds the module under its own name: `import mod`.
	ImportModule
)

type Import struct {
	Kind   ImportKind
	Span   source.Span
	Module source.StringID
	Alias  source.StringID
	Names  []source.StringID
}

// Bound returns the names the import introduces at module scope.
func (im *Import) Bound(dst []source.StringID) []source.StringID {
	switch im.Kind {
	case ImportNamed:
		dst = append(dst, im.Names...)
	case ImportNamespace:
		dst = append(dst, im.Alias)
	case ImportModule:
		dst = append(dst, im.Module)
	}
	return dst
}

// FileData is the root of a single compilation unit.
type FileData struct {
	Span    source.Span
	Source  source.FileID
	Imports []Import
	Items   []ItemID
}

// Files manages allocation of compilation unit roots.
type Files struct {
	Arena *Arena[FileData]
}

func NewFiles(capHint uint) *Files {
	if capHint == 0 {
		capHint = 1 << 2
	}
	return &Files{Arena: NewArena[FileData](capHint)}
}

// Get returns the file with the given ID.
func (f *Files) Get(id FileID) *FileData {
	return f.Arena.Get(uint32(id))
}

// New creates a compilation unit root.
func (f *Files) New(span source.Span, src source.FileID, imports []Import, items []ItemID) FileID {
	return FileID(f.Arena.Allocate(FileData{
		Span:    span,
		Source:  src,
		Imports: append([]Import(nil), imports...),
		Items:   append([]ItemID(nil), items...),
	}))
}
