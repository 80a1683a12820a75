package ast

import (
	"errors"
	"fmt"
	"io"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"

	"vex/internal/source"
)

// unitMagic and unitSchemaVersion gate the on-disk unit format.
// Increment the schema version when any Wire struct changes shape.
const (
	unitMagic                = "VEXAST"
	unitSchemaVersion uint16 = 1
)

var (
	ErrBadMagic    = errors.New("ast: not a vex unit file")
	ErrBadSchema   = errors.New("ast: unsupported unit schema version")
	ErrCorruptUnit = errors.New("ast: corrupt unit")
)

// WireUnit is the serialized form of one compilation unit. Arena slices
// are written in allocation order so decoding reproduces every ID.
type WireUnit struct {
	Magic  string
	Schema uint16

	Root    uint32
	Strings []string

	Files []FileData

	Items     []Item
	Functions []ItemFnData
	Consts    []ItemConstData
	Structs   []ItemStructData
	Enums     []ItemEnumData
	ExternFns []ItemExternFnData

	Stmts       []Stmt
	Lets        []StmtLetData
	Assigns     []StmtAssignData
	Returns     []StmtReturnData
	ExprStmts   []StmtExprData
	Ifs         []StmtIfData
	Whiles      []StmtWhileData
	Fors        []StmtForData
	ForIns      []StmtForInData
	StmtBlocks  []StmtBlockData
	StmtUnsafes []StmtUnsafeData

	Exprs       []Expr
	Idents      []ExprIdentData
	Literals    []ExprLiteralData
	Unaries     []ExprUnaryData
	Binaries    []ExprBinaryData
	Calls       []ExprCallData
	Members     []ExprMemberData
	Indices     []ExprIndexData
	Arrays      []ExprArrayData
	Tuples      []ExprTupleData
	ExprStructs []ExprStructData
	Matches     []ExprMatchData
	ExprBlocks  []ExprBlockData
	Closures    []ExprClosureData
	Casts       []ExprCastData

	Types    []TypeData
	Patterns []Pattern
}

// Encode writes the unit rooted at root to w.
func Encode(w io.Writer, b *Builder, root FileID) error {
	unit := &WireUnit{
		Magic:  unitMagic,
		Schema: unitSchemaVersion,

		Root:    uint32(root),
		Strings: b.Strings.Snapshot(),

		Files: b.Files.Arena.Slice(),

		Items:     b.Items.Arena.Slice(),
		Functions: b.Items.Functions.Slice(),
		Consts:    b.Items.Consts.Slice(),
		Structs:   b.Items.Structs.Slice(),
		Enums:     b.Items.Enums.Slice(),
		ExternFns: b.Items.ExternFns.Slice(),

		Stmts:       b.Stmts.Arena.Slice(),
		Lets:        b.Stmts.Lets.Slice(),
		Assigns:     b.Stmts.Assigns.Slice(),
		Returns:     b.Stmts.Returns.Slice(),
		ExprStmts:   b.Stmts.Exprs.Slice(),
		Ifs:         b.Stmts.Ifs.Slice(),
		Whiles:      b.Stmts.Whiles.Slice(),
		Fors:        b.Stmts.Fors.Slice(),
		ForIns:      b.Stmts.ForIns.Slice(),
		StmtBlocks:  b.Stmts.Blocks.Slice(),
		StmtUnsafes: b.Stmts.Unsafes.Slice(),

		Exprs:       b.Exprs.Arena.Slice(),
		Idents:      b.Exprs.Idents.Slice(),
		Literals:    b.Exprs.Literals.Slice(),
		Unaries:     b.Exprs.Unaries.Slice(),
		Binaries:    b.Exprs.Binaries.Slice(),
		Calls:       b.Exprs.Calls.Slice(),
		Members:     b.Exprs.Members.Slice(),
		Indices:     b.Exprs.Indices.Slice(),
		Arrays:      b.Exprs.Arrays.Slice(),
		Tuples:      b.Exprs.Tuples.Slice(),
		ExprStructs: b.Exprs.Structs.Slice(),
		Matches:     b.Exprs.Matches.Slice(),
		ExprBlocks:  b.Exprs.Blocks.Slice(),
		Closures:    b.Exprs.Closures.Slice(),
		Casts:       b.Exprs.Casts.Slice(),

		Types:    b.Types.Arena.Slice(),
		Patterns: b.Patterns.Arena.Slice(),
	}
	return msgpack.NewEncoder(w).Encode(unit)
}

// Decode reads a unit from r and rebuilds the builder that produced it.
func Decode(r io.Reader) (*Builder, FileID, error) {
	var unit WireUnit
	if err := msgpack.NewDecoder(r).Decode(&unit); err != nil {
		return nil, NoFileID, fmt.Errorf("%w: %v", ErrCorruptUnit, err)
	}
	if unit.Magic != unitMagic {
		return nil, NoFileID, ErrBadMagic
	}
	if unit.Schema != unitSchemaVersion {
		return nil, NoFileID, fmt.Errorf("%w: got %d, want %d", ErrBadSchema, unit.Schema, unitSchemaVersion)
	}

	strings := source.NewInterner()
	for i, s := range unit.Strings {
		if i == 0 {
			if s != "" {
				return nil, NoFileID, fmt.Errorf("%w: string table must start empty", ErrCorruptUnit)
			}
			continue
		}
		want, err := safecast.Conv[uint32](i)
		if err != nil {
			return nil, NoFileID, fmt.Errorf("%w: string table too large", ErrCorruptUnit)
		}
		if got := strings.Intern(s); uint32(got) != want {
			return nil, NoFileID, fmt.Errorf("%w: duplicate string table entry %q", ErrCorruptUnit, s)
		}
	}

	b := NewBuilder(Hints{
		Files:    uint(len(unit.Files)),
		Items:    uint(len(unit.Items)),
		Stmts:    uint(len(unit.Stmts)),
		Exprs:    uint(len(unit.Exprs)),
		Types:    uint(len(unit.Types)),
		Patterns: uint(len(unit.Patterns)),
	}, strings)

	refill(b.Files.Arena, unit.Files)

	refill(b.Items.Arena, unit.Items)
	refill(b.Items.Functions, unit.Functions)
	refill(b.Items.Consts, unit.Consts)
	refill(b.Items.Structs, unit.Structs)
	refill(b.Items.Enums, unit.Enums)
	refill(b.Items.ExternFns, unit.ExternFns)

	refill(b.Stmts.Arena, unit.Stmts)
	refill(b.Stmts.Lets, unit.Lets)
	refill(b.Stmts.Assigns, unit.Assigns)
	refill(b.Stmts.Returns, unit.Returns)
	refill(b.Stmts.Exprs, unit.ExprStmts)
	refill(b.Stmts.Ifs, unit.Ifs)
	refill(b.Stmts.Whiles, unit.Whiles)
	refill(b.Stmts.Fors, unit.Fors)
	refill(b.Stmts.ForIns, unit.ForIns)
	refill(b.Stmts.Blocks, unit.StmtBlocks)
	refill(b.Stmts.Unsafes, unit.StmtUnsafes)

	refill(b.Exprs.Arena, unit.Exprs)
	refill(b.Exprs.Idents, unit.Idents)
	refill(b.Exprs.Literals, unit.Literals)
	refill(b.Exprs.Unaries, unit.Unaries)
	refill(b.Exprs.Binaries, unit.Binaries)
	refill(b.Exprs.Calls, unit.Calls)
	refill(b.Exprs.Members, unit.Members)
	refill(b.Exprs.Indices, unit.Indices)
	refill(b.Exprs.Arrays, unit.Arrays)
	refill(b.Exprs.Tuples, unit.Tuples)
	refill(b.Exprs.Structs, unit.ExprStructs)
	refill(b.Exprs.Matches, unit.Matches)
	refill(b.Exprs.Blocks, unit.ExprBlocks)
	refill(b.Exprs.Closures, unit.Closures)
	refill(b.Exprs.Casts, unit.Casts)

	refill(b.Types.Arena, unit.Types)
	refill(b.Patterns.Arena, unit.Patterns)

	root := FileID(unit.Root)
	if !root.IsValid() || uint32(root) > b.Files.Arena.Len() {
		return nil, NoFileID, fmt.Errorf("%w: root file %d out of range", ErrCorruptUnit, unit.Root)
	}
	if err := validateUnit(b); err != nil {
		return nil, NoFileID, err
	}
	return b, root, nil
}

func refill[T any](arena *Arena[T], values []T) {
	for _, v := range values {
		arena.Allocate(v)
	}
}

// validateUnit bounds-checks every cross-arena reference in a decoded
// unit. Corruption must fail here as ErrCorruptUnit instead of
// panicking later inside a checker walking the arenas.
func validateUnit(b *Builder) error {
	v := &unitCheck{b: b}

	files := b.Files.Arena.Slice()
	for i := range files {
		if !v.fileOK(&files[i]) {
			return corrupt("file", i)
		}
	}
	items := b.Items.Arena.Slice()
	for i := range items {
		if !v.itemOK(&items[i]) {
			return corrupt("item", i)
		}
	}
	stmts := b.Stmts.Arena.Slice()
	for i := range stmts {
		if !v.stmtOK(&stmts[i]) {
			return corrupt("statement", i)
		}
	}
	exprs := b.Exprs.Arena.Slice()
	for i := range exprs {
		if !v.exprOK(&exprs[i]) {
			return corrupt("expression", i)
		}
	}
	types := b.Types.Arena.Slice()
	for i := range types {
		if types[i].Kind > TypeUnit || !v.str(types[i].Name) || !v.typ(types[i].Elem) {
			return corrupt("type", i)
		}
	}
	patterns := b.Patterns.Arena.Slice()
	for i := range patterns {
		if !v.patternOK(&patterns[i]) {
			return corrupt("pattern", i)
		}
	}
	return nil
}

func corrupt(section string, index int) error {
	return fmt.Errorf("%w: %s %d references out of range", ErrCorruptUnit, section, index+1)
}

type unitCheck struct {
	b *Builder
}

// payloadOK rejects a missing or out-of-range payload; every
// payload-bearing kind dereferences its data unconditionally.
func payloadOK[T any](arena *Arena[T], id PayloadID) bool {
	return id != NoPayloadID && uint32(id) <= arena.Len()
}

func (v *unitCheck) str(id source.StringID) bool { return v.b.Strings.Has(id) }
func (v *unitCheck) item(id ItemID) bool         { return uint32(id) <= v.b.Items.Arena.Len() }
func (v *unitCheck) stmt(id StmtID) bool         { return uint32(id) <= v.b.Stmts.Arena.Len() }
func (v *unitCheck) expr(id ExprID) bool         { return uint32(id) <= v.b.Exprs.Arena.Len() }
func (v *unitCheck) typ(id TypeID) bool          { return uint32(id) <= v.b.Types.Arena.Len() }
func (v *unitCheck) pattern(id PatternID) bool   { return uint32(id) <= v.b.Patterns.Arena.Len() }

func (v *unitCheck) strs(ids []source.StringID) bool {
	for _, id := range ids {
		if !v.str(id) {
			return false
		}
	}
	return true
}

func (v *unitCheck) stmts(ids []StmtID) bool {
	for _, id := range ids {
		if !v.stmt(id) {
			return false
		}
	}
	return true
}

func (v *unitCheck) exprs(ids []ExprID) bool {
	for _, id := range ids {
		if !v.expr(id) {
			return false
		}
	}
	return true
}

func (v *unitCheck) fnParams(params []FnParam) bool {
	for _, param := range params {
		if !v.str(param.Name) || !v.typ(param.Type) {
			return false
		}
	}
	return true
}

func (v *unitCheck) fileOK(file *FileData) bool {
	for _, imp := range file.Imports {
		if imp.Kind > ImportModule || !v.str(imp.Module) || !v.str(imp.Alias) || !v.strs(imp.Names) {
			return false
		}
	}
	for _, id := range file.Items {
		if !v.item(id) {
			return false
		}
	}
	return true
}

func (v *unitCheck) itemOK(item *Item) bool {
	switch item.Kind {
	case ItemFunction:
		if !payloadOK(v.b.Items.Functions, item.Payload) {
			return false
		}
		fn := v.b.Items.Functions.Get(uint32(item.Payload))
		if recv := fn.Receiver; recv != nil && (!v.str(recv.Name) || !v.typ(recv.Type)) {
			return false
		}
		return v.str(fn.Name) && v.fnParams(fn.Params) && v.typ(fn.Result) && v.stmts(fn.Body)
	case ItemConst:
		if !payloadOK(v.b.Items.Consts, item.Payload) {
			return false
		}
		cst := v.b.Items.Consts.Get(uint32(item.Payload))
		return v.str(cst.Name) && v.typ(cst.Type) && v.expr(cst.Value)
	case ItemStruct:
		if !payloadOK(v.b.Items.Structs, item.Payload) {
			return false
		}
		st := v.b.Items.Structs.Get(uint32(item.Payload))
		if !v.str(st.Name) {
			return false
		}
		for _, field := range st.Fields {
			if !v.str(field.Name) || !v.typ(field.Type) {
				return false
			}
		}
		for _, id := range st.Methods {
			if !v.item(id) {
				return false
			}
		}
		return true
	case ItemEnum:
		if !payloadOK(v.b.Items.Enums, item.Payload) {
			return false
		}
		enum := v.b.Items.Enums.Get(uint32(item.Payload))
		if !v.str(enum.Name) {
			return false
		}
		for _, variant := range enum.Variants {
			if !v.str(variant.Name) {
				return false
			}
			for _, typ := range variant.Payloads {
				if !v.typ(typ) {
					return false
				}
			}
		}
		return true
	case ItemExternFn:
		if !payloadOK(v.b.Items.ExternFns, item.Payload) {
			return false
		}
		fn := v.b.Items.ExternFns.Get(uint32(item.Payload))
		return v.str(fn.Name) && v.fnParams(fn.Params) && v.typ(fn.Result)
	}
	return false
}

func (v *unitCheck) stmtOK(stmt *Stmt) bool {
	switch stmt.Kind {
	case StmtLet:
		if !payloadOK(v.b.Stmts.Lets, stmt.Payload) {
			return false
		}
		let := v.b.Stmts.Lets.Get(uint32(stmt.Payload))
		return v.str(let.Name) && v.pattern(let.Pattern) && v.typ(let.Type) && v.expr(let.Init)
	case StmtAssign:
		if !payloadOK(v.b.Stmts.Assigns, stmt.Payload) {
			return false
		}
		assign := v.b.Stmts.Assigns.Get(uint32(stmt.Payload))
		return assign.Op <= AssignMod && v.expr(assign.Target) && v.expr(assign.Value)
	case StmtReturn:
		if !payloadOK(v.b.Stmts.Returns, stmt.Payload) {
			return false
		}
		return v.expr(v.b.Stmts.Returns.Get(uint32(stmt.Payload)).Value)
	case StmtExpr:
		if !payloadOK(v.b.Stmts.Exprs, stmt.Payload) {
			return false
		}
		return v.expr(v.b.Stmts.Exprs.Get(uint32(stmt.Payload)).Expr)
	case StmtIf:
		if !payloadOK(v.b.Stmts.Ifs, stmt.Payload) {
			return false
		}
		ifs := v.b.Stmts.Ifs.Get(uint32(stmt.Payload))
		if !v.expr(ifs.Cond) || !v.stmts(ifs.Then) || !v.stmts(ifs.Else) {
			return false
		}
		for _, elif := range ifs.Elifs {
			if !v.expr(elif.Cond) || !v.stmts(elif.Body) {
				return false
			}
		}
		return true
	case StmtWhile:
		if !payloadOK(v.b.Stmts.Whiles, stmt.Payload) {
			return false
		}
		while := v.b.Stmts.Whiles.Get(uint32(stmt.Payload))
		return v.expr(while.Cond) && v.stmts(while.Body)
	case StmtFor:
		if !payloadOK(v.b.Stmts.Fors, stmt.Payload) {
			return false
		}
		fors := v.b.Stmts.Fors.Get(uint32(stmt.Payload))
		return v.stmt(fors.Init) && v.expr(fors.Cond) && v.stmt(fors.Post) && v.stmts(fors.Body)
	case StmtForIn:
		if !payloadOK(v.b.Stmts.ForIns, stmt.Payload) {
			return false
		}
		forIn := v.b.Stmts.ForIns.Get(uint32(stmt.Payload))
		return v.str(forIn.Var) && v.expr(forIn.Iterable) && v.stmts(forIn.Body)
	case StmtBlock:
		if !payloadOK(v.b.Stmts.Blocks, stmt.Payload) {
			return false
		}
		return v.stmts(v.b.Stmts.Blocks.Get(uint32(stmt.Payload)).Body)
	case StmtUnsafe:
		if !payloadOK(v.b.Stmts.Unsafes, stmt.Payload) {
			return false
		}
		return v.stmts(v.b.Stmts.Unsafes.Get(uint32(stmt.Payload)).Body)
	case StmtBreak, StmtContinue:
		return true
	}
	return false
}

func (v *unitCheck) exprOK(expr *Expr) bool {
	switch expr.Kind {
	case ExprIdent:
		if !payloadOK(v.b.Exprs.Idents, expr.Payload) {
			return false
		}
		return v.str(v.b.Exprs.Idents.Get(uint32(expr.Payload)).Name)
	case ExprLit:
		if !payloadOK(v.b.Exprs.Literals, expr.Payload) {
			return false
		}
		lit := v.b.Exprs.Literals.Get(uint32(expr.Payload))
		return lit.Kind <= ExprLitNil && v.str(lit.Value)
	case ExprUnary:
		if !payloadOK(v.b.Exprs.Unaries, expr.Payload) {
			return false
		}
		unary := v.b.Exprs.Unaries.Get(uint32(expr.Payload))
		return unary.Op <= ExprUnaryNot && v.expr(unary.Operand)
	case ExprBinary:
		if !payloadOK(v.b.Exprs.Binaries, expr.Payload) {
			return false
		}
		binary := v.b.Exprs.Binaries.Get(uint32(expr.Payload))
		return binary.Op <= ExprBinaryOr && v.expr(binary.Left) && v.expr(binary.Right)
	case ExprCall:
		if !payloadOK(v.b.Exprs.Calls, expr.Payload) {
			return false
		}
		call := v.b.Exprs.Calls.Get(uint32(expr.Payload))
		return v.expr(call.Target) && v.exprs(call.Args)
	case ExprMember:
		if !payloadOK(v.b.Exprs.Members, expr.Payload) {
			return false
		}
		member := v.b.Exprs.Members.Get(uint32(expr.Payload))
		return v.expr(member.Target) && v.str(member.Field)
	case ExprIndex:
		if !payloadOK(v.b.Exprs.Indices, expr.Payload) {
			return false
		}
		index := v.b.Exprs.Indices.Get(uint32(expr.Payload))
		return v.expr(index.Target) && v.expr(index.Index)
	case ExprArray:
		if !payloadOK(v.b.Exprs.Arrays, expr.Payload) {
			return false
		}
		return v.exprs(v.b.Exprs.Arrays.Get(uint32(expr.Payload)).Elements)
	case ExprTuple:
		if !payloadOK(v.b.Exprs.Tuples, expr.Payload) {
			return false
		}
		return v.exprs(v.b.Exprs.Tuples.Get(uint32(expr.Payload)).Elements)
	case ExprStruct:
		if !payloadOK(v.b.Exprs.Structs, expr.Payload) {
			return false
		}
		lit := v.b.Exprs.Structs.Get(uint32(expr.Payload))
		if !v.typ(lit.Type) {
			return false
		}
		for _, field := range lit.Fields {
			if !v.str(field.Name) || !v.expr(field.Value) {
				return false
			}
		}
		return true
	case ExprMatch:
		if !payloadOK(v.b.Exprs.Matches, expr.Payload) {
			return false
		}
		match := v.b.Exprs.Matches.Get(uint32(expr.Payload))
		if !v.expr(match.Value) {
			return false
		}
		for _, arm := range match.Arms {
			if !v.pattern(arm.Pattern) || !v.expr(arm.Guard) || !v.expr(arm.Body) {
				return false
			}
		}
		return true
	case ExprBlock:
		if !payloadOK(v.b.Exprs.Blocks, expr.Payload) {
			return false
		}
		block := v.b.Exprs.Blocks.Get(uint32(expr.Payload))
		return v.stmts(block.Stmts) && v.expr(block.Result)
	case ExprClosure:
		if !payloadOK(v.b.Exprs.Closures, expr.Payload) {
			return false
		}
		closure := v.b.Exprs.Closures.Get(uint32(expr.Payload))
		for _, param := range closure.Params {
			if !v.str(param.Name) || !v.typ(param.Type) {
				return false
			}
		}
		return closure.Capture <= CaptureOnce && v.expr(closure.Body)
	case ExprCast:
		if !payloadOK(v.b.Exprs.Casts, expr.Payload) {
			return false
		}
		cast := v.b.Exprs.Casts.Get(uint32(expr.Payload))
		return v.expr(cast.Value) && v.typ(cast.Type)
	}
	return false
}

func (v *unitCheck) patternOK(pat *Pattern) bool {
	if pat.Kind > PatOr || !v.str(pat.Name) {
		return false
	}
	for _, elem := range pat.Elems {
		if !v.pattern(elem) {
			return false
		}
	}
	for _, field := range pat.Fields {
		if !v.str(field.Name) || !v.pattern(field.Pattern) {
			return false
		}
	}
	return true
}
