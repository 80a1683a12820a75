package ast

import (
	"bytes"
	"errors"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"vex/internal/source"
)

func buildSampleUnit(t *testing.T) (*Builder, FileID) {
	t.Helper()
	b := NewBuilder(Hints{}, nil)
	file := b.Files.New(source.Span{}, source.NoFileID, nil, nil)

	xName := b.Intern("x")
	initX := b.Exprs.NewLiteral(source.Span{}, ExprLitInt, b.Intern("42"))
	stmtX := b.Stmts.NewLet(source.Span{}, xName, NoTypeID, initX, true)

	closure := b.Exprs.NewClosure(source.Span{},
		[]ClosureParam{{Name: b.Intern("n")}},
		b.Exprs.NewIdent(source.Span{}, xName))
	stmtF := b.Stmts.NewLet(source.Span{}, b.Intern("f"), NoTypeID, closure, false)

	fn := b.Items.NewFunction(source.Span{}, b.Intern("main"), nil, nil, NoTypeID, []StmtID{stmtX, stmtF})
	b.PushItem(file, fn)
	return b, file
}

func TestCodecRoundTrip(t *testing.T) {
	b, file := buildSampleUnit(t)

	var buf bytes.Buffer
	if err := Encode(&buf, b, file); err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, root, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if root != file {
		t.Fatalf("root mismatch: got %v, want %v", root, file)
	}

	data := decoded.Files.Get(root)
	if data == nil || len(data.Items) != 1 {
		t.Fatalf("unexpected file data: %+v", data)
	}

	fn, ok := decoded.Items.Function(data.Items[0])
	if !ok {
		t.Fatal("first item is not a function")
	}
	if decoded.Name(fn.Name) != "main" {
		t.Fatalf("function name: got %q", decoded.Name(fn.Name))
	}
	if len(fn.Body) != 2 {
		t.Fatalf("expected 2 body statements, got %d", len(fn.Body))
	}

	let, ok := decoded.Stmts.Let(fn.Body[0])
	if !ok {
		t.Fatal("first statement is not a let")
	}
	if decoded.Name(let.Name) != "x" || !let.Mutable {
		t.Fatalf("unexpected let: name %q mutable %v", decoded.Name(let.Name), let.Mutable)
	}
	lit, ok := decoded.Exprs.Literal(let.Init)
	if !ok || decoded.Name(lit.Value) != "42" {
		t.Fatalf("unexpected init literal: %+v", lit)
	}

	letF, ok := decoded.Stmts.Let(fn.Body[1])
	if !ok {
		t.Fatal("second statement is not a let")
	}
	closure, ok := decoded.Exprs.Closure(letF.Init)
	if !ok {
		t.Fatal("init is not a closure")
	}
	if len(closure.Params) != 1 || decoded.Name(closure.Params[0].Name) != "n" {
		t.Fatalf("unexpected closure params: %+v", closure.Params)
	}
	if closure.Capture != CaptureInfer {
		t.Fatalf("expected unresolved capture, got %v", closure.Capture)
	}
}

func TestCodecBadMagic(t *testing.T) {
	var buf bytes.Buffer
	unit := WireUnit{Magic: "NOTVEX", Schema: unitSchemaVersion}
	if err := msgpack.NewEncoder(&buf).Encode(&unit); err != nil {
		t.Fatalf("encode: %v", err)
	}

	_, _, err := Decode(&buf)
	if !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestCodecBadSchema(t *testing.T) {
	var buf bytes.Buffer
	unit := WireUnit{Magic: unitMagic, Schema: unitSchemaVersion + 1}
	if err := msgpack.NewEncoder(&buf).Encode(&unit); err != nil {
		t.Fatalf("encode: %v", err)
	}

	_, _, err := Decode(&buf)
	if !errors.Is(err, ErrBadSchema) {
		t.Fatalf("expected ErrBadSchema, got %v", err)
	}
}

func TestCodecTruncatedStream(t *testing.T) {
	b, file := buildSampleUnit(t)
	var buf bytes.Buffer
	if err := Encode(&buf, b, file); err != nil {
		t.Fatalf("encode: %v", err)
	}

	_, _, err := Decode(bytes.NewReader(buf.Bytes()[:buf.Len()/2]))
	if !errors.Is(err, ErrCorruptUnit) {
		t.Fatalf("expected ErrCorruptUnit, got %v", err)
	}
}

func TestCodecRootOutOfRange(t *testing.T) {
	var buf bytes.Buffer
	unit := WireUnit{
		Magic:   unitMagic,
		Schema:  unitSchemaVersion,
		Root:    7,
		Strings: []string{""},
	}
	if err := msgpack.NewEncoder(&buf).Encode(&unit); err != nil {
		t.Fatalf("encode: %v", err)
	}

	_, _, err := Decode(&buf)
	if !errors.Is(err, ErrCorruptUnit) {
		t.Fatalf("expected ErrCorruptUnit, got %v", err)
	}
}

func TestCodecBadStringTable(t *testing.T) {
	var buf bytes.Buffer
	unit := WireUnit{
		Magic:   unitMagic,
		Schema:  unitSchemaVersion,
		Root:    1,
		Strings: []string{"not-empty"},
	}
	if err := msgpack.NewEncoder(&buf).Encode(&unit); err != nil {
		t.Fatalf("encode: %v", err)
	}

	_, _, err := Decode(&buf)
	if !errors.Is(err, ErrCorruptUnit) {
		t.Fatalf("expected ErrCorruptUnit, got %v", err)
	}
}

func decodeWire(t *testing.T, unit WireUnit) error {
	t.Helper()
	var buf bytes.Buffer
	if err := msgpack.NewEncoder(&buf).Encode(&unit); err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, _, err := Decode(&buf)
	return err
}

func TestCodecStmtPayloadOutOfRange(t *testing.T) {
	// A let statement pointing at a payload the Lets arena does not
	// hold must fail decoding, not panic in a checker.
	err := decodeWire(t, WireUnit{
		Magic:   unitMagic,
		Schema:  unitSchemaVersion,
		Root:    1,
		Strings: []string{""},
		Files:   []FileData{{}},
		Stmts:   []Stmt{{Kind: StmtLet, Payload: 5}},
	})
	if !errors.Is(err, ErrCorruptUnit) {
		t.Fatalf("expected ErrCorruptUnit, got %v", err)
	}
}

func TestCodecIdentNameOutOfRange(t *testing.T) {
	err := decodeWire(t, WireUnit{
		Magic:   unitMagic,
		Schema:  unitSchemaVersion,
		Root:    1,
		Strings: []string{""},
		Files:   []FileData{{}},
		Exprs:   []Expr{{Kind: ExprIdent, Payload: 1}},
		Idents:  []ExprIdentData{{Name: 99}},
	})
	if !errors.Is(err, ErrCorruptUnit) {
		t.Fatalf("expected ErrCorruptUnit, got %v", err)
	}
}

func TestCodecFunctionBodyOutOfRange(t *testing.T) {
	err := decodeWire(t, WireUnit{
		Magic:     unitMagic,
		Schema:    unitSchemaVersion,
		Root:      1,
		Strings:   []string{"", "main"},
		Files:     []FileData{{Items: []ItemID{1}}},
		Items:     []Item{{Kind: ItemFunction, Payload: 1}},
		Functions: []ItemFnData{{Name: 1, Body: []StmtID{7}}},
	})
	if !errors.Is(err, ErrCorruptUnit) {
		t.Fatalf("expected ErrCorruptUnit, got %v", err)
	}
}
