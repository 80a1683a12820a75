package driver

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"vex/internal/ast"
	"vex/internal/diag"
	"vex/internal/source"
)

func writeUnit(t *testing.T, dir, name string, build func(b *ast.Builder, file ast.FileID)) string {
	t.Helper()
	b := ast.NewBuilder(ast.Hints{}, nil)
	file := b.Files.New(source.Span{}, source.NoFileID, nil, nil)
	build(b, file)

	var buf bytes.Buffer
	if err := ast.Encode(&buf, b, file); err != nil {
		t.Fatalf("encode %s: %v", name, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func cleanUnit(b *ast.Builder, file ast.FileID) {
	xName := b.Intern("x")
	stmt := b.Stmts.NewLet(source.Span{}, xName, ast.NoTypeID,
		b.Exprs.NewLiteral(source.Span{}, ast.ExprLitInt, b.Intern("0")), false)
	fn := b.Items.NewFunction(source.Span{}, b.Intern("main"), nil, nil, ast.NoTypeID, []ast.StmtID{stmt})
	b.PushItem(file, fn)
}

func failingUnit(b *ast.Builder, file ast.FileID) {
	xName := b.Intern("x")
	stmt := b.Stmts.NewLet(source.Span{}, xName, ast.NoTypeID,
		b.Exprs.NewLiteral(source.Span{}, ast.ExprLitInt, b.Intern("0")), false)
	assign := b.Stmts.NewAssign(source.Span{}, ast.AssignSet,
		b.Exprs.NewIdent(source.Span{}, xName),
		b.Exprs.NewLiteral(source.Span{}, ast.ExprLitInt, b.Intern("1")))
	fn := b.Items.NewFunction(source.Span{}, b.Intern("main"), nil, nil, ast.NoTypeID, []ast.StmtID{stmt, assign})
	b.PushItem(file, fn)
}

func TestCheckFilesOrderAndOutcomes(t *testing.T) {
	dir := t.TempDir()
	clean := writeUnit(t, dir, "clean"+UnitExt, cleanUnit)
	failing := writeUnit(t, dir, "failing"+UnitExt, failingUnit)

	results, err := CheckFiles(context.Background(), []string{failing, clean}, Options{Jobs: 2})
	if err != nil {
		t.Fatalf("check files: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Path != failing || results[1].Path != clean {
		t.Fatalf("input order not preserved: %s, %s", results[0].Path, results[1].Path)
	}

	if !results[0].Bag.HasErrors() {
		t.Fatal("failing unit should report errors")
	}
	if results[0].Check.Completed {
		t.Fatal("failing unit should not complete the pipeline")
	}
	if results[1].Bag.HasErrors() {
		t.Fatalf("clean unit should be clean, got %d diagnostics", results[1].Bag.Len())
	}
	if !results[1].Check.Completed {
		t.Fatal("clean unit should complete the pipeline")
	}
}

func TestCheckFilesCorruptUnit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage"+UnitExt)
	if err := os.WriteFile(path, []byte("not a unit"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	results, err := CheckFiles(context.Background(), []string{path}, Options{})
	if err != nil {
		t.Fatalf("check files: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	bag := results[0].Bag
	if !bag.HasErrors() {
		t.Fatal("corrupt unit should report an error")
	}
	if bag.Items()[0].Code != diag.DecodeCorruptUnit {
		t.Fatalf("expected %v, got %v", diag.DecodeCorruptUnit, bag.Items()[0].Code)
	}
}

func TestCheckFilesMissingUnit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing"+UnitExt)
	results, err := CheckFiles(context.Background(), []string{path}, Options{})
	if err != nil {
		t.Fatalf("check files: %v", err)
	}
	if !results[0].Bag.HasErrors() {
		t.Fatal("missing unit should report an error")
	}
	if results[0].Bag.Items()[0].Code != diag.IOLoadUnitError {
		t.Fatalf("expected %v, got %v", diag.IOLoadUnitError, results[0].Bag.Items()[0].Code)
	}
}

func TestCheckFilesCanceledContext(t *testing.T) {
	dir := t.TempDir()
	path := writeUnit(t, dir, "clean"+UnitExt, cleanUnit)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := CheckFiles(ctx, []string{path}, Options{}); err == nil {
		t.Fatal("expected a context error")
	}
}

func TestListUnits(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "b"+UnitExt, cleanUnit)
	writeUnit(t, dir, "a"+UnitExt, cleanUnit)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	units, err := ListUnits(dir)
	if err != nil {
		t.Fatalf("list units: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	if filepath.Base(units[0]) != "a"+UnitExt || filepath.Base(units[1]) != "b"+UnitExt {
		t.Fatalf("units not sorted: %v", units)
	}
}

func TestCheckDir(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "clean"+UnitExt, cleanUnit)

	results, err := CheckDir(context.Background(), dir, Options{})
	if err != nil {
		t.Fatalf("check dir: %v", err)
	}
	if len(results) != 1 || !results[0].Check.Completed {
		t.Fatalf("unexpected results: %+v", results)
	}
}
