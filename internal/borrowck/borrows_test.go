package borrowck

import (
	"testing"

	"vex/internal/ast"
	"vex/internal/diag"
	"vex/internal/source"
)

func letRef(builder *ast.Builder, name, referent string, exclusive bool) ast.StmtID {
	op := ast.ExprUnaryRef
	if exclusive {
		op = ast.ExprUnaryRefMut
	}
	ref := builder.Exprs.NewUnary(source.Span{}, op,
		builder.Exprs.NewIdent(source.Span{}, intern(builder, referent)))
	return builder.Stmts.NewLet(source.Span{}, intern(builder, name), ast.NoTypeID, ref, false)
}

func letInt(builder *ast.Builder, name, value string, mutable bool) ast.StmtID {
	return builder.Stmts.NewLet(source.Span{}, intern(builder, name), ast.NoTypeID,
		builder.Exprs.NewLiteral(source.Span{}, ast.ExprLitInt, intern(builder, value)), mutable)
}

func TestBorrowsDoubleExclusive(t *testing.T) {
	builder, fileID := newTestBuilder()
	addFunction(builder, fileID, "main", []ast.StmtID{
		letInt(builder, "x", "0", false),
		letRef(builder, "r1", "x", true),
		letRef(builder, "r2", "x", true),
	})

	bag, res := runCheck(t, builder, fileID)
	if !hasCode(bag, diag.OwnBorrowConflict) {
		t.Fatalf("expected %v, got %v", diag.OwnBorrowConflict, diagCodes(bag))
	}
	if res.Halted != PassBorrows {
		t.Fatalf("expected halt at borrows, got %v", res.Halted)
	}
}

func TestBorrowsSharedThenExclusive(t *testing.T) {
	builder, fileID := newTestBuilder()
	addFunction(builder, fileID, "main", []ast.StmtID{
		letInt(builder, "x", "0", false),
		letRef(builder, "r1", "x", false),
		letRef(builder, "r2", "x", true),
	})

	bag, _ := runCheck(t, builder, fileID)
	if !hasCode(bag, diag.OwnBorrowConflict) {
		t.Fatalf("expected %v, got %v", diag.OwnBorrowConflict, diagCodes(bag))
	}
}

func TestBorrowsExclusiveThenShared(t *testing.T) {
	builder, fileID := newTestBuilder()
	addFunction(builder, fileID, "main", []ast.StmtID{
		letInt(builder, "x", "0", false),
		letRef(builder, "r1", "x", true),
		letRef(builder, "r2", "x", false),
	})

	bag, _ := runCheck(t, builder, fileID)
	if !hasCode(bag, diag.OwnBorrowConflict) {
		t.Fatalf("expected %v, got %v", diag.OwnBorrowConflict, diagCodes(bag))
	}
}

func TestBorrowsMultipleShared(t *testing.T) {
	builder, fileID := newTestBuilder()
	addFunction(builder, fileID, "main", []ast.StmtID{
		letInt(builder, "x", "0", false),
		letRef(builder, "r1", "x", false),
		letRef(builder, "r2", "x", false),
		letRef(builder, "r3", "x", false),
	})

	bag, res := runCheck(t, builder, fileID)
	if bag.Len() != 0 {
		t.Fatalf("expected no diagnostics, got %v", diagCodes(bag))
	}
	if !res.Completed {
		t.Fatalf("expected pipeline to complete, halted at %v", res.Halted)
	}
}

func TestBorrowsMutationWhileShared(t *testing.T) {
	builder, fileID := newTestBuilder()
	assign := builder.Stmts.NewAssign(source.Span{}, ast.AssignSet,
		builder.Exprs.NewIdent(source.Span{}, intern(builder, "x")),
		builder.Exprs.NewLiteral(source.Span{}, ast.ExprLitInt, intern(builder, "1")))
	addFunction(builder, fileID, "main", []ast.StmtID{
		letInt(builder, "x", "0", true),
		letRef(builder, "r", "x", false),
		assign,
	})

	bag, _ := runCheck(t, builder, fileID)
	if !hasCode(bag, diag.OwnMutationWhileBorrow) {
		t.Fatalf("expected %v, got %v", diag.OwnMutationWhileBorrow, diagCodes(bag))
	}
}

func TestBorrowsMoveWhileBorrowed(t *testing.T) {
	builder, fileID := newTestBuilder()
	freeCall := builder.Exprs.NewCall(source.Span{},
		builder.Exprs.NewIdent(source.Span{}, intern(builder, "free")),
		[]ast.ExprID{builder.Exprs.NewIdent(source.Span{}, intern(builder, "x"))})
	addFunction(builder, fileID, "main", []ast.StmtID{
		letInt(builder, "x", "0", false),
		letRef(builder, "r", "x", false),
		builder.Stmts.NewExpr(source.Span{}, freeCall),
	})

	bag, _ := runCheck(t, builder, fileID)
	if !hasCode(bag, diag.OwnMoveWhileBorrow) {
		t.Fatalf("expected %v, got %v", diag.OwnMoveWhileBorrow, diagCodes(bag))
	}
}

func TestBorrowsMutatingBuiltinWhileBorrowed(t *testing.T) {
	builder, fileID := newTestBuilder()
	vName := intern(builder, "v")
	stmtV := builder.Stmts.NewLet(source.Span{}, vName, ast.NoTypeID,
		builder.Exprs.NewArray(source.Span{}, nil), true)
	appendCall := builder.Exprs.NewCall(source.Span{},
		builder.Exprs.NewIdent(source.Span{}, intern(builder, "array_append")),
		[]ast.ExprID{
			builder.Exprs.NewIdent(source.Span{}, vName),
			builder.Exprs.NewLiteral(source.Span{}, ast.ExprLitInt, intern(builder, "1")),
		})
	addFunction(builder, fileID, "main", []ast.StmtID{
		stmtV,
		letRef(builder, "r", "v", false),
		builder.Stmts.NewExpr(source.Span{}, appendCall),
	})

	bag, _ := runCheck(t, builder, fileID)
	if !hasCode(bag, diag.OwnMutationWhileBorrow) {
		t.Fatalf("expected %v, got %v", diag.OwnMutationWhileBorrow, diagCodes(bag))
	}
}

func TestBorrowsAnonymousRefDoesNotPersist(t *testing.T) {
	builder, fileID := newTestBuilder()
	xName := intern(builder, "x")
	// strlen(&x) holds the borrow only for the call; an exclusive
	// borrow afterwards is fine.
	anonRef := builder.Exprs.NewUnary(source.Span{}, ast.ExprUnaryRef,
		builder.Exprs.NewIdent(source.Span{}, xName))
	strlenCall := builder.Exprs.NewCall(source.Span{},
		builder.Exprs.NewIdent(source.Span{}, intern(builder, "strlen")),
		[]ast.ExprID{anonRef})
	addFunction(builder, fileID, "main", []ast.StmtID{
		letInt(builder, "x", "0", false),
		builder.Stmts.NewExpr(source.Span{}, strlenCall),
		letRef(builder, "r", "x", true),
	})

	bag, res := runCheck(t, builder, fileID)
	if bag.Len() != 0 {
		t.Fatalf("expected no diagnostics, got %v", diagCodes(bag))
	}
	if !res.Completed {
		t.Fatalf("expected pipeline to complete, halted at %v", res.Halted)
	}
}

func TestBorrowsFirstConflictStopsBody(t *testing.T) {
	builder, fileID := newTestBuilder()
	addFunction(builder, fileID, "main", []ast.StmtID{
		letInt(builder, "x", "0", false),
		letRef(builder, "r1", "x", true),
		letRef(builder, "r2", "x", true),
		letRef(builder, "r3", "x", true),
	})

	bag, _ := runCheck(t, builder, fileID)
	// The r2 conflict ends the body; r3 is never checked.
	if bag.Len() != 1 {
		t.Fatalf("expected exactly one diagnostic, got %v", diagCodes(bag))
	}
}

func TestBorrowsCompoundAssignDoesNotRecordBorrow(t *testing.T) {
	builder, fileID := newTestBuilder()
	xName := intern(builder, "x")
	aName := intern(builder, "a")

	// a += &x reads through the reference without rebinding a; an
	// exclusive borrow afterwards is fine.
	compound := builder.Stmts.NewAssign(source.Span{}, ast.AssignAdd,
		builder.Exprs.NewIdent(source.Span{}, aName),
		builder.Exprs.NewUnary(source.Span{}, ast.ExprUnaryRef,
			builder.Exprs.NewIdent(source.Span{}, xName)))
	addFunction(builder, fileID, "main", []ast.StmtID{
		letInt(builder, "x", "0", false),
		letInt(builder, "a", "0", true),
		compound,
		letRef(builder, "r", "x", true),
	})

	bag, res := runCheck(t, builder, fileID)
	if bag.Len() != 0 {
		t.Fatalf("expected no diagnostics, got %v", diagCodes(bag))
	}
	if !res.Completed {
		t.Fatalf("expected pipeline to complete, halted at %v", res.Halted)
	}
}

func TestBorrowsStatePerFunction(t *testing.T) {
	builder, fileID := newTestBuilder()
	addFunction(builder, fileID, "first", []ast.StmtID{
		letInt(builder, "x", "0", false),
		letRef(builder, "r", "x", true),
	})
	addFunction(builder, fileID, "second", []ast.StmtID{
		letInt(builder, "x", "0", false),
		letRef(builder, "r", "x", true),
	})

	bag, _ := runCheck(t, builder, fileID)
	if bag.Len() != 0 {
		t.Fatalf("expected no diagnostics, got %v", diagCodes(bag))
	}
}

func TestBorrowsRawDerefOutsideUnsafe(t *testing.T) {
	builder, fileID := newTestBuilder()
	allocCall := builder.Exprs.NewCall(source.Span{},
		builder.Exprs.NewIdent(source.Span{}, intern(builder, "alloc")),
		[]ast.ExprID{builder.Exprs.NewLiteral(source.Span{}, ast.ExprLitInt, intern(builder, "8"))})
	deref := builder.Exprs.NewUnary(source.Span{}, ast.ExprUnaryDeref, allocCall)
	addFunction(builder, fileID, "main", []ast.StmtID{
		builder.Stmts.NewExpr(source.Span{}, deref),
	})

	bag, _ := runCheck(t, builder, fileID)
	if !hasCode(bag, diag.OwnUnsafeDeref) {
		t.Fatalf("expected %v, got %v", diag.OwnUnsafeDeref, diagCodes(bag))
	}
}

func TestBorrowsRawDerefInsideUnsafe(t *testing.T) {
	builder, fileID := newTestBuilder()
	allocCall := builder.Exprs.NewCall(source.Span{},
		builder.Exprs.NewIdent(source.Span{}, intern(builder, "alloc")),
		[]ast.ExprID{builder.Exprs.NewLiteral(source.Span{}, ast.ExprLitInt, intern(builder, "8"))})
	deref := builder.Exprs.NewUnary(source.Span{}, ast.ExprUnaryDeref, allocCall)
	unsafeBlock := builder.Stmts.NewUnsafe(source.Span{}, []ast.StmtID{
		builder.Stmts.NewExpr(source.Span{}, deref),
	})
	addFunction(builder, fileID, "main", []ast.StmtID{unsafeBlock})

	bag, res := runCheck(t, builder, fileID)
	if bag.Len() != 0 {
		t.Fatalf("expected no diagnostics, got %v", diagCodes(bag))
	}
	if !res.Completed {
		t.Fatalf("expected pipeline to complete, halted at %v", res.Halted)
	}
}

func TestBorrowsCastToRawPointerDeref(t *testing.T) {
	builder, fileID := newTestBuilder()
	xName := intern(builder, "x")
	rawType := builder.Types.NewRawPtr(source.Span{},
		builder.Types.NewNamed(source.Span{}, intern(builder, "i32")))
	cast := builder.Exprs.NewCast(source.Span{},
		builder.Exprs.NewIdent(source.Span{}, xName), rawType)
	deref := builder.Exprs.NewUnary(source.Span{}, ast.ExprUnaryDeref, cast)
	addFunction(builder, fileID, "main", []ast.StmtID{
		letInt(builder, "x", "0", false),
		builder.Stmts.NewExpr(source.Span{}, deref),
	})

	bag, _ := runCheck(t, builder, fileID)
	if !hasCode(bag, diag.OwnUnsafeDeref) {
		t.Fatalf("expected %v, got %v", diag.OwnUnsafeDeref, diagCodes(bag))
	}
}

type rawPtrOracle struct {
	target ast.ExprID
}

func (o rawPtrOracle) IsRawPointer(id ast.ExprID) bool { return id == o.target }

func TestBorrowsOracleResolvesIdentDeref(t *testing.T) {
	builder, fileID := newTestBuilder()
	pName := intern(builder, "p")
	pIdent := builder.Exprs.NewIdent(source.Span{}, pName)
	deref := builder.Exprs.NewUnary(source.Span{}, ast.ExprUnaryDeref, pIdent)
	addFunction(builder, fileID, "main", []ast.StmtID{
		letInt(builder, "p", "0", false),
		builder.Stmts.NewExpr(source.Span{}, deref),
	})

	bag := diag.NewBag(16)
	checker := NewChecker(Options{
		Reporter: diag.BagReporter{Bag: bag},
		Types:    rawPtrOracle{target: pIdent},
	})
	checker.CheckUnit(builder, fileID)
	if !hasCode(bag, diag.OwnUnsafeDeref) {
		t.Fatalf("expected %v, got %v", diag.OwnUnsafeDeref, diagCodes(bag))
	}
}

func TestBorrowsIdentDerefWithoutOracle(t *testing.T) {
	builder, fileID := newTestBuilder()
	pName := intern(builder, "p")
	deref := builder.Exprs.NewUnary(source.Span{}, ast.ExprUnaryDeref,
		builder.Exprs.NewIdent(source.Span{}, pName))
	addFunction(builder, fileID, "main", []ast.StmtID{
		letInt(builder, "p", "0", false),
		builder.Stmts.NewExpr(source.Span{}, deref),
	})

	// Without a type oracle a plain identifier cannot be proven to be
	// a raw pointer; the deref passes.
	bag, _ := runCheck(t, builder, fileID)
	if bag.Len() != 0 {
		t.Fatalf("expected no diagnostics, got %v", diagCodes(bag))
	}
}
