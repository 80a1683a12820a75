package borrowck

import (
	"testing"

	"vex/internal/ast"
	"vex/internal/diag"
	"vex/internal/source"
)

func TestLifetimesUseAfterBlockEnds(t *testing.T) {
	builder, fileID := newTestBuilder()
	yName := intern(builder, "y")

	inner := builder.Stmts.NewBlock(source.Span{}, []ast.StmtID{
		letInt(builder, "y", "1", false),
	})
	use := builder.Stmts.NewExpr(source.Span{},
		builder.Exprs.NewIdent(source.Span{}, yName))
	addFunction(builder, fileID, "main", []ast.StmtID{inner, use})

	bag, res := runCheck(t, builder, fileID)
	if !hasCode(bag, diag.OwnUseOutOfScope) {
		t.Fatalf("expected %v, got %v", diag.OwnUseOutOfScope, diagCodes(bag))
	}
	if res.Halted != PassLifetimes {
		t.Fatalf("expected halt at lifetimes, got %v", res.Halted)
	}
}

func TestLifetimesShadowRestoredAfterBlock(t *testing.T) {
	builder, fileID := newTestBuilder()
	xName := intern(builder, "x")

	inner := builder.Stmts.NewBlock(source.Span{}, []ast.StmtID{
		letInt(builder, "x", "1", false),
	})
	// The inner shadow dies with its block; the outer binding must
	// still be visible.
	use := builder.Stmts.NewExpr(source.Span{},
		builder.Exprs.NewIdent(source.Span{}, xName))
	addFunction(builder, fileID, "main", []ast.StmtID{
		letInt(builder, "x", "0", false),
		inner,
		use,
	})

	bag, res := runCheck(t, builder, fileID)
	if bag.Len() != 0 {
		t.Fatalf("expected no diagnostics, got %v", diagCodes(bag))
	}
	if !res.Completed {
		t.Fatalf("expected pipeline to complete, halted at %v", res.Halted)
	}
}

func TestLifetimesReturnRefToLocal(t *testing.T) {
	builder, fileID := newTestBuilder()
	xName := intern(builder, "x")

	ref := builder.Exprs.NewUnary(source.Span{}, ast.ExprUnaryRef,
		builder.Exprs.NewIdent(source.Span{}, xName))
	ret := builder.Stmts.NewReturn(source.Span{}, ref)
	addFunction(builder, fileID, "leak", []ast.StmtID{
		letInt(builder, "x", "0", false),
		ret,
	})

	bag, _ := runCheck(t, builder, fileID)
	if !hasCode(bag, diag.OwnReturnDangling) {
		t.Fatalf("expected %v, got %v", diag.OwnReturnDangling, diagCodes(bag))
	}
}

func TestLifetimesReturnRefToParam(t *testing.T) {
	builder, fileID := newTestBuilder()

	ref := builder.Exprs.NewUnary(source.Span{}, ast.ExprUnaryRef,
		builder.Exprs.NewIdent(source.Span{}, intern(builder, "n")))
	ret := builder.Stmts.NewReturn(source.Span{}, ref)
	addFunctionWithParams(builder, fileID, "pass", []string{"n"}, []ast.StmtID{ret})

	bag, res := runCheck(t, builder, fileID)
	if bag.Len() != 0 {
		t.Fatalf("expected no diagnostics, got %v", diagCodes(bag))
	}
	if !res.Completed {
		t.Fatalf("expected pipeline to complete, halted at %v", res.Halted)
	}
}

func TestLifetimesAssignRefToOuterBinding(t *testing.T) {
	builder, fileID := newTestBuilder()
	rName := intern(builder, "r")
	innerName := intern(builder, "inner")

	// let! r = &x; { let inner = 0; r = &inner; }
	innerLet := letInt(builder, "inner", "0", false)
	assign := builder.Stmts.NewAssign(source.Span{}, ast.AssignSet,
		builder.Exprs.NewIdent(source.Span{}, rName),
		builder.Exprs.NewUnary(source.Span{}, ast.ExprUnaryRef,
			builder.Exprs.NewIdent(source.Span{}, innerName)))
	block := builder.Stmts.NewBlock(source.Span{}, []ast.StmtID{innerLet, assign})
	addFunction(builder, fileID, "main", []ast.StmtID{
		letInt(builder, "x", "0", false),
		builder.Stmts.NewLet(source.Span{}, rName, ast.NoTypeID,
			builder.Exprs.NewUnary(source.Span{}, ast.ExprUnaryRef,
				builder.Exprs.NewIdent(source.Span{}, intern(builder, "x"))), true),
		block,
	})

	bag, _ := runCheck(t, builder, fileID)
	if !hasCode(bag, diag.OwnDanglingReference) {
		t.Fatalf("expected %v, got %v", diag.OwnDanglingReference, diagCodes(bag))
	}
}

func TestLifetimesCompoundAssignDoesNotRebind(t *testing.T) {
	builder, fileID := newTestBuilder()
	aName := intern(builder, "a")
	innerName := intern(builder, "inner")

	// let! a = &x; { let inner = 0; a += &inner; } updates a in place;
	// a never starts referring to inner.
	compound := builder.Stmts.NewAssign(source.Span{}, ast.AssignAdd,
		builder.Exprs.NewIdent(source.Span{}, aName),
		builder.Exprs.NewUnary(source.Span{}, ast.ExprUnaryRef,
			builder.Exprs.NewIdent(source.Span{}, innerName)))
	block := builder.Stmts.NewBlock(source.Span{}, []ast.StmtID{
		letInt(builder, "inner", "0", false),
		compound,
	})
	addFunction(builder, fileID, "main", []ast.StmtID{
		letInt(builder, "x", "0", false),
		builder.Stmts.NewLet(source.Span{}, aName, ast.NoTypeID,
			builder.Exprs.NewUnary(source.Span{}, ast.ExprUnaryRef,
				builder.Exprs.NewIdent(source.Span{}, intern(builder, "x"))), true),
		block,
	})

	bag, res := runCheck(t, builder, fileID)
	if bag.Len() != 0 {
		t.Fatalf("expected no diagnostics, got %v", diagCodes(bag))
	}
	if !res.Completed {
		t.Fatalf("expected pipeline to complete, halted at %v", res.Halted)
	}
}

func TestLifetimesRefToDeadBinding(t *testing.T) {
	builder, fileID := newTestBuilder()
	deadName := intern(builder, "dead")

	inner := builder.Stmts.NewBlock(source.Span{}, []ast.StmtID{
		letInt(builder, "dead", "0", false),
	})
	// `dead` is gone: both the use and the reference are invalid.
	stmtR := builder.Stmts.NewLet(source.Span{}, intern(builder, "r"), ast.NoTypeID,
		builder.Exprs.NewUnary(source.Span{}, ast.ExprUnaryRef,
			builder.Exprs.NewIdent(source.Span{}, deadName)), false)
	addFunction(builder, fileID, "main", []ast.StmtID{inner, stmtR})

	bag, _ := runCheck(t, builder, fileID)
	if !hasCode(bag, diag.OwnDanglingReference) {
		t.Fatalf("expected %v, got %v", diag.OwnDanglingReference, diagCodes(bag))
	}
}

func TestLifetimesAvailableNamesSorted(t *testing.T) {
	builder, fileID := newTestBuilder()

	use := builder.Stmts.NewExpr(source.Span{},
		builder.Exprs.NewIdent(source.Span{}, intern(builder, "missing")))
	addFunction(builder, fileID, "main", []ast.StmtID{
		letInt(builder, "zeta", "0", false),
		letInt(builder, "alpha", "0", false),
		use,
	})

	bag, _ := runCheck(t, builder, fileID)
	if bag.Len() == 0 {
		t.Fatal("expected a diagnostic")
	}
	item := bag.Items()[0]
	if item.Code != diag.OwnUseOutOfScope {
		t.Fatalf("expected %v, got %v", diag.OwnUseOutOfScope, item.Code)
	}
	if len(item.Notes) == 0 {
		t.Fatal("expected an in-scope note")
	}
}

func TestLifetimesMatchArmBindingScoped(t *testing.T) {
	builder, fileID := newTestBuilder()
	vName := intern(builder, "v")
	subjectName := intern(builder, "subject")

	armBody := builder.Exprs.NewIdent(source.Span{}, vName)
	match := builder.Exprs.NewMatch(source.Span{},
		builder.Exprs.NewIdent(source.Span{}, subjectName),
		[]ast.ExprMatchArm{{
			Pattern: builder.Patterns.NewIdent(source.Span{}, vName),
			Body:    armBody,
		}})
	stmtMatch := builder.Stmts.NewExpr(source.Span{}, match)
	// v does not survive its arm.
	after := builder.Stmts.NewExpr(source.Span{},
		builder.Exprs.NewIdent(source.Span{}, vName))
	addFunction(builder, fileID, "main", []ast.StmtID{
		letInt(builder, "subject", "1", false),
		stmtMatch,
		after,
	})

	bag, _ := runCheck(t, builder, fileID)
	if !hasCode(bag, diag.OwnUseOutOfScope) {
		t.Fatalf("expected %v, got %v", diag.OwnUseOutOfScope, diagCodes(bag))
	}
}

func TestLifetimesForInVariableScoped(t *testing.T) {
	builder, fileID := newTestBuilder()
	iName := intern(builder, "i")

	loop := builder.Stmts.NewForIn(source.Span{}, iName,
		builder.Exprs.NewArray(source.Span{}, nil), []ast.StmtID{
			builder.Stmts.NewExpr(source.Span{},
				builder.Exprs.NewIdent(source.Span{}, iName)),
		})
	after := builder.Stmts.NewExpr(source.Span{},
		builder.Exprs.NewIdent(source.Span{}, iName))
	addFunction(builder, fileID, "main", []ast.StmtID{loop, after})

	bag, _ := runCheck(t, builder, fileID)
	if !hasCode(bag, diag.OwnUseOutOfScope) {
		t.Fatalf("expected %v, got %v", diag.OwnUseOutOfScope, diagCodes(bag))
	}
}
