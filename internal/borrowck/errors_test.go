package borrowck

import (
	"strings"
	"testing"

	"vex/internal/diag"
)

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		err  Error
		want string
	}{
		{Error{Kind: ErrAssignImmutable, Variable: "x"}, "cannot assign to immutable variable `x`"},
		{Error{Kind: ErrAssignImmutableField, Variable: "p", Field: "x"}, "cannot assign to field `x` of immutable variable `p`"},
		{Error{Kind: ErrMutableBorrowConflict, Variable: "x"}, "cannot borrow `x` as mutable because it is also borrowed"},
		{Error{Kind: ErrImmutableBorrowConflict, Variable: "x"}, "cannot borrow `x` as immutable because it is also borrowed as mutable"},
		{Error{Kind: ErrMutationWhileBorrowed, Variable: "x"}, "cannot assign to `x` because it is borrowed"},
		{Error{Kind: ErrMoveWhileBorrowed, Variable: "x"}, "cannot move `x` because it is borrowed"},
		{Error{Kind: ErrUnsafeOutsideBlock, Operation: "raw pointer dereference"}, "unsafe operation `raw pointer dereference` outside unsafe block"},
		{Error{Kind: ErrUseAfterScopeEnd, Variable: "y"}, "use of variable `y` after its scope ended"},
		{Error{Kind: ErrDanglingReference, Variable: "r", Referent: "inner"}, "reference `r` outlives referenced variable `inner`"},
		{Error{Kind: ErrReturnDangling, Variable: "x"}, "cannot return reference to local variable `x`"},
	}
	for _, tc := range cases {
		if got := tc.err.Message(); got != tc.want {
			t.Errorf("kind %d: got %q, want %q", tc.err.Kind, got, tc.want)
		}
	}
}

func TestErrorCodes(t *testing.T) {
	cases := []struct {
		kind ErrorKind
		want diag.Code
	}{
		{ErrAssignImmutable, diag.OwnAssignImmutable},
		{ErrAssignImmutableField, diag.OwnAssignImmutableField},
		{ErrMutableBorrowConflict, diag.OwnBorrowConflict},
		{ErrImmutableBorrowConflict, diag.OwnBorrowConflict},
		{ErrMutationWhileBorrowed, diag.OwnMutationWhileBorrow},
		{ErrMoveWhileBorrowed, diag.OwnMoveWhileBorrow},
		{ErrUnsafeOutsideBlock, diag.OwnUnsafeDeref},
		{ErrUseAfterScopeEnd, diag.OwnUseOutOfScope},
		{ErrDanglingReference, diag.OwnDanglingReference},
		{ErrReturnDangling, diag.OwnReturnDangling},
	}
	for _, tc := range cases {
		e := Error{Kind: tc.kind}
		if got := e.Code(); got != tc.want {
			t.Errorf("kind %d: got %v, want %v", tc.kind, got, tc.want)
		}
	}
}

func TestErrorHelp(t *testing.T) {
	e := Error{Kind: ErrAssignImmutable, Variable: "x"}
	help := e.Help()
	if len(help) != 1 || !strings.Contains(help[0], "let! x") {
		t.Fatalf("unexpected help: %v", help)
	}

	e = Error{Kind: ErrUseAfterScopeEnd, Variable: "y", Available: []string{"a", "b"}}
	help = e.Help()
	if len(help) != 1 || help[0] != "in scope: a, b" {
		t.Fatalf("unexpected help: %v", help)
	}

	e = Error{Kind: ErrUseAfterScopeEnd, Variable: "y"}
	if help = e.Help(); help != nil {
		t.Fatalf("expected no help without scope names, got %v", help)
	}
}

func TestErrorDiagnosticCarriesHelpAsNotes(t *testing.T) {
	e := Error{Kind: ErrAssignImmutableField, Variable: "p", Field: "x"}
	d := e.Diagnostic()
	if d.Severity != diag.SevError {
		t.Fatalf("expected error severity, got %v", d.Severity)
	}
	if d.Code != diag.OwnAssignImmutableField {
		t.Fatalf("expected %v, got %v", diag.OwnAssignImmutableField, d.Code)
	}
	if len(d.Notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(d.Notes))
	}
}
