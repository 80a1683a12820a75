package borrowck

import (
	"fmt"
	"strings"

	"vex/internal/diag"
	"vex/internal/source"
)

type ErrorKind uint8

const (
	ErrAssignImmutable ErrorKind = iota
	ErrAssignImmutableField
	// ErrMutableBorrowConflict: `&x!` while x is already borrowed.
	ErrMutableBorrowConflict
	// ErrImmutableBorrowConflict: `&x` while x is mutably borrowed.
	ErrImmutableBorrowConflict
	ErrMutationWhileBorrowed
	ErrMoveWhileBorrowed
	ErrUnsafeOutsideBlock
	ErrUseAfterScopeEnd
	ErrDanglingReference
	ErrReturnDangling
)

// Error is one ownership violation. Which fields are meaningful depends
// on Kind; Variable is always set except for ErrUnsafeOutsideBlock.
type Error struct {
	Kind      ErrorKind
	Span      source.Span
	Variable  string
	Field     string
	Referent  string
	Operation string
	Available []string
}

// Code maps the violation to its diagnostic code.
func (e *Error) Code() diag.Code {
	switch e.Kind {
	case ErrAssignImmutable:
		return diag.OwnAssignImmutable
	case ErrAssignImmutableField:
		return diag.OwnAssignImmutableField
	case ErrMutableBorrowConflict, ErrImmutableBorrowConflict:
		return diag.OwnBorrowConflict
	case ErrMutationWhileBorrowed:
		return diag.OwnMutationWhileBorrow
	case ErrMoveWhileBorrowed:
		return diag.OwnMoveWhileBorrow
	case ErrUnsafeOutsideBlock:
		return diag.OwnUnsafeDeref
	case ErrUseAfterScopeEnd:
		return diag.OwnUseOutOfScope
	case ErrDanglingReference:
		return diag.OwnDanglingReference
	case ErrReturnDangling:
		return diag.OwnReturnDangling
	}
	return diag.UnknownCode
}

// Message is the primary diagnostic line.
func (e *Error) Message() string {
	switch e.Kind {
	case ErrAssignImmutable:
		return fmt.Sprintf("cannot assign to immutable variable `%s`", e.Variable)
	case ErrAssignImmutableField:
		return fmt.Sprintf("cannot assign to field `%s` of immutable variable `%s`", e.Field, e.Variable)
	case ErrMutableBorrowConflict:
		return fmt.Sprintf("cannot borrow `%s` as mutable because it is also borrowed", e.Variable)
	case ErrImmutableBorrowConflict:
		return fmt.Sprintf("cannot borrow `%s` as immutable because it is also borrowed as mutable", e.Variable)
	case ErrMutationWhileBorrowed:
		return fmt.Sprintf("cannot assign to `%s` because it is borrowed", e.Variable)
	case ErrMoveWhileBorrowed:
		return fmt.Sprintf("cannot move `%s` because it is borrowed", e.Variable)
	case ErrUnsafeOutsideBlock:
		return fmt.Sprintf("unsafe operation `%s` outside unsafe block", e.Operation)
	case ErrUseAfterScopeEnd:
		return fmt.Sprintf("use of variable `%s` after its scope ended", e.Variable)
	case ErrDanglingReference:
		return fmt.Sprintf("reference `%s` outlives referenced variable `%s`", e.Variable, e.Referent)
	case ErrReturnDangling:
		return fmt.Sprintf("cannot return reference to local variable `%s`", e.Variable)
	}
	return "ownership violation"
}

// Help returns follow-up note lines for the diagnostic.
func (e *Error) Help() []string {
	switch e.Kind {
	case ErrAssignImmutable:
		return []string{fmt.Sprintf("consider making this binding mutable: `let! %s`", e.Variable)}
	case ErrAssignImmutableField:
		return []string{
			fmt.Sprintf("consider making this binding mutable: `let! %s`", e.Variable),
			"or if this is a method, add `!` to make it mutable: `fn method()!`",
		}
	case ErrUnsafeOutsideBlock:
		return []string{"wrap this operation in an `unsafe { ... }` block"}
	case ErrUseAfterScopeEnd:
		if len(e.Available) == 0 {
			return nil
		}
		return []string{"in scope: " + strings.Join(e.Available, ", ")}
	case ErrReturnDangling:
		return []string{"consider returning an owned value instead"}
	}
	return nil
}

func (e *Error) Error() string {
	return e.Message()
}

// Diagnostic converts the violation to a reportable diagnostic.
func (e *Error) Diagnostic() diag.Diagnostic {
	d := diag.Diagnostic{
		Severity: diag.SevError,
		Code:     e.Code(),
		Message:  e.Message(),
		Primary:  e.Span,
	}
	for _, help := range e.Help() {
		d = d.WithNote(e.Span, help)
	}
	return d
}
