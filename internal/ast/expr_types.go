package ast

import (
	"vex/internal/source"
)

type ExprLitKind uint8

const (
	ExprLitInt ExprLitKind = iota
	ExprLitFloat
	ExprLitString
	ExprLitTrue
	ExprLitFalse
	ExprLitNil
)

type ExprUnaryOp uint8

const (
	// ExprUnaryRef is `&x`, a shared borrow.
	ExprUnaryRef ExprUnaryOp = iota
	// ExprUnaryRefMut is `&x!`, an exclusive borrow.
	ExprUnaryRefMut
	// ExprUnaryDeref is `*x`.
	ExprUnaryDeref
	ExprUnaryNeg
	ExprUnaryNot
)

type ExprBinaryOp uint8

const (
	ExprBinaryAdd ExprBinaryOp = iota
	ExprBinarySub
	ExprBinaryMul
	ExprBinaryDiv
	ExprBinaryMod
	ExprBinaryEq
	ExprBinaryNe
	ExprBinaryLt
	ExprBinaryLe
	ExprBinaryGt
	ExprBinaryGe
	ExprBinaryAnd
	ExprBinaryOr
)

// CaptureMode is the resolved invocation capability of a closure.
// Every closure literal starts at CaptureInfer; the capture analyzer
// resolves it exactly once and never revisits it.
type CaptureMode uint8

const (
	CaptureInfer CaptureMode = iota
	// CaptureImmutable: captures are read-only, repeatable invocation.
	CaptureImmutable
	// CaptureMutable: at least one capture is reassigned; invocation
	// requires exclusive access to the captured state.
	CaptureMutable
	// CaptureOnce: a capture is consumed; single-use.
	CaptureOnce
)

func (m CaptureMode) String() string {
	switch m {
	case CaptureInfer:
		return "infer"
	case CaptureImmutable:
		return "immutable"
	case CaptureMutable:
		return "mutable"
	case CaptureOnce:
		return "once"
	}
	return "unknown"
}

// Resolved reports whether the mode left the initial placeholder state.
func (m CaptureMode) Resolved() bool { return m != CaptureInfer }

type ExprIdentData struct {
	Name source.StringID
}

type ExprLiteralData struct {
	Kind  ExprLitKind
	Value source.StringID
}

type ExprUnaryData struct {
	Op      ExprUnaryOp
	Operand ExprID
}

type ExprBinaryData struct {
	Op    ExprBinaryOp
	Left  ExprID
	Right ExprID
}

type ExprCallData struct {
	Target ExprID
	Args   []ExprID
}

type ExprMemberData struct {
	Target ExprID
	Field  source.StringID
}

type ExprIndexData struct {
	Target ExprID
	Index  ExprID
}

type ExprArrayData struct {
	Elements []ExprID
}

type ExprTupleData struct {
	Elements []ExprID
}

type ExprStructField struct {
	Name  source.StringID
	Value ExprID
}

type ExprStructData struct {
	Type   TypeID
	Fields []ExprStructField
}

type ExprMatchArm struct {
	Pattern PatternID
	Guard   ExprID
	Body    ExprID
}

type ExprMatchData struct {
	Value ExprID
	Arms  []ExprMatchArm
}

type ExprBlockData struct {
	Stmts  []StmtID
	Result ExprID
}

type ClosureParam struct {
	Name source.StringID
	Type TypeID
}

type ExprClosureData struct {
	Params []ClosureParam
	Body   ExprID
	// Capture starts as CaptureInfer and is resolved in place by the
	// capture analyzer for consumption by code generation.
	Capture CaptureMode
}

type ExprCastData struct {
	Value ExprID
	Type  TypeID
}
