package ast

import (
	"vex/internal/source"
)

type StmtKind uint8

const (
	StmtLet StmtKind = iota
	StmtAssign
	StmtReturn
	StmtExpr
	StmtIf
	StmtWhile
	StmtFor
	StmtForIn
	StmtBlock
	StmtUnsafe
	StmtBreak
	StmtContinue
)

type Stmt struct {
	Kind    StmtKind
	Span    source.Span
	Payload PayloadID
}

type AssignOp uint8

const (
	// AssignSet is plain `=`.
	AssignSet AssignOp = iota
	AssignAdd
	AssignSub
	AssignMul
	AssignDiv
	AssignMod
)

// Compound reports whether the op reads the target before writing it.
func (op AssignOp) Compound() bool { return op != AssignSet }

// StmtLetData declares a binding. When Pattern is valid the let is a
// destructuring declaration and Name is unset; otherwise Name holds the
// single bound identifier.
type StmtLetData struct {
	Name    source.StringID
	Pattern PatternID
	Type    TypeID
	Init    ExprID
	Mutable bool
}

type StmtAssignData struct {
	Op     AssignOp
	Target ExprID
	Value  ExprID
}

type StmtReturnData struct {
	Value ExprID
}

type StmtExprData struct {
	Expr ExprID
}

type ElifBranch struct {
	Cond ExprID
	Body []StmtID
}

type StmtIfData struct {
	Cond  ExprID
	Then  []StmtID
	Elifs []ElifBranch
	Else  []StmtID
}

type StmtWhileData struct {
	Cond ExprID
	Body []StmtID
}

type StmtForData struct {
	Init StmtID
	Cond ExprID
	Post StmtID
	Body []StmtID
}

type StmtForInData struct {
	Var      source.StringID
	Iterable ExprID
	Body     []StmtID
}

type StmtBlockData struct {
	Body []StmtID
}

type StmtUnsafeData struct {
	Body []StmtID
}
