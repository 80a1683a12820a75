package ast

import (
	"vex/internal/source"
)

type ExprKind uint8

const (
	ExprIdent ExprKind = iota
	ExprLit
	ExprUnary
	ExprBinary
	ExprCall
	ExprMember
	ExprIndex
	ExprArray
	ExprTuple
	ExprStruct
	ExprMatch
	ExprBlock
	ExprClosure
	ExprCast
)

type Expr struct {
	Kind    ExprKind
	Span    source.Span
	Payload PayloadID
}
