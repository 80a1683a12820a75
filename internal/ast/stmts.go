package ast

import (
	"vex/internal/source"
)

// Stmts manages allocation of statements.
type Stmts struct {
	Arena   *Arena[Stmt]
	Lets    *Arena[StmtLetData]
	Assigns *Arena[StmtAssignData]
	Returns *Arena[StmtReturnData]
	Exprs   *Arena[StmtExprData]
	Ifs     *Arena[StmtIfData]
	Whiles  *Arena[StmtWhileData]
	Fors    *Arena[StmtForData]
	ForIns  *Arena[StmtForInData]
	Blocks  *Arena[StmtBlockData]
	Unsafes *Arena[StmtUnsafeData]
}

func NewStmts(capHint uint) *Stmts {
	if capHint == 0 {
		capHint = 1 << 8
	}
	return &Stmts{
		Arena:   NewArena[Stmt](capHint),
		Lets:    NewArena[StmtLetData](capHint),
		Assigns: NewArena[StmtAssignData](capHint),
		Returns: NewArena[StmtReturnData](capHint),
		Exprs:   NewArena[StmtExprData](capHint),
		Ifs:     NewArena[StmtIfData](capHint),
		Whiles:  NewArena[StmtWhileData](capHint),
		Fors:    NewArena[StmtForData](capHint),
		ForIns:  NewArena[StmtForInData](capHint),
		Blocks:  NewArena[StmtBlockData](capHint),
		Unsafes: NewArena[StmtUnsafeData](capHint),
	}
}

func (s *Stmts) new(kind StmtKind, span source.Span, payload PayloadID) StmtID {
	return StmtID(s.Arena.Allocate(Stmt{
		Kind:    kind,
		Span:    span,
		Payload: payload,
	}))
}

// Get returns the statement with the given ID.
func (s *Stmts) Get(id StmtID) *Stmt {
	return s.Arena.Get(uint32(id))
}

// NewLet creates a single-name let declaration.
func (s *Stmts) NewLet(span source.Span, name source.StringID, typ TypeID, init ExprID, mutable bool) StmtID {
	payload := s.Lets.Allocate(StmtLetData{
		Name:    name,
		Type:    typ,
		Init:    init,
		Mutable: mutable,
	})
	return s.new(StmtLet, span, PayloadID(payload))
}

// NewLetPattern creates a destructuring let declaration.
func (s *Stmts) NewLetPattern(span source.Span, pattern PatternID, typ TypeID, init ExprID, mutable bool) StmtID {
	payload := s.Lets.Allocate(StmtLetData{
		Pattern: pattern,
		Type:    typ,
		Init:    init,
		Mutable: mutable,
	})
	return s.new(StmtLet, span, PayloadID(payload))
}

// Let returns the let data for the given statement ID.
func (s *Stmts) Let(id StmtID) (*StmtLetData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtLet {
		return nil, false
	}
	return s.Lets.Get(uint32(stmt.Payload)), true
}

// NewAssign creates an assignment statement.
func (s *Stmts) NewAssign(span source.Span, op AssignOp, target, value ExprID) StmtID {
	payload := s.Assigns.Allocate(StmtAssignData{Op: op, Target: target, Value: value})
	return s.new(StmtAssign, span, PayloadID(payload))
}

// Assign returns the assignment data for the given statement ID.
func (s *Stmts) Assign(id StmtID) (*StmtAssignData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtAssign {
		return nil, false
	}
	return s.Assigns.Get(uint32(stmt.Payload)), true
}

// NewReturn creates a return statement. Value may be NoExprID.
func (s *Stmts) NewReturn(span source.Span, value ExprID) StmtID {
	payload := s.Returns.Allocate(StmtReturnData{Value: value})
	return s.new(StmtReturn, span, PayloadID(payload))
}

// Return returns the return data for the given statement ID.
func (s *Stmts) Return(id StmtID) (*StmtReturnData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtReturn {
		return nil, false
	}
	return s.Returns.Get(uint32(stmt.Payload)), true
}

// NewExpr creates an expression statement.
func (s *Stmts) NewExpr(span source.Span, expr ExprID) StmtID {
	payload := s.Exprs.Allocate(StmtExprData{Expr: expr})
	return s.new(StmtExpr, span, PayloadID(payload))
}

// Expr returns the expression statement data for the given statement ID.
func (s *Stmts) Expr(id StmtID) (*StmtExprData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtExpr {
		return nil, false
	}
	return s.Exprs.Get(uint32(stmt.Payload)), true
}

// NewIf creates an if statement with optional elif and else branches.
func (s *Stmts) NewIf(span source.Span, cond ExprID, then []StmtID, elifs []ElifBranch, els []StmtID) StmtID {
	payload := s.Ifs.Allocate(StmtIfData{
		Cond:  cond,
		Then:  append([]StmtID(nil), then...),
		Elifs: append([]ElifBranch(nil), elifs...),
		Else:  append([]StmtID(nil), els...),
	})
	return s.new(StmtIf, span, PayloadID(payload))
}

// If returns the if data for the given statement ID.
func (s *Stmts) If(id StmtID) (*StmtIfData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtIf {
		return nil, false
	}
	return s.Ifs.Get(uint32(stmt.Payload)), true
}

// NewWhile creates a while loop.
func (s *Stmts) NewWhile(span source.Span, cond ExprID, body []StmtID) StmtID {
	payload := s.Whiles.Allocate(StmtWhileData{
		Cond: cond,
		Body: append([]StmtID(nil), body...),
	})
	return s.new(StmtWhile, span, PayloadID(payload))
}

// While returns the while data for the given statement ID.
func (s *Stmts) While(id StmtID) (*StmtWhileData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtWhile {
		return nil, false
	}
	return s.Whiles.Get(uint32(stmt.Payload)), true
}

// NewFor creates a C-style for loop. Init and Post may be NoStmtID and
// Cond may be NoExprID.
func (s *Stmts) NewFor(span source.Span, init StmtID, cond ExprID, post StmtID, body []StmtID) StmtID {
	payload := s.Fors.Allocate(StmtForData{
		Init: init,
		Cond: cond,
		Post: post,
		Body: append([]StmtID(nil), body...),
	})
	return s.new(StmtFor, span, PayloadID(payload))
}

// For returns the for data for the given statement ID.
func (s *Stmts) For(id StmtID) (*StmtForData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtFor {
		return nil, false
	}
	return s.Fors.Get(uint32(stmt.Payload)), true
}

// NewForIn creates an iterator loop binding a fresh loop variable.
func (s *Stmts) NewForIn(span source.Span, v source.StringID, iterable ExprID, body []StmtID) StmtID {
	payload := s.ForIns.Allocate(StmtForInData{
		Var:      v,
		Iterable: iterable,
		Body:     append([]StmtID(nil), body...),
	})
	return s.new(StmtForIn, span, PayloadID(payload))
}

// ForIn returns the for-in data for the given statement ID.
func (s *Stmts) ForIn(id StmtID) (*StmtForInData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtForIn {
		return nil, false
	}
	return s.ForIns.Get(uint32(stmt.Payload)), true
}

// NewBlock creates a bare block statement.
func (s *Stmts) NewBlock(span source.Span, body []StmtID) StmtID {
	payload := s.Blocks.Allocate(StmtBlockData{
		Body: append([]StmtID(nil), body...),
	})
	return s.new(StmtBlock, span, PayloadID(payload))
}

// Block returns the block data for the given statement ID.
func (s *Stmts) Block(id StmtID) (*StmtBlockData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtBlock {
		return nil, false
	}
	return s.Blocks.Get(uint32(stmt.Payload)), true
}

// NewUnsafe creates an unsafe block statement.
func (s *Stmts) NewUnsafe(span source.Span, body []StmtID) StmtID {
	payload := s.Unsafes.Allocate(StmtUnsafeData{
		Body: append([]StmtID(nil), body...),
	})
	return s.new(StmtUnsafe, span, PayloadID(payload))
}

// Unsafe returns the unsafe block data for the given statement ID.
func (s *Stmts) Unsafe(id StmtID) (*StmtUnsafeData, bool) {
	stmt := s.Get(id)
	if stmt == nil || stmt.Kind != StmtUnsafe {
		return nil, false
	}
	return s.Unsafes.Get(uint32(stmt.Payload)), true
}

// NewBreak creates a break statement.
func (s *Stmts) NewBreak(span source.Span) StmtID {
	return s.new(StmtBreak, span, NoPayloadID)
}

// NewContinue creates a continue statement.
func (s *Stmts) NewContinue(span source.Span) StmtID {
	return s.new(StmtContinue, span, NoPayloadID)
}
