package borrowck

import (
	"vex/internal/ast"
	"vex/internal/source"
)

// TypeOracle answers type questions the syntax alone cannot. The zero
// value (nil) makes the checker fall back to structural heuristics.
type TypeOracle interface {
	// IsRawPointer reports whether the expression has a raw pointer type.
	IsRawPointer(id ast.ExprID) bool
}

// borrowState tracks the active borrows of one binding. Either any
// number of shared borrows or exactly one exclusive borrow may be live.
type borrowState struct {
	shared    []source.Span
	exclusive source.Span
	hasExcl   bool
}

func (s *borrowState) any() bool {
	return s.hasExcl || len(s.shared) > 0
}

// firstSpan returns the span of one live borrow, for diagnostics.
func (s *borrowState) firstSpan() source.Span {
	if s.hasExcl {
		return s.exclusive
	}
	if len(s.shared) > 0 {
		return s.shared[0]
	}
	return source.Span{}
}

// borrows enforces the aliasing rules: one exclusive borrow XOR any
// number of shared borrows, no mutation or move of a borrowed binding,
// and no raw pointer dereference outside unsafe blocks.
//
// Borrows persist only when the reference is bound by a let or an
// assignment; a reference passed anonymously is validated against the
// live set but released at the end of its statement.
type borrows struct {
	b       *ast.Builder
	effects *Registry
	types   TypeOracle
	rep     *reporter

	states   map[source.StringID]*borrowState
	inUnsafe bool
	base     int
}

func newBorrows(b *ast.Builder, effects *Registry, types TypeOracle, rep *reporter) *borrows {
	return &borrows{
		b:       b,
		effects: effects,
		types:   types,
		rep:     rep,
		states:  make(map[source.StringID]*borrowState),
	}
}

func (c *borrows) checkFunction(fn *ast.ItemFnData) {
	c.states = make(map[source.StringID]*borrowState)
	c.inUnsafe = false
	c.base = c.rep.errs
	for _, id := range fn.Body {
		c.checkStmt(id)
	}
}

// failed reports whether this function body already has a violation;
// the first one aborts the rest of the body.
func (c *borrows) failed() bool {
	return c.rep.errs > c.base
}

func (c *borrows) state(name source.StringID) *borrowState {
	st, ok := c.states[name]
	if !ok {
		st = &borrowState{}
		c.states[name] = st
	}
	return st
}

// canBorrow validates a new borrow of name without recording it.
func (c *borrows) canBorrow(name source.StringID, exclusive bool, span source.Span) bool {
	st, ok := c.states[name]
	if !ok || !st.any() {
		return true
	}
	if exclusive {
		err := &Error{
			Kind:     ErrMutableBorrowConflict,
			Span:     span,
			Variable: c.b.Name(name),
		}
		c.rep.emitWithNote(err, st.firstSpan(), "existing borrow occurs here")
		return false
	}
	if st.hasExcl {
		err := &Error{
			Kind:     ErrImmutableBorrowConflict,
			Span:     span,
			Variable: c.b.Name(name),
		}
		c.rep.emitWithNote(err, st.exclusive, "mutable borrow occurs here")
		return false
	}
	return true
}

// recordBorrow validates and tracks a borrow of name created at span.
func (c *borrows) recordBorrow(name source.StringID, exclusive bool, span source.Span) {
	if !c.canBorrow(name, exclusive, span) {
		return
	}
	st := c.state(name)
	if exclusive {
		st.exclusive = span
		st.hasExcl = true
		return
	}
	st.shared = append(st.shared, span)
}

// borrowTarget unwraps a reference expression into (referent, exclusive)
// when the referent is a plain identifier.
func (c *borrows) borrowTarget(id ast.ExprID) (source.StringID, bool, bool) {
	unary, ok := c.b.Exprs.Unary(id)
	if !ok || (unary.Op != ast.ExprUnaryRef && unary.Op != ast.ExprUnaryRefMut) {
		return source.NoStringID, false, false
	}
	ident, ok := c.b.Exprs.Ident(unary.Operand)
	if !ok {
		return source.NoStringID, false, false
	}
	return ident.Name, unary.Op == ast.ExprUnaryRefMut, true
}

func (c *borrows) checkBlock(body []ast.StmtID) {
	for _, id := range body {
		c.checkStmt(id)
	}
}

func (c *borrows) checkStmt(id ast.StmtID) {
	if c.failed() {
		return
	}
	stmt := c.b.Stmts.Get(id)
	if stmt == nil {
		return
	}
	switch stmt.Kind {
	case ast.StmtLet:
		let, _ := c.b.Stmts.Let(id)
		// A let-bound reference keeps its borrow live past this
		// statement; destructuring lets never bind references.
		if !let.Pattern.IsValid() {
			if referent, exclusive, ok := c.borrowTarget(let.Init); ok {
				c.recordBorrow(referent, exclusive, stmt.Span)
				return
			}
		}
		c.checkExpr(let.Init)

	case ast.StmtAssign:
		assign, _ := c.b.Stmts.Assign(id)
		if ident, ok := c.b.Exprs.Ident(assign.Target); ok {
			if st, tracked := c.states[ident.Name]; tracked && st.any() {
				err := &Error{
					Kind:     ErrMutationWhileBorrowed,
					Span:     stmt.Span,
					Variable: c.b.Name(ident.Name),
				}
				c.rep.emitWithNote(err, st.firstSpan(), "borrow occurs here")
				return
			}
		}
		c.checkExpr(assign.Target)
		// A compound op updates the target in place and never rebinds
		// it to the reference on the right.
		if !assign.Op.Compound() {
			if referent, exclusive, ok := c.borrowTarget(assign.Value); ok {
				c.recordBorrow(referent, exclusive, stmt.Span)
				return
			}
		}
		c.checkExpr(assign.Value)

	case ast.StmtReturn:
		ret, _ := c.b.Stmts.Return(id)
		if ret.Value.IsValid() {
			c.checkExpr(ret.Value)
		}

	case ast.StmtExpr:
		es, _ := c.b.Stmts.Expr(id)
		c.checkExpr(es.Expr)

	case ast.StmtIf:
		ifs, _ := c.b.Stmts.If(id)
		c.checkExpr(ifs.Cond)
		c.checkBlock(ifs.Then)
		for _, elif := range ifs.Elifs {
			c.checkExpr(elif.Cond)
			c.checkBlock(elif.Body)
		}
		c.checkBlock(ifs.Else)

	case ast.StmtWhile:
		while, _ := c.b.Stmts.While(id)
		c.checkExpr(while.Cond)
		c.checkBlock(while.Body)

	case ast.StmtFor:
		fors, _ := c.b.Stmts.For(id)
		if fors.Init.IsValid() {
			c.checkStmt(fors.Init)
		}
		if fors.Cond.IsValid() {
			c.checkExpr(fors.Cond)
		}
		if fors.Post.IsValid() {
			c.checkStmt(fors.Post)
		}
		c.checkBlock(fors.Body)

	case ast.StmtForIn:
		forIn, _ := c.b.Stmts.ForIn(id)
		c.checkExpr(forIn.Iterable)
		c.checkBlock(forIn.Body)

	case ast.StmtBlock:
		block, _ := c.b.Stmts.Block(id)
		c.checkBlock(block.Body)

	case ast.StmtUnsafe:
		unsafe, _ := c.b.Stmts.Unsafe(id)
		prev := c.inUnsafe
		c.inUnsafe = true
		c.checkBlock(unsafe.Body)
		c.inUnsafe = prev
	}
}

func (c *borrows) checkExpr(id ast.ExprID) {
	if !id.IsValid() || c.failed() {
		return
	}
	expr := c.b.Exprs.Get(id)
	if expr == nil {
		return
	}
	switch expr.Kind {
	case ast.ExprUnary:
		unary, _ := c.b.Exprs.Unary(id)
		switch unary.Op {
		case ast.ExprUnaryRef, ast.ExprUnaryRefMut:
			if ident, ok := c.b.Exprs.Ident(unary.Operand); ok {
				c.canBorrow(ident.Name, unary.Op == ast.ExprUnaryRefMut, expr.Span)
			}
			c.checkExpr(unary.Operand)
		case ast.ExprUnaryDeref:
			c.checkExpr(unary.Operand)
			if !c.inUnsafe && c.likelyRawPointer(unary.Operand) {
				c.rep.emit(&Error{
					Kind:      ErrUnsafeOutsideBlock,
					Span:      expr.Span,
					Operation: "raw pointer dereference",
				})
			}
		default:
			c.checkExpr(unary.Operand)
		}

	case ast.ExprBinary:
		binary, _ := c.b.Exprs.Binary(id)
		c.checkExpr(binary.Left)
		c.checkExpr(binary.Right)

	case ast.ExprCall:
		c.checkCall(id)

	case ast.ExprMember:
		member, _ := c.b.Exprs.Member(id)
		c.checkExpr(member.Target)

	case ast.ExprIndex:
		index, _ := c.b.Exprs.Index(id)
		c.checkExpr(index.Target)
		c.checkExpr(index.Index)

	case ast.ExprArray:
		array, _ := c.b.Exprs.Array(id)
		for _, elem := range array.Elements {
			c.checkExpr(elem)
		}

	case ast.ExprTuple:
		tuple, _ := c.b.Exprs.Tuple(id)
		for _, elem := range tuple.Elements {
			c.checkExpr(elem)
		}

	case ast.ExprStruct:
		lit, _ := c.b.Exprs.Struct(id)
		for _, field := range lit.Fields {
			c.checkExpr(field.Value)
		}

	case ast.ExprMatch:
		match, _ := c.b.Exprs.Match(id)
		c.checkExpr(match.Value)
		for _, arm := range match.Arms {
			c.checkExpr(arm.Guard)
			c.checkExpr(arm.Body)
		}

	case ast.ExprBlock:
		block, _ := c.b.Exprs.Block(id)
		c.checkBlock(block.Stmts)
		c.checkExpr(block.Result)

	case ast.ExprClosure:
		// Closure parameters are validated by the lifetime pass.
		closure, _ := c.b.Exprs.Closure(id)
		c.checkExpr(closure.Body)

	case ast.ExprCast:
		cast, _ := c.b.Exprs.Cast(id)
		c.checkExpr(cast.Value)
	}
}

// checkCall applies the effect registry to builtin calls: passing a
// borrowed binding to a mutating or consuming parameter is an error.
func (c *borrows) checkCall(id ast.ExprID) {
	call, _ := c.b.Exprs.Call(id)
	callee := source.NoStringID
	if ident, ok := c.b.Exprs.Ident(call.Target); ok {
		callee = ident.Name
	}
	calleeName := ""
	if callee != source.NoStringID {
		calleeName = c.b.Name(callee)
	}
	if calleeName == "" || !c.effects.IsBuiltin(calleeName) {
		c.checkExpr(call.Target)
	}

	meta, isBuiltin := Metadata{}, false
	if calleeName != "" {
		meta, isBuiltin = c.effects.Get(calleeName)
	}

	span := c.b.Exprs.Get(id).Span
	for i, arg := range call.Args {
		if c.failed() {
			return
		}
		if isBuiltin && i < len(meta.Effects) {
			if ident, ok := c.b.Exprs.Ident(arg); ok {
				c.checkArgEffect(ident.Name, meta.Effects[i], span)
			}
		}
		c.checkExpr(arg)
	}
}

func (c *borrows) checkArgEffect(name source.StringID, effect ParamEffect, span source.Span) {
	st, tracked := c.states[name]
	if !tracked || !st.any() {
		return
	}
	switch effect {
	case EffectMutates, EffectBorrowsMut:
		err := &Error{
			Kind:     ErrMutationWhileBorrowed,
			Span:     span,
			Variable: c.b.Name(name),
		}
		c.rep.emitWithNote(err, st.firstSpan(), "borrow occurs here")
	case EffectMoves:
		err := &Error{
			Kind:     ErrMoveWhileBorrowed,
			Span:     span,
			Variable: c.b.Name(name),
		}
		c.rep.emitWithNote(err, st.firstSpan(), "borrow occurs here")
	}
}

// likelyRawPointer is a structural judgment: a cast to a raw pointer
// type or a call to an allocator yields a raw pointer. Plain
// identifiers are resolved through the type oracle when one is wired;
// without it they pass, since syntax alone cannot tell a raw pointer
// variable from a box.
func (c *borrows) likelyRawPointer(id ast.ExprID) bool {
	expr := c.b.Exprs.Get(id)
	if expr == nil {
		return false
	}
	switch expr.Kind {
	case ast.ExprCast:
		cast, _ := c.b.Exprs.Cast(id)
		return c.b.Types.IsRawPtr(cast.Type)
	case ast.ExprCall:
		call, _ := c.b.Exprs.Call(id)
		ident, ok := c.b.Exprs.Ident(call.Target)
		if !ok {
			return false
		}
		switch c.b.Name(ident.Name) {
		case "malloc", "alloc", "realloc", "calloc":
			return true
		}
		return false
	case ast.ExprIdent:
		if c.types != nil {
			return c.types.IsRawPointer(id)
		}
		return false
	}
	return false
}
