package borrowck

import (
	"vex/internal/ast"
	"vex/internal/source"
)

// immutability enforces `let` vs `let!` semantics: a binding declared
// without `!` can never be assigned, neither directly nor through a
// field or index projection.
//
// Bindings live in a scope stack pushed and popped at every block, so
// a shadowing declaration inside a nested block never leaks its
// mutability to the outer binding.
type immutability struct {
	b       *ast.Builder
	effects *Registry
	rep     *reporter

	scopes []map[source.StringID]bool
	base   int
}

func newImmutability(b *ast.Builder, effects *Registry, rep *reporter) *immutability {
	return &immutability{
		b:       b,
		effects: effects,
		rep:     rep,
		scopes:  []map[source.StringID]bool{make(map[source.StringID]bool)},
	}
}

func (c *immutability) push() {
	c.scopes = append(c.scopes, make(map[source.StringID]bool))
}

func (c *immutability) pop() {
	c.scopes = c.scopes[:len(c.scopes)-1]
}

func (c *immutability) declare(name source.StringID, mutable bool) {
	c.scopes[len(c.scopes)-1][name] = mutable
}

// declareGlobal registers a unit-scope binding, e.g. a constant.
func (c *immutability) declareGlobal(name source.StringID, mutable bool) {
	c.scopes[0][name] = mutable
}

// immutableBinding reports whether name resolves to a known binding
// that is immutable. Unknown names are not this pass's concern.
func (c *immutability) immutableBinding(name source.StringID) bool {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if mutable, ok := c.scopes[i][name]; ok {
			return !mutable
		}
	}
	return false
}

// failed reports whether this function body already has a violation;
// the first one aborts the rest of the body.
func (c *immutability) failed() bool {
	return c.rep.errs > c.base
}

func (c *immutability) checkFunction(fn *ast.ItemFnData) {
	c.base = c.rep.errs
	c.push()
	defer c.pop()

	// Parameters are local bindings and may be reassigned.
	for _, param := range fn.Params {
		c.declare(param.Name, true)
	}
	if recv := fn.Receiver; recv != nil {
		mutable := recv.Mutable
		if t := c.b.Types.Get(recv.Type); t != nil && t.Kind == ast.TypeRef && t.Mut {
			mutable = true
		}
		c.declare(recv.Name, mutable)
	}
	c.checkBlock(fn.Body)
}

func (c *immutability) checkBlock(body []ast.StmtID) {
	c.push()
	for _, id := range body {
		c.checkStmt(id)
	}
	c.pop()
}

func (c *immutability) checkStmt(id ast.StmtID) {
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
		c.checkExpr(let.Init)
		if let.Pattern.IsValid() {
			for _, name := range c.b.Patterns.Bindings(let.Pattern, nil) {
				c.declare(name, let.Mutable)
			}
			return
		}
		c.declare(let.Name, let.Mutable)

	case ast.StmtAssign:
		assign, _ := c.b.Stmts.Assign(id)
		c.checkAssignTarget(assign.Target, stmt.Span)
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
		c.push()
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
		c.pop()

	case ast.StmtForIn:
		forIn, _ := c.b.Stmts.ForIn(id)
		c.checkExpr(forIn.Iterable)
		c.push()
		// The loop variable is a fresh immutable binding per iteration.
		c.declare(forIn.Var, false)
		c.checkBlock(forIn.Body)
		c.pop()

	case ast.StmtBlock:
		block, _ := c.b.Stmts.Block(id)
		c.checkBlock(block.Body)

	case ast.StmtUnsafe:
		unsafe, _ := c.b.Stmts.Unsafe(id)
		c.checkBlock(unsafe.Body)
	}
}

// checkAssignTarget flags writes through an immutable binding. The base
// of a field or index projection carries the binding's mutability.
func (c *immutability) checkAssignTarget(target ast.ExprID, span source.Span) {
	expr := c.b.Exprs.Get(target)
	if expr == nil {
		return
	}
	switch expr.Kind {
	case ast.ExprIdent:
		ident, _ := c.b.Exprs.Ident(target)
		if c.immutableBinding(ident.Name) {
			c.rep.emit(&Error{
				Kind:     ErrAssignImmutable,
				Span:     span,
				Variable: c.b.Name(ident.Name),
			})
		}

	case ast.ExprMember:
		member, _ := c.b.Exprs.Member(target)
		if ident, ok := c.b.Exprs.Ident(member.Target); ok {
			if c.immutableBinding(ident.Name) {
				c.rep.emit(&Error{
					Kind:     ErrAssignImmutableField,
					Span:     span,
					Variable: c.b.Name(ident.Name),
					Field:    c.b.Name(member.Field),
				})
			}
			return
		}
		c.checkExpr(member.Target)

	case ast.ExprIndex:
		index, _ := c.b.Exprs.Index(target)
		if ident, ok := c.b.Exprs.Ident(index.Target); ok {
			if c.immutableBinding(ident.Name) {
				c.rep.emit(&Error{
					Kind:     ErrAssignImmutable,
					Span:     span,
					Variable: c.b.Name(ident.Name),
				})
			}
		} else {
			c.checkExpr(index.Target)
		}
		c.checkExpr(index.Index)

	case ast.ExprUnary:
		// Writes through a dereference target the pointee, not the
		// binding; the unsafe gate handles raw pointers.
		unary, _ := c.b.Exprs.Unary(target)
		c.checkExpr(unary.Operand)
	}
}

func (c *immutability) checkExpr(id ast.ExprID) {
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
		c.checkExpr(unary.Operand)

	case ast.ExprBinary:
		binary, _ := c.b.Exprs.Binary(id)
		c.checkExpr(binary.Left)
		c.checkExpr(binary.Right)

	case ast.ExprCall:
		call, _ := c.b.Exprs.Call(id)
		if ident, ok := c.b.Exprs.Ident(call.Target); !ok || !c.effects.IsBuiltin(c.b.Name(ident.Name)) {
			c.checkExpr(call.Target)
		}
		for _, arg := range call.Args {
			c.checkExpr(arg)
		}

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
			c.push()
			// Arm bindings behave like plain lets.
			for _, name := range c.b.Patterns.Bindings(arm.Pattern, nil) {
				c.declare(name, false)
			}
			c.checkExpr(arm.Guard)
			c.checkExpr(arm.Body)
			c.pop()
		}

	case ast.ExprBlock:
		block, _ := c.b.Exprs.Block(id)
		c.push()
		for _, s := range block.Stmts {
			c.checkStmt(s)
		}
		c.checkExpr(block.Result)
		c.pop()

	case ast.ExprClosure:
		closure, _ := c.b.Exprs.Closure(id)
		c.push()
		// Closure parameters are immutable bindings.
		for _, param := range closure.Params {
			c.declare(param.Name, false)
		}
		c.checkExpr(closure.Body)
		c.pop()

	case ast.ExprCast:
		cast, _ := c.b.Exprs.Cast(id)
		c.checkExpr(cast.Value)
	}
}
