package borrowck

import (
	"sort"

	"vex/internal/ast"
	"vex/internal/source"
)

// savedBinding remembers what a name mapped to before the current
// scope shadowed it, so exiting the scope restores the outer binding.
type savedBinding struct {
	name source.StringID
	prev int
	had  bool
}

// lifetimes tracks scope depths to reject uses of dead bindings and
// references that outlive their referents. Depth 0 holds globals,
// depth 1 the parameters of the current function, depth 2 and beyond
// its body blocks. A reference stored in a shallower binding than its
// referent dangles once the referent's scope ends; returning a
// reference to anything deeper than the parameters dangles always.
type lifetimes struct {
	b       *ast.Builder
	effects *Registry
	rep     *reporter

	depth   map[source.StringID]int
	frames  [][]savedBinding
	refs    map[source.StringID]source.StringID
	current int
	base    int
}

func newLifetimes(b *ast.Builder, effects *Registry, rep *reporter) *lifetimes {
	return &lifetimes{
		b:       b,
		effects: effects,
		rep:     rep,
		depth:   make(map[source.StringID]int),
		refs:    make(map[source.StringID]source.StringID),
	}
}

func (c *lifetimes) enterScope() {
	c.current++
	c.frames = append(c.frames, nil)
}

func (c *lifetimes) exitScope() {
	frame := c.frames[len(c.frames)-1]
	c.frames = c.frames[:len(c.frames)-1]
	for i := len(frame) - 1; i >= 0; i-- {
		saved := frame[i]
		if saved.had {
			c.depth[saved.name] = saved.prev
		} else {
			delete(c.depth, saved.name)
		}
	}
	c.current--
}

func (c *lifetimes) declare(name source.StringID) {
	if c.current > 0 {
		prev, had := c.depth[name]
		top := len(c.frames) - 1
		c.frames[top] = append(c.frames[top], savedBinding{name: name, prev: prev, had: had})
	}
	c.depth[name] = c.current
}

// declareGlobal registers a unit-scope name that never leaves scope.
func (c *lifetimes) declareGlobal(name source.StringID) {
	c.depth[name] = 0
}

func (c *lifetimes) inScope(name source.StringID) bool {
	_, ok := c.depth[name]
	return ok
}

// available returns every visible name, sorted for stable diagnostics.
func (c *lifetimes) available() []string {
	names := make([]string, 0, len(c.depth))
	for id := range c.depth {
		names = append(names, c.b.Name(id))
	}
	sort.Strings(names)
	return names
}

// failed reports whether this function body already has a violation;
// the first one aborts the rest of the body.
func (c *lifetimes) failed() bool {
	return c.rep.errs > c.base
}

func (c *lifetimes) checkFunction(fn *ast.ItemFnData) {
	c.refs = make(map[source.StringID]source.StringID)
	c.base = c.rep.errs

	c.enterScope()
	if recv := fn.Receiver; recv != nil {
		c.declare(recv.Name)
	}
	for _, param := range fn.Params {
		c.declare(param.Name)
	}

	c.enterScope()
	c.checkBlock(fn.Body)
	c.exitScope()

	c.exitScope()
}

func (c *lifetimes) checkBlock(body []ast.StmtID) {
	for _, id := range body {
		c.checkStmt(id)
	}
}

func (c *lifetimes) checkStmt(id ast.StmtID) {
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
		if let.Pattern.IsValid() {
			c.checkExpr(let.Init)
			for _, name := range c.b.Patterns.Bindings(let.Pattern, nil) {
				c.declare(name)
			}
			return
		}
		if referent, _, ok := c.refTarget(let.Init); ok {
			c.refs[let.Name] = referent
			if !c.inScope(referent) {
				c.rep.emit(&Error{
					Kind:     ErrDanglingReference,
					Span:     stmt.Span,
					Variable: c.b.Name(let.Name),
					Referent: c.b.Name(referent),
				})
			}
		}
		c.checkExpr(let.Init)
		c.declare(let.Name)

	case ast.StmtAssign:
		assign, _ := c.b.Stmts.Assign(id)
		c.checkExpr(assign.Target)
		c.checkExpr(assign.Value)
		if c.failed() {
			return
		}
		// A compound op updates the target in place and never rebinds
		// it to the reference on the right.
		if assign.Op.Compound() {
			return
		}
		ident, ok := c.b.Exprs.Ident(assign.Target)
		if !ok {
			return
		}
		referent, _, isRef := c.refTarget(assign.Value)
		if !isRef {
			return
		}
		// Storing a reference in an outer binding while the referent
		// lives in an inner scope dangles when that scope ends.
		if targetDepth, ok := c.depth[referent]; ok {
			if refDepth, ok := c.depth[ident.Name]; ok && targetDepth > refDepth {
				c.rep.emit(&Error{
					Kind:     ErrDanglingReference,
					Span:     stmt.Span,
					Variable: c.b.Name(ident.Name),
					Referent: c.b.Name(referent),
				})
			}
		}
		c.refs[ident.Name] = referent

	case ast.StmtReturn:
		ret, _ := c.b.Stmts.Return(id)
		if !ret.Value.IsValid() {
			return
		}
		c.checkExpr(ret.Value)
		if c.failed() {
			return
		}
		if referent, _, ok := c.refTarget(ret.Value); ok {
			// Parameters (depth 1) outlive the call; body locals do not.
			if depth, known := c.depth[referent]; known && depth >= 2 {
				c.rep.emit(&Error{
					Kind:     ErrReturnDangling,
					Span:     stmt.Span,
					Variable: c.b.Name(referent),
				})
			}
		}

	case ast.StmtExpr:
		es, _ := c.b.Stmts.Expr(id)
		c.checkExpr(es.Expr)

	case ast.StmtIf:
		ifs, _ := c.b.Stmts.If(id)
		c.checkExpr(ifs.Cond)
		c.enterScope()
		c.checkBlock(ifs.Then)
		c.exitScope()
		for _, elif := range ifs.Elifs {
			c.checkExpr(elif.Cond)
			c.enterScope()
			c.checkBlock(elif.Body)
			c.exitScope()
		}
		c.enterScope()
		c.checkBlock(ifs.Else)
		c.exitScope()

	case ast.StmtWhile:
		while, _ := c.b.Stmts.While(id)
		c.checkExpr(while.Cond)
		c.enterScope()
		c.checkBlock(while.Body)
		c.exitScope()

	case ast.StmtFor:
		fors, _ := c.b.Stmts.For(id)
		c.enterScope()
		if fors.Init.IsValid() {
			c.checkStmt(fors.Init)
		}
		if fors.Cond.IsValid() {
			c.checkExpr(fors.Cond)
		}
		c.checkBlock(fors.Body)
		if fors.Post.IsValid() {
			c.checkStmt(fors.Post)
		}
		c.exitScope()

	case ast.StmtForIn:
		forIn, _ := c.b.Stmts.ForIn(id)
		c.checkExpr(forIn.Iterable)
		c.enterScope()
		c.declare(forIn.Var)
		c.checkBlock(forIn.Body)
		c.exitScope()

	case ast.StmtBlock:
		block, _ := c.b.Stmts.Block(id)
		c.enterScope()
		c.checkBlock(block.Body)
		c.exitScope()

	case ast.StmtUnsafe:
		unsafe, _ := c.b.Stmts.Unsafe(id)
		c.enterScope()
		c.checkBlock(unsafe.Body)
		c.exitScope()
	}
}

// refTarget unwraps `&x` / `&x!` over a plain identifier.
func (c *lifetimes) refTarget(id ast.ExprID) (source.StringID, bool, bool) {
	if !id.IsValid() {
		return source.NoStringID, false, false
	}
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

func (c *lifetimes) checkExpr(id ast.ExprID) {
	if !id.IsValid() || c.failed() {
		return
	}
	expr := c.b.Exprs.Get(id)
	if expr == nil {
		return
	}
	switch expr.Kind {
	case ast.ExprIdent:
		ident, _ := c.b.Exprs.Ident(id)
		if c.effects.IsBuiltin(c.b.Name(ident.Name)) {
			return
		}
		if !c.inScope(ident.Name) {
			c.rep.emit(&Error{
				Kind:      ErrUseAfterScopeEnd,
				Span:      expr.Span,
				Variable:  c.b.Name(ident.Name),
				Available: c.available(),
			})
		}

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
			c.checkExpr(arm.Guard)
			c.enterScope()
			for _, name := range c.b.Patterns.Bindings(arm.Pattern, nil) {
				c.declare(name)
			}
			c.checkExpr(arm.Body)
			c.exitScope()
		}

	case ast.ExprBlock:
		block, _ := c.b.Exprs.Block(id)
		c.enterScope()
		c.checkBlock(block.Stmts)
		c.checkExpr(block.Result)
		c.exitScope()

	case ast.ExprClosure:
		closure, _ := c.b.Exprs.Closure(id)
		c.enterScope()
		for _, param := range closure.Params {
			c.declare(param.Name)
		}
		c.checkExpr(closure.Body)
		c.exitScope()

	case ast.ExprCast:
		cast, _ := c.b.Exprs.Cast(id)
		c.checkExpr(cast.Value)
	}
}
