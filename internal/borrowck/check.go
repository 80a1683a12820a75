// Package borrowck implements the ownership analysis suite: the
// immutability checker, the borrow tracker, the lifetime checker and
// the closure capture analyzer. Passes run in that order and the
// pipeline stops at the first pass that reports errors; capture
// resolution only runs on a unit that passed every check.
package borrowck

import (
	"vex/internal/ast"
	"vex/internal/diag"
	"vex/internal/source"
)

// Pass identifies one analysis stage.
type Pass uint8

const (
	PassImmutability Pass = iota
	PassBorrows
	PassLifetimes
	PassClosures
)

func (p Pass) String() string {
	switch p {
	case PassImmutability:
		return "immutability"
	case PassBorrows:
		return "borrows"
	case PassLifetimes:
		return "lifetimes"
	case PassClosures:
		return "closures"
	}
	return "unknown"
}

// Options configures a unit check. The zero value discards diagnostics
// and uses the default builtin registry with no type oracle.
type Options struct {
	Reporter diag.Reporter
	Effects  *Registry
	Types    TypeOracle
}

// Result summarizes one unit check.
type Result struct {
	// Errors is the number of violations reported.
	Errors int
	// Halted names the pass that stopped the pipeline. Only
	// meaningful when Completed is false.
	Halted Pass
	// Completed is true when every pass ran, including capture
	// resolution.
	Completed bool
}

// reporter adapts the analysis errors onto a diag.Reporter and counts
// them for the fail-fast decision between passes.
type reporter struct {
	out  diag.Reporter
	errs int
}

func (r *reporter) emit(e *Error) {
	d := e.Diagnostic()
	r.errs++
	r.out.Report(d.Code, d.Severity, d.Primary, d.Message, d.Notes)
}

func (r *reporter) emitWithNote(e *Error, span source.Span, msg string) {
	d := e.Diagnostic().WithNote(span, msg)
	r.errs++
	r.out.Report(d.Code, d.Severity, d.Primary, d.Message, d.Notes)
}

// Checker runs the ownership passes over compilation units.
type Checker struct {
	opts Options
}

func NewChecker(opts Options) *Checker {
	if opts.Reporter == nil {
		opts.Reporter = diag.NopReporter{}
	}
	if opts.Effects == nil {
		opts.Effects = NewRegistry()
	}
	return &Checker{opts: opts}
}

// CheckUnit analyzes the unit rooted at file. On success the capture
// mode of every closure in the unit has been resolved in place.
func (c *Checker) CheckUnit(b *ast.Builder, file ast.FileID) Result {
	rep := &reporter{out: c.opts.Reporter}
	data := b.Files.Get(file)
	if data == nil {
		return Result{Completed: true}
	}

	globals := unitGlobals(b, data)

	imm := newImmutability(b, c.opts.Effects, rep)
	for _, g := range globals {
		imm.declareGlobal(g, false)
	}
	forEachFunction(b, data, imm.checkFunction)
	if rep.errs > 0 {
		return Result{Errors: rep.errs, Halted: PassImmutability}
	}

	bor := newBorrows(b, c.opts.Effects, c.opts.Types, rep)
	forEachFunction(b, data, bor.checkFunction)
	if rep.errs > 0 {
		return Result{Errors: rep.errs, Halted: PassBorrows}
	}

	life := newLifetimes(b, c.opts.Effects, rep)
	for _, g := range globals {
		life.declareGlobal(g)
	}
	forEachFunction(b, data, life.checkFunction)
	if rep.errs > 0 {
		return Result{Errors: rep.errs, Halted: PassLifetimes}
	}

	res := newClosures(b, c.opts.Effects)
	forEachFunction(b, data, res.resolveFunction)
	return Result{Completed: true}
}

// unitGlobals collects every unit-scope name: imported symbols, free
// functions, constants, type names and extern functions. These never
// go out of scope.
func unitGlobals(b *ast.Builder, data *ast.FileData) []source.StringID {
	var globals []source.StringID
	for i := range data.Imports {
		globals = data.Imports[i].Bound(globals)
	}
	for _, id := range data.Items {
		item := b.Items.Get(id)
		if item == nil {
			continue
		}
		switch item.Kind {
		case ast.ItemFunction:
			fn, _ := b.Items.Function(id)
			globals = append(globals, fn.Name)
		case ast.ItemConst:
			cst, _ := b.Items.Const(id)
			globals = append(globals, cst.Name)
		case ast.ItemStruct:
			st, _ := b.Items.Struct(id)
			globals = append(globals, st.Name)
		case ast.ItemEnum:
			en, _ := b.Items.Enum(id)
			globals = append(globals, en.Name)
		case ast.ItemExternFn:
			ext, _ := b.Items.ExternFn(id)
			globals = append(globals, ext.Name)
		}
	}
	return globals
}

// forEachFunction visits every function body in the unit, including
// struct methods.
func forEachFunction(b *ast.Builder, data *ast.FileData, visit func(*ast.ItemFnData)) {
	for _, id := range data.Items {
		item := b.Items.Get(id)
		if item == nil {
			continue
		}
		switch item.Kind {
		case ast.ItemFunction:
			fn, _ := b.Items.Function(id)
			visit(fn)
		case ast.ItemStruct:
			st, _ := b.Items.Struct(id)
			for _, mid := range st.Methods {
				if method, ok := b.Items.Function(mid); ok {
					visit(method)
				}
			}
		}
	}
}
