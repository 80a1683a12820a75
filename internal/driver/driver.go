// Package driver loads serialized compilation units and runs the
// ownership checks over them, one goroutine per unit.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"vex/internal/ast"
	"vex/internal/borrowck"
	"vex/internal/diag"
)

// UnitExt is the file extension of serialized compilation units.
const UnitExt = ".vexast"

const defaultMaxDiagnostics = 256

// Options configures a driver run.
type Options struct {
	// Jobs caps the number of parallel workers; 0 means GOMAXPROCS.
	Jobs int
	// MaxDiagnostics bounds the bag of each unit; 0 uses the default.
	MaxDiagnostics int
	// Effects overrides the builtin registry, e.g. after a TOML overlay.
	Effects *borrowck.Registry
	// Types is an optional type oracle for raw pointer judgments.
	Types borrowck.TypeOracle
}

// UnitResult is the outcome for one unit file. A unit that failed to
// load or decode carries the failure in Bag and a zero Check.
type UnitResult struct {
	Path    string
	Builder *ast.Builder
	File    ast.FileID
	Bag     *diag.Bag
	Check   borrowck.Result
}

// ListUnits returns the sorted *.vexast files under dir.
func ListUnits(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, UnitExt) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// CheckDir checks every unit file under dir.
func CheckDir(ctx context.Context, dir string, opts Options) ([]UnitResult, error) {
	files, err := ListUnits(dir)
	if err != nil {
		return nil, err
	}
	return CheckFiles(ctx, files, opts)
}

// CheckFiles checks the given unit files in parallel. Results keep the
// input order regardless of completion order.
func CheckFiles(ctx context.Context, paths []string, opts Options) ([]UnitResult, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	if jobs > len(paths) {
		jobs = len(paths)
	}

	// Slots are disjoint per goroutine, no mutex needed.
	results := make([]UnitResult, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			results[i] = checkOne(path, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func checkOne(path string, opts Options) UnitResult {
	maxDiag := opts.MaxDiagnostics
	if maxDiag <= 0 {
		maxDiag = defaultMaxDiagnostics
	}
	bag := diag.NewBag(maxDiag)
	res := UnitResult{Path: path, Bag: bag}

	f, err := os.Open(path)
	if err != nil {
		bag.Add(diag.Diagnostic{
			Severity: diag.SevError,
			Code:     diag.IOLoadUnitError,
			Message:  fmt.Sprintf("cannot open unit %s: %v", path, err),
		})
		return res
	}
	defer f.Close()

	builder, file, err := ast.Decode(f)
	if err != nil {
		bag.Add(diag.Diagnostic{
			Severity: diag.SevError,
			Code:     decodeCode(err),
			Message:  fmt.Sprintf("cannot decode unit %s: %v", path, err),
		})
		return res
	}
	res.Builder = builder
	res.File = file

	checker := borrowck.NewChecker(borrowck.Options{
		Reporter: diag.BagReporter{Bag: bag},
		Effects:  opts.Effects,
		Types:    opts.Types,
	})
	res.Check = checker.CheckUnit(builder, file)

	bag.Sort()
	bag.Dedup()
	return res
}

func decodeCode(err error) diag.Code {
	switch {
	case errors.Is(err, ast.ErrBadMagic):
		return diag.DecodeBadMagic
	case errors.Is(err, ast.ErrBadSchema):
		return diag.DecodeBadSchema
	default:
		return diag.DecodeCorruptUnit
	}
}
