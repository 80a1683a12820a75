package borrowck

import (
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
)

// ParamEffect describes how a builtin treats one positional argument.
type ParamEffect uint8

const (
	// EffectReadOnly: the argument is read, no aliasing consequences.
	EffectReadOnly ParamEffect = iota
	// EffectMutates: the argument is written in place.
	EffectMutates
	// EffectMoves: the builtin consumes the argument.
	EffectMoves
	// EffectBorrowsImmut: the builtin holds a shared borrow for the call.
	EffectBorrowsImmut
	// EffectBorrowsMut: the builtin holds an exclusive borrow for the call.
	EffectBorrowsMut
)

func (e ParamEffect) String() string {
	switch e {
	case EffectReadOnly:
		return "read_only"
	case EffectMutates:
		return "mutates"
	case EffectMoves:
		return "moves"
	case EffectBorrowsImmut:
		return "borrows_immut"
	case EffectBorrowsMut:
		return "borrows_mut"
	}
	return "unknown"
}

// ParseEffect is the inverse of ParamEffect.String.
func ParseEffect(s string) (ParamEffect, error) {
	switch s {
	case "read_only":
		return EffectReadOnly, nil
	case "mutates":
		return EffectMutates, nil
	case "moves":
		return EffectMoves, nil
	case "borrows_immut":
		return EffectBorrowsImmut, nil
	case "borrows_mut":
		return EffectBorrowsMut, nil
	}
	return EffectReadOnly, fmt.Errorf("borrowck: unknown param effect %q", s)
}

// Metadata describes a builtin's positional effects. Calls with more
// arguments than effects treat the extras as read-only.
type Metadata struct {
	Name    string
	Effects []ParamEffect
}

// Registry maps builtin names to their effect signatures.
type Registry struct {
	byName map[string]Metadata
}

func (r *Registry) register(name string, effects ...ParamEffect) {
	r.byName[name] = Metadata{Name: name, Effects: effects}
}

// Get returns the metadata for name.
func (r *Registry) Get(name string) (Metadata, bool) {
	meta, ok := r.byName[name]
	return meta, ok
}

// IsBuiltin reports whether name is a registered builtin.
func (r *Registry) IsBuiltin(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Len returns the number of registered builtins.
func (r *Registry) Len() int {
	return len(r.byName)
}

// All returns every registered builtin sorted by name.
func (r *Registry) All() []Metadata {
	metas := make([]Metadata, 0, len(r.byName))
	for _, meta := range r.byName {
		metas = append(metas, meta)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })
	return metas
}

// NewRegistry builds the default builtin effect table.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]Metadata, 96)}

	// Core I/O
	r.register("print", EffectReadOnly)
	r.register("println", EffectReadOnly)
	r.register("panic", EffectReadOnly)
	r.register("assert", EffectReadOnly, EffectReadOnly)

	// Memory management
	r.register("alloc", EffectReadOnly)
	r.register("free", EffectMoves)
	r.register("realloc", EffectMoves, EffectReadOnly)
	r.register("sizeof", EffectReadOnly)
	r.register("alignof", EffectReadOnly)

	// Strings
	r.register("strlen", EffectBorrowsImmut)
	r.register("strcmp", EffectBorrowsImmut, EffectBorrowsImmut)
	r.register("strcpy", EffectBorrowsMut, EffectBorrowsImmut)
	r.register("strcat", EffectBorrowsMut, EffectBorrowsImmut)
	r.register("strdup", EffectBorrowsImmut)

	// Raw memory
	r.register("memcpy", EffectBorrowsMut, EffectBorrowsImmut, EffectReadOnly)
	r.register("memset", EffectBorrowsMut, EffectReadOnly, EffectReadOnly)
	r.register("memcmp", EffectBorrowsImmut, EffectBorrowsImmut, EffectReadOnly)
	r.register("memmove", EffectBorrowsMut, EffectBorrowsImmut, EffectReadOnly)

	// UTF-8
	r.register("utf8_valid", EffectBorrowsImmut, EffectReadOnly)
	r.register("utf8_char_count", EffectBorrowsImmut)
	r.register("utf8_char_at", EffectBorrowsImmut, EffectReadOnly)

	// Arrays
	r.register("array_len", EffectBorrowsImmut)
	r.register("array_get", EffectBorrowsImmut, EffectReadOnly, EffectReadOnly)
	r.register("array_set", EffectBorrowsMut, EffectReadOnly, EffectReadOnly, EffectReadOnly)
	r.register("array_append", EffectBorrowsMut, EffectReadOnly, EffectReadOnly)

	// Hash maps
	r.register("hashmap_new", EffectReadOnly)
	r.register("hashmap_insert", EffectBorrowsMut, EffectBorrowsImmut, EffectReadOnly)
	r.register("hashmap_get", EffectBorrowsImmut, EffectBorrowsImmut)
	r.register("hashmap_len", EffectBorrowsImmut)
	r.register("hashmap_free", EffectMoves)
	r.register("hashmap_contains", EffectBorrowsImmut, EffectBorrowsImmut)
	r.register("hashmap_remove", EffectBorrowsMut, EffectBorrowsImmut)
	r.register("hashmap_clear", EffectBorrowsMut)

	// Type reflection
	r.register("typeof", EffectReadOnly)
	r.register("type_id", EffectReadOnly)
	r.register("type_size", EffectReadOnly)
	r.register("type_align", EffectReadOnly)
	r.register("is_int_type", EffectReadOnly)
	r.register("is_float_type", EffectReadOnly)
	r.register("is_pointer_type", EffectReadOnly)

	// Bit intrinsics
	r.register("ctlz", EffectReadOnly)
	r.register("cttz", EffectReadOnly)
	r.register("ctpop", EffectReadOnly)
	r.register("bswap", EffectReadOnly)
	r.register("bitreverse", EffectReadOnly)
	r.register("sadd_overflow", EffectReadOnly, EffectReadOnly)
	r.register("ssub_overflow", EffectReadOnly, EffectReadOnly)
	r.register("smul_overflow", EffectReadOnly, EffectReadOnly)

	// Optimizer hints
	r.register("assume", EffectReadOnly)
	r.register("likely", EffectReadOnly)
	r.register("unlikely", EffectReadOnly)
	r.register("prefetch", EffectBorrowsImmut, EffectReadOnly, EffectReadOnly)

	// Container constructors and destructors
	r.register("vec_new")
	r.register("vec_with_capacity", EffectReadOnly)
	r.register("vec_free", EffectBorrowsMut)
	r.register("box_new", EffectReadOnly)
	r.register("box_free", EffectMoves)
	r.register("string_new")
	r.register("string_from", EffectBorrowsImmut)
	r.register("string_free", EffectMoves)
	r.register("map_new")
	r.register("map_with_capacity", EffectReadOnly)
	r.register("map_insert", EffectBorrowsMut, EffectBorrowsImmut, EffectReadOnly)
	r.register("map_get", EffectBorrowsImmut, EffectBorrowsImmut)
	r.register("map_len", EffectBorrowsImmut)
	r.register("map_free", EffectMoves)

	// Numeric formatting
	r.register("vex_i32_to_string", EffectReadOnly)
	r.register("vex_i64_to_string", EffectReadOnly)
	r.register("vex_u32_to_string", EffectReadOnly)
	r.register("vex_u64_to_string", EffectReadOnly)
	r.register("vex_f32_to_string", EffectReadOnly)
	r.register("vex_f64_to_string", EffectReadOnly)

	return r
}

type registryOverlay struct {
	Builtins map[string][]string `toml:"builtins"`
}

// ApplyOverlay merges extra builtin signatures from TOML. Existing
// entries with the same name are replaced.
func (r *Registry) ApplyOverlay(data []byte) error {
	var overlay registryOverlay
	if err := toml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("borrowck: parse effect overlay: %w", err)
	}
	for name, raw := range overlay.Builtins {
		effects := make([]ParamEffect, 0, len(raw))
		for _, s := range raw {
			effect, err := ParseEffect(s)
			if err != nil {
				return fmt.Errorf("borrowck: builtin %q: %w", name, err)
			}
			effects = append(effects, effect)
		}
		r.byName[name] = Metadata{Name: name, Effects: effects}
	}
	return nil
}

// LoadOverlay reads a TOML overlay file and merges it into the registry.
func (r *Registry) LoadOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return r.ApplyOverlay(data)
}
