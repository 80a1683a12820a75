package ast

import (
	"vex/internal/source"
)

type ItemKind uint8

const (
	ItemFunction ItemKind = iota
	ItemConst
	ItemStruct
	ItemEnum
	ItemExternFn
)

type Item struct {
	Kind    ItemKind
	Span    source.Span
	Payload PayloadID
}

type FnParam struct {
	Name source.StringID
	Type TypeID
}

// FnReceiver describes the `self` binding of a method. Mutable is true
// for methods declared with the `!` marker, which may mutate receiver
// fields.
type FnReceiver struct {
	Name    source.StringID
	Type    TypeID
	Mutable bool
}

type ItemFnData struct {
	Name     source.StringID
	Receiver *FnReceiver
	Params   []FnParam
	Result   TypeID
	Body     []StmtID
}

type ItemConstData struct {
	Name  source.StringID
	Type  TypeID
	Value ExprID
}

type StructField struct {
	Name source.StringID
	Type TypeID
}

type ItemStructData struct {
	Name    source.StringID
	Fields  []StructField
	Methods []ItemID
}

type EnumVariant struct {
	Name     source.StringID
	Payloads []TypeID
}

type ItemEnumData struct {
	Name     source.StringID
	Variants []EnumVariant
}

type ItemExternFnData struct {
	Name   source.StringID
	Params []FnParam
	Result TypeID
}

// Items manages allocation of top-level items.
type Items struct {
	Arena     *Arena[Item]
	Functions *Arena[ItemFnData]
	Consts    *Arena[ItemConstData]
	Structs   *Arena[ItemStructData]
	Enums     *Arena[ItemEnumData]
	ExternFns *Arena[ItemExternFnData]
}

func NewItems(capHint uint) *Items {
	if capHint == 0 {
		capHint = 1 << 5
	}
	return &Items{
		Arena:     NewArena[Item](capHint),
		Functions: NewArena[ItemFnData](capHint),
		Consts:    NewArena[ItemConstData](capHint),
		Structs:   NewArena[ItemStructData](capHint),
		Enums:     NewArena[ItemEnumData](capHint),
		ExternFns: NewArena[ItemExternFnData](capHint),
	}
}

func (i *Items) new(kind ItemKind, span source.Span, payload PayloadID) ItemID {
	return ItemID(i.Arena.Allocate(Item{
		Kind:    kind,
		Span:    span,
		Payload: payload,
	}))
}

// Get returns the item with the given ID.
func (i *Items) Get(id ItemID) *Item {
	return i.Arena.Get(uint32(id))
}

// NewFunction creates a free function or, when receiver is non-nil, a method.
func (i *Items) NewFunction(span source.Span, name source.StringID, receiver *FnReceiver, params []FnParam, result TypeID, body []StmtID) ItemID {
	var recv *FnReceiver
	if receiver != nil {
		clone := *receiver
		recv = &clone
	}
	payload := i.Functions.Allocate(ItemFnData{
		Name:     name,
		Receiver: recv,
		Params:   append([]FnParam(nil), params...),
		Result:   result,
		Body:     append([]StmtID(nil), body...),
	})
	return i.new(ItemFunction, span, PayloadID(payload))
}

// Function returns the function data for the given item ID.
func (i *Items) Function(id ItemID) (*ItemFnData, bool) {
	item := i.Get(id)
	if item == nil || item.Kind != ItemFunction {
		return nil, false
	}
	return i.Functions.Get(uint32(item.Payload)), true
}

// NewConst creates a module-level constant.
func (i *Items) NewConst(span source.Span, name source.StringID, typ TypeID, value ExprID) ItemID {
	payload := i.Consts.Allocate(ItemConstData{Name: name, Type: typ, Value: value})
	return i.new(ItemConst, span, PayloadID(payload))
}

// Const returns the constant data for the given item ID.
func (i *Items) Const(id ItemID) (*ItemConstData, bool) {
	item := i.Get(id)
	if item == nil || item.Kind != ItemConst {
		return nil, false
	}
	return i.Consts.Get(uint32(item.Payload)), true
}

// NewStruct creates a struct declaration. Methods are separate function
// items referenced by ID.
func (i *Items) NewStruct(span source.Span, name source.StringID, fields []StructField, methods []ItemID) ItemID {
	payload := i.Structs.Allocate(ItemStructData{
		Name:    name,
		Fields:  append([]StructField(nil), fields...),
		Methods: append([]ItemID(nil), methods...),
	})
	return i.new(ItemStruct, span, PayloadID(payload))
}

// Struct returns the struct data for the given item ID.
func (i *Items) Struct(id ItemID) (*ItemStructData, bool) {
	item := i.Get(id)
	if item == nil || item.Kind != ItemStruct {
		return nil, false
	}
	return i.Structs.Get(uint32(item.Payload)), true
}

// NewEnum creates an enum declaration.
func (i *Items) NewEnum(span source.Span, name source.StringID, variants []EnumVariant) ItemID {
	payload := i.Enums.Allocate(ItemEnumData{
		Name:     name,
		Variants: append([]EnumVariant(nil), variants...),
	})
	return i.new(ItemEnum, span, PayloadID(payload))
}

// Enum returns the enum data for the given item ID.
func (i *Items) Enum(id ItemID) (*ItemEnumData, bool) {
	item := i.Get(id)
	if item == nil || item.Kind != ItemEnum {
		return nil, false
	}
	return i.Enums.Get(uint32(item.Payload)), true
}

// NewExternFn creates an extern function declaration. Extern functions
// have no body; the analyzers treat their names as always in scope.
func (i *Items) NewExternFn(span source.Span, name source.StringID, params []FnParam, result TypeID) ItemID {
	payload := i.ExternFns.Allocate(ItemExternFnData{
		Name:   name,
		Params: append([]FnParam(nil), params...),
		Result: result,
	})
	return i.new(ItemExternFn, span, PayloadID(payload))
}

// ExternFn returns the extern function data for the given item ID.
func (i *Items) ExternFn(id ItemID) (*ItemExternFnData, bool) {
	item := i.Get(id)
	if item == nil || item.Kind != ItemExternFn {
		return nil, false
	}
	return i.ExternFns.Get(uint32(item.Payload)), true
}
