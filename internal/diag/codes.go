package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// I/O and unit loading
	IOInfo          Code = 1000
	IOLoadUnitError Code = 1001

	// AST unit decoding
	DecodeInfo          Code = 2000
	DecodeBadMagic      Code = 2001
	DecodeBadSchema     Code = 2002
	DecodeCorruptUnit   Code = 2003
	DecodeUnknownEffect Code = 2004

	// Ownership / borrow checking
	OwnInfo                 Code = 3000
	OwnAssignImmutable      Code = 3001
	OwnAssignImmutableField Code = 3002
	OwnBorrowConflict       Code = 3003
	OwnMutationWhileBorrow  Code = 3004
	OwnMoveWhileBorrow      Code = 3005
	OwnUnsafeDeref          Code = 3006
	OwnUseOutOfScope        Code = 3007
	OwnDanglingReference    Code = 3008
	OwnReturnDangling       Code = 3009
)

func (c Code) String() string {
	switch {
	case c >= 3000 && c < 4000:
		return fmt.Sprintf("OWN%04d", uint16(c))
	case c >= 2000 && c < 3000:
		return fmt.Sprintf("AST%04d", uint16(c))
	case c >= 1000 && c < 2000:
		return fmt.Sprintf("IO%04d", uint16(c))
	default:
		return fmt.Sprintf("VEX%04d", uint16(c))
	}
}
