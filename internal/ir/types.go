package ir

import (
	"fmt"
	"regexp"
	"strconv"
)

// Width is a bit count. UnknownWidth marks a width left for inference.
type Width int

// UnknownWidth is the width of a type whose width must be inferred.
const UnknownWidth Width = -1

// Known reports whether the width has been determined.
func (w Width) Known() bool {
	return w >= 0
}

// Kind identifies the ground type family of a Type.
type Kind int

const (
	KindUInt Kind = iota
	KindSInt
	KindClock
)

func (k Kind) String() string {
	switch k {
	case KindUInt:
		return "UInt"
	case KindSInt:
		return "SInt"
	case KindClock:
		return "Clock"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Type is a sealed interface over the ground types of the IR.
// Only UIntType, SIntType and ClockType implement it.
type Type interface {
	Kind() Kind

	// ResolvedWidth returns the bit width and true, or false while the
	// width is still unknown.
	ResolvedWidth() (int, bool)

	String() string

	isType() // Sealed
}

// UIntType is an unsigned integer of Width bits.
type UIntType struct {
	Width Width
}

// SIntType is a two's complement signed integer of Width bits.
type SIntType struct {
	Width Width
}

// ClockType is a clock signal. Its width is always 1.
type ClockType struct{}

func (UIntType) isType()  {}
func (SIntType) isType()  {}
func (ClockType) isType() {}

func (UIntType) Kind() Kind  { return KindUInt }
func (SIntType) Kind() Kind  { return KindSInt }
func (ClockType) Kind() Kind { return KindClock }

func (t UIntType) ResolvedWidth() (int, bool) { return int(t.Width), t.Width.Known() }
func (t SIntType) ResolvedWidth() (int, bool) { return int(t.Width), t.Width.Known() }
func (ClockType) ResolvedWidth() (int, bool)  { return 1, true }

func (t UIntType) String() string { return formatGround("UInt", t.Width) }
func (t SIntType) String() string { return formatGround("SInt", t.Width) }
func (ClockType) String() string  { return "Clock" }

func formatGround(name string, w Width) string {
	if !w.Known() {
		return name
	}
	return fmt.Sprintf("%s<%d>", name, int(w))
}

// UInt returns an unsigned type of width w (UnknownWidth allowed).
func UInt(w Width) UIntType {
	return UIntType{Width: w}
}

// SInt returns a signed type of width w (UnknownWidth allowed).
func SInt(w Width) SIntType {
	return SIntType{Width: w}
}

// Clock returns the clock type.
func Clock() ClockType {
	return ClockType{}
}

// WithWidth returns a type of the same kind as t with the given width.
// Clock types are returned unchanged.
func WithWidth(t Type, w int) Type {
	switch t.(type) {
	case UIntType:
		return UInt(Width(w))
	case SIntType:
		return SInt(Width(w))
	default:
		return t
	}
}

// IsResolved reports whether t is non-nil and has a known width.
func IsResolved(t Type) bool {
	if t == nil {
		return false
	}
	_, ok := t.ResolvedWidth()
	return ok
}

// typePattern matches "UInt", "UInt<8>", "SInt<4>", "Clock".
var typePattern = regexp.MustCompile(`^(UInt|SInt|Clock)(?:<(\d+)>)?$`)

// ParseType parses the textual form produced by Type.String.
func ParseType(s string) (Type, error) {
	m := typePattern.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("invalid type %q: expected UInt<N>, SInt<N>, UInt, SInt or Clock", s)
	}

	w := UnknownWidth
	if m[2] != "" {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, fmt.Errorf("invalid width in type %q: %w", s, err)
		}
		w = Width(n)
	}

	switch m[1] {
	case "UInt":
		return UInt(w), nil
	case "SInt":
		return SInt(w), nil
	default:
		if m[2] != "" {
			return nil, fmt.Errorf("invalid type %q: Clock takes no width", s)
		}
		return Clock(), nil
	}
}

// TypeBind binds an identifier to a type. Used for ports, wires, registers
// and the resolved bindings recorded by inference.
type TypeBind struct {
	Name string
	Type Type
}

// Bind is a shorthand for constructing a TypeBind.
func Bind(name string, t Type) TypeBind {
	return TypeBind{Name: name, Type: t}
}

func (b TypeBind) String() string {
	if b.Type == nil {
		return b.Name + ": ?"
	}
	return b.Name + ": " + b.Type.String()
}
