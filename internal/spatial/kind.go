package spatial

import (
	"fmt"
	"strings"
)

// Kind classifies the interaction that produced a sample.
type Kind uint8

const (
	KindTouch         Kind = 0 // poke
	KindDirectPinch   Kind = 1
	KindIndirectPinch Kind = 2 // gaze plus pinch
	KindPointer       Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindTouch:
		return "touch"
	case KindDirectPinch:
		return "direct_pinch"
	case KindIndirectPinch:
		return "indirect_pinch"
	case KindPointer:
		return "pointer"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind parses the bridge protocol name of a kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "touch", "":
		return KindTouch, nil
	case "direct_pinch", "directpinch":
		return KindDirectPinch, nil
	case "indirect_pinch", "indirectpinch":
		return KindIndirectPinch, nil
	case "pointer":
		return KindPointer, nil
	}
	return 0, fmt.Errorf("unknown pointer kind %q", s)
}

// ModifierKeys is the bit set of keyboard modifiers held during a sample.
type ModifierKeys uint16

const (
	ModCapsLock   ModifierKeys = 1 << 0
	ModControl    ModifierKeys = 1 << 1
	ModAlt        ModifierKeys = 1 << 2
	ModCommand    ModifierKeys = 1 << 3
	ModOption     ModifierKeys = 1 << 4
	ModShift      ModifierKeys = 1 << 5
	ModNumericPad ModifierKeys = 1 << 6
	ModFunction   ModifierKeys = 1 << 7
)

var modifierNames = []struct {
	key  ModifierKeys
	name string
}{
	{ModCapsLock, "caps_lock"},
	{ModControl, "control"},
	{ModAlt, "alt"},
	{ModCommand, "command"},
	{ModOption, "option"},
	{ModShift, "shift"},
	{ModNumericPad, "numeric_pad"},
	{ModFunction, "function"},
}

// IsPressed reports whether every key in key is held.
func (m ModifierKeys) IsPressed(key ModifierKeys) bool {
	return key != 0 && m&key == key
}

// Set returns m with key pressed or released.
func (m ModifierKeys) Set(key ModifierKeys, pressed bool) ModifierKeys {
	if pressed {
		return m | key
	}
	return m &^ key
}

func (m ModifierKeys) String() string {
	if m == 0 {
		return "none"
	}
	var parts []string
	for _, n := range modifierNames {
		if m&n.key != 0 {
			parts = append(parts, n.name)
		}
	}
	if rest := m &^ (ModFunction<<1 - 1); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint16(rest)))
	}
	return strings.Join(parts, "|")
}
