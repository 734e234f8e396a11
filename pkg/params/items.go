// Package params implements the parameter menu protocol: a registry of
// typed items the handset reads in chunks and writes by id.
package params

import (
	"encoding/binary"
	"strings"
)

// FieldType is the type of an item on the wire.
type FieldType byte

// Field types.
const (
	TypeUint8     FieldType = 0
	TypeInt8      FieldType = 1
	TypeUint16    FieldType = 2
	TypeInt16     FieldType = 3
	TypeFloat     FieldType = 8
	TypeSelection FieldType = 9
	TypeString    FieldType = 10
	TypeFolder    FieldType = 11
	TypeInfo      FieldType = 12
	TypeCommand   FieldType = 13
)

var typeNames = map[FieldType]string{
	TypeUint8:     "uint8",
	TypeInt8:      "int8",
	TypeUint16:    "uint16",
	TypeInt16:     "int16",
	TypeFloat:     "float",
	TypeSelection: "select",
	TypeString:    "string",
	TypeFolder:    "folder",
	TypeInfo:      "info",
	TypeCommand:   "command",
}

func (t FieldType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

// FlagHidden marks a hidden item in the type byte.
const FlagHidden byte = 0x80

// CommandTimeout is reported for commands, in 10ms.
const CommandTimeout = 200

// CommandStep is the state of a command item.
type CommandStep byte

// Command steps.
const (
	StepIdle CommandStep = iota
	StepClick
	StepExecuting
	StepAskConfirm
	StepConfirmed
	StepCancel
	StepQuery
)

// Field holds what all items share.
type Field struct {
	ID     byte
	Parent byte
	Name   string
	// Hidden items are not shown.
	Hidden bool
	// ElrsHidden items are only hidden from the ELRS Lua agent.
	ElrsHidden bool
}

// Common returns the shared part.
func (f *Field) Common() *Field {
	return f
}

// Item is a parameter menu entry.
type Item interface {
	Common() *Field
	Type() FieldType
	appendValue(dst []byte) []byte
}

// Folder groups items with the same Parent.
type Folder struct {
	Field
}

// Type implements Item.
func (f *Folder) Type() FieldType { return TypeFolder }

func (f *Folder) appendValue(dst []byte) []byte { return dst }

// Selection picks one of the ';' separated Options.
type Selection struct {
	Field
	Value   byte
	Options string
	Units   string
}

// Type implements Item.
func (s *Selection) Type() FieldType { return TypeSelection }

// Max returns the index of the last option.
func (s *Selection) Max() byte {
	return byte(strings.Count(s.Options, ";"))
}

// Option returns the text of option i.
func (s *Selection) Option(i byte) string {
	opts := strings.Split(s.Options, ";")
	if int(i) >= len(opts) {
		return ""
	}
	return opts[i]
}

func (s *Selection) appendValue(dst []byte) []byte {
	dst = appendString(dst, s.Options)
	dst = append(dst, s.Value, 0, s.Max(), 0)
	return appendString(dst, s.Units)
}

// Command is an action with a status text.
type Command struct {
	Field
	Step CommandStep
	Info string
}

// Type implements Item.
func (c *Command) Type() FieldType { return TypeCommand }

func (c *Command) appendValue(dst []byte) []byte {
	dst = append(dst, byte(c.Step), CommandTimeout)
	return appendString(dst, c.Info)
}

// Int8 is a signed byte value.
type Int8 struct {
	Field
	Value, Min, Max int8
	Units           string
}

// Type implements Item.
func (n *Int8) Type() FieldType { return TypeInt8 }

func (n *Int8) appendValue(dst []byte) []byte {
	dst = append(dst, byte(n.Value), byte(n.Min), byte(n.Max), 0)
	return appendString(dst, n.Units)
}

// Uint8 is an unsigned byte value.
type Uint8 struct {
	Field
	Value, Min, Max uint8
	Units           string
}

// Type implements Item.
func (n *Uint8) Type() FieldType { return TypeUint8 }

func (n *Uint8) appendValue(dst []byte) []byte {
	dst = append(dst, n.Value, n.Min, n.Max, 0)
	return appendString(dst, n.Units)
}

// Int16 is a signed 16-bit value.
type Int16 struct {
	Field
	Value, Min, Max int16
	Units           string
}

// Type implements Item.
func (n *Int16) Type() FieldType { return TypeInt16 }

func (n *Int16) appendValue(dst []byte) []byte {
	return appendInt16(dst, uint16(n.Value), uint16(n.Min), uint16(n.Max), n.Units)
}

// Uint16 is an unsigned 16-bit value.
type Uint16 struct {
	Field
	Value, Min, Max uint16
	Units           string
}

// Type implements Item.
func (n *Uint16) Type() FieldType { return TypeUint16 }

func (n *Uint16) appendValue(dst []byte) []byte {
	return appendInt16(dst, n.Value, n.Min, n.Max, n.Units)
}

// String is an editable text.
type String struct {
	Field
	Value string
}

// Type implements Item.
func (s *String) Type() FieldType { return TypeString }

func (s *String) appendValue(dst []byte) []byte { return appendString(dst, s.Value) }

// Info is a read-only text.
type Info struct {
	Field
	Value string
}

// Type implements Item.
func (s *Info) Type() FieldType { return TypeInfo }

func (s *Info) appendValue(dst []byte) []byte { return appendString(dst, s.Value) }

// Serialize encodes an item as sent in parameter entry frames:
//
//	[parent][type|flags][name NUL][type specific]
//
// luaMode applies ElrsHidden.
func Serialize(item Item, luaMode bool) []byte {
	f := item.Common()
	t := byte(item.Type())
	if f.Hidden || (luaMode && f.ElrsHidden) {
		t |= FlagHidden
	}
	out := make([]byte, 0, 64)
	out = append(out, f.Parent, t)
	out = appendString(out, f.Name)
	return item.appendValue(out)
}

// Chunk returns slice index of data cut in chunkMax sized pieces and how
// many pieces follow it. ok is false if index is out of range.
func Chunk(data []byte, chunkMax, index int) (chunk []byte, remaining int, ok bool) {
	if chunkMax < 1 {
		return nil, 0, false
	}
	count := (len(data) + chunkMax - 1) / chunkMax
	if index < 0 || index >= count {
		return nil, 0, false
	}
	start := index * chunkMax
	end := start + chunkMax
	if end > len(data) {
		end = len(data)
	}
	return data[start:end], count - index - 1, true
}

func appendString(dst []byte, s string) []byte {
	dst = append(dst, s...)
	return append(dst, 0)
}

func appendInt16(dst []byte, value, min, max uint16, units string) []byte {
	dst = binary.BigEndian.AppendUint16(dst, value)
	dst = binary.BigEndian.AppendUint16(dst, min)
	dst = binary.BigEndian.AppendUint16(dst, max)
	dst = append(dst, 0, 0)
	return appendString(dst, units)
}
