package convertapi

import "strings"

// ValueKind tells the resolved value variants apart
type ValueKind int

const (
	// LiteralValue is a plain form value
	LiteralValue ValueKind = iota
	// ReferenceValue is a string that designates a remote file (URL or FileId)
	ReferenceValue
	// FileValue is a handle to a file uploaded for the request
	FileValue
)

// Value is one resolved parameter value
type Value struct {
	Kind    ValueKind
	Literal string
	File    *UploadedFile
}

// Literal wraps a string form value
func Literal(s string) Value {
	return Value{Kind: LiteralValue, Literal: s}
}

// Reference wraps a remote file designation
func Reference(s string) Value {
	return Value{Kind: ReferenceValue, Literal: s}
}

// File wraps an uploaded file handle
func File(f *UploadedFile) Value {
	return Value{Kind: FileValue, File: f}
}

// Entry is a single name/value pair of a ParamDictionary
type Entry struct {
	Name  string
	Value Value
}

// ParamDictionary is an ordered multi-map. Insertion order is the order fields
// are written to the request; duplicate names express array parameters.
type ParamDictionary struct {
	entries []Entry
}

// NewParamDictionary returns an empty dictionary
func NewParamDictionary() *ParamDictionary {
	return &ParamDictionary{}
}

// Add appends a pair unconditionally
func (d *ParamDictionary) Add(name string, v Value) {
	d.entries = append(d.entries, Entry{Name: name, Value: v})
}

// AddLiteral appends a string value
func (d *ParamDictionary) AddLiteral(name, value string) {
	d.Add(name, Literal(value))
}

// AddFile appends a file handle
func (d *ParamDictionary) AddFile(name string, f *UploadedFile) {
	d.Add(name, File(f))
}

// Entries returns the pairs in insertion order
func (d *ParamDictionary) Entries() []Entry {
	out := make([]Entry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Len returns the number of pairs
func (d *ParamDictionary) Len() int {
	return len(d.entries)
}

// Find returns the first string value stored under name, matched case-insensitively
func (d *ParamDictionary) Find(name string) (string, bool) {
	for _, e := range d.entries {
		if e.Value.Kind != FileValue && strings.EqualFold(e.Name, name) {
			return e.Value.Literal, true
		}
	}
	return "", false
}
