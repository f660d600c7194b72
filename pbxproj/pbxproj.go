// Package pbxproj reads and writes Xcode project files (the OpenStep property list
// dialect Xcode uses for project.pbxproj) without losing comments or layout.
//
// Every token keeps the whitespace and comments written before it, so a document
// that is parsed and written back without changes is byte for byte identical.
// Values added through Dict.Set and Array.Append are laid out like their siblings.
package pbxproj

import (
	"strings"
)

// Node is a String, Dict or Array
type Node interface {
	write(b *strings.Builder)
	lead() string
	setLead(lead string)
}

// String is a quoted or bare string
type String struct {
	tok token
}

// NewString returns a string node, quoted only when the value requires it
func NewString(value string) *String {
	return &String{tok: token{kind: tString, text: Quote(value)}}
}

// Value returns the unquoted value
func (s *String) Value() string {
	return Unquote(s.tok.text)
}

// Raw returns the string as written in the file
func (s *String) Raw() string {
	return s.tok.text
}

func (s *String) write(b *strings.Builder) { s.tok.write(b) }
func (s *String) lead() string             { return s.tok.lead }
func (s *String) setLead(lead string)      { s.tok.lead = lead }

// Entry is a `key = value;` pair inside a Dict
type Entry struct {
	key   *String
	eq    token
	value Node
	semi  token
}

// Key returns the unquoted key
func (e *Entry) Key() string {
	return e.key.Value()
}

// Value returns the entry's value
func (e *Entry) Value() Node {
	return e.value
}

// Dict is an ordered `{ key = value; ... }` dictionary
type Dict struct {
	open    token
	entries []*Entry
	close   token
}

func (d *Dict) write(b *strings.Builder) {
	d.open.write(b)
	for _, e := range d.entries {
		e.key.write(b)
		e.eq.write(b)
		e.value.write(b)
		e.semi.write(b)
	}
	d.close.write(b)
}
func (d *Dict) lead() string        { return d.open.lead }
func (d *Dict) setLead(lead string) { d.open.lead = lead }

// Entries returns the entries in document order
func (d *Dict) Entries() []*Entry {
	return d.entries
}

// Keys returns the unquoted keys in document order
func (d *Dict) Keys() []string {
	keys := make([]string, 0, len(d.entries))
	for _, e := range d.entries {
		keys = append(keys, e.Key())
	}
	return keys
}

func (d *Dict) entry(key string) *Entry {
	for _, e := range d.entries {
		if e.Key() == key {
			return e
		}
	}
	return nil
}

// Get returns the value stored under key or nil
func (d *Dict) Get(key string) Node {
	if e := d.entry(key); e != nil {
		return e.value
	}
	return nil
}

// GetString returns the string stored under key
func (d *Dict) GetString(key string) (string, bool) {
	s, ok := d.Get(key).(*String)
	if !ok {
		return "", false
	}
	return s.Value(), true
}

// GetDict returns the dictionary stored under key or nil
func (d *Dict) GetDict(key string) *Dict {
	dict, _ := d.Get(key).(*Dict)
	return dict
}

// GetArray returns the array stored under key or nil
func (d *Dict) GetArray(key string) *Array {
	arr, _ := d.Get(key).(*Array)
	return arr
}

// Set replaces the value under key, keeping the entry's position and surrounding layout.
// A new key is inserted before the first key that sorts after it.
func (d *Dict) Set(key string, value Node) {
	if e := d.entry(key); e != nil {
		brk, multiline := lineBreak(e.key.lead())
		layout(value, brk, multiline)
		value.setLead(e.value.lead())
		e.value = value
		return
	}
	lead := d.entryLead()
	brk, multiline := lineBreak(lead)
	layout(value, brk, multiline)
	value.setLead(" ")
	e := &Entry{
		key:   &String{tok: token{kind: tString, lead: lead, text: Quote(key)}},
		eq:    token{kind: tEquals, lead: " ", text: "="},
		value: value,
		semi:  token{kind: tSemicolon, text: ";"},
	}
	at := len(d.entries)
	for i, existing := range d.entries {
		if existing.Key() > key {
			at = i
			break
		}
	}
	if at == 0 && len(d.entries) > 0 {
		// the first entry's lead may carry comments that belong before the dict body
		e.key.setLead(d.entries[0].key.lead())
		d.entries[0].key.setLead(lead)
	}
	d.entries = append(d.entries, nil)
	copy(d.entries[at+1:], d.entries[at:])
	d.entries[at] = e
}

func (d *Dict) entryLead() string {
	if n := len(d.entries); n > 0 {
		if brk, ok := lineBreak(d.entries[n-1].key.lead()); ok {
			return brk
		}
		return " "
	}
	if brk, ok := lineBreak(d.close.lead); ok {
		return brk + "\t"
	}
	return " "
}

// Item is an array element with its optional trailing comma
type Item struct {
	value Node
	comma *token
}

// Value returns the element
func (i *Item) Value() Node {
	return i.value
}

// Array is a `( a, b, )` list
type Array struct {
	open  token
	items []*Item
	close token
	// fresh arrays are laid out when they are stored in a Dict
	fresh bool
}

// NewArray returns an array of strings
func NewArray(values ...string) *Array {
	a := &Array{
		open:  token{kind: tOpenArray, text: "("},
		close: token{kind: tCloseArray, text: ")"},
		fresh: true,
	}
	for _, v := range values {
		a.items = append(a.items, &Item{value: NewString(v)})
	}
	return a
}

func (a *Array) write(b *strings.Builder) {
	a.open.write(b)
	for _, item := range a.items {
		item.value.write(b)
		if item.comma != nil {
			item.comma.write(b)
		}
	}
	a.close.write(b)
}
func (a *Array) lead() string        { return a.open.lead }
func (a *Array) setLead(lead string) { a.open.lead = lead }

// Items returns the elements in document order
func (a *Array) Items() []*Item {
	return a.items
}

// Values returns the unquoted string elements, skipping nested arrays and dicts
func (a *Array) Values() []string {
	var values []string
	for _, item := range a.items {
		if s, ok := item.value.(*String); ok {
			values = append(values, s.Value())
		}
	}
	return values
}

// Contains reports whether a string element equals value
func (a *Array) Contains(value string) bool {
	for _, v := range a.Values() {
		if v == value {
			return true
		}
	}
	return false
}

// Append adds a string element after the last one, following the array's existing layout
func (a *Array) Append(value string) {
	item := &Item{value: NewString(value)}
	if a.fresh {
		a.items = append(a.items, item)
		return
	}
	comma := func() *token { return &token{kind: tComma, text: ","} }
	n := len(a.items)
	switch {
	case n == 0:
		if brk, ok := lineBreak(a.close.lead); ok {
			item.value.setLead(brk + "\t")
			item.comma = comma()
		}
	default:
		last := a.items[n-1]
		if brk, ok := lineBreak(last.value.lead()); ok {
			item.value.setLead(brk)
		} else {
			item.value.setLead(" ")
		}
		if last.comma == nil {
			last.comma = comma()
		} else {
			item.comma = comma()
		}
	}
	a.items = append(a.items, item)
}

// Dedupe removes repeated string elements, keeping the first occurrence of each in
// place. It reports whether anything was removed.
func (a *Array) Dedupe() bool {
	var (
		seen = map[string]bool{}
		kept []*Item
	)
	for _, item := range a.items {
		if s, ok := item.value.(*String); ok {
			if seen[s.Value()] {
				continue
			}
			seen[s.Value()] = true
		}
		kept = append(kept, item)
	}
	if len(kept) == len(a.items) {
		return false
	}
	// the new last element closes the list the way the old one did
	kept[len(kept)-1].comma = a.items[len(a.items)-1].comma
	a.items = kept
	return true
}

// layout gives a freshly built array the Xcode multi-line layout. brk is the line
// break and indentation of the entry holding it.
func layout(n Node, brk string, multiline bool) {
	a, ok := n.(*Array)
	if !ok || !a.fresh {
		return
	}
	a.fresh = false
	for _, item := range a.items {
		if multiline {
			item.value.setLead(brk + "\t")
		} else {
			item.value.setLead(" ")
		}
		item.comma = &token{kind: tComma, text: ","}
	}
	if multiline {
		a.close.lead = brk
	} else {
		a.close.lead = " "
	}
}

// lineBreak returns the last line break in lead, "\n" or "\r\n", followed by the
// indentation after it
func lineBreak(lead string) (string, bool) {
	i := strings.LastIndexByte(lead, '\n')
	if i < 0 {
		return "", false
	}
	if i > 0 && lead[i-1] == '\r' {
		i--
	}
	return lead[i:], true
}

// Document is a parsed project file
type Document struct {
	Root *Dict
	tail token
}

// Bytes serializes the document
func (d *Document) Bytes() []byte {
	var b strings.Builder
	d.Root.write(&b)
	d.tail.write(&b)
	return []byte(b.String())
}

// Objects returns the root `objects` dictionary keyed by object id, or nil
func (d *Document) Objects() *Dict {
	return d.Root.GetDict("objects")
}
