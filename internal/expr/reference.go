package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a reference path.
type Segment struct {
	// Name is the field key without quoting.
	Name string
	// Quoted marks a backtick-quoted key.
	Quoted bool
	// Indexed marks a bracket suffix; Index is its content ("" for []).
	Indexed bool
	Index   string
}

// Reference points at a field of another module's output.
type Reference struct {
	Module int
	Path   []Segment
}

// ErrInvalidReference is returned when text is not a single reference.
var ErrInvalidReference = errors.New("invalid reference")

// Field returns a plain segment.
func Field(name string) Segment {
	return Segment{Name: name}
}

// Each returns an array segment ("name[]").
func Each(name string) Segment {
	return Segment{Name: name, Indexed: true}
}

// String formats the segment as it appears in a template.
func (s Segment) String() string {
	var b strings.Builder

	if s.Quoted {
		b.WriteByte('`')
		b.WriteString(s.Name)
		b.WriteByte('`')
	} else {
		b.WriteString(s.Name)
	}

	if s.Indexed {
		b.WriteByte('[')
		b.WriteString(s.Index)
		b.WriteByte(']')
	}

	return b.String()
}

// String formats the reference without braces, e.g. "2.person_id.phone[].value".
func (r Reference) String() string {
	parts := make([]string, 0, len(r.Path)+1)
	parts = append(parts, strconv.Itoa(r.Module))

	for _, s := range r.Path {
		parts = append(parts, s.String())
	}

	return strings.Join(parts, ".")
}

// Template formats the reference as a standalone template, e.g. "{{2.title}}".
func (r Reference) Template() string {
	return "{{" + r.String() + "}}"
}

// Names returns the segment names.
func (r Reference) Names() []string {
	names := make([]string, len(r.Path))
	for i, s := range r.Path {
		names[i] = s.Name
	}

	return names
}

// Head returns the first segment name, or "".
func (r Reference) Head() string {
	if len(r.Path) == 0 {
		return ""
	}

	return r.Path[0].Name
}

// Depth returns the number of path segments.
func (r Reference) Depth() int {
	return len(r.Path)
}

// HasPrefix reports whether the path starts with the given names.
func (r Reference) HasPrefix(names ...string) bool {
	if len(names) > len(r.Path) {
		return false
	}

	for i, n := range names {
		if r.Path[i].Name != n {
			return false
		}
	}

	return true
}

// Replace returns a copy whose first n segments are replaced by segs.
func (r Reference) Replace(n int, segs ...Segment) Reference {
	n = min(n, len(r.Path))

	path := make([]Segment, 0, len(segs)+len(r.Path)-n)
	path = append(path, segs...)
	path = append(path, r.Path[n:]...)

	return Reference{Module: r.Module, Path: path}
}

// Append returns a copy with segs added after the last segment.
func (r Reference) Append(segs ...Segment) Reference {
	path := make([]Segment, 0, len(r.Path)+len(segs))
	path = append(path, r.Path...)
	path = append(path, segs...)

	return Reference{Module: r.Module, Path: path}
}

// Truncate returns a copy keeping only the first n segments.
func (r Reference) Truncate(n int) Reference {
	n = min(n, len(r.Path))

	return Reference{Module: r.Module, Path: append([]Segment(nil), r.Path[:n]...)}
}

// WithModule returns a copy pointing at another module.
func (r Reference) WithModule(id int) Reference {
	return Reference{Module: id, Path: append([]Segment(nil), r.Path...)}
}

// Equal reports whether two references format identically.
func (r Reference) Equal(o Reference) bool {
	return r.String() == o.String()
}

// ParseReference parses a reference without braces, e.g. "2.person_id.name".
func ParseReference(s string) (Reference, error) {
	ref, end, ok := scanReference(s, 0)
	if !ok || end != len(s) {
		return Reference{}, fmt.Errorf("%w: %q", ErrInvalidReference, s)
	}

	return ref, nil
}

// MustParseReference is ParseReference that panics on error.
func MustParseReference(s string) Reference {
	ref, err := ParseReference(s)
	if err != nil {
		panic(err)
	}

	return ref
}

// ParsePath parses a dotted field path without a module id, e.g. "phones[].value".
func ParsePath(s string) ([]Segment, error) {
	ref, err := ParseReference("0." + s)
	if err != nil {
		return nil, fmt.Errorf("%w: path %q", ErrInvalidReference, s)
	}

	return ref.Path, nil
}

// scanReference reads a reference starting at s[i]. It returns the index just
// past the reference.
func scanReference(s string, i int) (Reference, int, bool) {
	start := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}

	if i == start || i >= len(s) || s[i] != '.' {
		return Reference{}, 0, false
	}

	id, err := strconv.Atoi(s[start:i])
	if err != nil {
		return Reference{}, 0, false
	}

	ref := Reference{Module: id}

	for i < len(s) && s[i] == '.' {
		seg, next, ok := scanSegment(s, i+1)
		if !ok {
			break
		}

		if len(ref.Path) == 0 && !seg.Quoted && isAllDigits(seg.Name) {
			return Reference{}, 0, false
		}

		ref.Path = append(ref.Path, seg)
		i = next
	}

	if len(ref.Path) == 0 {
		return Reference{}, 0, false
	}

	return ref, i, true
}

func scanSegment(s string, i int) (Segment, int, bool) {
	var seg Segment

	switch {
	case i < len(s) && s[i] == '`':
		end := strings.IndexByte(s[i+1:], '`')
		if end < 0 {
			return Segment{}, 0, false
		}

		seg = Segment{Name: s[i+1 : i+1+end], Quoted: true}
		i += end + 2
	default:
		start := i
		for i < len(s) && isIdentByte(s[i]) {
			i++
		}

		if i == start {
			return Segment{}, 0, false
		}

		seg = Segment{Name: s[start:i]}
	}

	if i < len(s) && s[i] == '[' {
		end := strings.IndexByte(s[i+1:], ']')
		if end < 0 {
			return Segment{}, 0, false
		}

		seg.Indexed = true
		seg.Index = s[i+1 : i+1+end]
		i += end + 2
	}

	return seg, i, true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentByte(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isAllDigits(s string) bool {
	for i := range len(s) {
		if !isDigit(s[i]) {
			return false
		}
	}

	return s != ""
}
