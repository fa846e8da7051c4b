package expr

import (
	"strings"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// Site is one reference occurrence inside a template block.
type Site struct {
	Ref Reference
	// Standalone is true when the reference is the whole block, as in "{{2.title}}".
	Standalone bool
	// Block is the full text between the braces.
	Block string
	// Start is the offset of the reference within Block.
	Start int
}

// Preceding returns the block text before the reference, trimmed.
func (s Site) Preceding() string {
	return strings.TrimSpace(s.Block[:s.Start])
}

// RewriteFunc returns replacement text for a reference token, or false to
// keep it. The replacement is spliced in place of the token only, so it may
// be a reference or any expression.
type RewriteFunc func(site Site) (string, bool)

// HasTemplate reports whether s contains a template block.
func HasTemplate(s string) bool {
	return strings.Contains(s, openDelim)
}

// References returns every reference in s.
func References(s string) []Site {
	var sites []Site

	Rewrite(s, func(site Site) (string, bool) {
		sites = append(sites, site)

		return "", false
	})

	return sites
}

// Rewrite applies fn to every reference in s and returns the new text and the
// number of tokens that changed.
func Rewrite(s string, fn RewriteFunc) (string, int) {
	if !HasTemplate(s) {
		return s, 0
	}

	var (
		out     strings.Builder
		changed int
	)

	out.Grow(len(s))

	rest := s
	for {
		open := strings.Index(rest, openDelim)
		if open < 0 {
			out.WriteString(rest)

			break
		}

		bodyStart := open + len(openDelim)

		end := findClose(rest, bodyStart)
		if end < 0 {
			out.WriteString(rest)

			break
		}

		out.WriteString(rest[:bodyStart])

		body, n := rewriteBlock(rest[bodyStart:end], fn)
		out.WriteString(body)
		out.WriteString(closeDelim)

		changed += n
		rest = rest[end+len(closeDelim):]
	}

	if changed == 0 {
		return s, 0
	}

	return out.String(), changed
}

// findClose returns the index of the "}}" closing a block whose body starts
// at start, ignoring braces inside double-quoted literals.
func findClose(s string, start int) int {
	inQuote := false

	for i := start; i < len(s)-1; i++ {
		switch {
		case s[i] == '"':
			inQuote = !inQuote
		case !inQuote && s[i] == '}' && s[i+1] == '}':
			return i
		}
	}

	// An unbalanced quote must not hide the close delimiter.
	if inQuote {
		idx := strings.Index(s[start:], closeDelim)
		if idx >= 0 {
			return start + idx
		}
	}

	return -1
}

func rewriteBlock(block string, fn RewriteFunc) (string, int) {
	var (
		out     strings.Builder
		changed int
		inQuote bool
	)

	trimmed := strings.TrimSpace(block)

	for i := 0; i < len(block); {
		c := block[i]

		if c == '"' {
			inQuote = !inQuote
		}

		if inQuote || !isDigit(c) || !atBoundary(block, i) {
			out.WriteByte(c)
			i++

			continue
		}

		ref, end, ok := scanReference(block, i)
		if !ok {
			for i < len(block) && isDigit(block[i]) {
				out.WriteByte(block[i])
				i++
			}

			continue
		}

		token := block[i:end]
		site := Site{Ref: ref, Standalone: token == trimmed, Block: block, Start: i}

		repl, ok := fn(site)
		if ok && repl != token {
			out.WriteString(repl)
			changed++
		} else {
			out.WriteString(token)
		}

		i = end
	}

	return out.String(), changed
}

func atBoundary(s string, i int) bool {
	if i == 0 {
		return true
	}

	prev := s[i-1]

	return !isIdentByte(prev) && prev != '.' && prev != '`' && prev != ']'
}
