package expr

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RewriteJSON applies fn to every reference inside every string literal of a
// serialized JSON document. Literals without a template block are copied
// byte for byte. It returns the new text and the number of changed tokens.
func RewriteJSON(data []byte, fn RewriteFunc) ([]byte, int, error) {
	var (
		out     bytes.Buffer
		changed int
		last    int
	)

	for i := 0; i < len(data); i++ {
		if data[i] != '"' {
			continue
		}

		end, err := stringEnd(data, i)
		if err != nil {
			return nil, 0, err
		}

		literal := data[i : end+1]
		if bytes.Contains(literal, []byte(openDelim)) {
			var s string

			err = json.Unmarshal(literal, &s)
			if err != nil {
				return nil, 0, fmt.Errorf("decode string literal at %d: %w", i, err)
			}

			rewritten, n := Rewrite(s, fn)
			if n > 0 {
				encoded, err := encodeString(rewritten)
				if err != nil {
					return nil, 0, err
				}

				out.Write(data[last:i])
				out.Write(encoded)

				last = end + 1
				changed += n
			}
		}

		i = end
	}

	if changed == 0 {
		return data, 0, nil
	}

	out.Write(data[last:])

	return out.Bytes(), changed, nil
}

// stringEnd returns the index of the quote closing the literal opened at i.
func stringEnd(data []byte, i int) (int, error) {
	for j := i + 1; j < len(data); j++ {
		switch data[j] {
		case '\\':
			j++
		case '"':
			return j, nil
		}
	}

	return 0, fmt.Errorf("unterminated string literal at %d", i)
}

func encodeString(s string) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	err := enc.Encode(s)
	if err != nil {
		return nil, err
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
