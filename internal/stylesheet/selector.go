package stylesheet

import (
	"fmt"
	"strings"
)

// resolveSelectors combines a nested selector list with its parents. Lists
// multiply parent-major; "&" is replaced by the parent, otherwise the child
// becomes a descendant.
func resolveSelectors(parents []string, sel string) ([]string, error) {
	var children []string
	for _, c := range splitTopLevel(sel, ',') {
		c = collapseSpace(c)
		if c == "" {
			return nil, fmt.Errorf("empty selector in %q", sel)
		}
		children = append(children, c)
	}
	if len(parents) == 0 {
		for _, c := range children {
			if strings.Contains(c, "&") {
				return nil, fmt.Errorf("top-level selectors may not contain the parent selector \"&\"")
			}
		}
		return children, nil
	}
	out := make([]string, 0, len(parents)*len(children))
	for _, p := range parents {
		for _, c := range children {
			if strings.Contains(c, "&") {
				out = append(out, strings.ReplaceAll(c, "&", p))
				continue
			}
			out = append(out, p+" "+c)
		}
	}
	return out, nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// formatSelector normalizes whitespace around the >, + and ~ combinators
// outside of brackets, parentheses and strings.
func formatSelector(sel string, compressed bool) string {
	sel = collapseSpace(sel)
	var b strings.Builder
	var quote byte
	depth := 0
	for i := 0; i < len(sel); i++ {
		c := sel[i]
		if quote != 0 {
			b.WriteByte(c)
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case '>', '+', '~':
			if depth == 0 {
				s := strings.TrimRight(b.String(), " ")
				b.Reset()
				b.WriteString(s)
				if compressed {
					b.WriteByte(c)
				} else {
					if s != "" {
						b.WriteByte(' ')
					}
					b.WriteByte(c)
					b.WriteByte(' ')
				}
				for i+1 < len(sel) && sel[i+1] == ' ' {
					i++
				}
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// isPlaceholder reports whether sel targets a %placeholder; such selectors
// only exist to be extended and are never emitted.
func isPlaceholder(sel string) bool {
	var quote byte
	for i := 0; i < len(sel); i++ {
		c := sel[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '%':
			if i+1 < len(sel) && isIdentStart(sel[i+1]) && (i == 0 || !isDigit(sel[i-1])) {
				return true
			}
		}
	}
	return false
}
