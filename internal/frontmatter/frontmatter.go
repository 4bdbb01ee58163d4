// Package frontmatter separates a leading YAML block from page content.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sitesmith/internal/data"
)

// ErrMissingClosingDelimiter indicates the document opened a front matter
// block that never closes.
var ErrMissingClosingDelimiter = errors.New("front matter start delimiter found but closing delimiter is missing")

// Document is a source file split into its front matter and body.
type Document struct {
	Data data.Data
	Body []byte
	// BodyLine is the 1-based line on which Body starts in the original file.
	BodyLine int
	Had      bool
}

// Split separates YAML front matter (`---` delimited) from the body.
//
// A document that does not start with the delimiter has no front matter;
// Body is the full input and Data is empty.
func Split(content []byte) (Document, error) {
	content = bytes.TrimPrefix(content, []byte("\uFEFF"))
	nl := detectNewline(content)

	open := []byte("---" + nl)
	if !bytes.HasPrefix(content, open) {
		return Document{Data: data.Data{}, Body: content, BodyLine: 1}, nil
	}
	start := len(open)

	var raw, body []byte
	switch {
	case bytes.HasPrefix(content[start:], open):
		raw, body = nil, content[start+len(open):]
	case bytes.Equal(content[start:], []byte("---")):
		raw, body = nil, nil
	default:
		closeSeq := []byte(nl + "---" + nl)
		idx := bytes.Index(content[start:], closeSeq)
		switch {
		case idx >= 0:
			raw = content[start : start+idx+len(nl)]
			body = content[start+idx+len(closeSeq):]
		case bytes.HasSuffix(content, []byte(nl+"---")):
			raw = content[start : len(content)-len("---")]
			body = nil
		default:
			return Document{}, ErrMissingClosingDelimiter
		}
	}

	fields, err := ParseYAML(raw)
	if err != nil {
		return Document{}, err
	}
	consumed := len(content) - len(body)
	return Document{
		Data:     fields,
		Body:     body,
		BodyLine: bytes.Count(content[:consumed], []byte("\n")) + 1,
		Had:      true,
	}, nil
}

// ParseYAML parses raw front matter (without delimiters) into a map.
func ParseYAML(raw []byte) (data.Data, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return data.Data{}, nil
	}
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("parse front matter: %w", err)
	}
	if len(node.Content) > 0 && node.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("front matter must be a mapping, got %s", kindName(node.Content[0].Kind))
	}
	var fields map[string]any
	if err := node.Decode(&fields); err != nil {
		return nil, fmt.Errorf("parse front matter: %w", err)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return data.Data(fields), nil
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "a sequence"
	case yaml.ScalarNode:
		return "a scalar"
	default:
		return "a non-mapping value"
	}
}

func detectNewline(content []byte) string {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
