// Package template resolves keys and bodies from message fields.
//
// A template is written as a printf pattern followed by the fields that
// supply its placeholders, separated by commas:
//
//	"order-%s-%s,order_number,item.id"
//
// A template without placeholders is a constant. Field values are always
// rendered to strings first, so only the %s, %v and %q verbs are accepted.
package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/message"
)

var placeholder = regexp.MustCompile(`%%|%[-#+ 0]*(\d+|\*)?(\.(\d+|\*))?([a-zA-Z])`)

// Template is a compiled pattern. It is immutable and safe for concurrent use.
type Template struct {
	raw     string
	pattern string
	fields  []string
}

// New compiles a template. It fails when the number of placeholders differs
// from the number of fields or a placeholder is not a string verb.
func New(raw string) (*Template, error) {
	var parts []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "template is empty")
	}

	t := &Template{raw: raw, pattern: parts[0], fields: parts[1:]}
	n, err := countPlaceholders(t.pattern)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid template").WithDetail("template", raw)
	}
	if n != len(t.fields) {
		return nil, errors.Newf(errors.ErrorTypeConfig,
			"template %q has %d placeholders but %d fields", raw, n, len(t.fields))
	}
	return t, nil
}

// MustNew is New for templates known to be valid.
func MustNew(raw string) *Template {
	t, err := New(raw)
	if err != nil {
		panic(err)
	}
	return t
}

func countPlaceholders(pattern string) (int, error) {
	n := 0
	for _, m := range placeholder.FindAllStringSubmatch(pattern, -1) {
		if m[0] == "%%" {
			continue
		}
		switch m[4] {
		case "s", "v", "q":
			n++
		default:
			return 0, fmt.Errorf("placeholder %s does not format strings", m[0])
		}
	}
	return n, nil
}

// Fields returns the names of the fields the template reads.
func (t *Template) Fields() []string {
	return t.fields
}

// IsConstant reports whether the template reads no fields.
func (t *Template) IsConstant() bool {
	return len(t.fields) == 0
}

func (t *Template) String() string {
	return t.raw
}

// Render substitutes the rendered field values into the pattern.
func (t *Template) Render(m message.ParsedMessage) (string, error) {
	if t.IsConstant() {
		return strings.ReplaceAll(t.pattern, "%%", "%"), nil
	}
	args := make([]interface{}, len(t.fields))
	for i, name := range t.fields {
		f, err := m.FieldByName(name)
		if err != nil {
			return "", err
		}
		s, err := f.Render()
		if err != nil {
			return "", err
		}
		args[i] = s
	}
	return fmt.Sprintf(t.pattern, args...), nil
}

// RenderTyped returns the field's native value when the template is exactly
// "%s" over one field, and the Render result otherwise.
func (t *Template) RenderTyped(m message.ParsedMessage) (interface{}, error) {
	if t.pattern == "%s" && len(t.fields) == 1 {
		f, err := m.FieldByName(t.fields[0])
		if err != nil {
			return nil, err
		}
		return f.Value(), nil
	}
	return t.Render(m)
}
