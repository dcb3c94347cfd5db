package httpsink

import (
	"net/http"
	"net/url"
	"sort"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/nebula-sink/pkg/config"
	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/message"
	"github.com/ajitpratap0/nebula-sink/pkg/template"
)

// Request is one message's share of an HTTP call. In BATCH mode only Body
// is used and becomes one element of the JSON array.
type Request struct {
	URL    string
	Header http.Header
	Body   []byte
}

type namedTemplate struct {
	name string
	tmpl *template.Template
}

// requestBuilder renders requests from parsed messages.
type requestBuilder struct {
	mode     message.Mode
	bodyMode string
	url      *template.Template
	headers  []namedTemplate
	params   []namedTemplate
	body     *jsonTemplate
}

func compileNamed(m map[string]string) ([]namedTemplate, error) {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]namedTemplate, 0, len(names))
	for _, name := range names {
		t, err := template.New(m[name])
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid template").WithDetail("name", name)
		}
		out = append(out, namedTemplate{name: name, tmpl: t})
	}
	return out, nil
}

func newRequestBuilder(cfg config.HTTPConfig, mode message.Mode) (*requestBuilder, error) {
	u, err := template.New(cfg.URL)
	if err != nil {
		return nil, err
	}
	headers, err := compileNamed(cfg.Headers)
	if err != nil {
		return nil, err
	}
	params, err := compileNamed(cfg.Parameters)
	if err != nil {
		return nil, err
	}
	b := &requestBuilder{mode: mode, bodyMode: cfg.BodyMode, url: u, headers: headers, params: params}
	if cfg.BodyMode == config.BodyTemplate {
		var doc interface{}
		if err := gojson.Unmarshal([]byte(cfg.BodyTemplate), &doc); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "http body_template is not valid JSON")
		}
		if b.body, err = compileJSON(doc); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// constant reports whether URL, headers and parameters are the same for
// every message.
func (b *requestBuilder) constant() bool {
	if !b.url.IsConstant() {
		return false
	}
	for _, h := range b.headers {
		if !h.tmpl.IsConstant() {
			return false
		}
	}
	for _, p := range b.params {
		if !p.tmpl.IsConstant() {
			return false
		}
	}
	return true
}

// Build implements sink.RecordBuilder.
func (b *requestBuilder) Build(msg *message.Message, parsed message.ParsedMessage) ([]interface{}, error) {
	target, err := b.target(parsed)
	if err != nil {
		return nil, err
	}
	header := make(http.Header, len(b.headers))
	for _, h := range b.headers {
		v, err := h.tmpl.Render(parsed)
		if err != nil {
			return nil, err
		}
		header.Set(h.name, v)
	}
	body, err := b.renderBody(msg, parsed)
	if err != nil {
		return nil, err
	}
	return []interface{}{&Request{URL: target, Header: header, Body: body}}, nil
}

func (b *requestBuilder) target(parsed message.ParsedMessage) (string, error) {
	raw, err := b.url.Render(parsed)
	if err != nil {
		return "", err
	}
	if len(b.params) == 0 {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInvalidMessage, "rendered url is invalid")
	}
	q := u.Query()
	for _, p := range b.params {
		v, err := p.tmpl.Render(parsed)
		if err != nil {
			return "", err
		}
		q.Set(p.name, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (b *requestBuilder) renderBody(msg *message.Message, parsed message.ParsedMessage) ([]byte, error) {
	switch b.bodyMode {
	case config.BodyJSON:
		m, err := parsed.Mapping()
		if err != nil {
			return nil, err
		}
		return gojson.Marshal(message.JSONValue(m))
	case config.BodyTemplate:
		v, err := b.body.render(parsed)
		if err != nil {
			return nil, err
		}
		return gojson.Marshal(v)
	default:
		return msg.Payload(b.mode)
	}
}

// jsonTemplate is a JSON document whose object keys are rendered with Render
// and whose string leaves are rendered with RenderTyped.
type jsonTemplate struct {
	leaf    *template.Template
	keys    []*template.Template
	values  []*jsonTemplate
	items   []*jsonTemplate
	isList  bool
	isMap   bool
	literal interface{}
}

func compileJSON(v interface{}) (*jsonTemplate, error) {
	switch val := v.(type) {
	case string:
		t, err := template.New(val)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid body template value").WithDetail("value", val)
		}
		return &jsonTemplate{leaf: t}, nil
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		jt := &jsonTemplate{isMap: true}
		for _, k := range keys {
			kt, err := template.New(k)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid body template key").WithDetail("key", k)
			}
			vt, err := compileJSON(val[k])
			if err != nil {
				return nil, err
			}
			jt.keys = append(jt.keys, kt)
			jt.values = append(jt.values, vt)
		}
		return jt, nil
	case []interface{}:
		jt := &jsonTemplate{isList: true, items: make([]*jsonTemplate, 0, len(val))}
		for _, e := range val {
			it, err := compileJSON(e)
			if err != nil {
				return nil, err
			}
			jt.items = append(jt.items, it)
		}
		return jt, nil
	default:
		return &jsonTemplate{literal: val}, nil
	}
}

func (t *jsonTemplate) render(parsed message.ParsedMessage) (interface{}, error) {
	switch {
	case t.leaf != nil:
		v, err := t.leaf.RenderTyped(parsed)
		if err != nil {
			return nil, err
		}
		return message.JSONValue(v), nil
	case t.isMap:
		out := make(map[string]interface{}, len(t.keys))
		for i, kt := range t.keys {
			k, err := kt.Render(parsed)
			if err != nil {
				return nil, err
			}
			v, err := t.values[i].render(parsed)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	case t.isList:
		out := make([]interface{}, len(t.items))
		for i, it := range t.items {
			v, err := it.render(parsed)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	default:
		return t.literal, nil
	}
}
