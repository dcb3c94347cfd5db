package avromsg

import "strings"

// node is the part of an Avro schema needed to strip union wrappers from
// goavro's native output.
type node struct {
	kind     string
	name     string
	fields   map[string]*node
	items    *node
	branches map[string]*node
	ref      string
	named    map[string]*node
}

var primitives = map[string]bool{
	"null": true, "boolean": true, "int": true, "long": true,
	"float": true, "double": true, "bytes": true, "string": true,
}

func compile(raw interface{}, namespace string, named map[string]*node) *node {
	switch s := raw.(type) {
	case string:
		if primitives[s] {
			return &node{kind: s, named: named}
		}
		return &node{kind: "ref", ref: qualify(s, namespace), named: named}
	case []interface{}:
		n := &node{kind: "union", branches: make(map[string]*node, len(s)), named: named}
		for _, b := range s {
			branch := compile(b, namespace, named)
			n.branches[branch.unionKey()] = branch
		}
		return n
	case map[string]interface{}:
		return compileComplex(s, namespace, named)
	default:
		return &node{kind: "unknown", named: named}
	}
}

func compileComplex(s map[string]interface{}, namespace string, named map[string]*node) *node {
	typ, _ := s["type"].(string)
	if ns, ok := s["namespace"].(string); ok {
		namespace = ns
	}
	n := &node{kind: typ, named: named}
	if name, ok := s["name"].(string); ok {
		n.name = qualify(name, namespace)
		if i := strings.LastIndexByte(n.name, '.'); i >= 0 {
			namespace = n.name[:i]
		}
		named[n.name] = n
	}
	switch typ {
	case "record", "error":
		n.kind = "record"
		n.fields = map[string]*node{}
		fields, _ := s["fields"].([]interface{})
		for _, f := range fields {
			fm, ok := f.(map[string]interface{})
			if !ok {
				continue
			}
			name, _ := fm["name"].(string)
			n.fields[name] = compile(fm["type"], namespace, named)
		}
	case "array":
		n.items = compile(s["items"], namespace, named)
	case "map":
		n.items = compile(s["values"], namespace, named)
	case "enum", "fixed":
	default:
		if lt, ok := s["logicalType"].(string); ok {
			n.kind = typ + "." + lt
		} else if _, nested := s["type"].(string); !nested {
			return compile(s["type"], namespace, named)
		}
	}
	return n
}

func qualify(name, namespace string) string {
	if strings.Contains(name, ".") || namespace == "" {
		return name
	}
	return namespace + "." + name
}

// unionKey is the key goavro uses for this branch of a union.
func (n *node) unionKey() string {
	switch {
	case n.name != "":
		return n.name
	case n.kind == "ref":
		return n.ref
	default:
		return n.kind
	}
}

func (n *node) resolve() *node {
	if n.kind == "ref" {
		if target, ok := n.named[n.ref]; ok {
			return target
		}
	}
	return n
}

// unwrap replaces every {"branch": value} union wrapper with value.
func (n *node) unwrap(v interface{}) interface{} {
	n = n.resolve()
	switch n.kind {
	case "union":
		wrapped, ok := v.(map[string]interface{})
		if !ok || len(wrapped) != 1 {
			return v
		}
		for key, inner := range wrapped {
			if branch, ok := n.branches[key]; ok {
				return branch.unwrap(inner)
			}
			return inner
		}
	case "record":
		rec, ok := v.(map[string]interface{})
		if !ok {
			return v
		}
		out := make(map[string]interface{}, len(rec))
		for k, fv := range rec {
			if fn, ok := n.fields[k]; ok {
				out[k] = fn.unwrap(fv)
			} else {
				out[k] = fv
			}
		}
		return out
	case "array":
		arr, ok := v.([]interface{})
		if !ok {
			return v
		}
		out := make([]interface{}, len(arr))
		for i, e := range arr {
			out[i] = n.items.unwrap(e)
		}
		return out
	case "map":
		m, ok := v.(map[string]interface{})
		if !ok {
			return v
		}
		out := make(map[string]interface{}, len(m))
		for k, e := range m {
			out[k] = n.items.unwrap(e)
		}
		return out
	}
	return v
}
