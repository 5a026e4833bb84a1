package fqn

import (
	"strings"
)

// GlobalNamespace stands in for types declared outside any namespace.
const GlobalNamespace = "(global)"

// Sanitize trims s and removes all interior whitespace. An empty result
// becomes GlobalNamespace.
func Sanitize(s string) string {
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return GlobalNamespace
	}
	return s
}

// ClassKey returns the document and graph key of a class: "<ns>::<class>".
func ClassKey(namespace, class string) string {
	return Sanitize(namespace) + "::" + Sanitize(class)
}

// MethodKey returns the graph key of a method owned by a class.
func MethodKey(namespace, class, method string) string {
	return ClassKey(namespace, class) + "." + Sanitize(method)
}

// SignatureKey returns the key of a method node whose owner is not known:
// only the operation name and request/response types identify it.
func SignatureKey(method, request, response string) string {
	return "sig:" + Sanitize(method) + "(" + Compact(request) + ")" + Compact(response)
}

// ProcedureKey returns the graph key of a stored procedure.
func ProcedureKey(name string) string {
	return "proc:" + name
}

// IsSignatureKey reports whether key was produced by SignatureKey.
func IsSignatureKey(key string) bool {
	return strings.HasPrefix(key, "sig:")
}

// Compact removes all whitespace from s.
func Compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// StripGlobal removes every "global::" alias qualifier from a type name.
func StripGlobal(name string) string {
	return strings.ReplaceAll(name, "global::", "")
}

// SplitQualified splits a dotted type name into its namespace part and
// simple name. Dots inside generic argument lists are ignored, and any
// generic argument list on the simple name is dropped.
//
//	SplitQualified("A.B.Foo<X.Y>") == ("A.B", "Foo")
func SplitQualified(name string) (namespace, simple string) {
	name = StripGenerics(Compact(name))
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// StripGenerics drops every generic argument list from a type name.
func StripGenerics(name string) string {
	if !strings.Contains(name, "<") {
		return name
	}
	var b strings.Builder
	depth := 0
	for _, r := range name {
		switch {
		case r == '<':
			depth++
		case r == '>':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NamespaceChain returns ns and each of its enclosing namespaces, innermost
// first: "A.B.C" yields ["A.B.C", "A.B", "A"].
func NamespaceChain(ns string) []string {
	if ns == "" || ns == GlobalNamespace {
		return nil
	}
	var out []string
	for {
		out = append(out, ns)
		i := strings.LastIndexByte(ns, '.')
		if i < 0 {
			return out
		}
		ns = ns[:i]
	}
}
