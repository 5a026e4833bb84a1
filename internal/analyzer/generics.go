package analyzer

import "strings"

// GenericBlock returns the text between the outermost angle brackets that
// directly follow name at the start of text. It reports false when text
// does not start with "name<" or the brackets never balance.
//
//	GenericBlock("BOAExecuter<A<B,C>, D>.Execute", "BOAExecuter") == ("A<B,C>, D", true)
func GenericBlock(text, name string) (string, bool) {
	if !strings.HasPrefix(text, name+"<") {
		return "", false
	}
	start := len(name)
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '<':
			depth++
		case '>':
			depth--
			if depth == 0 {
				return text[start+1 : i], true
			}
		}
	}
	return "", false
}

// ParseGenericArguments splits a generic argument block on its top-level
// commas. Commas nested inside <...>, (...) or [...] do not split. Each
// argument is trimmed; empty arguments are dropped. A block with unbalanced
// brackets yields nil.
//
//	ParseGenericArguments("A<B,C>, D") == []string{"A<B,C>", "D"}
func ParseGenericArguments(block string) []string {
	var args []string
	depth := 0
	start := 0
	for i := 0; i < len(block); i++ {
		switch block[i] {
		case '<', '(', '[':
			depth++
		case '>', ')', ']':
			depth--
			if depth < 0 {
				return nil
			}
		case ',':
			if depth == 0 {
				args = appendArg(args, block[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil
	}
	return appendArg(args, block[start:])
}

func appendArg(args []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		args = append(args, s)
	}
	return args
}
