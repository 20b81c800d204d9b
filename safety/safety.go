// Package safety statically screens submitted function source before it is
// ever persisted. It parses the source into a syntax tree and rejects
// anything that imports modules, calls a denylisted builtin, or does not
// declare the required entry point. The source is never executed here.
package safety

import (
	"strings"

	"go.starlark.net/syntax"

	"fnbox/fault"
)

// EntryPoint is the only function name the sandbox will invoke.
const EntryPoint = "process"

// ParamName is the single argument the entry point must declare.
const ParamName = "parameters"

// Calls to these names are rejected outright: file access and dynamic code
// execution. A denylist is inherently incomplete against a determined
// adversary; an allowlist of permitted operations would be stronger but
// would change which programs are accepted.
var deniedCalls = map[string]bool{
	"open": true,
	"eval": true,
	"exec": true,
}

// Attribute calls with these names are rejected regardless of receiver.
// Purely syntactic; no type inference.
var deniedAttrs = map[string]bool{
	"read":   true,
	"write":  true,
	"delete": true,
}

// FileOptions is the language dialect accepted from users: loops, top-level
// control flow, and recursion are all permitted. The sandbox worker parses
// with the same options so the validator and the interpreter agree on what
// is a program.
var FileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// Validate accepts or rejects raw source. A nil return means the source is
// safe to persist. Failures carry SyntaxInvalid, UnsafeConstruct, or
// SignatureInvalid. Same input always yields the same verdict.
func Validate(source string) error {
	// "import" is a reserved word in the grammar, so an import construct
	// anywhere must be caught before parsing to report it as unsafe rather
	// than as a syntax error.
	if hasImport(source) {
		return fault.New(fault.UnsafeConstruct, "import statements are not allowed")
	}

	file, err := FileOptions.Parse("function.star", source, 0)
	if err != nil {
		return fault.New(fault.SyntaxInvalid, "invalid syntax: %v", err)
	}

	var unsafe *fault.Error
	for _, stmt := range file.Stmts {
		syntax.Walk(stmt, func(n syntax.Node) bool {
			if unsafe != nil {
				return false
			}
			switch node := n.(type) {
			case *syntax.LoadStmt:
				unsafe = fault.New(fault.UnsafeConstruct, "import statements are not allowed")
				return false
			case *syntax.CallExpr:
				switch fn := node.Fn.(type) {
				case *syntax.Ident:
					if deniedCalls[fn.Name] {
						unsafe = fault.New(fault.UnsafeConstruct, "file operations and code execution are not allowed: %s", fn.Name)
						return false
					}
				case *syntax.DotExpr:
					if deniedAttrs[fn.Name.Name] {
						unsafe = fault.New(fault.UnsafeConstruct, "file operations are not allowed: .%s", fn.Name.Name)
						return false
					}
				}
			}
			return true
		})
		if unsafe != nil {
			return unsafe
		}
	}

	return checkSignature(source, file)
}

// checkSignature requires the top-level declaration to be
// `def process(parameters)`.
func checkSignature(source string, file *syntax.File) error {
	// Leading blank lines carry no meaning; the heuristic reads the first
	// line with content.
	firstLine := strings.TrimLeft(source, " \t\r\n")
	if idx := strings.IndexByte(firstLine, '\n'); idx >= 0 {
		firstLine = firstLine[:idx]
	}
	if !strings.HasPrefix(strings.TrimSpace(firstLine), "def "+EntryPoint) {
		return fault.New(fault.SignatureInvalid, "function must be named %q", EntryPoint)
	}

	if len(file.Stmts) == 0 {
		return fault.New(fault.SignatureInvalid, "code must define a function")
	}
	def, ok := file.Stmts[0].(*syntax.DefStmt)
	if !ok {
		return fault.New(fault.SignatureInvalid, "code must define a function")
	}
	if def.Name.Name != EntryPoint {
		return fault.New(fault.SignatureInvalid, "function must be named %q", EntryPoint)
	}

	if len(def.Params) != 1 {
		return fault.New(fault.SignatureInvalid, "function must accept exactly one argument named %q", ParamName)
	}
	param, ok := def.Params[0].(*syntax.Ident)
	if !ok || param.Name != ParamName {
		return fault.New(fault.SignatureInvalid, "function must accept exactly one argument named %q", ParamName)
	}

	return nil
}

// hasImport reports whether the source contains an import token outside of
// comments and string literals. The word "import" inside a string is data,
// not a construct, and must not trip the gate.
func hasImport(source string) bool {
	i := 0
	for i < len(source) {
		switch c := source[i]; {
		case c == '#':
			for i < len(source) && source[i] != '\n' {
				i++
			}

		case c == '"' || c == '\'':
			i = skipString(source, i)

		case isIdentByte(c):
			j := i
			for j < len(source) && isIdentByte(source[j]) {
				j++
			}
			if source[i:j] == "import" {
				return true
			}
			i = j

		default:
			i++
		}
	}
	return false
}

// skipString advances past the string literal opening at source[i],
// honoring escapes and triple quotes.
func skipString(source string, i int) int {
	quote := source[i]
	if strings.HasPrefix(source[i:], strings.Repeat(string(quote), 3)) {
		closing := strings.Repeat(string(quote), 3)
		i += 3
		for i < len(source) && !strings.HasPrefix(source[i:], closing) {
			if source[i] == '\\' {
				i++
			}
			i++
		}
		return i + 3
	}

	i++
	for i < len(source) && source[i] != quote && source[i] != '\n' {
		if source[i] == '\\' {
			i++
		}
		i++
	}
	if i < len(source) {
		i++
	}
	return i
}

func isIdentByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}
