// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// The scanner below is a token-level reading of Python, not a parser. It
// exists to answer one question about an artifact buffer: which names does
// the code read without ever binding? Strings and comments are opaque, so
// names that only occur inside f-string substitutions are not seen.

type tokKind int

const (
	tokIdent tokKind = iota
	tokKeyword
	tokNumber
	tokString
	tokOp
	tokNewline
)

type pyToken struct {
	kind tokKind
	text string
	// bracket nesting depth at the token. Newlines are only emitted at
	// depth zero, so a statement is everything between two newlines.
	depth int
}

var pyKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true,
	"class": true, "continue": true, "def": true, "del": true, "elif": true,
	"else": true, "except": true, "finally": true, "for": true, "from": true,
	"global": true, "if": true, "import": true, "in": true, "is": true,
	"lambda": true, "nonlocal": true, "not": true, "or": true, "pass": true,
	"raise": true, "return": true, "try": true, "while": true, "with": true,
	"yield": true,
}

var pyBuiltins = map[string]bool{
	"abs": true, "aiter": true, "all": true, "anext": true, "any": true,
	"ascii": true, "bin": true, "bool": true, "breakpoint": true,
	"bytearray": true, "bytes": true, "callable": true, "chr": true,
	"classmethod": true, "compile": true, "complex": true, "delattr": true,
	"dict": true, "dir": true, "divmod": true, "enumerate": true,
	"eval": true, "exec": true, "exit": true, "filter": true, "float": true,
	"format": true, "frozenset": true, "getattr": true, "globals": true,
	"hasattr": true, "hash": true, "help": true, "hex": true, "id": true,
	"input": true, "int": true, "isinstance": true, "issubclass": true,
	"iter": true, "len": true, "list": true, "locals": true, "map": true,
	"max": true, "memoryview": true, "min": true, "next": true,
	"object": true, "oct": true, "open": true, "ord": true, "pow": true,
	"print": true, "property": true, "quit": true, "range": true,
	"repr": true, "reversed": true, "round": true, "set": true,
	"setattr": true, "slice": true, "sorted": true, "staticmethod": true,
	"str": true, "sum": true, "super": true, "tuple": true, "type": true,
	"vars": true, "zip": true,

	"ArithmeticError": true, "AssertionError": true, "AttributeError": true,
	"BaseException": true, "BaseExceptionGroup": true,
	"BlockingIOError": true, "BrokenPipeError": true, "BufferError": true,
	"BytesWarning": true, "ChildProcessError": true,
	"ConnectionAbortedError": true, "ConnectionError": true,
	"ConnectionRefusedError": true, "ConnectionResetError": true,
	"DeprecationWarning": true, "EOFError": true, "EncodingWarning": true,
	"EnvironmentError": true, "Exception": true, "ExceptionGroup": true,
	"FileExistsError": true, "FileNotFoundError": true,
	"FloatingPointError": true, "FutureWarning": true, "GeneratorExit": true,
	"IOError": true, "ImportError": true, "ImportWarning": true,
	"IndentationError": true, "IndexError": true, "InterruptedError": true,
	"IsADirectoryError": true, "KeyError": true, "KeyboardInterrupt": true,
	"LookupError": true, "MemoryError": true, "ModuleNotFoundError": true,
	"NameError": true, "NotADirectoryError": true,
	"NotImplementedError": true, "OSError": true, "OverflowError": true,
	"PendingDeprecationWarning": true, "PermissionError": true,
	"ProcessLookupError": true, "RecursionError": true,
	"ReferenceError": true, "ResourceWarning": true, "RuntimeError": true,
	"RuntimeWarning": true, "StopAsyncIteration": true,
	"StopIteration": true, "SyntaxError": true, "SyntaxWarning": true,
	"SystemError": true, "SystemExit": true, "TabError": true,
	"TimeoutError": true, "TypeError": true, "UnboundLocalError": true,
	"UnicodeDecodeError": true, "UnicodeEncodeError": true,
	"UnicodeError": true, "UnicodeTranslateError": true,
	"UnicodeWarning": true, "UserWarning": true, "ValueError": true,
	"Warning": true, "ZeroDivisionError": true,

	"Ellipsis": true, "NotImplemented": true, "__debug__": true,
	"__builtins__": true, "__doc__": true, "__file__": true,
	"__import__": true, "__loader__": true, "__name__": true,
	"__package__": true, "__spec__": true,
}

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "//=": true,
	"%=": true, "**=": true, ">>=": true, "<<=": true, "&=": true,
	"|=": true, "^=": true, "@=": true,
}

var threeByteOps = []string{"**=", "//=", ">>=", "<<=", "..."}

var twoByteOps = []string{
	":=", "->", "==", "!=", "<=", ">=", "+=", "-=", "*=", "/=", "%=",
	"&=", "|=", "^=", "@=", "**", "//", "<<", ">>",
}

func lexPython(src string) []pyToken {
	var toks []pyToken
	depth := 0
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '\n':
			if depth == 0 {
				toks = append(toks, pyToken{kind: tokNewline})
			}
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '\\':
			i++
			if i < len(src) && src[i] == '\r' {
				i++
			}
			if i < len(src) && src[i] == '\n' {
				i++
			}
		case c == '\'' || c == '"':
			i += scanPyString(src[i:])
			toks = append(toks, pyToken{kind: tokString, depth: depth})
		case c >= '0' && c <= '9' || c == '.' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9':
			j := i + 1
			for j < len(src) && (isIdentByte(src[j]) || src[j] == '.') {
				j++
			}
			toks = append(toks, pyToken{kind: tokNumber, text: src[i:j], depth: depth})
			i = j
		default:
			r, size := utf8.DecodeRuneInString(src[i:])
			if r == '_' || unicode.IsLetter(r) {
				word, n := scanPyIdent(src[i:])
				if isStringPrefix(word) && i+n < len(src) && (src[i+n] == '\'' || src[i+n] == '"') {
					i += n
					i += scanPyString(src[i:])
					toks = append(toks, pyToken{kind: tokString, depth: depth})
					continue
				}
				kind := tokIdent
				if pyKeywords[word] {
					kind = tokKeyword
				}
				toks = append(toks, pyToken{kind: kind, text: word, depth: depth})
				i += n
				continue
			}
			if size > 1 {
				// non-ASCII punctuation carries no binding information
				i += size
				continue
			}
			op := scanPyOp(src[i:])
			switch op {
			case "(", "[", "{":
				toks = append(toks, pyToken{kind: tokOp, text: op, depth: depth})
				depth++
			case ")", "]", "}":
				if depth > 0 {
					depth--
				}
				toks = append(toks, pyToken{kind: tokOp, text: op, depth: depth})
			default:
				toks = append(toks, pyToken{kind: tokOp, text: op, depth: depth})
			}
			i += len(op)
		}
	}
	return toks
}

// scanPyString returns the byte length of the string literal at the start of
// s, including quotes. Unterminated single-quoted literals end at the next
// newline so one bad line cannot swallow the rest of the buffer.
func scanPyString(s string) int {
	quote := s[0]
	if len(s) >= 3 && s[1] == quote && s[2] == quote {
		for i := 3; i < len(s); i++ {
			switch s[i] {
			case '\\':
				i++
			case quote:
				if i+2 < len(s) && s[i+1] == quote && s[i+2] == quote {
					return i + 3
				}
			}
		}
		return len(s)
	}
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			return i + 1
		case '\n':
			return i
		}
	}
	return len(s)
}

func scanPyIdent(s string) (string, int) {
	i := 0
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		i += size
	}
	return s[:i], i
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isStringPrefix(word string) bool {
	switch strings.ToLower(word) {
	case "r", "b", "u", "f", "br", "rb", "fr", "rf":
		return true
	}
	return false
}

func scanPyOp(s string) string {
	for _, op := range threeByteOps {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	for _, op := range twoByteOps {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return s[:1]
}

// missingNames reports the identifiers code reads but never binds, sorted.
// Binding occurrences are assignment and augmented-assignment targets, for
// targets, as-clause names, def/class names and def parameters, lambda
// parameters, walrus targets, and import-bound names.
func missingNames(code string) []string {
	toks := lexPython(code)
	defs := map[string]bool{}
	uses := map[string]bool{}
	start := 0
	for i := 0; i <= len(toks); i++ {
		if i < len(toks) && toks[i].kind != tokNewline {
			continue
		}
		if i > start {
			scanStatement(toks[start:i], defs, uses)
		}
		start = i + 1
	}
	var missing []string
	for name := range uses {
		if !defs[name] && !pyBuiltins[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

func scanStatement(st []pyToken, defs, uses map[string]bool) {
	if st[0].kind == tokKeyword {
		switch st[0].text {
		case "import":
			markImportedNames(st[1:], defs)
			return
		case "from":
			markFromImport(st, defs)
			return
		}
	}

	assignAt := -1
	for i, t := range st {
		if t.kind == tokOp && t.depth == 0 && assignOps[t.text] {
			assignAt = i
			break
		}
	}
	annotated := assignAt == -1 && len(st) >= 2 &&
		st[0].kind == tokIdent && st[1].kind == tokOp && st[1].text == ":"
	delStmt := st[0].kind == tokKeyword && st[0].text == "del"

	var paramDepth []int
	lambdaAt := -1

	for i := 0; i < len(st); i++ {
		t := st[i]
		switch t.kind {
		case tokKeyword:
			switch t.text {
			case "def", "class":
				if i+1 < len(st) && st[i+1].kind == tokIdent {
					defs[st[i+1].text] = true
					if t.text == "def" && i+2 < len(st) && st[i+2].text == "(" {
						paramDepth = append(paramDepth, st[i+2].depth+1)
					}
					i++
				}
			case "lambda":
				lambdaAt = t.depth
			case "for":
				// everything between for and its in is a target
				for i++; i < len(st); i++ {
					if st[i].kind == tokKeyword && st[i].text == "in" && st[i].depth == t.depth {
						break
					}
					if st[i].kind == tokIdent && !prevIsDot(st, i) {
						defs[st[i].text] = true
					}
				}
			case "as":
				if i+1 < len(st) && st[i+1].kind == tokIdent {
					defs[st[i+1].text] = true
					i++
				}
			}
		case tokOp:
			switch {
			case t.text == ")" && len(paramDepth) > 0 && t.depth == paramDepth[len(paramDepth)-1]-1:
				paramDepth = paramDepth[:len(paramDepth)-1]
			case t.text == ":" && t.depth == lambdaAt:
				lambdaAt = -1
			}
		case tokIdent:
			inParams := len(paramDepth) > 0 && t.depth == paramDepth[len(paramDepth)-1]
			switch {
			case prevIsDot(st, i):
				// attribute access
			case inParams && paramPosition(st, i):
				defs[t.text] = true
			case lambdaAt >= 0 && t.depth == lambdaAt && lambdaParamPosition(st, i):
				defs[t.text] = true
			case nextOpText(st, i) == ":=":
				defs[t.text] = true
			case t.depth == 0 && assignOps[nextOpText(st, i)]:
				defs[t.text] = true
			case t.depth > 0 && nextOpText(st, i) == "=" && !inParams:
				// keyword argument in a call
			case assignAt >= 0 && i < assignAt && t.depth == 0:
				defs[t.text] = true
			case annotated && i == 0:
				defs[t.text] = true
			case delStmt && t.depth == 0:
				// del unbinds; neither a read nor a definition
			default:
				uses[t.text] = true
			}
		}
	}
}

// markImportedNames handles the clause after an import keyword:
// dotted names bind their first segment, as-clauses bind the alias.
func markImportedNames(toks []pyToken, defs map[string]bool) {
	expectName := true
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.kind == tokKeyword && t.text == "as":
			if i+1 < len(toks) && toks[i+1].kind == tokIdent {
				defs[toks[i+1].text] = true
				i++
			}
			expectName = false
		case t.kind == tokOp && t.text == ",":
			expectName = true
		case t.kind == tokIdent && expectName:
			defs[t.text] = true
			expectName = false
		}
	}
}

func markFromImport(st []pyToken, defs map[string]bool) {
	i := 1
	seenModule := false
	for ; i < len(st); i++ {
		if st[i].kind == tokKeyword && st[i].text == "import" {
			i++
			break
		}
		if st[i].kind == tokIdent && !seenModule {
			defs[st[i].text] = true
			seenModule = true
		}
	}
	if i < len(st) {
		markImportedNames(st[i:], defs)
	}
}

func prevIsDot(st []pyToken, i int) bool {
	return i > 0 && st[i-1].kind == tokOp && st[i-1].text == "."
}

func nextOpText(st []pyToken, i int) string {
	if i+1 < len(st) && st[i+1].kind == tokOp {
		return st[i+1].text
	}
	return ""
}

func paramPosition(st []pyToken, i int) bool {
	if i == 0 {
		return false
	}
	prev := st[i-1]
	if prev.kind != tokOp {
		return false
	}
	switch prev.text {
	case "(", ",", "*", "**":
		return true
	}
	return false
}

func lambdaParamPosition(st []pyToken, i int) bool {
	if i == 0 {
		return false
	}
	prev := st[i-1]
	if prev.kind == tokKeyword && prev.text == "lambda" {
		return true
	}
	if prev.kind == tokOp {
		switch prev.text {
		case ",", "*", "**":
			return true
		}
	}
	return false
}
