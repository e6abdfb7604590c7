package engine

import (
	"regexp"
	"slices"
	"strings"
)

// Function is a top-level function found in a source file.
type Function struct {
	Name        string
	Source      string // Declaration through the end of its body.
	DocComments string // Comment block immediately above the declaration.
}

// jsFuncDecl matches "function name(" with optional export/default/async and generics.
var jsFuncDecl = regexp.MustCompile(`(?m)^[ \t]*(?:export[ \t]+)?(?:default[ \t]+)?(?:async[ \t]+)?function[ \t]*\*?[ \t]*([A-Za-z_$][\w$]*)[ \t]*(?:<[^>\n]*>)?[ \t]*\(`)

// jsArrowDecl matches "const name = (" / "const name = async x =>" / "const name = function(".
var jsArrowDecl = regexp.MustCompile(`(?m)^[ \t]*(?:export[ \t]+)?(?:const|let|var)[ \t]+([A-Za-z_$][\w$]*)[ \t]*(?::[^=\n]+)?=[ \t]*(?:async[ \t]+)?(?:function\b|\(|[A-Za-z_$][\w$]*[ \t]*=>)`)

// pyFuncDecl matches a module-level "def name(" or "async def name(".
var pyFuncDecl = regexp.MustCompile(`(?m)^(?:async[ \t]+)?def[ \t]+([A-Za-z_]\w*)[ \t]*\(`)

// fenceBlock matches the first closed fenced block with an optional info string.
var fenceBlock = regexp.MustCompile("(?s)```[^\\n`]*\\n(.*?)```")

// fenceOpen matches an opening fence whose block was never closed.
var fenceOpen = regexp.MustCompile("(?s)```[^\\n`]*\\n(.*)$")

// ExtractCodeBlock returns the inner text of the first fenced code block in
// candidate. ok is false when no fence was found; the trimmed raw text is
// returned instead. A truncated block (opening fence only) counts as found.
func ExtractCodeBlock(candidate string) (code string, ok bool) {
	if m := fenceBlock.FindStringSubmatch(candidate); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := fenceOpen.FindStringSubmatch(candidate); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return strings.TrimSpace(candidate), false
}

// ExtractFunctions finds top-level JavaScript/TypeScript functions in
// content: function declarations and const/let/var bindings to arrow or
// function expressions. Bodies are found by brace balancing that skips
// strings and comments. Results are in source order; a name seen twice keeps
// its first occurrence.
func ExtractFunctions(content string) []Function {
	type hit struct {
		start, nameStart, nameEnd, headEnd int
		arrow                              bool
	}
	var hits []hit
	for _, m := range jsFuncDecl.FindAllStringSubmatchIndex(content, -1) {
		hits = append(hits, hit{start: m[0], nameStart: m[2], nameEnd: m[3], headEnd: m[1]})
	}
	for _, m := range jsArrowDecl.FindAllStringSubmatchIndex(content, -1) {
		hits = append(hits, hit{start: m[0], nameStart: m[2], nameEnd: m[3], headEnd: m[1], arrow: true})
	}
	slices.SortFunc(hits, func(a, b hit) int { return a.start - b.start })

	var out []Function
	seen := make(map[string]bool)
	consumed := 0
	for _, h := range hits {
		if h.start < consumed {
			continue // nested inside a previous function
		}
		var end int
		if h.arrow {
			end = arrowEnd(content, h.start, h.headEnd)
		} else {
			end = declEnd(content, h.headEnd)
		}
		if end <= h.start {
			continue
		}
		name := content[h.nameStart:h.nameEnd]
		consumed = end
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, Function{
			Name:        name,
			Source:      strings.TrimSpace(content[h.start:end]),
			DocComments: precedingComment(content, h.start),
		})
	}
	return out
}

// declEnd returns the offset just past the body of a function declaration
// whose head ends at from, or -1.
func declEnd(content string, from int) int {
	open := strings.IndexByte(content[from:], '{')
	if open < 0 {
		return -1
	}
	return matchPair(content, from+open, '{', '}')
}

// arrowEnd returns the end of a binding whose head spans [start, from):
// a function expression body, or the body after "=>" (braced, or an
// expression ending at ";" or end of line). -1 when the binding is not a function.
func arrowEnd(content string, start, from int) int {
	head := content[start:from]
	switch {
	case strings.HasSuffix(head, "function"):
		return declEnd(content, from)
	case strings.HasSuffix(head, "("):
		closeParen := matchPair(content, from-1, '(', ')')
		if closeParen < 0 {
			return -1
		}
		arrow := strings.Index(content[closeParen:], "=>")
		// Only a return type annotation may sit between ")" and "=>".
		if arrow < 0 || strings.ContainsAny(content[closeParen:closeParen+arrow], ";=") {
			return -1
		}
		from = closeParen + arrow + 2
	}
	i := from
	for i < len(content) && (content[i] == ' ' || content[i] == '\t') {
		i++
	}
	if i < len(content) && content[i] == '{' {
		return matchPair(content, i, '{', '}')
	}
	if nl := strings.IndexAny(content[i:], ";\n"); nl >= 0 {
		return i + nl + 1
	}
	return len(content)
}

// matchPair returns the offset just past the closer matching the opener at
// open, or -1 when unbalanced. String, template, and comment contents are ignored.
func matchPair(s string, open int, opener, closer byte) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch c := s[i]; c {
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return i + 1
			}
		case '"', '\'', '`':
			i = skipString(s, i, c)
		case '/':
			if i+1 < len(s) && s[i+1] == '/' {
				nl := strings.IndexByte(s[i:], '\n')
				if nl < 0 {
					return -1
				}
				i += nl
			} else if i+1 < len(s) && s[i+1] == '*' {
				endC := strings.Index(s[i+2:], "*/")
				if endC < 0 {
					return -1
				}
				i += endC + 3
			}
		}
	}
	return -1
}

// skipString returns the index of the closing quote for the string opened at i.
func skipString(s string, i int, quote byte) int {
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case quote:
			return j
		case '\n':
			if quote != '`' {
				return j
			}
		}
	}
	return len(s) - 1
}

// precedingComment returns the // or /* */ block directly above offset start.
func precedingComment(content string, start int) string {
	lines := strings.Split(content[:start], "\n")
	// The last element is the indentation before the declaration on its own line.
	if len(lines) < 2 || strings.TrimSpace(lines[len(lines)-1]) != "" {
		return ""
	}
	lines = lines[:len(lines)-1]
	i := len(lines) - 1
	if i < 0 {
		return ""
	}
	last := strings.TrimSpace(lines[i])
	switch {
	case strings.HasSuffix(last, "*/"):
		j := i
		for j >= 0 && !strings.Contains(lines[j], "/*") {
			j--
		}
		if j < 0 {
			return ""
		}
		return trimLines(lines[j : i+1])
	case strings.HasPrefix(last, "//"):
		j := i
		for j >= 0 && strings.HasPrefix(strings.TrimSpace(lines[j]), "//") {
			j--
		}
		return trimLines(lines[j+1 : i+1])
	}
	return ""
}

// ExtractPythonFunctions finds module-level def blocks. A body runs until
// the next non-blank line at column 0. Preceding # comments and decorators
// are not part of Source; # comments become DocComments.
func ExtractPythonFunctions(content string) []Function {
	lines := strings.Split(content, "\n")
	offsets := make([]int, len(lines)+1)
	for i, l := range lines {
		offsets[i+1] = offsets[i] + len(l) + 1
	}
	lineOf := func(off int) int {
		for i := range lines {
			if offsets[i+1] > off {
				return i
			}
		}
		return len(lines) - 1
	}
	var out []Function
	seen := make(map[string]bool)
	for _, m := range pyFuncDecl.FindAllStringSubmatchIndex(content, -1) {
		name := content[m[2]:m[3]]
		first := lineOf(m[0])
		last := first
		for k := first + 1; k < len(lines); k++ {
			l := lines[k]
			if strings.TrimSpace(l) == "" {
				continue
			}
			if l[0] != ' ' && l[0] != '\t' && !strings.HasPrefix(l, ")") {
				break
			}
			last = k
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		var doc []string
		for k := first - 1; k >= 0 && strings.HasPrefix(strings.TrimSpace(lines[k]), "#"); k-- {
			doc = append([]string{strings.TrimSpace(lines[k])}, doc...)
		}
		out = append(out, Function{
			Name:        name,
			Source:      strings.TrimRight(strings.Join(lines[first:last+1], "\n"), "\n "),
			DocComments: strings.Join(doc, "\n"),
		})
	}
	return out
}

func trimLines(lines []string) string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimSpace(l)
	}
	return strings.Join(out, "\n")
}
