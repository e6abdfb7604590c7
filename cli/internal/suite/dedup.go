package suite

import "strings"

// DedupImports drops repeated top-level import statements from merged test
// source. An import line (starting at column 0 with "import ", or a Python
// "from x import y") is kept only on its first exact occurrence. A brace
// import spanning several lines is compared as a whole. Indented imports are
// local to a function body and always kept. All other lines keep their order,
// duplicates included.
func DedupImports(src string) string {
	lines := strings.Split(src, "\n")
	seen := make(map[string]struct{})
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		if !isImport(lines[i]) {
			out = append(out, lines[i])
			continue
		}
		end := importEnd(lines, i)
		stmt := strings.Join(lines[i:end+1], "\n")
		if _, dup := seen[stmt]; !dup {
			seen[stmt] = struct{}{}
			out = append(out, lines[i:end+1]...)
		}
		i = end
	}
	return strings.Join(out, "\n")
}

func isImport(line string) bool {
	if strings.HasPrefix(line, "import ") {
		return true
	}
	return strings.HasPrefix(line, "from ") && strings.Contains(line, " import ")
}

// importEnd returns the index of the last line of the import starting at i.
// Only an unclosed "{" or "(" extends a statement past its first line.
func importEnd(lines []string, i int) int {
	opener, closer := "{", "}"
	if !strings.Contains(lines[i], opener) {
		opener, closer = "(", ")"
	}
	if !strings.Contains(lines[i], opener) || strings.Contains(lines[i], closer) {
		return i
	}
	for j := i + 1; j < len(lines); j++ {
		if strings.Contains(lines[j], closer) {
			return j
		}
	}
	return i
}
