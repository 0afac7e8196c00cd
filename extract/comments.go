package extract

import (
	"regexp"
	"strings"

	"github.com/minios-linux/i18nsync/scope"
	"github.com/minios-linux/i18nsync/syntax"
)

var markerRe = regexp.MustCompile(`i18next-extract-(disable-next-line|disable-line|disable|enable)`)

// lineSet holds disabled lines. ranges are inclusive; an open range ends
// at the end of the file.
type lineSet struct {
	lines  map[int]bool
	ranges [][2]int
}

func (s lineSet) has(line int) bool {
	if s.lines[line] {
		return true
	}
	for _, r := range s.ranges {
		if line >= r[0] && (r[1] < 0 || line <= r[1]) {
			return true
		}
	}
	return false
}

// disabledLines scans comments for extraction markers.
func disabledLines(comments []syntax.Comment) lineSet {
	s := lineSet{lines: make(map[int]bool)}
	open := -1
	for _, c := range comments {
		for _, m := range markerRe.FindAllStringSubmatch(c.Text, -1) {
			switch m[1] {
			case "disable-line":
				for l := c.Pos.Line; l <= c.EndLine; l++ {
					s.lines[l] = true
				}
			case "disable-next-line":
				s.lines[c.EndLine+1] = true
			case "disable":
				if open < 0 {
					open = c.Pos.Line
				}
			case "enable":
				if open >= 0 {
					s.ranges = append(s.ranges, [2]int{open, c.EndLine})
					open = -1
				}
			}
		}
	}
	if open >= 0 {
		s.ranges = append(s.ranges, [2]int{open, -1})
	}
	return s
}

// comment extracts every configured function call written inside a
// comment, for example `// t('menu.open')`.
func (v *visitor) comment(c syntax.Comment) {
	if markerRe.MatchString(c.Text) {
		return
	}
	for _, fn := range v.e.plainFns {
		from := 0
		for {
			i := strings.Index(c.Text[from:], fn+"(")
			if i < 0 {
				break
			}
			i += from
			from = i + len(fn) + 1
			if i > 0 && isIdentByte(c.Text[i-1]) {
				continue
			}
			end := matchParen(c.Text, i+len(fn))
			if end < 0 {
				continue
			}
			line := c.Pos.Line + strings.Count(c.Text[:i], "\n")
			if v.disabled.has(line) {
				continue
			}
			expr, err := v.e.parser.ParseExpression(v.ctx, c.Text[i:end+1])
			if err != nil {
				continue
			}
			call, ok := expr.(*syntax.CallExpr)
			if !ok {
				continue
			}
			col := c.Pos.Column
			if nl := strings.LastIndexByte(c.Text[:i], '\n'); nl >= 0 {
				col = i - nl
			} else {
				col += i
			}
			v.call(call.Args, scope.Record{}, v.loc(syntax.Position{Line: line, Column: col}), 0)
			from = end + 1
		}
	}
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '$' || b == '.' ||
		b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// matchParen returns the index of the parenthesis closing the one at open,
// skipping quoted strings. It returns -1 when unbalanced.
func matchParen(s string, open int) int {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			switch ch {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"', '`':
			quote = ch
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
