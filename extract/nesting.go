package extract

import (
	"strings"

	"github.com/minios-linux/i18nsync/keys"
	"github.com/minios-linux/i18nsync/scope"
	"github.com/minios-linux/i18nsync/syntax"
)

// nested extracts $t(key, options) references embedded in a translation
// value. depth counts how many values have been unwrapped so far.
func (v *visitor) nested(s string, loc keys.Location, depth int) {
	prefix := v.e.opts.NestingPrefix
	suffix := v.e.opts.NestingSuffix
	if !strings.Contains(s, prefix) {
		return
	}
	if depth > MaxNestingDepth {
		v.diag(keys.NestingDepthExceeded, loc, "nested translations deeper than %d levels", MaxNestingDepth)
		return
	}

	for from := 0; from < len(s); {
		i := strings.Index(s[from:], prefix)
		if i < 0 {
			return
		}
		start := from + i + len(prefix)
		end := closeNesting(s, start, prefix, suffix)
		if end < 0 {
			return
		}
		body := s[start:end]
		from = end + len(suffix)

		if strings.Contains(body, prefix) {
			v.nested(body, loc, depth+1)
			continue
		}

		key, opts := splitNesting(body, v.e.opts.NestingOptionsSeparator)
		key = strings.Trim(strings.TrimSpace(key), `'"`)
		var co callOptions
		if opts != "" {
			if obj, ok := v.parseOptions(opts); ok {
				v.options(obj, &co, loc)
			}
		}
		v.emit(key, scope.Record{}, co, loc, depth)
	}
}

func (v *visitor) parseOptions(text string) (*syntax.ObjectLit, bool) {
	e, err := v.e.parser.ParseExpression(v.ctx, text)
	if err != nil {
		return nil, false
	}
	obj, ok := e.(*syntax.ObjectLit)
	return obj, ok
}

// closeNesting finds the suffix that closes the reference whose body
// starts at start. Inner references and quoted strings are skipped.
func closeNesting(s string, start int, prefix, suffix string) int {
	depth := 0
	var quote byte
	for i := start; i < len(s); i++ {
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
		switch {
		case ch == '"' || ch == '\'':
			quote = ch
		case strings.HasPrefix(s[i:], prefix):
			depth++
			i += len(prefix) - 1
		case strings.HasPrefix(s[i:], suffix):
			if depth == 0 {
				return i
			}
			depth--
			i += len(suffix) - 1
		}
	}
	return -1
}

// splitNesting splits at the first separator outside quotes.
func splitNesting(body, sep string) (key, opts string) {
	var quote byte
	for i := 0; i < len(body); i++ {
		ch := body[i]
		if quote != 0 {
			if ch == quote {
				quote = 0
			}
			continue
		}
		if ch == '"' || ch == '\'' {
			quote = ch
			continue
		}
		if strings.HasPrefix(body[i:], sep) {
			return body[:i], strings.TrimSpace(body[i+len(sep):])
		}
	}
	return body, ""
}
