package dom

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// The evaluator supports the subset of XPath 1.0 used by the locator table:
//   - /html/body/div[4]/main        absolute child path
//   - //*[@id='heading0']/button     descendant step anywhere in the path
//   - //li[contains(@ng-click, 'x')] contains() over @attr, text(), ., and
//     normalize-space()/translate() wrappers
//   - tr[2], div[@class='x'][1]      positional and attribute predicates

type xpathAxis int

const (
	axisChild xpathAxis = iota
	axisDescendant
)

type xpathStep struct {
	axis  xpathAxis
	tag   string
	preds []xpathPredicate
}

type xpathPredicate struct {
	position  int // 1-based
	attrName  string
	attrValue string
	attrEq    bool
	contains  *containsExpr
}

// containsExpr is contains(source, 'needle').
type containsExpr struct {
	source    string // "text", "self", "attr"
	attr      string
	normalize bool
	from, to  string // translate() maps, applied after normalize
	needle    string
}

// evaluateXPath evaluates expr from root and returns matches in the order
// they are first reached.
func evaluateXPath(root *html.Node, expr string) []*html.Node {
	steps, err := parseXPath(expr)
	if err != nil {
		return nil
	}

	current := []*html.Node{root}
	for _, st := range steps {
		seen := make(map[*html.Node]bool)
		var next []*html.Node
		for _, ctx := range current {
			visit := func(c *html.Node) {
				if !seen[c] && matchesXPathStep(c, st) {
					seen[c] = true
					next = append(next, c)
				}
			}
			if st.axis == axisChild {
				for c := ctx.FirstChild; c != nil; c = c.NextSibling {
					visit(c)
				}
			} else {
				walkDescendants(ctx, visit)
			}
		}
		current = next
		if len(current) == 0 {
			return nil
		}
	}
	return current
}

func walkDescendants(n *html.Node, fn func(*html.Node)) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		fn(c)
		walkDescendants(c, fn)
	}
}

// parseXPath splits an expression into steps. A bare expression without a
// leading slash is treated as a descendant search.
func parseXPath(expr string) ([]xpathStep, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("xpath: empty expression")
	}

	var steps []xpathStep
	axis := axisDescendant
	i := 0
	switch {
	case strings.HasPrefix(expr, "//"):
		i = 2
	case strings.HasPrefix(expr, "/"):
		axis = axisChild
		i = 1
	}

	for i < len(expr) {
		end := scanStep(expr, i)
		raw := expr[i:end]
		if raw == "" {
			return nil, fmt.Errorf("xpath: empty step in %q", expr)
		}
		st, err := parseXPathStep(raw)
		if err != nil {
			return nil, err
		}
		st.axis = axis
		steps = append(steps, st)

		i = end
		axis = axisChild
		if strings.HasPrefix(expr[i:], "//") {
			axis = axisDescendant
			i += 2
		} else if strings.HasPrefix(expr[i:], "/") {
			i++
		}
	}
	return steps, nil
}

// scanStep returns the index of the next '/' outside predicates and quotes.
func scanStep(expr string, from int) int {
	depth := 0
	var quote byte
	for i := from; i < len(expr); i++ {
		c := expr[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '[':
			depth++
		case c == ']':
			depth--
		case c == '/' && depth == 0:
			return i
		}
	}
	return len(expr)
}

// parseXPathStep parses "div", "div[2]", "*[@id='x']", "li[contains(@a,'b')]".
func parseXPathStep(step string) (xpathStep, error) {
	idx := strings.IndexByte(step, '[')
	if idx < 0 {
		return xpathStep{tag: step}, nil
	}
	st := xpathStep{tag: step[:idx]}

	rest := step[idx:]
	for len(rest) > 0 {
		if rest[0] != '[' {
			return st, fmt.Errorf("xpath: malformed step %q", step)
		}
		end := matchBracket(rest)
		if end < 0 {
			return st, fmt.Errorf("xpath: unbalanced predicate in %q", step)
		}
		pred, err := parsePredicate(strings.TrimSpace(rest[1:end]))
		if err != nil {
			return st, err
		}
		st.preds = append(st.preds, pred)
		rest = rest[end+1:]
	}
	return st, nil
}

func matchBracket(s string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '[':
			depth++
		case c == ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func parsePredicate(p string) (xpathPredicate, error) {
	if n, err := strconv.Atoi(p); err == nil {
		return xpathPredicate{position: n}, nil
	}

	if strings.HasPrefix(p, "@") {
		attrExpr := p[1:]
		if eq := strings.IndexByte(attrExpr, '='); eq >= 0 {
			return xpathPredicate{
				attrName:  strings.TrimSpace(attrExpr[:eq]),
				attrValue: unquote(attrExpr[eq+1:]),
				attrEq:    true,
			}, nil
		}
		return xpathPredicate{attrName: strings.TrimSpace(attrExpr)}, nil
	}

	if inner, ok := call(p, "contains"); ok {
		args := splitArgs(inner)
		if len(args) != 2 {
			return xpathPredicate{}, fmt.Errorf("xpath: contains() wants 2 args: %q", p)
		}
		ce := &containsExpr{needle: unquote(args[1])}
		if err := parseSource(args[0], ce); err != nil {
			return xpathPredicate{}, err
		}
		return xpathPredicate{contains: ce}, nil
	}

	return xpathPredicate{}, fmt.Errorf("xpath: unsupported predicate %q", p)
}

func parseSource(src string, ce *containsExpr) error {
	src = strings.TrimSpace(src)
	switch {
	case src == "text()":
		ce.source = "text"
	case src == ".":
		ce.source = "self"
	case strings.HasPrefix(src, "@"):
		ce.source, ce.attr = "attr", src[1:]
	default:
		if inner, ok := call(src, "normalize-space"); ok {
			ce.normalize = true
			if strings.TrimSpace(inner) == "" {
				ce.source = "self"
				return nil
			}
			return parseSource(inner, ce)
		}
		if inner, ok := call(src, "translate"); ok {
			args := splitArgs(inner)
			if len(args) != 3 {
				return fmt.Errorf("xpath: translate() wants 3 args: %q", src)
			}
			ce.from, ce.to = unquote(args[1]), unquote(args[2])
			return parseSource(args[0], ce)
		}
		return fmt.Errorf("xpath: unsupported expression %q", src)
	}
	return nil
}

// call reports whether s is name(...) and returns the argument text.
func call(s, name string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, name+"(") || !strings.HasSuffix(s, ")") {
		return "", false
	}
	return s[len(name)+1 : len(s)-1], true
}

func splitArgs(s string) []string {
	var args []string
	depth, start := 0, 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			args = append(args, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	return append(args, strings.TrimSpace(s[start:]))
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `'"`)
}

// matchesXPathStep checks a node against a tag test and every predicate.
func matchesXPathStep(n *html.Node, st xpathStep) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if st.tag != "*" && n.Data != st.tag {
		return false
	}
	for _, p := range st.preds {
		if !matchesPredicate(n, p) {
			return false
		}
	}
	return true
}

func matchesPredicate(n *html.Node, p xpathPredicate) bool {
	switch {
	case p.position > 0:
		pos := 0
		if n.Parent == nil {
			return p.position == 1
		}
		for s := n.Parent.FirstChild; s != nil; s = s.NextSibling {
			if s.Type == html.ElementNode && s.Data == n.Data {
				pos++
				if s == n {
					return pos == p.position
				}
			}
		}
		return false
	case p.attrName != "":
		val, ok := Attr(n, p.attrName)
		if p.attrEq {
			return ok && val == p.attrValue
		}
		return ok
	case p.contains != nil:
		return strings.Contains(p.contains.value(n), p.contains.needle)
	}
	return true
}

func (ce *containsExpr) value(n *html.Node) string {
	var s string
	switch ce.source {
	case "text":
		var b strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
		s = b.String()
	case "self":
		var b strings.Builder
		collectText(n, &b)
		s = b.String()
	case "attr":
		s, _ = Attr(n, ce.attr)
	}
	if ce.normalize {
		s = NormalizeSpace(s)
	}
	if ce.from != "" {
		s = translate(s, ce.from, ce.to)
	}
	return s
}

// translate mirrors XPath translate(): each rune of from maps to the rune
// at the same index in to, or is removed when to is shorter.
func translate(s, from, to string) string {
	fr, tr := []rune(from), []rune(to)
	return strings.Map(func(r rune) rune {
		for i, f := range fr {
			if f == r {
				if i < len(tr) {
					return tr[i]
				}
				return -1
			}
		}
		return r
	}, s)
}
