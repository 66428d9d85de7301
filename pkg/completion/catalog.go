package completion

import (
	"regexp"
	"strings"

	"github.com/kralicky/astrols/pkg/astro"
)

// catalogProp is a prop read directly from a component's source.
type catalogProp struct {
	Name     string
	Type     string
	Optional bool
	// Declared through a static type rather than a runtime declaration, so
	// its optionality is already part of the type.
	Static bool
}

type catalog struct {
	Props []catalogProp
	// The component's script is TypeScript.
	TypeScript bool
}

var (
	scriptBlock = regexp.MustCompile(`(?is)<script\b([^>]*)>(.*?)</script\s*>`)
	langTS      = regexp.MustCompile(`(?i)\blang\s*=\s*["']?(ts|tsx|typescript)["']?`)
	moduleCtx   = regexp.MustCompile(`(?i)\bcontext\s*=\s*["']?module\b`)
)

type scriptSource struct {
	attrs string
	body  string
}

func scripts(src []byte) []scriptSource {
	var out []scriptSource
	for _, m := range scriptBlock.FindAllSubmatch(src, -1) {
		out = append(out, scriptSource{attrs: string(m[1]), body: stripComments(string(m[2]))})
	}
	return out
}

// vueConstructorTypes maps Vue runtime prop constructors to the type text of
// the values they accept.
var vueConstructorTypes = map[string]string{
	"String":   "string",
	"Number":   "number",
	"Boolean":  "boolean",
	"Array":    "any[]",
	"Object":   "object",
	"Function": "Function",
	"Date":     "Date",
	"Symbol":   "symbol",
	"BigInt":   "bigint",
	"Promise":  "Promise<any>",
}

var (
	vueDefinePropsType = regexp.MustCompile(`\bdefineProps\s*<`)
	vueDefineProps     = regexp.MustCompile(`\bdefineProps\s*\(\s*`)
	vuePropsOption     = regexp.MustCompile(`\bprops\s*:\s*`)
)

// vueCatalog reads props declared with defineProps or the props option of
// a component definition, in either object or array form.
func vueCatalog(src []byte) catalog {
	var c catalog
	for _, s := range scripts(src) {
		if langTS.MatchString(s.attrs) {
			c.TypeScript = true
		}
		if loc := vueDefinePropsType.FindStringIndex(s.body); loc != nil {
			if body, ok := balanced(s.body, strings.IndexByte(s.body[loc[1]:], '{')+loc[1]); ok {
				c.Props = append(c.Props, typeMembers(body)...)
				continue
			}
		}
		for _, re := range []*regexp.Regexp{vueDefineProps, vuePropsOption} {
			loc := re.FindStringIndex(s.body)
			if loc == nil || loc[1] >= len(s.body) {
				continue
			}
			body, ok := balanced(s.body, loc[1])
			if !ok {
				continue
			}
			switch s.body[loc[1]] {
			case '{':
				c.Props = append(c.Props, vueObjectProps(body)...)
			case '[':
				c.Props = append(c.Props, vueArrayProps(body)...)
			}
			break
		}
	}
	return c
}

func vueObjectProps(body string) []catalogProp {
	var props []catalogProp
	for _, entry := range splitTopLevel(body, ',') {
		key, value, ok := splitKeyValue(entry)
		if !ok {
			continue
		}
		prop := catalogProp{Name: key, Type: "any", Optional: true}
		if strings.HasPrefix(value, "{") && strings.HasSuffix(value, "}") {
			for _, opt := range splitTopLevel(value[1:len(value)-1], ',') {
				k, v, ok := splitKeyValue(opt)
				if !ok {
					continue
				}
				switch k {
				case "type":
					prop.Type = vueTypeText(v)
				case "required":
					prop.Optional = v != "true"
				}
			}
		} else {
			prop.Type = vueTypeText(value)
		}
		props = append(props, prop)
	}
	return props
}

func vueArrayProps(body string) []catalogProp {
	var props []catalogProp
	for _, item := range splitTopLevel(body, ',') {
		if name, ok := unquote(item); ok {
			props = append(props, catalogProp{Name: name, Type: "any", Optional: true})
		}
	}
	return props
}

var propTypeCast = regexp.MustCompile(`(?s)\bas\s+PropType\s*<(.*)>\s*$`)

// vueTypeText converts a runtime type declaration into type text.
func vueTypeText(v string) string {
	v = strings.TrimSpace(v)
	if m := propTypeCast.FindStringSubmatch(v); m != nil {
		return strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]") {
		var types []string
		for _, item := range splitTopLevel(v[1:len(v)-1], ',') {
			types = append(types, vueTypeText(item))
		}
		if len(types) == 0 {
			return "any"
		}
		return strings.Join(types, " | ")
	}
	if t, ok := vueConstructorTypes[v]; ok {
		return t
	}
	return "any"
}

var svelteExport = regexp.MustCompile(`(?m)\bexport\s+let\s+([A-Za-z_$][\w$]*)\s*(\?)?\s*(?::\s*([^=;\n]+?))?\s*(=[^;\n]*)?\s*(?:;|$)`)

// svelteCatalog reads props declared as exported variables of the instance
// script.
func svelteCatalog(src []byte) catalog {
	var c catalog
	for _, s := range scripts(src) {
		if moduleCtx.MatchString(s.attrs) {
			continue
		}
		if langTS.MatchString(s.attrs) {
			c.TypeScript = true
		}
		for _, m := range svelteExport.FindAllStringSubmatch(s.body, -1) {
			prop := catalogProp{
				Name:     m[1],
				Type:     strings.TrimSpace(m[3]),
				Optional: m[2] != "" || m[4] != "",
				Static:   m[3] != "",
			}
			if prop.Type == "" {
				prop.Type = "any"
			}
			c.Props = append(c.Props, prop)
		}
	}
	return c
}

var astroPropsDecl = regexp.MustCompile(`\b(?:interface\s+Props\b[^{]*|type\s+Props\s*=\s*)\{`)

// astroCatalog reads the Props interface or type alias of a component's
// frontmatter.
func astroCatalog(src []byte) catalog {
	c := catalog{TypeScript: true}
	fm := astro.ParseFrontmatter(src)
	if fm.State == astro.FrontmatterAbsent {
		return c
	}
	body := stripComments(string(src[fm.BodyStart:fm.BodyEnd]))
	loc := astroPropsDecl.FindStringIndex(body)
	if loc == nil {
		return c
	}
	if members, ok := balanced(body, loc[1]-1); ok {
		c.Props = typeMembers(members)
	}
	return c
}

// typeMembers reads the property signatures of a type literal body.
func typeMembers(body string) []catalogProp {
	var props []catalogProp
	for _, member := range splitMembers(body) {
		member = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(member), "readonly "))
		key, value, ok := splitKeyValue(member)
		if !ok {
			continue
		}
		optional := strings.HasSuffix(key, "?")
		key = strings.TrimSpace(strings.TrimSuffix(key, "?"))
		if name, ok := unquote(key); ok {
			key = name
		}
		if !isIdentifier(key) && !strings.Contains(key, "-") {
			continue
		}
		props = append(props, catalogProp{Name: key, Type: value, Optional: optional, Static: true})
	}
	return props
}

// splitMembers splits a type literal body on top-level ';', ',' and line
// breaks that start a new member.
func splitMembers(body string) []string {
	var members []string
	for _, part := range splitTopLevel(body, ';', ',') {
		var cur strings.Builder
		for _, line := range strings.Split(part, "\n") {
			if cur.Len() > 0 && startsMember(line) {
				members = append(members, cur.String())
				cur.Reset()
			}
			cur.WriteString(line)
			cur.WriteByte('\n')
		}
		members = append(members, cur.String())
	}
	return members
}

var memberStart = regexp.MustCompile(`^\s*(?:readonly\s+)?(?:[A-Za-z_$][\w$-]*|"[^"]*"|'[^']*')\s*\??\s*:`)

func startsMember(line string) bool {
	return memberStart.MatchString(line)
}

// splitKeyValue splits "key: value" at the first top-level colon.
func splitKeyValue(entry string) (string, string, bool) {
	entry = strings.TrimSpace(entry)
	idx := indexTopLevel(entry, ':')
	if idx <= 0 {
		return "", "", false
	}
	key := strings.TrimSpace(entry[:idx])
	if name, ok := unquote(key); ok {
		key = name
	}
	return key, strings.TrimSpace(entry[idx+1:]), true
}

func unquote(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], true
	}
	return "", false
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_' || c == '$':
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// balanced returns the text between the bracket at open and its match.
func balanced(s string, open int) (string, bool) {
	if open < 0 || open >= len(s) {
		return "", false
	}
	var closer byte
	switch s[open] {
	case '{':
		closer = '}'
	case '[':
		closer = ']'
	case '(':
		closer = ')'
	default:
		return "", false
	}
	depth := 0
	for i := open; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"', '\'', '`':
			i = skipQuoted(s, i)
		case '{', '[', '(':
			depth++
		case '}', ']', ')':
			depth--
			if depth == 0 {
				if c != closer {
					return "", false
				}
				return s[open+1 : i], true
			}
		}
	}
	return "", false
}

// splitTopLevel splits s on any of seps outside brackets, generics and strings.
func splitTopLevel(s string, seps ...byte) []string {
	var parts []string
	start := 0
	walkTopLevel(s, func(i int) {
		for _, sep := range seps {
			if s[i] == sep {
				parts = append(parts, s[start:i])
				start = i + 1
				return
			}
		}
	})
	parts = append(parts, s[start:])
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return out
}

func indexTopLevel(s string, c byte) int {
	idx := -1
	walkTopLevel(s, func(i int) {
		if idx == -1 && s[i] == c {
			idx = i
		}
	})
	return idx
}

// walkTopLevel calls fn for every byte of s at nesting depth zero.
func walkTopLevel(s string, fn func(i int)) {
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\'' || c == '`':
			i = skipQuoted(s, i)
			continue
		case c == '{' || c == '[' || c == '(' || c == '<':
			depth++
			continue
		case c == '>' && i > 0 && s[i-1] == '=':
			// arrow
		case c == '}' || c == ']' || c == ')' || c == '>':
			if depth > 0 {
				depth--
			}
			continue
		}
		if depth == 0 {
			fn(i)
		}
	}
}

// skipQuoted returns the index of the quote closing the string opened at i.
func skipQuoted(s string, i int) int {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case q:
			return j
		}
	}
	return len(s) - 1
}

// stripComments blanks line and block comments outside of strings.
func stripComments(s string) string {
	b := []byte(s)
	for i := 0; i < len(b); i++ {
		switch {
		case b[i] == '"' || b[i] == '\'' || b[i] == '`':
			i = skipQuoted(s, i)
		case b[i] == '/' && i+1 < len(b) && b[i+1] == '/':
			for ; i < len(b) && b[i] != '\n'; i++ {
				b[i] = ' '
			}
		case b[i] == '/' && i+1 < len(b) && b[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			stop := len(b)
			if end != -1 {
				stop = i + 2 + end + 2
			}
			for ; i < stop; i++ {
				if b[i] != '\n' {
					b[i] = ' '
				}
			}
			i--
		}
	}
	return string(b)
}
