package astro

import (
	"regexp"
	"strings"
)

const (
	ImportDefault   = "default"
	ImportNamespace = "*"
)

// Import is a single local binding introduced by an import declaration.
type Import struct {
	// Local is the identifier the binding is visible as.
	Local string
	// Imported is the exported name, ImportDefault, or ImportNamespace.
	Imported  string
	Specifier string
	TypeOnly  bool
	// Byte span of the specifier text (without quotes), relative to the parsed source.
	SpecifierStart, SpecifierEnd int
}

var importDecl = regexp.MustCompile(`(?m)^[ \t]*import[ \t]+(type[ \t]+)?([\w$*{},\s]+?)\s*from\s*(["'])([^"'\n]+)["']`)

// ParseImports extracts import bindings from a script source. Side-effect
// imports and dynamic imports introduce no bindings and are skipped.
func ParseImports(src []byte) []Import {
	var imports []Import
	for _, m := range importDecl.FindAllSubmatchIndex(src, -1) {
		typeOnly := m[2] != -1
		clause := string(src[m[4]:m[5]])
		specifier := string(src[m[8]:m[9]])
		for _, b := range parseImportClause(clause) {
			b.Specifier = specifier
			b.TypeOnly = b.TypeOnly || typeOnly
			b.SpecifierStart, b.SpecifierEnd = m[8], m[9]
			imports = append(imports, b)
		}
	}
	return imports
}

func parseImportClause(clause string) []Import {
	var out []Import
	clause = strings.TrimSpace(clause)
	if open := strings.IndexByte(clause, '{'); open != -1 {
		closing := strings.IndexByte(clause, '}')
		if closing == -1 || closing < open {
			return nil
		}
		for _, spec := range strings.Split(clause[open+1:closing], ",") {
			fields := strings.Fields(spec)
			typeOnly := false
			if len(fields) > 1 && fields[0] == "type" {
				typeOnly = true
				fields = fields[1:]
			}
			switch {
			case len(fields) == 1:
				out = append(out, Import{Local: fields[0], Imported: fields[0], TypeOnly: typeOnly})
			case len(fields) == 3 && fields[1] == "as":
				out = append(out, Import{Local: fields[2], Imported: fields[0], TypeOnly: typeOnly})
			}
		}
		clause = clause[:open] + clause[closing+1:]
	}
	for _, part := range strings.Split(clause, ",") {
		fields := strings.Fields(part)
		switch {
		case len(fields) == 1 && isIdentifier(fields[0]):
			out = append(out, Import{Local: fields[0], Imported: ImportDefault})
		case len(fields) == 3 && fields[0] == "*" && fields[1] == "as":
			out = append(out, Import{Local: fields[2], Imported: ImportNamespace})
		}
	}
	return out
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// LookupImport finds the binding a component tag name refers to. Dotted tag
// names such as "UI.Button" resolve through the binding of their first segment.
func LookupImport(imports []Import, tagName string) (Import, bool) {
	local, _, _ := strings.Cut(tagName, ".")
	for _, imp := range imports {
		if imp.Local == local && !imp.TypeOnly {
			return imp, true
		}
	}
	return Import{}, false
}
