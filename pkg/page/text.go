package page

import (
	"strings"
)

// Case folding table shared by TextSelector and FoldCase. XPath 1.0 has no
// lower-case(), so matching goes through translate() with this table.
const (
	foldUpper = "ABCDEFGHIJKLMNOPQRSTUVWXYZÇĞİÖŞÜı"
	foldLower = "abcdefghijklmnopqrstuvwxyzçğiöşüi"
)

var foldReplacer = func() *strings.Replacer {
	up, low := []rune(foldUpper), []rune(foldLower)
	pairs := make([]string, 0, len(up)*2)
	for i := range up {
		pairs = append(pairs, string(up[i]), string(low[i]))
	}
	return strings.NewReplacer(pairs...)
}()

// FoldCase lower-cases s using the same table TextSelector uses, and
// collapses runs of whitespace.
func FoldCase(s string) string {
	return foldReplacer.Replace(strings.Join(strings.Fields(s), " "))
}

// TextSelector returns an XPath selector matching the innermost elements
// whose normalized text contains text, ignoring case. Script, style and head
// content never match.
func TextSelector(text string) Selector {
	needle := XPathLiteral(FoldCase(text))
	folded := "translate(normalize-space(.), '" + foldUpper + "', '" + foldLower + "')"
	contains := "contains(" + folded + ", " + needle + ")"

	var b strings.Builder
	b.WriteString("//body//*[not(self::script or self::style or self::noscript or self::template)]")
	b.WriteString("[" + contains + "]")
	b.WriteString("[not(*[" + contains + "])]")
	return Selector{Kind: KindXPath, Expr: b.String(), Text: text}
}

// XPathLiteral quotes s as an XPath 1.0 string literal.
func XPathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		if p != "" {
			quoted = append(quoted, "'"+p+"'")
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
