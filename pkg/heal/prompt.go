package heal

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/promoscout/pkg/locator"
)

const systemPrompt = `You are a browser automation assistant. Given the HTML of a page and a
description of one element, you reply with a single XPath 1.0 expression that
selects that element.

Rules:
1. Reply with the XPath expression only, no explanation and no code block
2. Prefer stable attributes (id, name, type, href, aria-label) over positions
3. The expression must select a visible, interactive element when one exists
4. Do not repeat an expression listed as already failed`

// noise is removed before the HTML is sent.
const noise = "script, style, noscript, svg, template, iframe, link, meta, head"

// BuildPrompt creates the user prompt for target c over the page HTML.
func BuildPrompt(c locator.Candidates, pageHTML string, maxContentSize int) string {
	var prompt strings.Builder

	fmt.Fprintf(&prompt, "Find the element described as %q.\n", c.Name)
	if c.FallbackText != "" {
		fmt.Fprintf(&prompt, "Its visible text usually contains %q.\n", c.FallbackText)
	}
	if len(c.Selectors) > 0 {
		prompt.WriteString("\n## Already failed\n")
		for _, sel := range c.Selectors {
			prompt.WriteString("- ")
			prompt.WriteString(sel.String())
			prompt.WriteString("\n")
		}
	}

	prompt.WriteString("\n## Page HTML\n")
	prompt.WriteString("```html\n")
	prompt.WriteString(TrimHTML(pageHTML, maxContentSize))
	prompt.WriteString("\n```\n")

	return prompt.String()
}

// TrimHTML strips non-structural markup from the body and limits the
// result to maxLen bytes. maxLen of 0 means no limit.
func TrimHTML(pageHTML string, maxLen int) string {
	out := pageHTML
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML)); err == nil {
		doc.Find(noise).Remove()
		body := doc.Find("body")
		if body.Length() == 0 {
			body = doc.Selection
		}
		if h, err := body.Html(); err == nil {
			out = strings.Join(strings.Fields(h), " ")
		}
	}
	if maxLen <= 0 || len(out) <= maxLen {
		return out
	}
	return strings.ToValidUTF8(out[:maxLen], "")
}

// ParseSuggestion extracts an XPath expression from a model reply.
func ParseSuggestion(reply string) string {
	s := strings.TrimSpace(reply)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "xpath")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	for _, line := range strings.Split(s, "\n") {
		line = strings.Trim(strings.TrimSpace(line), "`")
		if line != "" {
			return strings.TrimPrefix(line, "xpath=")
		}
	}
	return ""
}
