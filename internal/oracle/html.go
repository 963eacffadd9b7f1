package oracle

import (
	"strings"

	"golang.org/x/net/html"
)

// ExtractText reduces an HTML snapshot of an answer node to plain text.
// Block elements become line breaks, <pre> blocks come back as fenced code
// (with the language taken from a language-* class when present), and
// script/style subtrees are dropped. A snapshot that fails to parse is
// returned as-is; the parser downstream decides what to do with it.
func ExtractText(snapshot string) string {
	doc, err := html.Parse(strings.NewReader(snapshot))
	if err != nil {
		return snapshot
	}
	var sb strings.Builder
	walk(doc, &sb)
	return strings.TrimSpace(collapseBlank(sb.String()))
}

func walk(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "button", "svg":
			return
		case "pre":
			writeCodeBlock(n, sb)
			return
		case "br":
			sb.WriteString("\n")
			return
		case "li":
			sb.WriteString("\n- ")
		case "p", "div", "h1", "h2", "h3", "h4", "ul", "ol", "tr":
			sb.WriteString("\n")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, sb)
	}
	switch n.Data {
	case "p", "div", "h1", "h2", "h3", "h4", "ul", "ol":
		sb.WriteString("\n")
	}
}

func writeCodeBlock(pre *html.Node, sb *strings.Builder) {
	var code strings.Builder
	collectText(pre, &code)
	lang := codeLanguage(pre)

	sb.WriteString("\n```")
	sb.WriteString(lang)
	sb.WriteString("\n")
	sb.WriteString(strings.Trim(code.String(), "\n"))
	sb.WriteString("\n```\n")
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

// codeLanguage finds a language-* class on the pre node or a nested code
// node.
func codeLanguage(n *html.Node) string {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key != "class" {
				continue
			}
			for _, c := range strings.Fields(a.Val) {
				if lang, ok := strings.CutPrefix(c, "language-"); ok {
					return lang
				}
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if lang := codeLanguage(c); lang != "" {
			return lang
		}
	}
	return ""
}

func collapseBlank(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := 0
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			blank++
			if blank > 1 {
				continue
			}
			out = append(out, "")
			continue
		}
		blank = 0
		out = append(out, strings.TrimRight(l, " \t"))
	}
	return strings.Join(out, "\n")
}
