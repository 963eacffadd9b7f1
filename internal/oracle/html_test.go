package oracle

import "testing"

func TestExtractText_Paragraphs(t *testing.T) {
	in := `<div><p>You will need:</p><ul><li>Node.js</li><li>npm</li></ul></div>`
	got := ExtractText(in)
	want := "You will need:\n\n- Node.js\n- npm"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractText_CodeBlockLanguage(t *testing.T) {
	in := `<pre><code class="language-typescript">const x = 1;</code></pre>`
	got := ExtractText(in)
	want := "```typescript\nconst x = 1;\n```"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractText_DropsChromeElements(t *testing.T) {
	in := `<div><button>Copy</button><p>mkdir app</p><script>track()</script></div>`
	got := ExtractText(in)
	if got != "mkdir app" {
		t.Errorf("got %q, want %q", got, "mkdir app")
	}
}

func TestExtractText_PreservesCodeNewlines(t *testing.T) {
	in := "<pre><code>line one\nline two</code></pre>"
	got := ExtractText(in)
	want := "```\nline one\nline two\n```"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractText_InvalidHTMLPassthrough(t *testing.T) {
	// html.Parse is extremely lenient; plain text survives untouched.
	in := "just a plain answer"
	if got := ExtractText(in); got != "just a plain answer" {
		t.Errorf("got %q", got)
	}
}
