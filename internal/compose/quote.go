package compose

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nhle/webmail/internal/model"
)

// attributionLayout formats the timestamp in reply attributions.
const attributionLayout = "Mon, Jan 2, 2006 at 3:04 PM"

var (
	inlineSpace = regexp.MustCompile(`[^\S\n]+`)
	blankRuns   = regexp.MustCompile(`\n{3,}`)
)

// QuoteBody renders the body of e as plain text, prefixes each line with
// "> " and puts an attribution line above it.
func QuoteBody(e model.Email) string {
	text := HTMLToText(e.BodyHTML)

	var b strings.Builder
	b.WriteString("\n\n")
	b.WriteString(attribution(e))
	b.WriteString("\n")
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			b.WriteString(">\n")
			continue
		}
		b.WriteString("> ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// ForwardBody renders e as a forwarded-message block.
func ForwardBody(e model.Email) string {
	var b strings.Builder
	b.WriteString("\n\n---------- Forwarded message ---------\n")
	fmt.Fprintf(&b, "From: %s\n", formatSender(e))
	if !e.SentAt.IsZero() {
		fmt.Fprintf(&b, "Date: %s\n", e.SentAt.Format(attributionLayout))
	}
	fmt.Fprintf(&b, "Subject: %s\n", e.Subject)
	if len(e.To) > 0 {
		fmt.Fprintf(&b, "To: %s\n", strings.Join(e.To, ", "))
	}
	b.WriteString("\n")
	b.WriteString(HTMLToText(e.BodyHTML))
	return b.String()
}

// HTMLToText converts an HTML message body to plain text, keeping one
// line per block element. Input that fails to parse is returned as is.
func HTMLToText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	doc.Find("script, style, head").Remove()
	doc.Find("p, div, br, h1, h2, h3, h4, h5, h6, li, tr, blockquote").
		Each(func(_ int, s *goquery.Selection) {
			s.PrependHtml("\n")
		})

	text := inlineSpace.ReplaceAllString(doc.Text(), " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}

func attribution(e model.Email) string {
	if e.SentAt.IsZero() {
		return fmt.Sprintf("%s wrote:", formatSender(e))
	}
	return fmt.Sprintf(
		"On %s, %s wrote:", e.SentAt.Format(attributionLayout), formatSender(e),
	)
}

func formatSender(e model.Email) string {
	if e.FromName != "" && e.From != "" {
		return fmt.Sprintf("%s <%s>", e.FromName, e.From)
	}
	return e.Sender()
}
