// internal/feed/parser.go
package feed

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
)

const (
	// Shown when a feed document carries no title of its own.
	defaultFeedTitle = "未命名订阅"

	snippetLength = 300
)

// Parser turns raw feed bytes into a ParsedFeed. It recognizes RSS 2.0,
// Atom and RDF/RSS 1.0; anything else (including malformed XML) is not an
// error but a nil result, so callers can move on to the next candidate URL.
type Parser struct {
	fp    *gofeed.Parser
	strip *bluemonday.Policy
}

func NewParser() *Parser {
	return &Parser{
		fp:    gofeed.NewParser(),
		strip: bluemonday.StrictPolicy(),
	}
}

// Parse extracts a canonical feed summary and entry list from raw bytes.
// Returns nil if the document is not a recognizable feed.
func (p *Parser) Parse(raw []byte) *ParsedFeed {
	parsed, err := p.fp.Parse(bytes.NewReader(raw))
	if err != nil || parsed == nil {
		return nil
	}

	title := strings.TrimSpace(parsed.Title)
	if title == "" {
		title = defaultFeedTitle
	}

	out := &ParsedFeed{
		Title:       title,
		Description: strings.TrimSpace(parsed.Description),
		Entries:     make([]ParsedEntry, 0, len(parsed.Items)),
	}

	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		out.Entries = append(out.Entries, p.convertItem(item))
	}

	return out
}

func (p *Parser) convertItem(item *gofeed.Item) ParsedEntry {
	// Prefer the rich content field, fall back to description/summary.
	content := item.Content
	if content == "" {
		content = item.Description
	}

	// The snippet comes from the description/summary field when present.
	snippetSource := item.Description
	if snippetSource == "" {
		snippetSource = item.Content
	}

	entry := ParsedEntry{
		Title:      strings.TrimSpace(item.Title),
		Link:       strings.TrimSpace(item.Link),
		Content:    content,
		Snippet:    p.snippet(snippetSource),
		Author:     itemAuthor(item),
		Categories: item.Categories,
		GUID:       strings.TrimSpace(item.GUID),
	}

	// gofeed already falls back from pubDate to dc:date per format.
	if item.PublishedParsed != nil {
		t := *item.PublishedParsed
		entry.Published = &t
	} else if item.UpdatedParsed != nil {
		t := *item.UpdatedParsed
		entry.Published = &t
	}

	return entry
}

// snippet strips markup and truncates to the first snippetLength characters.
func (p *Parser) snippet(s string) string {
	plain := strings.TrimSpace(p.strip.Sanitize(s))
	plain = strings.Join(strings.Fields(plain), " ")
	runes := []rune(plain)
	if len(runes) > snippetLength {
		return string(runes[:snippetLength])
	}
	return plain
}

// itemAuthor prefers the explicit author, falling back to dc:creator.
func itemAuthor(item *gofeed.Item) string {
	for _, a := range item.Authors {
		if a != nil && strings.TrimSpace(a.Name) != "" {
			return strings.TrimSpace(a.Name)
		}
	}
	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
		return strings.TrimSpace(item.DublinCoreExt.Creator[0])
	}
	return ""
}
