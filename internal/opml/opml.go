// Package opml transcodes OPML 2.0 subscription lists. Only the
// {title, xmlUrl} pair of each outline feeds the ingestion engine.
package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Subscription is one feed reference from an OPML document.
type Subscription struct {
	Title  string
	XMLURL string
}

type document struct {
	XMLName xml.Name  `xml:"opml"`
	Version string    `xml:"version,attr,omitempty"`
	Head    head      `xml:"head"`
	Body    []outline `xml:"body>outline"`
}

type head struct {
	Title string `xml:"title,omitempty"`
}

type outline struct {
	Text     string    `xml:"text,attr,omitempty"`
	Title    string    `xml:"title,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	XMLURL   string    `xml:"xmlUrl,attr,omitempty"`
	Children []outline `xml:"outline,omitempty"`
}

// Parse decodes an OPML document, flattening nested outline folders into
// the subscriptions they contain.
func Parse(r io.Reader) ([]Subscription, error) {
	var doc document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid OPML: %w", err)
	}

	var subs []Subscription
	var collect func([]outline)
	collect = func(outlines []outline) {
		for _, o := range outlines {
			if u := strings.TrimSpace(o.XMLURL); u != "" {
				title := strings.TrimSpace(o.Title)
				if title == "" {
					title = strings.TrimSpace(o.Text)
				}
				subs = append(subs, Subscription{Title: title, XMLURL: u})
			}
			collect(o.Children)
		}
	}
	collect(doc.Body)
	return subs, nil
}

// Write serializes subscriptions as a flat OPML 2.0 document.
func Write(w io.Writer, title string, subs []Subscription) error {
	doc := document{
		Version: "2.0",
		Head:    head{Title: title},
	}
	for _, sub := range subs {
		if strings.TrimSpace(sub.XMLURL) == "" {
			continue
		}
		doc.Body = append(doc.Body, outline{
			Text:   sub.Title,
			Title:  sub.Title,
			Type:   "rss",
			XMLURL: sub.XMLURL,
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("error writing OPML header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("error encoding OPML: %w", err)
	}
	return enc.Flush()
}
