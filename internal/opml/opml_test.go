// internal/opml/opml_test.go
package opml

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOPML = `<?xml version="1.0" encoding="UTF-8"?>
<opml version="2.0">
  <head>
    <title>Subscriptions</title>
  </head>
  <body>
    <outline text="Plain Blog" title="Plain Blog" type="rss" xmlUrl="http://plain.example/feed"/>
    <outline text="Tech">
      <outline text="Nested Blog" type="rss" xmlUrl="http://nested.example/rss"/>
      <outline text="Deeper">
        <outline text="Deep Blog" xmlUrl="http://deep.example/atom.xml"/>
      </outline>
    </outline>
    <outline text="Folder Without Feeds"/>
    <outline text=" Only Text " xmlUrl=" http://spaces.example/feed "/>
  </body>
</opml>`

func TestParseFlattensNestedOutlines(t *testing.T) {
	subs, err := Parse(strings.NewReader(sampleOPML))
	require.NoError(t, err)

	require.Len(t, subs, 4)
	assert.Equal(t, Subscription{Title: "Plain Blog", XMLURL: "http://plain.example/feed"}, subs[0])
	assert.Equal(t, Subscription{Title: "Nested Blog", XMLURL: "http://nested.example/rss"}, subs[1])
	assert.Equal(t, Subscription{Title: "Deep Blog", XMLURL: "http://deep.example/atom.xml"}, subs[2])
	assert.Equal(t, Subscription{Title: "Only Text", XMLURL: "http://spaces.example/feed"}, subs[3])
}

func TestParseRejectsNonXML(t *testing.T) {
	_, err := Parse(strings.NewReader("not xml at all"))
	assert.Error(t, err)
}

func TestParseEmptyBody(t *testing.T) {
	subs, err := Parse(strings.NewReader(
		`<opml version="2.0"><head><title>Empty</title></head><body></body></opml>`))
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestWriteRoundTrip(t *testing.T) {
	want := []Subscription{
		{Title: "Blog A", XMLURL: "http://a.example/feed"},
		{Title: "Blog B", XMLURL: "http://b.example/rss"},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "Minifeed Export", want))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "<?xml"))
	assert.Contains(t, out, `version="2.0"`)
	assert.Contains(t, out, `type="rss"`)

	got, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWriteSkipsBlankURLs(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "Export", []Subscription{
		{Title: "No URL", XMLURL: "  "},
		{Title: "Keeper", XMLURL: "http://keep.example/feed"},
	}))

	got, err := Parse(&buf)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Keeper", got[0].Title)
}
