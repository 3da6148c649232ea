package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/blogmirror/internal/dom"
)

func resolveHTML(t *testing.T, body string) ([]Ref, []error) {
	t.Helper()
	root, err := dom.ParseString(`<div class="post-body">` + body + `</div>`)
	require.NoError(t, err)
	post, ok := root.Find("div", dom.HasClass("post-body"))
	require.True(t, ok)
	return Resolve(post)
}

func TestResolve_KindOrderingIsFixed(t *testing.T) {
	// The anchor video and the iframe precede the image in the document,
	// but images are always enumerated first.
	refs, errs := resolveHTML(t, `
		<a href="https://www.youtube.com/watch?v=CCC">watch</a>
		<iframe src="https://www.youtube.com/embed/BBB"></iframe>
		<a href="https://img.example.com/a/photoA.png"><img src="https://img.example.com/s200/photoA.png"></a>
	`)
	require.Empty(t, errs)
	require.Len(t, refs, 3)

	assert.Equal(t, KindImage, refs[0].Kind)
	assert.Equal(t, "https://img.example.com/a/photoA.png", refs[0].SourceURL)
	assert.Equal(t, 1, refs[0].Ordinal)

	assert.Equal(t, KindVideo, refs[1].Kind)
	assert.Equal(t, "https://www.youtube.com/embed/BBB", refs[1].SourceURL)
	assert.Equal(t, 2, refs[1].Ordinal)

	assert.Equal(t, KindVideo, refs[2].Kind)
	assert.Equal(t, "https://www.youtube.com/watch?v=CCC", refs[2].SourceURL)
	assert.Equal(t, 3, refs[2].Ordinal)
}

func TestResolve_TitleAndExtension(t *testing.T) {
	refs, errs := resolveHTML(t, `
		<a href="https://img.example.com/x/s1600/My%20Photo.JPG"><img src="t.jpg"></a>
		<a href="https://img.example.com/x/s1600/noext"><img src="t.jpg"></a>
		<iframe src="https://www.youtube.com/embed/XYZ123?feature=oembed"></iframe>
	`)
	require.Empty(t, errs)
	require.Len(t, refs, 3)

	assert.Equal(t, "My Photo", refs[0].Title)
	assert.Equal(t, ".JPG", refs[0].Extension)

	assert.Equal(t, "noext", refs[1].Title)
	assert.Equal(t, "", refs[1].Extension)

	assert.Equal(t, "XYZ123", refs[2].Title)
	assert.Equal(t, ".mp4", refs[2].Extension)
}

func TestResolve_ProtocolRelative(t *testing.T) {
	refs, errs := resolveHTML(t, `
		<a href="//img.example.com/a/pic.gif"><img src="x"></a>
		<iframe src="//www.youtube.com/embed/vid"></iframe>
	`)
	require.Empty(t, errs)
	require.Len(t, refs, 2)
	assert.Equal(t, "https://img.example.com/a/pic.gif", refs[0].SourceURL)
	assert.Equal(t, "https://www.youtube.com/embed/vid", refs[1].SourceURL)
}

func TestResolve_MissingAttributeSkipsOnlyThatItem(t *testing.T) {
	refs, errs := resolveHTML(t, `
		<span><img src="orphan.jpg"></span>
		<a href="https://img.example.com/ok.jpg"><img src="ok-thumb.jpg"></a>
		<iframe></iframe>
		<iframe src="https://www.youtube.com/embed/good"></iframe>
	`)

	require.Len(t, errs, 2)
	var ee *ExtractError
	require.ErrorAs(t, errs[0], &ee)
	assert.Equal(t, 1, ee.Ordinal)
	assert.Equal(t, "span", ee.Tag)
	assert.Equal(t, "href", ee.Attr)

	require.ErrorAs(t, errs[1], &ee)
	assert.Equal(t, 3, ee.Ordinal)
	assert.Equal(t, "iframe", ee.Tag)
	assert.Equal(t, "src", ee.Attr)

	require.Len(t, refs, 2)
	assert.Equal(t, 2, refs[0].Ordinal, "skipped items keep their slot")
	assert.Equal(t, 4, refs[1].Ordinal)
}

func TestResolve_IgnoresNonVideoLinks(t *testing.T) {
	refs, errs := resolveHTML(t, `<a href="https://example.com/page">text</a><p>no media</p>`)
	assert.Empty(t, errs)
	assert.Empty(t, refs)
}

func TestAbsolute(t *testing.T) {
	assert.Equal(t, "https://a.b/c", Absolute("//a.b/c"))
	assert.Equal(t, "http://a.b/c", Absolute("http://a.b/c"))
	assert.Equal(t, "/local", Absolute("/local"))
}
