// Package media resolves the embedded images and videos of a post body into
// download references.
package media

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/runnerr0/blogmirror/internal/dom"
)

// Kind is the type of an embedded media item.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// VideoExtension is assumed for every video; the muxer fixes the container.
const VideoExtension = ".mp4"

// WatchURLPattern matches links to video watch pages.
var WatchURLPattern = regexp.MustCompile(`.*youtube\.com/watch.*`)

// Ref is one resolved media item.
type Ref struct {
	Kind      Kind
	SourceURL string
	// Ordinal is the 1-based position within the post.
	Ordinal   int
	Title     string
	Extension string
}

// ExtractError reports an element that matched but lacked the attribute
// holding its source.
type ExtractError struct {
	Ordinal int
	Tag     string
	Attr    string
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("media %d: <%s> has no %s attribute", e.Ordinal, e.Tag, e.Attr)
}

type candidate struct {
	node dom.Node
	kind Kind
	// source returns the element that carries the url and the attribute name.
	source func(dom.Node) (dom.Node, string)
}

// Resolve enumerates images, then inline frames, then video links in body and
// resolves each to a Ref. Elements that cannot be resolved are reported as
// *ExtractError and keep their ordinal slot.
func Resolve(body dom.Node) ([]Ref, []error) {
	var cands []candidate

	for _, n := range body.FindAll("img", nil) {
		cands = append(cands, candidate{node: n, kind: KindImage, source: enclosingLink})
	}
	for _, n := range body.FindAll("iframe", nil) {
		cands = append(cands, candidate{node: n, kind: KindVideo, source: self("src")})
	}
	for _, n := range body.FindAll("a", dom.AttrMatches("href", WatchURLPattern)) {
		cands = append(cands, candidate{node: n, kind: KindVideo, source: self("href")})
	}

	var (
		refs []Ref
		errs []error
	)
	for i, c := range cands {
		ordinal := i + 1

		holder, attr := c.source(c.node)
		var raw string
		ok := false
		if holder != nil {
			raw, ok = holder.Attr(attr)
		}
		if !ok || strings.TrimSpace(raw) == "" {
			tag := c.node.Name()
			if holder != nil {
				tag = holder.Name()
			}
			errs = append(errs, &ExtractError{Ordinal: ordinal, Tag: tag, Attr: attr})
			continue
		}

		refs = append(refs, NewRef(c.kind, raw, ordinal))
	}

	return refs, errs
}

// NewRef builds a Ref from a raw source attribute value.
func NewRef(kind Kind, raw string, ordinal int) Ref {
	src := Absolute(strings.TrimSpace(raw))
	title, ext := titleAndExt(src)
	if kind == KindVideo {
		ext = VideoExtension
	}
	return Ref{
		Kind:      kind,
		SourceURL: src,
		Ordinal:   ordinal,
		Title:     title,
		Extension: ext,
	}
}

// Absolute turns a protocol-relative URL into an https one.
func Absolute(src string) string {
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	return src
}

// titleAndExt splits the last path segment of src into stem and suffix.
func titleAndExt(src string) (string, string) {
	p := src
	if u, err := url.Parse(src); err == nil {
		p = u.Path
	}

	base := path.Base(p)
	if base == "/" || base == "." {
		return "", ""
	}

	ext := path.Ext(base)
	return strings.TrimSuffix(base, ext), ext
}

func enclosingLink(n dom.Node) (dom.Node, string) {
	p, ok := n.Parent()
	if !ok {
		return nil, "href"
	}
	return p, "href"
}

func self(attr string) func(dom.Node) (dom.Node, string) {
	return func(n dom.Node) (dom.Node, string) {
		return n, attr
	}
}
