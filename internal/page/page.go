// Package page extracts date groups, posts and the pagination link from a
// fetched archive page.
package page

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/runnerr0/blogmirror/internal/dom"
)

// Post is one blog entry on a page.
type Post struct {
	// Date is the calendar date the post is filed under.
	Date time.Time
	// Published is the full timestamp when the markup carries one.
	Published time.Time
	HasTime   bool
	Body      dom.Node
}

// DateGroup holds the posts published on one date, in source order (newest
// first).
type DateGroup struct {
	Date  time.Time
	Posts []Post
}

// Result is everything the walker needs from one page.
type Result struct {
	Groups []DateGroup
	// Next is the absolute URL of the older-posts page, empty on the last page.
	Next string
	// Skipped lists groups and posts that could not be read.
	Skipped []error
}

// ParseError describes markup that could not be turned into a post.
type ParseError struct {
	What   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.What, e.Reason)
}

// Parse reads root, the document fetched from pageURL.
func Parse(root dom.Node, pageURL string, dates DateParser) *Result {
	res := &Result{Next: nextLink(root, pageURL)}

	days := root.FindAll("div", dom.HasClass("date-outer"))
	if len(days) == 0 {
		parseUndated(root, res)
		return res
	}

	for i, day := range days {
		what := fmt.Sprintf("date group %d", i+1)

		header, ok := findDateHeader(day)
		if !ok {
			res.Skipped = append(res.Skipped, &ParseError{What: what, Reason: "no date header"})
			continue
		}

		date, err := dates.Parse(header)
		if err != nil {
			res.Skipped = append(res.Skipped, &ParseError{What: what, Reason: err.Error()})
			continue
		}
		date = truncateDay(date)

		group := DateGroup{Date: date}
		for j, outer := range day.FindAll("div", dom.HasClass("post-outer")) {
			post, err := readPost(outer)
			if err != nil {
				res.Skipped = append(res.Skipped, &ParseError{
					What:   fmt.Sprintf("%s post %d", what, j+1),
					Reason: err.Error(),
				})
				continue
			}
			post.Date = date
			group.Posts = append(group.Posts, post)
		}

		if len(group.Posts) > 0 {
			res.Groups = append(res.Groups, group)
		}
	}

	return res
}

// parseUndated handles templates without date headers: consecutive posts
// sharing a publication date form one group.
func parseUndated(root dom.Node, res *Result) {
	for i, outer := range root.FindAll("div", dom.HasClass("post-outer")) {
		what := fmt.Sprintf("post %d", i+1)

		post, err := readPost(outer)
		if err != nil {
			res.Skipped = append(res.Skipped, &ParseError{What: what, Reason: err.Error()})
			continue
		}
		if !post.HasTime {
			res.Skipped = append(res.Skipped, &ParseError{What: what, Reason: "no publication date"})
			continue
		}

		post.Date = truncateDay(post.Published)

		n := len(res.Groups)
		if n > 0 && res.Groups[n-1].Date.Equal(post.Date) {
			res.Groups[n-1].Posts = append(res.Groups[n-1].Posts, post)
			continue
		}
		res.Groups = append(res.Groups, DateGroup{Date: post.Date, Posts: []Post{post}})
	}
}

func findDateHeader(day dom.Node) (string, bool) {
	h2, ok := day.Find("h2", dom.HasClass("date-header"))
	if !ok {
		return "", false
	}
	if span, ok := h2.Find("span", nil); ok {
		return strings.TrimSpace(span.Text()), true
	}
	return strings.TrimSpace(h2.Text()), true
}

func readPost(outer dom.Node) (Post, error) {
	body, ok := outer.Find("div", dom.HasClass("post-body"))
	if !ok {
		return Post{}, fmt.Errorf("no post body")
	}

	post := Post{Body: body}
	if ts, ok := publishedAt(outer); ok {
		post.Published = ts
		post.HasTime = true
	}
	return post, nil
}

// publishedAt reads the machine-readable timestamp Blogger puts next to the
// post footer.
func publishedAt(outer dom.Node) (time.Time, bool) {
	if abbr, ok := outer.Find("abbr", dom.HasClass("published")); ok {
		if v, ok := abbr.Attr("title"); ok {
			if t, err := parseISO(v); err == nil {
				return t, true
			}
		}
	}
	if tm, ok := outer.Find("time", dom.HasAttr("datetime")); ok {
		v, _ := tm.Attr("datetime")
		if t, err := parseISO(v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseISO(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp %q", s)
}

func nextLink(root dom.Node, pageURL string) string {
	a, ok := root.Find("a", dom.HasClass("blog-pager-older-link"))
	if !ok {
		return ""
	}
	href, ok := a.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return ""
	}
	return resolve(pageURL, href)
}

func resolve(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
