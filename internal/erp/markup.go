package erp

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/noah-isme/erp-timetable-proxy/internal/models"
)

// Markup holds everything this service knows about the portal's HTML. When the
// portal changes its pages, this is the only type that should need to change.
type Markup struct {
	CSRFMetaName  string
	CaptchaMarker string
	// LoginMarker is looked for verbatim in the post-login page. The portal
	// exposes no better success signal.
	LoginMarker string
}

// DefaultMarkup matches the KL University ERP.
func DefaultMarkup() Markup {
	return Markup{
		CSRFMetaName:  "csrf-token",
		CaptchaMarker: "r=site%2Fcaptcha",
		LoginMarker:   "Logout",
	}
}

func (m Markup) withDefaults() Markup {
	d := DefaultMarkup()
	if m.CSRFMetaName == "" {
		m.CSRFMetaName = d.CSRFMetaName
	}
	if m.CaptchaMarker == "" {
		m.CaptchaMarker = d.CaptchaMarker
	}
	if m.LoginMarker == "" {
		m.LoginMarker = d.LoginMarker
	}
	return m
}

// CSRFToken reads the anti-forgery token from the login page meta tag.
func (m Markup) CSRFToken(doc *goquery.Document) (string, error) {
	selector := fmt.Sprintf(`meta[name=%q]`, m.CSRFMetaName)
	token := strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
	if token == "" {
		return "", ErrCSRFTokenMissing
	}
	return token, nil
}

// CaptchaURL locates the CAPTCHA <img> and resolves its src against base.
func (m Markup) CaptchaURL(doc *goquery.Document, base *url.URL) (*url.URL, error) {
	var src string
	doc.Find("img[src]").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		candidate := img.AttrOr("src", "")
		if strings.Contains(candidate, m.CaptchaMarker) {
			src = candidate
			return false
		}
		return true
	})
	if src == "" {
		return nil, ErrCaptchaMissing
	}

	ref, err := url.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse captcha src %q: %w", src, err)
	}
	// Root-relative srcs are relative to the portal root, which may sit
	// under a sub-path of the host.
	prefix := strings.TrimRight(base.Path, "/")
	if ref.Host == "" && prefix != "" && strings.HasPrefix(ref.Path, "/") && !strings.HasPrefix(ref.Path, prefix+"/") {
		ref.Path = prefix + ref.Path
		ref.RawPath = ""
	}
	return base.ResolveReference(ref), nil
}

// LoggedIn applies the login success heuristic to a response body.
func (m Markup) LoggedIn(body string) bool {
	return strings.Contains(body, m.LoginMarker)
}

// ParseTimetable reads the first table in doc. Header cells after the first
// ("Day") are period labels; each body row is a day followed by its slots.
func (m Markup) ParseTimetable(doc *goquery.Document) (*models.Timetable, error) {
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, ErrTimetableMissing
	}

	var headerCells, rows *goquery.Selection
	if thead := table.ChildrenFiltered("thead"); thead.Length() > 0 {
		headerCells = thead.Find("th")
		rows = table.ChildrenFiltered("tbody").ChildrenFiltered("tr")
	} else {
		// The HTML parser wraps bare rows in an implicit tbody.
		all := table.ChildrenFiltered("tbody").ChildrenFiltered("tr")
		headerCells = all.First().ChildrenFiltered("th, td")
		rows = all.Slice(0, 0)
		if all.Length() > 1 {
			rows = all.Slice(1, all.Length())
		}
	}

	var periods []string
	headerCells.Each(func(i int, cell *goquery.Selection) {
		if i == 0 {
			return
		}
		periods = append(periods, cellText(cell))
	})

	timetable := models.NewTimetable(periods)
	rows.Each(func(_ int, row *goquery.Selection) {
		cells := row.ChildrenFiltered("th, td")
		if cells.Length() == 0 {
			return
		}
		day := cellText(cells.First())
		if day == "" {
			return
		}
		slots := make([]string, 0, cells.Length()-1)
		cells.Slice(1, cells.Length()).Each(func(_ int, cell *goquery.Selection) {
			slots = append(slots, cellText(cell))
		})
		timetable.SetDay(day, slots)
	})

	return timetable, nil
}

var horizontalSpace = regexp.MustCompile(`[^\S\n]+`)

// cellText flattens a cell. Line breaks (<br> or newlines in the markup)
// survive as "\n"; blank lines and runs of spaces are dropped.
func cellText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		writeText(&b, n)
	}
	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " ")); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func writeText(b *strings.Builder, n *html.Node) {
	switch {
	case n.Type == html.TextNode:
		b.WriteString(n.Data)
		return
	case n.Type == html.ElementNode && n.Data == "br":
		b.WriteString("\n")
		return
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		writeText(b, child)
	}
}
