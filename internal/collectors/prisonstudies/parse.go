package prisonstudies

import (
	"bytes"
	"errors"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoTrendTable indicates a country page without a trend table.
var ErrNoTrendTable = errors.New("prisonstudies: no trend table")

// ParseIndex returns the country slugs linked from the index page, in
// page order and without duplicates.
func ParseIndex(page []byte) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}
	var slugs []string
	seen := map[string]bool{}
	walk(doc, func(n *html.Node) {
		if n.DataAtom != atom.A {
			return
		}
		slug, ok := strings.CutPrefix(attr(n, "href"), "/country/")
		slug = strings.Trim(slug, "/")
		if !ok || slug == "" || strings.Contains(slug, "/") || seen[slug] {
			return
		}
		seen[slug] = true
		slugs = append(slugs, slug)
	})
	return slugs, nil
}

// CountryPage is what a country page yields.
type CountryPage struct {
	Name string
	Rows []Record
}

// ParseCountry reads the country name from the first heading and the
// rows of the trend table, the table whose header starts with "Year".
func ParseCountry(page []byte, slug string) (CountryPage, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return CountryPage{}, err
	}

	out := CountryPage{Name: strings.ReplaceAll(slug, "-", " ")}
	if h1 := find(doc, atom.H1); h1 != nil {
		if name := text(h1); name != "" {
			out.Name = name
		}
	}

	var table *html.Node
	walk(doc, func(n *html.Node) {
		if table == nil && n.DataAtom == atom.Table && isTrendTable(n) {
			table = n
		}
	})
	if table == nil {
		return out, ErrNoTrendTable
	}

	walk(table, func(n *html.Node) {
		if n.DataAtom != atom.Tr {
			return
		}
		var cells []string
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.DataAtom == atom.Td {
				cells = append(cells, text(c))
			}
		}
		if len(cells) < 2 {
			return
		}
		r := Record{Country: out.Name, Slug: slug, Year: cells[0], Total: cells[1]}
		if len(cells) > 2 {
			r.Rate = cells[2]
		}
		out.Rows = append(out.Rows, r)
	})
	return out, nil
}

func isTrendTable(table *html.Node) bool {
	th := find(table, atom.Th)
	return th != nil && strings.EqualFold(text(th), "year")
}

func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func find(n *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	walk(n, func(m *html.Node) {
		if found == nil && m.DataAtom == a {
			found = m
		}
	})
	return found
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// text returns the whitespace-collapsed text content of n.
func text(n *html.Node) string {
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(m *html.Node) {
		if m.Type == html.TextNode {
			b.WriteString(m.Data)
			b.WriteByte(' ')
		}
		for c := m.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
