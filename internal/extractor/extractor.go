// Package extractor finds URLs in stored field values. The rule applied to
// a value is chosen by the field's extraction kind from a fixed table.
package extractor

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/pkg/utils"
)

// ErrUnknownKind is returned for a kind with no registered strategy.
var ErrUnknownKind = errors.New("no extraction strategy for kind")

var urlPattern = regexp.MustCompile(`https?://[^\s<>"'()]+`)

const trailingPunct = ".,;:!?"

// strategy returns candidate URLs found in one raw value. Candidates may be
// relative; the Extractor resolves or drops them.
type strategy func(raw string) ([]string, error)

var strategies = map[entity.ExtractionKind]strategy{
	entity.KindPlain: fromText,
	entity.KindHTML:  fromHTML,
	entity.KindLink:  fromLinkField,
}

// Extractor turns field values into absolute http(s) URLs.
type Extractor struct {
	base *url.URL
}

// New returns an Extractor. When baseURL is empty, relative and internal
// links are dropped instead of resolved.
func New(baseURL string) (*Extractor, error) {
	x := &Extractor{}
	if baseURL == "" {
		return x, nil
	}
	if !utils.IsHTTP(baseURL) {
		return nil, fmt.Errorf("site base url %q is not an absolute http(s) url", baseURL)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	x.base = base
	return x, nil
}

// Extract returns the distinct URLs in values, in order of first appearance.
func (x *Extractor) Extract(kind entity.ExtractionKind, values []string) ([]string, error) {
	find, ok := strategies[kind]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, kind)
	}

	seen := make(map[string]struct{})
	var out []string
	for _, raw := range values {
		candidates, err := find(raw)
		if err != nil {
			return nil, err
		}
		for _, c := range candidates {
			u, ok := x.normalize(c)
			if !ok {
				continue
			}
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			out = append(out, u)
		}
	}
	return out, nil
}

func (x *Extractor) normalize(candidate string) (string, bool) {
	c := strings.TrimSpace(candidate)
	if c == "" || strings.HasPrefix(c, "#") {
		return "", false
	}
	if utils.IsHTTP(c) {
		return c, true
	}
	if x.base == nil {
		return "", false
	}

	switch {
	case strings.HasPrefix(c, "internal:"):
		c = strings.TrimPrefix(c, "internal:")
	case strings.HasPrefix(c, "entity:"):
		c = "/" + strings.TrimPrefix(c, "entity:")
	}
	u, err := url.Parse(c)
	if err != nil || u.Scheme != "" {
		return "", false
	}
	abs, err := utils.ToAbsoluteURL(x.base, c)
	if err != nil || !utils.IsHTTP(abs) {
		return "", false
	}
	return abs, true
}

func fromText(raw string) ([]string, error) {
	matches := urlPattern.FindAllString(raw, -1)
	for i, m := range matches {
		matches[i] = strings.TrimRight(m, trailingPunct)
	}
	return matches, nil
}

// fromHTML collects href/src attributes and bare URLs written in text nodes.
func fromHTML(raw string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var out []string
	doc.Find("a[href], area[href], img[src], iframe[src], source[src], video[src], audio[src]").Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("href"); ok {
			out = append(out, v)
		}
		if v, ok := s.Attr("src"); ok {
			out = append(out, v)
		}
	})

	doc.Find("*").Not("script, style").Contents().Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) != "#text" {
			return
		}
		found, _ := fromText(s.Text())
		out = append(out, found...)
	})
	return out, nil
}

// fromLinkField reads the uri column of a link field; the whole value is one URL.
func fromLinkField(raw string) ([]string, error) {
	if strings.HasPrefix(raw, "route:") {
		return nil, nil
	}
	return []string{raw}, nil
}
