// Package extract parses fetched HTML into outbound links, article metadata,
// and plain text for downstream corpus processing.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"corpuscrawler/internal/crawl"
)

// ArticleMeta is the bibliographic record captured alongside each page.
type ArticleMeta struct {
	ID     int      `json:"id"`
	URL    string   `json:"url"`
	Title  string   `json:"title"`
	Author string   `json:"author,omitempty"`
	Topics []string `json:"topics,omitempty"`
	Date   string   `json:"date,omitempty"`
	// Digest is the hex SHA-256 of the raw article body.
	Digest string `json:"digest,omitempty"`
	// POSFrequencies is filled in by the linguistic pipeline.
	POSFrequencies map[string]int `json:"pos_frequencies,omitempty"`
}

// HTMLExtractor parses page artifacts with goquery.
type HTMLExtractor struct{}

// NewHTMLExtractor builds an HTMLExtractor.
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

// Links returns the absolute http(s) URLs referenced by anchor tags, in
// document order with duplicates removed. Relative references resolve against
// the artifact URL.
func (e *HTMLExtractor) Links(artifact *crawl.PageArtifact) ([]string, error) {
	doc, err := e.parse(artifact)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(artifact.URL)
	if err != nil {
		return nil, fmt.Errorf("parse artifact url: %w", err)
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment = ""
		link := abs.String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links, nil
}

// Meta pulls the article's bibliographic fields from the document head. The
// Dublin Core names take precedence over their generic counterparts.
func (e *HTMLExtractor) Meta(artifact *crawl.PageArtifact) (ArticleMeta, error) {
	doc, err := e.parse(artifact)
	if err != nil {
		return ArticleMeta{}, err
	}

	meta := ArticleMeta{URL: artifact.URL}
	meta.Title = firstNonEmpty(
		metaContent(doc, "og:title"),
		strings.TrimSpace(doc.Find("title").First().Text()),
	)
	meta.Author = firstNonEmpty(
		metaContent(doc, "DC.Creator.PersonalName"),
		metaContent(doc, "author"),
	)
	meta.Date = firstNonEmpty(
		metaContent(doc, "DC.Date.dateSubmitted"),
		metaContent(doc, "article:published_time"),
	)
	if keywords := metaContent(doc, "keywords"); keywords != "" {
		for _, kw := range strings.Split(keywords, ",") {
			kw = strings.TrimSpace(kw)
			if kw != "" {
				meta.Topics = append(meta.Topics, kw)
			}
		}
	}
	return meta, nil
}

// Text returns the readable article body: paragraph contents joined by
// newlines, with surrounding whitespace collapsed.
func (e *HTMLExtractor) Text(artifact *crawl.PageArtifact) (string, error) {
	doc, err := e.parse(artifact)
	if err != nil {
		return "", err
	}
	var parts []string
	doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n"), nil
}

func (e *HTMLExtractor) parse(artifact *crawl.PageArtifact) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(artifact.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html for %s: %w", artifact.URL, err)
	}
	return doc, nil
}

// metaContent reads a meta tag's content by name or property attribute.
func metaContent(doc *goquery.Document, name string) string {
	sel := doc.Find(fmt.Sprintf(`meta[name=%q]`, name)).First()
	if sel.Length() == 0 {
		sel = doc.Find(fmt.Sprintf(`meta[property=%q]`, name)).First()
	}
	content, _ := sel.Attr("content")
	return strings.TrimSpace(content)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
