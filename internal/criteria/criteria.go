// Package criteria implements the selection evaluator: a closed set of
// predicate variants combined by logical AND, deciding which URLs are
// admitted into the crawl.
package criteria

import (
	"fmt"
	"mime"
	"net/url"
	"regexp"
	"strings"

	"corpuscrawler/internal/crawl"
)

// Target is the evaluation subject. Artifact is nil for pre-fetch checks.
type Target struct {
	URL      *url.URL
	Depth    int
	Artifact *crawl.PageArtifact
}

// Decision is the evaluator verdict. Reason names the rejecting predicate
// so rejections are reportable.
type Decision struct {
	Admit  bool
	Reason string
}

// Predicate is one admission rule. Evaluate returns admit/deny plus an error
// for internal failures; errors always fail closed.
type Predicate interface {
	Name() string
	Evaluate(t Target) (bool, error)
}

// Spec is the ordered AND-combination of predicates.
type Spec struct {
	preds []Predicate
}

// NewSpec builds a Spec from the given predicates. Evaluation order follows
// argument order, so cheap predicates should come first.
func NewSpec(preds ...Predicate) Spec {
	return Spec{preds: append([]Predicate(nil), preds...)}
}

// Evaluate runs every predicate against the target. The first denial or
// internal error rejects; a predicate panic is treated as an internal error,
// never a silent admit.
func (s Spec) Evaluate(t Target) Decision {
	for _, p := range s.preds {
		ok, err := evaluateSafely(p, t)
		if err != nil {
			return Decision{Admit: false, Reason: fmt.Sprintf("%s: %v", p.Name(), err)}
		}
		if !ok {
			return Decision{Admit: false, Reason: p.Name()}
		}
	}
	return Decision{Admit: true}
}

func evaluateSafely(p Predicate, t Target) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = fmt.Errorf("predicate panic: %v", r)
		}
	}()
	return p.Evaluate(t)
}

// DomainAllow admits only hosts in the allow list. A host matches either
// exactly or as a subdomain of an allowed entry.
type DomainAllow struct {
	domains []string
}

// NewDomainAllow builds a DomainAllow predicate.
func NewDomainAllow(domains []string) *DomainAllow {
	return &DomainAllow{domains: lowered(domains)}
}

// Name implements Predicate.
func (p *DomainAllow) Name() string { return "domain-allow" }

// Evaluate implements Predicate.
func (p *DomainAllow) Evaluate(t Target) (bool, error) {
	if len(p.domains) == 0 {
		return true, nil
	}
	host, err := hostOf(t)
	if err != nil {
		return false, err
	}
	for _, d := range p.domains {
		if hostMatches(host, d) {
			return true, nil
		}
	}
	return false, nil
}

// DomainDeny rejects hosts in the deny list, including their subdomains.
type DomainDeny struct {
	domains []string
}

// NewDomainDeny builds a DomainDeny predicate.
func NewDomainDeny(domains []string) *DomainDeny {
	return &DomainDeny{domains: lowered(domains)}
}

// Name implements Predicate.
func (p *DomainDeny) Name() string { return "domain-deny" }

// Evaluate implements Predicate.
func (p *DomainDeny) Evaluate(t Target) (bool, error) {
	host, err := hostOf(t)
	if err != nil {
		return false, err
	}
	for _, d := range p.domains {
		if hostMatches(host, d) {
			return false, nil
		}
	}
	return true, nil
}

// PathPattern admits only URLs whose path matches the expression.
type PathPattern struct {
	re *regexp.Regexp
}

// NewPathPattern builds a PathPattern predicate.
func NewPathPattern(re *regexp.Regexp) *PathPattern {
	return &PathPattern{re: re}
}

// Name implements Predicate.
func (p *PathPattern) Name() string { return "path-pattern" }

// Evaluate implements Predicate.
func (p *PathPattern) Evaluate(t Target) (bool, error) {
	if t.URL == nil {
		return false, fmt.Errorf("target has no url")
	}
	if p.re == nil {
		return true, nil
	}
	return p.re.MatchString(t.URL.Path), nil
}

// DepthLimit rejects URLs discovered deeper than the configured maximum.
type DepthLimit struct {
	max int
}

// NewDepthLimit builds a DepthLimit predicate.
func NewDepthLimit(max int) *DepthLimit {
	return &DepthLimit{max: max}
}

// Name implements Predicate.
func (p *DepthLimit) Name() string { return "depth-limit" }

// Evaluate implements Predicate.
func (p *DepthLimit) Evaluate(t Target) (bool, error) {
	return t.Depth <= p.max, nil
}

// ContentType admits artifacts whose media type is in the allowed set. It is
// a post-fetch predicate: without an artifact it admits, leaving the decision
// to the post-fetch pass.
type ContentType struct {
	allowed []string
}

// NewContentType builds a ContentType predicate.
func NewContentType(allowed []string) *ContentType {
	return &ContentType{allowed: lowered(allowed)}
}

// Name implements Predicate.
func (p *ContentType) Name() string { return "content-type" }

// Evaluate implements Predicate.
func (p *ContentType) Evaluate(t Target) (bool, error) {
	if t.Artifact == nil || len(p.allowed) == 0 {
		return true, nil
	}
	media, _, err := mime.ParseMediaType(t.Artifact.ContentType)
	if err != nil {
		return false, fmt.Errorf("parse content type %q: %w", t.Artifact.ContentType, err)
	}
	for _, a := range p.allowed {
		if media == a {
			return true, nil
		}
	}
	return false, nil
}

// Custom wraps an arbitrary check under a stable name so its failures stay
// classifiable.
type Custom struct {
	name string
	fn   func(t Target) (bool, error)
}

// NewCustom builds a Custom predicate.
func NewCustom(name string, fn func(t Target) (bool, error)) *Custom {
	return &Custom{name: name, fn: fn}
}

// Name implements Predicate.
func (p *Custom) Name() string { return "custom:" + p.name }

// Evaluate implements Predicate.
func (p *Custom) Evaluate(t Target) (bool, error) {
	if p.fn == nil {
		return false, fmt.Errorf("custom predicate %q has no function", p.name)
	}
	return p.fn(t)
}

func hostOf(t Target) (string, error) {
	if t.URL == nil {
		return "", fmt.Errorf("target has no url")
	}
	host := strings.ToLower(t.URL.Hostname())
	if host == "" {
		return "", fmt.Errorf("target url has no host")
	}
	return host, nil
}

func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func lowered(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
