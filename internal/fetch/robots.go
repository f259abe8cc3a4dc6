package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

// RobotsPolicy answers whether the crawler may fetch a URL.
type RobotsPolicy interface {
	Allowed(ctx context.Context, rawURL string) (bool, error)
}

// AllowAllRobots skips robots.txt entirely.
type AllowAllRobots struct{}

// Allowed implements RobotsPolicy.
func (AllowAllRobots) Allowed(context.Context, string) (bool, error) {
	return true, nil
}

// RobotsAgent fetches and caches robots.txt per origin and evaluates paths
// against the group matching the crawler's user agent. A robots.txt that
// cannot be fetched at the transport level allows everything, so a flaky
// origin does not silently blackhole its own pages.
type RobotsAgent struct {
	http   *resty.Client
	agent  string
	logger *zap.Logger

	mu     sync.Mutex
	groups map[string]*robotstxt.Group
}

// NewRobotsAgent builds a robots policy for the given user agent.
func NewRobotsAgent(userAgent string, timeout time.Duration, logger *zap.Logger) *RobotsAgent {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RobotsAgent{
		http: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", userAgent).
			SetRetryCount(0),
		agent:  userAgent,
		logger: logger,
		groups: make(map[string]*robotstxt.Group),
	}
}

// Allowed reports whether the crawler may fetch rawURL.
func (a *RobotsAgent) Allowed(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("parse url for robots check: %w", err)
	}
	group, err := a.group(ctx, u)
	if err != nil {
		return false, err
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return group.Test(path), nil
}

func (a *RobotsAgent) group(ctx context.Context, u *url.URL) (*robotstxt.Group, error) {
	origin := strings.ToLower(u.Scheme + "://" + u.Host)

	a.mu.Lock()
	group, ok := a.groups[origin]
	a.mu.Unlock()
	if ok {
		return group, nil
	}

	group = a.fetchGroup(ctx, origin)

	a.mu.Lock()
	if cached, ok := a.groups[origin]; ok {
		group = cached
	} else {
		a.groups[origin] = group
	}
	a.mu.Unlock()
	return group, nil
}

func (a *RobotsAgent) fetchGroup(ctx context.Context, origin string) *robotstxt.Group {
	resp, err := a.http.R().SetContext(ctx).Get(origin + "/robots.txt")
	if err != nil {
		a.logger.Debug("robots.txt unreachable, allowing all",
			zap.String("origin", origin), zap.Error(err))
		return allowAllGroup(a.agent)
	}
	robots, err := robotstxt.FromStatusAndBytes(resp.StatusCode(), resp.Body())
	if err != nil {
		a.logger.Debug("robots.txt unparsable, allowing all",
			zap.String("origin", origin), zap.Error(err))
		return allowAllGroup(a.agent)
	}
	return robots.FindGroup(a.agent)
}

func allowAllGroup(agent string) *robotstxt.Group {
	robots, err := robotstxt.FromStatusAndBytes(404, nil)
	if err != nil {
		// FromStatusAndBytes never fails for 404, but keep the fallback total.
		robots = &robotstxt.RobotsData{}
	}
	return robots.FindGroup(agent)
}
