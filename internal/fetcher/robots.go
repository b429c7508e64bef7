package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/temoto/robotstxt"
)

// robotsChecker caches per-host robots.txt verdicts. Failing to retrieve
// robots.txt is treated as permission: trusted sources occasionally 404
// their robots file and the trust registry is the real gate.
type robotsChecker struct {
	client    *http.Client
	userAgent string
	cache     *lru.Cache[string, *robotstxt.RobotsData]
}

func newRobotsChecker(client *http.Client, userAgent string, cacheSize int) *robotsChecker {
	cache, _ := lru.New[string, *robotstxt.RobotsData](cacheSize)
	return &robotsChecker{client: client, userAgent: userAgent, cache: cache}
}

// Allowed reports whether the target URL may be fetched under the host's
// robots.txt.
func (r *robotsChecker) Allowed(ctx context.Context, target *url.URL) bool {
	key := target.Scheme + "://" + target.Host
	data, ok := r.cache.Get(key)
	if !ok {
		data = r.fetchRobots(ctx, key)
		r.cache.Add(key, data)
	}
	if data == nil {
		return true
	}
	return data.TestAgent(target.Path, r.userAgent)
}

func (r *robotsChecker) fetchRobots(ctx context.Context, base string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/robots.txt", base), nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil
	}
	return data
}
