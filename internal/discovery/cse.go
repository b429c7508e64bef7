package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const googleCSEEndpoint = "https://www.googleapis.com/customsearch/v1"

// MissingCSEEnvReason marks a search skipped because credentials were
// absent. Discovery reports it instead of erroring so the UI can fall
// back to manual URL entry.
const MissingCSEEnvReason = "missing_env(GOOGLE_CSE_API_KEY/GOOGLE_CSE_CX)"

// QueryMeta records one search attempt for the discovery debug trail.
type QueryMeta struct {
	Query  string `json:"query"`
	Used   bool   `json:"used"`
	Status int    `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

type cseClient struct {
	apiKey   string
	cx       string
	endpoint string
	client   *http.Client
}

func newCSEClientFromEnv() *cseClient {
	return &cseClient{
		apiKey:   strings.TrimSpace(os.Getenv("GOOGLE_CSE_API_KEY")),
		cx:       strings.TrimSpace(os.Getenv("GOOGLE_CSE_CX")),
		endpoint: googleCSEEndpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *cseClient) configured() bool {
	return c.apiKey != "" && c.cx != ""
}

// search runs one Custom Search query. Failures are encoded in the meta
// record, never returned as errors.
func (c *cseClient) search(ctx context.Context, q string, topK int) ([]string, QueryMeta) {
	meta := QueryMeta{Query: q}

	if !c.configured() {
		meta.Error = MissingCSEEnvReason
		return nil, meta
	}

	if topK < 1 {
		topK = 1
	}
	if topK > 10 {
		topK = 10
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.cx)
	params.Set("q", q)
	params.Set("num", strconv.Itoa(topK))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		meta.Error = err.Error()
		return nil, meta
	}

	resp, err := c.client.Do(req)
	if err != nil {
		meta.Error = err.Error()
		return nil, meta
	}
	defer resp.Body.Close()

	meta.Used = true
	meta.Status = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		meta.Error = fmt.Sprintf("status_%d", resp.StatusCode)
		return nil, meta
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		meta.Error = err.Error()
		return nil, meta
	}

	var data struct {
		Items []struct {
			Link string `json:"link"`
		} `json:"items"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		meta.Error = err.Error()
		return nil, meta
	}

	var urls []string
	for _, item := range data.Items {
		if link := strings.TrimSpace(item.Link); link != "" {
			urls = append(urls, link)
		}
	}
	return urls, meta
}
