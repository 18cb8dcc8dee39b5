// Package demandware adapts Demandware storefront APIs (Ahorramas-style
// sites) to the pipeline's source contract. Pages are addressed by a
// numeric start offset carried in the cursor, so extraction can resume
// from any previously returned cursor.
package demandware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/optimal-data/ingestor/internal/etl"
)

// Client fetches product grid pages from one storefront.
type Client struct {
	BaseURL    string
	Endpoint   string
	Params     map[string]string
	PageSize   int
	HTTPClient *http.Client
	limiter    *rate.Limiter
}

// New builds a client throttled to ratePerSec requests per second. The
// storefronts ban aggressive crawlers, so the limiter is not optional.
func New(baseURL, endpoint string, params map[string]string, pageSize int, ratePerSec float64) *Client {
	if pageSize <= 0 {
		pageSize = 24
	}
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return &Client{
		BaseURL:    baseURL,
		Endpoint:   endpoint,
		Params:     params,
		PageSize:   pageSize,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), 1),
	}
}

type gridResponse struct {
	Products []map[string]interface{} `json:"products"`
	Total    int                      `json:"total"`
}

func (c *Client) FetchPage(ctx context.Context, cursor string) ([]etl.RawRecord, string, error) {
	start := 0
	if cursor != "" {
		var err error
		start, err = strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("malformed cursor %q: %w", cursor, err)
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(start), nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		// Timeouts and connection resets are worth retrying.
		return nil, "", etl.Transient(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, "", etl.Transient(fmt.Errorf("storefront returned %s", resp.Status))
	default:
		return nil, "", fmt.Errorf("storefront returned %s", resp.Status)
	}

	var grid gridResponse
	if err := json.NewDecoder(resp.Body).Decode(&grid); err != nil {
		return nil, "", fmt.Errorf("decoding grid response: %w", err)
	}

	fetchedAt := time.Now()
	records := make([]etl.RawRecord, 0, len(grid.Products))
	for _, product := range grid.Products {
		records = append(records, etl.RawRecord{
			ID:        productID(product),
			Payload:   product,
			FetchedAt: fetchedAt,
		})
	}

	next := ""
	if len(records) > 0 && start+len(records) < grid.Total {
		next = strconv.Itoa(start + len(records))
	}
	return records, next, nil
}

// pageURL builds the page address with a sorted querystring, so the same
// page always has the same URL regardless of map iteration order.
func (c *Client) pageURL(start int) string {
	params := url.Values{}
	for k, v := range c.Params {
		params.Set(k, v)
	}
	params.Set("start", strconv.Itoa(start))
	params.Set("sz", strconv.Itoa(c.PageSize))
	return c.BaseURL + "/" + c.Endpoint + "?" + params.Encode()
}

func productID(product map[string]interface{}) string {
	for _, key := range []string{"id", "uuid", "productID"} {
		if v, ok := product[key]; ok && v != nil {
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}
