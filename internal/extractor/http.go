package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-cli/internal/record"
	"github.com/sells-group/outreach-cli/internal/resilience"
)

// Config holds the settings for the JSON directory client.
type Config struct {
	BaseURL   string
	APIKey    string
	PageSize  int
	RateLimit float64 // requests per second, 0 disables throttling
	Timeout   time.Duration
}

// Client talks to a JSON business-directory API: a paginated search
// endpoint plus a detail endpoint per listing.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	log     *zap.Logger
}

// NewClient builds a Client from cfg, applying defaults for page size
// and timeout.
func NewClient(cfg Config) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("extractor")
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		retry:   retry,
		log:     zap.L().With(zap.String("component", "extractor")),
	}
}

type searchResponse struct {
	Results []searchResult `json:"results"`
	HasMore bool           `json:"has_more"`
}

type searchResult struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// List pages through the search endpoint until limit handles are
// collected or the directory runs out of results.
func (c *Client) List(ctx context.Context, q Query, limit int) ([]Handle, error) {
	var handles []Handle
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("category", q.Category)
		params.Set("location", q.Location)
		params.Set("page", fmt.Sprint(page))
		params.Set("page_size", fmt.Sprint(c.cfg.PageSize))

		var resp searchResponse
		if err := c.getJSON(ctx, "/search?"+params.Encode(), &resp); err != nil {
			return nil, eris.Wrapf(err, "extractor: search page %d for %q in %q", page, q.Category, q.Location)
		}
		for _, r := range resp.Results {
			handles = append(handles, Handle{ID: r.ID, Label: r.Name, URL: r.URL})
			if limit > 0 && len(handles) >= limit {
				return handles, nil
			}
		}
		if !resp.HasMore || len(resp.Results) == 0 {
			break
		}
	}
	c.log.Debug("search complete",
		zap.String("category", q.Category),
		zap.String("location", q.Location),
		zap.Int("handles", len(handles)))
	return handles, nil
}

type detailResponse struct {
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Address     string   `json:"address"`
	Phone       string   `json:"phone"`
	WhatsApp    string   `json:"whatsapp"`
	Email       string   `json:"email"`
	Website     string   `json:"website"`
	Instagram   string   `json:"instagram"`
	Facebook    string   `json:"facebook"`
	LinkedIn    string   `json:"linkedin"`
	Twitter     string   `json:"twitter"`
	Rating      *float64 `json:"rating"`
	ReviewCount *int     `json:"review_count"`
	Hours       string   `json:"hours"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// Fetch resolves a handle into a partial business record via the detail
// endpoint.
func (c *Client) Fetch(ctx context.Context, h Handle) (*record.Business, error) {
	var resp detailResponse
	if err := c.getJSON(ctx, "/listings/"+url.PathEscape(h.ID), &resp); err != nil {
		return nil, eris.Wrapf(err, "extractor: fetch listing %s", h.ID)
	}
	name := resp.Name
	if name == "" {
		name = h.Label
	}
	return &record.Business{
		Name:        name,
		Category:    resp.Category,
		Address:     resp.Address,
		Phone:       resp.Phone,
		WhatsApp:    resp.WhatsApp,
		Email:       resp.Email,
		Website:     resp.Website,
		Instagram:   resp.Instagram,
		Facebook:    resp.Facebook,
		LinkedIn:    resp.LinkedIn,
		Twitter:     resp.Twitter,
		Rating:      resp.Rating,
		ReviewCount: resp.ReviewCount,
		Hours:       resp.Hours,
		Latitude:    resp.Latitude,
		Longitude:   resp.Longitude,
		SourceURL:   h.URL,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	body, err := resilience.DoVal(ctx, c.retry, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
		if err != nil {
			return nil, err
		}
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, resilience.Transient(err)
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		if err != nil {
			return nil, resilience.Transient(err)
		}
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("unexpected status %d", resp.StatusCode)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.Transient(err)
			}
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "extractor: decode response")
	}
	return nil
}
