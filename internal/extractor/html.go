package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"

	"github.com/sells-group/outreach-cli/internal/record"
	"github.com/sells-group/outreach-cli/internal/resilience"
)

// Selectors maps record fields to CSS selectors on a directory's pages.
// ListItem scopes each result on the search page; Link and Name are
// resolved relative to it. The remaining selectors apply to the detail
// page.
type Selectors struct {
	ListItem string `mapstructure:"list_item" yaml:"list_item"`
	Link     string `mapstructure:"link" yaml:"link"`
	Name     string `mapstructure:"name" yaml:"name"`
	Address  string `mapstructure:"address" yaml:"address"`
	Phone    string `mapstructure:"phone" yaml:"phone"`
	WhatsApp string `mapstructure:"whatsapp" yaml:"whatsapp"`
	Email    string `mapstructure:"email" yaml:"email"`
	Website  string `mapstructure:"website" yaml:"website"`
}

// HTMLConfig holds the settings for the scraping client. SearchURL is a
// template with %s placeholders for category and location, in that
// order.
type HTMLConfig struct {
	SearchURL string
	Selectors Selectors
	RateLimit float64
	Timeout   time.Duration
}

// HTMLClient scrapes a directory that has no API, driving goquery over
// its search and detail pages.
type HTMLClient struct {
	cfg     HTMLConfig
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

func NewHTMLClient(cfg HTMLConfig) *HTMLClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("extractor")
	return &HTMLClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		retry:   retry,
	}
}

// List scrapes the search page and collects up to limit listing links.
func (c *HTMLClient) List(ctx context.Context, q Query, limit int) ([]Handle, error) {
	searchURL := fmt.Sprintf(c.cfg.SearchURL, url.QueryEscape(q.Category), url.QueryEscape(q.Location))
	doc, err := c.fetchDocument(ctx, searchURL)
	if err != nil {
		return nil, eris.Wrapf(err, "extractor: search %q in %q", q.Category, q.Location)
	}
	base, err := url.Parse(searchURL)
	if err != nil {
		return nil, eris.Wrap(err, "extractor: parse search url")
	}

	var handles []Handle
	doc.Find(c.cfg.Selectors.ListItem).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Find(c.cfg.Selectors.Link).Attr("href")
		if !ok {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		abs := base.ResolveReference(ref).String()
		handles = append(handles, Handle{
			ID:    abs,
			Label: strings.TrimSpace(s.Find(c.cfg.Selectors.Name).First().Text()),
			URL:   abs,
		})
		return limit <= 0 || len(handles) < limit
	})
	return handles, nil
}

// Fetch scrapes a detail page into a partial record.
func (c *HTMLClient) Fetch(ctx context.Context, h Handle) (*record.Business, error) {
	doc, err := c.fetchDocument(ctx, h.URL)
	if err != nil {
		return nil, eris.Wrapf(err, "extractor: fetch %s", h.URL)
	}
	sel := c.cfg.Selectors
	text := func(selector string) string {
		if selector == "" {
			return ""
		}
		return strings.TrimSpace(doc.Find(selector).First().Text())
	}
	name := text(sel.Name)
	if name == "" {
		name = h.Label
	}
	return &record.Business{
		Name:      name,
		Address:   text(sel.Address),
		Phone:     text(sel.Phone),
		WhatsApp:  text(sel.WhatsApp),
		Email:     text(sel.Email),
		Website:   text(sel.Website),
		SourceURL: h.URL,
	}, nil
}

func (c *HTMLClient) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	type page struct {
		body        []byte
		contentType string
	}
	p, err := resilience.DoVal(ctx, c.retry, func() (page, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return page{}, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return page{}, resilience.Transient(err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		if err != nil {
			return page{}, resilience.Transient(err)
		}
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("unexpected status %d", resp.StatusCode)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return page{}, resilience.Transient(err)
			}
			return page{}, err
		}
		return page{body: body, contentType: resp.Header.Get("Content-Type")}, nil
	})
	if err != nil {
		return nil, err
	}
	reader, err := decodeCharset(p.body, p.contentType)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(reader)
}

// decodeCharset converts a page body to UTF-8 when the Content-Type
// names a different encoding. Unknown charsets fall through unchanged.
func decodeCharset(body []byte, contentType string) (io.Reader, error) {
	raw := bytes.NewReader(body)
	if contentType == "" {
		return raw, nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return raw, nil
	}
	name := strings.ToLower(params["charset"])
	if name == "" || name == "utf-8" {
		return raw, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return raw, nil
	}
	return enc.NewDecoder().Reader(raw), nil
}
