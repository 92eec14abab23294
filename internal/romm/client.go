package romm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/datallboy/gorom/internal/domain"
	"golang.org/x/sync/errgroup"
)

// PageSize matches the limit the RomM web client uses for rom listings
const PageSize = 1000

// Client talks to a RomM server's REST API with basic auth.
type Client struct {
	BaseURL  string
	Username string
	Password string

	http *http.Client
}

func New(baseURL, username, password string) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Username: username,
		Password: password,
		// No client timeout: content bodies stream for as long as the transfer runs
		http: &http.Client{},
	}
}

// WithHTTPClient swaps the underlying transport, mostly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

func (c *Client) Game(ctx context.Context, id int) (*Game, error) {
	var g Game
	if err := c.getJSON(ctx, "/api/roms/"+strconv.Itoa(id), nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// Games lists every rom of a platform. The first page tells us the total, the rest
// are fetched concurrently.
func (c *Client) Games(ctx context.Context, platformID int) ([]Game, error) {
	first, err := c.gamePage(ctx, platformID, 0)
	if err != nil {
		return nil, err
	}
	if len(first.Items) < PageSize || len(first.Items) >= first.Total {
		return first.Items, nil
	}

	pages := (first.Total + PageSize - 1) / PageSize
	results := make([][]Game, pages)
	results[0] = first.Items

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := 1; i < pages; i++ {
		g.Go(func() error {
			p, err := c.gamePage(gctx, platformID, i*PageSize)
			if err != nil {
				return err
			}
			results[i] = p.Items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := make([]Game, 0, first.Total)
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

func (c *Client) gamePage(ctx context.Context, platformID, offset int) (*gamePage, error) {
	q := url.Values{}
	q.Set("platform_id", strconv.Itoa(platformID))
	q.Set("limit", strconv.Itoa(PageSize))
	q.Set("offset", strconv.Itoa(offset))

	var page gamePage
	if err := c.getJSON(ctx, "/api/roms", q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) FirmwareList(ctx context.Context, platformID int) ([]Firmware, error) {
	q := url.Values{}
	q.Set("platform_id", strconv.Itoa(platformID))

	var list []Firmware
	if err := c.getJSON(ctx, "/api/firmware", q, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Firmware looks a single image up in its platform's listing; RomM has no by-id route.
func (c *Client) Firmware(ctx context.Context, platformID, id int) (*Firmware, error) {
	list, err := c.FirmwareList(ctx, platformID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].ID == id {
			return &list[i], nil
		}
	}
	return nil, fmt.Errorf("firmware %d not found on platform %d: %w", id, platformID, domain.ErrNetwork)
}

// OpenContent starts streaming the file behind ref. The returned length is -1 when
// the server sent no Content-Length.
func (c *Client) OpenContent(ctx context.Context, ref domain.SourceRef) (io.ReadCloser, int64, error) {
	var base string
	switch ref.Kind {
	case domain.KindGame:
		base = "/api/roms/"
	case domain.KindFirmware:
		base = "/api/firmware/"
	default:
		return nil, 0, fmt.Errorf("unknown content kind %q", ref.Kind)
	}

	p := base + strconv.Itoa(ref.ID) + "/content/" + url.PathEscape(ref.FileName)
	resp, err := c.do(ctx, p, nil)
	if err != nil {
		return nil, 0, err
	}
	return resp.Body, resp.ContentLength, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	resp, err := c.do(ctx, path, q)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w: %w", path, domain.ErrNetwork, err)
	}
	return nil
}

// do performs an authenticated GET. Non-2xx responses are closed and returned as errors.
func (c *Client) do(ctx context.Context, path string, q url.Values) (*http.Response, error) {
	u := c.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("GET %s: %w", path, domain.ErrCancelled)
		}
		return nil, fmt.Errorf("GET %s: %w: %w", path, domain.ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %w: server returned status %d", path, domain.ErrNetwork, resp.StatusCode)
	}
	return resp, nil
}
