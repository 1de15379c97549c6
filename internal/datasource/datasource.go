package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ivlev/mapvideo/internal/regions"
)

// Meta describes the upstream data generation. Version is the date of
// the latest complete upstream dataset ("2006-01-02").
type Meta struct {
	Version string `json:"version"`
}

// DayCount is one day of new cases for a single region.
type DayCount struct {
	Date  time.Time `json:"date"`
	Cases int       `json:"cases"`
}

// RegionInfo carries the per-region attributes the classifier needs.
type RegionInfo struct {
	Name       string `json:"name"`
	Population int    `json:"population"`
}

// Provider is the upstream statistics collaborator: case histories,
// region metadata and the dataset version. Implementations must be safe
// for concurrent use.
type Provider interface {
	Meta(ctx context.Context) (Meta, error)
	// CasesHistory returns the full ordered daily case history per
	// region, keyed by district AGS or numeric state id.
	CasesHistory(ctx context.Context, region regions.Region) (map[string][]DayCount, error)
	// RegionsInfo returns region attributes under the same keys.
	RegionsInfo(ctx context.Context, region regions.Region) (map[string]RegionInfo, error)
}

// Client talks to the public statistics API over HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("GET %s: decode: %w", path, err)
	}
	return nil
}

func (c *Client) Meta(ctx context.Context) (Meta, error) {
	var out struct {
		Version string `json:"version"`
	}
	if err := c.get(ctx, "/meta", &out); err != nil {
		return Meta{}, err
	}
	return Meta{Version: out.Version}, nil
}

type historyResponse struct {
	Data map[string]struct {
		History []struct {
			Date  time.Time `json:"date"`
			Cases int       `json:"cases"`
		} `json:"history"`
	} `json:"data"`
}

func (c *Client) CasesHistory(ctx context.Context, region regions.Region) (map[string][]DayCount, error) {
	var out historyResponse
	if err := c.get(ctx, fmt.Sprintf("/%s/history/cases", region), &out); err != nil {
		return nil, err
	}
	histories := make(map[string][]DayCount, len(out.Data))
	for key, entry := range out.Data {
		history := make([]DayCount, 0, len(entry.History))
		for _, day := range entry.History {
			history = append(history, DayCount{Date: day.Date, Cases: day.Cases})
		}
		histories[normalizeKey(region, key)] = history
	}
	return histories, nil
}

type regionsResponse struct {
	Data map[string]struct {
		Name       string `json:"name"`
		Population int    `json:"population"`
	} `json:"data"`
}

func (c *Client) RegionsInfo(ctx context.Context, region regions.Region) (map[string]RegionInfo, error) {
	var out regionsResponse
	if err := c.get(ctx, fmt.Sprintf("/%s", region), &out); err != nil {
		return nil, err
	}
	infos := make(map[string]RegionInfo, len(out.Data))
	for key, entry := range out.Data {
		infos[normalizeKey(region, key)] = RegionInfo{Name: entry.Name, Population: entry.Population}
	}
	return infos, nil
}

// normalizeKey keys state data by numeric id instead of the upstream
// two-letter code so frames address both region sets uniformly.
func normalizeKey(region regions.Region, key string) string {
	if region != regions.States {
		return key
	}
	if id := regions.StateIDByAbbreviation(key); id != 0 {
		return strconv.Itoa(id)
	}
	return key
}
