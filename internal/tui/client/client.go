// Package client is the control-API client shared by deepsearchctl and
// deepsearchtui. It speaks JSON over the daemon's Unix domain socket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/BENZOOgataga/DeepSearch/internal/api"
	"github.com/BENZOOgataga/DeepSearch/internal/stats"
	"github.com/BENZOOgataga/DeepSearch/internal/store"
)

// APIError is a non-2xx response from the daemon.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client wraps HTTP access to the daemon.
type Client struct {
	httpc *http.Client
}

// New returns a client dialing the daemon's Unix domain socket. No
// connection is made until the first request.
func New(socketPath string) *Client {
	return &Client{
		httpc: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, "http://unix"+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		msg := resp.Status
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// StartJob submits a new search job.
func (c *Client) StartJob(ctx context.Context, jr api.JobRequest) (*api.JobAccepted, error) {
	var accepted api.JobAccepted
	if err := c.do(ctx, http.MethodPost, "/v1/jobs", jr, &accepted); err != nil {
		return nil, err
	}
	return &accepted, nil
}

// Jobs reports the slot state of every job kind.
func (c *Client) Jobs(ctx context.Context) ([]api.JobSnapshot, error) {
	var jobs []api.JobSnapshot
	if err := c.do(ctx, http.MethodGet, "/v1/jobs", nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// Job reports one kind's slot and its latest job.
func (c *Client) Job(ctx context.Context, kind string) (*api.JobSnapshot, error) {
	var snap api.JobSnapshot
	if err := c.do(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(kind), nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Cancel requests cancellation of the running job of the given kind.
func (c *Client) Cancel(ctx context.Context, kind string) error {
	return c.do(ctx, http.MethodPost, "/v1/jobs/"+url.PathEscape(kind)+"/cancel", nil, nil)
}

// Status fetches the daemon status report.
func (c *Client) Status(ctx context.Context) (*api.StatusInfo, error) {
	var info api.StatusInfo
	if err := c.do(ctx, http.MethodGet, "/v1/status", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Stats fetches the durable search statistics.
func (c *Client) Stats(ctx context.Context) (*stats.Aggregate, error) {
	var agg stats.Aggregate
	if err := c.do(ctx, http.MethodGet, "/v1/stats", nil, &agg); err != nil {
		return nil, err
	}
	return &agg, nil
}

// Hits fetches the most recent live-watch hits.
func (c *Client) Hits(ctx context.Context, limit int) ([]store.Hit, error) {
	path := "/v1/hits"
	if limit > 0 {
		path += "?limit=" + url.QueryEscape(fmt.Sprint(limit))
	}
	var hits []store.Hit
	if err := c.do(ctx, http.MethodGet, path, nil, &hits); err != nil {
		return nil, err
	}
	return hits, nil
}

// Channels lists the workspace's channels, optionally with member counts.
func (c *Client) Channels(ctx context.Context, withMembers bool) ([]api.ChannelInfo, error) {
	path := "/v1/channels"
	if withMembers {
		path += "?members=true"
	}
	var channels []api.ChannelInfo
	if err := c.do(ctx, http.MethodGet, path, nil, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// ArchiveSearch runs a synchronous full-text query over the daemon's
// local message archive.
func (c *Client) ArchiveSearch(ctx context.Context, query, channel string, limit int) ([]api.ArchiveMatch, error) {
	q := url.Values{}
	q.Set("q", query)
	if channel != "" {
		q.Set("channel", channel)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	var matches []api.ArchiveMatch
	if err := c.do(ctx, http.MethodGet, "/v1/archive/search?"+q.Encode(), nil, &matches); err != nil {
		return nil, err
	}
	return matches, nil
}

type keywordsBody struct {
	Keywords []string `json:"keywords"`
}

// Keywords fetches the live watch list.
func (c *Client) Keywords(ctx context.Context) ([]string, error) {
	var body keywordsBody
	if err := c.do(ctx, http.MethodGet, "/v1/keywords", nil, &body); err != nil {
		return nil, err
	}
	return body.Keywords, nil
}

// SetKeywords replaces the watch list.
func (c *Client) SetKeywords(ctx context.Context, keywords []string) ([]string, error) {
	var body keywordsBody
	if err := c.do(ctx, http.MethodPut, "/v1/keywords", keywordsBody{Keywords: keywords}, &body); err != nil {
		return nil, err
	}
	return body.Keywords, nil
}

// Caches reports the daemon's in-memory cache statistics.
func (c *Client) Caches(ctx context.Context) ([]api.CacheInfo, error) {
	var caches []api.CacheInfo
	if err := c.do(ctx, http.MethodGet, "/v1/caches", nil, &caches); err != nil {
		return nil, err
	}
	return caches, nil
}

// ClearCaches drops the daemon's in-memory caches.
func (c *Client) ClearCaches(ctx context.Context) ([]api.CacheInfo, error) {
	var caches []api.CacheInfo
	if err := c.do(ctx, http.MethodPost, "/v1/caches/clear", nil, &caches); err != nil {
		return nil, err
	}
	return caches, nil
}
