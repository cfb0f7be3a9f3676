package firecrawl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/scrape", r.URL.Path)
		assert.Equal(t, "Bearer fc-key", r.Header.Get("Authorization"))

		var req ScrapeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://example.com", req.URL)
		assert.True(t, req.OnlyMainContent)

		json.NewEncoder(w).Encode(ScrapeResponse{
			Success: true,
			Data:    PageData{URL: req.URL, Title: "Example", Markdown: "# Example"},
		})
	}))
	defer srv.Close()

	c := NewClient("fc-key", WithBaseURL(srv.URL))
	resp, err := c.Scrape(context.Background(), ScrapeRequest{
		URL:             "https://example.com",
		Formats:         []string{"markdown"},
		OnlyMainContent: true,
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "# Example", resp.Data.Markdown)
}

func TestScrapeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer srv.Close()

	c := NewClient("fc-key", WithBaseURL(srv.URL))
	_, err := c.Scrape(context.Background(), ScrapeRequest{URL: "https://example.com"})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "rate limited")
}

func TestWaitForCrawlPollsUntilComplete(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crawl/crawl-1", r.URL.Path)
		n := calls.Add(1)
		status := "scraping"
		var data []PageData
		if n >= 3 {
			status = "completed"
			data = []PageData{{URL: "https://example.com/a", Markdown: "# A"}}
		}
		json.NewEncoder(w).Encode(CrawlStatusResponse{Status: status, Total: 1, Data: data})
	}))
	defer srv.Close()

	c := NewClient("fc-key", WithBaseURL(srv.URL))
	status, err := c.WaitForCrawl(context.Background(), "crawl-1", time.Millisecond)
	require.NoError(t, err)
	assert.True(t, status.Completed())
	require.Len(t, status.Data, 1)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestWaitForCrawlFailedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(CrawlStatusResponse{Status: "failed"})
	}))
	defer srv.Close()

	c := NewClient("fc-key", WithBaseURL(srv.URL))
	_, err := c.WaitForCrawl(context.Background(), "crawl-1", time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed")
}

func TestWaitForCrawlContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(CrawlStatusResponse{Status: "scraping"})
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := NewClient("fc-key", WithBaseURL(srv.URL))
	_, err := c.WaitForCrawl(ctx, "crawl-1", 5*time.Millisecond)
	require.Error(t, err)
}

func TestCrawlStart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crawl", r.URL.Path)

		var req CrawlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 10, req.Limit)
		assert.Equal(t, []string{"/locations/*"}, req.IncludePaths)

		json.NewEncoder(w).Encode(CrawlResponse{Success: true, ID: "crawl-9"})
	}))
	defer srv.Close()

	c := NewClient("fc-key", WithBaseURL(srv.URL))
	resp, err := c.Crawl(context.Background(), CrawlRequest{
		URL:          "https://example.com",
		Limit:        10,
		IncludePaths: []string{"/locations/*"},
	})
	require.NoError(t, err)
	assert.Equal(t, "crawl-9", resp.ID)
}
