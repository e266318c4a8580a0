package store

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// ResponseToEntry converts an HTTP response to an Entry for key.
// It reads the response body and restores it so the caller can still
// stream the response to its own consumer.
func ResponseToEntry(resp *http.Response, key RequestKey) (*Entry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	var body []byte
	if resp.Body != nil {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		resp.Body.Close()
		body = data
	}

	// Restore body for caller
	resp.Body = io.NopCloser(bytes.NewReader(body))

	entry := &Entry{
		URL:        key.URL,
		Data:       body,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		CachedAt:   time.Now().UTC(),
	}
	if entry.Headers == nil {
		entry.Headers = http.Header{}
	}

	if fields := varyFields(entry.Headers); len(fields) > 0 {
		entry.Vary = make(map[string]string, len(fields))
		for _, field := range fields {
			if field == "*" {
				continue
			}
			entry.Vary[http.CanonicalHeaderKey(field)] = key.Header.Get(field)
		}
	}

	return entry, nil
}

// EntryToResponse converts a cached entry back to an HTTP response for req.
// Every call returns an independent body reader.
func EntryToResponse(entry *Entry, req *http.Request) *http.Response {
	if entry == nil {
		return nil
	}
	header := entry.Headers.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Length", strconv.Itoa(len(entry.Data)))

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", entry.StatusCode, http.StatusText(entry.StatusCode)),
		StatusCode:    entry.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(entry.Data)),
		ContentLength: int64(len(entry.Data)),
		Request:       req,
	}
}
