package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ThreadService operates on one chat thread.
type ThreadService struct {
	c    *Client
	path string
}

// Append stores a message and returns it with its assigned seq and timestamp.
func (s *ThreadService) Append(ctx context.Context, role Role, content string) (msg Message, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("chat.append", start, err) }()

	type newMessage struct {
		Role    Role   `json:"role"`
		Content string `json:"content"`
	}
	body := struct {
		Message newMessage `json:"message"`
	}{newMessage{role, content}}

	var resp struct {
		Message Message `json:"message"`
	}
	if err = s.c.do(ctx, http.MethodPost, s.path, nil, body, &resp); err != nil {
		return Message{}, err
	}
	return resp.Message, nil
}

// List returns one page of the thread, newest first.
func (s *ThreadService) List(ctx context.Context, opts ListOptions) (page Page, err error) {
	start := time.Now()
	defer func() { s.c.obs.observe("chat.list", start, err) }()

	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Before > 0 {
		q.Set("before", strconv.FormatInt(opts.Before, 10))
	}
	err = s.c.do(ctx, http.MethodGet, s.path, q, nil, &page)
	return page, err
}
