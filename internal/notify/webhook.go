package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/netx"
)

const maxDescription = 4096

// Webhook posts messages as a single embed, the shape Discord and most
// compatible chat webhooks accept.
type Webhook struct {
	url      string
	username string
	http     *netx.Client
}

func NewWebhook(url, username string, httpClient *netx.Client) (*Webhook, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("%w: webhook url is empty", common.ErrConfig)
	}
	if httpClient == nil {
		httpClient = netx.NewClient(netx.Options{})
	}
	return &Webhook{url: url, username: username, http: httpClient}, nil
}

type embed struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Color       int    `json:"color,omitempty"`
	URL         string `json:"url,omitempty"`
}

type payload struct {
	Username string  `json:"username,omitempty"`
	Embeds   []embed `json:"embeds"`
}

func (w *Webhook) Notify(ctx context.Context, msg Message) error {
	desc := truncate(msg.Description, maxDescription)

	resp, err := w.http.PostJSON(ctx, w.url, "", payload{
		Username: w.username,
		Embeds:   []embed{{Title: msg.Title, Description: desc, Color: msg.Color, URL: msg.URL}},
	})
	if err != nil {
		return errors.Join(common.ErrNotification, err)
	}
	if !resp.OK() {
		return fmt.Errorf("%w: %s", common.ErrNotification, netx.ProviderMessage(resp))
	}
	return nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
