package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RemoteDriver speaks a small JSON protocol to an external page
// automation sidecar. Helmsman never embeds a browser engine; the
// sidecar owns the actual tab and this client owns nothing but the
// conversation with it.
type RemoteDriver struct {
	baseURL string
	client  *http.Client
}

// NewRemoteDriver creates a driver against the sidecar at baseURL.
func NewRemoteDriver(baseURL string, timeout time.Duration) *RemoteDriver {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteDriver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (d *RemoteDriver) post(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("browser driver %s: %s: %s", path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (d *RemoteDriver) Navigate(ctx context.Context, url string) error {
	return d.post(ctx, "/navigate", map[string]string{"url": url}, nil)
}

func (d *RemoteDriver) CurrentURL(ctx context.Context) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := d.post(ctx, "/url", nil, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

func (d *RemoteDriver) ViewportElements(ctx context.Context) ([]RawElement, error) {
	var out struct {
		Elements []RawElement `json:"elements"`
	}
	if err := d.post(ctx, "/elements", nil, &out); err != nil {
		return nil, err
	}
	return out.Elements, nil
}

func (d *RemoteDriver) Click(ctx context.Context, elementID string) error {
	return d.post(ctx, "/click", map[string]string{"id": elementID}, nil)
}

func (d *RemoteDriver) TypeText(ctx context.Context, elementID, text string) error {
	return d.post(ctx, "/type", map[string]string{"id": elementID, "text": text}, nil)
}

func (d *RemoteDriver) ScrollDown(ctx context.Context) error {
	return d.post(ctx, "/scroll", nil, nil)
}

func (d *RemoteDriver) Close(ctx context.Context) error {
	return d.post(ctx, "/close", nil, nil)
}
