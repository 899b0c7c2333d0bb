package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultTimeout = 10 * time.Second

// Prober verifies that a user-supplied media URL is reachable before any
// credits are spent submitting it to a vendor.
type Prober struct {
	http *resty.Client
}

// New builds a reachability prober with a short timeout.
func New() *Prober {
	return &Prober{http: resty.New().SetTimeout(defaultTimeout)}
}

// Check issues a HEAD request and reports an error for anything but 2xx/3xx.
func (p *Prober) Check(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("url is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("unsupported url scheme in %q", url)
	}
	resp, err := p.http.R().SetContext(ctx).Head(url)
	if err != nil {
		return fmt.Errorf("probe %s: %w", url, err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("media url %s responded with status %d", url, resp.StatusCode())
	}
	return nil
}
