package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/amaumene/gostreamer/internal/constants"
	"github.com/amaumene/gostreamer/pkg/httputil"
	"github.com/amaumene/gostreamer/pkg/logger"
)

// Embed pages cap at a few hundred KB of markup; anything larger is not a
// player page.
const maxEmbedPageBytes = 2 << 20

// Extraction patterns tried in order. Player configs first, raw manifest
// URLs as the catch-all.
var embedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`file\s*:\s*["'](https?://[^"']+)["']`),
	regexp.MustCompile(`sources\s*:\s*\[\s*\{[^}]*?["']file["']\s*:\s*["'](https?://[^"']+)["']`),
	regexp.MustCompile(`<source[^>]+src=["'](https?://[^"']+)["']`),
	regexp.MustCompile(`(https?://[^"'\s\\]+\.m3u8[^"'\s\\]*)`),
	regexp.MustCompile(`(https?://[^"'\s\\]+\.mp4[^"'\s\\]*)`),
}

// HTTPEmbedResolver pulls a direct video URL out of an embed page's markup.
type HTTPEmbedResolver struct {
	httpClient *http.Client
	logger     logger.Logger
}

func NewHTTPEmbedResolver() *HTTPEmbedResolver {
	return &HTTPEmbedResolver{
		httpClient: httputil.NewHTTPClient(constants.ProviderFetchTimeout),
		logger:     logger.New(),
	}
}

// Extract fetches the embed page and returns the first direct video URL it
// can find. An empty URL with nil error means nothing extractable.
func (e *HTTPEmbedResolver) Extract(ctx context.Context, embedURL, referer string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, embedURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Referer", referer)
	req.Header.Set("User-Agent", constants.BrowserUserAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("embed fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("embed fetch for %s: status %d", embedURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEmbedPageBytes))
	if err != nil {
		return "", fmt.Errorf("embed read failed: %w", err)
	}

	if videoURL := extractVideoURL(string(body)); videoURL != "" {
		e.logger.Debugf("[Embed] extracted video URL from %s", embedURL)
		return videoURL, nil
	}

	e.logger.Debugf("[Embed] no extractable URL in %s", embedURL)
	return "", nil
}

// extractVideoURL runs the pattern ladder over page markup.
func extractVideoURL(page string) string {
	for _, pattern := range embedPatterns {
		if m := pattern.FindStringSubmatch(page); m != nil {
			return strings.ReplaceAll(m[1], `\/`, `/`)
		}
	}
	return ""
}
