package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/eclypsed/lazuli/internal/models"
	"github.com/eclypsed/lazuli/internal/shared"
)

const (
	musicClientName    = "WEB_REMIX"
	musicClientVersion = "1.20240101.01.00"
	musicOrigin        = "https://music.youtube.com"

	playerClientName    = "IOS"
	playerClientVersion = "19.29.1"
	playerDeviceModel   = "iPhone16,2"
	playerUserAgent     = "com.google.ios.youtube/19.29.1 (iPhone16,2; U; CPU iOS 17_5_1 like Mac OS X;)"
)

// searchParams narrow an internal API search to one result kind.
var searchParams = map[models.Kind]string{
	models.KindSong:     "EgWKAQIIAWoMEA4QChADEAQQCRAF",
	models.KindAlbum:    "EgWKAQIYAWoMEA4QChADEAQQCRAF",
	models.KindArtist:   "EgWKAQIgAWoMEA4QChADEAQQCRAF",
	models.KindPlaylist: "EgeKAQQoAEABagwQDhAKEAMQBBAJEAU=",
}

// YouTubeEndpoints locates the APIs a YouTube Music connection calls. Empty fields use the public endpoints.
type YouTubeEndpoints struct {
	Music  string
	Player string
	Data   string
}

func (e YouTubeEndpoints) withDefaults() YouTubeEndpoints {
	if e.Music == "" {
		e.Music = "https://music.youtube.com/youtubei/v1"
	}
	if e.Player == "" {
		e.Player = "https://www.youtube.com/youtubei/v1"
	}
	if e.Data == "" {
		e.Data = "https://www.googleapis.com/youtube/v3"
	}
	return e
}

// ytClient issues authenticated calls to the internal music API, the player API and the Data API.
type ytClient struct {
	http      *http.Client
	tokens    *tokenSource
	limiter   *rate.Limiter
	endpoints YouTubeEndpoints
}

func (c *ytClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// authorized sends a request built by build with a bearer token, refreshing once if the API answers 401.
func (c *ytClient) authorized(ctx context.Context, build func() (*http.Request, error), result any, classify errorClassifier) error {
	for attempt := 0; ; attempt++ {
		if err := c.wait(ctx); err != nil {
			return err
		}
		token, err := c.tokens.AccessToken(ctx)
		if err != nil {
			return err
		}

		req, err := build()
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)

		err = doJSON(c.http, req, result, classify)
		var upstream *shared.UpstreamError
		if attempt == 0 && errors.As(err, &upstream) && upstream.Status == http.StatusUnauthorized {
			c.tokens.Expire()
			continue
		}
		return err
	}
}

// post calls an internal music API endpoint with the WEB_REMIX client context merged into body.
func (c *ytClient) post(ctx context.Context, endpoint string, query url.Values, body map[string]any, result any, classify errorClassifier) error {
	payload := map[string]any{
		"context": map[string]any{
			"client": map[string]any{
				"clientName":    musicClientName,
				"clientVersion": musicClientVersion,
				"hl":            "en",
			},
		},
	}
	for k, v := range body {
		payload[k] = v
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("prettyPrint", "false")
	apiURL := c.endpoints.Music + "/" + endpoint + "?" + query.Encode()

	return c.authorized(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Origin", musicOrigin)
		req.Header.Set("X-Origin", musicOrigin)
		return req, nil
	}, result, classify)
}

// browse fetches a browse page. A NOT_FOUND or INVALID_ARGUMENT answer means id does not address anything.
func (c *ytClient) browse(ctx context.Context, id string) (*ytResponse, error) {
	var resp ytResponse
	if err := c.post(ctx, "browse", nil, map[string]any{"browseId": id}, &resp, invalidIDClassifier(id)); err != nil {
		return nil, err
	}
	return &resp, nil
}

// next fetches the page a continuation token points at.
//
// The token is sent both as the legacy query parameters and in the body; the API answers whichever style issued it.
func (c *ytClient) next(ctx context.Context, token string) (*ytResponse, error) {
	query := url.Values{"ctoken": {token}, "continuation": {token}, "type": {"next"}}
	var resp ytResponse
	if err := c.post(ctx, "browse", query, map[string]any{"continuation": token}, &resp, nil); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *ytClient) search(ctx context.Context, term string, filter models.Kind) (*ytResponse, error) {
	body := map[string]any{"query": term}
	if params, ok := searchParams[filter]; ok {
		body["params"] = params
	}
	var resp ytResponse
	if err := c.post(ctx, "search", nil, body, &resp, nil); err != nil {
		return nil, err
	}
	return &resp, nil
}

// player resolves stream formats for a video. It is called without credentials as the IOS client.
func (c *ytClient) player(ctx context.Context, videoID string) (*ytPlayerResponse, error) {
	payload := map[string]any{
		"videoId": videoID,
		"context": map[string]any{
			"client": map[string]any{
				"clientName":    playerClientName,
				"clientVersion": playerClientVersion,
				"deviceModel":   playerDeviceModel,
				"hl":            "en",
			},
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.Player+"/player?prettyPrint=false", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", playerUserAgent)

	var resp ytPlayerResponse
	if err := doJSON(c.http, req, &resp, invalidIDClassifier(videoID)); err != nil {
		return nil, err
	}
	return &resp, nil
}

// data calls a YouTube Data API v3 resource.
func (c *ytClient) data(ctx context.Context, resource string, query url.Values, result any) error {
	apiURL := c.endpoints.Data + "/" + resource + "?" + query.Encode()
	return c.authorized(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}, result, nil)
}

// invalidIDClassifier maps explicit "no such entity" error payloads to [shared.InvalidIDError].
func invalidIDClassifier(id string) errorClassifier {
	return func(status int, body []byte) error {
		var payload ytErrorPayload
		if err := json.Unmarshal(body, &payload); err != nil || payload.Error == nil {
			return nil
		}
		switch strings.ToUpper(payload.Error.Status) {
		case "NOT_FOUND", "INVALID_ARGUMENT":
			return shared.NewInvalidIDError(string(models.ServiceYouTubeMusic), id, strings.ToLower(payload.Error.Status))
		}
		return nil
	}
}
