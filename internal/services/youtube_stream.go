package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/eclypsed/lazuli/internal/shared"
)

// bestAudioFormat picks the highest bitrate audio-only format that carries a direct url.
func bestAudioFormat(resp *ytPlayerResponse) (ytFormat, bool) {
	var (
		best  ytFormat
		found bool
	)
	if resp.StreamingData == nil {
		return best, false
	}
	for _, f := range resp.StreamingData.AdaptiveFormats {
		if f.URL == "" || !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		if !found || f.Bitrate > best.Bitrate {
			best, found = f, true
		}
	}
	return best, found
}

// GetAudioStream resolves the best audio format of a video and proxies it, forwarding Range.
func (y *YouTubeMusic) GetAudioStream(ctx context.Context, id string, header http.Header) (*AudioStream, error) {
	if !shared.ValidVideoID(id) {
		return nil, invalidYouTubeID(id, "expected an 11 character video id")
	}

	player, err := y.client.player(ctx, id)
	if err != nil {
		return nil, err
	}
	if player.PlayabilityStatus.Status == "ERROR" {
		return nil, invalidYouTubeID(id, strings.ToLower(player.PlayabilityStatus.Reason))
	}

	format, ok := bestAudioFormat(player)
	if !ok {
		return nil, shared.NewUpstreamError(0, y.client.endpoints.Player+"/player",
			fmt.Errorf("%w: no audio format (playability %s)", shared.ErrUnexpectedShape, player.PlayabilityStatus.Status))
	}
	y.logger.Debug("streaming audio", "id", id, "itag", format.Itag, "bitrate", format.Bitrate)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, format.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", playerUserAgent)
	if r := header.Get("Range"); r != "" {
		req.Header.Set("Range", r)
	}

	resp, err := send(y.client.http, req)
	if err != nil {
		return nil, err
	}
	if !relayedStatus(resp.StatusCode) {
		defer resp.Body.Close()
		return nil, statusError(resp, nil)
	}

	return &AudioStream{StatusCode: resp.StatusCode, Header: relayHeader(resp.Header), Body: resp.Body}, nil
}
