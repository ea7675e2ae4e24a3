package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/eclypsed/lazuli/internal/models"
	"github.com/eclypsed/lazuli/internal/shared"
)

// memoryStore is a TokenStore for tests in this package; the shared helper package imports services.
type memoryStore struct {
	mu      sync.Mutex
	users   map[string]bool
	conns   map[string]*models.ConnectionRecord
	updates []models.TokenUpdate
}

func newMemoryStore(recs ...*models.ConnectionRecord) *memoryStore {
	s := &memoryStore{users: map[string]bool{}, conns: map[string]*models.ConnectionRecord{}}
	for _, rec := range recs {
		s.users[rec.UserID] = true
		s.conns[rec.ID] = rec
	}
	return s
}

func (s *memoryStore) GetConnection(ctx context.Context, id string) (*models.ConnectionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.conns[id]
	if !ok {
		return nil, shared.NewNotFoundError("connection", id)
	}
	cp := *rec
	return &cp, nil
}

func (s *memoryStore) GetConnectionsForUser(ctx context.Context, userID string) ([]*models.ConnectionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.users[userID] {
		return nil, shared.NewNotFoundError("user", userID)
	}
	recs := []*models.ConnectionRecord{}
	for _, rec := range s.conns {
		if rec.UserID == userID {
			cp := *rec
			recs = append(recs, &cp)
		}
	}
	return recs, nil
}

func (s *memoryStore) UpdateTokens(ctx context.Context, id string, update models.TokenUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.conns[id]
	if !ok {
		return shared.NewNotFoundError("connection", id)
	}
	if update.AccessToken != "" {
		rec.AccessToken = update.AccessToken
	}
	if update.RefreshToken != "" {
		rec.RefreshToken = update.RefreshToken
	}
	if !update.Expiry.IsZero() {
		rec.Expiry = update.Expiry
	}
	s.updates = append(s.updates, update)
	return nil
}

func (s *memoryStore) DeleteConnection(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[id]; !ok {
		return shared.NewNotFoundError("connection", id)
	}
	delete(s.conns, id)
	return nil
}

func (s *memoryStore) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

// Builders for internal API fixtures. They produce the JSON the API sends, which is then decoded into the typed views.

type obj = map[string]any

func browseNav(id, pageType string) obj {
	return obj{"browseEndpoint": obj{
		"browseId": id,
		"browseEndpointContextSupportedConfigs": obj{
			"browseEndpointContextMusicConfig": obj{"pageType": pageType},
		},
	}}
}

func watchNav(videoID, videoType string) obj {
	return obj{"watchEndpoint": obj{
		"videoId": videoID,
		"watchEndpointMusicSupportedConfigs": obj{
			"watchEndpointMusicConfig": obj{"musicVideoType": videoType},
		},
	}}
}

func run(text string, nav obj) obj {
	r := obj{"text": text}
	if nav != nil {
		r["navigationEndpoint"] = nav
	}
	return r
}

func runs(rs ...obj) obj { return obj{"runs": rs} }

func thumbnail(url string, size int) obj {
	return obj{"musicThumbnailRenderer": obj{"thumbnail": obj{"thumbnails": []obj{
		{"url": url, "width": size, "height": size},
	}}}}
}

func flex(text obj) obj {
	return obj{"musicResponsiveListItemFlexColumnRenderer": obj{"text": text}}
}

// songRow is a shelf row for a playable video credited with the given runs.
func songRow(videoID, videoType, title string, credits ...obj) obj {
	return obj{"musicResponsiveListItemRenderer": obj{
		"flexColumns": []obj{
			flex(runs(run(title, watchNav(videoID, videoType)))),
			flex(runs(credits...)),
		},
		"playlistItemData": obj{"videoId": videoID},
	}}
}

// browseRow is a shelf row that links to a browse page.
func browseRow(id, pageType, title string, credits ...obj) obj {
	return obj{"musicResponsiveListItemRenderer": obj{
		"flexColumns": []obj{
			flex(runs(run(title, nil))),
			flex(runs(credits...)),
		},
		"navigationEndpoint": browseNav(id, pageType),
	}}
}

func card(id, pageType, title string, subtitle ...obj) obj {
	c := obj{
		"title":    runs(run(title, nil)),
		"subtitle": runs(subtitle...),
	}
	if id != "" {
		c["navigationEndpoint"] = browseNav(id, pageType)
	}
	return obj{"musicTwoRowItemRenderer": c}
}

func continuationItem(token string) obj {
	return obj{"continuationItemRenderer": obj{"continuationEndpoint": obj{"continuationCommand": obj{"token": token}}}}
}

func singleColumn(sections ...obj) obj {
	return obj{"contents": obj{"singleColumnBrowseResultsRenderer": obj{"tabs": []obj{
		{"tabRenderer": obj{"content": obj{"sectionListRenderer": obj{"contents": sections}}}},
	}}}}
}

func twoColumn(primary []obj, secondary []obj) obj {
	return obj{"contents": obj{"twoColumnBrowseResultsRenderer": obj{
		"tabs": []obj{
			{"tabRenderer": obj{"content": obj{"sectionListRenderer": obj{"contents": primary}}}},
		},
		"secondaryContents": obj{"sectionListRenderer": obj{"contents": secondary}},
	}}}
}

func decode[T any](t *testing.T, v any) T {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}
	return out
}
