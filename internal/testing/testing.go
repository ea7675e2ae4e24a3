// package testing contains shared testing utilities
package testing

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/eclypsed/lazuli/internal/models"
	"github.com/eclypsed/lazuli/internal/services"
	"github.com/eclypsed/lazuli/internal/shared"
)

// MockConnection is a test double for [services.Connection].
//
// Every operation returns the configured result, or Err when set. Calls counts invocations across all operations.
type MockConnection struct {
	ConnectionID string
	Type         models.ServiceType

	Info            *models.ConnectionInfo
	SearchResults   []models.MediaItem
	Recommendations []models.MediaItem
	Albums          []models.Album
	Artists         []models.Artist
	Playlists       []models.Playlist
	Songs           []models.Song
	Album           *models.Album
	Playlist        *models.Playlist
	Audio           []byte

	Err   error
	Calls atomic.Int32
}

var _ services.Connection = (*MockConnection)(nil)

func (m *MockConnection) result() error {
	m.Calls.Add(1)
	return m.Err
}

func (m *MockConnection) ID() string { return m.ConnectionID }

func (m *MockConnection) ServiceType() models.ServiceType {
	if m.Type == "" {
		return models.ServiceJellyfin
	}
	return m.Type
}

func (m *MockConnection) GetConnectionInfo(ctx context.Context) (*models.ConnectionInfo, error) {
	if err := m.result(); err != nil {
		return nil, err
	}
	if m.Info != nil {
		return m.Info, nil
	}
	return &models.ConnectionInfo{ConnectionID: m.ConnectionID, ServiceType: m.ServiceType()}, nil
}

func (m *MockConnection) Search(ctx context.Context, term string, filter models.Kind) ([]models.MediaItem, error) {
	if err := m.result(); err != nil {
		return nil, err
	}
	if filter == "" {
		return m.SearchResults, nil
	}
	var out []models.MediaItem
	for _, item := range m.SearchResults {
		if item.Base().Kind == filter {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *MockConnection) GetRecommendations(ctx context.Context) ([]models.MediaItem, error) {
	if err := m.result(); err != nil {
		return nil, err
	}
	return m.Recommendations, nil
}

func (m *MockConnection) GetAudioStream(ctx context.Context, id string, header http.Header) (*services.AudioStream, error) {
	if err := m.result(); err != nil {
		return nil, err
	}
	h := http.Header{"Content-Type": {"audio/mpeg"}}
	return &services.AudioStream{StatusCode: http.StatusOK, Header: h, Body: io.NopCloser(bytes.NewReader(m.Audio))}, nil
}

func (m *MockConnection) GetAlbum(ctx context.Context, id string) (*models.Album, error) {
	if err := m.result(); err != nil {
		return nil, err
	}
	if m.Album == nil {
		return nil, shared.NewInvalidIDError(string(m.ServiceType()), id, "not found")
	}
	return m.Album, nil
}

func (m *MockConnection) GetAlbumItems(ctx context.Context, id string) ([]models.Song, error) {
	if err := m.result(); err != nil {
		return nil, err
	}
	return m.Songs, nil
}

func (m *MockConnection) GetPlaylist(ctx context.Context, id string) (*models.Playlist, error) {
	if err := m.result(); err != nil {
		return nil, err
	}
	if m.Playlist == nil {
		return nil, shared.NewInvalidIDError(string(m.ServiceType()), id, "not found")
	}
	return m.Playlist, nil
}

func (m *MockConnection) GetPlaylistItems(ctx context.Context, id string, window models.Window) ([]models.Song, error) {
	if err := m.result(); err != nil {
		return nil, err
	}
	return models.Apply(window, m.Songs), nil
}

func (m *MockConnection) GetSongs(ctx context.Context, ids []string) ([]models.Song, error) {
	if err := m.result(); err != nil {
		return nil, err
	}
	byID := make(map[string]models.Song, len(m.Songs))
	for _, s := range m.Songs {
		byID[s.ID] = s
	}
	var out []models.Song
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MockConnection) Library() services.Library { return mockLibrary{m} }

type mockLibrary struct{ m *MockConnection }

func (l mockLibrary) Albums(ctx context.Context) ([]models.Album, error) {
	if err := l.m.result(); err != nil {
		return nil, err
	}
	return l.m.Albums, nil
}

func (l mockLibrary) Artists(ctx context.Context) ([]models.Artist, error) {
	if err := l.m.result(); err != nil {
		return nil, err
	}
	return l.m.Artists, nil
}

func (l mockLibrary) Playlists(ctx context.Context) ([]models.Playlist, error) {
	if err := l.m.result(); err != nil {
		return nil, err
	}
	return l.m.Playlists, nil
}

// MemoryTokenStore is an in-memory [services.TokenStore].
type MemoryTokenStore struct {
	mu          sync.Mutex
	Users       map[string]bool
	Connections map[string]*models.ConnectionRecord
	Updates     []models.TokenUpdate
}

// NewMemoryTokenStore creates a store holding recs, registering their owners as users.
func NewMemoryTokenStore(recs ...*models.ConnectionRecord) *MemoryTokenStore {
	s := &MemoryTokenStore{Users: map[string]bool{}, Connections: map[string]*models.ConnectionRecord{}}
	for _, rec := range recs {
		s.Users[rec.UserID] = true
		s.Connections[rec.ID] = rec
	}
	return s
}

func (s *MemoryTokenStore) GetConnection(ctx context.Context, id string) (*models.ConnectionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.Connections[id]
	if !ok {
		return nil, shared.NewNotFoundError("connection", id)
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryTokenStore) GetConnectionsForUser(ctx context.Context, userID string) ([]*models.ConnectionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.Users[userID] {
		return nil, shared.NewNotFoundError("user", userID)
	}
	recs := []*models.ConnectionRecord{}
	for _, rec := range s.Connections {
		if rec.UserID == userID {
			cp := *rec
			recs = append(recs, &cp)
		}
	}
	slices.SortFunc(recs, func(a, b *models.ConnectionRecord) int { return strings.Compare(a.ID, b.ID) })
	return recs, nil
}

func (s *MemoryTokenStore) UpdateTokens(ctx context.Context, id string, update models.TokenUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.Connections[id]
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
	s.Updates = append(s.Updates, update)
	return nil
}

func (s *MemoryTokenStore) DeleteConnection(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.Connections[id]; !ok {
		return shared.NewNotFoundError("connection", id)
	}
	delete(s.Connections, id)
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
	calls    atomic.Int32
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	m.calls.Add(1)
	return m.response, m.err
}

// Calls reports how many requests reached the transport.
func (m *MockRoundTripper) Calls() int { return int(m.calls.Load()) }

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
