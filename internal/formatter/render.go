package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/eclypsed/lazuli/internal/models"
	"github.com/eclypsed/lazuli/internal/shared"
)

// Palette is a small stylesheet built with named [lipgloss.Style] fields.
type Palette struct {
	title lipgloss.Style
	kind  lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	muted lipgloss.Style
}

// NewPalette builds a palette from foreground colors for titles, kind tags, success, errors and secondary text.
func NewPalette(t, k, s, e, m string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		kind:  NewBold(k),
		ok:    NewBold(s),
		err:   NewBold(e),
		muted: NewEm(m),
	}
}

// DefaultPalette is used by the CLI.
func DefaultPalette() *Palette {
	return NewPalette("#7D56F4", "#2E86DE", "#04B575", "#FF0000", "#626262")
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// Title renders a heading.
func (p *Palette) Title(s string) string { return p.title.Render(s) }

// OK renders a success line.
func (p *Palette) OK(s string) string { return p.ok.Render(s) }

// Error renders a failure line.
func (p *Palette) Error(s string) string { return p.err.Render(s) }

// Line renders one entity as a single line: kind tag, name, credit and duration.
func (p *Palette) Line(item models.MediaItem) string {
	base := item.Base()
	parts := []string{p.kind.Render(fmt.Sprintf("%-8s", base.Kind)), base.Name}

	var credit string
	switch v := item.(type) {
	case models.Song:
		credit = Credit(v)
	case models.Album:
		credit = AlbumCredit(v.Artists)
	case models.Playlist:
		if v.CreatedBy != nil {
			credit = v.CreatedBy.Name
		}
	}
	if credit != "" {
		parts = append(parts, p.muted.Render("by "+credit))
	}
	if base.Duration > 0 {
		parts = append(parts, p.muted.Render("["+shared.FormatDuration(base.Duration)+"]"))
	}
	parts = append(parts, p.muted.Render(base.ID))
	return strings.Join(parts, " ")
}

// RenderItems writes one line per entity.
func (p *Palette) RenderItems(w io.Writer, items []models.MediaItem) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, p.muted.Render("no results"))
		return err
	}
	for _, item := range items {
		if _, err := fmt.Fprintln(w, p.Line(item)); err != nil {
			return err
		}
	}
	return nil
}

// RenderSongs writes a numbered track listing.
func (p *Palette) RenderSongs(w io.Writer, songs []models.Song) error {
	for i, song := range songs {
		if _, err := fmt.Fprintf(w, "%3d. %s\n", i+1, p.Line(song)); err != nil {
			return err
		}
	}
	return nil
}

// RenderAlbum writes the album header followed by its songs.
func (p *Palette) RenderAlbum(w io.Writer, album *models.Album) error {
	header := album.Name
	if credit := AlbumCredit(album.Artists); credit != "" {
		header += " - " + credit
	}
	if _, err := fmt.Fprintln(w, p.Title(header)); err != nil {
		return err
	}
	if album.ReleaseDate != "" {
		fmt.Fprintln(w, p.muted.Render("Released "+album.ReleaseDate))
	}
	return p.RenderSongs(w, album.Songs)
}

// RenderPlaylist writes the playlist header followed by its songs.
func (p *Palette) RenderPlaylist(w io.Writer, pl *models.Playlist) error {
	if _, err := fmt.Fprintln(w, p.Title(pl.Name)); err != nil {
		return err
	}
	if pl.CreatedBy != nil {
		fmt.Fprintln(w, p.muted.Render("Created by "+pl.CreatedBy.Name))
	}
	if pl.Description != "" {
		fmt.Fprintln(w, pl.Description)
	}
	return p.RenderSongs(w, pl.Songs)
}

// RenderConnections writes one line per connection identity.
func (p *Palette) RenderConnections(w io.Writer, infos []models.ConnectionInfo) error {
	for _, info := range infos {
		name := info.Username
		if name == "" {
			name = "(unknown user)"
		}
		line := fmt.Sprintf("%s %s %s", p.kind.Render(fmt.Sprintf("%-13s", info.ServiceType)), p.ok.Render(name), p.muted.Render(info.ConnectionID))
		if info.ServerName != "" {
			line += " " + p.muted.Render("@ "+info.ServerName)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
