package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/eclypsed/lazuli/internal/formatter"
	"github.com/eclypsed/lazuli/internal/models"
	"github.com/eclypsed/lazuli/internal/shared"
)

// ConnectionsList shows every connection of a user.
func (r *Runner) ConnectionsList(ctx context.Context, cmd *cli.Command) error {
	store, conns, release, err := r.session(ctx)
	if err != nil {
		return err
	}
	defer release()

	user, err := r.resolveUser(ctx, store, cmd)
	if err != nil {
		return err
	}

	progress := r.progress()
	infos, err := r.aggregator(conns).UserConnectionInfos(ctx, progress, user.ID)
	close(progress)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(infos, cmd.Bool("pretty"))
	}
	return r.palette.RenderConnections(r.output, infos)
}

// ConnectionsInfo shows connections by id.
func (r *Runner) ConnectionsInfo(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		return fmt.Errorf("%w: connection id", shared.ErrMissingArgument)
	}

	_, conns, release, err := r.session(ctx)
	if err != nil {
		return err
	}
	defer release()

	infos, err := r.aggregator(conns).ConnectionInfos(ctx, nil, ids)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(infos, cmd.Bool("pretty"))
	}
	return r.palette.RenderConnections(r.output, infos)
}

// ConnectionsDelete removes a connection.
func (r *Runner) ConnectionsDelete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: connection id", shared.ErrMissingArgument)
	}

	_, conns, release, err := r.session(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := conns.Delete(ctx, id); err != nil {
		return err
	}
	r.logger.Info("connection deleted", "connection", id)
	return r.writePlain("%s Deleted connection %s\n", r.palette.OK("✓"), id)
}

// Search runs a search across every connection of a user.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	filter, err := models.ParseKind(cmd.String("filter"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	store, conns, release, err := r.session(ctx)
	if err != nil {
		return err
	}
	defer release()

	user, err := r.resolveUser(ctx, store, cmd)
	if err != nil {
		return err
	}

	query := cmd.StringArg("query")
	r.logger.Debug("searching", "query", query, "filter", filter, "user", user.Username)

	progress := r.progress()
	results, err := r.aggregator(conns).Search(ctx, progress, user.ID, query, filter)
	close(progress)
	if err != nil {
		return err
	}

	return r.writeItems(cmd, results)
}

// Library returns the action listing one saved collection kind.
func (r *Runner) Library(kind string) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		k, err := models.ParseKind(kind)
		if err != nil {
			return err
		}

		store, conns, release, err := r.session(ctx)
		if err != nil {
			return err
		}
		defer release()

		user, err := r.resolveUser(ctx, store, cmd)
		if err != nil {
			return err
		}

		progress := r.progress()
		items, err := r.aggregator(conns).Library(ctx, progress, user.ID, k)
		close(progress)
		if err != nil {
			return err
		}

		return r.writeItems(cmd, items)
	}
}

// Recommendations lists recommendations across every connection of a user.
func (r *Runner) Recommendations(ctx context.Context, cmd *cli.Command) error {
	store, conns, release, err := r.session(ctx)
	if err != nil {
		return err
	}
	defer release()

	user, err := r.resolveUser(ctx, store, cmd)
	if err != nil {
		return err
	}

	progress := r.progress()
	items, err := r.aggregator(conns).Recommendations(ctx, progress, user.ID)
	close(progress)
	if err != nil {
		return err
	}

	return r.writeItems(cmd, items)
}

// Album shows an album together with its songs.
func (r *Runner) Album(ctx context.Context, cmd *cli.Command) error {
	_, conns, release, err := r.session(ctx)
	if err != nil {
		return err
	}
	defer release()

	conn, err := conns.Get(ctx, cmd.String("connection"))
	if err != nil {
		return err
	}

	id := cmd.String("id")
	album, err := conn.GetAlbum(ctx, id)
	if err != nil {
		return err
	}
	songs, err := conn.GetAlbumItems(ctx, id)
	if err != nil {
		return err
	}
	album.Songs = songs

	if cmd.Bool("json") {
		return r.writeJSON(album, cmd.Bool("pretty"))
	}
	return r.palette.RenderAlbum(r.output, album)
}

// Playlist shows a playlist with all of its songs, or writes it to a file with --format.
func (r *Runner) Playlist(ctx context.Context, cmd *cli.Command) error {
	_, conns, release, err := r.session(ctx)
	if err != nil {
		return err
	}
	defer release()

	conn, err := conns.Get(ctx, cmd.String("connection"))
	if err != nil {
		return err
	}

	id := cmd.String("id")
	playlist, err := conn.GetPlaylist(ctx, id)
	if err != nil {
		return err
	}
	songs, err := conn.GetPlaylistItems(ctx, id, models.Window{})
	if err != nil {
		return err
	}
	playlist.Songs = songs

	if format := cmd.String("format"); format != "" {
		return r.writePlaylistFile(ctx, playlist, format, cmd.String("output"))
	}
	if cmd.Bool("json") {
		return r.writeJSON(playlist, cmd.Bool("pretty"))
	}
	return r.palette.RenderPlaylist(r.output, playlist)
}

// writePlaylistFile writes pl in format to output, or prints it when output is empty.
func (r *Runner) writePlaylistFile(ctx context.Context, pl *models.Playlist, format, output string) error {
	if output == "" {
		var data []byte
		var err error
		switch format {
		case "csv":
			data, err = formatter.ExportToCSV(pl)
		case "md", "markdown":
			data, err = formatter.ExportToMarkdown(pl, "")
		case "txt", "text":
			data, err = formatter.ExportToText(pl)
		default:
			return fmt.Errorf("%w: unsupported format %q (csv, md, txt)", shared.ErrInvalidArgument, format)
		}
		if err != nil {
			return err
		}
		_, err = r.output.Write(data)
		return err
	}

	var files []string
	switch format {
	case "csv":
		res, err := formatter.WriteCSVExport(pl, output)
		if err != nil {
			return err
		}
		files = []string{res.TracksFile, res.MetadataFile}
	case "md", "markdown":
		res, err := formatter.WriteMarkdownExport(ctx, r.httpClient, pl, output)
		if err != nil {
			return err
		}
		files = res.Files
	case "txt", "text":
		path, err := formatter.WriteTextExport(pl, output)
		if err != nil {
			return err
		}
		files = []string{path}
	default:
		return fmt.Errorf("%w: unsupported format %q (csv, md, txt)", shared.ErrInvalidArgument, format)
	}

	for _, f := range files {
		r.writePlain("%s Wrote %s\n", r.palette.OK("✓"), f)
	}
	return nil
}

func (r *Runner) writeItems(cmd *cli.Command, items []models.MediaItem) error {
	if cmd.Bool("json") {
		return r.writeJSON(items, cmd.Bool("pretty"))
	}
	return r.palette.RenderItems(r.output, items)
}
