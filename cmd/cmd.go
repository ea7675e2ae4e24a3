// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "Local username that owns the connections",
		Sources: cli.EnvVars("LAZULI_USER"),
	}
}

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
			Value: true,
		},
	}
}

func withJSON(flags ...cli.Flag) []cli.Flag {
	return append(flags, jsonFlags()...)
}

// setupCommand initializes the config file and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file if missing and run database migrations",
		Action: r.Setup,
	}
}

// userCommand manages local users.
func userCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Manage local users",
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a local user",
				Arguments: []cli.Argument{&cli.StringArg{Name: "username"}},
				Action:    r.UserCreate,
			},
			{
				Name:      "token",
				Usage:     "Issue an API bearer token for a user",
				Arguments: []cli.Argument{&cli.StringArg{Name: "username"}},
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "Token lifetime",
						Value: 24 * time.Hour,
					},
				},
				Action: r.UserToken,
			},
		},
	}
}

// connectCommand adds connections to a user.
func connectCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Connect a music service account",
		Commands: []*cli.Command{
			{
				Name:  "jellyfin",
				Usage: "Log in to a Jellyfin server",
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{
						Name:     "url",
						Usage:    "Jellyfin server URL",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "username",
						Usage:    "Jellyfin username",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "password",
						Usage:   "Jellyfin password",
						Sources: cli.EnvVars("LAZULI_JELLYFIN_PASSWORD"),
					},
				},
				Action: r.ConnectJellyfin,
			},
			{
				Name:    "youtube",
				Aliases: []string{"yt", "ytmusic"},
				Usage:   "Authorize a YouTube Music account in the browser",
				Flags: []cli.Flag{
					userFlag(),
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser authorization",
						Value: 2 * time.Minute,
					},
				},
				Action: r.ConnectYouTube,
			},
		},
	}
}

// connectionsCommand inspects and removes connections.
func connectionsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "connections",
		Aliases: []string{"conn"},
		Usage:   "List, inspect and delete connections",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List a user's connections",
				Flags:  withJSON(userFlag()),
				Action: r.ConnectionsList,
			},
			{
				Name:      "info",
				Usage:     "Show connections by id",
				ArgsUsage: "ID...",
				Flags:     jsonFlags(),
				Action:    r.ConnectionsInfo,
			},
			{
				Name:      "delete",
				Usage:     "Delete a connection and its stored credentials",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.ConnectionsDelete,
			},
		},
	}
}

// searchCommand searches every connection of a user.
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search every connection of a user",
		Arguments: []cli.Argument{&cli.StringArg{Name: "query"}},
		Flags: withJSON(
			userFlag(),
			&cli.StringFlag{
				Name:    "filter",
				Aliases: []string{"f"},
				Usage:   "Only return songs, albums, artists or playlists",
			},
		),
		Action: r.Search,
	}
}

// libraryCommand lists a user's saved collection.
func libraryCommand(r *Runner) *cli.Command {
	kinds := []string{"albums", "artists", "playlists"}
	commands := make([]*cli.Command, 0, len(kinds))
	for _, kind := range kinds {
		commands = append(commands, &cli.Command{
			Name:   kind,
			Usage:  "List saved " + kind + " across every connection",
			Flags:  withJSON(userFlag()),
			Action: r.Library(kind),
		})
	}
	return &cli.Command{
		Name:     "library",
		Aliases:  []string{"lib"},
		Usage:    "List a user's saved collection",
		Commands: commands,
	}
}

// recommendationsCommand lists recommendations.
func recommendationsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "recommendations",
		Aliases: []string{"recs"},
		Usage:   "List recommendations from every connection of a user",
		Flags:   withJSON(userFlag()),
		Action:  r.Recommendations,
	}
}

func connectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "connection",
			Aliases:  []string{"c"},
			Usage:    "Connection id",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "id",
			Usage:    "Item id on the connection's service",
			Required: true,
		},
	}
}

// albumCommand shows an album with its songs.
func albumCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "album",
		Usage:  "Show an album and its songs",
		Flags:  withJSON(connectionFlags()...),
		Action: r.Album,
	}
}

// playlistCommand shows or exports one playlist.
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlist",
		Usage: "Show a playlist and its songs",
		Flags: withJSON(append(connectionFlags(),
			&cli.StringFlag{
				Name:  "format",
				Usage: "Write the playlist as csv, md or txt instead of rendering it",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path (csv writes {output}_tracks.csv and {output}_metadata.json, md writes a directory)",
			},
		)...),
		Action: r.Playlist,
	}
}

// exportCommand exports many playlists of one connection.
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export playlists of a connection to files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "connection",
				Aliases:  []string{"c"},
				Usage:    "Connection id",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:  "id",
				Usage: "Playlist id to export (repeatable; default: every library playlist)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "json, csv, markdown or txt",
				Value:   "json",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output directory (default: lazuli_export_{epoch})",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent file writers",
				Value: 5,
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Playlist fetches per second",
				Value: 5,
			},
		},
		Action: r.Export,
	}
}

// serveCommand runs the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the music library API over HTTP",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "port",
				Usage: "Override the configured port",
			},
		},
		Action: r.Serve,
	}
}
