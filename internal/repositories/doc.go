// Package repositories implements the token store: persistence for users and their connection credentials.
//
// Two backends share one contract:
//   - [ConnectionRepository] and [UserRepository] : SQLite via database/sql, schema from the embedded migrations
//   - [PostgresStore] : PostgreSQL via pgx, for multi-instance deployments
//
// Missing rows surface as [shared.NotFoundError]. A user with no connections is not an error and yields an empty list.
package repositories
