// Package postgres implements the credential store and the activity log on
// PostgreSQL through database/sql and the pgx stdlib driver.
//
// Schema changes are goose migrations embedded from the migrations package
// and applied by [Migrate].
package postgres
