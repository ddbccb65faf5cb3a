// Package testdb builds small Chinook-shaped SQLite files for tests.
package testdb

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// TrackCount is the number of rows in the Track table, matching Chinook.
const TrackCount = 3503

// Artists are inserted in ArtistId order.
var Artists = []string{
	"AC/DC",
	"Accept",
	"Aerosmith",
	"Alanis Morissette",
	"Alice In Chains",
	"Antônio Carlos Jobim",
	"Apocalyptica",
	"Audioslave",
}

const schema = `
CREATE TABLE "Artist"
(
    "ArtistId" INTEGER NOT NULL,
    "Name" NVARCHAR(120),
    CONSTRAINT "PK_Artist" PRIMARY KEY ("ArtistId")
);
CREATE TABLE "Album"
(
    "AlbumId" INTEGER NOT NULL,
    "Title" NVARCHAR(160) NOT NULL,
    "ArtistId" INTEGER NOT NULL,
    CONSTRAINT "PK_Album" PRIMARY KEY ("AlbumId"),
    FOREIGN KEY ("ArtistId") REFERENCES "Artist" ("ArtistId")
);
CREATE TABLE "Track"
(
    "TrackId" INTEGER NOT NULL,
    "Name" NVARCHAR(200) NOT NULL,
    "AlbumId" INTEGER,
    "Milliseconds" INTEGER NOT NULL,
    CONSTRAINT "PK_Track" PRIMARY KEY ("TrackId"),
    FOREIGN KEY ("AlbumId") REFERENCES "Album" ("AlbumId")
);`

// Chinook writes a fresh database into a temp dir and returns its path.
func Chinook(t testing.TB) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "chinook.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	for i, name := range Artists {
		if _, err := tx.Exec(`INSERT INTO Artist (ArtistId, Name) VALUES (?, ?)`, i+1, name); err != nil {
			t.Fatalf("insert artist: %v", err)
		}
		if _, err := tx.Exec(`INSERT INTO Album (AlbumId, Title, ArtistId) VALUES (?, ?, ?)`, i+1, fmt.Sprintf("Album %d", i+1), i+1); err != nil {
			t.Fatalf("insert album: %v", err)
		}
	}
	stmt, err := tx.Prepare(`INSERT INTO Track (TrackId, Name, AlbumId, Milliseconds) VALUES (?, ?, ?, ?)`)
	if err != nil {
		t.Fatalf("prepare track insert: %v", err)
	}
	for i := 1; i <= TrackCount; i++ {
		if _, err := stmt.Exec(i, fmt.Sprintf("Track %d", i), (i%len(Artists))+1, 180000+i); err != nil {
			t.Fatalf("insert track: %v", err)
		}
	}
	if err := stmt.Close(); err != nil {
		t.Fatalf("close stmt: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return path
}

// URI returns the sqlite connection string for path.
func URI(path string) string {
	return "sqlite:///" + path
}

// Count opens path read-write and counts rows in table.
func Count(t testing.TB, path, table string) int {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, table)).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
