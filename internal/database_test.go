package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/iksnae/convo-console/testutil"
)

func TestOpenDatabase(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) string
		wantErr bool
	}{
		{
			name: "new file in nested directory",
			setup: func(t *testing.T) string {
				return filepath.Join(testutil.CreateTempDir(t), "a", "b", "archive.db")
			},
		},
		{
			name: "in memory",
			setup: func(t *testing.T) string {
				return ":memory:"
			},
		},
		{
			name: "parent is a file",
			setup: func(t *testing.T) string {
				dir := testutil.CreateTempDir(t)
				blocker := testutil.WriteFile(t, dir, "blocker", []byte("x"))
				return filepath.Join(blocker, "archive.db")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.setup(t)
			db, err := OpenDatabase(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("OpenDatabase() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			defer db.Close()

			for _, table := range []string{"conversations", "messages", "images"} {
				if n := testutil.CountRows(t, db, table); n != 0 {
					t.Errorf("%s has %d rows, want 0", table, n)
				}
			}
			if path != ":memory:" {
				if _, err := os.Stat(path); err != nil {
					t.Errorf("archive file not created: %v", err)
				}
			}
		})
	}
}

func TestOpenDatabase_Reopen(t *testing.T) {
	path := filepath.Join(testutil.CreateTempDir(t), "archive.db")

	db, err := OpenDatabase(path)
	if err != nil {
		t.Fatalf("OpenDatabase() error = %v", err)
	}
	if _, err := db.Exec(`INSERT INTO conversations (id, archived_at) VALUES ('c1', '2024-01-01T00:00:00Z')`); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	db.Close()

	// the schema is applied again without touching existing rows
	db, err = OpenDatabase(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer db.Close()
	if n := testutil.CountRows(t, db, "conversations"); n != 1 {
		t.Errorf("conversations = %d, want 1", n)
	}
}

func TestOpenDatabase_ForeignKeys(t *testing.T) {
	db, err := OpenDatabase(":memory:")
	if err != nil {
		t.Fatalf("OpenDatabase() error = %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`INSERT INTO messages (conversation_id, id, seq, role) VALUES ('nope', 'm1', 0, 'user')`)
	if err == nil {
		t.Error("insert of a message without its conversation succeeded, want foreign key error")
	}
}
