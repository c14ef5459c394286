package database

import "testing"

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantOK      bool
	}{
		{"001_journal.up.sql", "001", "journal", true},
		{"002_journal_indexes.up.sql", "002", "journal_indexes", true},
		{"001_journal.down.sql", "", "", false},
		{"001_journal.sql", "", "", false},
		{"journal.up.sql", "", "", false},
		{"001_.up.sql", "", "", false},
		{"README.md", "", "", false},
	}

	for _, tt := range tests {
		version, name, ok := parseMigrationFilename(tt.filename)
		if ok != tt.wantOK {
			t.Errorf("parseMigrationFilename(%q) ok = %t, want %t", tt.filename, ok, tt.wantOK)
			continue
		}
		if version != tt.wantVersion || name != tt.wantName {
			t.Errorf("parseMigrationFilename(%q) = (%q, %q), want (%q, %q)",
				tt.filename, version, name, tt.wantVersion, tt.wantName)
		}
	}
}
