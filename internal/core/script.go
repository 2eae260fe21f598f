package core

import (
	"strings"
	"time"
)

// DefaultPreviewLimit is how many statements a result page shows.
const DefaultPreviewLimit = 50

// Script is the ordered output of one generation run.
type Script struct {
	TableName  string
	Mode       Mode
	Statements []string
}

// Count returns the total number of statements, including transaction
// markers in guarded mode.
func (s *Script) Count() int { return len(s.Statements) }

// Preview returns at most n leading statements. n <= 0 returns all of them.
func (s *Script) Preview(n int) []string {
	if n <= 0 || n >= len(s.Statements) {
		return s.Statements
	}
	return s.Statements[:n]
}

// Text joins the statements with newlines into the stored artifact body.
func (s *Script) Text() string {
	return strings.Join(s.Statements, "\n")
}

// DefaultArtifactName returns the file name used for a table's script.
func DefaultArtifactName(tableName string) string {
	return tableName + "_inserts.sql"
}

// Artifact describes a persisted script.
type Artifact struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	TableName  string    `json:"table_name"`
	Mode       Mode      `json:"mode"`
	Statements int       `json:"statements"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
}
