package execution

import (
	"database/sql"
	"testing"

	tempotest "github.com/teranos/tempo/internal/testing"
)

// createTestDB creates an in-memory test database.
func createTestDB(t *testing.T) *sql.DB {
	return tempotest.CreateTestDB(t)
}
