// internal/db/test_helpers.go
package db

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

// SetupMockDB swaps the shared pool for a sqlmock connection for the duration
// of t and checks that every expectation was met.
func SetupMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	previous := DB
	DB = conn
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet sql expectations: %v", err)
		}
		conn.Close()
		DB = previous
	})
	return mock
}
