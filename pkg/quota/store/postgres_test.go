//go:build integration

package store

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"resumetailor-hq/tailor/pkg/quota"
)

func TestPostgresStore_Contract(t *testing.T) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}

	n := 0
	runContract(t, func(t *testing.T) quota.Store {
		n++
		table := fmt.Sprintf("quota_test_%d", n)
		st, err := ConnectPostgres(context.Background(), dsn, WithTable(table))
		if err != nil {
			t.Fatalf("ConnectPostgres failed: %v", err)
		}
		t.Cleanup(func() {
			st.pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+strings.ToLower(table))
			st.Close()
		})
		return st
	})
}
