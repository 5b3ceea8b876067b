package services

import (
	"context"
	"testing"

	"scoreauth/internal/store"
	"scoreauth/internal/testutil"
)

func TestBaseUsername(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		email     string
		want      string
	}{
		{"local_part", "", "jane.doe@example.com", "jane_doe"},
		{"candidate_wins", "octocat", "x@example.com", "octocat"},
		{"strips_edges", "", "-x-y-@example.com", "x_y"},
		{"short_padded", "", "a@example.com", "user_a"},
		{"empty_padded", "", "@example.com", "user"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := baseUsername(tt.candidate, tt.email); got != tt.want {
				t.Errorf("baseUsername(%q, %q) = %q, want %q", tt.candidate, tt.email, got, tt.want)
			}
		})
	}
}

func TestUniqueUsername(t *testing.T) {
	db := testutil.SetupTestDB(t)
	users := store.NewUserStore(db, 0)
	testutil.CreateTestUser(t, db, testutil.WithUsername("coach"))
	testutil.CreateTestUser(t, db, testutil.WithUsername("coach2"))

	got, err := uniqueUsername(context.Background(), users, "coach")
	testutil.AssertNoError(t, err)
	if got != "coach3" {
		t.Errorf("expected coach3, got %q", got)
	}

	got, err = uniqueUsername(context.Background(), users, "referee")
	testutil.AssertNoError(t, err)
	if got != "referee" {
		t.Errorf("expected referee, got %q", got)
	}
}
