package mattermost

import (
	"context"
	"fmt"
	"net/http"
	"testing"
)

func genUsers(prefix string, n int) []User {
	users := make([]User, n)
	for i := range users {
		users[i] = User{
			ID:       fmt.Sprintf("%s-%03d", prefix, i),
			Username: fmt.Sprintf("user-%s-%d", prefix, i),
			CreateAt: 1700000000000,
		}
	}
	return users
}

func TestUsers_BareArray(t *testing.T) {
	var gotPath string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write(mustMarshal(t, genUsers("u", 4)))
	})

	mm := testClient(t, handler)
	list, err := mm.Users(context.Background(), 0, 200)
	if err != nil {
		t.Fatalf("Users() error = %v", err)
	}

	if gotPath != "/api/v4/users" {
		t.Errorf("path = %q, want /api/v4/users", gotPath)
	}
	if len(list.Users) != 4 {
		t.Errorf("len(Users) = %d, want 4", len(list.Users))
	}
	if list.TotalCount != 4 {
		t.Errorf("TotalCount = %d, want 4", list.TotalCount)
	}
}

func TestUsers_Envelope(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"users":[{"id":"u1","username":"alice"}],"total_count":812}`)
	})

	mm := testClient(t, handler)
	list, err := mm.Users(context.Background(), 0, 200)
	if err != nil {
		t.Fatalf("Users() error = %v", err)
	}

	if len(list.Users) != 1 || list.Users[0].Username != "alice" {
		t.Errorf("Users = %+v", list.Users)
	}
	if list.TotalCount != 812 {
		t.Errorf("TotalCount = %d, want 812", list.TotalCount)
	}
}

func TestUser(t *testing.T) {
	var gotPath string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"id":"u1","username":"alice","email":"alice@example.com","is_bot":false}`)
	})

	mm := testClient(t, handler)
	user, err := mm.User(context.Background(), "u1")
	if err != nil {
		t.Fatalf("User() error = %v", err)
	}

	if gotPath != "/api/v4/users/u1" {
		t.Errorf("path = %q, want /api/v4/users/u1", gotPath)
	}
	if user.Username != "alice" || user.Email != "alice@example.com" {
		t.Errorf("user = %+v", user)
	}
}

func TestUser_EmptyID(t *testing.T) {
	requests := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	})

	mm := testClient(t, handler)
	_, err := mm.User(context.Background(), "")
	if err == nil || err.Error() != "user id is required" {
		t.Fatalf("error = %v, want user id is required", err)
	}
	if requests != 0 {
		t.Errorf("requests = %d, want 0", requests)
	}
}

func TestMe(t *testing.T) {
	var gotPath string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"id":"me1","username":"bridge-bot","is_bot":true}`)
	})

	mm := testClient(t, handler)
	me, err := mm.Me(context.Background())
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}

	if gotPath != "/api/v4/users/me" {
		t.Errorf("path = %q, want /api/v4/users/me", gotPath)
	}
	if me.ID != "me1" || !me.IsBot {
		t.Errorf("me = %+v", me)
	}
}

func TestAllUsers(t *testing.T) {
	requests := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		switch r.URL.Query().Get("page") {
		case "0":
			fmt.Fprintf(w, `{"users":%s,"total_count":201}`, mustMarshal(t, genUsers("p0", 200)))
		default:
			fmt.Fprintf(w, `{"users":%s,"total_count":201}`, mustMarshal(t, genUsers("p1", 1)))
		}
	})

	mm := testClient(t, handler)
	result, err := mm.AllUsers(context.Background(), nil)
	if err != nil {
		t.Fatalf("AllUsers() error = %v", err)
	}

	if requests != 2 {
		t.Errorf("requests = %d, want 2", requests)
	}
	if len(result.Order) != 201 {
		t.Errorf("len(Order) = %d, want 201", len(result.Order))
	}
	if result.Order[200] != "p1-000" {
		t.Errorf("Order[200] = %q, want p1-000", result.Order[200])
	}
}
