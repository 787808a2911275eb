package mattermost

import (
	"strings"
	"testing"

	"github.com/mmbridge/mattermost-mcp/pkg/pagination"
)

func TestFormatTime(t *testing.T) {
	tests := []struct {
		name string
		ms   int64
		want string
	}{
		{"zero renders empty", 0, ""},
		{"negative renders empty", -5, ""},
		{"epoch milliseconds", 1700000000000, "2023-11-14T22:13:20Z"},
		{"with sub-second remainder", 1700000000999, "2023-11-14T22:13:20Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatTime(tt.ms); got != tt.want {
				t.Errorf("FormatTime(%d) = %q, want %q", tt.ms, got, tt.want)
			}
		})
	}
}

func TestFormatChannel(t *testing.T) {
	summary := FormatChannel(Channel{
		ID:            "c1",
		Name:          "town-square",
		DisplayName:   "Town Square",
		Type:          "O",
		Purpose:       "General chatter",
		CreateAt:      1700000000000,
		DeleteAt:      1700000001000,
		LastPostAt:    1700000002000,
		TotalMsgCount: 412,
	})

	if summary.ID != "c1" || summary.Name != "town-square" {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Created != "2023-11-14T22:13:20Z" {
		t.Errorf("Created = %q", summary.Created)
	}
	if summary.LastPostAt != "2023-11-14T22:13:22Z" {
		t.Errorf("LastPostAt = %q", summary.LastPostAt)
	}
	if !summary.Archived {
		t.Error("Archived = false, want true for deleted channel")
	}
	if summary.TotalMsgCount != 412 {
		t.Errorf("TotalMsgCount = %d, want 412", summary.TotalMsgCount)
	}
}

func TestFormatUser(t *testing.T) {
	summary := FormatUser(User{
		ID:       "u1",
		Username: "alice",
		Email:    "alice@example.com",
		IsBot:    false,
		CreateAt: 1700000000000,
	})

	if summary.Username != "alice" || summary.Email != "alice@example.com" {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Deleted {
		t.Error("Deleted = true, want false")
	}

	deleted := FormatUser(User{ID: "u2", DeleteAt: 1})
	if !deleted.Deleted {
		t.Error("Deleted = false, want true")
	}
}

func TestFormatChannelAggregate(t *testing.T) {
	result := pagination.Result[Channel]{
		Order: []string{"c2", "c1"},
		Items: map[string]Channel{
			"c1": {ID: "c1", Name: "one"},
			"c2": {ID: "c2", Name: "two"},
		},
	}

	summaries := FormatChannelAggregate(result)
	if len(summaries) != 2 {
		t.Fatalf("len = %d, want 2", len(summaries))
	}
	// Merged order wins over map order
	if summaries[0].ID != "c2" || summaries[1].ID != "c1" {
		t.Errorf("order = %q, %q, want c2, c1", summaries[0].ID, summaries[1].ID)
	}
}

func TestFormatUserAggregate(t *testing.T) {
	result := pagination.Result[User]{
		Order: []string{"u1", "u3"},
		Items: map[string]User{
			"u1": {ID: "u1", Username: "alice"},
			"u3": {ID: "u3", Username: "carol"},
		},
	}

	summaries := FormatUserAggregate(result)
	if len(summaries) != 2 {
		t.Fatalf("len = %d, want 2", len(summaries))
	}
	if summaries[1].Username != "carol" {
		t.Errorf("summaries[1] = %+v", summaries[1])
	}
}

func TestFormatPostPage(t *testing.T) {
	page := pagination.Page[Post]{
		Order: []string{"p2", "p1"},
		Items: map[string]Post{
			"p1": {ID: "p1", UserID: "u1", Message: "older", CreateAt: 1700000000000},
			"p2": {ID: "p2", UserID: "u2", Message: "newer", CreateAt: 1700000001000},
		},
		Next: "p3",
		Prev: "",
	}
	filter := PostFilter{Since: 1700000000000, Before: "b1"}

	view := FormatPostPage(page, filter)

	if view.Count != 2 {
		t.Errorf("Count = %d, want 2", view.Count)
	}
	// Views join each ordered id with its body, in order
	if view.Posts[0].ID != "p2" || view.Posts[0].Message != "newer" {
		t.Errorf("Posts[0] = %+v", view.Posts[0])
	}
	if view.Posts[1].ID != "p1" || view.Posts[1].Message != "older" {
		t.Errorf("Posts[1] = %+v", view.Posts[1])
	}

	if view.HasNext == nil || !*view.HasNext {
		t.Error("HasNext = nil/false, want true")
	}
	if view.HasPrev == nil || *view.HasPrev {
		t.Error("HasPrev = nil/true, want false")
	}

	if view.Filters == nil {
		t.Fatal("Filters = nil, want echo")
	}
	if view.Filters.Since != "2023-11-14T22:13:20Z" {
		t.Errorf("Filters.Since = %q", view.Filters.Since)
	}
	if view.Filters.Before != "b1" || view.Filters.After != "" {
		t.Errorf("Filters = %+v", view.Filters)
	}
}

func TestFormatPostAggregate(t *testing.T) {
	result := pagination.Result[Post]{
		Order: []string{"p1"},
		Items: map[string]Post{
			"p1": {ID: "p1", Message: "only", CreateAt: 1700000000000},
		},
	}

	view := FormatPostAggregate(result, PostFilter{})

	if view.Count != 1 {
		t.Errorf("Count = %d, want 1", view.Count)
	}
	// Aggregates consume cursors internally and report none
	if view.HasNext != nil || view.HasPrev != nil {
		t.Errorf("cursors = %v/%v, want nil/nil", view.HasNext, view.HasPrev)
	}
	if view.Filters != nil {
		t.Errorf("Filters = %+v, want nil for empty filter", view.Filters)
	}
}

func TestFormatPostAggregate_UnreferencedItems(t *testing.T) {
	// Thread roots ride along in the item map without an order entry;
	// the rendered views follow the order alone
	result := pagination.Result[Post]{
		Order: []string{"reply-1"},
		Items: map[string]Post{
			"reply-1": {ID: "reply-1", Message: "reply"},
			"root-1":  {ID: "root-1", Message: "root"},
		},
	}

	view := FormatPostAggregate(result, PostFilter{})
	if view.Count != 1 {
		t.Errorf("Count = %d, want 1", view.Count)
	}
	if view.Posts[0].ID != "reply-1" {
		t.Errorf("Posts[0] = %+v", view.Posts[0])
	}
}

func TestPostPage_JSONShape(t *testing.T) {
	aggregate := FormatPostAggregate(pagination.Result[Post]{
		Order: []string{"p1"},
		Items: map[string]Post{"p1": {ID: "p1", Message: "m"}},
	}, PostFilter{})

	data := mustMarshal(t, aggregate)
	// Aggregate mode must not advertise pagination cursors at all
	if strings.Contains(string(data), "has_next") || strings.Contains(string(data), "has_prev") {
		t.Errorf("aggregate JSON carries cursor fields: %s", data)
	}

	single := FormatPostPage(pagination.Page[Post]{
		Order: []string{"p1"},
		Items: map[string]Post{"p1": {ID: "p1", Message: "m"}},
	}, PostFilter{})

	data = mustMarshal(t, single)
	if !strings.Contains(string(data), `"has_next":false`) {
		t.Errorf("single-page JSON missing has_next: %s", data)
	}
	if !strings.Contains(string(data), `"has_prev":false`) {
		t.Errorf("single-page JSON missing has_prev: %s", data)
	}
}

func TestFormatPosts(t *testing.T) {
	views := FormatPosts([]Post{
		{ID: "p1", Message: "first", CreateAt: 1700000000000},
		{ID: "p2", Message: "second", RootID: "p1", DeleteAt: 1},
	})

	if len(views) != 2 {
		t.Fatalf("len = %d, want 2", len(views))
	}
	if views[0].Created != "2023-11-14T22:13:20Z" {
		t.Errorf("views[0].Created = %q", views[0].Created)
	}
	if views[1].RootID != "p1" || !views[1].Deleted {
		t.Errorf("views[1] = %+v", views[1])
	}
}

func TestFormatReactions(t *testing.T) {
	views := FormatReactions([]Reaction{
		{UserID: "u1", PostID: "p1", EmojiName: "+1", CreateAt: 1700000000000},
		{UserID: "u2", PostID: "p1", EmojiName: "tada"},
	})

	if len(views) != 2 {
		t.Fatalf("len = %d, want 2", len(views))
	}
	if views[0].EmojiName != "+1" || views[0].Created != "2023-11-14T22:13:20Z" {
		t.Errorf("views[0] = %+v", views[0])
	}
	if views[1].Created != "" {
		t.Errorf("views[1].Created = %q, want empty", views[1].Created)
	}
}
