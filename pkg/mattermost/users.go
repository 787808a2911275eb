package mattermost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mmbridge/mattermost-mcp/pkg/pagination"
)

// Users fetches one page of users as the canonical envelope.
func (c *Client) Users(ctx context.Context, page, perPage int) (*UserList, error) {
	raw, err := c.api.Get(ctx, "/users", pageQuery(page, perPage))
	if err != nil {
		return nil, err
	}
	return NormalizeUsers(raw)
}

// User fetches a single user by id.
func (c *Client) User(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	return c.getUser(ctx, "/users/"+userID)
}

// Me fetches the user the token authenticates as.
func (c *Client) Me(ctx context.Context) (*User, error) {
	return c.getUser(ctx, "/users/me")
}

func (c *Client) getUser(ctx context.Context, path string) (*User, error) {
	raw, err := c.api.Get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}

// AllUsers merges every user page into one aggregate. maxItems caps the
// result; nil means unbounded.
func (c *Client) AllUsers(ctx context.Context, maxItems *int) (pagination.Result[User], error) {
	fetch := func(ctx context.Context, page, perPage int) (pagination.Page[User], error) {
		list, err := c.Users(ctx, page, perPage)
		if err != nil {
			return pagination.Page[User]{}, err
		}
		return userPage(list), nil
	}
	return pagination.Collect(ctx, fetch, pagination.Options{
		MaxItems: maxItems,
		Resource: "users",
	})
}

func userPage(list *UserList) pagination.Page[User] {
	page := pagination.Page[User]{
		Order: make([]string, 0, len(list.Users)),
		Items: make(map[string]User, len(list.Users)),
	}
	for _, u := range list.Users {
		page.Order = append(page.Order, u.ID)
		page.Items[u.ID] = u
	}
	return page
}
