package mattermost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Reactions lists the reactions on a post. A post with none yields an empty
// slice (the upstream answers null).
func (c *Client) Reactions(ctx context.Context, postID string) ([]Reaction, error) {
	if postID == "" {
		return nil, errors.New("post id is required")
	}
	raw, err := c.api.Get(ctx, "/posts/"+postID+"/reactions", nil)
	if err != nil {
		return nil, err
	}
	var reactions []Reaction
	if err := json.Unmarshal(raw, &reactions); err != nil {
		return nil, fmt.Errorf("decode reactions: %w", err)
	}
	return reactions, nil
}

// AddReaction reacts to a post with the named emoji on behalf of the user.
func (c *Client) AddReaction(ctx context.Context, userID, postID, emojiName string) (*Reaction, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}
	if postID == "" {
		return nil, errors.New("post id is required")
	}
	if emojiName == "" {
		return nil, errors.New("emoji name is required")
	}
	raw, err := c.api.Post(ctx, "/reactions", Reaction{
		UserID:    userID,
		PostID:    postID,
		EmojiName: emojiName,
	})
	if err != nil {
		return nil, err
	}
	var reaction Reaction
	if err := json.Unmarshal(raw, &reaction); err != nil {
		return nil, fmt.Errorf("decode reaction: %w", err)
	}
	return &reaction, nil
}
