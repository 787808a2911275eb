package mattermost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mmbridge/mattermost-mcp/pkg/pagination"
)

// Channels fetches one page of channels as the canonical envelope.
func (c *Client) Channels(ctx context.Context, page, perPage int) (*ChannelList, error) {
	raw, err := c.api.Get(ctx, "/channels", pageQuery(page, perPage))
	if err != nil {
		return nil, err
	}
	return NormalizeChannels(raw)
}

// Channel fetches a single channel by id.
func (c *Client) Channel(ctx context.Context, channelID string) (*Channel, error) {
	if channelID == "" {
		return nil, errors.New("channel id is required")
	}
	raw, err := c.api.Get(ctx, "/channels/"+channelID, nil)
	if err != nil {
		return nil, err
	}
	var channel Channel
	if err := json.Unmarshal(raw, &channel); err != nil {
		return nil, fmt.Errorf("decode channel: %w", err)
	}
	return &channel, nil
}

// AllChannels merges every channel page into one aggregate. maxItems caps
// the result; nil means unbounded.
func (c *Client) AllChannels(ctx context.Context, maxItems *int) (pagination.Result[Channel], error) {
	fetch := func(ctx context.Context, page, perPage int) (pagination.Page[Channel], error) {
		list, err := c.Channels(ctx, page, perPage)
		if err != nil {
			return pagination.Page[Channel]{}, err
		}
		return channelPage(list), nil
	}
	return pagination.Collect(ctx, fetch, pagination.Options{
		MaxItems: maxItems,
		Resource: "channels",
	})
}

// channelPage keys a normalized envelope by entity id for the aggregator.
func channelPage(list *ChannelList) pagination.Page[Channel] {
	page := pagination.Page[Channel]{
		Order: make([]string, 0, len(list.Channels)),
		Items: make(map[string]Channel, len(list.Channels)),
	}
	for _, ch := range list.Channels {
		page.Order = append(page.Order, ch.ID)
		page.Items[ch.ID] = ch
	}
	return page
}
