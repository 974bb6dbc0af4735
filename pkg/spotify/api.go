package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// FriendActivity fetches the presence feed: what each friend is playing.
// It makes a single attempt; retrying is left to the poller's caller.
func (c *Client) FriendActivity(ctx context.Context) ([]Friend, error) {
	var list BuddyList
	if err := c.callOnce(ctx, http.MethodGet, c.presenceURL, nil, &list); err != nil {
		return nil, err
	}
	return list.Friends, nil
}

// Me retrieves the current user's profile.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.call(ctx, http.MethodGet, c.apiBaseURL+"/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Track retrieves a single track by URI or ID.
func (c *Client) Track(ctx context.Context, uriOrID string) (*Track, error) {
	id := uriOrID
	if strings.Contains(uriOrID, ":") {
		var err error
		if id, err = TrackID(uriOrID); err != nil {
			return nil, err
		}
	}

	var track Track
	endpoint := fmt.Sprintf("%s/tracks/%s", c.apiBaseURL, url.PathEscape(id))
	if err := c.call(ctx, http.MethodGet, endpoint, nil, &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// StartPlayback starts trackURI at positionMS on deviceID, or on the active
// device when deviceID is empty.
func (c *Client) StartPlayback(ctx context.Context, deviceID, trackURI string, positionMS int64) error {
	endpoint := c.apiBaseURL + "/me/player/play"
	if deviceID != "" {
		endpoint += "?" + url.Values{"device_id": {deviceID}}.Encode()
	}

	body := PlayRequest{
		URIs:       []string{trackURI},
		PositionMS: positionMS,
	}
	return c.call(ctx, http.MethodPut, endpoint, body, nil)
}
