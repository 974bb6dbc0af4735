package spotify

// BuddyList is the presence feed response.
type BuddyList struct {
	Friends []Friend `json:"friends"`
}

// Friend is one entry of the presence feed: what a friend is playing and since when.
type Friend struct {
	Timestamp int64       `json:"timestamp"` // Unix milliseconds the track started
	User      FriendUser  `json:"user"`
	Track     FriendTrack `json:"track"`
}

// FriendUser identifies the friend.
type FriendUser struct {
	URI      string `json:"uri"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// FriendTrack is the track a friend is playing.
type FriendTrack struct {
	URI     string    `json:"uri"`
	Name    string    `json:"name"`
	Artist  NamedURI  `json:"artist"`
	Album   NamedURI  `json:"album"`
	Context *NamedURI `json:"context,omitempty"`
}

// NamedURI is a presence-feed reference with a display name.
type NamedURI struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// Track is the subset of the Web API track object used here.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	URI        string   `json:"uri"`
	DurationMS int64    `json:"duration_ms"`
	Artists    []Artist `json:"artists"`
}

// Artist is a simplified artist object.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// User is the current user's profile.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Product     string `json:"product"` // premium, free, etc.
	URI         string `json:"uri"`
}

// PlayRequest is the body of PUT /me/player/play.
type PlayRequest struct {
	URIs       []string `json:"uris"`
	PositionMS int64    `json:"position_ms"`
}
