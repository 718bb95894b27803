// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package discourse

// TopicDetails is the subset of GET /t/{id}.json this bot cares about.
type TopicDetails struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	PostStream struct {
		// Stream is the ordered sequence of post IDs in the topic, oldest
		// first. This is what the watch loop diffs between polls.
		Stream []int64 `json:"stream"`
	} `json:"post_stream"`
}

// PostDetails is the subset of GET /posts/{id}.json this bot cares about.
type PostDetails struct {
	ID         int64  `json:"id"`
	TopicID    int64  `json:"topic_id"`
	PostNumber int64  `json:"post_number"`
	Username   string `json:"username"`
	Name       string `json:"name"`
	Raw        string `json:"raw"`
}

// User is the subset of GET /u/{username}.json this bot cares about.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// DisplayName returns the user's full name, falling back to the username.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// UserAction is one entry of GET /user_actions.json.
type UserAction struct {
	PostID     int64  `json:"post_id"`
	TopicID    int64  `json:"topic_id"`
	PostNumber int64  `json:"post_number"`
	ActionType int    `json:"action_type"`
	Username   string `json:"username"`
	ActingName string `json:"acting_name"`
}

// ActionMention is the user_actions filter value for mentions.
const ActionMention = 7

// ImageUpload is the response of POST /uploads.json.
type ImageUpload struct {
	ID       int64  `json:"id"`
	URL      string `json:"url"`
	ShortURL string `json:"short_url"`
}

type userActionsResponse struct {
	UserActions []UserAction `json:"user_actions"`
}

type userResponse struct {
	User *User `json:"user"`
}
