// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package discourse

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.astrophena.name/pumpkin/internal/request"
)

// Topic fetches topic details, including the ordered post ID stream the
// watch loop polls.
func (c *Client) Topic(ctx context.Context, topicID int64) (*TopicDetails, error) {
	var td TopicDetails
	if err := c.getJSON(ctx, fmt.Sprintf("/t/%d.json", topicID), &td); err != nil {
		return nil, err
	}
	return &td, nil
}

// TopicSnapshot returns the ordered post ID stream of a topic, oldest
// first. It is the poll source for topic watchers.
func (c *Client) TopicSnapshot(topicID int64) func(ctx context.Context) ([]int64, error) {
	return func(ctx context.Context) ([]int64, error) {
		td, err := c.Topic(ctx, topicID)
		if err != nil {
			return nil, err
		}
		return td.PostStream.Stream, nil
	}
}

// Actions fetches a user's action stream filtered by action types, newest
// first (as Discourse returns it).
func (c *Client) Actions(ctx context.Context, username string, filter ...int) ([]UserAction, error) {
	q := url.Values{}
	q.Set("username", username)
	if len(filter) > 0 {
		var types []string
		for _, f := range filter {
			types = append(types, strconv.Itoa(f))
		}
		q.Set("filter", strings.Join(types, ","))
	}

	var resp userActionsResponse
	if err := c.getJSON(ctx, "/user_actions.json?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.UserActions, nil
}

// ActionsSnapshot returns the post IDs of a user's filtered actions,
// oldest first, so the same differ works for mention watching as for
// topic watching.
func (c *Client) ActionsSnapshot(username string, filter ...int) func(ctx context.Context) ([]int64, error) {
	return func(ctx context.Context) ([]int64, error) {
		actions, err := c.Actions(ctx, username, filter...)
		if err != nil {
			return nil, err
		}
		ids := make([]int64, 0, len(actions))
		for i := len(actions) - 1; i >= 0; i-- {
			ids = append(ids, actions[i].PostID)
		}
		return ids, nil
	}
}

// Post fetches the raw content and metadata of a single post.
func (c *Client) Post(ctx context.Context, postID int64) (*PostDetails, error) {
	var pd PostDetails
	if err := c.getJSON(ctx, fmt.Sprintf("/posts/%d.json", postID), &pd); err != nil {
		return nil, err
	}
	return &pd, nil
}

// User fetches a user by username. It returns (nil, nil) if no such user
// exists.
func (c *Client) User(ctx context.Context, username string) (*User, error) {
	status, data, err := c.do(ctx, http.MethodGet, "/u/"+url.PathEscape(username)+".json", nil, "")
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, &request.StatusError{
			Method:     http.MethodGet,
			URL:        c.BaseURL + "/u/" + username + ".json",
			StatusCode: status,
			Body:       data,
		}
	}

	var resp userResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return resp.User, nil
}

// Reply posts a reply to a topic. replyTo is the post number to reply to;
// zero replies to the topic itself.
//
// Discourse rate-limits posting aggressively, so on HTTP 429 Reply sleeps
// briefly and retries for as long as the remote keeps saying no. Any other
// non-200 status fails with a [request.StatusError].
func (c *Client) Reply(ctx context.Context, body string, topicID, replyTo int64) error {
	form := url.Values{}
	form.Set("raw", body)
	form.Set("topic_id", strconv.FormatInt(topicID, 10))
	if replyTo > 0 {
		form.Set("reply_to_post_number", strconv.FormatInt(replyTo, 10))
	}
	encoded := form.Encode()

	delay := c.retryDelay
	if delay == 0 {
		delay = defaultRetryDelay
	}

	for {
		status, data, err := c.do(ctx, http.MethodPost, "/posts", strings.NewReader(encoded), "application/x-www-form-urlencoded")
		if err != nil {
			return err
		}
		switch status {
		case http.StatusOK:
			return nil
		case http.StatusTooManyRequests:
			c.Logger.Warn("reply rate-limited, retrying", "topic", topicID, "delay", delay)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		default:
			return &request.StatusError{
				Method:     http.MethodPost,
				URL:        c.BaseURL + "/posts",
				StatusCode: status,
				Body:       data,
			}
		}
	}
}

// UploadImage uploads JPEG bytes to the forum and returns the upload
// record. Uploads get a 10 second timeout on top of whatever deadline ctx
// already carries; hitting it surfaces as an ordinary request failure.
func (c *Client) UploadImage(ctx context.Context, img []byte) (*ImageUpload, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	sum := sha1.Sum(img)
	fields := map[string]string{
		"upload_type":   "composer",
		"relative_path": "null",
		"type":          "image/jpeg",
		"sha1sum":       hex.EncodeToString(sum[:]),
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	fw, err := mw.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(img); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	status, data, err := c.do(ctx, http.MethodPost, "/uploads.json", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &request.StatusError{
			Method:     http.MethodPost,
			URL:        c.BaseURL + "/uploads.json",
			StatusCode: status,
			Body:       data,
		}
	}

	var up ImageUpload
	if err := json.Unmarshal(data, &up); err != nil {
		return nil, err
	}
	return &up, nil
}
