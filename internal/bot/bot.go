// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package bot contains the post handlers and scheduled jobs of the pumpkin
// bot.
//
// Each bot is a [Responder] that inspects one post and either produces a
// reply body or stays silent. [Handler] glues responders into the watch
// loop: it fetches the post, skips the bot's own replies, tries each
// responder in order and posts the first non-empty reply, tagged so it can
// be recognized later.
package bot

import (
	"context"
	"log/slog"

	"go.astrophena.name/pumpkin/internal/discourse"
	"go.astrophena.name/pumpkin/internal/replytag"
	"go.astrophena.name/pumpkin/internal/watch"
)

// Forum is the subset of [discourse.Client] the bots need.
type Forum interface {
	Post(ctx context.Context, postID int64) (*discourse.PostDetails, error)
	User(ctx context.Context, username string) (*discourse.User, error)
	Reply(ctx context.Context, body string, topicID, replyTo int64) error
	UploadImage(ctx context.Context, img []byte) (*discourse.ImageUpload, error)
}

// Responder inspects one post and returns a reply body, or "" to stay
// silent.
type Responder interface {
	Respond(ctx context.Context, post *discourse.PostDetails) (string, error)
}

// errorReply is posted (best-effort, once) when a responder fails.
const errorReply = "抱歉，南瓜遇到了一个错误，暂时无法处理您的请求，请稍后再试。"

// Handler builds a watch handler that runs responders against every new
// post. Responders are tried in order; the first non-empty reply wins.
func Handler(f Forum, l *slog.Logger, responders ...Responder) watch.HandlerFunc {
	return func(ctx context.Context, postID int64) error {
		post, err := f.Post(ctx, postID)
		if err != nil {
			return err
		}
		if post.Raw == "" {
			l.Warn("post has no raw content, skipping", "post", postID)
			return nil
		}
		// Never reply to our own replies.
		if replytag.IsTagged(post.Raw) {
			return nil
		}

		for _, r := range responders {
			text, err := r.Respond(ctx, post)
			if err != nil {
				if rerr := f.Reply(ctx, replytag.Tag(errorReply), post.TopicID, post.PostNumber); rerr != nil {
					l.Error("error reply failed", "post", postID, "error", rerr)
				}
				return err
			}
			if text != "" {
				return f.Reply(ctx, replytag.Tag(text), post.TopicID, post.PostNumber)
			}
		}
		return nil
	}
}
