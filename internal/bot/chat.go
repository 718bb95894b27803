// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package bot

import (
	"context"
	"strings"

	"go.astrophena.name/pumpkin/internal/discourse"
)

// Chatter produces a conversational reply to a prompt.
type Chatter interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

const chatPersona = "你是南瓜，一个友善的论坛机器人。用简洁、轻松的中文回复，不要超过三段。"

// Chat replies to posts that mention the bot, using a language model to
// generate the reply. It is meant to be wired to the mention watcher, so it
// responds to every post it sees.
type Chat struct {
	// Chatter generates replies.
	Chatter Chatter
	// Username is the bot's own username, stripped from mention text.
	Username string
}

// Respond implements [Responder].
func (c *Chat) Respond(ctx context.Context, post *discourse.PostDetails) (string, error) {
	prompt := strings.TrimSpace(strings.ReplaceAll(post.Raw, "@"+c.Username, ""))
	if prompt == "" {
		return "", nil
	}
	reply, err := c.Chatter.Chat(ctx, prompt)
	if err != nil {
		return "", err
	}
	return reply, nil
}
