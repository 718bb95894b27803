// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Pumpkin is a forum automation bot for Discourse.

It watches topics and mentions for new posts and replies to the ones that
trigger its bots: canned quotes, stock lookups, tarot draws and
model-generated chat. It also posts scheduled content, like a daily RSS
digest and the fortune of the day.

# Usage

	$ pumpkin [flags...]

# Environment Variables

The pumpkin program relies on the following environment variables:

  - FORUM_URL: Base URL of the Discourse forum. Required.
  - COOKIES_FILE: Path to the persisted authentication cookies, a JSON
    array of name/value pairs exported from a logged-in browser session.
    Defaults to "cookies.json".
  - FORUM_USERNAME: The bot's username on the forum, used to watch
    mentions. Defaults to "pumpkin".
  - DB_PATH: Path to the SQLite database holding per-user state. Defaults
    to "pumpkin.db".
  - GEMINI_API_KEY: Gemini API key. The chat bot and tarot readings are
    disabled without it.
  - GEMINI_MODEL: Gemini model to use. Defaults to "gemini-1.5-flash".
  - STOCK_API_KEY: Key for the stock quote API. The stock bot replies with
    an error message without it.
  - STOCK_API_URL: Base URL of the stock quote API. Defaults to the Juhe
    A-share endpoint.
  - TAROT_IMAGE_DIR: Directory of tarot card images. Card images are
    omitted from replies when unset.

A .env file in the working directory is loaded before the environment is
read.

# Configuration

Pumpkin loads its configuration from a config.star file (see the -config
flag). This file is written in Starlark and defines a list of watchers and
an optional list of scheduled jobs, for example:

	watchers = [
	    topic(id = 1234, bots = ["quote", "tarot"]),
	    topic(
	        id = 5678,
	        bots = ["stock"],
	        block_rule = lambda post: post.username == "spammer",
	    ),
	    mentions(bots = ["chat"]),
	]

	jobs = [
	    job(name = "fortune", at = "08:00", topic = 1234),
	    job(
	        name = "digest",
	        at = "09:00",
	        on = "weekdays",
	        topic = 5678,
	        feeds = ["https://hnrss.org/newest"],
	    ),
	]

A topic watcher polls one topic's post stream; the mentions watcher polls
the bot's mention feed. The bots list names which bots look at new posts:
"quote", "stock", "tarot" or "chat".

A block rule is a Starlark function that takes a post and returns a boolean;
when it returns true, the post gets no reply. The post passed to it is a
struct with the keys raw, username, topic_id and post_number.

A job fires at a wall-clock time of day, every day or on weekdays only.
Known jobs are "digest" (posts fresh items from the configured feeds) and
"fortune" (posts the fortune of the day).
*/
package main

import (
	_ "embed"

	"go.astrophena.name/pumpkin/internal/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
