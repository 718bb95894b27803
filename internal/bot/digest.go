// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"go.astrophena.name/pumpkin/internal/replytag"
)

// Digest posts a daily roundup of fresh RSS items to a topic. It is meant
// to be registered as a scheduled job.
type Digest struct {
	// Forum posts the digest.
	Forum Forum
	// TopicID is the topic the digest goes to.
	TopicID int64
	// Feeds are the RSS/Atom feed URLs to read.
	Feeds []string
	// MaxAge bounds how old an item may be to appear in the digest.
	// Defaults to 24 hours.
	MaxAge time.Duration
	// Logger must be set.
	Logger *slog.Logger

	parser *gofeed.Parser
}

// Run implements the schedule job contract. A feed that fails to fetch is
// logged and skipped; the digest still goes out with the rest. An empty
// digest is not posted.
func (d *Digest) Run(ctx context.Context) error {
	if d.parser == nil {
		d.parser = gofeed.NewParser()
	}
	maxAge := d.MaxAge
	if maxAge == 0 {
		maxAge = 24 * time.Hour
	}
	cutoff := time.Now().Add(-maxAge)

	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s 今日新闻摘要**\n", time.Now().Format("2006-01-02"))

	var fresh int
	for _, url := range d.Feeds {
		feed, err := d.parser.ParseURLWithContext(url, ctx)
		if err != nil {
			d.Logger.Error("feed fetch failed", "feed", url, "error", err)
			continue
		}
		var items []string
		for _, item := range feed.Items {
			if item.PublishedParsed == nil || item.PublishedParsed.Before(cutoff) {
				continue
			}
			items = append(items, fmt.Sprintf("- [%s](%s)", item.Title, item.Link))
		}
		if len(items) == 0 {
			continue
		}
		fresh += len(items)
		fmt.Fprintf(&sb, "\n**%s**\n%s\n", feed.Title, strings.Join(items, "\n"))
	}

	if fresh == 0 {
		d.Logger.Info("no fresh items, skipping digest")
		return nil
	}
	return d.Forum.Reply(ctx, replytag.Tag(sb.String()), d.TopicID, 0)
}
