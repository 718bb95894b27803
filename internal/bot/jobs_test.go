// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.astrophena.name/pumpkin/internal/replytag"
	"go.astrophena.name/pumpkin/internal/testutil"
)

func rssFeed(pub time.Time) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Test Feed</title>
<link>https://example.com</link>
<item>
<title>Fresh item</title>
<link>https://example.com/fresh</link>
<pubDate>%s</pubDate>
</item>
<item>
<title>Stale item</title>
<link>https://example.com/stale</link>
<pubDate>%s</pubDate>
</item>
</channel>
</rss>`, pub.Format(time.RFC1123Z), pub.Add(-72*time.Hour).Format(time.RFC1123Z))
}

func TestDigest(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFeed(time.Now().Add(-time.Hour)))
	}))
	t.Cleanup(srv.Close)

	f := newFakeForum()
	d := &Digest{
		Forum:   f,
		TopicID: 42,
		Feeds:   []string{srv.URL},
		Logger:  discardLogger,
	}

	if err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	replies := f.sentReplies()
	testutil.AssertEqual(t, len(replies), 1)
	testutil.AssertEqual(t, replies[0].topicID, int64(42))
	testutil.AssertStringContains(t, replies[0].body, "Fresh item")
	testutil.AssertStringNotContains(t, replies[0].body, "Stale item")
	if !replytag.IsTagged(replies[0].body) {
		t.Fatal("digest is not tagged")
	}
}

func TestDigestSkipsEmptyDay(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Everything in the feed is old news.
		fmt.Fprint(w, rssFeed(time.Now().Add(-48*time.Hour)))
	}))
	t.Cleanup(srv.Close)

	f := newFakeForum()
	d := &Digest{
		Forum:   f,
		TopicID: 42,
		Feeds:   []string{srv.URL},
		Logger:  discardLogger,
	}

	if err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, len(f.sentReplies()), 0)
}

func TestDigestToleratesBrokenFeed(t *testing.T) {
	t.Parallel()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	t.Cleanup(broken.Close)
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFeed(time.Now().Add(-time.Hour)))
	}))
	t.Cleanup(good.Close)

	f := newFakeForum()
	d := &Digest{
		Forum:   f,
		TopicID: 42,
		Feeds:   []string{broken.URL, good.URL},
		Logger:  discardLogger,
	}

	if err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	replies := f.sentReplies()
	testutil.AssertEqual(t, len(replies), 1)
	testutil.AssertStringContains(t, replies[0].body, "Fresh item")
}

func TestFortune(t *testing.T) {
	t.Parallel()

	f := newFakeForum()
	job := &Fortune{Forum: f, TopicID: 7}

	if err := job.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	replies := f.sentReplies()
	testutil.AssertEqual(t, len(replies), 1)
	testutil.AssertEqual(t, replies[0].topicID, int64(7))
	testutil.AssertStringContains(t, replies[0].body, "今日运势")
	if !replytag.IsTagged(replies[0].body) {
		t.Fatal("fortune is not tagged")
	}
}
