// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"go.astrophena.name/pumpkin/internal/bot"
	"go.astrophena.name/pumpkin/internal/discourse"
	"go.astrophena.name/pumpkin/internal/schedule"
	"go.astrophena.name/pumpkin/internal/testutil"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func tlogf(t *testing.T) func(string, ...any) {
	return func(format string, args ...any) { t.Logf(format, args...) }
}

func TestParseConfig(t *testing.T) {
	t.Parallel()

	cfg, err := parseConfig(tlogf(t), `
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
        at = "09:30",
        on = "weekdays",
        topic = 5678,
        feeds = ["https://example.com/feed"],
    ),
]
`)
	if err != nil {
		t.Fatal(err)
	}

	testutil.AssertEqual(t, len(cfg.watchers), 3)
	testutil.AssertEqual(t, cfg.watchers[0].kind, "topic")
	testutil.AssertEqual(t, cfg.watchers[0].topicID, int64(1234))
	testutil.AssertEqual(t, cfg.watchers[0].bots, []string{"quote", "tarot"})
	if cfg.watchers[0].blockRule != nil {
		t.Error("first watcher should have no block rule")
	}
	if cfg.watchers[1].blockRule == nil {
		t.Error("second watcher should have a block rule")
	}
	testutil.AssertEqual(t, cfg.watchers[2].kind, "mentions")
	testutil.AssertEqual(t, cfg.watchers[2].bots, []string{"chat"})

	testutil.AssertEqual(t, len(cfg.jobs), 2)
	testutil.AssertEqual(t, cfg.jobs[0].name, "fortune")
	testutil.AssertEqual(t, cfg.jobs[0].at, schedule.TimeOfDay{Hour: 8})
	testutil.AssertEqual(t, cfg.jobs[0].on, schedule.EveryDay)
	testutil.AssertEqual(t, cfg.jobs[1].at, schedule.TimeOfDay{Hour: 9, Minute: 30})
	testutil.AssertEqual(t, cfg.jobs[1].on, schedule.Weekdays)
	testutil.AssertEqual(t, cfg.jobs[1].feeds, []string{"https://example.com/feed"})
}

func TestParseConfigErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"no watchers":      `x = 1`,
		"watchers not list": `watchers = 42`,
		"empty bots":       `watchers = [topic(id = 1, bots = [])]`,
		"bad bots type":    `watchers = [topic(id = 1, bots = [42])]`,
		"bad job time":     `watchers = []` + "\n" + `jobs = [job(name = "fortune", at = "25:00", topic = 1)]`,
		"bad day selector": `watchers = []` + "\n" + `jobs = [job(name = "fortune", at = "08:00", on = "fridays", topic = 1)]`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := parseConfig(tlogf(t), src); err == nil {
				t.Fatalf("parseConfig accepted %q", src)
			}
		})
	}
}

func TestBlockRule(t *testing.T) {
	t.Parallel()

	cfg, err := parseConfig(tlogf(t), `
watchers = [
    topic(id = 1, bots = ["quote"], block_rule = lambda post: post.username == "spammer"),
]
`)
	if err != nil {
		t.Fatal(err)
	}
	rule := cfg.watchers[0].blockRule

	if !blockedByRule(discardLogger, rule, &discourse.PostDetails{Username: "spammer"}) {
		t.Error("rule should block spammer")
	}
	if blockedByRule(discardLogger, rule, &discourse.PostDetails{Username: "alice"}) {
		t.Error("rule should not block alice")
	}
}

func TestBrokenBlockRuleDoesNotBlock(t *testing.T) {
	t.Parallel()

	cfg, err := parseConfig(tlogf(t), `
watchers = [
    topic(id = 1, bots = ["quote"], block_rule = lambda post: post.no_such_key),
]
`)
	if err != nil {
		t.Fatal(err)
	}

	if blockedByRule(discardLogger, cfg.watchers[0].blockRule, &discourse.PostDetails{Username: "alice"}) {
		t.Error("a failing rule must not block posts")
	}
}

type cannedResponder string

func (c cannedResponder) Respond(_ context.Context, _ *discourse.PostDetails) (string, error) {
	return string(c), nil
}

func TestRuledResponder(t *testing.T) {
	t.Parallel()

	cfg, err := parseConfig(tlogf(t), `
watchers = [
    topic(id = 1, bots = ["quote"], block_rule = lambda post: "广告" in post.raw),
]
`)
	if err != nil {
		t.Fatal(err)
	}

	r := &ruled{
		rule:  cfg.watchers[0].blockRule,
		slog:  discardLogger,
		inner: []bot.Responder{cannedResponder("reply")},
	}

	got, err := r.Respond(context.Background(), &discourse.PostDetails{Raw: "正常帖子"})
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, got, "reply")

	got, err = r.Respond(context.Background(), &discourse.PostDetails{Raw: "这是广告"})
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, got, "")
}
