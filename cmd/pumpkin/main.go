// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"go.astrophena.name/pumpkin/internal/bot"
	"go.astrophena.name/pumpkin/internal/cli"
	"go.astrophena.name/pumpkin/internal/discourse"
	"go.astrophena.name/pumpkin/internal/logger"
	"go.astrophena.name/pumpkin/internal/schedule"
	"go.astrophena.name/pumpkin/internal/userdb"
	"go.astrophena.name/pumpkin/internal/watch"

	"go.starlark.net/starlark"
)

const defaultStockAPIURL = "http://web.juhe.cn/finance/stock/hs"

func main() { cli.Main(new(app)) }

type app struct {
	configPath   string
	pollInterval time.Duration
	verbose      bool

	slog *slog.Logger
}

func (a *app) Flags(fs *flag.FlagSet) {
	fs.StringVar(&a.configPath, "config", "config.star", "Path to the configuration `file`.")
	fs.DurationVar(&a.pollInterval, "poll", 2*time.Second, "Polling `interval` of watchers.")
	fs.BoolVar(&a.verbose, "verbose", false, "Enable debug logging.")
}

func (a *app) Run(ctx context.Context, env *cli.Env) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	l, level := logger.New(env.Stderr)
	a.slog = l
	if a.verbose {
		level.Set(slog.LevelDebug)
	}

	baseURL := env.Getenv("FORUM_URL")
	if baseURL == "" {
		return fmt.Errorf("%w: FORUM_URL must be set", cli.ErrInvalidArgs)
	}
	cookiesFile := cmp.Or(env.Getenv("COOKIES_FILE"), "cookies.json")
	username := cmp.Or(env.Getenv("FORUM_USERNAME"), "pumpkin")
	dbPath := cmp.Or(env.Getenv("DB_PATH"), "pumpkin.db")

	src, err := os.ReadFile(a.configPath)
	if err != nil {
		return err
	}
	cfg, err := parseConfig(env.Logf, string(src))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", a.configPath, err)
	}

	client := &discourse.Client{
		BaseURL:     baseURL,
		CookiesFile: cookiesFile,
		Logger:      a.slog,
	}
	if err := client.Acquire(ctx); err != nil {
		return err
	}
	defer client.Release()

	db, err := userdb.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	var chatter bot.Chatter
	if key := env.Getenv("GEMINI_API_KEY"); key != "" {
		g, err := bot.NewGemini(ctx, key, cmp.Or(env.Getenv("GEMINI_MODEL"), "gemini-1.5-flash"))
		if err != nil {
			return err
		}
		defer g.Close()
		chatter = g
	}

	responders := map[string]bot.Responder{
		"quote": bot.Quote{},
		"stock": &bot.Stock{
			APIURL: cmp.Or(env.Getenv("STOCK_API_URL"), defaultStockAPIURL),
			APIKey: env.Getenv("STOCK_API_KEY"),
		},
		"tarot": &bot.Tarot{
			Forum:    client,
			DB:       db,
			Chatter:  chatter,
			ImageDir: env.Getenv("TAROT_IMAGE_DIR"),
			Logger:   a.slog,
		},
	}
	if chatter != nil {
		responders["chat"] = &bot.Chat{Chatter: chatter, Username: username}
	}

	watchers, err := a.buildWatchers(cfg, client, username, responders)
	if err != nil {
		return err
	}

	runner := schedule.NewRunner(a.slog)
	for _, def := range cfg.jobs {
		job, err := a.buildJob(def, client)
		if err != nil {
			return err
		}
		runner.Register(job)
	}
	runner.Start(ctx)
	defer runner.Stop()

	a.slog.Info("started", "watchers", len(watchers), "jobs", len(cfg.jobs))

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range watchers {
		g.Go(func() error { return w.Run(gctx) })
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *app) buildWatchers(cfg *config, client *discourse.Client, username string, responders map[string]bot.Responder) ([]*watch.Watcher, error) {
	var watchers []*watch.Watcher
	for _, def := range cfg.watchers {
		var rs []bot.Responder
		for _, name := range def.bots {
			r, ok := responders[name]
			if !ok {
				return nil, fmt.Errorf("%s: unknown or unavailable bot %q", def, name)
			}
			rs = append(rs, r)
		}

		w := &watch.Watcher{
			Name:         def.String(),
			PollInterval: a.pollInterval,
			Logger:       a.slog,
		}
		if def.blockRule != nil {
			w.Handler = bot.Handler(client, a.slog, &ruled{rule: def.blockRule, slog: a.slog, inner: rs})
		} else {
			w.Handler = bot.Handler(client, a.slog, rs...)
		}
		switch def.kind {
		case "topic":
			w.Snapshot = client.TopicSnapshot(def.topicID)
		case "mentions":
			w.Snapshot = client.ActionsSnapshot(username, discourse.ActionMention)
		}
		watchers = append(watchers, w)
	}
	return watchers, nil
}

func (a *app) buildJob(def *jobDef, client *discourse.Client) (schedule.Job, error) {
	job := schedule.Job{Name: def.name, At: def.at, On: def.on}
	switch def.name {
	case "digest":
		if len(def.feeds) == 0 {
			return job, errors.New("digest job needs feeds")
		}
		d := &bot.Digest{Forum: client, TopicID: def.topicID, Feeds: def.feeds, Logger: a.slog}
		job.Run = d.Run
	case "fortune":
		f := &bot.Fortune{Forum: client, TopicID: def.topicID}
		job.Run = f.Run
	default:
		return job, fmt.Errorf("unknown job %q", def.name)
	}
	return job, nil
}

// ruled gates a set of responders behind a config.star block rule.
type ruled struct {
	rule  *starlark.Function
	slog  *slog.Logger
	inner []bot.Responder
}

func (r *ruled) Respond(ctx context.Context, post *discourse.PostDetails) (string, error) {
	if blockedByRule(r.slog, r.rule, post) {
		r.slog.Debug("post blocked by rule", "post", post.ID)
		return "", nil
	}
	for _, resp := range r.inner {
		text, err := resp.Respond(ctx, post)
		if err != nil || text != "" {
			return text, err
		}
	}
	return "", nil
}
