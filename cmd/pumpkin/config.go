// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"

	"go.astrophena.name/pumpkin/internal/discourse"
	"go.astrophena.name/pumpkin/internal/schedule"
)

// config is the parsed contents of config.star.
type config struct {
	watchers []*watcherDef
	jobs     []*jobDef
}

// watcherDef declares one watcher in config.star, created by the topic()
// and mentions() builtins.
type watcherDef struct {
	kind      string // "topic" or "mentions"
	topicID   int64
	bots      []string
	blockRule *starlark.Function
}

func (w *watcherDef) String() string {
	if w.kind == "topic" {
		return fmt.Sprintf("<topic id=%d>", w.topicID)
	}
	return "<mentions>"
}
func (w *watcherDef) Type() string          { return w.kind }
func (w *watcherDef) Freeze()               {} // immutable
func (w *watcherDef) Truth() starlark.Bool  { return true }
func (w *watcherDef) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: %s", w.Type()) }

// jobDef declares one scheduled job in config.star, created by the job()
// builtin.
type jobDef struct {
	name    string
	at      schedule.TimeOfDay
	on      schedule.Days
	topicID int64
	feeds   []string
}

func (j *jobDef) String() string        { return fmt.Sprintf("<job name=%q>", j.name) }
func (j *jobDef) Type() string          { return "job" }
func (j *jobDef) Freeze()               {} // immutable
func (j *jobDef) Truth() starlark.Bool  { return starlark.Bool(j.name != "") }
func (j *jobDef) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: %s", j.Type()) }

func stringsOf(l *starlark.List) ([]string, error) {
	if l == nil {
		return nil, nil
	}
	var out []string
	for elem := range l.Elements() {
		s, ok := starlark.AsString(elem)
		if !ok {
			return nil, fmt.Errorf("expected string, got %s", elem.Type())
		}
		out = append(out, s)
	}
	return out, nil
}

func topicBuiltin(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	w := &watcherDef{kind: "topic"}
	var bots *starlark.List
	if err := starlark.UnpackArgs("topic", args, kwargs,
		"id", &w.topicID,
		"bots", &bots,
		"block_rule?", &w.blockRule,
	); err != nil {
		return nil, err
	}
	var err error
	if w.bots, err = stringsOf(bots); err != nil {
		return nil, err
	}
	if len(w.bots) == 0 {
		return nil, fmt.Errorf("topic %d has no bots", w.topicID)
	}
	return w, nil
}

func mentionsBuiltin(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	w := &watcherDef{kind: "mentions"}
	var bots *starlark.List
	if err := starlark.UnpackArgs("mentions", args, kwargs,
		"bots", &bots,
		"block_rule?", &w.blockRule,
	); err != nil {
		return nil, err
	}
	var err error
	if w.bots, err = stringsOf(bots); err != nil {
		return nil, err
	}
	if len(w.bots) == 0 {
		return nil, errors.New("mentions watcher has no bots")
	}
	return w, nil
}

func jobBuiltin(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	j := new(jobDef)
	var (
		at    string
		on    string
		feeds *starlark.List
	)
	if err := starlark.UnpackArgs("job", args, kwargs,
		"name", &j.name,
		"at", &at,
		"topic", &j.topicID,
		"on?", &on,
		"feeds?", &feeds,
	); err != nil {
		return nil, err
	}
	var err error
	if j.at, err = schedule.ParseTimeOfDay(at); err != nil {
		return nil, err
	}
	switch on {
	case "", "every day":
		j.on = schedule.EveryDay
	case "weekdays":
		j.on = schedule.Weekdays
	default:
		return nil, fmt.Errorf("job %q: unknown day selector %q", j.name, on)
	}
	if j.feeds, err = stringsOf(feeds); err != nil {
		return nil, err
	}
	return j, nil
}

func parseConfig(logf func(string, ...any), src string) (*config, error) {
	globals, err := starlark.ExecFileOptions(
		&syntax.FileOptions{
			TopLevelControl: true,
		},
		&starlark.Thread{
			Print: func(_ *starlark.Thread, msg string) { logf("%s", msg) },
		},
		"config.star",
		src,
		starlark.StringDict{
			"topic":    starlark.NewBuiltin("topic", topicBuiltin),
			"mentions": starlark.NewBuiltin("mentions", mentionsBuiltin),
			"job":      starlark.NewBuiltin("job", jobBuiltin),
		},
	)
	if err != nil {
		return nil, err
	}

	watchersList, ok := globals["watchers"].(*starlark.List)
	if !ok {
		return nil, errors.New("watchers must be defined and be a list")
	}

	cfg := new(config)
	for elem := range watchersList.Elements() {
		w, ok := elem.(*watcherDef)
		if !ok {
			return nil, fmt.Errorf("watchers contains a %s, expected topic() or mentions()", elem.Type())
		}
		cfg.watchers = append(cfg.watchers, w)
	}

	if jobsList, ok := globals["jobs"].(*starlark.List); ok {
		for elem := range jobsList.Elements() {
			j, ok := elem.(*jobDef)
			if !ok {
				return nil, fmt.Errorf("jobs contains a %s, expected job()", elem.Type())
			}
			cfg.jobs = append(cfg.jobs, j)
		}
	}

	return cfg, nil
}

// blockedByRule evaluates a config.star block rule against a post. Rule
// failures are logged and treated as "not blocked" so a broken rule can't
// silence a watcher.
func blockedByRule(l *slog.Logger, rule *starlark.Function, post *discourse.PostDetails) bool {
	val, err := starlark.Call(
		&starlark.Thread{
			Print: func(_ *starlark.Thread, msg string) { l.Info(msg) },
		},
		rule,
		starlark.Tuple{starlarkstruct.FromStringDict(
			starlarkstruct.Default,
			starlark.StringDict{
				"raw":         starlark.String(post.Raw),
				"username":    starlark.String(post.Username),
				"topic_id":    starlark.MakeInt64(post.TopicID),
				"post_number": starlark.MakeInt64(post.PostNumber),
			},
		)},
		nil,
	)
	if err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			l.Error("block rule failed", "error", strings.TrimSpace(evalErr.Backtrace()))
		} else {
			l.Error("block rule failed", "error", err)
		}
		return false
	}
	return bool(val.Truth())
}
