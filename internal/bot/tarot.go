// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package bot

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.astrophena.name/pumpkin/internal/discourse"
	"go.astrophena.name/pumpkin/internal/syncx"
	"go.astrophena.name/pumpkin/internal/userdb"
)

//go:embed deck.json
var deckJSON []byte

const (
	tarotTrigger         = "【塔罗牌】"
	maxTarotDrawsPerDay  = 3
	tarotSpreadCardCount = 3
)

var spreadPositions = [tarotSpreadCardCount]string{"过去", "现在", "未来"}

type tarotCard struct {
	Name     string `json:"name"`
	Upright  string `json:"upright"`
	Reversed string `json:"reversed"`
}

type tarotDraw struct {
	card     tarotCard
	index    int // 1-based position in the deck
	reversed bool
}

func (d tarotDraw) String() string {
	if d.reversed {
		return "逆位" + d.card.Name
	}
	return "正位" + d.card.Name
}

func (d tarotDraw) meaning() string {
	if d.reversed {
		return d.card.Reversed
	}
	return d.card.Upright
}

// Tarot draws cards for posts containing "【塔罗牌】". Draws are limited per
// user per day; the count is persisted across restarts.
type Tarot struct {
	// Forum is used to upload card images.
	Forum Forum
	// DB persists per-user draw counts.
	DB *userdb.DB
	// Chatter, if set, produces a reading of the drawn cards.
	Chatter Chatter
	// ImageDir, if set, is a directory of card images, named
	// "<index>.jpg" and "<index>_rev.jpg". Missing images are skipped.
	ImageDir string
	// Logger must be set.
	Logger *slog.Logger

	deck syncx.Lazy[[]tarotCard]
}

// Respond implements [Responder].
func (t *Tarot) Respond(ctx context.Context, post *discourse.PostDetails) (string, error) {
	if !strings.Contains(post.Raw, tarotTrigger) {
		return "", nil
	}
	question := strings.TrimSpace(strings.ReplaceAll(post.Raw, tarotTrigger, ""))

	draws, err := t.DB.TarotDraws(ctx, post.Username, time.Now())
	if err != nil {
		return "", err
	}
	if draws >= maxTarotDrawsPerDay {
		return fmt.Sprintf("你今天已经占卜过%d次啦，请明天再来吧！", draws), nil
	}
	if err := t.DB.RecordTarotDraw(ctx, post.Username, time.Now()); err != nil {
		return "", err
	}

	deck, err := t.deck.GetErr(func() (deck []tarotCard, err error) {
		err = json.Unmarshal(deckJSON, &deck)
		return
	})
	if err != nil {
		return "", err
	}

	spread := drawSpread(deck)

	name := post.Name
	if name == "" {
		name = post.Username
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "你好！%s，欢迎来到南瓜的塔罗牌自助占卜小屋！请注意占卜结果仅供娱乐参考哦！\n\n", name)
	sb.WriteString("此次选择的牌阵为：时间牌阵，该牌阵由3张牌组成，分别代表过去、现在和未来\n\n抽牌结果如下：\n")
	for i, d := range spread {
		fmt.Fprintf(&sb, "%s：%s（%s）\n", spreadPositions[i], d, d.meaning())
	}

	for _, d := range spread {
		url, err := t.uploadCardImage(ctx, d)
		if err != nil {
			t.Logger.Warn("card image unavailable", "card", d.card.Name, "error", err)
			continue
		}
		fmt.Fprintf(&sb, "\n![%s](%s)", d, url)
	}

	if t.Chatter != nil {
		reading, err := t.consult(ctx, question, spread)
		if err != nil {
			t.Logger.Error("tarot reading failed", "error", err)
		} else {
			fmt.Fprintf(&sb, "\n\n---\n\n[details=\"分析和建议\"]\n%s\n[/details]", reading)
		}
	}

	return sb.String(), nil
}

func drawSpread(deck []tarotCard) []tarotDraw {
	spread := make([]tarotDraw, 0, tarotSpreadCardCount)
	for _, i := range rand.Perm(len(deck))[:tarotSpreadCardCount] {
		spread = append(spread, tarotDraw{
			card:     deck[i],
			index:    i + 1,
			reversed: rand.IntN(2) == 0,
		})
	}
	return spread
}

func (t *Tarot) uploadCardImage(ctx context.Context, d tarotDraw) (string, error) {
	if t.ImageDir == "" {
		return "", os.ErrNotExist
	}
	name := fmt.Sprintf("%d.jpg", d.index)
	if d.reversed {
		name = fmt.Sprintf("%d_rev.jpg", d.index)
	}
	img, err := os.ReadFile(filepath.Join(t.ImageDir, name))
	if err != nil {
		return "", err
	}
	up, err := t.Forum.UploadImage(ctx, img)
	if err != nil {
		return "", err
	}
	return up.ShortURL, nil
}

func (t *Tarot) consult(ctx context.Context, question string, spread []tarotDraw) (string, error) {
	var sb strings.Builder
	sb.WriteString("抽到的塔罗牌如下：\n")
	for i, d := range spread {
		fmt.Fprintf(&sb, "%s：%s，含义：%s\n", spreadPositions[i], d, d.meaning())
	}
	sb.WriteString("\n请根据这些塔罗牌的含义分析我的问题。注意：需要结合每一张塔罗牌输出综合结果，语义简洁精炼，且必须结合我的问题来回答。\n\n问题：")
	sb.WriteString(question)
	return t.Chatter.Chat(ctx, sb.String())
}
