// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.astrophena.name/pumpkin/internal/discourse"
	"go.astrophena.name/pumpkin/internal/request"
)

const (
	stockTrigger = "【a股】"
	// The quote API is metered; past this many lookups per day the bot
	// politely declines until tomorrow.
	maxStockQueriesPerDay = 20
)

var stockCodeRe = regexp.MustCompile(`^(sh|sz)\d{6}$`)

// Stock replies with a formatted quote when a post asks for one with
// "【A股】" followed by a stock code.
type Stock struct {
	// APIURL is the base URL of the quote API.
	APIURL string
	// APIKey authenticates to the quote API. It is scrubbed from error
	// messages.
	APIKey string
	// HTTPClient optionally overrides the HTTP client used for quote
	// lookups.
	HTTPClient *http.Client

	mu      sync.Mutex
	day     int // day of month the counter belongs to
	queries int
}

type stockQuote struct {
	Data struct {
		Name          string `json:"name"`
		NowPri        string `json:"nowPri"`
		IncrePer      string `json:"increPer"`
		TodayStartPri string `json:"todayStartPri"`
		YestodEndPri  string `json:"yestodEndPri"`
		TodayMax      string `json:"todayMax"`
		TodayMin      string `json:"todayMin"`
	} `json:"data"`
	Dapandata struct {
		Name      string `json:"name"`
		Dot       string `json:"dot"`
		Rate      string `json:"rate"`
		TraAmount string `json:"traAmount"`
	} `json:"dapandata"`
}

type stockResponse struct {
	Reason    string      `json:"reason"`
	Result    *stockQuote `json:"result"`
	ErrorCode int         `json:"error_code"`
}

// Respond implements [Responder].
func (s *Stock) Respond(ctx context.Context, post *discourse.PostDetails) (string, error) {
	raw := strings.ToLower(strings.NewReplacer(" ", "", "\n", "").Replace(post.Raw))
	_, rest, found := strings.Cut(raw, stockTrigger)
	if !found {
		return "", nil
	}

	if len(rest) > 8 {
		rest = rest[:8]
	}
	if !stockCodeRe.MatchString(rest) {
		return "股票代码格式错误，请使用“【A股】+股票代码”的格式，例如：【A股】sz000001。", nil
	}

	if !s.takeQuery() {
		return "今日行情查询次数已达上限，请明天再试。", nil
	}

	resp, err := request.Make[stockResponse](ctx, request.Params{
		Method:     http.MethodGet,
		URL:        s.APIURL + "?" + url.Values{"gid": {rest}, "key": {s.APIKey}}.Encode(),
		HTTPClient: s.HTTPClient,
		Scrubber:   strings.NewReplacer(s.APIKey, "[redacted]"),
	})
	if err != nil {
		return "", err
	}
	if resp.ErrorCode != 0 || resp.Result == nil {
		return "", fmt.Errorf("quote API error %d: %s", resp.ErrorCode, resp.Reason)
	}

	return formatQuote(resp.Result), nil
}

// takeQuery consumes one unit of the daily query budget, resetting the
// counter on day change.
func (s *Stock) takeQuery() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if day := time.Now().Day(); day != s.day {
		s.day = day
		s.queries = 0
	}
	if s.queries >= maxStockQueriesPerDay {
		return false
	}
	s.queries++
	return true
}

func formatQuote(q *stockQuote) string {
	// Red for up, green for down, as on Chinese exchanges. Prices are
	// compared against yesterday's close.
	colorFor := func(val string) string {
		v, err := strconv.ParseFloat(val, 64)
		yes, yerr := strconv.ParseFloat(q.Data.YestodEndPri, 64)
		if err == nil && yerr == nil && v < yes {
			return "green"
		}
		return "red"
	}
	colored := func(text, color string) string {
		return fmt.Sprintf("[color=%s]%s[/color]", color, text)
	}
	nowColor := colorFor(q.Dapandata.Dot)

	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s**\n", q.Dapandata.Name)
	fmt.Fprintf(&sb, "当前价格：%s\n", colored(q.Dapandata.Dot, nowColor))
	fmt.Fprintf(&sb, "涨幅：%s\n", colored(q.Dapandata.Rate+"%", nowColor))
	fmt.Fprintf(&sb, "开盘价：%s\n", colored(q.Data.TodayStartPri, colorFor(q.Data.TodayStartPri)))
	fmt.Fprintf(&sb, "最高价：%s\n", colored(q.Data.TodayMax, colorFor(q.Data.TodayMax)))
	fmt.Fprintf(&sb, "最低价：%s\n", colored(q.Data.TodayMin, colorFor(q.Data.TodayMin)))
	fmt.Fprintf(&sb, "成交额：%s万\n", q.Dapandata.TraAmount)
	sb.WriteString("\n---\n[right]来自自动获取的数据[/right]")
	return sb.String()
}
