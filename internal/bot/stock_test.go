// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package bot

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.astrophena.name/pumpkin/internal/discourse"
	"go.astrophena.name/pumpkin/internal/testutil"
)

const stockQuoteJSON = `{
	"error_code": 0,
	"reason": "SUCCESSED!",
	"result": {
		"data": {
			"name": "平安银行",
			"nowPri": "11.50",
			"increPer": "1.23",
			"todayStartPri": "11.40",
			"yestodEndPri": "11.36",
			"todayMax": "11.60",
			"todayMin": "11.30"
		},
		"dapandata": {
			"name": "平安银行",
			"dot": "11.50",
			"rate": "1.23",
			"traAmount": "54321"
		}
	}
}`

func newStockServer(t *testing.T) (*Stock, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "testkey" {
			http.Error(w, "bad key", http.StatusForbidden)
			return
		}
		io.WriteString(w, stockQuoteJSON)
	}))
	t.Cleanup(srv.Close)
	return &Stock{APIURL: srv.URL, APIKey: "testkey", HTTPClient: srv.Client()}, srv
}

func TestStock(t *testing.T) {
	t.Parallel()

	s, _ := newStockServer(t)

	got, err := s.Respond(context.Background(), &discourse.PostDetails{Raw: "【A股】sz000001"})
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertStringContains(t, got, "平安银行")
	testutil.AssertStringContains(t, got, "11.50")
	// 11.50 is above yesterday's close of 11.36.
	testutil.AssertStringContains(t, got, "[color=red]11.50[/color]")
	// 11.30 is below it.
	testutil.AssertStringContains(t, got, "[color=green]11.30[/color]")
}

func TestStockIgnoresUnrelatedPosts(t *testing.T) {
	t.Parallel()

	s, _ := newStockServer(t)

	got, err := s.Respond(context.Background(), &discourse.PostDetails{Raw: "今天股市怎么样"})
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, got, "")
}

func TestStockBadCode(t *testing.T) {
	t.Parallel()

	s, _ := newStockServer(t)

	for _, raw := range []string{"【A股】000001", "【A股】sz00001", "【A股】szabcdef", "【A股】"} {
		got, err := s.Respond(context.Background(), &discourse.PostDetails{Raw: raw})
		if err != nil {
			t.Fatal(err)
		}
		testutil.AssertStringContains(t, got, "股票代码格式错误")
	}
}

func TestStockDailyCap(t *testing.T) {
	t.Parallel()

	s, _ := newStockServer(t)
	s.day = time.Now().Day()
	s.queries = maxStockQueriesPerDay

	got, err := s.Respond(context.Background(), &discourse.PostDetails{Raw: "【A股】sz000001"})
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertStringContains(t, got, "已达上限")
}
