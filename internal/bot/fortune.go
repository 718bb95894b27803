// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package bot

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.astrophena.name/pumpkin/internal/replytag"
)

var fortunes = []string{"大吉", "中吉", "小吉", "小凶", "凶", "大凶"}

type fortuneActivity struct {
	name string
	good string // what happens when the day favors it
	bad  string // what happens when it doesn't
}

var fortuneActivities = []fortuneActivity{
	{"刷B站", "承包一天笑点", "视频加载不出来"},
	{"和喜欢的人约会", "小鹿乱撞", "被放鸽子"},
	{"刷水源", "赶上爆帖直播", "被抬杠对线"},
	{"开组会", "被老板夸赞", "“你做的什么东西”"},
	{"去图书馆", "效率UpUp", "被占座"},
	{"写作业", "蒙的全对", "“这讲过吗？”"},
	{"打游戏", "“评分13.0”", "“评分3.0”"},
	{"摸鱼", "老板不在实验室", "“抓个正着”"},
	{"熬夜", "灵感爆棚", "上火长痘"},
	{"购物", "“满200减20”", "发货遥遥无期"},
	{"食堂干饭", "阿姨手不抖了", "排队排到天荒地老"},
	{"健身", "被夸练得好", "累晕过去"},
	{"搞钱", "来财，来", "钱包空空"},
}

// Fortune posts the fortune of the day to a topic. It is meant to be
// registered as a scheduled job.
type Fortune struct {
	// Forum posts the fortune.
	Forum Forum
	// TopicID is the topic the fortune goes to.
	TopicID int64
}

// Run implements the schedule job contract.
func (f *Fortune) Run(ctx context.Context) error {
	fortune := fortunes[rand.IntN(len(fortunes))]

	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s 今日运势**\n\n§ %s §\n\n", time.Now().Format("2006-01-02"), fortune)

	// The extremes leave no room for advice.
	switch fortune {
	case "大吉":
		sb.WriteString("诸事皆宜，去做想做的事情吧！\n")
	case "大凶":
		sb.WriteString("诸事不宜，床上躺一天。\n")
	default:
		picks := rand.Perm(len(fortuneActivities))[:4]
		fmt.Fprintf(&sb, "宜：%s，%s\n", fortuneActivities[picks[0]].name, fortuneActivities[picks[0]].good)
		fmt.Fprintf(&sb, "宜：%s，%s\n", fortuneActivities[picks[1]].name, fortuneActivities[picks[1]].good)
		fmt.Fprintf(&sb, "忌：%s，%s\n", fortuneActivities[picks[2]].name, fortuneActivities[picks[2]].bad)
		fmt.Fprintf(&sb, "忌：%s，%s\n", fortuneActivities[picks[3]].name, fortuneActivities[picks[3]].bad)
	}

	return f.Forum.Reply(ctx, replytag.Tag(sb.String()), f.TopicID, 0)
}
