package scheduler

import (
	"fmt"
	"time"

	"github.com/easeaico/npc-town/internal/types"
)

// Band is a time-of-day period of the office day.
type Band string

const (
	BandEarlyMorning Band = "early_morning"
	BandMorning      Band = "morning"
	BandLunch        Band = "lunch"
	BandAfternoon    Band = "afternoon"
	BandEvening      Band = "evening"
	BandNight        Band = "night"
)

// BandOf maps an hour (0-23) onto its band.
func BandOf(hour int) Band {
	switch {
	case hour >= 6 && hour < 9:
		return BandEarlyMorning
	case hour >= 9 && hour < 12:
		return BandMorning
	case hour >= 12 && hour < 14:
		return BandLunch
	case hour >= 14 && hour < 17:
		return BandAfternoon
	case hour >= 17 && hour < 19:
		return BandEvening
	default:
		return BandNight
	}
}

var scenePhrases = map[Band]string{
	BandEarlyMorning: "清晨时分,大家陆续到达办公室,准备开始新的一天",
	BandMorning:      "上午工作时间,大家都在专注工作,办公室氛围专注而忙碌",
	BandLunch:        "午餐时间,大家在休息放松,聊聊天或者看看手机",
	BandAfternoon:    "下午工作时间,继续推进项目,偶尔需要喝杯咖啡提神",
	BandEvening:      "傍晚时分,准备收尾今天的工作,整理明天的计划",
	BandNight:        "夜晚时分,办公室安静下来,偶尔还有人在加班",
}

// SceneFor returns the scene description for t.
func SceneFor(t time.Time) string {
	return scenePhrases[BandOf(t.Hour())]
}

var presetDialogues = map[Band]map[string]string{
	BandEarlyMorning: {
		"张三": "早上好!先把昨晚跑的测试结果看一眼,再继续优化多智能体系统。",
		"李四": "新的一天开始了,先整理一下今天的会议安排和需求清单。",
		"王五": "早!先来杯咖啡提提神,然后开始设计新界面。",
		"赵六": "早上先把夜间自动化测试的报告过一遍,看看有没有新失败。",
		"孙七": "清晨巡检一遍服务器,监控面板一切正常,可以安心喝口水。",
		"周八": "早上先拉一下昨天的业务数据,看看关键指标有没有异常波动。",
	},
	BandMorning: {
		"张三": "这个并发调度的逻辑有点绕,得再好好梳理一下代码结构。",
		"李四": "上午的需求评审会很顺利,几个关键功能的优先级都定下来了。",
		"王五": "这个按钮的圆角和阴影还差一点感觉,再微调一下细节。",
		"赵六": "这个边界条件果然有问题,赶紧记下来提个缺陷单。",
		"孙七": "CPU使用率有点偏高,我先排查一下是哪个容器在占资源。",
		"周八": "转化率的漏斗图做出来了,第二步的流失比预想的要高。",
	},
	BandLunch: {
		"张三": "写了一上午代码,终于把那个bug修复了!先去吃饭。",
		"李四": "午饭时间到了,顺便和大家聊聊最近用户反馈的问题。",
		"王五": "这个配色方案看起来不错,吃完饭再调整一下细节。",
		"赵六": "午休时间下盘棋放松一下,下午还有一轮回归测试要跑。",
		"孙七": "午饭前再看一眼告警,没事的话就去楼下吃碗面。",
		"周八": "边吃午饭边玩一局数独,换换脑子下午继续分析数据。",
	},
	BandAfternoon: {
		"张三": "下午继续写代码,这个算法的时间复杂度还需要优化一下。",
		"李四": "正在准备下周的产品规划会,需求文档快完成了。",
		"王五": "设计稿基本完成了,等会儿发给大家看看效果。",
		"赵六": "性能测试跑完了,响应时间比上个版本慢了一点,得查查原因。",
		"孙七": "下午做一次灰度发布,先把回滚方案准备好再说。",
		"周八": "用户分群的模型跑出来了,结果挺有意思,准备做成图表。",
	},
	BandEvening: {
		"张三": "今天的代码提交完成,明天继续完善单元测试!",
		"李四": "今天的工作差不多了,整理一下明天的待办事项。",
		"王五": "设计工作告一段落,明天再继续优化交互动效。",
		"赵六": "今天发现的几个问题都记录好了,明天跟开发同学确认一下。",
		"孙七": "下班前把今天的变更记录整理好,值班交接也安排妥当了。",
		"周八": "日报数据已经汇总完成,明天一早发给大家看。",
	},
	BandNight: {
		"张三": "夜深了还在调这个bug,再跑最后一遍测试就回家。",
		"李四": "办公室好安静,正好静下心来想想产品的长期规划。",
		"王五": "晚上灵感特别多,把今天的设计想法赶紧画下来。",
		"赵六": "夜里跑一轮全量回归测试,明早就能看到结果了。",
		"孙七": "夜间值班中,监控大盘一片绿色,今晚应该能睡个好觉。",
		"周八": "晚上跑一个大批量的数据任务,顺便看会儿科幻电影。",
	},
}

// Presets returns a complete, non-empty line for every character in the
// band. Characters without a preset get a line built from their activity.
func Presets(band Band, characters []types.Character) map[string]string {
	table := presetDialogues[band]
	out := make(map[string]string, len(characters))
	for _, c := range characters {
		if line, ok := table[c.Name]; ok && line != "" {
			out[c.Name] = line
			continue
		}
		out[c.Name] = synthesize(c)
	}
	return out
}

func synthesize(c types.Character) string {
	switch {
	case c.Activity != "" && c.Location != "":
		return fmt.Sprintf("正在%s%s,今天的进展还算顺利。", c.Location, c.Activity)
	case c.Activity != "":
		return fmt.Sprintf("正在%s,今天的进展还算顺利。", c.Activity)
	default:
		return fmt.Sprintf("%s正在忙手头的工作。", c.Name)
	}
}
