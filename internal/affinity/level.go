package affinity

// Level is a named affinity band.
type Level int

const (
	LevelStranger Level = iota
	LevelFamiliar
	LevelFriendly
	LevelClose
	LevelBestFriend
)

// Score bounds and the default for a first contact.
const (
	MinScore     = 0.0
	MaxScore     = 100.0
	DefaultScore = 50.0
)

// bandFloors are the inclusive lower bounds of LevelFamiliar..LevelBestFriend.
var bandFloors = [...]float64{20, 40, 60, 80}

var levelNames = [...]string{"陌生", "熟悉", "友好", "亲密", "挚友"}

var levelKeys = [...]string{"stranger", "familiar", "friendly", "close", "best_friend"}

var modifiers = [...]string{
	"冷淡疏离,不太愿意多说,回答简短",
	"礼貌但略显生疏,回答简洁",
	"礼貌友善,正常交流,保持专业",
	"友好热情,愿意多聊,会主动关心对方",
	"非常热情友好,像老朋友一样亲切,愿意分享私人话题",
}

// LevelOf maps a score onto its band.
func LevelOf(score float64) Level {
	level := LevelStranger
	for _, floor := range bandFloors {
		if score >= floor {
			level++
		}
	}
	return level
}

// ModifierText returns the tone instruction for a score. It uses the same
// bands as LevelOf.
func ModifierText(score float64) string {
	return modifiers[LevelOf(score)]
}

// String returns the display name used in prompts and logs.
func (l Level) String() string {
	if l < LevelStranger || l > LevelBestFriend {
		return "未知"
	}
	return levelNames[l]
}

// Key returns a stable ASCII identifier.
func (l Level) Key() string {
	if l < LevelStranger || l > LevelBestFriend {
		return "unknown"
	}
	return levelKeys[l]
}

// Clamp bounds a score to [MinScore, MaxScore].
func Clamp(score float64) float64 {
	switch {
	case score < MinScore:
		return MinScore
	case score > MaxScore:
		return MaxScore
	default:
		return score
	}
}
