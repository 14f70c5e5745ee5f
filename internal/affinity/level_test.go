package affinity

import "testing"

func TestLevelAndModifierShareBands(t *testing.T) {
	cases := []struct {
		score    float64
		level    Level
		name     string
		modifier string
	}{
		{0, LevelStranger, "陌生", "冷淡疏离,不太愿意多说,回答简短"},
		{19.999, LevelStranger, "陌生", "冷淡疏离,不太愿意多说,回答简短"},
		{20, LevelFamiliar, "熟悉", "礼貌但略显生疏,回答简洁"},
		{39.999, LevelFamiliar, "熟悉", "礼貌但略显生疏,回答简洁"},
		{40, LevelFriendly, "友好", "礼貌友善,正常交流,保持专业"},
		{59.999, LevelFriendly, "友好", "礼貌友善,正常交流,保持专业"},
		{60, LevelClose, "亲密", "友好热情,愿意多聊,会主动关心对方"},
		{79.999, LevelClose, "亲密", "友好热情,愿意多聊,会主动关心对方"},
		{80, LevelBestFriend, "挚友", "非常热情友好,像老朋友一样亲切,愿意分享私人话题"},
		{100, LevelBestFriend, "挚友", "非常热情友好,像老朋友一样亲切,愿意分享私人话题"},
	}
	for _, tc := range cases {
		level := LevelOf(tc.score)
		if level != tc.level {
			t.Fatalf("LevelOf(%v) = %v, want %v", tc.score, level, tc.level)
		}
		if level.String() != tc.name {
			t.Fatalf("level name for %v = %q, want %q", tc.score, level.String(), tc.name)
		}
		if got := ModifierText(tc.score); got != tc.modifier {
			t.Fatalf("ModifierText(%v) = %q, want %q", tc.score, got, tc.modifier)
		}
	}
}

func TestLevelOfMonotonic(t *testing.T) {
	prev := LevelOf(0)
	for s := 0.0; s <= 100; s += 0.5 {
		cur := LevelOf(s)
		if cur < prev {
			t.Fatalf("level decreased at %v", s)
		}
		prev = cur
	}
}

func TestLevelKey(t *testing.T) {
	if LevelBestFriend.Key() != "best_friend" {
		t.Fatalf("unexpected key %q", LevelBestFriend.Key())
	}
	if Level(9).Key() != "unknown" || Level(9).String() != "未知" {
		t.Fatalf("out-of-range level should be unknown")
	}
}
