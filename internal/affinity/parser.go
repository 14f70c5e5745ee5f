package affinity

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/easeaico/npc-town/internal/apperr"
	"github.com/easeaico/npc-town/internal/utils"
)

// Change bounds for a single exchange.
const (
	MinChange = -15
	MaxChange = 10
)

// Sentiment labels.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

const defaultReason = "unknown"

var errNoMatch = errors.New("no match")

// Judgment is the classifier's verdict on one exchange.
type Judgment struct {
	ShouldChange bool   `json:"should_change"`
	ChangeAmount int    `json:"change_amount"`
	Reason       string `json:"reason"`
	Sentiment    string `json:"sentiment"`
}

// Unchanged is the judgment used whenever classification fails.
func Unchanged(reason string) Judgment {
	return Judgment{Reason: reason, Sentiment: SentimentNeutral}
}

// rawJudgment tolerates missing fields and fractional amounts.
type rawJudgment struct {
	ShouldChange *bool   `json:"should_change"`
	ChangeAmount float64 `json:"change_amount"`
	Reason       string  `json:"reason"`
	Sentiment    string  `json:"sentiment"`
}

func (r rawJudgment) judgment() (Judgment, error) {
	if r.ShouldChange == nil {
		return Judgment{}, errNoMatch
	}
	return Judgment{
		ShouldChange: *r.ShouldChange,
		ChangeAmount: int(math.Round(r.ChangeAmount)),
		Reason:       r.Reason,
		Sentiment:    r.Sentiment,
	}, nil
}

type parseStep struct {
	name  string
	parse func(raw string) (Judgment, error)
}

// parseChain is tried in order; the first step that matches wins.
var parseChain = []parseStep{
	{name: "full", parse: parseFull},
	{name: "braced", parse: parseBraced},
	{name: "fields", parse: parseFields},
}

var (
	shouldChangeRe = regexp.MustCompile(`(?i)"should_change"\s*:\s*(true|false)`)
	changeAmountRe = regexp.MustCompile(`"change_amount"\s*:\s*(-?\d+)`)
	reasonRe       = regexp.MustCompile(`"reason"\s*:\s*"([^"]+)"`)
	sentimentRe    = regexp.MustCompile(`"sentiment"\s*:\s*"([^"]+)"`)
)

// ParseJudgment runs the parser chain over raw model output. It returns the
// normalized judgment and the name of the step that matched.
func ParseJudgment(raw string) (Judgment, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Unchanged(defaultReason), "", apperr.ClassificationParse("empty classifier output", nil)
	}
	for _, step := range parseChain {
		j, err := step.parse(raw)
		if err != nil {
			continue
		}
		return normalize(j), step.name, nil
	}
	return Unchanged(defaultReason), "", apperr.ClassificationParse("failed to parse classifier output", errNoMatch)
}

func parseFull(raw string) (Judgment, error) {
	var r rawJudgment
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return Judgment{}, err
	}
	return r.judgment()
}

func parseBraced(raw string) (Judgment, error) {
	braced, ok := utils.ExtractBraced(raw)
	if !ok {
		return Judgment{}, errNoMatch
	}
	return parseFull(braced)
}

func parseFields(raw string) (Judgment, error) {
	should := shouldChangeRe.FindStringSubmatch(raw)
	amount := changeAmountRe.FindStringSubmatch(raw)
	if should == nil || amount == nil {
		return Judgment{}, errNoMatch
	}
	n, err := strconv.Atoi(amount[1])
	if err != nil {
		return Judgment{}, err
	}

	j := Judgment{
		ShouldChange: strings.EqualFold(should[1], "true"),
		ChangeAmount: n,
	}
	if m := reasonRe.FindStringSubmatch(raw); m != nil {
		j.Reason = m[1]
	}
	if m := sentimentRe.FindStringSubmatch(raw); m != nil {
		j.Sentiment = m[1]
	}
	return j, nil
}

func normalize(j Judgment) Judgment {
	if j.ChangeAmount < MinChange {
		j.ChangeAmount = MinChange
	}
	if j.ChangeAmount > MaxChange {
		j.ChangeAmount = MaxChange
	}
	if !j.ShouldChange {
		j.ChangeAmount = 0
	}
	if strings.TrimSpace(j.Reason) == "" {
		j.Reason = defaultReason
	}
	switch s := strings.ToLower(strings.TrimSpace(j.Sentiment)); s {
	case SentimentPositive, SentimentNegative:
		j.Sentiment = s
	default:
		j.Sentiment = SentimentNeutral
	}
	return j
}
