package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreUrgency(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"empty", "", 0},
		{"no keywords", "Thanks for the lovely service last week.", 0},
		{"mixed case keywords", "URGENT - refund please, can't access my account, ASAP!!", 0.4},
		{"repeats count once", "urgent urgent URGENT", 0.1},
		{"substring inside a word", "I bought it at the kasap shop", 0.1},
		{"multi word phrase", "The app is not working at all", 0.1},
		{"curly apostrophe does not match", "I can’t access my inbox", 0},
		{
			"every phrase",
			"urgent asap immediately right away as soon as possible can't access refund problem crash not working",
			1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ScoreUrgency(tt.text), 1e-12)
		})
	}
}

func TestScoreUrgencyAgainstCustomLexicon(t *testing.T) {
	assert.Equal(t, 0.0, scoreAgainstLexicon("anything urgent", nil))
	assert.InDelta(t, 0.5, scoreAgainstLexicon("please hurry", []string{"hurry", "deadline"}), 1e-12)
}

func TestUrgencyLexiconIsImmutable(t *testing.T) {
	lexicon := UrgencyLexicon()
	assert.Len(t, lexicon, 10)

	lexicon[0] = "changed"
	assert.Equal(t, "urgent", UrgencyLexicon()[0])
}

func TestScoreSentiment(t *testing.T) {
	tests := []struct {
		label string
		want  float64
	}{
		{"negative", 1.0},
		{"NEGATIVE", 1.0},
		{"Neutral", 0.5},
		{"positive", 0.0},
		{"LABEL_0", 0.5},
		{"", 0.5},
		{" negative", 0.5},
		{"mixed", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoreSentiment(tt.label))
		})
	}
}

func TestScoreEmotion(t *testing.T) {
	tests := []struct {
		name string
		dist EmotionDistribution
		want float64
	}{
		{"nil distribution", nil, 0},
		{"only positive emotions", EmotionDistribution{"joy": 0.7, "love": 0.2, "surprise": 0.1}, 0},
		{"selected labels summed", EmotionDistribution{"anger": 0.2, "fear": 0.1, "joy": 0.6}, 0.3},
		{"case insensitive keys", EmotionDistribution{"Anger": 0.25, "SADNESS": 0.25}, 0.5},
		{"sum clamped", EmotionDistribution{"anger": 0.6, "fear": 0.5, "sadness": 0.1, "joy": 0.2}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreEmotion(tt.dist)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestComputePriorityScenarios(t *testing.T) {
	tests := []struct {
		name                       string
		sentiment, emotion, urgent float64
		vip                        bool
		wantScore                  int
		wantBand                   PriorityBand
	}{
		{"everything maxed with vip", 1.0, 1.0, 1.0, true, 100, BandHigh},
		{"neutral sentiment only", 0.5, 0.0, 0.0, false, 15, BandLow},
		{"negative sentiment only", 1.0, 0.0, 0.0, false, 30, BandLow},
		{"all halves", 0.5, 0.5, 0.5, false, 50, BandMedium},
		{"nothing", 0, 0, 0, false, 0, BandLow},
		{"vip alone", 0, 0, 0, true, 20, BandLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := ComputePriority(tt.sentiment, tt.emotion, tt.urgent, tt.vip)
			assert.Equal(t, tt.wantScore, score)
			assert.Equal(t, tt.wantBand, BandFor(score))
		})
	}
}

func TestComputePriorityRoundsHalfUp(t *testing.T) {
	// 0.15 * 0.3 * 100 = 4.5
	assert.Equal(t, 5, ComputePriority(0, 0.15, 0, false))
	// 0.05 * 0.3 * 100 = 1.5
	assert.Equal(t, 2, ComputePriority(0, 0.05, 0, false))
	// 0.1 * 0.4 * 100 = 4
	assert.Equal(t, 4, ComputePriority(0, 0, 0.1, false))
}

func TestComputePriorityBoundsAndMonotonicity(t *testing.T) {
	steps := []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}

	for _, s := range steps {
		for _, e := range steps {
			for _, u := range steps {
				for _, vip := range []bool{false, true} {
					score := ComputePriority(s, e, u, vip)
					assert.GreaterOrEqual(t, score, 0)
					assert.LessOrEqual(t, score, 100)

					if s < 1 {
						assert.GreaterOrEqual(t, ComputePriority(s+0.1, e, u, vip), score)
					}
					if e < 1 {
						assert.GreaterOrEqual(t, ComputePriority(s, e+0.1, u, vip), score)
					}
					if u < 1 {
						assert.GreaterOrEqual(t, ComputePriority(s, e, u+0.1, vip), score)
					}
					if !vip {
						assert.GreaterOrEqual(t, ComputePriority(s, e, u, true), score)
					}
				}
			}
		}
	}
}

func TestBandFor(t *testing.T) {
	assert.Equal(t, BandLow, BandFor(0))
	assert.Equal(t, BandLow, BandFor(40))
	assert.Equal(t, BandMedium, BandFor(41))
	assert.Equal(t, BandMedium, BandFor(75))
	assert.Equal(t, BandHigh, BandFor(76))
	assert.Equal(t, BandHigh, BandFor(100))
}

func TestBandAction(t *testing.T) {
	assert.Equal(t, "escalate immediately", BandHigh.Action())
	assert.Equal(t, "respond soon", BandMedium.Action())
	assert.Equal(t, "can wait", BandLow.Action())
}

func TestEvaluate(t *testing.T) {
	in := SignalInputs{
		Text:           "URGENT - refund please, can't access my account, ASAP!!",
		SentimentLabel: "negative",
		Emotions:       EmotionDistribution{"anger": 0.6, "fear": 0.5, "sadness": 0.1, "joy": 0.2},
		VIP:            false,
	}

	result := Evaluate(in)
	assert.InDelta(t, 0.4, result.Urgency, 1e-12)
	assert.Equal(t, 1.0, result.Sentiment)
	assert.Equal(t, 1.0, result.Emotion)
	// 0.16 + 0.3 + 0.3
	assert.Equal(t, 76, result.Score)
	assert.Equal(t, BandHigh, result.Band)
	assert.Equal(t, "negative", result.SentimentLabel)

	assert.Equal(t, result, Evaluate(in))
}
