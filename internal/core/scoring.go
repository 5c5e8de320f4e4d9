package core

import (
	"math"
	"strings"
)

const (
	urgencyWeight   = 0.4
	emotionWeight   = 0.3
	sentimentWeight = 0.3
	vipBonus        = 0.2

	highThreshold   = 75
	mediumThreshold = 40

	// roundingEpsilon lets products such as 0.405*100 that land a hair
	// below .5 still round up
	roundingEpsilon = 1e-9
)

var urgencyLexicon = []string{
	"urgent",
	"asap",
	"immediately",
	"right away",
	"as soon as possible",
	"can't access",
	"refund",
	"problem",
	"crash",
	"not working",
}

var sentimentScores = map[string]float64{
	"negative": 1.0,
	"neutral":  0.5,
	"positive": 0.0,
}

const unknownSentimentScore = 0.5

var negativeEmotions = map[string]struct{}{
	"anger":   {},
	"fear":    {},
	"sadness": {},
}

// UrgencyLexicon returns a copy of the urgency phrases
func UrgencyLexicon() []string {
	out := make([]string, len(urgencyLexicon))
	copy(out, urgencyLexicon)
	return out
}

// ScoreUrgency returns the fraction of urgency phrases present in text
func ScoreUrgency(text string) float64 {
	return scoreAgainstLexicon(text, urgencyLexicon)
}

func scoreAgainstLexicon(text string, lexicon []string) float64 {
	if len(lexicon) == 0 {
		return 0
	}

	lowered := strings.ToLower(text)
	matched := 0
	for _, phrase := range lexicon {
		// Plain substring containment, so "asap" also matches inside longer words
		if strings.Contains(lowered, phrase) {
			matched++
		}
	}

	return math.Min(float64(matched)/float64(len(lexicon)), 1.0)
}

// ScoreSentiment maps a classifier label to a polarity score where
// negative sentiment scores highest. Unknown labels score as neutral.
func ScoreSentiment(label string) float64 {
	if score, ok := sentimentScores[strings.ToLower(label)]; ok {
		return score
	}
	return unknownSentimentScore
}

// ScoreEmotion sums the anger, fear and sadness probabilities, capped at 1
func ScoreEmotion(dist EmotionDistribution) float64 {
	sum := 0.0
	for label, p := range dist {
		if _, ok := negativeEmotions[strings.ToLower(label)]; ok {
			sum += p
		}
	}
	// The three labels are scored independently and can add up past 1
	return math.Min(sum, 1.0)
}

// ComputePriority fuses the signal scores into a 0-100 priority.
// Rounding is half-up.
func ComputePriority(sentiment, emotion, urgency float64, vip bool) int {
	raw := urgency*urgencyWeight + emotion*emotionWeight + sentiment*sentimentWeight
	if vip {
		raw += vipBonus
	}
	raw = math.Min(raw, 1.0)

	return int(math.Floor(raw*100 + 0.5 + roundingEpsilon))
}

// BandFor classifies a priority score
func BandFor(score int) PriorityBand {
	switch {
	case score > highThreshold:
		return BandHigh
	case score > mediumThreshold:
		return BandMedium
	default:
		return BandLow
	}
}

// Evaluate runs the full scoring pipeline over already classified inputs
func Evaluate(in SignalInputs) *PriorityResult {
	sentiment := ScoreSentiment(in.SentimentLabel)
	emotion := ScoreEmotion(in.Emotions)
	urgency := ScoreUrgency(in.Text)
	score := ComputePriority(sentiment, emotion, urgency, in.VIP)

	return &PriorityResult{
		Score:          score,
		Band:           BandFor(score),
		Sentiment:      sentiment,
		Emotion:        emotion,
		Urgency:        urgency,
		VIP:            in.VIP,
		SentimentLabel: in.SentimentLabel,
	}
}
