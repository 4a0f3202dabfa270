// Package mental models a persona's mental state: mood, energy, focus, and
// whether it is awake or dreaming. State lives in the cache and follows
// last-writer-wins semantics.
package mental

// Mood labels a persona can be in. Content is the neutral default.
const (
	MoodHappy      = "happy"
	MoodContent    = "content"
	MoodThoughtful = "thoughtful"
	MoodMelancholy = "melancholy"
	MoodCurious    = "curious"
	MoodExcited    = "excited"
	MoodCalm       = "calm"
	MoodConcerned  = "concerned"
)

// DefaultMood is used when a mood is unknown or cannot be classified.
const DefaultMood = MoodContent

var moodValues = map[string]float64{
	MoodHappy:      0.85,
	MoodExcited:    0.9,
	MoodContent:    0.7,
	MoodCalm:       0.65,
	MoodCurious:    0.75,
	MoodThoughtful: 0.6,
	MoodMelancholy: 0.3,
	MoodConcerned:  0.4,
}

// ValidMoods returns the known mood labels.
func ValidMoods() []string {
	return []string{
		MoodHappy, MoodContent, MoodThoughtful, MoodMelancholy,
		MoodCurious, MoodExcited, MoodCalm, MoodConcerned,
	}
}

// NormalizeMood maps an arbitrary label to a known mood, falling back to
// the default for anything unrecognized.
func NormalizeMood(label string) string {
	if _, ok := moodValues[label]; ok {
		return label
	}
	return DefaultMood
}

// MoodValue maps a mood label onto the [0, 1] mood scale. Unknown labels
// sit slightly below neutral.
func MoodValue(label string) float64 {
	if v, ok := moodValues[label]; ok {
		return v
	}
	return 0.6
}

// MoodLabel maps a scalar mood back to the nearest coarse label.
func MoodLabel(value float64) string {
	switch {
	case value > 0.7:
		return MoodHappy
	case value > 0.5:
		return MoodContent
	case value > 0.3:
		return MoodThoughtful
	default:
		return MoodMelancholy
	}
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
