package quiz

// AdaptiveConfig holds the tunable constants of the leveling policy.
type AdaptiveConfig struct {
	// PromotionStreak is how many consecutive correct answers earn a
	// Bloom-level promotion.
	PromotionStreak int
	// MasteryWeight is the EWMA weight given to the newest answer when
	// updating a topic's mastery estimate.
	MasteryWeight float64
	// NeutralMastery seeds an unseen topic; no prior signal, not zero.
	NeutralMastery float64
}

// DefaultAdaptiveConfig returns the tuned production constants.
func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{
		PromotionStreak: 2,
		MasteryWeight:   0.3,
		NeutralMastery:  0.5,
	}
}

func (c AdaptiveConfig) normalized() AdaptiveConfig {
	if c.PromotionStreak < 1 {
		c.PromotionStreak = DefaultAdaptiveConfig().PromotionStreak
	}
	if c.MasteryWeight <= 0 || c.MasteryWeight > 1 {
		c.MasteryWeight = DefaultAdaptiveConfig().MasteryWeight
	}
	if c.NeutralMastery < 0 || c.NeutralMastery > 1 {
		c.NeutralMastery = DefaultAdaptiveConfig().NeutralMastery
	}
	return c
}

// NextBloomLevel computes the level and promotion-tracking streak after one
// answer. Pure and deterministic: identical inputs always yield identical
// outputs, and the returned level is always within [MinBloomLevel, MaxBloomLevel]
// regardless of input magnitude.
//
// A correct answer extends the streak; reaching the promotion threshold
// advances the level and resets the streak counter. Any incorrect answer
// resets the streak and demotes one level. Single answers never promote, so
// one lucky guess cannot cause oscillation.
func NextBloomLevel(cfg AdaptiveConfig, currentBloom int, isCorrect bool, streak int) (nextBloom, nextStreak int) {
	cfg = cfg.normalized()
	currentBloom = ClampBloomLevel(currentBloom)
	if streak < 0 {
		streak = 0
	}

	if !isCorrect {
		return ClampBloomLevel(currentBloom - 1), 0
	}

	nextStreak = streak + 1
	if nextStreak >= cfg.PromotionStreak {
		return ClampBloomLevel(currentBloom + 1), 0
	}
	return currentBloom, nextStreak
}

// UpdateTopicMastery folds one answer outcome into the per-topic mastery
// estimate and returns a fresh map; the input map is never mutated. Mastery
// is an exponentially-weighted correctness average bounded in [0,1], seeded
// at the neutral default for a topic with no history.
func UpdateTopicMastery(cfg AdaptiveConfig, mastery map[string]float64, topic string, isCorrect bool) map[string]float64 {
	cfg = cfg.normalized()

	next := make(map[string]float64, len(mastery)+1)
	for t, v := range mastery {
		next[t] = clamp01(v)
	}

	prev, ok := next[topic]
	if !ok {
		prev = cfg.NeutralMastery
	}
	target := 0.0
	if isCorrect {
		target = 1.0
	}
	next[topic] = clamp01(prev + cfg.MasteryWeight*(target-prev))
	return next
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
