// Package frequency turns per-channel posting frequencies and a campaign's
// phase timeline into total post counts.
package frequency

import (
	"math"

	"github.com/kingrea/ideaboard/internal/idea"
)

const (
	daysPerWeek  = 7
	daysPerMonth = 30

	// defaultValue stands in for a missing base frequency so an unset
	// channel never zeroes the campaign total.
	defaultValue = 1.0
)

// PhaseDurationDays converts a phase duration to days. Durations below one
// count as a single unit, so an unvalidated phase still lasts at least a day.
func PhaseDurationDays(phase idea.PhaseDefinition) int {
	value := max(phase.DurationValue, 1)
	switch phase.DurationUnit {
	case idea.DurationWeeks:
		return value * daysPerWeek
	case idea.DurationMonths:
		return value * daysPerMonth
	default:
		return value
	}
}

// CampaignDays is the total campaign length in days.
func CampaignDays(phases []idea.PhaseDefinition) int {
	total := 0
	for _, phase := range phases {
		total += PhaseDurationDays(phase)
	}
	return total
}

// DailyRate converts a frequency to posts per day.
func DailyRate(value float64, unit idea.FrequencyUnit) float64 {
	switch unit {
	case idea.PostsPerWeek:
		return value / daysPerWeek
	case idea.PostsPerMonth:
		return value / daysPerMonth
	default:
		return value
	}
}

// Rate is the frequency in effect for one phase.
type Rate struct {
	Value      float64
	Unit       idea.FrequencyUnit
	Overridden bool
}

// EffectiveRate resolves the frequency for a phase: the phase override when
// present, otherwise the channel base.
func EffectiveRate(channel idea.ChannelFrequency, phaseID string) Rate {
	if o, ok := channel.Override(phaseID); ok {
		value := defaultValue
		if o.FrequencyValue != nil {
			value = *o.FrequencyValue
		} else if channel.BaseFrequencyValue != nil {
			value = *channel.BaseFrequencyValue
		}
		unit := o.FrequencyUnit
		if unit == "" {
			unit = baseUnit(channel)
		}
		return Rate{Value: value, Unit: unit, Overridden: true}
	}
	value := defaultValue
	if channel.BaseFrequencyValue != nil {
		value = *channel.BaseFrequencyValue
	}
	return Rate{Value: value, Unit: baseUnit(channel)}
}

func baseUnit(channel idea.ChannelFrequency) idea.FrequencyUnit {
	if channel.BaseFrequencyUnit == "" {
		return idea.PostsPerWeek
	}
	return channel.BaseFrequencyUnit
}

// PhasePosts is one phase's un-rounded contribution to a channel total.
type PhasePosts struct {
	PhaseID string
	Days    int
	Rate    Rate
	Posts   float64
}

// Breakdown returns the fractional posts each phase contributes.
func Breakdown(channel idea.ChannelFrequency, phases []idea.PhaseDefinition) []PhasePosts {
	out := make([]PhasePosts, 0, len(phases))
	for _, phase := range phases {
		rate := EffectiveRate(channel, phase.ID)
		days := PhaseDurationDays(phase)
		out = append(out, PhasePosts{
			PhaseID: phase.ID,
			Days:    days,
			Rate:    rate,
			Posts:   DailyRate(rate.Value, rate.Unit) * float64(days),
		})
	}
	return out
}

// TotalPosts sums every phase's contribution and rounds up once at the end.
func TotalPosts(channel idea.ChannelFrequency, phases []idea.PhaseDefinition) int {
	sum := 0.0
	for _, p := range Breakdown(channel, phases) {
		sum += p.Posts
	}
	return int(math.Ceil(sum))
}
