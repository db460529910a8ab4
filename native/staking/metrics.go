package staking

import (
	"strconv"
	"strings"

	"nftstake/core/events"
	"nftstake/observability"
)

// ObserveCommitted feeds committed staking events into the staking metrics.
// It is meant to run on a bus subscription so only durable state is counted.
func ObserveCommitted(evt events.Event) {
	payload := events.ToTypes(evt)
	if !strings.HasPrefix(payload.Type, "stake.") {
		return
	}
	metrics := observability.Staking()
	metrics.RecordOperation(strings.TrimPrefix(payload.Type, "stake."))
	switch payload.Type {
	case events.TypeStakeNftStaked, events.TypeStakeNftUnstaked:
		if total, err := strconv.ParseUint(payload.Attributes["totalStaked"], 10, 64); err == nil {
			metrics.SetTotalStaked(total)
		}
	case events.TypeStakeRewardClaimed:
		if amount, err := strconv.ParseUint(payload.Attributes["amount"], 10, 64); err == nil {
			metrics.AddRewardsPaid(amount)
		}
	}
}
