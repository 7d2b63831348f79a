package enums

import (
	"fmt"
	"strings"
)

// ChangeType classifies a ledger mutation in the change log.
type ChangeType string

const (
	ChangeTypeAvailability ChangeType = "availability"
	ChangeTypeRate         ChangeType = "rate"
	ChangeTypeOpenFlag     ChangeType = "open_flag"
)

var validChangeTypes = []ChangeType{
	ChangeTypeAvailability,
	ChangeTypeRate,
	ChangeTypeOpenFlag,
}

// IsValid reports whether the value matches a known change type.
func (c ChangeType) IsValid() bool {
	for _, candidate := range validChangeTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseChangeType converts raw input into a ChangeType.
func ParseChangeType(value string) (ChangeType, error) {
	for _, candidate := range validChangeTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid change type %q", value)
}

// MutationSource identifies who last touched an inventory day: "manual",
// "reconciliation", or "channel:<id>".
type MutationSource string

const (
	SourceManual         MutationSource = "manual"
	SourceReconciliation MutationSource = "reconciliation"

	channelSourcePrefix = "channel:"
)

// SourceChannel builds the mutation source for a specific channel.
func SourceChannel(ch Channel) MutationSource {
	return MutationSource(channelSourcePrefix + string(ch))
}

// Channel extracts the originating channel, if the source is channel-scoped.
func (s MutationSource) Channel() (Channel, bool) {
	raw, found := strings.CutPrefix(string(s), channelSourcePrefix)
	if !found {
		return "", false
	}
	ch, err := ParseChannel(raw)
	if err != nil {
		return "", false
	}
	return ch, true
}

// IsValid reports whether the source is manual, reconciliation, or a valid
// channel reference.
func (s MutationSource) IsValid() bool {
	if s == SourceManual || s == SourceReconciliation {
		return true
	}
	_, ok := s.Channel()
	return ok
}

func (s MutationSource) String() string {
	return string(s)
}
