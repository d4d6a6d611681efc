package session

import "github.com/otherjamesbrown/meetchat/pkg/chat"

// DeltaKind is the kind of a streamed change to the assistant message.
type DeltaKind int

const (
	// DeltaText appends text to the assistant message.
	DeltaText DeltaKind = iota
	// DeltaPart appends a part.
	DeltaPart
	// DeltaDone completes the turn.
	DeltaDone
	// DeltaFail ends the turn with an explanation.
	DeltaFail
)

// Delta is one ordered change to the in-flight assistant message of a turn.
type Delta struct {
	Turn uint64
	Kind DeltaKind
	Text string
	Part chat.Part
	Err  error
}

// TextDelta returns a DeltaText.
func TextDelta(turn uint64, text string) Delta {
	return Delta{Turn: turn, Kind: DeltaText, Text: text}
}

// PartDelta returns a DeltaPart.
func PartDelta(turn uint64, p chat.Part) Delta {
	return Delta{Turn: turn, Kind: DeltaPart, Part: p}
}

// DoneDelta returns a DeltaDone.
func DoneDelta(turn uint64) Delta {
	return Delta{Turn: turn, Kind: DeltaDone}
}

// FailDelta returns a DeltaFail. text is shown to the user; err is logged.
func FailDelta(turn uint64, text string, err error) Delta {
	return Delta{Turn: turn, Kind: DeltaFail, Text: text, Err: err}
}
