package model

import "github.com/rotisserie/eris"

// Channel is a delivery channel for a routed prompt.
type Channel string

const (
	ChannelWeb    Channel = "web"
	ChannelAgent  Channel = "agent"
	ChannelAsk    Channel = "ask"
	ChannelDirect Channel = "direct"
)

// AllChannels returns the four routing channels in declaration order.
func AllChannels() []Channel {
	return []Channel{ChannelWeb, ChannelAgent, ChannelAsk, ChannelDirect}
}

// tieRank orders channels for deterministic tie-breaking. Lower wins.
var tieRank = map[Channel]int{
	ChannelAsk:    0,
	ChannelDirect: 1,
	ChannelAgent:  2,
	ChannelWeb:    3,
}

// TieRank returns the tie-break rank for the channel (ask beats direct
// beats agent beats web). Unknown channels sort last.
func (c Channel) TieRank() int {
	if r, ok := tieRank[c]; ok {
		return r
	}
	return len(tieRank)
}

// Valid reports whether c is one of the four routing channels.
func (c Channel) Valid() bool {
	_, ok := tieRank[c]
	return ok
}

// ParseChannel converts a wire string into a Channel.
func ParseChannel(s string) (Channel, error) {
	c := Channel(s)
	if !c.Valid() {
		return "", eris.Errorf("model: unknown channel %q", s)
	}
	return c, nil
}

// ScoreItem is one entry in a channel ranking.
type ScoreItem struct {
	Channel Channel `json:"route"`
	Score   float64 `json:"score"`
}
