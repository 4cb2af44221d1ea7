package domain

// Channel is the delivery medium of a notification.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelBoth  Channel = "both"
	// ChannelNone is never stored; it signals that preference filtering
	// left no channel and the request must be skipped.
	ChannelNone Channel = "none"
)

// Valid reports whether the channel may be requested by a producer.
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelPush || c == ChannelBoth
}

// IncludesEmail reports whether the channel has an email leg.
func (c Channel) IncludesEmail() bool {
	return c == ChannelEmail || c == ChannelBoth
}

// IncludesPush reports whether the channel has a push leg.
func (c Channel) IncludesPush() bool {
	return c == ChannelPush || c == ChannelBoth
}
