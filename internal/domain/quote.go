package domain

import "time"

// Quote is the latest known market price for an instrument as pushed
// by the feed collaborator. Bid or Ask may be 0 when the feed does not
// carry that side; Last is always set.
type Quote struct {
	Symbol   string
	Bid      int64 // cents, 0 when unknown
	Ask      int64 // cents, 0 when unknown
	Last     int64 // cents
	FeedTime time.Time
}
