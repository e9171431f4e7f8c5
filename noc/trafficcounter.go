package noc

import "github.com/sarchlab/cohsim/instrumentation/hooking"

// A TrafficCounter counts messages sent over a network, split by size.
type TrafficCounter struct {
	TotalData uint64
	BySize    map[int]uint64
}

// NewTrafficCounter creates an empty TrafficCounter.
func NewTrafficCounter() *TrafficCounter {
	return &TrafficCounter{BySize: make(map[int]uint64)}
}

// Func adds the sent traffic to the counter.
func (c *TrafficCounter) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosNetSend {
		return
	}

	msg := ctx.Item.(*Message)
	c.TotalData += uint64(msg.Size)
	c.BySize[msg.Size]++
}
