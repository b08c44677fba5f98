package membership

import "github.com/cuemby/compactord/pkg/compaction"

// Static is a fixed-membership implementation of coordinator.Membership
// for deployments that configure their tablet server list directly
// rather than discovering it through a cluster membership service.
// Removals are driven by calling Remove explicitly (an operator action,
// or a health-check loop layered on top); Static itself does no
// liveness detection.
type Static struct {
	live   map[compaction.TabletServerID]struct{}
	events chan Event
}

// NewStatic returns a Static membership view seeded with servers.
func NewStatic(servers ...compaction.TabletServerID) *Static {
	live := make(map[compaction.TabletServerID]struct{}, len(servers))
	for _, s := range servers {
		live[s] = struct{}{}
	}
	return &Static{live: live, events: make(chan Event, 16)}
}

// Live returns the currently configured tablet servers.
func (s *Static) Live() []compaction.TabletServerID {
	out := make([]compaction.TabletServerID, 0, len(s.live))
	for tsi := range s.live {
		out = append(out, tsi)
	}
	return out
}

// Events returns the channel the Reactor consumes removal events from.
// The QueuePoller reads only Live.
func (s *Static) Events() <-chan Event {
	return s.events
}

// Add adds tsi to the live set.
func (s *Static) Add(tsi compaction.TabletServerID) {
	s.live[tsi] = struct{}{}
}

// Remove removes tsi from the live set and emits a Deleted event.
func (s *Static) Remove(tsi compaction.TabletServerID) {
	delete(s.live, tsi)
	s.events <- Event{TServer: tsi, Deleted: true}
}
