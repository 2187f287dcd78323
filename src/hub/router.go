package hub

import (
	"iter"
	"slices"

	"github.com/orchestra-mcp/chat/src/types"
)

// Router tracks room subscriptions in both directions:
// room -> handles for fan-out and handle -> rooms for disconnect cleanup.
// It is not safe for concurrent use; Hub serialises access.
type Router struct {
	rooms  map[string]map[types.Handle]struct{}
	joined map[types.Handle]map[string]struct{}
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{
		rooms:  make(map[string]map[types.Handle]struct{}),
		joined: make(map[types.Handle]map[string]struct{}),
	}
}

// Join subscribes h to room. It reports whether a new edge was added.
func (r *Router) Join(room string, h types.Handle) bool {
	subs := r.rooms[room]
	if subs == nil {
		subs = make(map[types.Handle]struct{})
		r.rooms[room] = subs
	}
	if _, ok := subs[h]; ok {
		return false
	}
	subs[h] = struct{}{}

	rooms := r.joined[h]
	if rooms == nil {
		rooms = make(map[string]struct{})
		r.joined[h] = rooms
	}
	rooms[room] = struct{}{}
	return true
}

// Leave removes the edge between room and h. It reports whether one existed.
func (r *Router) Leave(room string, h types.Handle) bool {
	subs, ok := r.rooms[room]
	if !ok {
		return false
	}
	if _, ok := subs[h]; !ok {
		return false
	}
	r.dropEdge(room, h)
	return true
}

// RemoveAllFor drops every edge of h and returns the rooms it had joined.
func (r *Router) RemoveAllFor(h types.Handle) []string {
	rooms := r.joined[h]
	if len(rooms) == 0 {
		delete(r.joined, h)
		return nil
	}
	left := make([]string, 0, len(rooms))
	for room := range rooms {
		left = append(left, room)
	}
	for _, room := range left {
		r.dropEdge(room, h)
	}
	return left
}

// SubscribersOf returns a snapshot of the handles subscribed to room.
// The sequence can be ranged over any number of times and never reflects
// changes made after the call.
func (r *Router) SubscribersOf(room string) iter.Seq[types.Handle] {
	subs := r.rooms[room]
	snapshot := make([]types.Handle, 0, len(subs))
	for h := range subs {
		snapshot = append(snapshot, h)
	}
	return slices.Values(snapshot)
}

// IsJoined reports whether h is subscribed to room.
func (r *Router) IsJoined(room string, h types.Handle) bool {
	_, ok := r.joined[h][room]
	return ok
}

// RoomsOf returns the rooms h has joined.
func (r *Router) RoomsOf(h types.Handle) []string {
	rooms := r.joined[h]
	out := make([]string, 0, len(rooms))
	for room := range rooms {
		out = append(out, room)
	}
	slices.Sort(out)
	return out
}

// Rooms returns each active room with its subscriber count.
func (r *Router) Rooms() map[string]int {
	out := make(map[string]int, len(r.rooms))
	for room, subs := range r.rooms {
		out[room] = len(subs)
	}
	return out
}

func (r *Router) dropEdge(room string, h types.Handle) {
	if subs, ok := r.rooms[room]; ok {
		delete(subs, h)
		if len(subs) == 0 {
			delete(r.rooms, room)
		}
	}
	if rooms, ok := r.joined[h]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.joined, h)
		}
	}
}
