package hub

import (
	"sync"

	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/metrics"
)

// room tracks which connections of which users are inside one room. A user
// counts once for membership no matter how many connections they joined on.
type room struct {
	mu      sync.Mutex
	key     roomKey
	members map[int64]map[string]struct{} // userID -> connIDs
	gone    bool
}

func (r *room) memberIDs() []int64 {
	ids := make([]int64, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	return ids
}

// Directory is the in-memory index of live rooms. Rooms appear on first join
// and are reclaimed synchronously on the leave that empties them; the
// directory mutex only guards the map, each room carries its own lock so
// unrelated rooms never block each other.
type Directory struct {
	mu    sync.RWMutex
	rooms map[roomKey]*room
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{rooms: make(map[roomKey]*room)}
}

func (d *Directory) get(key roomKey) *room {
	d.mu.RLock()
	r := d.rooms[key]
	d.mu.RUnlock()
	return r
}

func (d *Directory) getOrCreate(key roomKey) *room {
	d.mu.RLock()
	r := d.rooms[key]
	d.mu.RUnlock()
	if r != nil {
		return r
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if r = d.rooms[key]; r == nil {
		r = &room{key: key, members: make(map[int64]map[string]struct{})}
		d.rooms[key] = r
	}
	return r
}

// JoinConn adds a connection to the room. newUser is true when this is the
// user's first connection in the room; members is the user id list after the
// join.
func (d *Directory) JoinConn(kind RoomKind, roomID string, userID int64, connID string) (newUser bool, members []int64) {
	key := roomKey{Kind: kind, ID: roomID}
	for {
		r := d.getOrCreate(key)
		r.mu.Lock()
		if r.gone {
			r.mu.Unlock()
			continue
		}
		conns, ok := r.members[userID]
		if !ok {
			conns = make(map[string]struct{})
			r.members[userID] = conns
			newUser = true
			metrics.AddRoomMembers(string(kind), 1)
		}
		conns[connID] = struct{}{}
		members = r.memberIDs()
		r.mu.Unlock()
		return newUser, members
	}
}

// LeaveConn removes one connection from the room. userLeft is true when that
// was the user's last connection in the room; remaining lists the user ids
// still present. The room entry is deleted when the member set empties.
func (d *Directory) LeaveConn(kind RoomKind, roomID string, userID int64, connID string) (userLeft bool, remaining []int64) {
	key := roomKey{Kind: kind, ID: roomID}
	r := d.get(key)
	if r == nil {
		return false, nil
	}

	r.mu.Lock()
	conns, ok := r.members[userID]
	if !ok {
		remaining = r.memberIDs()
		r.mu.Unlock()
		return false, remaining
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.members, userID)
		userLeft = true
		metrics.AddRoomMembers(string(kind), -1)
	}
	empty := len(r.members) == 0
	if empty {
		r.gone = true
	}
	remaining = r.memberIDs()
	r.mu.Unlock()

	if empty {
		d.mu.Lock()
		if d.rooms[key] == r {
			delete(d.rooms, key)
		}
		d.mu.Unlock()
	}
	return userLeft, remaining
}

// Members snapshots the user ids currently in the room.
func (d *Directory) Members(kind RoomKind, roomID string) []int64 {
	r := d.get(roomKey{Kind: kind, ID: roomID})
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gone {
		return nil
	}
	return r.memberIDs()
}

// Contains reports whether the user is currently a member of the room.
func (d *Directory) Contains(kind RoomKind, roomID string, userID int64) bool {
	r := d.get(roomKey{Kind: kind, ID: roomID})
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[userID]
	return ok && !r.gone
}

// RoomCount reports how many rooms are live, for tests and introspection.
func (d *Directory) RoomCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}
