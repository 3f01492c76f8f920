package ws

// Presence announces online and offline transitions through the registry.
type Presence struct {
	registry *Registry
}

// Join records the identity in the registry, replies to the joining client
// with the current online snapshot, and broadcasts an online event to every
// other live connection. The snapshot is taken before the broadcast goes out,
// so the requester sees itself exactly once; exact consistency under
// concurrent joins is best effort.
func (p *Presence) Join(c *Client, identity string) {
	p.registry.Join(identity, c)

	snapshot := p.registry.Snapshot()
	if data, err := marshalEvent(EventOnlineSnapshot, SnapshotPayload{OnlineIdentities: snapshot}); err == nil {
		c.enqueue(data)
	}

	p.broadcastExcept(c, EventOnline, PresencePayload{Identity: identity})
}

// Left removes the handle's registry entry and reports the identity it
// carried. When the handle carried an identity an offline event goes to every
// other live connection; a handle that disconnected before joining, or whose
// mapping was already taken over by a newer connection, produces no
// broadcast.
func (p *Presence) Left(c *Client) (string, bool) {
	identity, ok := p.registry.Leave(c)
	if !ok {
		return "", false
	}
	p.broadcastExcept(c, EventOffline, PresencePayload{Identity: identity})
	return identity, true
}

func (p *Presence) broadcastExcept(except *Client, t EventType, payload any) {
	data, err := marshalEvent(t, payload)
	if err != nil {
		return
	}
	for _, peer := range p.registry.peers(except) {
		peer.enqueue(data)
	}
}
