package ws

import (
	"sort"
	"sync"
)

// Registry owns the process-wide mapping between user identities and live
// connections. At any instant each identity maps to at most one handle (the
// most recent join wins) and each handle carries at most one identity. State
// is never persisted; after a restart every client re-joins.
type Registry struct {
	mu         sync.Mutex
	byIdentity map[string]*Client
	byClient   map[*Client]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byIdentity: make(map[string]*Client),
		byClient:   make(map[*Client]string),
	}
}

// Join registers the live handle for an identity, silently replacing any
// previous handle. The replaced handle, if any, is returned; it keeps its
// underlying connection until its own close event fires, but it no longer
// owns the identity so its eventual Leave is a no-op.
func (r *Registry) Join(identity string, c *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byClient[c]; ok {
		if prev == identity {
			return nil
		}
		if r.byIdentity[prev] == c {
			delete(r.byIdentity, prev)
		}
	}

	var replaced *Client
	if old, ok := r.byIdentity[identity]; ok && old != c {
		replaced = old
		delete(r.byClient, old)
	}

	r.byIdentity[identity] = c
	r.byClient[c] = identity
	return replaced
}

// Leave removes the mapping owned by this handle and reports the identity it
// carried. Disconnect of an unjoined or already-replaced handle returns
// ok=false; that is a normal event, not an error.
func (r *Registry) Leave(c *Client) (identity string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok = r.byClient[c]
	if !ok {
		return "", false
	}
	delete(r.byClient, c)
	if r.byIdentity[identity] == c {
		delete(r.byIdentity, identity)
	}
	return identity, true
}

// Lookup returns the authoritative live handle for an identity.
func (r *Registry) Lookup(identity string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byIdentity[identity]
	return c, ok
}

// Snapshot returns the set of identities currently online, sorted for
// deterministic output.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	identities := make([]string, 0, len(r.byIdentity))
	for identity := range r.byIdentity {
		identities = append(identities, identity)
	}
	r.mu.Unlock()

	sort.Strings(identities)
	return identities
}

// peers returns every joined handle except the given one. Kept internal so
// iteration over live connections never leaves this package.
func (r *Registry) peers(except *Client) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	peers := make([]*Client, 0, len(r.byIdentity))
	for _, c := range r.byIdentity {
		if c != except {
			peers = append(peers, c)
		}
	}
	return peers
}
