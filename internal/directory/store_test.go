package directory

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"amora-realtime/internal/domain"
)

// fakeConn is a minimal Conn for store tests.
type fakeConn struct {
	name string
}

func (f *fakeConn) Send(event string, data any) error { return nil }

// TestRegisterLookup tests that a registered handle resolves until replaced.
func TestRegisterLookup(t *testing.T) {
	store := NewInMemoryStore()
	conn := &fakeConn{name: "a"}

	store.Register("alice", conn)

	got, ok := store.Lookup("alice")
	assert.True(t, ok)
	assert.Same(t, conn, got)

	presence := store.Presence("alice")
	assert.True(t, presence.Online)
	assert.WithinDuration(t, time.Now().UTC(), presence.LastSeen, time.Second)
}

// TestRegister_LastConnectWins tests that a reconnect overwrites the old handle.
func TestRegister_LastConnectWins(t *testing.T) {
	store := NewInMemoryStore()
	first := &fakeConn{name: "first"}
	second := &fakeConn{name: "second"}

	store.Register("alice", first)
	store.Register("alice", second)

	got, ok := store.Lookup("alice")
	assert.True(t, ok)
	assert.Same(t, second, got)
}

// TestUnregister tests that disconnect marks the user offline with a lastSeen stamp.
func TestUnregister(t *testing.T) {
	store := NewInMemoryStore()
	conn := &fakeConn{}

	store.Register("alice", conn)
	store.Unregister("alice", conn)

	_, ok := store.Lookup("alice")
	assert.False(t, ok)

	presence := store.Presence("alice")
	assert.False(t, presence.Online)
	assert.WithinDuration(t, time.Now().UTC(), presence.LastSeen, time.Second)
}

// TestUnregister_StaleConnection tests that an old connection's teardown does
// not evict the handle that replaced it.
func TestUnregister_StaleConnection(t *testing.T) {
	store := NewInMemoryStore()
	old := &fakeConn{name: "old"}
	replacement := &fakeConn{name: "new"}

	store.Register("alice", old)
	store.Register("alice", replacement)
	store.Unregister("alice", old)

	got, ok := store.Lookup("alice")
	assert.True(t, ok)
	assert.Same(t, replacement, got)
	assert.True(t, store.Presence("alice").Online)
}

// TestPresence_UnknownUser tests the zero value for never-seen users.
func TestPresence_UnknownUser(t *testing.T) {
	store := NewInMemoryStore()

	presence := store.Presence("ghost")
	assert.False(t, presence.Online)
	assert.True(t, presence.LastSeen.IsZero())
}

// TestOnlineUsers tests the connected-user listing.
func TestOnlineUsers(t *testing.T) {
	store := NewInMemoryStore()
	store.Register("alice", &fakeConn{})
	store.Register("bob", &fakeConn{})
	store.Unregister("bob", nil)

	users := store.OnlineUsers()
	assert.Equal(t, []string{"alice"}, users)
}

// TestSessions tests put/get/delete on directed session keys.
func TestSessions(t *testing.T) {
	store := NewInMemoryStore()
	session := domain.CallSession{CallID: "c1", From: "alice", To: "bob"}

	store.PutSession(session)

	got, ok := store.Session(domain.SessionKey("alice", "bob"))
	assert.True(t, ok)
	assert.Equal(t, "c1", got.CallID)

	// Reverse direction is a distinct attempt.
	_, ok = store.Session(domain.SessionKey("bob", "alice"))
	assert.False(t, ok)

	store.DeleteSession(domain.SessionKey("alice", "bob"))
	_, ok = store.Session(domain.SessionKey("alice", "bob"))
	assert.False(t, ok)
}

// TestSessions_LastWriteWins tests that concurrent invites for the same pair
// overwrite rather than error.
func TestSessions_LastWriteWins(t *testing.T) {
	store := NewInMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			store.PutSession(domain.CallSession{CallID: "c", From: "alice", To: "bob"})
		}(i)
	}
	wg.Wait()

	got, ok := store.Session(domain.SessionKey("alice", "bob"))
	assert.True(t, ok)
	assert.Equal(t, "alice", got.From)
	assert.Equal(t, "bob", got.To)
}
