package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bvisser/relogin/internal/dialect"
)

func TestRegistrySessions(t *testing.T) {
	r := NewRegistry()

	s := newSession("user1", dialect.Mobile, ModeFull, nil, nil, "")
	r.Register(s)

	assert.Equal(t, s, r.Get(s.ID))
	assert.Len(t, r.ListAll(), 1)

	r.Remove(s.ID)
	assert.Nil(t, r.Get(s.ID))
	assert.Empty(t, r.ListAll())

	// Removing twice is fine.
	r.Remove(s.ID)
}

func TestTakePending(t *testing.T) {
	r := NewRegistry()

	p := &Pending{SessionID: "sid-1", Identity: "user1", Dialect: dialect.Mobile, SuspendedAt: time.Now()}
	r.AddPending(p, 0, nil)

	got, ok := r.TakePending("sid-1")
	require.True(t, ok)
	assert.Equal(t, "sid-1", got.SessionID)

	_, ok = r.TakePending("sid-1")
	assert.False(t, ok, "a taken record must be gone")
}

func TestTakePendingSingleWinner(t *testing.T) {
	r := NewRegistry()
	r.AddPending(&Pending{SessionID: "sid-1"}, 0, nil)

	const racers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := r.TakePending("sid-1"); ok {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	assert.Equal(t, 1, count, "exactly one taker may win the record")
}

func TestPendingExpiry(t *testing.T) {
	r := NewRegistry()

	expired := make(chan *Pending, 1)
	r.AddPending(&Pending{SessionID: "sid-1"}, 20*time.Millisecond, func(p *Pending) {
		expired <- p
	})

	select {
	case p := <-expired:
		assert.Equal(t, "sid-1", p.SessionID)
	case <-time.After(time.Second):
		t.Fatal("expiry callback never fired")
	}

	_, ok := r.TakePending("sid-1")
	assert.False(t, ok, "expiry must consume the record")
}

func TestPendingExpiryLosesToTake(t *testing.T) {
	r := NewRegistry()

	expired := make(chan struct{}, 1)
	r.AddPending(&Pending{SessionID: "sid-1"}, 30*time.Millisecond, func(*Pending) {
		expired <- struct{}{}
	})

	_, ok := r.TakePending("sid-1")
	require.True(t, ok)

	select {
	case <-expired:
		t.Fatal("expiry fired after the record was taken")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestListPending(t *testing.T) {
	r := NewRegistry()
	r.AddPending(&Pending{SessionID: "a", Identity: "u1"}, 0, nil)
	r.AddPending(&Pending{SessionID: "b", Identity: "u2"}, 0, nil)

	list := r.ListPending()
	assert.Len(t, list, 2)

	ids := []string{list[0].SessionID, list[1].SessionID}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestSessionIDUnique(t *testing.T) {
	a := NewSessionID("user@x.com", dialect.Mobile, ModeFull)
	b := NewSessionID("user@x.com", dialect.Mobile, ModeFull)
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "user%40x.com.mobile.full.")
}
