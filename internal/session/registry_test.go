package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/wagate/internal/errs"
)

func TestRegistryCreateRefusesDuplicates(t *testing.T) {
	r := NewRegistry(5)
	s, err := r.Create("i1", "first")
	require.NoError(t, err)
	assert.Equal(t, "i1", s.ID())
	assert.Equal(t, Disconnected, s.Snapshot().Status)

	_, err = r.Create("i1", "again")
	assert.True(t, errs.Is(err, errs.KindAlreadyExists))

	_, err = r.Create("", "anonymous")
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestRegistryEnforcesCapacity(t *testing.T) {
	r := NewRegistry(2)
	_, err := r.Create("a", "")
	require.NoError(t, err)
	_, err = r.Create("b", "")
	require.NoError(t, err)
	_, err = r.Create("c", "")
	assert.True(t, errs.Is(err, errs.KindCapacity))

	assert.True(t, r.Remove("a"))
	assert.False(t, r.Remove("a"))
	_, err = r.Create("c", "")
	assert.NoError(t, err)
}

func TestRegistryConcurrentCreate(t *testing.T) {
	r := NewRegistry(10)
	var ok int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := r.Create(fmt.Sprintf("i%d", i%20), ""); err == nil {
				atomic.AddInt32(&ok, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 10, ok)
	assert.Equal(t, 10, r.Len())
	assert.Len(t, r.List(), 10)
	assert.Equal(t, 10, r.Counts()["disconnected"])
}

func TestSessionTransitionsAreGuarded(t *testing.T) {
	s := newSession("i1", "")

	_, ok := s.consumed(0)
	assert.False(t, ok, "consumed requires AwaitingPairing")
	_, _, ok = s.connected(0, "x")
	assert.False(t, ok, "connected requires a connect attempt")

	gen, from, ok := s.beginConnect()
	require.True(t, ok)
	assert.Equal(t, Disconnected, from)

	_, _, ok = s.beginConnect()
	assert.False(t, ok, "second connect while connecting")

	_, ok = s.challenge(gen+1, "stale")
	assert.False(t, ok, "stale generation")

	_, ok = s.challenge(gen, "img")
	require.True(t, ok)
	assert.Equal(t, "img", s.Snapshot().PairingArtifact)

	_, account, ok := s.connected(gen, "6281234")
	require.True(t, ok)
	assert.Equal(t, "6281234", account)
	assert.Empty(t, s.Snapshot().PairingArtifact)

	_, ok = s.challenge(gen, "late")
	assert.False(t, ok, "no pairing once connected")

	from, _, ok = s.closed(gen)
	require.True(t, ok)
	assert.Equal(t, Connected, from)

	gen2, _, ok := s.beginConnect()
	require.True(t, ok)
	_, account, ok = s.connected(gen2, "other")
	require.True(t, ok)
	assert.Equal(t, "6281234", account, "account identifier is set once")

	_, _, ok = s.terminate()
	require.True(t, ok)
	_, _, ok = s.beginConnect()
	assert.False(t, ok, "removed sessions never reconnect")
	assert.False(t, s.reconnectable())
}
