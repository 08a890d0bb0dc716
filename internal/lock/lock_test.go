package lock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coredb-io/polystore/internal/perr"
)

func TestManagerSharedAndExclusive(t *testing.T) {
	m := NewManager()

	require.NoError(t, m.Lock(1, []Request{{Entity: 10, Mode: Shared}}))
	require.NoError(t, m.Lock(2, []Request{{Entity: 10, Mode: Shared}}))

	done := make(chan error, 1)
	go func() {
		done <- m.Lock(3, []Request{{Entity: 10, Mode: Exclusive}})
	}()

	select {
	case err := <-done:
		t.Fatalf("exclusive lock granted while shared holders remain: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	m.RemoveTransaction(1)
	m.RemoveTransaction(2)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("exclusive lock never granted after shared holders released")
	}
}

func TestManagerUpgradeInPlace(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Lock(1, []Request{{Entity: 10, Mode: Shared}}))
	require.NoError(t, m.Lock(1, []Request{{Entity: 10, Mode: Exclusive}}))
}

// TestManagerDeadlockVictimIsCurrentRequester reproduces the classic
// two-transaction cycle: txn 1 holds A and waits on B, txn 2 holds B and
// waits on A. The transaction that discovers the cycle aborts itself;
// the other proceeds once the victim releases its locks.
func TestManagerDeadlockVictimIsCurrentRequester(t *testing.T) {
	m := NewManager()

	const entityA, entityB = int64(100), int64(200)
	const txn1, txn2 = int64(1), int64(2)

	require.NoError(t, m.Lock(txn1, []Request{{Entity: entityA, Mode: Exclusive}}))
	require.NoError(t, m.Lock(txn2, []Request{{Entity: entityB, Mode: Exclusive}}))

	txn1Err := make(chan error, 1)
	go func() {
		txn1Err <- m.Lock(txn1, []Request{{Entity: entityB, Mode: Exclusive}})
	}()

	// Give txn1's goroutine time to block on B and record the wait-for
	// edge before txn2 requests A and closes the cycle.
	time.Sleep(50 * time.Millisecond)

	err := m.Lock(txn2, []Request{{Entity: entityA, Mode: Exclusive}})
	require.Error(t, err)
	require.True(t, perr.IsDeadlock(err))

	// txn2 is the victim: it must release what it held and forget its
	// waits so txn1 can make progress.
	m.RemoveTransaction(txn2)

	select {
	case err := <-txn1Err:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("txn1 never unblocked after the deadlock victim released its locks")
	}

	m.RemoveTransaction(txn1)
}
