package core

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const (
	testWaitTimeout = 150 * time.Millisecond
	testSyncTimeout = 50 * time.Millisecond
)

func newTestRoom(t *testing.T, size int) (*Room, *User) {
	t.Helper()
	owner, err := NewUser("owner")
	require.NoError(t, err)
	room, err := NewRoom("v1", owner, "testroom", size, time.Minute, time.Minute)
	require.NoError(t, err)
	return room, owner
}

func mustJoin(t *testing.T, room *Room, name string) *User {
	t.Helper()
	u, err := NewUser(name)
	require.NoError(t, err)
	require.NoError(t, room.Join("v1", u))
	return u
}

func TestNewRoomValidatesVersionAndSize(t *testing.T) {
	owner, err := NewUser("owner")
	require.NoError(t, err)

	_, err = NewRoom("", owner, "room", 2, time.Minute, time.Minute)
	require.Error(t, err)

	_, err = NewRoom("v1", owner, "room", 1, time.Minute, time.Minute)
	require.Error(t, err, "size=1 must fail validation")

	_, err = NewRoom("v1", owner, "room", 5, time.Minute, time.Minute)
	require.Error(t, err, "size=5 must fail validation")

	room, err := NewRoom("v1", owner, "room", 2, time.Minute, time.Minute)
	require.NoError(t, err)
	require.Equal(t, owner.ID, mustOwnerID(t, room))
}

func mustOwnerID(t *testing.T, room *Room) uuid.UUID {
	t.Helper()
	o, err := room.Owner()
	require.NoError(t, err)
	return o.ID
}

func TestRoomJoinRejectsVersionMismatch(t *testing.T) {
	room, _ := newTestRoom(t, 2)
	u, _ := NewUser("bob")
	require.Error(t, room.Join("v2", u))
}

func TestRoomJoinRejectsWhenFull(t *testing.T) {
	room, _ := newTestRoom(t, 2)
	mustJoin(t, room, "bob")

	u, _ := NewUser("carol")
	require.Error(t, room.Join("v1", u))
}

func TestRoomJoinRejectsDuplicateID(t *testing.T) {
	room, owner := newTestRoom(t, 2)
	require.Error(t, room.Join("v1", owner))
}

func TestRoomJoinRejectsAfterGameStarted(t *testing.T) {
	room, _ := newTestRoom(t, 2)
	mustJoin(t, room, "bob")
	require.NoError(t, room.StartGame())

	u, _ := NewUser("carol")
	require.Error(t, room.Join("v1", u))
}

func TestStartGameRequiresTwoUsers(t *testing.T) {
	room, _ := newTestRoom(t, 4)
	require.Error(t, room.StartGame(), "one user must fail")

	mustJoin(t, room, "bob")
	require.NoError(t, room.StartGame())
	require.Error(t, room.StartGame(), "second start_game must fail")
}

func TestIsAvailable(t *testing.T) {
	room, _ := newTestRoom(t, 2)
	require.True(t, room.IsAvailable(), "lobby with 1 user is available")

	past, err := NewRoom("v1", mustNewUser(t), "room", 2, -time.Minute, time.Minute)
	require.NoError(t, err)
	require.False(t, past.IsAvailable(), "expired room is not available")
}

func mustNewUser(t *testing.T) *User {
	t.Helper()
	u, err := NewUser("owner")
	require.NoError(t, err)
	return u
}

func TestKickExpired(t *testing.T) {
	room, _ := newTestRoom(t, 4)
	mustJoin(t, room, "bob")

	n := room.KickExpired(0)
	require.Equal(t, 2, n, "kick_expired(0) kicks everyone on the next tick")
	require.Equal(t, 0, room.CountUsers())
}

// Scenario 1 (spec end-to-end): two-player happy path.
func TestSyncTwoPlayerHappyPath(t *testing.T) {
	room, owner := newTestRoom(t, 2)
	bob := mustJoin(t, room, "bob")
	require.NoError(t, room.StartGame())

	r1 := uuid.Must(uuid.NewV7())
	a1 := uuid.Must(uuid.NewV7())
	r2 := uuid.Must(uuid.NewV7())
	a2 := uuid.Must(uuid.NewV7())

	var wg sync.WaitGroup
	var ownerRecords, bobRecords []*SyncRecord
	var ownerErr, bobErr error
	var ownerStats, bobStats SyncStats

	wg.Add(2)
	go func() {
		defer wg.Done()
		ownerRecords, ownerStats, ownerErr = room.Sync(owner.ID,
			[]*Event{NewEvent(r1, owner.ID, "ping", 1)},
			[]*Event{NewEvent(a1, owner.ID, "move", map[string]int{"dx": 1})},
			testWaitTimeout, testSyncTimeout)
	}()
	go func() {
		defer wg.Done()
		time.Sleep(5 * time.Millisecond)
		bobRecords, bobStats, bobErr = room.Sync(bob.ID,
			[]*Event{NewEvent(r2, bob.ID, "ping", 1)},
			[]*Event{NewEvent(a2, bob.ID, "move", map[string]int{"dx": -1})},
			testWaitTimeout, testSyncTimeout)
	}()
	wg.Wait()

	require.NoError(t, ownerErr)
	require.NoError(t, bobErr)
	require.Len(t, ownerRecords, 1)
	require.Len(t, bobRecords, 1)
	require.Equal(t, ownerRecords[0].ID, bobRecords[0].ID, "both share the same round id")

	actionIDs := map[uuid.UUID]bool{}
	for _, ev := range ownerRecords[0].GetActions() {
		actionIDs[ev.ID] = true
	}
	require.True(t, actionIDs[a1] && actionIDs[a2], "both actions visible to everyone")

	ownerReportIDs := map[uuid.UUID]bool{}
	for _, ev := range ownerRecords[0].GetReports() {
		ownerReportIDs[ev.ID] = true
	}
	require.True(t, ownerReportIDs[r1] && ownerReportIDs[r2], "the record holds both reports internally")
	require.True(t, ownerStats.RolledOver || bobStats.RolledOver, "whichever call closes the round reports a rollover")

	// A third sync from either returns an empty catch-up with a new round id.
	third, _, err := room.Sync(owner.ID, nil, nil, testWaitTimeout, testSyncTimeout)
	require.NoError(t, err)
	require.Len(t, third, 1)
	require.NotEqual(t, ownerRecords[0].ID, third[0].ID)
}

// Scenario 2: three players, one straggler who never calls.
func TestSyncStragglerRollsOverAndCatchesUpLater(t *testing.T) {
	room, a := newTestRoom(t, 4)
	b := mustJoin(t, room, "b")
	c := mustJoin(t, room, "c")
	require.NoError(t, room.StartGame())

	var wg sync.WaitGroup
	var aRecords, bRecords []*SyncRecord
	var aErr, bErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		aRecords, _, aErr = room.Sync(a.ID, nil, nil, testWaitTimeout, testSyncTimeout)
	}()
	go func() {
		defer wg.Done()
		bRecords, _, bErr = room.Sync(b.ID, nil, nil, testWaitTimeout, testSyncTimeout)
	}()
	wg.Wait()

	require.NoError(t, aErr)
	require.NoError(t, bErr)
	require.NotEmpty(t, aRecords)
	require.NotEmpty(t, bRecords)

	firstRoundID := aRecords[len(aRecords)-1].ID

	// C catches up on the prior round in its own first sync.
	cRecords, _, err := room.Sync(c.ID, nil, nil, testWaitTimeout, testSyncTimeout)
	require.NoError(t, err)

	found := false
	for _, rec := range cRecords {
		if rec.ID == firstRoundID {
			found = true
		}
	}
	require.True(t, found, "straggler's catch-up slice includes the round it missed")
}

// A solo sync in a fresh room has no history to wait on, so step B (the
// slow-joiner wait) is skipped entirely, while step D (the consensus wait)
// still runs out its full syncTimeout since bob never joins in. The round
// still rolls over: bob's untouched CREATED phase satisfies the "every
// member is <=CREATED or >=SYNCED" predicate just as much as an advanced one.
func TestSyncStatsOnFirstEverCall(t *testing.T) {
	room, owner := newTestRoom(t, 2)
	mustJoin(t, room, "bob")
	require.NoError(t, room.StartGame())

	_, stats, err := room.Sync(owner.ID, nil, nil, testWaitTimeout, testSyncTimeout)
	require.NoError(t, err)
	require.Zero(t, stats.WaitElapsed, "step B is skipped when the room has no record history yet")
	require.GreaterOrEqual(t, stats.SyncElapsed, testSyncTimeout, "step D runs out its full budget waiting on bob")
	require.True(t, stats.RolledOver, "an untouched member still satisfies the rollover predicate")
}

// Scenario 3: rapid resubmission within one round is rejected.
func TestSyncRejectsResubmissionWithinRound(t *testing.T) {
	room, owner := newTestRoom(t, 2)
	bob := mustJoin(t, room, "bob")
	require.NoError(t, room.StartGame())

	// Bob has deposited into the round but not finished it, so the owner's
	// sync does not roll the round over.
	require.NoError(t, room.records[len(room.records)-1].AddEvents(bob.ID, nil, nil))

	_, _, err := room.Sync(owner.ID, nil, nil, testWaitTimeout, testSyncTimeout)
	require.NoError(t, err)

	_, _, err = room.Sync(owner.ID, nil, nil, testWaitTimeout, testSyncTimeout)
	require.Error(t, err, "second sync in the same round must be rejected")
}

// Scenario 6: non-owner cannot start the game (enforced by the caller in
// internal/api, but Owner() is the primitive that guard relies on).
func TestOwnerIsFirstInsertedUser(t *testing.T) {
	room, owner := newTestRoom(t, 2)
	bob := mustJoin(t, room, "bob")

	o, err := room.Owner()
	require.NoError(t, err)
	require.Equal(t, owner.ID, o.ID)
	require.NotEqual(t, bob.ID, o.ID)
}

func TestCleanSyncRecordsDropsConsumedRecords(t *testing.T) {
	room, owner := newTestRoom(t, 2)
	bob := mustJoin(t, room, "bob")
	require.NoError(t, room.StartGame())

	_, _, err := room.Sync(owner.ID, nil, nil, testWaitTimeout, testSyncTimeout)
	require.NoError(t, err)
	_, _, err = room.Sync(bob.ID, nil, nil, testWaitTimeout, testSyncTimeout)
	require.NoError(t, err)

	before := len(room.records)
	room.CleanSyncRecords()
	require.Less(t, len(room.records), before, "consumed records must be dropped")
}
