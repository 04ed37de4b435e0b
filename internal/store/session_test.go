package store

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rdsquote/internal/controller"
	"github.com/roach88/rdsquote/internal/testutil"
	"github.com/roach88/rdsquote/internal/value"
)

func TestSession_LoadEmpty(t *testing.T) {
	s := createTestStore(t)

	_, ok, err := s.Session("nobody").Load(t.Context())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSession_SaveLoadRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ss := s.Session("sess-1")

	want := controller.SessionState{
		Inputs: value.InputSet{
			"sys.spare_parts_qty": value.NewNumber(1),
			"sys.guarding":        value.Text("Tall w/ Netting"),
		},
		LastValid: value.InputSet{
			"sys.spare_parts_qty": value.NewNumber(0),
			"sys.guarding":        value.Text("Standard"),
		},
		Version: "v1",
	}
	require.NoError(t, ss.Save(t.Context(), want))

	got, ok, err := ss.Load(t.Context())
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, want.Inputs.Equal(got.Inputs))
	assert.True(t, want.LastValid.Equal(got.LastValid))
	assert.Equal(t, want.Version, got.Version)
}

func TestSession_DecimalsSurviveExactly(t *testing.T) {
	s := createTestStore(t)
	ss := s.Session("sess-1")

	n, err := value.ParseNumber("0.1000000000000000055511151231257827")
	require.NoError(t, err)
	require.NoError(t, ss.Save(t.Context(), controller.SessionState{Inputs: value.InputSet{"m": n}}))

	got, _, err := ss.Load(t.Context())
	require.NoError(t, err)
	assert.True(t, n.Equal(got.Inputs["m"]))
	assert.NotNil(t, got.LastValid, "nil sets load as empty")
}

func TestSession_IdenticalSaveDoesNotBumpSeq(t *testing.T) {
	s := createTestStore(t)
	ss := s.Session("sess-1")
	st := controller.SessionState{
		Inputs:    value.InputSet{"x": value.NewNumber(3)},
		LastValid: value.InputSet{"x": value.NewNumber(3)},
		Version:   "v1",
	}

	require.NoError(t, ss.Save(t.Context(), st))
	require.NoError(t, ss.Save(t.Context(), st))
	seq, err := ss.SnapshotSeq(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	st.Inputs = value.InputSet{"x": value.NewNumber(5)}
	require.NoError(t, ss.Save(t.Context(), st))
	seq, err = ss.SnapshotSeq(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)

	st.Version = "v2"
	require.NoError(t, ss.Save(t.Context(), st))
	seq, err = ss.SnapshotSeq(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(3), seq)
}

func TestSession_SessionsAreIsolated(t *testing.T) {
	s := createTestStore(t)
	require.NoError(t, s.Session("a").Save(t.Context(), controller.SessionState{
		Inputs: value.InputSet{"x": value.NewNumber(1)},
	}))

	_, ok, err := s.Session("b").Load(t.Context())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecord_ListRequestsOrderedBySeq(t *testing.T) {
	s := createTestStore(t, "req-c", "req-a", "req-b")
	ss := s.Session("sess-1")

	for _, r := range []controller.RequestRecord{
		{Seq: 3, Version: "v2", Outcome: controller.OutcomePriced, Retry: true},
		{Seq: 1, Version: "v1", Outcome: controller.OutcomeVersionConflict, Detail: "catalog version conflict (server=v2)"},
		{Seq: 2, Version: "v1", Outcome: controller.OutcomeFieldRejected, Status: 0, Field: "x"},
	} {
		require.NoError(t, ss.Record(t.Context(), r))
	}

	entries, err := s.ListRequests(t.Context(), "sess-1", "")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{entries[0].Seq, entries[1].Seq, entries[2].Seq})
	assert.Equal(t, "req-a", entries[0].ID)
	assert.Equal(t, "sess-1", entries[0].SessionID)
	assert.Equal(t, controller.OutcomeVersionConflict, entries[0].Outcome)
	assert.Equal(t, "x", entries[1].Field)
	assert.True(t, entries[2].Retry)
	assert.False(t, entries[0].Retry)

	rejected, err := s.ListRequests(t.Context(), "sess-1", controller.OutcomeFieldRejected)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, int64(2), rejected[0].Seq)
}

func TestRecord_DuplicateSeqIgnored(t *testing.T) {
	s := createTestStore(t, "req-1", "req-2")
	ss := s.Session("sess-1")

	require.NoError(t, ss.Record(t.Context(), controller.RequestRecord{Seq: 1, Outcome: controller.OutcomePriced}))
	require.NoError(t, ss.Record(t.Context(), controller.RequestRecord{Seq: 1, Outcome: controller.OutcomeFailed}))

	entries, err := s.ListRequests(t.Context(), "sess-1", "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, controller.OutcomePriced, entries[0].Outcome)
}

func TestListRequests_Empty(t *testing.T) {
	s := createTestStore(t)

	entries, err := s.ListRequests(t.Context(), "none", "")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestLastSeq(t *testing.T) {
	s := createTestStore(t, "r1", "r2")
	ss := s.Session("sess-1")

	seq, err := s.LastSeq(t.Context(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	require.NoError(t, ss.Record(t.Context(), controller.RequestRecord{Seq: 4, Outcome: controller.OutcomePriced}))
	require.NoError(t, ss.Record(t.Context(), controller.RequestRecord{Seq: 9, Outcome: controller.OutcomeSuperseded}))

	seq, err = s.LastSeq(t.Context(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(9), seq)
}

func TestNewSession_ListSessions(t *testing.T) {
	s := createTestStore(t, "0001", "0002", "req-1")

	id1, err := s.NewSession(t.Context(), "acme")
	require.NoError(t, err)
	id2, err := s.NewSession(t.Context(), "")
	require.NoError(t, err)
	require.NoError(t, s.Session(id2).Record(t.Context(), controller.RequestRecord{Seq: 1, Outcome: controller.OutcomePriced}))

	sessions, err := s.ListSessions(t.Context())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, id1, sessions[0].ID)
	assert.Equal(t, "acme", sessions[0].Label)
	assert.Equal(t, 0, sessions[0].Requests)
	assert.Equal(t, id2, sessions[1].ID)
	assert.Equal(t, 1, sessions[1].Requests)
	assert.NotEmpty(t, sessions[1].CreatedAt)
}

// A controller persists through a SessionStore, and a new controller on the
// same session picks up where it left off.
func TestSessionStore_WithController(t *testing.T) {
	s := createTestStore(t)
	ss := s.Session("sess-ctl")
	tr := testutil.NewFakeTransport(testutil.XYCatalog("v1"))

	sched := testutil.NewManualScheduler()
	c := controller.New(tr,
		controller.WithScheduler(sched),
		controller.WithPersister(ss),
		controller.WithRequestLog(ss),
		controller.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, c.Start(t.Context()))
	require.NoError(t, c.SetField("x", "5"))
	sched.Advance(controller.DefaultDebounce)
	c.Wait()
	require.NoError(t, c.Close())

	lastSeq, err := s.LastSeq(t.Context(), "sess-ctl")
	require.NoError(t, err)
	assert.Equal(t, int64(1), lastSeq)

	resumed := controller.New(tr,
		controller.WithScheduler(testutil.NewManualScheduler()),
		controller.WithPersister(ss),
		controller.WithClock(controller.NewClockAt(lastSeq)),
		controller.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	defer resumed.Close()
	require.NoError(t, resumed.Start(t.Context()))

	state := resumed.Snapshot()
	assert.True(t, value.NewNumber(5).Equal(state.Inputs["x"]))
	assert.True(t, value.NewNumber(5).Equal(state.LastValid["x"]))

	entries, err := s.ListRequests(t.Context(), "sess-ctl", "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, controller.OutcomePriced, entries[0].Outcome)
	assert.NotEmpty(t, entries[0].InputsHash)
}
