package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRoom(t *testing.T) (*Registry, *Router, map[int64]*mockConn) {
	t.Helper()

	r := NewRegistry()
	router := NewRouter(r)
	conns := make(map[int64]*mockConn)
	for _, uid := range []int64{42, 7, 9} {
		p, c := newParticipant("R1", uid)
		r.Admit(p)
		conns[uid] = c
	}
	return r, router, conns
}

func TestRouter_OfferUnicast(t *testing.T) {
	_, router, conns := setupRoom(t)

	sender := &Participant{ClassroomID: "R1", UserID: 42}
	err := router.Dispatch(sender, Envelope{
		Type:         TypeOffer,
		TargetUserID: 7,
		Payload:      json.RawMessage(`"x"`),
	})
	require.NoError(t, err)

	got := conns[7].getReceived()
	require.Len(t, got, 1)
	assert.Equal(t, TypeOffer, got[0].Type)
	assert.Equal(t, int64(42), got[0].From)
	assert.Equal(t, int64(7), got[0].TargetUserID)
	assert.JSONEq(t, `"x"`, string(got[0].Payload))

	// больше никто не получает unicast
	assert.Empty(t, conns[9].getReceived())
	assert.Empty(t, conns[42].getReceived())
}

func TestRouter_OfferToAbsentTargetIsDropped(t *testing.T) {
	_, router, conns := setupRoom(t)

	sender := &Participant{ClassroomID: "R1", UserID: 42}
	err := router.Dispatch(sender, Envelope{Type: TypeOffer, TargetUserID: 99})
	require.NoError(t, err, "absent target is not an error")

	for _, c := range conns {
		assert.Empty(t, c.getReceived())
	}
}

func TestRouter_NoCrossRoomDelivery(t *testing.T) {
	r := NewRegistry()
	router := NewRouter(r)

	pOther, cOther := newParticipant("R2", 7)
	r.Admit(pOther)

	sender := &Participant{ClassroomID: "R1", UserID: 42}
	require.NoError(t, router.Dispatch(sender, Envelope{Type: TypeAnswer, TargetUserID: 7}))
	assert.Empty(t, cOther.getReceived(), "router must never deliver across rooms")
}

func TestRouter_ChatAndHandRaiseBroadcast(t *testing.T) {
	_, router, conns := setupRoom(t)

	sender := &Participant{ClassroomID: "R1", UserID: 42}
	require.NoError(t, router.Dispatch(sender, Envelope{
		Type:    TypeChat,
		Payload: json.RawMessage(`"hi"`),
	}))
	require.NoError(t, router.Dispatch(sender, Envelope{Type: TypeHandRaise}))

	for uid, c := range conns {
		got := c.getReceived()
		require.Len(t, got, 2, "user %d", uid)
		assert.Equal(t, TypeChat, got[0].Type)
		assert.Equal(t, int64(42), got[0].From)
		assert.Equal(t, TypeHandRaise, got[1].Type)
	}
}

func TestRouter_DuplicateJoinIsProtocolViolation(t *testing.T) {
	_, router, _ := setupRoom(t)

	sender := &Participant{ClassroomID: "R1", UserID: 42}
	err := router.Dispatch(sender, Envelope{Type: TypeJoin, UserID: 42})
	assert.ErrorIs(t, err, ErrDuplicateJoin)
}

func TestRouter_UnknownTagCountedNotFatal(t *testing.T) {
	_, router, conns := setupRoom(t)

	sender := &Participant{ClassroomID: "R1", UserID: 42}
	require.NoError(t, router.Dispatch(sender, Envelope{Type: "reaction"}))
	require.NoError(t, router.Dispatch(sender, Envelope{Type: "poll_vote"}))

	assert.Equal(t, int64(2), router.UnknownMessages())
	for _, c := range conns {
		assert.Empty(t, c.getReceived())
	}
}
