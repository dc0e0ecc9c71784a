package chat

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewchat/pkg/config"
	"crewchat/pkg/models"
	"crewchat/pkg/ratelimit"
	"crewchat/pkg/roster"
	"crewchat/pkg/session"
	"crewchat/pkg/store"
	"crewchat/pkg/utils"
)

func testServer(t *testing.T, crews []config.CrewConfig, perSecond int) (*Server, *roster.StaticDirectory) {
	t.Helper()
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() { store.Close() })
	dir := roster.NewStaticDirectory(crews, nil)
	srv := NewServer(session.NewRegistry(), dir, ratelimit.New(perSecond, 1000), config.ChatConfig{}, nil, nil)
	return srv, dir
}

func defaultCrews() []config.CrewConfig {
	return []config.CrewConfig{{ID: "crew-a", Owner: "alice", Members: []string{"bob", "carol"}}}
}

// member attaches a live session for userID backed by the in-process
// client machinery, no socket involved.
func member(srv *Server, userID, crewID string) *client {
	c := newClient(srv, nil)
	sess := session.NewSession(utils.GenSessionID(), userID, crewID, c)
	c.sess = sess
	srv.registry.Register(sess)
	return c
}

func recv(t *testing.T, c *client) Outbound {
	t.Helper()
	select {
	case frame := <-c.send:
		var out Outbound
		require.NoError(t, json.Unmarshal(frame, &out))
		return out
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
		return Outbound{}
	}
}

func noFrame(t *testing.T, c *client) {
	t.Helper()
	select {
	case frame := <-c.send:
		t.Fatalf("unexpected frame: %s", frame)
	default:
	}
}

func TestHandleFrameAcceptsAndFansOut(t *testing.T) {
	srv, _ := testServer(t, defaultCrews(), 100)
	bob := member(srv, "bob", "crew-a")
	carol := member(srv, "carol", "crew-a")

	frame, _ := json.Marshal(Inbound{GroupID: "crew-a", Message: "hello crew", MessageType: "TEXT"})
	srv.handleFrame(bob, frame)

	for _, c := range []*client{bob, carol} {
		out := recv(t, c)
		assert.Equal(t, "crew-a", out.GroupID)
		assert.Equal(t, "bob", out.SenderID)
		assert.Equal(t, "hello crew", out.Message)
		assert.Equal(t, "TEXT", out.MessageType)
		assert.NotEmpty(t, out.MessageID)
		assert.NotZero(t, out.Timestamp)
	}

	// persisted too
	msgs, err := store.ListMessages("crew-a", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello crew", msgs[0].Body)
}

func TestBroadcastResolvesSenderName(t *testing.T) {
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() { store.Close() })
	dir := roster.NewStaticDirectory(defaultCrews(), []config.UserConfig{
		{ID: "bob", DisplayName: "Bob Reyes"},
	})
	names := func(userID string) string { return dir.GetUser(userID).DisplayName }
	srv := NewServer(session.NewRegistry(), dir, ratelimit.New(100, 1000), config.ChatConfig{}, nil, names)
	bob := member(srv, "bob", "crew-a")

	frame, _ := json.Marshal(Inbound{GroupID: "crew-a", Message: "hello"})
	srv.handleFrame(bob, frame)

	out := recv(t, bob)
	assert.Equal(t, "bob", out.SenderID)
	assert.Equal(t, "Bob Reyes", out.SenderName)
}

func TestHandleFrameSanitizes(t *testing.T) {
	srv, _ := testServer(t, defaultCrews(), 100)
	bob := member(srv, "bob", "crew-a")

	frame, _ := json.Marshal(Inbound{GroupID: "crew-a", Message: "<script>alert(1)</script>hi"})
	srv.handleFrame(bob, frame)

	out := recv(t, bob)
	assert.Equal(t, "hi", out.Message)
}

func TestHandleFrameRejectsEmptyBody(t *testing.T) {
	srv, _ := testServer(t, defaultCrews(), 100)
	bob := member(srv, "bob", "crew-a")
	carol := member(srv, "carol", "crew-a")

	frame, _ := json.Marshal(Inbound{GroupID: "crew-a", Message: "<b></b>"})
	srv.handleFrame(bob, frame)

	out := recv(t, bob)
	assert.Equal(t, string(models.KindSystem), out.MessageType)
	noFrame(t, carol)

	msgs, err := store.ListMessages("crew-a", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs, "refused frames are never persisted")
}

func TestHandleFrameRateLimits(t *testing.T) {
	srv, _ := testServer(t, defaultCrews(), 1)
	bob := member(srv, "bob", "crew-a")

	frame, _ := json.Marshal(Inbound{GroupID: "crew-a", Message: "one"})
	srv.handleFrame(bob, frame)
	assert.Equal(t, string(models.KindText), recv(t, bob).MessageType)

	frame, _ = json.Marshal(Inbound{GroupID: "crew-a", Message: "two"})
	srv.handleFrame(bob, frame)
	out := recv(t, bob)
	assert.Equal(t, string(models.KindSystem), out.MessageType)
	assert.Contains(t, out.Message, "rate limit")

	msgs, err := store.ListMessages("crew-a", 10, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestHandleFrameAnnouncementRequiresOwner(t *testing.T) {
	srv, _ := testServer(t, defaultCrews(), 100)
	alice := member(srv, "alice", "crew-a")
	bob := member(srv, "bob", "crew-a")

	frame, _ := json.Marshal(Inbound{GroupID: "crew-a", Message: "listen up", MessageType: "ANNOUNCEMENT"})
	srv.handleFrame(bob, frame)
	out := recv(t, bob)
	assert.Equal(t, string(models.KindSystem), out.MessageType)
	assert.Contains(t, out.Message, "owner")

	srv.handleFrame(alice, frame)
	out = recv(t, alice)
	assert.Equal(t, string(models.KindAnnouncement), out.MessageType)
}

func TestHandleFrameRejectsWrongCrew(t *testing.T) {
	srv, _ := testServer(t, []config.CrewConfig{
		{ID: "crew-a", Owner: "alice", Members: []string{"bob"}},
		{ID: "crew-b", Owner: "alice", Members: []string{"bob"}},
	}, 100)
	bob := member(srv, "bob", "crew-a")

	frame, _ := json.Marshal(Inbound{GroupID: "crew-b", Message: "misdirected"})
	srv.handleFrame(bob, frame)
	out := recv(t, bob)
	assert.Equal(t, string(models.KindSystem), out.MessageType)
}

func TestHandleFrameClosesRevokedSender(t *testing.T) {
	srv, dir := testServer(t, defaultCrews(), 100)
	bob := member(srv, "bob", "crew-a")
	require.NoError(t, dir.RemoveMember("crew-a", "bob"))

	frame, _ := json.Marshal(Inbound{GroupID: "crew-a", Message: "still in?"})
	srv.handleFrame(bob, frame)

	assert.Equal(t, 0, srv.registry.Count(), "revoked sender's session is pruned")
	select {
	case <-bob.done:
	default:
		t.Fatal("revoked sender's connection was not closed")
	}

	msgs, err := store.ListMessages("crew-a", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestBroadcastPrunesRevokedMember(t *testing.T) {
	srv, dir := testServer(t, defaultCrews(), 100)
	bob := member(srv, "bob", "crew-a")
	carol := member(srv, "carol", "crew-a")
	require.Equal(t, 2, srv.registry.Count())

	require.NoError(t, dir.RemoveMember("crew-a", "carol"))

	srv.Broadcast(models.Message{
		ID: utils.GenID(), Crew: "crew-a", Sender: "bob",
		Body: "still here?", Kind: models.KindText,
		TS: time.Now().UTC().UnixNano(), Active: true,
	})

	recv(t, bob)
	noFrame(t, carol)
	assert.Equal(t, 1, srv.registry.Count(), "revoked member's session was pruned")
	_, ok := srv.registry.Get(carol.sess.ID)
	assert.False(t, ok)
}

func TestBroadcastPrunesExpiredMember(t *testing.T) {
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() { store.Close() })
	dir := roster.NewStaticDirectory(defaultCrews(), nil)
	srv := NewServer(session.NewRegistry(), dir, ratelimit.New(100, 1000),
		config.ChatConfig{SessionTimeout: config.Duration(10 * time.Millisecond)}, nil, nil)

	bob := member(srv, "bob", "crew-a")
	carol := member(srv, "carol", "crew-a")
	time.Sleep(20 * time.Millisecond)
	bob.sess.Touch()

	srv.Broadcast(models.Message{
		ID: utils.GenID(), Crew: "crew-a", Sender: "bob",
		Body: "anyone awake?", Kind: models.KindText,
		TS: time.Now().UTC().UnixNano(), Active: true,
	})

	recv(t, bob)
	noFrame(t, carol)
	assert.Equal(t, 1, srv.registry.Count(), "idle session was pruned")
	_, ok := srv.registry.Get(carol.sess.ID)
	assert.False(t, ok)
}

func TestBroadcastPrunesFullBuffer(t *testing.T) {
	srv, _ := testServer(t, defaultCrews(), 100)
	bob := member(srv, "bob", "crew-a")

	carol := member(srv, "carol", "crew-a")
	for i := 0; i < cap(carol.send); i++ {
		carol.send <- []byte("backlog")
	}

	srv.Broadcast(models.Message{
		ID: utils.GenID(), Crew: "crew-a", Sender: "bob",
		Body: "keep up", Kind: models.KindText,
		TS: time.Now().UTC().UnixNano(), Active: true,
	})

	recv(t, bob)
	assert.Equal(t, 1, srv.registry.Count(), "stalled session was pruned")
}

func TestBroadcastManyMembers(t *testing.T) {
	crews := []config.CrewConfig{{ID: "crew-a", Owner: "u0"}}
	for i := 1; i < 20; i++ {
		crews[0].Members = append(crews[0].Members, fmt.Sprintf("u%d", i))
	}
	srv, _ := testServer(t, crews, 100)

	var clients []*client
	for i := 0; i < 20; i++ {
		clients = append(clients, member(srv, fmt.Sprintf("u%d", i), "crew-a"))
	}

	srv.Broadcast(models.Message{
		ID: utils.GenID(), Crew: "crew-a", Sender: "u0",
		Body: "all hands", Kind: models.KindText,
		TS: time.Now().UTC().UnixNano(), Active: true,
	})

	for _, c := range clients {
		assert.Equal(t, "all hands", recv(t, c).Message)
	}
}

func TestInject(t *testing.T) {
	srv, _ := testServer(t, defaultCrews(), 100)
	bob := member(srv, "bob", "crew-a")

	m, err := srv.Inject("crew-a", "", "deploy finished", "")
	require.NoError(t, err)
	assert.Equal(t, "system", m.Sender)
	assert.Equal(t, models.KindSystem, m.Kind)

	out := recv(t, bob)
	assert.Equal(t, "deploy finished", out.Message)

	_, err = srv.Inject("crew-a", "ops", "<b></b>", "")
	assert.Error(t, err, "sanitizer applies to injected messages too")
}
