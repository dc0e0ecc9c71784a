package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crewchat/pkg/config"
)

func seed() *StaticDirectory {
	return NewStaticDirectory([]config.CrewConfig{
		{ID: "crew-a", Owner: "alice", Members: []string{"bob", "carol"}},
		{ID: "crew-b", Owner: "bob"},
	}, []config.UserConfig{
		{ID: "alice", DisplayName: "Alice Vane"},
		{ID: "bob", DisplayName: "Bob Reyes"},
	})
}

func TestMembership(t *testing.T) {
	d := seed()
	assert.True(t, d.IsMember("crew-a", "bob"))
	assert.True(t, d.IsMember("crew-a", "alice"), "owner is always a member")
	assert.False(t, d.IsMember("crew-a", "mallory"))
	assert.False(t, d.IsMember("crew-x", "bob"), "unknown crew has no members")
}

func TestOwnership(t *testing.T) {
	d := seed()
	assert.True(t, d.IsOwner("crew-a", "alice"))
	assert.False(t, d.IsOwner("crew-a", "bob"))
	assert.False(t, d.IsOwner("crew-x", "alice"))
}

func TestAddRemoveMember(t *testing.T) {
	d := seed()
	require.NoError(t, d.AddMember("crew-b", "carol"))
	assert.True(t, d.IsMember("crew-b", "carol"))

	require.NoError(t, d.RemoveMember("crew-b", "carol"))
	assert.False(t, d.IsMember("crew-b", "carol"))

	assert.Error(t, d.RemoveMember("crew-b", "bob"), "owner cannot be removed")
	assert.Error(t, d.AddMember("crew-x", "carol"))
}

func TestRemoveCrew(t *testing.T) {
	d := seed()
	require.NoError(t, d.RemoveCrew("crew-a"))
	assert.False(t, d.Exists("crew-a"))
	assert.False(t, d.IsMember("crew-a", "bob"))
	assert.Error(t, d.RemoveCrew("crew-a"))
}

func TestAddCrew(t *testing.T) {
	d := seed()
	require.NoError(t, d.AddCrew("crew-c", "carol"))
	assert.True(t, d.IsOwner("crew-c", "carol"))
	assert.True(t, d.IsMember("crew-c", "carol"))
	assert.Error(t, d.AddCrew("crew-c", "dave"), "duplicate crew id")
}

func TestGetUser(t *testing.T) {
	d := seed()
	assert.Equal(t, "Alice Vane", d.GetUser("alice").DisplayName)

	u := d.GetUser("mallory")
	assert.Equal(t, "mallory", u.ID)
	assert.Equal(t, "mallory", u.DisplayName, "unknown users fall back to their id")
}

func TestMembers(t *testing.T) {
	d := seed()
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, d.Members("crew-a"))
	assert.Nil(t, d.Members("crew-x"))
}
