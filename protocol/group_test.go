package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortParticipantsById(t *testing.T) {
	in := []Participant{{Id: 3}, {Id: 1}, {Id: 2}}
	sorted := SortParticipantsById(in)
	assert.Equal(t, []ParticipantId{1, 2, 3}, ParticipantIds(sorted))
	// original slice untouched
	assert.Equal(t, ParticipantId(3), in[0].Id)
}

func TestGroupHasParticipant(t *testing.T) {
	g := &Group{Participants: []Participant{{Id: 1}, {Id: 2}}}
	assert.True(t, g.HasParticipant(1))
	assert.False(t, g.HasParticipant(9))
	assert.Equal(t, 2, g.Count())
}

func TestDeriveGroupIdDeterministic(t *testing.T) {
	root := [32]byte{1, 2, 3}
	ctx := []byte("context")
	id1 := DeriveGroupId(root, 5, 3, ctx)
	id2 := DeriveGroupId(root, 5, 3, ctx)
	assert.Equal(t, id1, id2)

	id3 := DeriveGroupId(root, 5, 4, ctx)
	assert.NotEqual(t, id1, id3)
}
