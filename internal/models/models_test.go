package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryValid(t *testing.T) {
	assert.Len(t, Categories, 12)
	for _, c := range Categories {
		assert.True(t, c.Valid(), c)
	}
	assert.False(t, Category("recipe-idea").Valid())
	assert.False(t, Category("").Valid())
}

func TestCollaborationStatusValid(t *testing.T) {
	assert.True(t, CollaborationStatus("").Valid())
	assert.True(t, StatusLookingForPartner.Valid())
	assert.True(t, StatusGaveUp.Valid())
	assert.False(t, CollaborationStatus("open").Valid())
}

func TestRequestStatusTerminal(t *testing.T) {
	assert.False(t, RequestPending.Terminal())
	assert.True(t, RequestAccepted.Terminal())
	assert.True(t, RequestRejected.Terminal())
}

func TestHasCollaborator(t *testing.T) {
	idea := Idea{Collaborators: []Collaborator{{UserID: "u1"}, {UserID: "u2"}}}
	assert.True(t, idea.HasCollaborator("u2"))
	assert.False(t, idea.HasCollaborator("u3"))
}

func TestRequestCollaborator(t *testing.T) {
	req := CollaborationRequest{
		RequesterID:     "u1",
		RequesterName:   "Ada",
		RequesterEmail:  "ada@example.com",
		RequesterGitHub: "https://github.com/ada",
	}
	assert.Equal(t, Collaborator{
		UserID: "u1",
		Name:   "Ada",
		Email:  "ada@example.com",
		GitHub: "https://github.com/ada",
	}, req.Collaborator())
}
