package controller_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/practicehub-backend/internal/controller"
	appErrors "github.com/unclebandit/practicehub-backend/internal/errors"
	"github.com/unclebandit/practicehub-backend/internal/model"
)

type mockInbox struct {
	read    []int64
	deleted []int64
}

func (m *mockInbox) List(_ context.Context, actor model.Actor) ([]model.UserMessage, error) {
	return []model.UserMessage{{ID: 2, UserID: actor.ID, CampaignName: "Closure", Content: "Clinic closed Friday"}}, nil
}

func (m *mockInbox) MarkRead(_ context.Context, _ model.Actor, id int64) error {
	if id == 99 {
		return appErrors.NewMessageNotFound(id)
	}
	m.read = append(m.read, id)
	return nil
}

func (m *mockInbox) Delete(_ context.Context, _ model.Actor, id int64) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func TestMessageHandlers(t *testing.T) {
	inbox := &mockInbox{}
	srv := newServer(t, &controller.MessageController{Inbox: inbox})

	resp := call(t, srv, http.MethodGet, "/messages", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	msgs := decode[[]model.UserMessage](t, resp)
	require.Len(t, msgs, 1)
	assert.Equal(t, testAdmin.ID, msgs[0].UserID)
	assert.Equal(t, "Closure", msgs[0].CampaignName)

	resp = call(t, srv, http.MethodPost, "/messages/2/read", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Message marked as read", decode[map[string]string](t, resp)["message"])
	assert.Equal(t, []int64{2}, inbox.read)

	resp = call(t, srv, http.MethodPost, "/messages/99/read", nil, true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = call(t, srv, http.MethodDelete, "/messages/2", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []int64{2}, inbox.deleted)

	resp = call(t, srv, http.MethodGet, "/messages", nil, false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
