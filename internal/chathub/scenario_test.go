package chathub_test

import (
	"chatroulette/backend/internal/models"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenario_TextChat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.svc.Matcher.Join(ctx, "A", false)
	require.NoError(t, err)
	assert.True(t, res.Queued)

	res, err = env.svc.Matcher.Join(ctx, "B", false)
	require.NoError(t, err)
	session := res.Session
	require.NotNil(t, session)
	assert.False(t, session.HasVideo)
	assert.Equal(t, "A", session.UserA)
	assert.Equal(t, "B", session.UserB)

	_, err = env.svc.Messages.Send(ctx, "A", session.ID, "hi")
	require.NoError(t, err)

	history, err := env.svc.Messages.List(ctx, "B", session.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0].Content)
	assert.Equal(t, "A", history[0].AuthorID)

	require.NoError(t, env.svc.Matcher.Leave(ctx, "B", session.ID))
	ended, err := env.store.GetSessionByID(ctx, session.ID)
	require.NoError(t, err)
	assert.False(t, ended.Active)

	history, err = env.svc.Messages.List(ctx, "A", session.ID)
	require.NoError(t, err)
	assert.Empty(t, history, "the session is no longer active")

	kept, err := env.store.GetChatHistory(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, kept, 1, "history is never deleted")
}

func TestScenario_VideoNegotiation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.Matcher.Join(ctx, "A", true)
	require.NoError(t, err)
	res, err := env.svc.Matcher.Join(ctx, "B", true)
	require.NoError(t, err)
	session := res.Session
	require.NotNil(t, session)
	assert.True(t, session.HasVideo)
	assert.True(t, session.IsInitiator("A"))

	_, err = env.svc.Signals.Send(ctx, "A", session.ID, "B", models.SignalOffer, "offer-sdp")
	require.NoError(t, err)

	atB, err := env.svc.Signals.Poll(ctx, "B", session.ID)
	require.NoError(t, err)
	require.Len(t, atB, 1)
	assert.Equal(t, models.SignalOffer, atB[0].Type)
	assert.Equal(t, "offer-sdp", atB[0].Payload)

	_, err = env.svc.Signals.Send(ctx, "B", session.ID, "A", models.SignalAnswer, "answer-sdp")
	require.NoError(t, err)

	atA, err := env.svc.Signals.Poll(ctx, "A", session.ID)
	require.NoError(t, err)
	require.Len(t, atA, 1)
	assert.Equal(t, models.SignalAnswer, atA[0].Type)
	assert.Equal(t, "answer-sdp", atA[0].Payload)
}
