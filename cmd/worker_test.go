package cmd

import (
	"context"
	"testing"

	"github.com/matchup/apiserver/internal/mq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestAccountEventHandler(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handle := accountEventHandler(zap.New(core))
	ctx := context.Background()

	require.NoError(t, handle(ctx, mq.Message{ID: "1", Data: []byte(`{"type":"account.created","user_id":4,"email":"s@example.com","role":"single","active":false}`)}))
	require.NoError(t, handle(ctx, mq.Message{ID: "2", Data: []byte(`{"type":"access.assigned","user_id":4,"groups":[1]}`)}))
	require.NoError(t, handle(ctx, mq.Message{ID: "3", Data: []byte(`not json`)}))
	require.NoError(t, handle(ctx, mq.Message{ID: "4", Data: []byte(`{"type":"account.created"}`)}))
	require.NoError(t, handle(ctx, mq.Message{ID: "5", Data: []byte(`{"type":"account.deleted","user_id":4}`)}))

	verification := logs.FilterMessage("verification requested").All()
	require.Len(t, verification, 1)
	assert.Equal(t, "s@example.com", verification[0].ContextMap()["email"])
	assert.Equal(t, 1, logs.FilterMessage("access assigned").Len())
	assert.Equal(t, 1, logs.FilterMessage("drop malformed account event").Len())
	assert.Equal(t, 1, logs.FilterMessage("drop account event without user").Len())
	assert.Equal(t, 1, logs.FilterMessage("drop unknown account event").Len())
}
