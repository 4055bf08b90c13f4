package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/itsneelabh/nl2sparql/ai"
	"github.com/itsneelabh/nl2sparql/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryRegistered(t *testing.T) {
	factory, ok := ai.GetProvider("mock")
	require.True(t, ok)

	_, available := factory.DetectEnvironment()
	assert.False(t, available, "mock must never be auto-detected")

	client, err := factory.Create(&ai.AIConfig{Model: "scripted"})
	require.NoError(t, err)
	resp, err := client.GenerateResponse(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "scripted", resp.Model)

	_, err = factory.Create(nil)
	assert.True(t, core.IsConfigurationError(err))
}

func TestClientScriptedResponses(t *testing.T) {
	c := NewClient(&ai.AIConfig{})
	c.SetResponses("first", "second")
	c.Repeat = false
	ctx := context.Background()

	resp, err := c.GenerateResponse(ctx, "p1", &core.AIOptions{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Content)
	assert.Equal(t, "m", resp.Model)
	assert.Equal(t, "mock", resp.Provider)

	resp, err = c.GenerateResponse(ctx, "p2", nil)
	require.NoError(t, err)
	assert.Equal(t, "second", resp.Content)
	assert.Equal(t, "mock-model", resp.Model)

	_, err = c.GenerateResponse(ctx, "p3", nil)
	assert.ErrorIs(t, err, ErrNoResponses)

	assert.Equal(t, 3, c.Calls())
	assert.Equal(t, "p3", c.LastPrompt())
	assert.Equal(t, []string{"p1", "p2", "p3"}, c.Prompts)
}

func TestClientRepeatsLastResponse(t *testing.T) {
	c := NewClient(nil)
	c.SetResponses("a", "b")

	var got []string
	for i := 0; i < 4; i++ {
		resp, err := c.GenerateResponse(context.Background(), "q", nil)
		require.NoError(t, err)
		got = append(got, resp.Content)
	}
	assert.Equal(t, []string{"a", "b", "b", "b"}, got)
}

func TestClientErrorsAndReset(t *testing.T) {
	c := NewClient(nil)
	boom := errors.New("boom")
	c.SetError(boom)

	_, err := c.GenerateResponse(context.Background(), "q", nil)
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Reset()
	_, err = c.GenerateResponse(ctx, "q", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, c.Calls())
}
