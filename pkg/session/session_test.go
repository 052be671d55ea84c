package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ilkoid/tripmate/pkg/apperr"
	"github.com/ilkoid/tripmate/pkg/chain"
	"github.com/ilkoid/tripmate/pkg/llm"
	"github.com/ilkoid/tripmate/pkg/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type agentFunc func(ctx context.Context, in chain.ChainInput) (chain.ChainOutput, error)

func (f agentFunc) Execute(ctx context.Context, in chain.ChainInput) (chain.ChainOutput, error) {
	return f(ctx, in)
}

func echoAgent() agentFunc {
	return func(_ context.Context, in chain.ChainInput) (chain.ChainOutput, error) {
		return chain.ChainOutput{
			Result:     fmt.Sprintf("echo(%s) after %d", in.UserQuery, len(in.History)),
			Iterations: 1,
			Signal:     chain.SignalFinalAnswer,
		}, nil
	}
}

func TestSession_AppendsUserThenAssistantPerTurn(t *testing.T) {
	s, err := New(Config{Agent: echoAgent()})
	require.NoError(t, err)
	ctx := context.Background()

	prev := 0
	for i, q := range []string{"hi", "weather in Seoul", "thanks"} {
		reply, err := s.Ask(ctx, Request{Query: q})
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("echo(%s) after %d", q, 2*i), reply.Text)

		history := s.History()
		require.Greater(t, len(history), prev)
		prev = len(history)

		require.Len(t, history, 2*(i+1))
		assert.Equal(t, memory.RoleUser, history[2*i].Role)
		assert.Equal(t, q, history[2*i].Content)
		assert.Equal(t, memory.RoleAssistant, history[2*i+1].Role)
	}
}

func TestSession_AgentErrorSavesNothing(t *testing.T) {
	boom := &apperr.UpstreamError{Service: "openai", Status: 500}
	s, err := New(Config{Agent: agentFunc(func(context.Context, chain.ChainInput) (chain.ChainOutput, error) {
		return chain.ChainOutput{}, boom
	})})
	require.NoError(t, err)

	_, err = s.Ask(context.Background(), Request{Query: "hi"})
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
	assert.Empty(t, s.History())
}

func TestSession_RejectsEmptyQuery(t *testing.T) {
	s, err := New(Config{Agent: echoAgent()})
	require.NoError(t, err)
	_, err = s.Ask(context.Background(), Request{Query: "  "})
	assert.Error(t, err)
}

func TestNew_RequiresAgent(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestSession_LoaderTakesSnapshot(t *testing.T) {
	store := memory.NewConversation()
	require.NoError(t, store.Append(memory.NewTurn(memory.RoleUser, "earlier")))
	require.NoError(t, store.Append(memory.NewTurn(memory.RoleAssistant, "earlier answer")))

	var seen []llm.Message
	agent := agentFunc(func(_ context.Context, in chain.ChainInput) (chain.ChainOutput, error) {
		// Запись в Store во время хода не должна попасть во вход агента.
		require.NoError(t, store.Append(memory.NewTurn(memory.RoleSystem, "side effect")))
		seen = in.History
		return chain.ChainOutput{Result: "ok", Signal: chain.SignalFinalAnswer}, nil
	})
	s, err := New(Config{Agent: agent, Memory: store})
	require.NoError(t, err)

	_, err = s.Ask(context.Background(), Request{Query: "now"})
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Equal(t, "earlier", seen[0].Content)
}

func TestSession_PartialAnswerIsSaved(t *testing.T) {
	s, err := New(Config{Agent: agentFunc(func(context.Context, chain.ChainInput) (chain.ChainOutput, error) {
		return chain.ChainOutput{
			Result:      "best effort",
			Iterations:  10,
			Signal:      chain.SignalIterationLimit,
			ToolResults: []chain.ToolResult{{Name: "get_weather_in_city"}},
		}, nil
	})})
	require.NoError(t, err)

	reply, err := s.Ask(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	assert.True(t, reply.Partial)
	assert.Equal(t, 10, reply.Iterations)

	history := s.History()
	require.Len(t, history, 2)
	var payload turnPayload
	require.NoError(t, json.Unmarshal(history[1].Payload, &payload))
	assert.Equal(t, "iteration_limit", payload.Signal)
	assert.Equal(t, []string{"get_weather_in_city"}, payload.Tools)
}

func TestSession_TurnsAreSequential(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	agent := agentFunc(func(_ context.Context, in chain.ChainInput) (chain.ChainOutput, error) {
		n := inFlight.Add(1)
		for {
			cur := maxInFlight.Load()
			if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return chain.ChainOutput{Result: in.UserQuery, Signal: chain.SignalFinalAnswer}, nil
	})
	s, err := New(Config{Agent: agent})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Ask(context.Background(), Request{Query: fmt.Sprintf("q%d", i)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, maxInFlight.Load())
	history := s.History()
	require.Len(t, history, 16)
	for i := 0; i < len(history); i += 2 {
		assert.Equal(t, memory.RoleUser, history[i].Role)
		assert.Equal(t, history[i].Content, history[i+1].Content)
	}
}

type staticContext struct {
	docs []string
	err  error
}

func (c staticContext) Retrieve(context.Context, string, []llm.Message) ([]string, error) {
	return c.docs, c.err
}

func TestSession_ContextProvider(t *testing.T) {
	var got []string
	agent := agentFunc(func(_ context.Context, in chain.ChainInput) (chain.ChainOutput, error) {
		got = in.Context
		return chain.ChainOutput{Result: "ok"}, nil
	})
	s, err := New(Config{Agent: agent, Context: staticContext{docs: []string{"Seoul has four seasons."}}})
	require.NoError(t, err)

	_, err = s.Ask(context.Background(), Request{Query: "climate?"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Seoul has four seasons."}, got)

	failing, err := New(Config{Agent: agent, Context: staticContext{err: errors.New("index missing")}})
	require.NoError(t, err)
	_, err = failing.Ask(context.Background(), Request{Query: "climate?"})
	assert.Error(t, err)
	assert.Empty(t, failing.History())
}

func TestTurnsToMessages_SkipsToolTurns(t *testing.T) {
	msgs := TurnsToMessages([]memory.Turn{
		memory.NewTurn(memory.RoleUser, "u"),
		memory.NewTurn(memory.RoleTool, "t"),
		memory.NewTurn(memory.RoleAssistant, "a"),
	})
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleUser, msgs[0].Role)
	assert.Equal(t, llm.RoleAssistant, msgs[1].Role)
}
