package chain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/tripmate/pkg/apperr"
	"github.com/ilkoid/tripmate/pkg/llm"
)

func TestPipe_PassesTypedOutputForward(t *testing.T) {
	parse := NewStage("atoi", func(_ context.Context, s string) (int, error) { return strconv.Atoi(s) })
	double := NewStage("double", func(_ context.Context, n int) (int, error) { return n * 2, nil })
	format := NewStage("format", func(_ context.Context, n int) (string, error) { return fmt.Sprintf("=%d", n), nil })

	p := Pipe3(parse, double, format)
	out, err := p.Run(context.Background(), "21")
	require.NoError(t, err)
	assert.Equal(t, "=42", out)
	assert.Equal(t, "atoi | double | format", p.Name())
}

func TestPipe_StopsOnFirstError(t *testing.T) {
	called := false
	parse := NewStage("atoi", func(_ context.Context, s string) (int, error) { return strconv.Atoi(s) })
	next := NewStage("next", func(_ context.Context, n int) (int, error) {
		called = true
		return n, nil
	})

	_, err := Pipe(parse, next).Run(context.Background(), "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage atoi")
	assert.False(t, called)
}

func TestParallel_CollectsResultsByName(t *testing.T) {
	upper := NewStage("upper", func(_ context.Context, s string) (string, error) { return strings.ToUpper(s), nil })
	length := NewStage("len", func(_ context.Context, s string) (string, error) { return strconv.Itoa(len(s)), nil })

	out, err := Parallel(map[string]Stage[string, string]{"upper": upper, "len": length}).Run(context.Background(), "seoul")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"upper": "SEOUL", "len": "5"}, out)
}

func TestParallel_ErrorCancelsSiblings(t *testing.T) {
	boom := errors.New("boom")
	failing := NewStage("fail", func(context.Context, string) (string, error) { return "", boom })
	waiting := NewStage("wait", func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	_, err := Parallel(map[string]Stage[string, string]{"fail": failing, "wait": waiting}).Run(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}

type cardFields struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func TestParseJSON(t *testing.T) {
	requireName := func(c cardFields) error {
		if c.Name == "" {
			return errors.New("name is required")
		}
		return nil
	}

	tests := []struct {
		name    string
		content string
		want    cardFields
		wantErr bool
	}{
		{name: "plain", content: `{"name":"Kim","email":"k@x.io"}`, want: cardFields{Name: "Kim", Email: "k@x.io"}},
		{name: "markdown fence", content: "```json\n{\"name\":\"Lee\"}\n```", want: cardFields{Name: "Lee"}},
		{name: "surrounding prose", content: `Here you go: {"name":"Park"} hope it helps`, want: cardFields{Name: "Park"}},
		{name: "not json", content: "no structured data here", wantErr: true},
		{name: "schema violation", content: `{"email":"a@b.c"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJSON(tt.content, requireName)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperr.ErrParseFailure)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPromptModelParserPipeline(t *testing.T) {
	provider := llm.ProviderFunc(func(_ context.Context, msgs []llm.Message, opts ...llm.GenerateOption) (llm.Message, error) {
		assert.Equal(t, llm.FormatJSONObject, llm.ApplyOptions(opts...).Format)
		return answer(`{"name":"` + msgs[len(msgs)-1].Content + `"}`), nil
	})
	prompt := NewStage("prompt", func(_ context.Context, name string) ([]llm.Message, error) {
		return []llm.Message{{Role: llm.RoleSystem, Content: "extract"}, {Role: llm.RoleUser, Content: name}}, nil
	})

	p := Pipe3(prompt, ModelStage(provider, llm.WithFormat(llm.FormatJSONObject)), JSONParser[cardFields](nil))
	got, err := p.Run(context.Background(), "Choi")
	require.NoError(t, err)
	assert.Equal(t, "Choi", got.Name)
}

func TestAsStage_WrapsChain(t *testing.T) {
	p := &scriptedProvider{reply: func(int, []llm.Message) (llm.Message, error) { return answer("hi"), nil }}
	s := AsStage("agent", NewReActCycle(p, nil, ReActConfig{}))

	out, err := s.Run(context.Background(), ChainInput{UserQuery: "q"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Result)
}
