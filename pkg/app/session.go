package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilkoid/tripmate/pkg/apiclient"
	"github.com/ilkoid/tripmate/pkg/apperr"
	"github.com/ilkoid/tripmate/pkg/chain"
	"github.com/ilkoid/tripmate/pkg/debug"
	"github.com/ilkoid/tripmate/pkg/events"
	"github.com/ilkoid/tripmate/pkg/llm"
	"github.com/ilkoid/tripmate/pkg/prompt"
	"github.com/ilkoid/tripmate/pkg/retrieval"
	"github.com/ilkoid/tripmate/pkg/session"
	"github.com/ilkoid/tripmate/pkg/state"
	"github.com/ilkoid/tripmate/pkg/utils"
)

// debugResultSize: сколько рун результата инструмента попадает в трейс.
const debugResultSize = 4000

// SessionOptions: параметры новой сессии.
type SessionOptions struct {
	// ID сессии; пустой: новый UUID. Маршруты в DynamoDB привязаны к ID.
	ID string

	// Emitter получает события хода (для TUI). nil: события не отправляются.
	Emitter events.Emitter

	// Now подставляется в системный промпт; по умолчанию time.Now.
	Now func() time.Time
}

// NewSession собирает сессию: состояние, инструменты, цикл агента и
// источник контекста пресета.
func (c *Components) NewSession(ctx context.Context, preset *Preset, opts SessionOptions) (*session.Session, error) {
	if preset == nil {
		p, err := GetPreset(DefaultPreset)
		if err != nil {
			return nil, err
		}
		preset = p
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	st := state.NewSession(opts.ID, c.Routes)

	registry, err := c.SetupTools(ctx, st, preset.Filter())
	if err != nil {
		return nil, err
	}

	system, genOpts, err := c.systemPrompt(opts.Now())
	if err != nil {
		return nil, err
	}

	agentCfg := c.Config.Agent
	cycle := chain.NewReActCycle(c.Chat, registry, chain.ReActConfig{
		SystemPrompt:    system,
		MaxIterations:   agentCfg.MaxIterations,
		ParallelTools:   agentCfg.ParallelTools,
		ToolTimeout:     agentCfg.ToolTimeout,
		ToolTimeouts:    c.ToolTimeouts(),
		GenerateOptions: genOpts,
	}).WithObservers(chain.LoggingObserver{})
	if opts.Emitter != nil {
		cycle = cycle.WithObservers(chain.NewEmitterObserver(opts.Emitter))
	}
	if c.Config.App.Debug {
		rec, err := debug.NewRecorder(debug.RecorderConfig{
			Dir:           filepath.Join(c.Config.App.LogDir, "debug"),
			SessionID:     st.ID(),
			MaxResultSize: debugResultSize,
		})
		if err != nil {
			return nil, err
		}
		cycle = cycle.WithObservers(rec)
	}

	var provider session.ContextProvider
	if preset.Retrieval {
		if provider, err = c.contextProvider(ctx); err != nil {
			return nil, err
		}
	}

	sess, err := session.New(session.Config{
		Agent:   cycle,
		State:   st,
		Context: provider,
	})
	if err != nil {
		return nil, err
	}
	utils.Info("Session started", "id", sess.ID(), "preset", preset.Name, "tools", registry.Names())
	return sess, nil
}

// systemPrompt рендерит системный промпт агента.
func (c *Components) systemPrompt(now time.Time) (string, []llm.GenerateOption, error) {
	name := c.Config.Agent.SystemPrompt
	if name == "" {
		name = prompt.AgentSystem
	}
	pf := c.Prompt(name)
	system, err := pf.RenderSystem(struct {
		Now      string
		Language string
	}{
		Now:      now.Format("2006-01-02 15:04 Monday"),
		Language: c.Config.Agent.Language,
	})
	if err != nil {
		return "", nil, fmt.Errorf("render system prompt %s: %w", name, err)
	}
	return system, pf.Options(), nil
}

// contextProvider создаёт источник контекста над коллекцией документов.
// С retrieval.contextualize вопрос переформулируется с учётом истории.
func (c *Components) contextProvider(ctx context.Context) (session.ContextProvider, error) {
	retriever, err := c.Retriever(ctx, c.Config.Retrieval.Collection)
	if err != nil {
		return nil, fmt.Errorf("retrieval preset: %w", err)
	}
	if !c.Config.Retrieval.Contextualize {
		return plainContext{retriever}, nil
	}
	pf := c.Prompt(prompt.Contextualize)
	system, err := pf.RenderSystem(nil)
	if err != nil {
		return nil, fmt.Errorf("render contextualize prompt: %w", err)
	}
	return retrieval.NewHistoryAwareRetriever(c.Chat, retriever, system), nil
}

// plainContext ищет по запросу как есть, без учёта истории.
type plainContext struct {
	retriever *retrieval.Retriever
}

func (p plainContext) Retrieve(ctx context.Context, query string, _ []llm.Message) ([]string, error) {
	return p.retriever.Texts(ctx, query)
}

// Asker: то, что умеет отвечать на ход (session.Session).
type Asker interface {
	Ask(ctx context.Context, req session.Request) (session.Reply, error)
}

// RunREPL: консольная петля: строка из in, ответ в out.
// Завершается на "exit" или "quit" в любом регистре, EOF или отмене ctx.
func RunREPL(ctx context.Context, s Asker, in io.Reader, out io.Writer, inputPrompt string) error {
	fmt.Fprintln(out, "Type 'exit' or 'quit' to exit")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, inputPrompt)
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(query, "exit") || strings.EqualFold(query, "quit") {
			fmt.Fprintln(out, "Goodbye!")
			break
		}
		if query == "" {
			continue
		}

		reply, err := s.Ask(ctx, session.Request{Query: query})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "Error: %s\n\n", HumanError(err))
			continue
		}

		fmt.Fprintln(out, reply.Text)
		if reply.Partial {
			fmt.Fprintln(out, "(answer is incomplete: iteration limit reached)")
		}
		fmt.Fprintln(out)
	}
	return scanner.Err()
}

// HumanError превращает ошибку в короткое сообщение для пользователя.
func HumanError(err error) string {
	var upstream *apperr.UpstreamError
	switch {
	case errors.As(err, &upstream):
		return fmt.Sprintf("%s is unavailable right now. %s (%v)",
			upstream.Service, apiclient.ClassifyError(err).HumanMessage(), err)
	case errors.Is(err, apperr.ErrNotFound):
		return "nothing found: " + err.Error()
	case errors.Is(err, apperr.ErrParseFailure):
		return "the model returned an unexpected answer, please try again"
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	default:
		return err.Error()
	}
}
