package agent

import (
	"context"
	"fmt"

	"github.com/ilkoid/tripmate/pkg/app"
	"github.com/ilkoid/tripmate/pkg/session"
	"github.com/ilkoid/tripmate/pkg/utils"
)

// Client: фасад над app.Components и одной session.Session.
//
// Ходы одной сессии выполняются последовательно (это гарантирует
// session.Session), поэтому Client можно вызывать из разных goroutine.
type Client struct {
	components *app.Components
	preset     *app.Preset
	session    *session.Session
	ownsComps  bool
}

// New загружает config.yaml, инициализирует компоненты и открывает сессию.
func New(ctx context.Context, cfg Config) (*Client, error) {
	appCfg, path, err := app.InitializeConfig(ctx, &app.DefaultConfigPathFinder{ConfigFlag: cfg.ConfigPath})
	if err != nil {
		return nil, err
	}
	utils.Info("Config loaded", "path", path)

	comps, err := app.Initialize(ctx, appCfg)
	if err != nil {
		return nil, err
	}

	client, err := NewWithComponents(ctx, comps, cfg)
	if err != nil {
		_ = comps.Close()
		return nil, err
	}
	client.ownsComps = true
	return client, nil
}

// NewWithComponents открывает сессию над уже созданными компонентами.
// Close такого клиента компоненты не закрывает.
func NewWithComponents(ctx context.Context, comps *app.Components, cfg Config) (*Client, error) {
	if comps == nil {
		return nil, fmt.Errorf("components are nil")
	}
	preset, err := app.GetPreset(cfg.Preset)
	if err != nil {
		return nil, err
	}
	sess, err := comps.NewSession(ctx, preset, app.SessionOptions{
		ID:      cfg.SessionID,
		Emitter: cfg.Emitter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &Client{components: comps, preset: preset, session: sess}, nil
}

// Run выполняет ход и возвращает текст ответа.
func (c *Client) Run(ctx context.Context, query string) (string, error) {
	reply, err := c.Ask(ctx, session.Request{Query: query})
	if err != nil {
		return "", err
	}
	return reply.Text, nil
}

// Ask выполняет ход с полным результатом (частичность, итерации, вызовы инструментов).
func (c *Client) Ask(ctx context.Context, req session.Request) (session.Reply, error) {
	reply, err := c.session.Ask(ctx, req)
	if err != nil {
		return session.Reply{}, err
	}
	utils.Debug("Turn finished",
		"session", c.session.ID(),
		"iterations", reply.Iterations,
		"tool_calls", len(reply.ToolResults),
		"partial", reply.Partial)
	return reply, nil
}

// Session возвращает сессию клиента.
func (c *Client) Session() *session.Session { return c.session }

// Components возвращает компоненты приложения.
func (c *Client) Components() *app.Components { return c.components }

// Preset возвращает пресет, с которым открыта сессия.
func (c *Client) Preset() *app.Preset { return c.preset }

// Close закрывает компоненты, если клиент создал их сам.
func (c *Client) Close() error {
	if !c.ownsComps {
		return nil
	}
	return c.components.Close()
}
