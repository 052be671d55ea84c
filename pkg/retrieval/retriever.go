package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/ilkoid/tripmate/pkg/chain"
	"github.com/ilkoid/tripmate/pkg/llm"
	"github.com/ilkoid/tripmate/pkg/utils"
)

// ContextualizePrompt просит модель превратить вопрос, ссылающийся
// на историю, в самостоятельный.
const ContextualizePrompt = "Given a chat history and the latest user question " +
	"which might reference context in the chat history, formulate a standalone question " +
	"which can be understood without the chat history. Do NOT answer the question, " +
	"just reformulate it if needed and otherwise return it as is."

// Retriever ищет фрагменты, похожие на запрос.
type Retriever struct {
	store      *Store
	embedder   llm.Embedder
	collection string
	topK       int
}

// NewRetriever создаёт Retriever над коллекцией. topK <= 0 означает 4.
func NewRetriever(store *Store, embedder llm.Embedder, collection string, topK int) *Retriever {
	if topK <= 0 {
		topK = 4
	}
	return &Retriever{store: store, embedder: embedder, collection: collection, topK: topK}
}

// Search возвращает topK фрагментов по убыванию сходства.
func (r *Retriever) Search(ctx context.Context, query string) ([]Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is empty")
	}
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vectors))
	}
	return r.store.Search(ctx, r.collection, vectors[0], r.topK)
}

// Texts возвращает только тексты найденных фрагментов.
func (r *Retriever) Texts(ctx context.Context, query string) ([]string, error) {
	matches, err := r.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Content
	}
	return out, nil
}

// HistoryAwareRetriever учитывает историю диалога: при непустой истории
// вопрос сначала переформулируется моделью в самостоятельный.
//
// Реализует session.ContextProvider.
type HistoryAwareRetriever struct {
	retriever  *Retriever
	standalone chain.Stage[[]llm.Message, string]
	prompt     string
}

// NewHistoryAwareRetriever создаёт ретривер. Пустой prompt заменяется на ContextualizePrompt.
func NewHistoryAwareRetriever(provider llm.Provider, retriever *Retriever, prompt string) *HistoryAwareRetriever {
	if prompt == "" {
		prompt = ContextualizePrompt
	}
	return &HistoryAwareRetriever{
		retriever:  retriever,
		standalone: chain.Pipe(chain.ModelStage(provider, llm.WithTemperature(0)), chain.TextParser()),
		prompt:     prompt,
	}
}

// Retrieve возвращает тексты фрагментов для вопроса с учётом истории.
func (h *HistoryAwareRetriever) Retrieve(ctx context.Context, query string, history []llm.Message) ([]string, error) {
	question, err := h.Standalone(ctx, query, history)
	if err != nil {
		return nil, err
	}
	return h.retriever.Texts(ctx, question)
}

// Standalone возвращает самостоятельную формулировку вопроса.
// Без истории вопрос возвращается как есть, модель не вызывается.
func (h *HistoryAwareRetriever) Standalone(ctx context.Context, query string, history []llm.Message) (string, error) {
	if len(history) == 0 {
		return query, nil
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: h.prompt})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})

	question, err := h.standalone.Run(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("contextualize question: %w", err)
	}
	if question = strings.TrimSpace(question); question == "" {
		return query, nil
	}
	utils.Debug("question contextualized", "original", query, "standalone", question)
	return question, nil
}
