package orchestrator

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"newsdesk/cache"
	"newsdesk/types"
)

// ChatState is the state of an article's follow-up conversation.
type ChatState string

const (
	ChatIdle          ChatState = "idle"
	ChatAwaitingReply ChatState = "awaiting-reply"
)

// ChatOptions controls a single chat turn.
type ChatOptions struct {
	// UseWebSearch runs a web search on the question before asking the model.
	UseWebSearch bool
}

// ChatReply is the outcome of a chat turn. Thread is the whole conversation
// including the new question and the reply.
type ChatReply struct {
	Message cache.ChatMessage `json:"message"`
	Thread  cache.ChatThread  `json:"thread"`
}

// SendChatMessage appends text to the article's thread, asks the model for a
// reply and persists the updated thread. A nil thread means the cached one.
//
// When generation fails the reply is an assistant message flagged Failed that
// carries the error text; it is appended and persisted like any other reply
// and the error is returned alongside it.
func (o *Orchestrator) SendChatMessage(ctx context.Context, article types.Article, thread []cache.ChatMessage, text string, opts ChatOptions) (ChatReply, error) {
	if strings.TrimSpace(article.ID) == "" || strings.TrimSpace(article.Title) == "" {
		return ChatReply{}, ErrInvalidArticle
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ChatReply{}, ErrEmptyChatMessage
	}
	if o.generator == nil {
		return ChatReply{}, ErrNoGenerator
	}

	o.beginChat(article.ID)
	defer o.endChat(article.ID)

	log := o.logger.With(zap.String("article_id", article.ID))
	if thread == nil {
		if entry, ok := o.cache.Chats.Get(article.ID); ok {
			thread = entry.Payload.Messages
		}
	}
	history := append([]cache.ChatMessage(nil), thread...)
	messages := append(history, cache.ChatMessage{
		Role: cache.RoleUser,
		Text: text,
		At:   o.clock.Now(),
	})

	var web []cache.WebRef
	if opts.UseWebSearch {
		web = o.searchWeb(ctx, log, text)
	}

	body := o.bestText(article)
	var summary *cache.Summary
	if entry, ok := o.cache.Summaries.Get(article.ID); ok {
		summary = &entry.Payload
	}

	reply := cache.ChatMessage{Role: cache.RoleAssistant, Web: web}
	answer, genErr := o.generate(ctx, chatMessages(article, body, summary, history, text, web, o.cfg.MaxPromptChars))
	if genErr != nil {
		log.Error("chat reply failed", zap.Error(genErr))
		reply.Text = "Error: " + genErr.Error()
		reply.Failed = true
	} else {
		reply.Text = answer
	}
	reply.At = o.clock.Now()
	messages = append(messages, reply)

	out := ChatReply{Message: reply, Thread: cache.ChatThread{Messages: messages}}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	if _, err := o.cache.Chats.Set(ctx, article.ID, out.Thread); err != nil {
		log.Warn("failed to persist chat thread", zap.Error(err))
	}
	return out, genErr
}

// ChatState reports whether a reply is being generated for the article.
func (o *Orchestrator) ChatState(articleID string) ChatState {
	o.pendingMu.Lock()
	defer o.pendingMu.Unlock()
	if o.pending[articleID] > 0 {
		return ChatAwaitingReply
	}
	return ChatIdle
}

func (o *Orchestrator) beginChat(articleID string) {
	o.pendingMu.Lock()
	o.pending[articleID]++
	o.pendingMu.Unlock()
}

func (o *Orchestrator) endChat(articleID string) {
	o.pendingMu.Lock()
	if o.pending[articleID]--; o.pending[articleID] <= 0 {
		delete(o.pending, articleID)
	}
	o.pendingMu.Unlock()
}

// Translate renders the article's best available text, the cached scrape or
// else the feed text, in language.
func (o *Orchestrator) Translate(ctx context.Context, article types.Article, language string) (string, error) {
	if strings.TrimSpace(article.ID) == "" || strings.TrimSpace(article.Title) == "" {
		return "", ErrInvalidArticle
	}
	language = strings.TrimSpace(language)
	if language == "" {
		language = "English"
	}

	body := o.bestText(article)
	out, err := o.generate(ctx, translateMessages(article.Title, body, language, o.cfg.MaxPromptChars))
	if err != nil {
		o.logger.Error("translation failed", zap.String("article_id", article.ID), zap.String("language", language), zap.Error(err))
		return "", err
	}
	return out, nil
}
