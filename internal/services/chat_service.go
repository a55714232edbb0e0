package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/markdave123-py/Prism/internal/core"
	"github.com/markdave123-py/Prism/internal/core/logger"
	"github.com/markdave123-py/Prism/internal/models"
)

const (
	defaultTopK = 15
	broadTopK   = 20

	// A search returning fewer usable documents than this is retried with
	// broadTopK, but only when the store holds more than broadSearchMinChunks.
	minContextDocs       = 5
	broadSearchMinChunks = 10
)

const (
	NoDocumentsMessage = "I don't have any relevant information to answer that question. Please upload some documents first! 📁"
	NoRelevantMessage  = "I found some documents but they don't contain relevant information to answer your question. 📄"
)

const AssistantSystemPrompt = "You are an exceptionally intelligent and helpful AI assistant. You have strong language understanding capabilities and can automatically interpret user questions even with spelling mistakes, typos, or grammatical errors. Always answer in clear, natural, conversational language that's easy to understand. Focus on being helpful and providing accurate information based on the provided context."

const answerPromptTemplate = `You are an intelligent AI assistant with strong language understanding capabilities. You should:
1. Automatically understand and correct any spelling mistakes or typos in the user's question
2. Interpret the user's intent even if the question is poorly written
3. Answer in clear, natural, easy-to-understand language
4. Be conversational and helpful

Context from uploaded documents:
%s

User's Question (may contain typos - understand the intent): %s

Instructions:
- First, understand what the user is really asking (correct any spelling/grammar issues mentally)
- Then, provide a comprehensive answer based ONLY on the context above
- Answer in natural, conversational language that's easy to understand
- If the context doesn't contain the answer, politely say "I don't have that information in the uploaded documents"

Your helpful answer:`

type ChatService struct {
	sessions *SessionService
	log      *logger.Logger
}

func NewChatService(sessions *SessionService, log *logger.Logger) *ChatService {
	return &ChatService{sessions: sessions, log: log.With("service", "ChatService")}
}

// Chat records the user turn, answers it and records the assistant turn.
// The returned error is only about the session itself; answer failures are
// rendered into the reply.
func (s *ChatService) Chat(ctx context.Context, sessionID, message string) (string, error) {
	var reply string
	err := s.sessions.Do(ctx, sessionID, func(sess *Session) error {
		sess.AppendTurn(models.RoleUser, message)

		store, err := sess.Store(ctx)
		if err != nil {
			reply = "Error processing chat: " + err.Error()
			sess.AppendTurn(models.RoleAssistant, reply)
			return nil
		}
		llm, err := sess.LLM(ctx)
		if err != nil {
			reply = "Error processing chat: " + err.Error()
			sess.AppendTurn(models.RoleAssistant, reply)
			return nil
		}

		reply = s.Answer(ctx, message, store, llm)
		sess.AppendTurn(models.RoleAssistant, reply)
		return nil
	})
	return reply, err
}

// Answer retrieves context for question and asks the model. It always returns
// displayable text.
func (s *ChatService) Answer(ctx context.Context, question string, store core.VectorStore, llm core.LLMProvider) string {
	results, err := store.Query(ctx, question, defaultTopK)
	if err != nil {
		s.log.Error("retrieval failed", "error", err)
		return "Error processing chat: " + err.Error()
	}
	if len(results) == 0 {
		return NoDocumentsMessage
	}

	docs := nonEmptyDocuments(results)
	if len(docs) < minContextDocs {
		n, err := store.Count(ctx)
		if err != nil {
			s.log.Warn("count failed, keeping narrow search", "error", err)
		} else if n > broadSearchMinChunks {
			broad, err := store.Query(ctx, question, broadTopK)
			if err != nil {
				s.log.Warn("broad search failed, keeping narrow results", "error", err)
			} else if len(broad) > 0 {
				docs = nonEmptyDocuments(broad)
			}
		}
	}
	if len(docs) == 0 {
		return NoRelevantMessage
	}

	prompt := BuildAnswerPrompt(strings.Join(docs, "\n\n"), question)
	answer, err := llm.Generate(ctx, AssistantSystemPrompt, prompt)
	if err != nil {
		genErr := &core.GenerationError{Err: err}
		s.log.Error("generation failed", "error", err)
		return genErr.Error()
	}
	s.log.Debug("answer generated", "context_docs", len(docs), "chars", len(answer))
	return answer
}

func BuildAnswerPrompt(context, question string) string {
	return fmt.Sprintf(answerPromptTemplate, context, question)
}

func nonEmptyDocuments(results []models.QueryResult) []string {
	docs := make([]string, 0, len(results))
	for _, r := range results {
		if strings.TrimSpace(r.Document) != "" {
			docs = append(docs, r.Document)
		}
	}
	return docs
}
