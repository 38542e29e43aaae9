package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ai-saleschat-be/internal/apperror"
	"ai-saleschat-be/internal/constant"
	"ai-saleschat-be/internal/dto"
	"ai-saleschat-be/internal/entity"
	"ai-saleschat-be/internal/pkg/logger"
	"ai-saleschat-be/internal/repository/specification"
	"ai-saleschat-be/internal/repository/unitofwork"
	"ai-saleschat-be/pkg/agent"
	"ai-saleschat-be/pkg/ai/router"
	"ai-saleschat-be/pkg/events"
	"ai-saleschat-be/pkg/funnel"
	"ai-saleschat-be/pkg/llm"
	"ai-saleschat-be/pkg/ratelimit"
	"ai-saleschat-be/pkg/respcache"
	"ai-saleschat-be/pkg/session"

	"github.com/google/uuid"
)

const historyWindow = 20

// EventPublisher fans domain events out to the bus. Nil-safe at the
// call sites: single-process deployments run without a bus.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// IChatService is the conversation orchestration surface: one inbound
// message in, one routed, stage-tracked, possibly cached response out.
type IChatService interface {
	SendChat(ctx context.Context, request *dto.SendChatRequest) (*dto.SendChatResponse, error)
	SendChatStream(ctx context.Context, request *dto.SendChatRequest, onChunk func(frame dto.StreamFrame)) (*dto.SendChatResponse, error)
	GetChatHistory(ctx context.Context, tenantId, sessionId uuid.UUID) ([]*dto.ChatHistoryResponse, error)
	GetSession(ctx context.Context, tenantId, sessionId uuid.UUID) (*dto.SessionResponse, error)
	EndSession(ctx context.Context, tenantId uuid.UUID, request *dto.EndSessionRequest) error
}

type chatService struct {
	uowFactory  unitofwork.RepositoryFactory
	limiter     *ratelimit.Limiter
	cache       *respcache.Cache
	modelRouter *router.Router
	machine     *funnel.Machine
	sessions    *session.Manager
	executor    *agent.Executor
	provider    llm.LLMProvider
	publisher   EventPublisher
	logger      logger.ILogger
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	limiter *ratelimit.Limiter,
	cache *respcache.Cache,
	modelRouter *router.Router,
	machine *funnel.Machine,
	sessions *session.Manager,
	executor *agent.Executor,
	provider llm.LLMProvider,
	publisher EventPublisher,
	log logger.ILogger,
) IChatService {
	return &chatService{
		uowFactory:  uowFactory,
		limiter:     limiter,
		cache:       cache,
		modelRouter: modelRouter,
		machine:     machine,
		sessions:    sessions,
		executor:    executor,
		provider:    provider,
		publisher:   publisher,
		logger:      log,
	}
}

func (cs *chatService) SendChat(ctx context.Context, request *dto.SendChatRequest) (*dto.SendChatResponse, error) {
	return cs.handleTurn(ctx, request, nil)
}

// SendChatStream runs the same turn but delivers the response as it is
// generated. The final frame carries Done=true after the turn is
// persisted.
func (cs *chatService) SendChatStream(ctx context.Context, request *dto.SendChatRequest, onChunk func(frame dto.StreamFrame)) (*dto.SendChatResponse, error) {
	return cs.handleTurn(ctx, request, onChunk)
}

// handleTurn is the orchestration pipeline: admission gate, session
// lookup under the per-session lock, idle recovery, stage evaluation,
// routing, generation (cached, streamed, or agent-planned), then a
// single transaction persisting the turn.
func (cs *chatService) handleTurn(ctx context.Context, request *dto.SendChatRequest, onChunk func(frame dto.StreamFrame)) (*dto.SendChatResponse, error) {
	now := time.Now()

	identifier := cs.admissionIdentifier(request)
	if _, err := cs.limiter.Admit(ctx, identifier, constant.CredentialClassChat, now); err != nil {
		var denied *apperror.AdmissionDenied
		if errors.As(err, &denied) && cs.publisher != nil {
			if perr := cs.publisher.Publish(ctx, events.NewAdmissionBlocked(identifier, denied.RetryAfter.Seconds())); perr != nil {
				cs.logger.Warn("CHAT", "Failed to publish admission block", map[string]interface{}{"error": perr.Error()})
			}
		}
		return nil, err
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	// Serialize turns per session. For a brand-new session the id does
	// not exist yet, so the lock is taken right after creation.
	var unlock func()
	if request.SessionId != nil {
		unlock = cs.sessions.Lock(*request.SessionId)
	}
	chatSession, created, err := cs.sessions.LookupOrCreate(ctx, uow, request.SessionId, request.TenantId, request.UserId, now)
	if err != nil {
		if unlock != nil {
			unlock()
		}
		return nil, err
	}
	if unlock == nil {
		unlock = cs.sessions.Lock(chatSession.Id)
	}
	defer unlock()

	metadata := map[string]interface{}{}

	// A closed session never comes back: the conversation continues
	// under a fresh id in greeting.
	if chatSession.CurrentStage == string(funnel.StageClosed) {
		reopened, rerr := cs.sessions.Reopen(ctx, uow, request.TenantId, request.UserId, now)
		if rerr != nil {
			return nil, rerr
		}
		metadata["reopened_from"] = chatSession.Id.String()
		previousUnlock := unlock
		unlock = cs.sessions.Lock(reopened.Id)
		previousUnlock()
		chatSession = reopened
		created = true
	}

	// Idle recovery happens on the turn boundary too, not only in the
	// background sweep, so a returning user lands in the right stage.
	if recovery, fired := cs.machine.CheckIdle(chatSession, now); fired {
		from := chatSession.CurrentStage
		cs.machine.Apply(chatSession, recovery, now, map[string]interface{}{"idle_recovery": true})
		cs.publishStageMoved(ctx, chatSession.Id, from, string(recovery), "idle_timeout")
		metadata["idle_recovery"] = true
	}

	signal := funnel.DetectSignal(request.Message)
	nextStage, transitionErr := cs.machine.Evaluate(chatSession, signal)
	if transitionErr == nil && nextStage != funnel.Stage(chatSession.CurrentStage) {
		from := chatSession.CurrentStage
		cs.machine.Apply(chatSession, nextStage, now, map[string]interface{}{"signal": string(signal)})
		cs.publishStageMoved(ctx, chatSession.Id, from, string(nextStage), string(signal))
	}
	chatSession.LastActiveAt = now

	decision := cs.modelRouter.Route(request.Message, chatSession.Context)
	metadata["model"] = decision.Primary
	metadata["routing_reason"] = decision.Reason

	var (
		assistantText string
		degraded      bool
		toolCall      *entity.ToolCall
	)

	switch {
	case transitionErr != nil:
		// The machine rejected the jump: surface the structured reason
		// instead of an opaque failure, and stay in the current stage.
		var invalid *apperror.InvalidTransition
		errors.As(transitionErr, &invalid)
		assistantText = fmt.Sprintf("I can't do that just yet: %s.", invalid.Reason)
		metadata["invalid_transition"] = invalid.Reason

	case funnel.Stage(chatSession.CurrentStage) == funnel.StageClosed:
		assistantText = constant.SessionFarewell

	case created && signal == funnel.SignalNone:
		// A fresh session opened by a plain greeting gets the canned
		// opener without spending a model call.
		assistantText = constant.InitialAssistantGreeting

	case decision.MultiStep:
		assistantText, toolCall, degraded = cs.runAgentTurn(ctx, chatSession, request.Message, decision, metadata)

	default:
		assistantText, degraded = cs.runModelTurn(ctx, uow, chatSession, request.Message, decision, metadata, onChunk)
	}

	// A client disconnect cancels the model call, not the bookkeeping:
	// whatever answer the turn produced still lands in storage.
	persistCtx := context.WithoutCancel(ctx)
	if err := cs.persistTurn(persistCtx, uow, chatSession, request.Message, assistantText, toolCall, now); err != nil {
		return nil, err
	}

	if funnel.Stage(chatSession.CurrentStage) == funnel.StageClosed {
		if cs.publisher != nil {
			if perr := cs.publisher.Publish(ctx, events.NewSessionClosed(chatSession.Id.String(), "user_exit")); perr != nil {
				cs.logger.Warn("CHAT", "Failed to publish session close", map[string]interface{}{"error": perr.Error()})
			}
		}
		cs.sessions.Evict(chatSession.Id)
	}

	response := &dto.SendChatResponse{
		Response:  assistantText,
		SessionId: chatSession.Id,
		Stage:     chatSession.CurrentStage,
		Degraded:  degraded,
		Metadata:  metadata,
	}

	if onChunk != nil {
		onChunk(dto.StreamFrame{SessionId: chatSession.Id, Done: true})
	}
	return response, nil
}

// runAgentTurn hands a multi-step request to the executor. A failed or
// out-of-budget plan still answers the user with the partial results
// and a plain-language explanation.
func (cs *chatService) runAgentTurn(ctx context.Context, chatSession *entity.Session, message string, decision router.Decision, metadata map[string]interface{}) (string, *entity.ToolCall, bool) {
	plan, answer, err := cs.executor.Run(ctx, message, decision.Primary)

	// The plan is audit material: keep it on the stage history entry
	// that owns this turn.
	if n := len(chatSession.StageHistory); n > 0 {
		if chatSession.StageHistory[n-1].Meta == nil {
			chatSession.StageHistory[n-1].Meta = map[string]interface{}{}
		}
		chatSession.StageHistory[n-1].Meta["plan"] = plan
	}
	metadata["plan_steps"] = len(plan.Steps)
	metadata["plan_status"] = string(plan.Status)

	toolCall := &entity.ToolCall{
		Tool:   "agent_plan",
		Input:  map[string]interface{}{"goal": plan.Goal, "steps": len(plan.Steps)},
		Output: string(plan.Status),
	}

	if err != nil {
		var aborted *apperror.PlanAborted
		if errors.As(err, &aborted) {
			text := aborted.Explanation
			if len(aborted.Partial) > 0 {
				text += "\n\n" + strings.Join(aborted.Partial, "\n")
			}
			return text, toolCall, true
		}
		cs.logger.Error("CHAT", "Agent turn failed", map[string]interface{}{"error": err.Error(), "session_id": chatSession.Id.String()})
		return constant.DegradedResponse, toolCall, true
	}
	return answer, toolCall, false
}

// runModelTurn serves the single-step path: response cache in front,
// primary model behind it, one retry against the router's fallback
// before degrading. Streamed turns skip the cache since chunks flow
// straight to the client.
func (cs *chatService) runModelTurn(ctx context.Context, uow unitofwork.UnitOfWork, chatSession *entity.Session, message string, decision router.Decision, metadata map[string]interface{}, onChunk func(frame dto.StreamFrame)) (string, bool) {
	compute := func(ctx context.Context) ([]byte, error) {
		text, err := cs.callModel(ctx, uow, chatSession, message, decision, onChunk)
		if err != nil {
			return nil, err
		}
		return []byte(text), nil
	}

	if onChunk != nil {
		text, err := compute(ctx)
		if err != nil {
			return cs.degradedText(chatSession, err), true
		}
		return string(text), false
	}

	key := respcache.Fingerprint(respcache.FingerprintInput{
		TenantId: chatSession.TenantId.String(),
		Stage:    chatSession.CurrentStage,
		Model:    decision.Primary,
		Message:  message,
	})
	tags := []string{
		"tenant:" + chatSession.TenantId.String(),
		"stage:" + chatSession.CurrentStage,
	}

	value, shared, err := cs.cache.GetOrCompute(ctx, key, 0, tags, compute)
	if err != nil {
		return cs.degradedText(chatSession, err), true
	}
	metadata["cache_hit"] = shared
	return string(value), false
}

// callModel generates the response with the primary model, retrying
// once against the fallback when the primary is unavailable.
func (cs *chatService) callModel(ctx context.Context, uow unitofwork.UnitOfWork, chatSession *entity.Session, message string, decision router.Decision, onChunk func(frame dto.StreamFrame)) (string, error) {
	history := cs.loadHistory(ctx, uow, chatSession.Id)
	history = append(history, llm.Message{Role: constant.ChatMessageRoleUser, Content: message})

	text, err := cs.generate(ctx, chatSession.Id, history, decision.Primary, onChunk)
	if err == nil {
		return text, nil
	}
	cs.logger.Warn("CHAT", "Primary model failed, retrying fallback", map[string]interface{}{
		"primary":  decision.Primary,
		"fallback": decision.Fallback,
		"error":    err.Error(),
	})

	text, err = cs.generate(ctx, chatSession.Id, history, decision.Fallback, onChunk)
	if err != nil {
		return "", &apperror.UpstreamUnavailable{Upstream: decision.Primary + "," + decision.Fallback, Err: err}
	}
	return text, nil
}

func (cs *chatService) generate(ctx context.Context, sessionId uuid.UUID, history []llm.Message, model string, onChunk func(frame dto.StreamFrame)) (string, error) {
	opts := []llm.Option{llm.WithModel(model)}

	if onChunk != nil {
		if streamer, ok := cs.provider.(llm.StreamingProvider); ok {
			return streamer.ChatStream(ctx, history, func(chunk string) {
				onChunk(dto.StreamFrame{SessionId: sessionId, Chunk: chunk})
			}, opts...)
		}
	}

	text, err := cs.provider.Chat(ctx, history, opts...)
	if err == nil && onChunk != nil {
		onChunk(dto.StreamFrame{SessionId: sessionId, Chunk: text})
	}
	return text, err
}

func (cs *chatService) degradedText(chatSession *entity.Session, err error) string {
	cs.logger.Error("CHAT", "All models unavailable, degrading", map[string]interface{}{
		"error":      err.Error(),
		"session_id": chatSession.Id.String(),
	})
	return constant.DegradedResponse
}

// persistTurn writes the user message, the assistant message, and the
// mutated session in one transaction. A turn either lands whole or not
// at all.
func (cs *chatService) persistTurn(ctx context.Context, uow unitofwork.UnitOfWork, chatSession *entity.Session, userText, assistantText string, toolCall *entity.ToolCall, now time.Time) error {
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	userMessage := &entity.Message{
		Id:        uuid.New(),
		SessionId: chatSession.Id,
		Role:      constant.ChatMessageRoleUser,
		Content:   userText,
		CreatedAt: now,
	}
	if err := uow.MessageRepository().Create(ctx, userMessage); err != nil {
		return err
	}

	assistantMessage := &entity.Message{
		Id:        uuid.New(),
		SessionId: chatSession.Id,
		Role:      constant.ChatMessageRoleAssistant,
		Content:   assistantText,
		ToolCall:  toolCall,
		CreatedAt: now.Add(time.Millisecond),
	}
	if err := uow.MessageRepository().Create(ctx, assistantMessage); err != nil {
		return err
	}

	if err := cs.sessions.Persist(ctx, uow, chatSession, now); err != nil {
		return err
	}

	return uow.Commit()
}

func (cs *chatService) loadHistory(ctx context.Context, uow unitofwork.UnitOfWork, sessionId uuid.UUID) []llm.Message {
	messages, err := uow.MessageRepository().FindAll(ctx,
		specification.BySession{SessionID: sessionId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: historyWindow},
	)
	if err != nil {
		cs.logger.Warn("CHAT", "Failed to load history, continuing without", map[string]interface{}{"error": err.Error()})
		return nil
	}

	// Query is newest-first for the window; the model wants oldest-first.
	history := make([]llm.Message, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		history = append(history, llm.Message{Role: messages[i].Role, Content: messages[i].Content})
	}
	return history
}

func (cs *chatService) publishStageMoved(ctx context.Context, sessionId uuid.UUID, from, to, signal string) {
	if cs.publisher == nil {
		return
	}
	if err := cs.publisher.Publish(ctx, events.NewSessionStageMoved(sessionId.String(), from, to, signal)); err != nil {
		cs.logger.Warn("CHAT", "Failed to publish stage move", map[string]interface{}{"error": err.Error()})
	}
}

// admissionIdentifier picks the most specific credential available:
// the authenticated user, else the tenant.
func (cs *chatService) admissionIdentifier(request *dto.SendChatRequest) string {
	if request.UserId != nil {
		return "user:" + request.UserId.String()
	}
	return "tenant:" + request.TenantId.String()
}

func (cs *chatService) GetChatHistory(ctx context.Context, tenantId, sessionId uuid.UUID) ([]*dto.ChatHistoryResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	owned, err := uow.SessionRepository().FindOne(ctx,
		specification.ByID{ID: sessionId},
		specification.TenantOwnedBy{TenantID: tenantId},
	)
	if err != nil {
		return nil, err
	}
	if owned == nil {
		return nil, fmt.Errorf("session not found or access denied")
	}

	messages, err := uow.MessageRepository().FindAll(ctx,
		specification.BySession{SessionID: sessionId},
		specification.OrderBy{Field: "created_at"},
	)
	if err != nil {
		return nil, err
	}

	responses := make([]*dto.ChatHistoryResponse, 0, len(messages))
	for _, m := range messages {
		responses = append(responses, &dto.ChatHistoryResponse{
			Id:        m.Id,
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	return responses, nil
}

func (cs *chatService) GetSession(ctx context.Context, tenantId, sessionId uuid.UUID) (*dto.SessionResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	chatSession, err := uow.SessionRepository().FindOne(ctx,
		specification.ByID{ID: sessionId},
		specification.TenantOwnedBy{TenantID: tenantId},
	)
	if err != nil {
		return nil, err
	}
	if chatSession == nil {
		return nil, fmt.Errorf("session not found or access denied")
	}

	visits := make([]dto.StageVisit, 0, len(chatSession.StageHistory))
	for _, v := range chatSession.StageHistory {
		visits = append(visits, dto.StageVisit{Stage: v.Stage, EnteredAt: v.EnteredAt, ExitedAt: v.ExitedAt})
	}

	return &dto.SessionResponse{
		Id:           chatSession.Id,
		TenantId:     chatSession.TenantId,
		CurrentStage: chatSession.CurrentStage,
		StageHistory: visits,
		CreatedAt:    chatSession.CreatedAt,
		LastActiveAt: chatSession.LastActiveAt,
	}, nil
}

// EndSession is the user's explicit exit: always legal from any stage.
func (cs *chatService) EndSession(ctx context.Context, tenantId uuid.UUID, request *dto.EndSessionRequest) error {
	now := time.Now()
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	unlock := cs.sessions.Lock(request.SessionId)
	defer unlock()

	chatSession, _, err := cs.sessions.LookupOrCreate(ctx, uow, &request.SessionId, tenantId, nil, now)
	if err != nil {
		return err
	}
	if chatSession.CurrentStage == string(funnel.StageClosed) {
		return apperror.ErrSessionClosed
	}

	from := chatSession.CurrentStage
	cs.machine.Apply(chatSession, funnel.StageClosed, now, map[string]interface{}{"signal": string(funnel.SignalExit)})
	if err := cs.sessions.Persist(ctx, uow, chatSession, now); err != nil {
		return err
	}

	cs.publishStageMoved(ctx, chatSession.Id, from, string(funnel.StageClosed), string(funnel.SignalExit))
	if cs.publisher != nil {
		if perr := cs.publisher.Publish(ctx, events.NewSessionClosed(chatSession.Id.String(), "user_exit")); perr != nil {
			cs.logger.Warn("CHAT", "Failed to publish session close", map[string]interface{}{"error": perr.Error()})
		}
	}
	cs.sessions.Evict(chatSession.Id)
	return nil
}
