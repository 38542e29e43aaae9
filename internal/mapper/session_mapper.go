package mapper

import (
	"encoding/json"
	"time"

	"ai-saleschat-be/internal/entity"
	"ai-saleschat-be/internal/model"

	"gorm.io/gorm"
)

type SessionMapper struct{}

func NewSessionMapper() *SessionMapper {
	return &SessionMapper{}
}

func (m *SessionMapper) SessionToEntity(s *model.Session) *entity.Session {
	if s == nil {
		return nil
	}

	var deletedAt *time.Time
	if s.DeletedAt.Valid {
		t := s.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}

	var history []entity.StageVisit
	if len(s.StageHistory) > 0 {
		// Corrupt history is treated as empty rather than failing the read
		_ = json.Unmarshal(s.StageHistory, &history)
	}

	sessionContext := map[string]interface{}{}
	if len(s.Context) > 0 {
		_ = json.Unmarshal(s.Context, &sessionContext)
	}

	return &entity.Session{
		Id:           s.Id,
		TenantId:     s.TenantId,
		UserId:       s.UserId,
		CurrentStage: s.CurrentStage,
		StageHistory: history,
		Context:      sessionContext,
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.LastActiveAt,
		UpdatedAt:    updatedAt,
		DeletedAt:    deletedAt,
	}
}

func (m *SessionMapper) SessionToModel(s *entity.Session) *model.Session {
	if s == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if s.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *s.DeletedAt, Valid: true}
	}

	var updatedAt time.Time
	if s.UpdatedAt != nil {
		updatedAt = *s.UpdatedAt
	}

	history, _ := json.Marshal(s.StageHistory)
	sessionContext, _ := json.Marshal(s.Context)

	return &model.Session{
		Id:           s.Id,
		TenantId:     s.TenantId,
		UserId:       s.UserId,
		CurrentStage: s.CurrentStage,
		StageHistory: history,
		Context:      sessionContext,
		CreatedAt:    s.CreatedAt,
		LastActiveAt: s.LastActiveAt,
		UpdatedAt:    updatedAt,
		DeletedAt:    deletedAt,
	}
}

// Message Mappers

func (m *SessionMapper) MessageToEntity(msg *model.Message) *entity.Message {
	if msg == nil {
		return nil
	}

	var toolCall *entity.ToolCall
	if len(msg.ToolCall) > 0 {
		var tc entity.ToolCall
		if err := json.Unmarshal(msg.ToolCall, &tc); err == nil {
			toolCall = &tc
		}
	}

	return &entity.Message{
		Id:         msg.Id,
		SessionId:  msg.SessionId,
		Role:       msg.Role,
		Content:    msg.Content,
		TokenCount: msg.TokenCount,
		ToolCall:   toolCall,
		CreatedAt:  msg.CreatedAt,
	}
}

func (m *SessionMapper) MessageToModel(msg *entity.Message) *model.Message {
	if msg == nil {
		return nil
	}

	var toolCall []byte
	if msg.ToolCall != nil {
		toolCall, _ = json.Marshal(msg.ToolCall)
	}

	return &model.Message{
		Id:         msg.Id,
		SessionId:  msg.SessionId,
		Role:       msg.Role,
		Content:    msg.Content,
		TokenCount: msg.TokenCount,
		ToolCall:   toolCall,
		CreatedAt:  msg.CreatedAt,
	}
}

func (m *SessionMapper) MessagesToEntities(models []*model.Message) []*entity.Message {
	entities := make([]*entity.Message, len(models))
	for i, msg := range models {
		entities[i] = m.MessageToEntity(msg)
	}
	return entities
}
