package model

import (
	"time"

	"gorm.io/datatypes"
)

// AIEvent is one journaled arena notification: a state change, detection,
// strike or player health change.
type AIEvent struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	ArenaID   string         `gorm:"index:idx_ai_event_arena;size:64;not null" json:"arena_id"`
	Event     string         `gorm:"size:32;not null" json:"event"`
	AgentID   string         `gorm:"index:idx_ai_event_agent;size:64" json:"agent_id,omitempty"`
	PlayerID  string         `gorm:"size:64" json:"player_id,omitempty"`
	Data      datatypes.JSON `json:"data"`
	CreatedAt time.Time      `gorm:"index:idx_ai_event_created;autoCreateTime:milli" json:"created_at"`
}
