package specification

import "gorm.io/gorm"

type ByConversationID struct {
	ConversationID int64
}

func (s ByConversationID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversation_id = ?", s.ConversationID)
}

// RecentFirst orders newest rows first. The id tiebreak keeps rows created
// within the same timestamp tick in insertion order.
type RecentFirst struct{}

func (s RecentFirst) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC").Order("id DESC")
}
