package scope

import "gorm.io/gorm"

// Newest puts the most recently created row first.
func Newest(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC")
}

// InConversationOrder sorts chat messages by their storage assigned position.
func InConversationOrder(db *gorm.DB) *gorm.DB {
	return db.Order("message_order ASC")
}
