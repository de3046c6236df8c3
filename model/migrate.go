package model

import "gorm.io/gorm"

var allModels = []interface{}{
	&AIEvent{},
}

// AutoMigrate creates or updates all tables in the given database.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(allModels...)
}
