package models

import "time"

// Business is a directory record. Only the fields the API exposes are modelled here.
type Business struct {
	ID        uint64 `gorm:"primaryKey"`
	Name      string `gorm:"size:200;not null;index"`
	Category  string `gorm:"size:100;index"`
	Address   string `gorm:"size:255"`
	Phone     string `gorm:"size:50"`
	Email     string `gorm:"size:255"`
	Latitude  float64
	Longitude float64
	// Published records are visible to anonymous callers.
	Published bool `gorm:"not null;default:false"`
	// CreatedBy is the ID of the user that created the record.
	CreatedBy uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Business model.
func (Business) TableName() string {
	return "businesses"
}
