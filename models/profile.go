package models

// Profile is the owning side of the one-to-one with User: it holds the foreign key.
type Profile struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Gender  int    `json:"gender"`
	Photo   string `json:"photo"`
	Address string `json:"address"`
	UserID  uint   `gorm:"uniqueIndex;not null" json:"-"`
}

func (Profile) TableName() string {
	return "profile"
}
