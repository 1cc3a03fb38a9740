package models

import (
	"encoding/json"
	"time"
)

// Relation names accepted by the user repository's preload options.
const (
	RelationProfile = "Profile"
	RelationLogs    = "Logs"
	RelationRoles   = "Roles"
)

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:191;unique;not null" json:"username"`
	Password  string    `gorm:"not null" json:"-"` // bcrypt hash, never serialized
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`

	Profile *Profile `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"profile,omitempty"`
	Logs    []Logs   `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"logs"`
	Roles   []Role   `gorm:"many2many:users_roles;" json:"roles"`
}

func (User) TableName() string {
	return "user"
}

// MarshalJSON renders unloaded collections as empty arrays rather than null.
func (u User) MarshalJSON() ([]byte, error) {
	type plain User
	p := plain(u)
	if p.Logs == nil {
		p.Logs = []Logs{}
	}
	if p.Roles == nil {
		p.Roles = []Role{}
	}
	return json.Marshal(p)
}
