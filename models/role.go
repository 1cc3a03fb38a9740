package models

type Role struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Name  string `gorm:"size:191;unique;not null" json:"name"`
	Users []User `gorm:"many2many:users_roles;" json:"-"` // Many-to-Many relationship back to User
}

func (Role) TableName() string {
	return "roles"
}
