package models

// Logs is one audited request. UserID is nil when the caller was anonymous
// or the user has since been removed.
type Logs struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Path   string `gorm:"size:512" json:"path"`
	Method string `gorm:"size:16" json:"method"`
	Data   string `gorm:"type:text" json:"data"`
	Result string `gorm:"size:64;index" json:"result"`
	UserID *uint  `gorm:"index" json:"-"`
	User   *User  `json:"user,omitempty"`
}

func (Logs) TableName() string {
	return "logs"
}

// ResultCount is one row of the logs group-by-result aggregation.
type ResultCount struct {
	Result string `json:"result"`
	Count  int64  `json:"count"`
}
