package models

// Entities lists every persisted type, in dependency order, for schema migration.
func Entities() []any {
	return []any{&Role{}, &User{}, &Profile{}, &Logs{}}
}
