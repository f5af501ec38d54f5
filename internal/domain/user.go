package domain

// User carries the display metadata attached to events and messages.
type User struct {
	ID          string  `db:"id"`
	DisplayName string  `db:"display_name"`
	AvatarURL   *string `db:"avatar_url"`
}
