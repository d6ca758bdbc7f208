package domain

type (
	RoomID    string
	SessionID string
)
