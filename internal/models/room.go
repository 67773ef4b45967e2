package models

import "time"

// RoomType distinguishes lecture rooms from laboratories.
type RoomType string

const (
	RoomTypeLecture    RoomType = "lecture"
	RoomTypeLaboratory RoomType = "laboratory"
)

// Room is a physical space that can host a section.
type Room struct {
	ID         string    `db:"id" json:"id"`
	SchoolYear string    `db:"school_year" json:"school_year"`
	Term       string    `db:"term" json:"term"`
	Name       string    `db:"name" json:"name"`
	Capacity   int       `db:"capacity" json:"capacity"`
	Type       RoomType  `db:"type" json:"type"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// RoomBinding attaches a room to a section. The most recent binding wins.
type RoomBinding struct {
	ID         string    `db:"id" json:"id"`
	SchoolYear string    `db:"school_year" json:"school_year"`
	Term       string    `db:"term" json:"term"`
	SectionID  string    `db:"section_id" json:"section_id"`
	RoomID     string    `db:"room_id" json:"room_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
