package model

import "time"

// Room represents a bookable therapy room as stored in the `rooms`
// table.  Rooms belong to one of the practice's two sites and carry an
// active flag; rooms are never hard-deleted once a booking references
// them, only deactivated.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – display name (e.g. "Room 2").
//  Location  – site code (KENSINGTON or CLAPHAM).
//  IsActive  – whether the room can accept new bookings.
//  CreatedAt – timestamp of creation.
//  UpdatedAt – timestamp of last update.
type Room struct {
	ID        uint64    // rooms.id
	Name      string    // rooms.name
	Location  string    // rooms.location
	IsActive  bool      // rooms.is_active
	CreatedAt time.Time // rooms.created_at
	UpdatedAt time.Time // rooms.updated_at
}
