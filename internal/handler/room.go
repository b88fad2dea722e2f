package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/oakwell/room-booking/internal/repository"
)

// RoomHandler serves the public room catalogue.
type RoomHandler struct {
	Rooms *repository.RoomRepo
}

// NewRoomHandler constructs a RoomHandler.
func NewRoomHandler(rooms *repository.RoomRepo) *RoomHandler {
	if rooms == nil {
		panic("nil repository passed to NewRoomHandler")
	}
	return &RoomHandler{Rooms: rooms}
}

// roomView is the public shape of a room.
type roomView struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

// List handles GET /v1/rooms and returns all active rooms.
func (h *RoomHandler) List(c echo.Context) error {
	rooms, err := h.Rooms.ListActive(c.Request().Context())
	if err != nil {
		return writeServiceError(c, err)
	}
	out := make([]roomView, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, roomView{ID: r.ID, Name: r.Name, Location: r.Location})
	}
	return c.JSON(http.StatusOK, echo.Map{"rooms": out})
}
