package adapthttp

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"library/internal/app"
	"library/internal/domain"
)

type createReservationRequest struct {
	UserID         int64       `json:"userId" binding:"required,gt=0"`
	BookExternalID int64       `json:"bookExternalId" binding:"required,gt=0"`
	RentalDays     int         `json:"rentalDays" binding:"required,gt=0"`
	StartDate      domain.Date `json:"startDate"`
}

type returnBookRequest struct {
	ReturnDate domain.Date `json:"returnDate"`
}

func (s *Server) handleCreateReservation(c *gin.Context) {
	var req createReservationRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	v, err := s.reservations.CreateReservation(c.Request.Context(), app.CreateReservationInput{
		UserID:         req.UserID,
		BookExternalID: req.BookExternalID,
		RentalDays:     req.RentalDays,
		StartDate:      req.StartDate,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, v)
}

func (s *Server) handleReturnBook(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.writeError(c, err)
		return
	}
	var req returnBookRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	v, err := s.reservations.ReturnBook(c.Request.Context(), id, req.ReturnDate)
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, v)
}

func (s *Server) handleGetReservation(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.writeError(c, err)
		return
	}
	v, err := s.reservations.GetReservation(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, v)
}

// handleListReservations serves GET /reservations, optionally filtered by
// the userId query parameter.
func (s *Server) handleListReservations(c *gin.Context) {
	raw, byUser := c.GetQuery("userId")
	if !byUser {
		s.writeViews(c)(s.reservations.ListReservations(c.Request.Context()))
		return
	}
	userID, err := parseID("userId", raw)
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.writeViews(c)(s.reservations.ListReservationsByUser(c.Request.Context(), userID))
}

func (s *Server) handleActiveReservations(c *gin.Context) {
	s.writeViews(c)(s.reservations.ListActiveReservations(c.Request.Context()))
}

func (s *Server) handleOverdueReservations(c *gin.Context) {
	s.writeViews(c)(s.reservations.ListOverdueReservations(c.Request.Context()))
}

func (s *Server) writeViews(c *gin.Context) func([]app.ReservationView, error) {
	return func(views []app.ReservationView, err error) {
		if err != nil {
			s.writeError(c, err)
			return
		}
		writeJSON(c, http.StatusOK, views)
	}
}
