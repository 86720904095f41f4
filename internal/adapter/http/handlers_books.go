package adapthttp

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"library/internal/app"
	"library/internal/domain"
)

type bookRequest struct {
	ExternalID        int64           `json:"externalId"`
	Title             string          `json:"title" binding:"required"`
	Author            string          `json:"author"`
	Price             decimal.Decimal `json:"price"`
	StockQuantity     int             `json:"stockQuantity" binding:"gte=0"`
	AvailableQuantity int             `json:"availableQuantity" binding:"gte=0"`
}

func (r bookRequest) input() app.BookInput {
	return app.BookInput{
		ExternalID:        r.ExternalID,
		Title:             r.Title,
		Author:            r.Author,
		Price:             r.Price,
		StockQuantity:     r.StockQuantity,
		AvailableQuantity: r.AvailableQuantity,
	}
}

func (s *Server) handleCreateBook(c *gin.Context) {
	var req bookRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	b, err := s.books.CreateBook(c.Request.Context(), req.input())
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, b)
}

func (s *Server) handleListBooks(c *gin.Context) {
	books, err := s.books.ListBooks(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, books)
}

func (s *Server) handleGetBook(c *gin.Context) {
	s.withBook(c, s.books.GetBook)
}

func (s *Server) handleUpdateBook(c *gin.Context) {
	externalID, err := idParam(c, "id")
	if err != nil {
		s.writeError(c, err)
		return
	}
	var req bookRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	b, err := s.books.UpdateBook(c.Request.Context(), externalID, req.input())
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}

func (s *Server) handleDeleteBook(c *gin.Context) {
	externalID, err := idParam(c, "id")
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.books.DeleteBook(c.Request.Context(), externalID); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDecreaseStock(c *gin.Context) {
	s.withBook(c, s.books.DecreaseAvailableQuantity)
}

func (s *Server) handleIncreaseStock(c *gin.Context) {
	s.withBook(c, s.books.IncreaseAvailableQuantity)
}

// withBook runs fn on the book named by the :id path parameter and writes
// the resulting book.
func (s *Server) withBook(c *gin.Context, fn func(ctx context.Context, externalID int64) (*domain.Book, error)) {
	externalID, err := idParam(c, "id")
	if err != nil {
		s.writeError(c, err)
		return
	}
	b, err := fn(c.Request.Context(), externalID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, b)
}
