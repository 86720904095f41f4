// Package adapthttp is the driving HTTP adapter: a gin router that maps the
// REST API onto the application services.
package adapthttp

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"library/internal/app"
)

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	reservations *app.ReservationService
	books        *app.BookService
	users        *app.UserService
	log          *zap.Logger
}

// New creates a Server wired to the given application services.
func New(rs *app.ReservationService, bs *app.BookService, us *app.UserService, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{reservations: rs, books: bs, users: us, log: log.Named("http")}
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(requestID(), s.loggingMiddleware(), s.recovery())
	r.NoRoute(func(c *gin.Context) {
		writeJSON(c, http.StatusNotFound, gin.H{"error": "route not found"})
	})

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		writeJSON(c, http.StatusOK, gin.H{"ok": true})
	})

	res := api.Group("/reservations")
	res.POST("", s.handleCreateReservation)
	res.GET("", s.handleListReservations)
	res.GET("/active", s.handleActiveReservations)
	res.GET("/overdue", s.handleOverdueReservations)
	res.GET("/:id", s.handleGetReservation)
	res.POST("/:id/return", s.handleReturnBook)

	users := api.Group("/users")
	users.POST("", s.handleCreateUser)
	users.GET("", s.handleListUsers)
	users.GET("/:id", s.handleGetUser)
	users.PUT("/:id", s.handleUpdateUser)
	users.DELETE("/:id", s.handleDeleteUser)

	books := api.Group("/books")
	books.POST("", s.handleCreateBook)
	books.GET("", s.handleListBooks)
	books.GET("/:id", s.handleGetBook)
	books.PUT("/:id", s.handleUpdateBook)
	books.DELETE("/:id", s.handleDeleteBook)
	books.POST("/:id/decrease", s.handleDecreaseStock)
	books.POST("/:id/increase", s.handleIncreaseStock)

	return r
}
