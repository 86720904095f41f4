package adapthttp

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"library/internal/app"
)

type userRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required"`
	Phone string `json:"phone"`
}

func (r userRequest) input() app.UserInput {
	return app.UserInput{Name: r.Name, Email: r.Email, Phone: r.Phone}
}

func (s *Server) handleCreateUser(c *gin.Context) {
	var req userRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	u, err := s.users.CreateUser(c.Request.Context(), req.input())
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, u)
}

func (s *Server) handleListUsers(c *gin.Context) {
	users, err := s.users.ListUsers(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, users)
}

func (s *Server) handleGetUser(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.writeError(c, err)
		return
	}
	u, err := s.users.GetUser(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, u)
}

func (s *Server) handleUpdateUser(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.writeError(c, err)
		return
	}
	var req userRequest
	if err := bindJSON(c, &req); err != nil {
		s.writeError(c, err)
		return
	}
	u, err := s.users.UpdateUser(c.Request.Context(), id, req.input())
	if err != nil {
		s.writeError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, u)
}

func (s *Server) handleDeleteUser(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.users.DeleteUser(c.Request.Context(), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
