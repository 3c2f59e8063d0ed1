package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/alirogz/goshop-partialpay/app/models"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /login, form or JSON body
func (server *Server) DoLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			_ = renderer.JSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request"})
			return
		}
	} else {
		req.Email = r.FormValue("email")
		req.Password = r.FormValue("password")
	}

	userModel := models.User{}
	user, err := userModel.FindByEmail(server.DB, req.Email)
	if err != nil || !models.ComparePassword(req.Password, user.Password) {
		_ = renderer.JSON(w, http.StatusUnauthorized, map[string]string{"error": "email or password invalid"})
		return
	}

	session, _ := store.Get(r, sessionUser)
	session.Values["id"] = user.ID
	if err := session.Save(r, w); err != nil {
		writeError(w, err)
		return
	}

	_ = renderer.JSON(w, http.StatusOK, map[string]interface{}{
		"id":       user.ID,
		"email":    user.Email,
		"is_admin": IsAdminUser(user),
	})
}

// POST /logout
func (server *Server) Logout(w http.ResponseWriter, r *http.Request) {
	session, _ := store.Get(r, sessionUser)

	session.Values["id"] = nil
	session.Save(r, w)

	_ = renderer.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
