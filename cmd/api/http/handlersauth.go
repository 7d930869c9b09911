package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/library-service/cmd/api/library"
)

type LoginEntry struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ManagerResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsManager bool      `json:"is_manager"`
}

type LoginResponse struct {
	User  ManagerResponse `json:"user"`
	Token string          `json:"token"`
}

/* Checks the credentials and hands back a bearer token. */
func (h *LibraryHandler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var entry LoginEntry
	err := json.NewDecoder(r.Body).Decode(&entry)
	if err != nil {
		log.Println(err)
		errR := library.ErrResponse{
			Code:    library.ErrResponseEntryInvalidJSON.Code,
			Message: library.ErrResponseEntryInvalidJSON.Message + err.Error(),
		}
		responseJSON(w, http.StatusBadRequest, errR)
		return
	}

	if entry.Email == "" || entry.Password == "" {
		responseJSON(w, http.StatusBadRequest, library.ErrResponseInvalidCredentials)
		return
	}

	manager, token, err := h.authService.Login(r.Context(), entry.Email, entry.Password)
	if err != nil {
		h.handleError(w, err)
		return
	}

	responseJSON(w, http.StatusOK, LoginResponse{
		User:  managerToResponse(manager),
		Token: token,
	})
}

/* Echoes the manager identity behind the bearer token. */
func (h *LibraryHandler) me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	manager, ok := h.requireManager(w, r)
	if !ok {
		return
	}

	responseJSON(w, http.StatusOK, map[string]ManagerResponse{"user": managerToResponse(manager)})
}

/* Tokens are stateless, so logging out is just an acknowledgement. */
func (h *LibraryHandler) logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	_, ok := h.requireManager(w, r)
	if !ok {
		return
	}

	responseJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

/* Resolves the Authorization header to a manager, or writes 401 and reports false. */
func (h *LibraryHandler) requireManager(w http.ResponseWriter, r *http.Request) (library.Member, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		responseJSON(w, http.StatusUnauthorized, library.ErrResponseUnauthenticated)
		return library.Member{}, false
	}

	manager, err := h.authService.Resolve(r.Context(), token)
	if err != nil {
		log.Println(err)
		responseJSON(w, http.StatusUnauthorized, library.ErrResponseInvalidToken)
		return library.Member{}, false
	}

	return manager, true
}

func managerToResponse(m library.Member) ManagerResponse {
	return ManagerResponse{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		IsManager: m.IsManager,
	}
}
