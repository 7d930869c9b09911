package http

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/library-service/cmd/api/library"
)

/* Addresses a call to "/members" according to the requested action.  */
func (h *LibraryHandler) members(w http.ResponseWriter, r *http.Request) {
	method := r.Method
	switch method {
	case http.MethodGet:
		h.listMembers(w, r)
		return
	case http.MethodPost:
		_, ok := h.requireManager(w, r)
		if !ok {
			return
		}
		h.createMember(w, r)
		return
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
}

/* Addresses a call to "/members/(expected id here)" according to the requested action.  */
func (h *LibraryHandler) memberById(w http.ResponseWriter, r *http.Request) {
	method := r.Method
	switch method {
	case http.MethodGet:
		h.getMemberById(w, r)
		return
	case http.MethodPut:
		_, ok := h.requireManager(w, r)
		if !ok {
			return
		}
		h.updateMember(w, r)
		return
	case http.MethodDelete:
		_, ok := h.requireManager(w, r)
		if !ok {
			return
		}
		h.deleteMember(w, r)
		return
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
}

type MemberEntry struct {
	Name string `json:"name"`
	Age  *int   `json:"age"`
}

/* Validates the entry, then stores the entry as a new member. */
func (h *LibraryHandler) createMember(w http.ResponseWriter, r *http.Request) {
	var memberEntry MemberEntry
	err := json.NewDecoder(r.Body).Decode(&memberEntry)
	if err != nil {
		log.Println(err)
		errR := library.ErrResponse{
			Code:    library.ErrResponseEntryInvalidJSON.Code,
			Message: library.ErrResponseEntryInvalidJSON.Message + err.Error(),
		}
		responseJSON(w, http.StatusBadRequest, errR)
		return
	}

	err = filledMemberFields(memberEntry) //Verify if all entry fields are filled.
	if err != nil {
		responseJSON(w, http.StatusBadRequest, err)
		return
	}

	storedMember, err := h.libraryService.CreateMember(r.Context(), library.CreateMemberRequest{
		Name: memberEntry.Name,
		Age:  memberEntry.Age,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	responseJSON(w, http.StatusCreated, memberToResponse(storedMember))
}

func (h *LibraryHandler) getMemberById(w http.ResponseWriter, r *http.Request) {
	id, err := isolateId(w, r, "/members/")
	if err != nil {
		return
	}

	returnedMember, err := h.libraryService.GetMember(r.Context(), id)
	if err != nil {
		h.handleError(w, err)
		return
	}

	responseJSON(w, http.StatusOK, memberToResponse(returnedMember))
}

/* Returns the non-manager roster. */
func (h *LibraryHandler) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.libraryService.ListMembers(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}

	list := []MemberResponse{}
	for _, m := range members {
		list = append(list, memberToResponse(m))
	}
	responseJSON(w, http.StatusOK, list)
}

/* Validates the entry, then updates the asked member. */
func (h *LibraryHandler) updateMember(w http.ResponseWriter, r *http.Request) {
	id, err := isolateId(w, r, "/members/")
	if err != nil {
		return
	}

	var memberEntry MemberEntry
	err = json.NewDecoder(r.Body).Decode(&memberEntry)
	if err != nil {
		log.Println(err)
		errR := library.ErrResponse{
			Code:    library.ErrResponseEntryInvalidJSON.Code,
			Message: library.ErrResponseEntryInvalidJSON.Message + err.Error(),
		}
		responseJSON(w, http.StatusBadRequest, errR)
		return
	}

	err = filledMemberFields(memberEntry) //Verify if all entry fields are filled.
	if err != nil {
		responseJSON(w, http.StatusBadRequest, err)
		return
	}

	updatedMember, err := h.libraryService.UpdateMember(r.Context(), library.UpdateMemberRequest{
		ID:   id,
		Name: memberEntry.Name,
		Age:  memberEntry.Age,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	responseJSON(w, http.StatusOK, memberToResponse(updatedMember))
}

/* Deletes the member, unless the ledger still holds loans for them. */
func (h *LibraryHandler) deleteMember(w http.ResponseWriter, r *http.Request) {
	id, err := isolateId(w, r, "/members/")
	if err != nil {
		return
	}

	err = h.libraryService.DeleteMember(r.Context(), id)
	if err != nil {
		h.handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

/* Verifies if all entry fields are filled and returns a warning message if so. */
func filledMemberFields(memberEntry MemberEntry) error {
	if memberEntry.Name == "" {
		return library.ErrResponseMemberEntryBlankFields
	}
	if memberEntry.Age == nil {
		return library.ErrResponseMemberEntryBlankFields
	}
	if *memberEntry.Age < library.AgeMin || *memberEntry.Age > library.AgeMax {
		return library.ErrResponseMemberEntryBlankFields
	}

	return nil
}

type MemberResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Age       *int      `json:"age"`
	CreatedAt time.Time `json:"created_at"`
}

/*Copy the fields of a member object to an http layer struct with json tags*/
func memberToResponse(m library.Member) MemberResponse {
	return MemberResponse{
		ID:        m.ID,
		Name:      m.Name,
		Age:       m.Age,
		CreatedAt: m.CreatedAt,
	}
}
