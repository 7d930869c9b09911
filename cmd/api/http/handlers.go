package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/library-service/cmd/api/auth"
	"github.com/library-service/cmd/api/library"
)

type LibraryHandler struct {
	libraryService library.ServiceAPI
	authService    auth.ServiceAPI
}

func NewLibraryHandler(libraryService library.ServiceAPI, authService auth.ServiceAPI) *LibraryHandler {
	return &LibraryHandler{libraryService: libraryService, authService: authService}
}

/* Addresses a call to "/books" according to the requested action.  */
func (h *LibraryHandler) books(w http.ResponseWriter, r *http.Request) {
	method := r.Method
	switch method {
	case http.MethodGet:
		h.listBooks(w, r)
		return
	case http.MethodPost:
		manager, ok := h.requireManager(w, r)
		if !ok {
			return
		}
		h.createBook(w, r, manager)
		return
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
}

/* Addresses a call to "/books/(expected id here)" according to the requested action.
A trailing "/borrowers" asks for the members still holding the book. */
func (h *LibraryHandler) bookById(w http.ResponseWriter, r *http.Request) {
	method := r.Method
	switch method {
	case http.MethodGet:
		if rest, found := strings.CutSuffix(r.URL.Path, "/borrowers"); found {
			id, err := uuid.Parse(strings.TrimPrefix(rest, "/books/"))
			if err != nil {
				log.Println(err)
				responseJSON(w, http.StatusBadRequest, library.ErrResponseIdInvalidFormat)
				return
			}
			h.activeBorrowers(w, r, id)
			return
		}
		h.getBookById(w, r)
		return
	case http.MethodPut:
		manager, ok := h.requireManager(w, r)
		if !ok {
			return
		}
		h.updateBook(w, r, manager)
		return
	case http.MethodDelete:
		_, ok := h.requireManager(w, r)
		if !ok {
			return
		}
		h.deleteBook(w, r)
		return
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
}

/* Addresses a call to "/categories". */
func (h *LibraryHandler) categories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	categories, err := h.libraryService.ListCategories(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}

	list := []CategoryResponse{}
	for _, c := range categories {
		list = append(list, CategoryResponse{ID: c.ID, Name: c.Name})
	}
	responseJSON(w, http.StatusOK, list)
}

type BookEntry struct {
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	Price      *float32  `json:"price"`
	Stock      *int      `json:"stock"`
	CategoryID uuid.UUID `json:"category_id"`
}

/* Validates the entry, then stores the entry as a new book. */
func (h *LibraryHandler) createBook(w http.ResponseWriter, r *http.Request, manager library.Member) {
	var bookEntry BookEntry
	err := json.NewDecoder(r.Body).Decode(&bookEntry)
	if err != nil {
		log.Println(err)
		errR := library.ErrResponse{
			Code:    library.ErrResponseEntryInvalidJSON.Code,
			Message: library.ErrResponseEntryInvalidJSON.Message + err.Error(),
		}
		responseJSON(w, http.StatusBadRequest, errR)
		return
	}

	err = filledBookFields(bookEntry) //Verify if all entry fields are filled.
	if err != nil {
		responseJSON(w, http.StatusBadRequest, err)
		return
	}

	reqBook := library.CreateBookRequest{
		Title:      bookEntry.Title,
		Author:     bookEntry.Author,
		Price:      bookEntry.Price,
		Stock:      bookEntry.Stock,
		CategoryID: bookEntry.CategoryID,
		CreatorID:  manager.ID,
	}

	storedBook, err := h.libraryService.CreateBook(r.Context(), reqBook)
	if err != nil {
		h.handleError(w, err)
		return
	}

	responseJSON(w, http.StatusCreated, bookToResponse(storedBook))
}

/* Validates the entry, then updates the asked book. */
func (h *LibraryHandler) updateBook(w http.ResponseWriter, r *http.Request, manager library.Member) {
	id, err := isolateId(w, r, "/books/")
	if err != nil {
		return
	}

	var bookEntry BookEntry
	err = json.NewDecoder(r.Body).Decode(&bookEntry)
	if err != nil {
		log.Println(err)
		errR := library.ErrResponse{
			Code:    library.ErrResponseEntryInvalidJSON.Code,
			Message: library.ErrResponseEntryInvalidJSON.Message + err.Error(),
		}
		responseJSON(w, http.StatusBadRequest, errR)
		return
	}

	err = filledBookFields(bookEntry) //Verify if all entry fields are filled.
	if err != nil {
		responseJSON(w, http.StatusBadRequest, err)
		return
	}

	reqBook := library.UpdateBookRequest{
		ID:         id,
		Title:      bookEntry.Title,
		Author:     bookEntry.Author,
		Price:      bookEntry.Price,
		Stock:      bookEntry.Stock,
		CategoryID: bookEntry.CategoryID,
		EditorID:   manager.ID,
	}

	updatedBook, err := h.libraryService.UpdateBook(r.Context(), reqBook)
	if err != nil {
		h.handleError(w, err)
		return
	}

	responseJSON(w, http.StatusOK, bookToResponse(updatedBook))
}

/* Returns the book with that specific ID. */
func (h *LibraryHandler) getBookById(w http.ResponseWriter, r *http.Request) {
	id, err := isolateId(w, r, "/books/")
	if err != nil {
		return
	}

	returnedBook, err := h.libraryService.GetBook(r.Context(), id)
	if err != nil {
		h.handleError(w, err)
		return
	}

	responseJSON(w, http.StatusOK, bookToResponse(returnedBook))
}

/* Returns a list of the stored books, filtered by title/author/category query params. */
func (h *LibraryHandler) listBooks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var categoryID uuid.UUID
	categoryStr := query.Get("category")
	if categoryStr != "" {
		var err error
		categoryID, err = uuid.Parse(categoryStr)
		if err != nil {
			responseJSON(w, http.StatusBadRequest, library.ErrResponseIdInvalidFormat)
			return
		}
	}

	params := library.ListBooksRequest{
		Title:      query.Get("title"),
		Author:     query.Get("author"),
		CategoryID: categoryID,
	}

	books, err := h.libraryService.ListBooks(r.Context(), params)
	if err != nil {
		h.handleError(w, err)
		return
	}

	list := []BookResponse{}
	for _, b := range books {
		list = append(list, bookToResponse(b))
	}
	responseJSON(w, http.StatusOK, list)
}

func (h *LibraryHandler) deleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := isolateId(w, r, "/books/")
	if err != nil {
		return
	}

	err = h.libraryService.DeleteBook(r.Context(), id)
	if err != nil {
		h.handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

/* Verifies if all entry fields are filled and returns a warning message if so. */
func filledBookFields(bookEntry BookEntry) error {
	if bookEntry.Title == "" {
		return library.ErrResponseBookEntryBlankFields
	}
	if bookEntry.Author == "" {
		return library.ErrResponseBookEntryBlankFields
	}
	if bookEntry.Price == nil || *bookEntry.Price < 0 {
		return library.ErrResponseBookEntryBlankFields
	}
	if bookEntry.Stock == nil || *bookEntry.Stock < 0 {
		return library.ErrResponseBookEntryBlankFields
	}
	if bookEntry.CategoryID == uuid.Nil {
		return library.ErrResponseBookEntryBlankFields
	}

	return nil
}

/* Isolates the ID from the URL. */
func isolateId(w http.ResponseWriter, r *http.Request, prefix string) (id uuid.UUID, err error) {
	justId, _ := strings.CutPrefix(r.URL.Path, prefix)
	id, err = uuid.Parse(justId)
	if err != nil {
		log.Println(err)
		responseJSON(w, http.StatusBadRequest, library.ErrResponseIdInvalidFormat)
		return id, err
	}
	return id, nil
}

type BookResponse struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Price         *float32  `json:"price"`
	Stock         *int      `json:"stock"`
	OriginalStock int       `json:"original_stock"`
	CategoryID    uuid.UUID `json:"category_id"`
	CreatorID     uuid.UUID `json:"creator_id"`
}

/*Copy the fields of a book object to an http layer struct with json tags*/
func bookToResponse(b library.Book) BookResponse {
	return BookResponse{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		Price:         b.Price,
		Stock:         b.Stock,
		OriginalStock: b.OriginalStock,
		CategoryID:    b.CategoryID,
		CreatorID:     b.CreatorID,
	}
}

type CategoryResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

/*Writes a JSON response into a http.ResponseWriter. */
func responseJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		log.Println(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
}

/* Maps the service error catalog to http statuses. */
func (h *LibraryHandler) handleError(w http.ResponseWriter, err error) {
	log.Println(err)

	switch {
	case errors.Is(err, library.ErrResponseBookNotFound),
		errors.Is(err, library.ErrResponseMemberNotFound),
		errors.Is(err, library.ErrResponseCategoryNotFound):
		responseStatus(w, http.StatusNotFound, err)
	case errors.Is(err, library.ErrResponseBookOutOfStock),
		errors.Is(err, library.ErrResponseInvalidReturn),
		errors.Is(err, library.ErrResponseStockOverflow),
		errors.Is(err, library.ErrResponseStockAboveOriginal),
		errors.Is(err, library.ErrResponseMemberHasActiveLoans):
		responseStatus(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, library.ErrResponseNotTheCreator),
		errors.Is(err, library.ErrResponseNotAManager):
		responseStatus(w, http.StatusForbidden, err)
	case errors.Is(err, library.ErrResponseInvalidCredentials),
		errors.Is(err, library.ErrResponseInvalidToken),
		errors.Is(err, library.ErrResponseUnauthenticated):
		responseStatus(w, http.StatusUnauthorized, err)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
}

/* Unwraps the catalog value so the client gets the clean code and message. */
func responseStatus(w http.ResponseWriter, status int, err error) {
	var errR library.ErrResponse
	if errors.As(err, &errR) {
		responseJSON(w, status, errR)
		return
	}
	responseJSON(w, status, library.ErrResponse{Code: 0, Message: err.Error()})
}
