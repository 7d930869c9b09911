package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/library-service/cmd/api/library"
)

/* Addresses a call to "/transactions": the whole ledger, most recent first. */
func (h *LibraryHandler) transactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	transactions, err := h.libraryService.ListTransactions(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}

	list := []TransactionResponse{}
	for _, t := range transactions {
		list = append(list, transactionToResponse(t))
	}
	responseJSON(w, http.StatusOK, list)
}

type TransactionEntry struct {
	BookID   uuid.UUID `json:"book_id"`
	MemberID uuid.UUID `json:"member_id"`
}

/* Issues a book to a member. */
func (h *LibraryHandler) borrow(w http.ResponseWriter, r *http.Request) {
	h.recordTransaction(w, r, h.libraryService.RecordBorrow, http.StatusCreated)
}

/* Takes a book back from a member. */
func (h *LibraryHandler) returnBook(w http.ResponseWriter, r *http.Request) {
	h.recordTransaction(w, r, h.libraryService.RecordReturn, http.StatusOK)
}

func (h *LibraryHandler) recordTransaction(w http.ResponseWriter, r *http.Request, record func(context.Context, library.TransactionRequest) (library.TransactionResult, error), successStatus int) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	_, ok := h.requireManager(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), RequestTimeout)
	defer cancel()

	var entry TransactionEntry
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

	if entry.BookID == uuid.Nil || entry.MemberID == uuid.Nil {
		responseJSON(w, http.StatusBadRequest, library.ErrResponseTransactionEntryBlankFields)
		return
	}

	result, err := record(ctx, library.TransactionRequest{
		BookID:   entry.BookID,
		MemberID: entry.MemberID,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	responseJSON(w, successStatus, TransactionResultResponse{
		Transaction: transactionToResponse(result.Transaction),
		Book:        bookToResponse(result.Book),
	})
}

/* Addresses a call to "/books/(id)/borrowers": members still holding this book. */
func (h *LibraryHandler) activeBorrowers(w http.ResponseWriter, r *http.Request, bookID uuid.UUID) {
	borrowers, err := h.libraryService.ActiveBorrowersOf(r.Context(), bookID)
	if err != nil {
		h.handleError(w, err)
		return
	}

	list := []MemberResponse{}
	for _, m := range borrowers {
		list = append(list, memberToResponse(m))
	}
	responseJSON(w, http.StatusOK, list)
}

type TransactionResponse struct {
	ID         uuid.UUID `json:"id"`
	BookID     uuid.UUID `json:"book_id"`
	MemberID   uuid.UUID `json:"member_id"`
	Kind       string    `json:"type"`
	CreatedAt  time.Time `json:"created_at"`
	BookTitle  string    `json:"book_title,omitempty"`
	MemberName string    `json:"member_name,omitempty"`
}

type TransactionResultResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	Book        BookResponse        `json:"book"`
}

/*Copy the fields of a transaction object to an http layer struct with json tags*/
func transactionToResponse(t library.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:         t.ID,
		BookID:     t.BookID,
		MemberID:   t.MemberID,
		Kind:       string(t.Kind),
		CreatedAt:  t.CreatedAt,
		BookTitle:  t.BookTitle,
		MemberName: t.MemberName,
	}
}
