package library

import (
	"fmt"
)

type ErrResponse struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_message"`
}

func (e ErrResponse) Error() string {
	return e.Message
}

var ErrResponseBookEntryBlankFields = ErrResponse{100, "all the fields - title, author, price, stock and category_id - must be filled correctly."}
var ErrResponseBookNotFound = ErrResponse{101, "book not found"}
var ErrResponseEntryInvalidJSON = ErrResponse{102, "invalid json request."}
var ErrResponseIdInvalidFormat = ErrResponse{103, "the endpoint is not a valid format ID. Must be a uuid."}
var ErrResponseMemberNotFound = ErrResponse{104, "member not found"}
var ErrResponseMemberEntryBlankFields = ErrResponse{105, "all the fields - name and age - must be filled correctly. Age must be between 1 and 150."}
var ErrResponseCategoryNotFound = ErrResponse{106, "category not found"}
var ErrResponseBookOutOfStock = ErrResponse{107, "book out of stock"}
var ErrResponseInvalidReturn = ErrResponse{108, "cannot return this book. The member has not borrowed it or already returned it."}
var ErrResponseStockOverflow = ErrResponse{109, "cannot return book. Stock cannot exceed original stock count."}
var ErrResponseMemberHasActiveLoans = ErrResponse{110, "cannot delete member. They have active borrowed books. Please ensure all books are returned first."}
var ErrResponseTransactionEntryBlankFields = ErrResponse{111, "all the fields - book_id and member_id - must be filled correctly."}
var ErrResponseNotTheCreator = ErrResponse{112, "only the book creator can edit the title"}
var ErrResponseFromRepository = ErrResponse{113, "error from the repository: "}
var ErrResponseRequestTimeout = ErrResponse{114, "context deadline exceeded"}
var ErrResponseStockAboveOriginal = ErrResponse{115, "cannot update book. Stock cannot exceed original stock count."}

var ErrResponseInvalidCredentials = ErrResponse{120, "invalid credentials"}
var ErrResponseNotAManager = ErrResponse{121, "access denied. Only library managers can login."}
var ErrResponseUnauthenticated = ErrResponse{122, "unauthenticated"}
var ErrResponseInvalidToken = ErrResponse{123, "invalid token"}

type ErrNotificationFailed struct {
	statusCode int
}

func (e ErrNotificationFailed) Error() string {
	return fmt.Sprintf("ntfy wrong response - want: 200 OK, got: %d", e.statusCode)
}

func NewErrNotificationFailed(statusCode int) ErrNotificationFailed {
	return ErrNotificationFailed{statusCode: statusCode}
}
