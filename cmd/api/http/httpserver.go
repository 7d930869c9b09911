package http

import (
	"fmt"
	"net/http"
	"time"
)

// RequestTimeout bounds the borrow/return handlers. Overridable from main.
var RequestTimeout = 5 * time.Second

type ServerConfig struct {
	Port int
}

func NewServer(config ServerConfig, h *LibraryHandler) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", ping)
	mux.HandleFunc("/auth/login", h.login)
	mux.HandleFunc("/auth/me", h.me)
	mux.HandleFunc("/auth/logout", h.logout)
	mux.HandleFunc("/books", h.books)
	mux.HandleFunc("/books/", h.bookById)
	mux.HandleFunc("/categories", h.categories)
	mux.HandleFunc("/members", h.members)
	mux.HandleFunc("/members/", h.memberById)
	mux.HandleFunc("/transactions", h.transactions)
	mux.HandleFunc("/transactions/borrow", h.borrow)
	mux.HandleFunc("/transactions/return", h.returnBook)

	server := http.Server{
		Addr:    fmt.Sprintf(":%d", config.Port),
		Handler: mux,
	}
	return &server
}

/* Tests the http server connection.  */
func ping(w http.ResponseWriter, r *http.Request) {
	method := r.Method
	if method == http.MethodGet {
		w.WriteHeader(http.StatusNoContent)
		return
	} else {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
}
