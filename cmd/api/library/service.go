package library

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
)

type ServiceAPI interface {
	CreateBook(ctx context.Context, req CreateBookRequest) (Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (Book, error)
	ListBooks(ctx context.Context, req ListBooksRequest) ([]Book, error)
	UpdateBook(ctx context.Context, req UpdateBookRequest) (Book, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error

	ListCategories(ctx context.Context) ([]Category, error)

	CreateMember(ctx context.Context, req CreateMemberRequest) (Member, error)
	GetMember(ctx context.Context, id uuid.UUID) (Member, error)
	ListMembers(ctx context.Context) ([]Member, error)
	UpdateMember(ctx context.Context, req UpdateMemberRequest) (Member, error)
	DeleteMember(ctx context.Context, id uuid.UUID) error

	RecordBorrow(ctx context.Context, req TransactionRequest) (TransactionResult, error)
	RecordReturn(ctx context.Context, req TransactionRequest) (TransactionResult, error)
	ListTransactions(ctx context.Context) ([]Transaction, error)
	ActiveBorrowersOf(ctx context.Context, bookID uuid.UUID) ([]Member, error)
}

type Repository interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Repository, driver.Tx, error)

	CreateBook(ctx context.Context, bookEntry Book) (Book, error)
	GetBookByID(ctx context.Context, id uuid.UUID) (Book, error)
	GetBookForUpdate(ctx context.Context, id uuid.UUID) (Book, error)
	ListBooks(ctx context.Context, title, author string, categoryID uuid.UUID) ([]Book, error)
	UpdateBook(ctx context.Context, bookEntry Book) (Book, error)
	SetBookStock(ctx context.Context, id uuid.UUID, stock int, updatedAt time.Time) (Book, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error

	ListCategories(ctx context.Context) ([]Category, error)
	GetCategoryByID(ctx context.Context, id uuid.UUID) (Category, error)

	CreateMember(ctx context.Context, memberEntry Member) (Member, error)
	GetMemberByID(ctx context.Context, id uuid.UUID) (Member, error)
	GetMemberByEmail(ctx context.Context, email string) (Member, error)
	ListMembers(ctx context.Context) ([]Member, error)
	UpdateMember(ctx context.Context, memberEntry Member) (Member, error)
	DeleteMember(ctx context.Context, id uuid.UUID) error

	CreateTransaction(ctx context.Context, transactionEntry Transaction) (Transaction, error)
	ListTransactions(ctx context.Context) ([]Transaction, error)
	LoanBalance(ctx context.Context, bookID, memberID uuid.UUID) (int, error)
	LoanBalancesByBook(ctx context.Context, bookID uuid.UUID) (map[uuid.UUID]int, error)
	OutstandingLoansOfMember(ctx context.Context, memberID uuid.UUID) (int, error)
}

type Notifier interface {
	StockDepleted(title string) error
	StockInconsistency(title string) error
}

type Service struct {
	repo        Repository
	ntfy        Notifier
	ntfyTimeout time.Duration
}

func NewService(repo Repository, ntfy Notifier, notificationsTimeout time.Duration) *Service {
	return &Service{repo: repo, ntfy: ntfy, ntfyTimeout: notificationsTimeout}
}
