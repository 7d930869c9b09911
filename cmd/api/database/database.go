package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/google/uuid"
	"github.com/library-service/cmd/api/library"

	_ "github.com/golang-migrate/migrate/v4/source/file"

	_ "github.com/lib/pq"
)

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db  *sql.DB
	exc *Executor
}

type Executor struct {
	DBTX
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:  db,
		exc: NewExc(db),
	}
}

func NewExc(dbtx DBTX) *Executor {
	return &Executor{DBTX: dbtx}
}

func (store *Store) BeginTx(ctx context.Context, opts *sql.TxOptions) (library.Repository, driver.Tx, error) {
	tx, err := store.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}

	txRepo := NewStore(store.db)
	txRepo.exc = NewExc(tx)
	return txRepo, tx, nil
}

/* Connects to the database through a connection string and returns a pointer to a valid DB object (*sql.DB). */
func ConnectDb(connStr string) (*sql.DB, error) {

	sqlDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("connecting to db, opening: %w", err)
	}

	err = sqlDB.Ping()
	if err != nil {
		return nil, fmt.Errorf("connecting to db, pinging: %w", err)
	}

	log.Println("Successfully connected!")
	return sqlDB, nil
}

func MigrationUp(store *Store, path string) error {
	driver, err := postgres.WithInstance(store.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migrating up: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", path),
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("migrating up: %w", err)
	}

	err = m.Up()
	if err != nil {
		return fmt.Errorf("migrating up: %w", err)
	}
	return nil
}

// -- Books --

/* Stores the book into the database, checks and returns it if succeed. */
func (store *Store) CreateBook(ctx context.Context, bookEntry library.Book) (library.Book, error) {
	sqlStatement := `
	INSERT INTO books (id, title, author, price, stock, original_stock, category_id, creator_id, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING id, title, author, price, stock, original_stock, category_id, creator_id, created_at, updated_at`
	createdRow := store.exc.QueryRowContext(ctx, sqlStatement, bookEntry.ID, bookEntry.Title, bookEntry.Author, *bookEntry.Price, *bookEntry.Stock, bookEntry.OriginalStock, bookEntry.CategoryID, bookEntry.CreatorID, bookEntry.CreatedAt, bookEntry.UpdatedAt)
	var bookToReturn library.Book
	err := scanBook(createdRow, &bookToReturn)
	if err != nil {
		return library.Book{}, fmt.Errorf("storing book on db: %w", err)
	}

	return bookToReturn, nil
}

/* Searches a book in database based on ID and returns it if succeed. */
func (store *Store) GetBookByID(ctx context.Context, id uuid.UUID) (library.Book, error) {
	sqlStatement := `SELECT id, title, author, price, stock, original_stock, category_id, creator_id, created_at, updated_at
	FROM books
	WHERE id=$1;`
	foundRow := store.exc.QueryRowContext(ctx, sqlStatement, id)
	var bookToReturn library.Book
	err := scanBook(foundRow, &bookToReturn)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return library.Book{}, fmt.Errorf("searching book by ID: %w", library.ErrResponseBookNotFound)
		default:
			return library.Book{}, fmt.Errorf("searching book by ID: %w", err)
		}
	}

	return bookToReturn, nil
}

/* Reads the book row holding a row lock until the surrounding transaction ends. */
func (store *Store) GetBookForUpdate(ctx context.Context, id uuid.UUID) (library.Book, error) {
	sqlStatement := `SELECT id, title, author, price, stock, original_stock, category_id, creator_id, created_at, updated_at
	FROM books
	WHERE id=$1
	FOR UPDATE;`
	foundRow := store.exc.QueryRowContext(ctx, sqlStatement, id)
	var bookToReturn library.Book
	err := scanBook(foundRow, &bookToReturn)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return library.Book{}, fmt.Errorf("locking book row: %w", library.ErrResponseBookNotFound)
		default:
			return library.Book{}, fmt.Errorf("locking book row: %w", err)
		}
	}

	return bookToReturn, nil
}

/* Returns filtered content of the books table, most recently created first. */
func (store *Store) ListBooks(ctx context.Context, title, author string, categoryID uuid.UUID) ([]library.Book, error) {
	if title != "" {
		title = fmt.Sprint("%", title, "%")
	} else {
		title = "%"
	}
	if author != "" {
		author = fmt.Sprint("%", author, "%")
	} else {
		author = "%"
	}

	sqlStatement := `SELECT id, title, author, price, stock, original_stock, category_id, creator_id, created_at, updated_at
	FROM books
	WHERE title ILIKE $1
	AND author ILIKE $2
	AND ($3 OR category_id = $4)
	ORDER BY created_at DESC;`

	anyCategory := categoryID == uuid.Nil

	rows, err := store.exc.QueryContext(ctx, sqlStatement, title, author, anyCategory, categoryID)
	if err != nil {
		return nil, fmt.Errorf("listing books from db: %w", err)
	}
	defer rows.Close()
	bookslist := []library.Book{}
	var bookToReturn library.Book
	for rows.Next() {
		err = rows.Scan(&bookToReturn.ID, &bookToReturn.Title, &bookToReturn.Author, &bookToReturn.Price, &bookToReturn.Stock, &bookToReturn.OriginalStock, &bookToReturn.CategoryID, &bookToReturn.CreatorID, &bookToReturn.CreatedAt, &bookToReturn.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("listing books from db: %w", err)
		}

		bookslist = append(bookslist, bookToReturn)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("listing books from db: %w", err)
	}

	return bookslist, nil
}

/* Stores the changed book into the database, checks and returns it if succeed. */
func (store *Store) UpdateBook(ctx context.Context, bookEntry library.Book) (library.Book, error) {
	sqlStatement := `
	UPDATE books
	SET title = $2, author = $3, price = $4, stock = $5, category_id = $6, updated_at = $7
	WHERE id = $1
	RETURNING id, title, author, price, stock, original_stock, category_id, creator_id, created_at, updated_at`
	updatedRow := store.exc.QueryRowContext(ctx, sqlStatement, bookEntry.ID, bookEntry.Title, bookEntry.Author, *bookEntry.Price, *bookEntry.Stock, bookEntry.CategoryID, bookEntry.UpdatedAt)
	var bookToReturn library.Book
	err := scanBook(updatedRow, &bookToReturn)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return library.Book{}, fmt.Errorf("updating book on db: %w", library.ErrResponseBookNotFound)
		default:
			return library.Book{}, fmt.Errorf("updating book on db: %w", err)
		}
	}

	return bookToReturn, nil
}

/* Writes only the stock counter. Meant to run inside a transaction that already locked the row. */
func (store *Store) SetBookStock(ctx context.Context, id uuid.UUID, stock int, updatedAt time.Time) (library.Book, error) {
	sqlStatement := `
	UPDATE books
	SET stock = $2, updated_at = $3
	WHERE id = $1
	RETURNING id, title, author, price, stock, original_stock, category_id, creator_id, created_at, updated_at`
	updatedRow := store.exc.QueryRowContext(ctx, sqlStatement, id, stock, updatedAt)
	var bookToReturn library.Book
	err := scanBook(updatedRow, &bookToReturn)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return library.Book{}, fmt.Errorf("setting stock on db: %w", library.ErrResponseBookNotFound)
		default:
			return library.Book{}, fmt.Errorf("setting stock on db: %w", err)
		}
	}

	return bookToReturn, nil
}

func (store *Store) DeleteBook(ctx context.Context, id uuid.UUID) error {
	sqlStatement := `
	DELETE FROM books
	WHERE id = $1;`
	_, err := store.exc.ExecContext(ctx, sqlStatement, id)
	if err != nil {
		return fmt.Errorf("deleting book from db: %w", err)
	}
	return nil
}

func scanBook(row *sql.Row, b *library.Book) error {
	return row.Scan(&b.ID, &b.Title, &b.Author, &b.Price, &b.Stock, &b.OriginalStock, &b.CategoryID, &b.CreatorID, &b.CreatedAt, &b.UpdatedAt)
}

// -- Categories --

func (store *Store) ListCategories(ctx context.Context) ([]library.Category, error) {
	sqlStatement := `SELECT id, name FROM book_categories ORDER BY name ASC;`

	rows, err := store.exc.QueryContext(ctx, sqlStatement)
	if err != nil {
		return nil, fmt.Errorf("listing categories from db: %w", err)
	}
	defer rows.Close()
	categories := []library.Category{}
	var category library.Category
	for rows.Next() {
		err = rows.Scan(&category.ID, &category.Name)
		if err != nil {
			return nil, fmt.Errorf("listing categories from db: %w", err)
		}
		categories = append(categories, category)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("listing categories from db: %w", err)
	}

	return categories, nil
}

func (store *Store) GetCategoryByID(ctx context.Context, id uuid.UUID) (library.Category, error) {
	sqlStatement := `SELECT id, name FROM book_categories WHERE id=$1;`
	foundRow := store.exc.QueryRowContext(ctx, sqlStatement, id)
	var category library.Category
	err := foundRow.Scan(&category.ID, &category.Name)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return library.Category{}, fmt.Errorf("searching category by ID: %w", library.ErrResponseCategoryNotFound)
		default:
			return library.Category{}, fmt.Errorf("searching category by ID: %w", err)
		}
	}

	return category, nil
}

// -- Members --

/* Stores the member into the database, checks and returns it if succeed. */
func (store *Store) CreateMember(ctx context.Context, memberEntry library.Member) (library.Member, error) {
	sqlStatement := `
	INSERT INTO users (id, name, age, email, is_manager, password_hash, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id, name, age, email, is_manager, password_hash, created_at`
	createdRow := store.exc.QueryRowContext(ctx, sqlStatement, memberEntry.ID, memberEntry.Name, memberEntry.Age, memberEntry.Email, memberEntry.IsManager, memberEntry.PasswordHash, memberEntry.CreatedAt)
	var memberToReturn library.Member
	err := scanMember(createdRow, &memberToReturn)
	if err != nil {
		return library.Member{}, fmt.Errorf("storing member on db: %w", err)
	}

	return memberToReturn, nil
}

func (store *Store) GetMemberByID(ctx context.Context, id uuid.UUID) (library.Member, error) {
	sqlStatement := `SELECT id, name, age, email, is_manager, password_hash, created_at
	FROM users
	WHERE id=$1;`
	foundRow := store.exc.QueryRowContext(ctx, sqlStatement, id)
	var memberToReturn library.Member
	err := scanMember(foundRow, &memberToReturn)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return library.Member{}, fmt.Errorf("searching member by ID: %w", library.ErrResponseMemberNotFound)
		default:
			return library.Member{}, fmt.Errorf("searching member by ID: %w", err)
		}
	}

	return memberToReturn, nil
}

func (store *Store) GetMemberByEmail(ctx context.Context, email string) (library.Member, error) {
	sqlStatement := `SELECT id, name, age, email, is_manager, password_hash, created_at
	FROM users
	WHERE email=$1;`
	foundRow := store.exc.QueryRowContext(ctx, sqlStatement, email)
	var memberToReturn library.Member
	err := scanMember(foundRow, &memberToReturn)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return library.Member{}, fmt.Errorf("searching member by email: %w", library.ErrResponseMemberNotFound)
		default:
			return library.Member{}, fmt.Errorf("searching member by email: %w", err)
		}
	}

	return memberToReturn, nil
}

/* Lists the non-manager roster, most recently created first. */
func (store *Store) ListMembers(ctx context.Context) ([]library.Member, error) {
	sqlStatement := `SELECT id, name, age, email, is_manager, password_hash, created_at
	FROM users
	WHERE is_manager = FALSE
	ORDER BY created_at DESC;`

	rows, err := store.exc.QueryContext(ctx, sqlStatement)
	if err != nil {
		return nil, fmt.Errorf("listing members from db: %w", err)
	}
	defer rows.Close()
	members := []library.Member{}
	var memberToReturn library.Member
	for rows.Next() {
		err = rows.Scan(&memberToReturn.ID, &memberToReturn.Name, &memberToReturn.Age, &memberToReturn.Email, &memberToReturn.IsManager, &memberToReturn.PasswordHash, &memberToReturn.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("listing members from db: %w", err)
		}
		members = append(members, memberToReturn)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("listing members from db: %w", err)
	}

	return members, nil
}

func (store *Store) UpdateMember(ctx context.Context, memberEntry library.Member) (library.Member, error) {
	sqlStatement := `
	UPDATE users
	SET name = $2, age = $3
	WHERE id = $1
	RETURNING id, name, age, email, is_manager, password_hash, created_at`
	updatedRow := store.exc.QueryRowContext(ctx, sqlStatement, memberEntry.ID, memberEntry.Name, memberEntry.Age)
	var memberToReturn library.Member
	err := scanMember(updatedRow, &memberToReturn)
	if err != nil {
		switch err {
		case sql.ErrNoRows:
			return library.Member{}, fmt.Errorf("updating member on db: %w", library.ErrResponseMemberNotFound)
		default:
			return library.Member{}, fmt.Errorf("updating member on db: %w", err)
		}
	}

	return memberToReturn, nil
}

func (store *Store) DeleteMember(ctx context.Context, id uuid.UUID) error {
	sqlStatement := `
	DELETE FROM users
	WHERE id = $1;`
	_, err := store.exc.ExecContext(ctx, sqlStatement, id)
	if err != nil {
		return fmt.Errorf("deleting member from db: %w", err)
	}
	return nil
}

func scanMember(row *sql.Row, m *library.Member) error {
	return row.Scan(&m.ID, &m.Name, &m.Age, &m.Email, &m.IsManager, &m.PasswordHash, &m.CreatedAt)
}

// -- Ledger --

/* Appends one entry to the ledger. Entries are never updated afterwards. */
func (store *Store) CreateTransaction(ctx context.Context, transactionEntry library.Transaction) (library.Transaction, error) {
	sqlStatement := `
	INSERT INTO transactions (id, book_id, member_id, kind, created_at)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, book_id, member_id, kind, created_at`
	createdRow := store.exc.QueryRowContext(ctx, sqlStatement, transactionEntry.ID, transactionEntry.BookID, transactionEntry.MemberID, transactionEntry.Kind, transactionEntry.CreatedAt)
	var transactionToReturn library.Transaction
	err := createdRow.Scan(&transactionToReturn.ID, &transactionToReturn.BookID, &transactionToReturn.MemberID, &transactionToReturn.Kind, &transactionToReturn.CreatedAt)
	if err != nil {
		return library.Transaction{}, fmt.Errorf("storing transaction on db: %w", err)
	}

	return transactionToReturn, nil
}

/* Lists the whole ledger, most recent first, with the book title and member name joined in. */
func (store *Store) ListTransactions(ctx context.Context) ([]library.Transaction, error) {
	sqlStatement := `SELECT t.id, t.book_id, t.member_id, t.kind, t.created_at, b.title, u.name
	FROM transactions t
	JOIN books b ON b.id = t.book_id
	JOIN users u ON u.id = t.member_id
	ORDER BY t.created_at DESC;`

	rows, err := store.exc.QueryContext(ctx, sqlStatement)
	if err != nil {
		return nil, fmt.Errorf("listing transactions from db: %w", err)
	}
	defer rows.Close()
	transactions := []library.Transaction{}
	var t library.Transaction
	for rows.Next() {
		err = rows.Scan(&t.ID, &t.BookID, &t.MemberID, &t.Kind, &t.CreatedAt, &t.BookTitle, &t.MemberName)
		if err != nil {
			return nil, fmt.Errorf("listing transactions from db: %w", err)
		}
		transactions = append(transactions, t)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("listing transactions from db: %w", err)
	}

	return transactions, nil
}

/* Net outstanding loans of one member for one book: issues minus returns. */
func (store *Store) LoanBalance(ctx context.Context, bookID, memberID uuid.UUID) (int, error) {
	sqlStatement := `SELECT
	COUNT(*) FILTER (WHERE kind = 'issue') - COUNT(*) FILTER (WHERE kind = 'return')
	FROM transactions
	WHERE book_id = $1 AND member_id = $2;`

	row := store.exc.QueryRowContext(ctx, sqlStatement, bookID, memberID)
	var balance int
	err := row.Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("counting loan balance from db: %w", err)
	}

	return balance, nil
}

/* Issues minus returns for every member that ever touched this book. */
func (store *Store) LoanBalancesByBook(ctx context.Context, bookID uuid.UUID) (map[uuid.UUID]int, error) {
	sqlStatement := `SELECT member_id,
	COUNT(*) FILTER (WHERE kind = 'issue') - COUNT(*) FILTER (WHERE kind = 'return')
	FROM transactions
	WHERE book_id = $1
	GROUP BY member_id;`

	rows, err := store.exc.QueryContext(ctx, sqlStatement, bookID)
	if err != nil {
		return nil, fmt.Errorf("counting loan balances from db: %w", err)
	}
	defer rows.Close()

	balances := map[uuid.UUID]int{}
	for rows.Next() {
		var memberID uuid.UUID
		var balance int
		err = rows.Scan(&memberID, &balance)
		if err != nil {
			return nil, fmt.Errorf("counting loan balances from db: %w", err)
		}
		balances[memberID] = balance
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("counting loan balances from db: %w", err)
	}

	return balances, nil
}

/* Net outstanding loans of one member summed across all books. */
func (store *Store) OutstandingLoansOfMember(ctx context.Context, memberID uuid.UUID) (int, error) {
	sqlStatement := `SELECT
	COUNT(*) FILTER (WHERE kind = 'issue') - COUNT(*) FILTER (WHERE kind = 'return')
	FROM transactions
	WHERE member_id = $1;`

	row := store.exc.QueryRowContext(ctx, sqlStatement, memberID)
	var outstanding int
	err := row.Scan(&outstanding)
	if err != nil {
		return 0, fmt.Errorf("counting outstanding loans from db: %w", err)
	}

	return outstanding, nil
}
