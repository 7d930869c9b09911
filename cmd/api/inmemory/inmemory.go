package inmemory

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
	"github.com/library-service/cmd/api/library"
)

type InMemoryStore struct {
	db  *memdb.MemDB
	exc *memdb.Txn
}

func NewInMemoryStore() (*InMemoryStore, error) {
	// Define the schema
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			"book": {
				Name: "book",
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
				},
			},
			"member": {
				Name: "member",
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"email": {
						Name:         "email",
						Unique:       false,
						AllowMissing: true,
						Indexer:      &memdb.StringFieldIndex{Field: "Email"},
					},
				},
			},
			"category": {
				Name: "category",
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
				},
			},
			"transaction": {
				Name: "transaction",
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"book_id": {
						Name:    "book_id",
						Unique:  false,
						Indexer: &memdb.StringFieldIndex{Field: "BookID"},
					},
					"member_id": {
						Name:    "member_id",
						Unique:  false,
						Indexer: &memdb.StringFieldIndex{Field: "MemberID"},
					},
					"book_member": { // Composite index for the loan balance lookups
						Name:   "book_member",
						Unique: false,
						Indexer: &memdb.CompoundIndex{
							Indexes: []memdb.Indexer{
								&memdb.StringFieldIndex{Field: "BookID"},
								&memdb.StringFieldIndex{Field: "MemberID"},
							},
						},
					},
				},
			},
		},
	}

	errV := schema.Validate()
	if errV != nil {
		log.Println("schema validating error: ", errV)
	}

	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize in-memory database: %w", err)
	}
	return &InMemoryStore{db: db, exc: nil}, nil
}

type AdaptedBook struct {
	ID            string
	Title         string
	Author        string
	Price         *float32
	Stock         *int
	OriginalStock int
	CategoryID    string
	CreatorID     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func adaptBookIdToString(bookEntry library.Book) AdaptedBook {
	return AdaptedBook{
		ID:            bookEntry.ID.String(),
		Title:         bookEntry.Title,
		Author:        bookEntry.Author,
		Price:         bookEntry.Price,
		Stock:         bookEntry.Stock,
		OriginalStock: bookEntry.OriginalStock,
		CategoryID:    bookEntry.CategoryID.String(),
		CreatorID:     bookEntry.CreatorID.String(),
		CreatedAt:     bookEntry.CreatedAt,
		UpdatedAt:     bookEntry.UpdatedAt,
	}
}

func adaptBookIdToUUID(adptBook AdaptedBook) library.Book {
	return library.Book{
		ID:            uuid.MustParse(adptBook.ID),
		Title:         adptBook.Title,
		Author:        adptBook.Author,
		Price:         adptBook.Price,
		Stock:         adptBook.Stock,
		OriginalStock: adptBook.OriginalStock,
		CategoryID:    uuid.MustParse(adptBook.CategoryID),
		CreatorID:     uuid.MustParse(adptBook.CreatorID),
		CreatedAt:     adptBook.CreatedAt,
		UpdatedAt:     adptBook.UpdatedAt,
	}
}

type AdaptedMember struct {
	ID           string
	Name         string
	Age          *int
	Email        string
	IsManager    bool
	PasswordHash string
	CreatedAt    time.Time
}

func adaptMemberIdToString(m library.Member) AdaptedMember {
	return AdaptedMember{
		ID:           m.ID.String(),
		Name:         m.Name,
		Age:          m.Age,
		Email:        m.Email,
		IsManager:    m.IsManager,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
	}
}

func adaptMemberIdToUUID(m AdaptedMember) library.Member {
	return library.Member{
		ID:           uuid.MustParse(m.ID),
		Name:         m.Name,
		Age:          m.Age,
		Email:        m.Email,
		IsManager:    m.IsManager,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
	}
}

type AdaptedCategory struct {
	ID   string
	Name string
}

type AdaptedTransaction struct {
	ID        string
	BookID    string
	MemberID  string
	Kind      string
	CreatedAt time.Time
}

func adaptTransactionIdToString(t library.Transaction) AdaptedTransaction {
	return AdaptedTransaction{
		ID:        t.ID.String(),
		BookID:    t.BookID.String(),
		MemberID:  t.MemberID.String(),
		Kind:      string(t.Kind),
		CreatedAt: t.CreatedAt,
	}
}

func adaptTransactionIdToUUID(t AdaptedTransaction) library.Transaction {
	return library.Transaction{
		ID:        uuid.MustParse(t.ID),
		BookID:    uuid.MustParse(t.BookID),
		MemberID:  uuid.MustParse(t.MemberID),
		Kind:      library.TransactionKind(t.Kind),
		CreatedAt: t.CreatedAt,
	}
}

/* Picks the memdb transaction to run against: the ambient one when this store
came out of BeginTx, otherwise a fresh local one. The local case never touches
the shared store, so concurrent calls do not step on each other. The release
func ends local transactions and is a noop for ambient ones; calling it again
after a commit is safe, memdb ignores Abort on a finished transaction. */
func (store *InMemoryStore) txn(write bool) (*memdb.Txn, func(commit bool)) {
	if store.exc != nil {
		return store.exc, func(bool) {}
	}

	local := store.db.Txn(write)
	return local, func(commit bool) {
		if commit {
			local.Commit()
			return
		}
		local.Abort()
	}
}

// -- Books --

func (store *InMemoryStore) CreateBook(ctx context.Context, bookEntry library.Book) (library.Book, error) {
	exc, release := store.txn(true)
	defer release(false)

	err := exc.Insert("book", adaptBookIdToString(bookEntry))
	if err != nil {
		return library.Book{}, fmt.Errorf("storing book on db: %w", err)
	}

	release(true)
	return bookEntry, nil
}

func (store *InMemoryStore) GetBookByID(ctx context.Context, id uuid.UUID) (library.Book, error) {
	exc, release := store.txn(false)
	defer release(false)

	raw, err := exc.First("book", "id", id.String())
	if err != nil {
		return library.Book{}, fmt.Errorf("searching book by ID: %w", err)
	}
	if raw == nil {
		return library.Book{}, fmt.Errorf("searching book by ID: %w", library.ErrResponseBookNotFound)
	}

	return adaptBookIdToUUID(raw.(AdaptedBook)), nil
}

/* Same as GetBookByID. The memdb write transaction already serializes writers,
so there is no extra row lock to take here. */
func (store *InMemoryStore) GetBookForUpdate(ctx context.Context, id uuid.UUID) (library.Book, error) {
	return store.GetBookByID(ctx, id)
}

func (store *InMemoryStore) ListBooks(ctx context.Context, title, author string, categoryID uuid.UUID) ([]library.Book, error) {
	exc, release := store.txn(false)
	defer release(false)

	it, err := exc.Get("book", "id")
	if err != nil {
		return []library.Book{}, fmt.Errorf("listing books from db: %w", err)
	}

	books := []library.Book{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		b := obj.(AdaptedBook)
		if title != "" && !strings.Contains(strings.ToLower(b.Title), strings.ToLower(title)) {
			continue
		}
		if author != "" && !strings.Contains(strings.ToLower(b.Author), strings.ToLower(author)) {
			continue
		}
		if categoryID != uuid.Nil && b.CategoryID != categoryID.String() {
			continue
		}
		books = append(books, adaptBookIdToUUID(b))
	}

	sort.Slice(books, func(i, j int) bool {
		return books[i].CreatedAt.After(books[j].CreatedAt)
	})

	return books, nil
}

func (store *InMemoryStore) UpdateBook(ctx context.Context, bookEntry library.Book) (library.Book, error) {
	exc, release := store.txn(true)
	defer release(false)

	raw, err := exc.First("book", "id", bookEntry.ID.String())
	if err != nil {
		return library.Book{}, fmt.Errorf("updating book on db: %w", err)
	}
	if raw == nil {
		return library.Book{}, fmt.Errorf("updating book on db: %w", library.ErrResponseBookNotFound)
	}

	updatedBook := raw.(AdaptedBook)
	updatedBook.Title = bookEntry.Title
	updatedBook.Author = bookEntry.Author
	updatedBook.Price = bookEntry.Price
	updatedBook.Stock = bookEntry.Stock
	updatedBook.CategoryID = bookEntry.CategoryID.String()
	//CreatedAt, OriginalStock and CreatorID will not change.
	updatedBook.UpdatedAt = bookEntry.UpdatedAt

	if err := exc.Insert("book", updatedBook); err != nil {
		return library.Book{}, err
	}

	release(true)
	return adaptBookIdToUUID(updatedBook), nil
}

func (store *InMemoryStore) SetBookStock(ctx context.Context, id uuid.UUID, stock int, updatedAt time.Time) (library.Book, error) {
	exc, release := store.txn(true)
	defer release(false)

	raw, err := exc.First("book", "id", id.String())
	if err != nil {
		return library.Book{}, fmt.Errorf("setting stock on db: %w", err)
	}
	if raw == nil {
		return library.Book{}, fmt.Errorf("setting stock on db: %w", library.ErrResponseBookNotFound)
	}

	updatedBook := raw.(AdaptedBook)
	newStock := stock
	updatedBook.Stock = &newStock
	updatedBook.UpdatedAt = updatedAt

	if err := exc.Insert("book", updatedBook); err != nil {
		return library.Book{}, err
	}

	release(true)
	return adaptBookIdToUUID(updatedBook), nil
}

func (store *InMemoryStore) DeleteBook(ctx context.Context, id uuid.UUID) error {
	exc, release := store.txn(true)
	defer release(false)

	//The ledger entries of this book go away with it, like the cascade on the sql schema.
	if _, err := exc.DeleteAll("transaction", "book_id", id.String()); err != nil {
		return fmt.Errorf("deleting book transactions from db: %w", err)
	}

	if _, err := exc.DeleteAll("book", "id", id.String()); err != nil {
		return fmt.Errorf("deleting book from db: %w", err)
	}

	release(true)
	return nil
}

// -- Categories --

func (store *InMemoryStore) CreateCategory(ctx context.Context, category library.Category) (library.Category, error) {
	exc, release := store.txn(true)
	defer release(false)

	err := exc.Insert("category", AdaptedCategory{ID: category.ID.String(), Name: category.Name})
	if err != nil {
		return library.Category{}, fmt.Errorf("storing category on db: %w", err)
	}

	release(true)
	return category, nil
}

func (store *InMemoryStore) ListCategories(ctx context.Context) ([]library.Category, error) {
	exc, release := store.txn(false)
	defer release(false)

	it, err := exc.Get("category", "id")
	if err != nil {
		return nil, fmt.Errorf("listing categories from db: %w", err)
	}

	categories := []library.Category{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		c := obj.(AdaptedCategory)
		categories = append(categories, library.Category{ID: uuid.MustParse(c.ID), Name: c.Name})
	}

	sort.Slice(categories, func(i, j int) bool {
		return categories[i].Name < categories[j].Name
	})

	return categories, nil
}

func (store *InMemoryStore) GetCategoryByID(ctx context.Context, id uuid.UUID) (library.Category, error) {
	exc, release := store.txn(false)
	defer release(false)

	raw, err := exc.First("category", "id", id.String())
	if err != nil {
		return library.Category{}, fmt.Errorf("searching category by ID: %w", err)
	}
	if raw == nil {
		return library.Category{}, fmt.Errorf("searching category by ID: %w", library.ErrResponseCategoryNotFound)
	}

	c := raw.(AdaptedCategory)
	return library.Category{ID: uuid.MustParse(c.ID), Name: c.Name}, nil
}

// -- Members --

func (store *InMemoryStore) CreateMember(ctx context.Context, memberEntry library.Member) (library.Member, error) {
	exc, release := store.txn(true)
	defer release(false)

	err := exc.Insert("member", adaptMemberIdToString(memberEntry))
	if err != nil {
		return library.Member{}, fmt.Errorf("storing member on db: %w", err)
	}

	release(true)
	return memberEntry, nil
}

func (store *InMemoryStore) GetMemberByID(ctx context.Context, id uuid.UUID) (library.Member, error) {
	exc, release := store.txn(false)
	defer release(false)

	raw, err := exc.First("member", "id", id.String())
	if err != nil {
		return library.Member{}, fmt.Errorf("searching member by ID: %w", err)
	}
	if raw == nil {
		return library.Member{}, fmt.Errorf("searching member by ID: %w", library.ErrResponseMemberNotFound)
	}

	return adaptMemberIdToUUID(raw.(AdaptedMember)), nil
}

func (store *InMemoryStore) GetMemberByEmail(ctx context.Context, email string) (library.Member, error) {
	exc, release := store.txn(false)
	defer release(false)

	raw, err := exc.First("member", "email", email)
	if err != nil {
		return library.Member{}, fmt.Errorf("searching member by email: %w", err)
	}
	if raw == nil {
		return library.Member{}, fmt.Errorf("searching member by email: %w", library.ErrResponseMemberNotFound)
	}

	return adaptMemberIdToUUID(raw.(AdaptedMember)), nil
}

func (store *InMemoryStore) ListMembers(ctx context.Context) ([]library.Member, error) {
	exc, release := store.txn(false)
	defer release(false)

	it, err := exc.Get("member", "id")
	if err != nil {
		return nil, fmt.Errorf("listing members from db: %w", err)
	}

	members := []library.Member{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		m := obj.(AdaptedMember)
		if m.IsManager {
			continue
		}
		members = append(members, adaptMemberIdToUUID(m))
	}

	sort.Slice(members, func(i, j int) bool {
		return members[i].CreatedAt.After(members[j].CreatedAt)
	})

	return members, nil
}

func (store *InMemoryStore) UpdateMember(ctx context.Context, memberEntry library.Member) (library.Member, error) {
	exc, release := store.txn(true)
	defer release(false)

	raw, err := exc.First("member", "id", memberEntry.ID.String())
	if err != nil {
		return library.Member{}, fmt.Errorf("updating member on db: %w", err)
	}
	if raw == nil {
		return library.Member{}, fmt.Errorf("updating member on db: %w", library.ErrResponseMemberNotFound)
	}

	updatedMember := raw.(AdaptedMember)
	updatedMember.Name = memberEntry.Name
	updatedMember.Age = memberEntry.Age
	//Email, IsManager, PasswordHash and CreatedAt will not change.

	if err := exc.Insert("member", updatedMember); err != nil {
		return library.Member{}, err
	}

	release(true)
	return adaptMemberIdToUUID(updatedMember), nil
}

func (store *InMemoryStore) DeleteMember(ctx context.Context, id uuid.UUID) error {
	exc, release := store.txn(true)
	defer release(false)

	//The ledger entries of this member go away with them, like the cascade on the sql schema.
	if _, err := exc.DeleteAll("transaction", "member_id", id.String()); err != nil {
		return fmt.Errorf("deleting member transactions from db: %w", err)
	}

	if _, err := exc.DeleteAll("member", "id", id.String()); err != nil {
		return fmt.Errorf("deleting member from db: %w", err)
	}

	release(true)
	return nil
}

// -- Ledger --

func (store *InMemoryStore) CreateTransaction(ctx context.Context, transactionEntry library.Transaction) (library.Transaction, error) {
	exc, release := store.txn(true)
	defer release(false)

	err := exc.Insert("transaction", adaptTransactionIdToString(transactionEntry))
	if err != nil {
		return library.Transaction{}, fmt.Errorf("storing transaction on db: %w", err)
	}

	release(true)
	return transactionEntry, nil
}

func (store *InMemoryStore) ListTransactions(ctx context.Context) ([]library.Transaction, error) {
	exc, release := store.txn(false)
	defer release(false)

	it, err := exc.Get("transaction", "id")
	if err != nil {
		return nil, fmt.Errorf("listing transactions from db: %w", err)
	}

	transactions := []library.Transaction{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		t := adaptTransactionIdToUUID(obj.(AdaptedTransaction))

		if raw, err := exc.First("book", "id", t.BookID.String()); err == nil && raw != nil {
			t.BookTitle = raw.(AdaptedBook).Title
		}
		if raw, err := exc.First("member", "id", t.MemberID.String()); err == nil && raw != nil {
			t.MemberName = raw.(AdaptedMember).Name
		}

		transactions = append(transactions, t)
	}

	sort.Slice(transactions, func(i, j int) bool {
		return transactions[i].CreatedAt.After(transactions[j].CreatedAt)
	})

	return transactions, nil
}

func (store *InMemoryStore) LoanBalance(ctx context.Context, bookID, memberID uuid.UUID) (int, error) {
	exc, release := store.txn(false)
	defer release(false)

	it, err := exc.Get("transaction", "book_member", bookID.String(), memberID.String())
	if err != nil {
		return 0, fmt.Errorf("counting loan balance from db: %w", err)
	}

	balance := 0
	for obj := it.Next(); obj != nil; obj = it.Next() {
		switch obj.(AdaptedTransaction).Kind {
		case string(library.KindIssue):
			balance++
		case string(library.KindReturn):
			balance--
		}
	}

	return balance, nil
}

func (store *InMemoryStore) LoanBalancesByBook(ctx context.Context, bookID uuid.UUID) (map[uuid.UUID]int, error) {
	exc, release := store.txn(false)
	defer release(false)

	it, err := exc.Get("transaction", "book_id", bookID.String())
	if err != nil {
		return nil, fmt.Errorf("counting loan balances from db: %w", err)
	}

	balances := map[uuid.UUID]int{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		t := obj.(AdaptedTransaction)
		memberID := uuid.MustParse(t.MemberID)
		switch t.Kind {
		case string(library.KindIssue):
			balances[memberID]++
		case string(library.KindReturn):
			balances[memberID]--
		}
	}

	return balances, nil
}

func (store *InMemoryStore) OutstandingLoansOfMember(ctx context.Context, memberID uuid.UUID) (int, error) {
	exc, release := store.txn(false)
	defer release(false)

	it, err := exc.Get("transaction", "member_id", memberID.String())
	if err != nil {
		return 0, fmt.Errorf("counting outstanding loans from db: %w", err)
	}

	outstanding := 0
	for obj := it.Next(); obj != nil; obj = it.Next() {
		switch obj.(AdaptedTransaction).Kind {
		case string(library.KindIssue):
			outstanding++
		case string(library.KindReturn):
			outstanding--
		}
	}

	return outstanding, nil
}

// -- Transactions --

func (store *InMemoryStore) BeginTx(ctx context.Context, opts *sql.TxOptions) (library.Repository, driver.Tx, error) {
	txn := store.db.Txn(true)
	if txn == nil {
		return nil, nil, fmt.Errorf("failed to create transaction")
	}

	txWrapper := &TxWrapper{txn: txn}
	txStore := &InMemoryStore{
		db:  store.db,
		exc: txWrapper.txn,
	}

	return txStore, txWrapper, nil
}

type TxWrapper struct {
	txn  *memdb.Txn
	done bool
}

func (tx *TxWrapper) Commit() error {
	tx.txn.Commit()
	tx.done = true
	return nil
}

func (tx *TxWrapper) Rollback() error {
	if tx.done {
		return nil
	}
	tx.txn.Abort()
	tx.done = true
	return nil
}
