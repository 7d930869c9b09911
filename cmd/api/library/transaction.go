package library

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
)

type TransactionKind string

const (
	KindIssue  TransactionKind = "issue"
	KindReturn TransactionKind = "return"
)

// Transaction is one entry of the append-only borrow/return ledger.
// Entries are never updated or deleted on their own, they only go away
// when their book or member is deleted.
type Transaction struct {
	ID        uuid.UUID
	BookID    uuid.UUID
	MemberID  uuid.UUID
	Kind      TransactionKind
	CreatedAt time.Time

	//Filled by the stores on listings, so the caller does not need extra lookups.
	BookTitle  string
	MemberName string
}

type TransactionRequest struct {
	BookID   uuid.UUID
	MemberID uuid.UUID
}

type TransactionResult struct {
	Transaction Transaction
	Book        Book
}

/* Issues one unit of the book to the member: stock check, stock decrement and
ledger append happen inside a single repository transaction holding the book row. */
func (s *Service) RecordBorrow(ctx context.Context, req TransactionRequest) (TransactionResult, error) {
	_, err := s.repo.GetMemberByID(ctx, req.MemberID)
	if err != nil {
		return TransactionResult{}, err
	}

	txRepo, tx, err := s.repo.BeginTx(ctx, nil)
	if err != nil {
		return TransactionResult{}, fmt.Errorf("beginning borrow transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	lockedBook, err := txRepo.GetBookForUpdate(ctx, req.BookID)
	if err != nil {
		return TransactionResult{}, err
	}

	if *lockedBook.Stock <= 0 {
		return TransactionResult{}, fmt.Errorf("borrowing book: %w", ErrResponseBookOutOfStock)
	}

	now := time.Now().UTC().Round(time.Millisecond)

	updatedBook, err := txRepo.SetBookStock(ctx, lockedBook.ID, *lockedBook.Stock-1, now)
	if err != nil {
		return TransactionResult{}, err
	}

	newTransaction, err := txRepo.CreateTransaction(ctx, Transaction{
		ID:        uuid.New(),
		BookID:    req.BookID,
		MemberID:  req.MemberID,
		Kind:      KindIssue,
		CreatedAt: now,
	})
	if err != nil {
		return TransactionResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return TransactionResult{}, fmt.Errorf("committing borrow transaction: %w", err)
	}

	if *updatedBook.Stock == 0 {
		s.notifyAsync(func() error { return s.ntfy.StockDepleted(updatedBook.Title) })
	}

	return TransactionResult{Transaction: newTransaction, Book: updatedBook}, nil
}

/* Takes one unit of the book back from the member. The member must hold an
unmatched issue for this book and the stock may not climb past the original count. */
func (s *Service) RecordReturn(ctx context.Context, req TransactionRequest) (TransactionResult, error) {
	_, err := s.repo.GetMemberByID(ctx, req.MemberID)
	if err != nil {
		return TransactionResult{}, err
	}

	txRepo, tx, err := s.repo.BeginTx(ctx, nil)
	if err != nil {
		return TransactionResult{}, fmt.Errorf("beginning return transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	lockedBook, err := txRepo.GetBookForUpdate(ctx, req.BookID)
	if err != nil {
		return TransactionResult{}, err
	}

	balance, err := txRepo.LoanBalance(ctx, req.BookID, req.MemberID)
	if err != nil {
		return TransactionResult{}, err
	}
	if balance <= 0 {
		return TransactionResult{}, fmt.Errorf("returning book: %w", ErrResponseInvalidReturn)
	}

	if *lockedBook.Stock >= lockedBook.OriginalStock {
		//Should be unreachable while the ledger and the stock counter agree,
		//so it is worth shouting about when it happens.
		s.notifyAsync(func() error { return s.ntfy.StockInconsistency(lockedBook.Title) })
		return TransactionResult{}, fmt.Errorf("returning book: %w", ErrResponseStockOverflow)
	}

	now := time.Now().UTC().Round(time.Millisecond)

	updatedBook, err := txRepo.SetBookStock(ctx, lockedBook.ID, *lockedBook.Stock+1, now)
	if err != nil {
		return TransactionResult{}, err
	}

	newTransaction, err := txRepo.CreateTransaction(ctx, Transaction{
		ID:        uuid.New(),
		BookID:    req.BookID,
		MemberID:  req.MemberID,
		Kind:      KindReturn,
		CreatedAt: now,
	})
	if err != nil {
		return TransactionResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return TransactionResult{}, fmt.Errorf("committing return transaction: %w", err)
	}

	return TransactionResult{Transaction: newTransaction, Book: updatedBook}, nil
}

/* Returns the whole ledger, most recent entry first. */
func (s *Service) ListTransactions(ctx context.Context) ([]Transaction, error) {
	transactions, err := s.repo.ListTransactions(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("timeout on call to ListTransactions: %w", err)
		}
		errRepo := ErrResponse{
			Code:    ErrResponseFromRepository.Code,
			Message: ErrResponseFromRepository.Message + err.Error(),
		}
		return nil, errRepo
	}

	return transactions, nil
}

/* Lists the members whose issue count for this book still exceeds their return count. */
func (s *Service) ActiveBorrowersOf(ctx context.Context, bookID uuid.UUID) ([]Member, error) {
	_, err := s.repo.GetBookByID(ctx, bookID)
	if err != nil {
		return nil, err
	}

	balances, err := s.repo.LoanBalancesByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	borrowers := []Member{}
	for memberID, balance := range balances {
		if balance <= 0 {
			continue
		}
		member, err := s.repo.GetMemberByID(ctx, memberID)
		if err != nil {
			return nil, err
		}
		borrowers = append(borrowers, member)
	}

	sort.Slice(borrowers, func(i, j int) bool {
		return borrowers[i].Name < borrowers[j].Name
	})

	return borrowers, nil
}

/* Fires a notification in the background, bounded by the configured timeout. */
func (s *Service) notifyAsync(send func() error) {
	go func() {
		done := make(chan error, 1)
		go func() { done <- send() }()
		select {
		case err := <-done:
			if err != nil {
				log.Println(err)
			}
		case <-time.After(s.ntfyTimeout):
			log.Println("notification delivery timed out")
		}
	}()
}
