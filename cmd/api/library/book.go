package library

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const PriceMax float32 = 9999.99

type Book struct {
	ID            uuid.UUID
	Title         string
	Author        string
	Price         *float32
	Stock         *int
	OriginalStock int
	CategoryID    uuid.UUID
	CreatorID     uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type CreateBookRequest struct {
	Title      string
	Author     string
	Price      *float32
	Stock      *int
	CategoryID uuid.UUID
	CreatorID  uuid.UUID
}

type UpdateBookRequest struct {
	ID         uuid.UUID
	Title      string
	Author     string
	Price      *float32
	Stock      *int
	CategoryID uuid.UUID
	EditorID   uuid.UUID
}

type ListBooksRequest struct {
	Title      string
	Author     string
	CategoryID uuid.UUID
}

/* Validates the entry, sets the immutable original stock and stores the book. */
func (s *Service) CreateBook(ctx context.Context, req CreateBookRequest) (Book, error) {
	_, err := s.repo.GetCategoryByID(ctx, req.CategoryID)
	if err != nil {
		return Book{}, err
	}

	createdAt := time.Now().UTC().Round(time.Millisecond)

	newBook := Book{
		ID:            uuid.New(),
		Title:         req.Title,
		Author:        req.Author,
		Price:         req.Price,
		Stock:         req.Stock,
		OriginalStock: *req.Stock, //Set once at creation, never edited again.
		CategoryID:    req.CategoryID,
		CreatorID:     req.CreatorID,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}

	return s.repo.CreateBook(ctx, newBook)
}

func (s *Service) GetBook(ctx context.Context, id uuid.UUID) (Book, error) {
	return s.repo.GetBookByID(ctx, id)
}

func (s *Service) ListBooks(ctx context.Context, req ListBooksRequest) ([]Book, error) {
	books, err := s.repo.ListBooks(ctx, req.Title, req.Author, req.CategoryID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("timeout on call to ListBooks: %w", err)
		}
		errRepo := ErrResponse{
			Code:    ErrResponseFromRepository.Code,
			Message: ErrResponseFromRepository.Message + err.Error(),
		}
		return nil, errRepo
	}

	return books, nil
}

/* Validates the entry, then updates the asked book. Only the creator may change the title. */
func (s *Service) UpdateBook(ctx context.Context, req UpdateBookRequest) (Book, error) {
	storedBook, err := s.repo.GetBookByID(ctx, req.ID)
	if err != nil {
		return Book{}, err
	}

	if req.Title != storedBook.Title && req.EditorID != storedBook.CreatorID {
		return Book{}, fmt.Errorf("updating book: %w", ErrResponseNotTheCreator)
	}

	//The shelf can never hold more copies than were ever bought.
	if *req.Stock > storedBook.OriginalStock {
		return Book{}, fmt.Errorf("updating book: %w", ErrResponseStockAboveOriginal)
	}

	_, err = s.repo.GetCategoryByID(ctx, req.CategoryID)
	if err != nil {
		return Book{}, err
	}

	bookEntry := storedBook
	bookEntry.Title = req.Title
	bookEntry.Author = req.Author
	bookEntry.Price = req.Price
	bookEntry.Stock = req.Stock
	bookEntry.CategoryID = req.CategoryID
	//OriginalStock and CreatorID will not change.
	bookEntry.UpdatedAt = time.Now().UTC().Round(time.Millisecond)

	return s.repo.UpdateBook(ctx, bookEntry)
}

/* Deletes the book. Its transactions cascade away with it. */
func (s *Service) DeleteBook(ctx context.Context, id uuid.UUID) error {
	_, err := s.repo.GetBookByID(ctx, id)
	if err != nil {
		return err
	}

	return s.repo.DeleteBook(ctx, id)
}
