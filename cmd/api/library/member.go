package library

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Members created through the management interface all start with this
// password. Only accounts flagged as managers can ever log in with it.
const DefaultMemberPassword = "user123"

const (
	AgeMin = 1
	AgeMax = 150
)

type Member struct {
	ID           uuid.UUID
	Name         string
	Age          *int
	Email        string
	IsManager    bool
	PasswordHash string
	CreatedAt    time.Time
}

type CreateMemberRequest struct {
	Name string
	Age  *int
}

type UpdateMemberRequest struct {
	ID   uuid.UUID
	Name string
	Age  *int
}

/* Stores a new member with the default password. Members are never managers. */
func (s *Service) CreateMember(ctx context.Context, req CreateMemberRequest) (Member, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultMemberPassword), bcrypt.DefaultCost)
	if err != nil {
		return Member{}, fmt.Errorf("hashing member password: %w", err)
	}

	newMember := Member{
		ID:           uuid.New(),
		Name:         req.Name,
		Age:          req.Age,
		IsManager:    false,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC().Round(time.Millisecond),
	}

	return s.repo.CreateMember(ctx, newMember)
}

func (s *Service) GetMember(ctx context.Context, id uuid.UUID) (Member, error) {
	return s.repo.GetMemberByID(ctx, id)
}

func (s *Service) ListMembers(ctx context.Context) ([]Member, error) {
	return s.repo.ListMembers(ctx)
}

func (s *Service) UpdateMember(ctx context.Context, req UpdateMemberRequest) (Member, error) {
	storedMember, err := s.repo.GetMemberByID(ctx, req.ID)
	if err != nil {
		return Member{}, err
	}

	memberEntry := storedMember
	memberEntry.Name = req.Name
	memberEntry.Age = req.Age
	//Email, IsManager and PasswordHash will not change here.

	return s.repo.UpdateMember(ctx, memberEntry)
}

/* Deletes the member, unless the ledger says they still hold borrowed books. */
func (s *Service) DeleteMember(ctx context.Context, id uuid.UUID) error {
	_, err := s.repo.GetMemberByID(ctx, id)
	if err != nil {
		return err
	}

	outstanding, err := s.repo.OutstandingLoansOfMember(ctx, id)
	if err != nil {
		return err
	}
	if outstanding > 0 {
		return fmt.Errorf("deleting member: %w", ErrResponseMemberHasActiveLoans)
	}

	return s.repo.DeleteMember(ctx, id)
}
