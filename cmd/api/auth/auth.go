package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/library-service/cmd/api/library"
	"golang.org/x/crypto/bcrypt"
)

type ServiceAPI interface {
	Login(ctx context.Context, email, password string) (library.Member, string, error)
	Resolve(ctx context.Context, token string) (library.Member, error)
}

// MemberGetter is the slice of the repository the auth gate needs.
type MemberGetter interface {
	GetMemberByID(ctx context.Context, id uuid.UUID) (library.Member, error)
	GetMemberByEmail(ctx context.Context, email string) (library.Member, error)
}

type Service struct {
	repo MemberGetter
}

func NewService(repo MemberGetter) *Service {
	return &Service{repo: repo}
}

/* Checks the credentials and issues an opaque bearer token. Only managers may log in. */
func (s *Service) Login(ctx context.Context, email, password string) (library.Member, string, error) {
	manager, err := s.repo.GetMemberByEmail(ctx, email)
	if err != nil {
		return library.Member{}, "", fmt.Errorf("logging in: %w", library.ErrResponseInvalidCredentials)
	}

	err = bcrypt.CompareHashAndPassword([]byte(manager.PasswordHash), []byte(password))
	if err != nil {
		return library.Member{}, "", fmt.Errorf("logging in: %w", library.ErrResponseInvalidCredentials)
	}

	if !manager.IsManager {
		return library.Member{}, "", fmt.Errorf("logging in: %w", library.ErrResponseNotAManager)
	}

	token := base64.StdEncoding.EncodeToString([]byte(manager.ID.String() + "|" + strconv.FormatInt(time.Now().Unix(), 10)))

	return manager, token, nil
}

/* Decodes a bearer token back to the manager identity it was issued for. */
func (s *Service) Resolve(ctx context.Context, token string) (library.Member, error) {
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return library.Member{}, fmt.Errorf("resolving token: %w", library.ErrResponseInvalidToken)
	}

	parts := strings.Split(string(decoded), "|")
	if len(parts) != 2 {
		return library.Member{}, fmt.Errorf("resolving token: %w", library.ErrResponseInvalidToken)
	}

	id, err := uuid.Parse(parts[0])
	if err != nil {
		return library.Member{}, fmt.Errorf("resolving token: %w", library.ErrResponseInvalidToken)
	}

	manager, err := s.repo.GetMemberByID(ctx, id)
	if err != nil {
		return library.Member{}, fmt.Errorf("resolving token: %w", library.ErrResponseInvalidToken)
	}

	return manager, nil
}
