package library_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/library-service/cmd/api/library"
	librarymock "github.com/library-service/cmd/api/library/mocks"
	"github.com/matryer/is"
	gomock "go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"
)

func TestCreateMember(t *testing.T) {
	t.Run("creates a member with the default password", func(t *testing.T) {
		is := is.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := librarymock.NewMockRepository(ctrl)
		mS := library.NewService(mockRepo, ntfy, notificationsTimeout)

		reqMember := library.CreateMemberRequest{
			Name: "Service tester member",
			Age:  toPointer(30),
		}

		mockRepo.EXPECT().CreateMember(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, m library.Member) (library.Member, error) {
			is.True(m.ID != uuid.Nil)
			is.Equal(m.Name, reqMember.Name)
			is.Equal(m.Age, reqMember.Age)
			is.True(!m.IsManager)
			is.NoErr(bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(library.DefaultMemberPassword)))
			is.True(m.CreatedAt.Compare(time.Now().Round(time.Millisecond)) <= 0)
			return m, nil
		})

		createdMember, err := mS.CreateMember(ctx, reqMember)
		is.NoErr(err)
		is.True(createdMember.ID != uuid.Nil)
		is.Equal(createdMember.Name, reqMember.Name)
		is.True(!createdMember.IsManager)
	})
}

func TestUpdateMember(t *testing.T) {
	t.Run("updates name and age, nothing else", func(t *testing.T) {
		is := is.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := librarymock.NewMockRepository(ctrl)
		mS := library.NewService(mockRepo, ntfy, notificationsTimeout)

		storedMember := library.Member{
			ID:           uuid.New(),
			Name:         "Old name",
			Age:          toPointer(30),
			Email:        "member@library.com",
			IsManager:    false,
			PasswordHash: "stored-hash",
		}

		reqMember := library.UpdateMemberRequest{
			ID:   storedMember.ID,
			Name: "New name",
			Age:  toPointer(31),
		}

		mockRepo.EXPECT().GetMemberByID(gomock.Any(), storedMember.ID).Return(storedMember, nil)
		mockRepo.EXPECT().UpdateMember(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, m library.Member) (library.Member, error) {
			is.Equal(m.ID, reqMember.ID)
			is.Equal(m.Name, reqMember.Name)
			is.Equal(m.Age, reqMember.Age)
			is.Equal(m.Email, storedMember.Email)
			is.Equal(m.PasswordHash, storedMember.PasswordHash)
			is.True(!m.IsManager)
			return m, nil
		})

		updatedMember, err := mS.UpdateMember(ctx, reqMember)
		is.NoErr(err)
		is.Equal(updatedMember.Name, reqMember.Name)
	})

	t.Run("cannot update a missing member", func(t *testing.T) {
		is := is.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := librarymock.NewMockRepository(ctrl)
		mS := library.NewService(mockRepo, ntfy, notificationsTimeout)

		reqMember := library.UpdateMemberRequest{
			ID:   uuid.New(),
			Name: "Nobody",
			Age:  toPointer(20),
		}

		mockRepo.EXPECT().GetMemberByID(gomock.Any(), reqMember.ID).Return(library.Member{}, library.ErrResponseMemberNotFound)

		_, err := mS.UpdateMember(ctx, reqMember)
		is.True(errors.Is(err, library.ErrResponseMemberNotFound))
	})
}

func TestGetMember(t *testing.T) {
	t.Run("gets a member by ID without errors", func(t *testing.T) {
		is := is.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := librarymock.NewMockRepository(ctrl)
		mS := library.NewService(mockRepo, ntfy, notificationsTimeout)

		id := uuid.New()

		mockRepo.EXPECT().GetMemberByID(gomock.Any(), id)

		_, err := mS.GetMember(ctx, id)
		is.NoErr(err)
	})
}

func TestDeleteMember(t *testing.T) {
	t.Run("deletes a member with an even ledger", func(t *testing.T) {
		is := is.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := librarymock.NewMockRepository(ctrl)
		mS := library.NewService(mockRepo, ntfy, notificationsTimeout)

		id := uuid.New()

		mockRepo.EXPECT().GetMemberByID(gomock.Any(), id).Return(library.Member{ID: id}, nil)
		mockRepo.EXPECT().OutstandingLoansOfMember(gomock.Any(), id).Return(0, nil)
		mockRepo.EXPECT().DeleteMember(gomock.Any(), id).Return(nil)

		err := mS.DeleteMember(ctx, id)
		is.NoErr(err)
	})

	t.Run("refuses to delete a member still holding books", func(t *testing.T) {
		is := is.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := librarymock.NewMockRepository(ctrl)
		mS := library.NewService(mockRepo, ntfy, notificationsTimeout)

		id := uuid.New()

		mockRepo.EXPECT().GetMemberByID(gomock.Any(), id).Return(library.Member{ID: id}, nil)
		mockRepo.EXPECT().OutstandingLoansOfMember(gomock.Any(), id).Return(2, nil)

		err := mS.DeleteMember(ctx, id)
		is.True(errors.Is(err, library.ErrResponseMemberHasActiveLoans))
	})

	t.Run("refuses to delete a member that is not there", func(t *testing.T) {
		is := is.New(t)
		ctrl := gomock.NewController(t)
		mockRepo := librarymock.NewMockRepository(ctrl)
		mS := library.NewService(mockRepo, ntfy, notificationsTimeout)

		id := uuid.New()

		mockRepo.EXPECT().GetMemberByID(gomock.Any(), id).Return(library.Member{}, library.ErrResponseMemberNotFound)

		err := mS.DeleteMember(ctx, id)
		is.True(errors.Is(err, library.ErrResponseMemberNotFound))
	})
}
