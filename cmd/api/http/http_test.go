package http_test

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	libraryhttp "github.com/library-service/cmd/api/http"
	httpmock "github.com/library-service/cmd/api/http/mocks"
	"github.com/library-service/cmd/api/library"
	"github.com/matryer/is"
	"go.uber.org/mock/gomock"
)

const testToken = "dGVzdC10b2tlbg=="

func TestMain(m *testing.M) {
	var err error

	reqTimeoutStr := os.Getenv("HTTP_REQUEST_TIMEOUT") //This ENV must be written with a unit suffix, like seconds
	if reqTimeoutStr != "" {
		libraryhttp.RequestTimeout, err = time.ParseDuration(reqTimeoutStr)
		if err != nil {
			log.Fatalln("getting request timeout from env: %w", err)
		}
	}

	os.Exit(m.Run())
}

/* Builds a server over mocked services and a manager identity behind testToken. */
func newTestServer(t *testing.T) (*http.Server, *httpmock.MockServiceAPI, *httpmock.MockAuthAPI, library.Member) {
	t.Helper()

	ctrl := gomock.NewController(t)
	mockAPI := httpmock.NewMockServiceAPI(ctrl)
	mockAuth := httpmock.NewMockAuthAPI(ctrl)
	handler := libraryhttp.NewLibraryHandler(mockAPI, mockAuth)
	server := libraryhttp.NewServer(libraryhttp.ServerConfig{Port: 8080}, handler)

	manager := library.Member{
		ID:        uuid.New(),
		Name:      "Library Manager",
		Email:     "manager@library.com",
		IsManager: true,
	}

	return server, mockAPI, mockAuth, manager
}

func authorized(method, target, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	request, _ := http.NewRequest(method, target, reader)
	request.Header.Set("Authorization", "Bearer "+testToken)
	return request
}

func TestPing(t *testing.T) {
	is := is.New(t)
	server, _, _, _ := newTestServer(t)

	request, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	response := httptest.NewRecorder()

	server.Handler.ServeHTTP(response, request)
	is.True(response.Result().StatusCode == 204)
}

func TestCreateBook(t *testing.T) {
	server, mockAPI, mockAuth, manager := newTestServer(t)

	t.Run("creates a book without errors", func(t *testing.T) {
		is := is.New(t)

		categoryID := uuid.New()
		bookToCreate := fmt.Sprintf(`{
			"title": "HTTP tester book",
			"author": "HTTP tester author",
			"price": 100,
			"stock": 99,
			"category_id": "%s"
		}`, categoryID)
		newID := uuid.New()
		expectedReturn := library.Book{
			ID:            newID,
			Title:         "HTTP tester book",
			Author:        "HTTP tester author",
			Price:         toPointer(float32(100.0)),
			Stock:         toPointer(99),
			OriginalStock: 99,
			CategoryID:    categoryID,
			CreatorID:     manager.ID,
		}
		expectedJSONresponse := fmt.Sprintf(`{"id":"%s","title":"HTTP tester book","author":"HTTP tester author","price":100,"stock":99,"original_stock":99,"category_id":"%s","creator_id":"%s"}`+"\n", newID, categoryID, manager.ID)

		request := authorized(http.MethodPost, "/books", bookToCreate)
		response := httptest.NewRecorder()

		mockAuth.EXPECT().Resolve(gomock.Any(), testToken).Return(manager, nil)
		mockAPI.EXPECT().CreateBook(gomock.Any(), library.CreateBookRequest{
			Title:      "HTTP tester book",
			Author:     "HTTP tester author",
			Price:      toPointer(float32(100.0)),
			Stock:      toPointer(99),
			CategoryID: categoryID,
			CreatorID:  manager.ID,
		}).Return(expectedReturn, nil)

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.True(response.Result().StatusCode == 201)
		is.Equal(string(body), expectedJSONresponse)
	})

	t.Run("no token means no book", func(t *testing.T) {
		is := is.New(t)

		request, _ := http.NewRequest(http.MethodPost, "/books", strings.NewReader(`{}`))
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.True(response.Result().StatusCode == 401)
		is.Equal(string(body), fmt.Sprintln(`{"error_code":122,"error_message":"unauthenticated"}`))
	})

	t.Run("a stale token means no book either", func(t *testing.T) {
		is := is.New(t)

		request := authorized(http.MethodPost, "/books", `{}`)
		response := httptest.NewRecorder()

		mockAuth.EXPECT().Resolve(gomock.Any(), testToken).Return(library.Member{}, library.ErrResponseInvalidToken)

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.True(response.Result().StatusCode == 401)
		is.Equal(string(body), fmt.Sprintln(`{"error_code":123,"error_message":"invalid token"}`))
	})

	t.Run("expected invalid json error", func(t *testing.T) {
		is := is.New(t)

		invalidBookToCreate := `{
				"title": "test with missing coma after price",
				"price": 100
				"stock": 99
			}`
		expectedJSONresponse := fmt.Sprintln(`{"error_code":102,"error_message":"invalid json request.invalid character '\"' after object key:value pair"}`)

		request := authorized(http.MethodPost, "/books", invalidBookToCreate)
		response := httptest.NewRecorder()

		mockAuth.EXPECT().Resolve(gomock.Any(), testToken).Return(manager, nil)

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.True(response.Result().StatusCode == 400)
		is.Equal(string(body), expectedJSONresponse)
	})

	t.Run("expected blank fields error", func(t *testing.T) {
		is := is.New(t)

		invalidBookToCreate := `{
			"title": "test with missing stock and category",
			"author": "someone",
			"price": 100
		}`
		expectedJSONresponse := fmt.Sprintln(`{"error_code":100,"error_message":"all the fields - title, author, price, stock and category_id - must be filled correctly."}`)

		request := authorized(http.MethodPost, "/books", invalidBookToCreate)
		response := httptest.NewRecorder()

		mockAuth.EXPECT().Resolve(gomock.Any(), testToken).Return(manager, nil)

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.True(response.Result().StatusCode == 400)
		is.Equal(string(body), expectedJSONresponse)
	})

	t.Run("expected category not found error", func(t *testing.T) {
		is := is.New(t)

		categoryID := uuid.New()
		bookToCreate := fmt.Sprintf(`{
			"title": "HTTP tester book",
			"author": "HTTP tester author",
			"price": 100,
			"stock": 99,
			"category_id": "%s"
		}`, categoryID)

		request := authorized(http.MethodPost, "/books", bookToCreate)
		response := httptest.NewRecorder()

		mockAuth.EXPECT().Resolve(gomock.Any(), testToken).Return(manager, nil)
		mockAPI.EXPECT().CreateBook(gomock.Any(), gomock.Any()).Return(library.Book{}, fmt.Errorf("searching category by ID: %w", library.ErrResponseCategoryNotFound))

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.True(response.Result().StatusCode == 404)
		is.Equal(string(body), fmt.Sprintln(`{"error_code":106,"error_message":"category not found"}`))
	})
}

func TestListBooks(t *testing.T) {
	server, mockAPI, _, _ := newTestServer(t)

	t.Run("listing books takes no token", func(t *testing.T) {
		is := is.New(t)

		mockAPI.EXPECT().ListBooks(gomock.Any(), library.ListBooksRequest{Title: "dune", Author: "herbert"}).Return([]library.Book{}, nil)

		request, _ := http.NewRequest(http.MethodGet, "/books?title=dune&author=herbert", nil)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.True(response.Result().StatusCode == 200)
		is.Equal(string(body), fmt.Sprintln(`[]`))
	})

	t.Run("category filter must be a uuid", func(t *testing.T) {
		is := is.New(t)

		request, _ := http.NewRequest(http.MethodGet, "/books?category=fiction", nil)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		is.True(response.Result().StatusCode == 400)
	})
}

func TestGetBookById(t *testing.T) {
	server, mockAPI, _, _ := newTestServer(t)

	t.Run("gets a book by ID without errors", func(t *testing.T) {
		is := is.New(t)

		id := uuid.New()
		mockAPI.EXPECT().GetBook(gomock.Any(), id).Return(library.Book{ID: id, Title: "Found book", Author: "A", Price: toPointer(float32(1.0)), Stock: toPointer(1), OriginalStock: 1}, nil)

		request, _ := http.NewRequest(http.MethodGet, "/books/"+id.String(), nil)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		var returned libraryhttp.BookResponse
		is.NoErr(json.NewDecoder(response.Result().Body).Decode(&returned))

		is.True(response.Result().StatusCode == 200)
		is.Equal(returned.ID, id)
		is.Equal(returned.Title, "Found book")
	})

	t.Run("a malformed id is rejected before the service", func(t *testing.T) {
		is := is.New(t)

		request, _ := http.NewRequest(http.MethodGet, "/books/not-an-id", nil)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		is.True(response.Result().StatusCode == 400)
	})

	t.Run("expected book not found error", func(t *testing.T) {
		is := is.New(t)

		id := uuid.New()
		mockAPI.EXPECT().GetBook(gomock.Any(), id).Return(library.Book{}, fmt.Errorf("searching book by ID: %w", library.ErrResponseBookNotFound))

		request, _ := http.NewRequest(http.MethodGet, "/books/"+id.String(), nil)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.True(response.Result().StatusCode == 404)
		is.Equal(string(body), fmt.Sprintln(`{"error_code":101,"error_message":"book not found"}`))
	})
}

func TestUpdateBook(t *testing.T) {
	server, mockAPI, mockAuth, manager := newTestServer(t)

	t.Run("renaming somebody else's book is forbidden", func(t *testing.T) {
		is := is.New(t)

		id := uuid.New()
		categoryID := uuid.New()
		bookToUpdate := fmt.Sprintf(`{
			"title": "A new title",
			"author": "An author",
			"price": 10,
			"stock": 5,
			"category_id": "%s"
		}`, categoryID)

		request := authorized(http.MethodPut, "/books/"+id.String(), bookToUpdate)
		response := httptest.NewRecorder()

		mockAuth.EXPECT().Resolve(gomock.Any(), testToken).Return(manager, nil)
		mockAPI.EXPECT().UpdateBook(gomock.Any(), gomock.Any()).Return(library.Book{}, fmt.Errorf("updating book: %w", library.ErrResponseNotTheCreator))

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.True(response.Result().StatusCode == 403)
		is.Equal(string(body), fmt.Sprintln(`{"error_code":112,"error_message":"only the book creator can edit the title"}`))
	})

	t.Run("raising the stock past the original count is rejected", func(t *testing.T) {
		is := is.New(t)

		id := uuid.New()
		categoryID := uuid.New()
		bookToUpdate := fmt.Sprintf(`{
			"title": "A title",
			"author": "An author",
			"price": 10,
			"stock": 50,
			"category_id": "%s"
		}`, categoryID)

		request := authorized(http.MethodPut, "/books/"+id.String(), bookToUpdate)
		response := httptest.NewRecorder()

		mockAuth.EXPECT().Resolve(gomock.Any(), testToken).Return(manager, nil)
		mockAPI.EXPECT().UpdateBook(gomock.Any(), gomock.Any()).Return(library.Book{}, fmt.Errorf("updating book: %w", library.ErrResponseStockAboveOriginal))

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.True(response.Result().StatusCode == 422)
		is.Equal(string(body), fmt.Sprintln(`{"error_code":115,"error_message":"cannot update book. Stock cannot exceed original stock count."}`))
	})
}

func TestDeleteBook(t *testing.T) {
	server, mockAPI, mockAuth, manager := newTestServer(t)

	t.Run("deletes a book without errors", func(t *testing.T) {
		is := is.New(t)

		id := uuid.New()

		request := authorized(http.MethodDelete, "/books/"+id.String(), "")
		response := httptest.NewRecorder()

		mockAuth.EXPECT().Resolve(gomock.Any(), testToken).Return(manager, nil)
		mockAPI.EXPECT().DeleteBook(gomock.Any(), id).Return(nil)

		server.Handler.ServeHTTP(response, request)

		is.True(response.Result().StatusCode == 204)
	})
}

func TestCategoriesEndpoint(t *testing.T) {
	server, mockAPI, _, _ := newTestServer(t)

	t.Run("lists the categories without a token", func(t *testing.T) {
		is := is.New(t)

		fiction := library.Category{ID: uuid.New(), Name: "Fiction"}
		mockAPI.EXPECT().ListCategories(gomock.Any()).Return([]library.Category{fiction}, nil)

		request, _ := http.NewRequest(http.MethodGet, "/categories", nil)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.True(response.Result().StatusCode == 200)
		is.Equal(string(body), fmt.Sprintf(`[{"id":"%s","name":"Fiction"}]`+"\n", fiction.ID))
	})
}

func TestLogin(t *testing.T) {
	server, _, mockAuth, manager := newTestServer(t)

	t.Run("logs a manager in", func(t *testing.T) {
		is := is.New(t)

		mockAuth.EXPECT().Login(gomock.Any(), manager.Email, "manager123").Return(manager, testToken, nil)

		request, _ := http.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"manager@library.com","password":"manager123"}`))
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		var returned libraryhttp.LoginResponse
		is.NoErr(json.NewDecoder(response.Result().Body).Decode(&returned))

		is.True(response.Result().StatusCode == 200)
		is.Equal(returned.Token, testToken)
		is.Equal(returned.User.ID, manager.ID)
		is.True(returned.User.IsManager)
	})

	t.Run("blank credentials are rejected before the service", func(t *testing.T) {
		is := is.New(t)

		request, _ := http.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"","password":""}`))
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		is.True(response.Result().StatusCode == 400)
	})

	t.Run("wrong credentials", func(t *testing.T) {
		is := is.New(t)

		mockAuth.EXPECT().Login(gomock.Any(), manager.Email, "wrong").Return(library.Member{}, "", fmt.Errorf("logging in: %w", library.ErrResponseInvalidCredentials))

		request, _ := http.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"manager@library.com","password":"wrong"}`))
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.True(response.Result().StatusCode == 401)
		is.Equal(string(body), fmt.Sprintln(`{"error_code":120,"error_message":"invalid credentials"}`))
	})

	t.Run("a plain member cannot log in", func(t *testing.T) {
		is := is.New(t)

		mockAuth.EXPECT().Login(gomock.Any(), "member@library.com", "user123").Return(library.Member{}, "", fmt.Errorf("logging in: %w", library.ErrResponseNotAManager))

		request, _ := http.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"member@library.com","password":"user123"}`))
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		is.True(response.Result().StatusCode == 403)
	})
}

func TestMe(t *testing.T) {
	server, _, mockAuth, manager := newTestServer(t)

	t.Run("echoes the manager behind the token", func(t *testing.T) {
		is := is.New(t)

		mockAuth.EXPECT().Resolve(gomock.Any(), testToken).Return(manager, nil)

		request := authorized(http.MethodGet, "/auth/me", "")
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		var returned map[string]libraryhttp.ManagerResponse
		is.NoErr(json.NewDecoder(response.Result().Body).Decode(&returned))

		is.True(response.Result().StatusCode == 200)
		is.Equal(returned["user"].ID, manager.ID)
	})

	t.Run("no token, no identity", func(t *testing.T) {
		is := is.New(t)

		request, _ := http.NewRequest(http.MethodGet, "/auth/me", nil)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		is.True(response.Result().StatusCode == 401)
	})
}

func TestLogout(t *testing.T) {
	server, _, mockAuth, manager := newTestServer(t)

	t.Run("acknowledges the logout", func(t *testing.T) {
		is := is.New(t)

		mockAuth.EXPECT().Resolve(gomock.Any(), testToken).Return(manager, nil)

		request := authorized(http.MethodPost, "/auth/logout", "")
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.True(response.Result().StatusCode == 200)
		is.Equal(string(body), fmt.Sprintln(`{"message":"Logged out successfully"}`))
	})
}

func TestCreateMember(t *testing.T) {
	server, mockAPI, mockAuth, manager := newTestServer(t)

	t.Run("creates a member without errors", func(t *testing.T) {
		is := is.New(t)

		newID := uuid.New()
		mockAuth.EXPECT().Resolve(gomock.Any(), testToken).Return(manager, nil)
		mockAPI.EXPECT().CreateMember(gomock.Any(), library.CreateMemberRequest{
			Name: "HTTP tester member",
			Age:  toPointer(30),
		}).Return(library.Member{ID: newID, Name: "HTTP tester member", Age: toPointer(30)}, nil)

		request := authorized(http.MethodPost, "/members", `{"name":"HTTP tester member","age":30}`)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		var returned libraryhttp.MemberResponse
		is.NoErr(json.NewDecoder(response.Result().Body).Decode(&returned))

		is.True(response.Result().StatusCode == 201)
		is.Equal(returned.ID, newID)
		is.Equal(*returned.Age, 30)
	})

	t.Run("expected blank fields error on an impossible age", func(t *testing.T) {
		is := is.New(t)

		mockAuth.EXPECT().Resolve(gomock.Any(), testToken).Return(manager, nil)

		request := authorized(http.MethodPost, "/members", `{"name":"HTTP tester member","age":200}`)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.True(response.Result().StatusCode == 400)
		is.Equal(string(body), fmt.Sprintln(`{"error_code":105,"error_message":"all the fields - name and age - must be filled correctly. Age must be between 1 and 150."}`))
	})
}

func TestDeleteMember(t *testing.T) {
	server, mockAPI, mockAuth, manager := newTestServer(t)

	t.Run("a member mid loan cannot be deleted", func(t *testing.T) {
		is := is.New(t)

		id := uuid.New()

		mockAuth.EXPECT().Resolve(gomock.Any(), testToken).Return(manager, nil)
		mockAPI.EXPECT().DeleteMember(gomock.Any(), id).Return(fmt.Errorf("deleting member: %w", library.ErrResponseMemberHasActiveLoans))

		request := authorized(http.MethodDelete, "/members/"+id.String(), "")
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.True(response.Result().StatusCode == 422)
		is.Equal(string(body), fmt.Sprintln(`{"error_code":110,"error_message":"cannot delete member. They have active borrowed books. Please ensure all books are returned first."}`))
	})
}

func TestBorrow(t *testing.T) {
	server, mockAPI, mockAuth, manager := newTestServer(t)

	t.Run("issues a book to a member", func(t *testing.T) {
		is := is.New(t)

		bookID := uuid.New()
		memberID := uuid.New()
		entry := fmt.Sprintf(`{"book_id":"%s","member_id":"%s"}`, bookID, memberID)

		mockAuth.EXPECT().Resolve(gomock.Any(), testToken).Return(manager, nil)
		mockAPI.EXPECT().RecordBorrow(gomock.Any(), library.TransactionRequest{BookID: bookID, MemberID: memberID}).Return(library.TransactionResult{
			Transaction: library.Transaction{ID: uuid.New(), BookID: bookID, MemberID: memberID, Kind: library.KindIssue},
			Book:        library.Book{ID: bookID, Title: "Borrowed book", Author: "A", Price: toPointer(float32(1.0)), Stock: toPointer(0), OriginalStock: 1},
		}, nil)

		request := authorized(http.MethodPost, "/transactions/borrow", entry)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		var returned libraryhttp.TransactionResultResponse
		is.NoErr(json.NewDecoder(response.Result().Body).Decode(&returned))

		is.True(response.Result().StatusCode == 201)
		is.Equal(returned.Transaction.Kind, "issue")
		is.Equal(returned.Transaction.BookID, bookID)
		is.Equal(returned.Book.ID, bookID)
		is.Equal(*returned.Book.Stock, 0)
	})

	t.Run("expected out of stock error", func(t *testing.T) {
		is := is.New(t)

		bookID := uuid.New()
		memberID := uuid.New()
		entry := fmt.Sprintf(`{"book_id":"%s","member_id":"%s"}`, bookID, memberID)

		mockAuth.EXPECT().Resolve(gomock.Any(), testToken).Return(manager, nil)
		mockAPI.EXPECT().RecordBorrow(gomock.Any(), gomock.Any()).Return(library.TransactionResult{}, fmt.Errorf("borrowing book: %w", library.ErrResponseBookOutOfStock))

		request := authorized(http.MethodPost, "/transactions/borrow", entry)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.True(response.Result().StatusCode == 422)
		is.Equal(string(body), fmt.Sprintln(`{"error_code":107,"error_message":"book out of stock"}`))
	})

	t.Run("expected blank fields error", func(t *testing.T) {
		is := is.New(t)

		mockAuth.EXPECT().Resolve(gomock.Any(), testToken).Return(manager, nil)

		request := authorized(http.MethodPost, "/transactions/borrow", fmt.Sprintf(`{"book_id":"%s"}`, uuid.New()))
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.True(response.Result().StatusCode == 400)
		is.Equal(string(body), fmt.Sprintln(`{"error_code":111,"error_message":"all the fields - book_id and member_id - must be filled correctly."}`))
	})

	t.Run("borrowing is a manager move", func(t *testing.T) {
		is := is.New(t)

		request, _ := http.NewRequest(http.MethodPost, "/transactions/borrow", strings.NewReader(`{}`))
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		is.True(response.Result().StatusCode == 401)
	})

	t.Run("only POST is served", func(t *testing.T) {
		is := is.New(t)

		request, _ := http.NewRequest(http.MethodGet, "/transactions/borrow", nil)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		is.True(response.Result().StatusCode == 405)
	})
}

func TestReturn(t *testing.T) {
	server, mockAPI, mockAuth, manager := newTestServer(t)

	t.Run("takes a book back from a member", func(t *testing.T) {
		is := is.New(t)

		bookID := uuid.New()
		memberID := uuid.New()
		entry := fmt.Sprintf(`{"book_id":"%s","member_id":"%s"}`, bookID, memberID)

		mockAuth.EXPECT().Resolve(gomock.Any(), testToken).Return(manager, nil)
		mockAPI.EXPECT().RecordReturn(gomock.Any(), library.TransactionRequest{BookID: bookID, MemberID: memberID}).Return(library.TransactionResult{
			Transaction: library.Transaction{ID: uuid.New(), BookID: bookID, MemberID: memberID, Kind: library.KindReturn},
			Book:        library.Book{ID: bookID, Title: "Returned book", Author: "A", Price: toPointer(float32(1.0)), Stock: toPointer(1), OriginalStock: 1},
		}, nil)

		request := authorized(http.MethodPost, "/transactions/return", entry)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		var returned libraryhttp.TransactionResultResponse
		is.NoErr(json.NewDecoder(response.Result().Body).Decode(&returned))

		is.True(response.Result().StatusCode == 200)
		is.Equal(returned.Transaction.Kind, "return")
		is.Equal(*returned.Book.Stock, 1)
	})

	t.Run("expected invalid return error", func(t *testing.T) {
		is := is.New(t)

		entry := fmt.Sprintf(`{"book_id":"%s","member_id":"%s"}`, uuid.New(), uuid.New())

		mockAuth.EXPECT().Resolve(gomock.Any(), testToken).Return(manager, nil)
		mockAPI.EXPECT().RecordReturn(gomock.Any(), gomock.Any()).Return(library.TransactionResult{}, fmt.Errorf("returning book: %w", library.ErrResponseInvalidReturn))

		request := authorized(http.MethodPost, "/transactions/return", entry)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		body, _ := io.ReadAll(response.Result().Body)

		is.True(response.Result().StatusCode == 422)
		is.Equal(string(body), fmt.Sprintln(`{"error_code":108,"error_message":"cannot return this book. The member has not borrowed it or already returned it."}`))
	})

	t.Run("expected stock overflow error", func(t *testing.T) {
		is := is.New(t)

		entry := fmt.Sprintf(`{"book_id":"%s","member_id":"%s"}`, uuid.New(), uuid.New())

		mockAuth.EXPECT().Resolve(gomock.Any(), testToken).Return(manager, nil)
		mockAPI.EXPECT().RecordReturn(gomock.Any(), gomock.Any()).Return(library.TransactionResult{}, fmt.Errorf("returning book: %w", library.ErrResponseStockOverflow))

		request := authorized(http.MethodPost, "/transactions/return", entry)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		is.True(response.Result().StatusCode == 422)
	})
}

func TestListTransactions(t *testing.T) {
	server, mockAPI, _, _ := newTestServer(t)

	t.Run("lists the ledger with titles and names joined in", func(t *testing.T) {
		is := is.New(t)

		created := time.Now().UTC().Round(time.Millisecond)
		stored := []library.Transaction{
			{ID: uuid.New(), BookID: uuid.New(), MemberID: uuid.New(), Kind: library.KindReturn, CreatedAt: created, BookTitle: "A book", MemberName: "A member"},
			{ID: uuid.New(), BookID: uuid.New(), MemberID: uuid.New(), Kind: library.KindIssue, CreatedAt: created.Add(-time.Minute), BookTitle: "A book", MemberName: "A member"},
		}
		mockAPI.EXPECT().ListTransactions(gomock.Any()).Return(stored, nil)

		request, _ := http.NewRequest(http.MethodGet, "/transactions", nil)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		var returned []libraryhttp.TransactionResponse
		is.NoErr(json.NewDecoder(response.Result().Body).Decode(&returned))

		is.True(response.Result().StatusCode == 200)
		is.True(len(returned) == 2)
		is.Equal(returned[0].Kind, "return")
		is.Equal(returned[0].BookTitle, "A book")
		is.Equal(returned[1].MemberName, "A member")
	})
}

func TestActiveBorrowers(t *testing.T) {
	server, mockAPI, _, _ := newTestServer(t)

	t.Run("lists the members still holding the book", func(t *testing.T) {
		is := is.New(t)

		bookID := uuid.New()
		holder := library.Member{ID: uuid.New(), Name: "Holder", Age: toPointer(30)}
		mockAPI.EXPECT().ActiveBorrowersOf(gomock.Any(), bookID).Return([]library.Member{holder}, nil)

		request, _ := http.NewRequest(http.MethodGet, "/books/"+bookID.String()+"/borrowers", nil)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		var returned []libraryhttp.MemberResponse
		is.NoErr(json.NewDecoder(response.Result().Body).Decode(&returned))

		is.True(response.Result().StatusCode == 200)
		is.True(len(returned) == 1)
		is.Equal(returned[0].ID, holder.ID)
	})

	t.Run("a malformed book id is rejected", func(t *testing.T) {
		is := is.New(t)

		request, _ := http.NewRequest(http.MethodGet, "/books/not-an-id/borrowers", nil)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		is.True(response.Result().StatusCode == 400)
	})

	t.Run("expected book not found error", func(t *testing.T) {
		is := is.New(t)

		bookID := uuid.New()
		mockAPI.EXPECT().ActiveBorrowersOf(gomock.Any(), bookID).Return(nil, fmt.Errorf("searching book by ID: %w", library.ErrResponseBookNotFound))

		request, _ := http.NewRequest(http.MethodGet, "/books/"+bookID.String()+"/borrowers", nil)
		response := httptest.NewRecorder()

		server.Handler.ServeHTTP(response, request)

		is.True(response.Result().StatusCode == 404)
	})
}

func toPointer[T any](v T) *T {
	return &v
}
