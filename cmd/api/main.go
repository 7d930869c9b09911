package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/library-service/cmd/api/auth"
	"github.com/library-service/cmd/api/database"
	libraryhttp "github.com/library-service/cmd/api/http"
	"github.com/library-service/cmd/api/inmemory"
	"github.com/library-service/cmd/api/library"
	"github.com/library-service/cmd/api/notifications"

	_ "github.com/lib/pq"
)

func main() {
	err := run()
	if err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func run() error {
	//load a local .env if there is one, real env vars win:
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded:", err)
	}

	var repo library.Repository

	if os.Getenv("USE_INMEMORY_DB") == "true" {
		memStore, err := inmemory.NewInMemoryStore()
		if err != nil {
			return fmt.Errorf("creating in-memory store: %w", err)
		}
		err = seedInMemory(memStore)
		if err != nil {
			return fmt.Errorf("seeding in-memory store: %w", err)
		}
		repo = memStore
	} else {
		//connect to db:
		connStr := os.Getenv("DATABASE_URL")
		dbObject, err := database.ConnectDb(connStr)
		if err != nil {
			return fmt.Errorf("connecting with db: %w", err)
		}

		defer dbObject.Close()

		//apply migrations:
		store := database.NewStore(dbObject)
		path := os.Getenv("DATABASE_MIGRATIONS_PATH")
		err = database.MigrationUp(store, path)
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrating: %w", err)
		}
		repo = store
	}

	//make sure the default manager account exists:
	err := ensureManager(context.Background(), repo)
	if err != nil {
		return err
	}

	//notifications setup:
	enableNotifications := os.Getenv("NOTIFICATIONS_ENABLED") == "true"
	notificationsBaseURL := os.Getenv("NOTIFICATIONS_BASE_URL")
	notificationsTimeout := 5 * time.Second
	if timeoutStr := os.Getenv("NOTIFICATIONS_TIMEOUT"); timeoutStr != "" {
		parsed, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return fmt.Errorf("getting notifications timeout from env: %w", err)
		}
		notificationsTimeout = parsed
	}
	ntfy := notifications.NewNtfy(enableNotifications, notificationsTimeout, notificationsBaseURL)

	libraryService := library.NewService(repo, ntfy, notificationsTimeout)
	authService := auth.NewService(repo)
	libraryHandler := libraryhttp.NewLibraryHandler(libraryService, authService)

	if reqTimeoutStr := os.Getenv("HTTP_REQUEST_TIMEOUT"); reqTimeoutStr != "" { //This ENV must be written with a unit suffix, like seconds
		parsed, err := time.ParseDuration(reqTimeoutStr)
		if err != nil {
			return fmt.Errorf("getting request timeout from env: %w", err)
		}
		libraryhttp.RequestTimeout = parsed
	}

	port := 8080
	if portStr := os.Getenv("HTTP_PORT"); portStr != "" {
		parsed, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("getting http port from env: %w", err)
		}
		port = parsed
	}

	//create and init http server:
	server := libraryhttp.NewServer(libraryhttp.ServerConfig{Port: port}, libraryHandler)

	go func() (err error) {
		err = server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("unexpected http server error: %w", err)
		}
		return nil
	}()

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
	<-sc

	ctx, shutdownRelease := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownRelease()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP shutdown error: %w", err)
	}
	log.Println("Graceful shutdown complete.")
	return nil
}

/* Creates the default manager account on first start. The password hash is
computed here so no credentials live inside the sql migrations. */
func ensureManager(ctx context.Context, repo library.Repository) error {
	_, err := repo.GetMemberByEmail(ctx, "manager@library.com")
	if err == nil {
		return nil
	}
	if !errors.Is(err, library.ErrResponseMemberNotFound) {
		return fmt.Errorf("checking manager account: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("manager123"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing manager password: %w", err)
	}

	_, err = repo.CreateMember(ctx, library.Member{
		ID:           uuid.New(),
		Name:         "Library Manager",
		Email:        "manager@library.com",
		IsManager:    true,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC().Round(time.Millisecond),
	})
	if err != nil {
		return fmt.Errorf("seeding manager: %w", err)
	}
	return nil
}

/* Puts the same starter categories the sql migrations seed into the in-memory store. */
func seedInMemory(store *inmemory.InMemoryStore) error {
	ctx := context.Background()

	for _, name := range []string{"Fiction", "Science", "History", "Technology", "Business"} {
		_, err := store.CreateCategory(ctx, library.Category{ID: uuid.New(), Name: name})
		if err != nil {
			return fmt.Errorf("seeding category %q: %w", name, err)
		}
	}

	return nil
}
