package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"studentpay-server-go/models"
)

var (
	ErrEmailExists          = errors.New("email already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidStudentCode   = errors.New("missing student code")
)

// Repositories groups the three collections served by the API.
type Repositories struct {
	Users         *UserRepository
	Students      *StudentRepository
	Notifications *NotificationRepository
}

// DocumentNames names the backing document of each collection.
type DocumentNames struct {
	Users         string
	Students      string
	Notifications string
}

// NewRepositories binds every collection to its document in store
func NewRepositories(store Store, names DocumentNames, logger *slog.Logger) *Repositories {
	return &Repositories{
		Users:         NewUserRepository(store, names.Users, logger),
		Students:      NewStudentRepository(store, names.Students, logger),
		Notifications: NewNotificationRepository(store, names.Notifications, logger),
	}
}

// EnsureDocuments creates any missing document with its empty default.
func (r *Repositories) EnsureDocuments(ctx context.Context, logger *slog.Logger) error {
	ensurers := []interface {
		Ensure(ctx context.Context) (bool, error)
		Name() string
	}{r.Users, r.Students, r.Notifications}

	for _, e := range ensurers {
		created, err := e.Ensure(ctx)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", e.Name(), err)
		}
		if created {
			logger.Info("created empty document", "document", e.Name())
		}
	}
	return nil
}

// --- Users ---

type UserRepository struct {
	*Collection[[]models.User]
}

func NewUserRepository(store Store, name string, logger *slog.Logger) *UserRepository {
	doc := NewDocument(store, name, func() []models.User { return []models.User{} }, logger)
	return &UserRepository{Collection: NewCollection(doc)}
}

// Create appends user unless the email is already registered
func (r *UserRepository) Create(ctx context.Context, user models.User) error {
	return r.Update(ctx, func(users []models.User) ([]models.User, error) {
		for _, u := range users {
			if u.Email == user.Email {
				return nil, ErrEmailExists
			}
		}
		return append(users, user), nil
	})
}

// Authenticate returns the user whose email and password match exactly
func (r *UserRepository) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	users, err := r.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Email == email && u.Password == password {
			return &u, nil
		}
	}
	return nil, ErrInvalidCredentials
}

// --- Students ---

type StudentRepository struct {
	*Collection[map[string]models.Student]
}

func NewStudentRepository(store Store, name string, logger *slog.Logger) *StudentRepository {
	doc := NewDocument(store, name, func() map[string]models.Student { return map[string]models.Student{} }, logger)
	return &StudentRepository{Collection: NewCollection(doc)}
}

// Get returns the record stored under code, or an empty record if unknown
func (r *StudentRepository) Get(ctx context.Context, code string) (models.Student, error) {
	students, err := r.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	if student, ok := students[code]; ok && student != nil {
		return student, nil
	}
	return models.Student{}, nil
}

// Save stores student under its own code, replacing any previous record
func (r *StudentRepository) Save(ctx context.Context, student models.Student) error {
	return r.SaveMany(ctx, []models.Student{student})
}

// SaveMany upserts every record in a single write. Nothing is written if any
// record lacks a code.
func (r *StudentRepository) SaveMany(ctx context.Context, records []models.Student) error {
	keys := make([]string, len(records))
	for i, s := range records {
		code, ok := s.Code()
		if !ok {
			return ErrInvalidStudentCode
		}
		keys[i] = code
	}

	return r.Update(ctx, func(students map[string]models.Student) (map[string]models.Student, error) {
		for i, s := range records {
			students[keys[i]] = s
		}
		return students, nil
	})
}

// --- Notifications ---

type NotificationRepository struct {
	*Collection[[]models.Notification]
}

func NewNotificationRepository(store Store, name string, logger *slog.Logger) *NotificationRepository {
	doc := NewDocument(store, name, func() []models.Notification { return []models.Notification{} }, logger)
	return &NotificationRepository{Collection: NewCollection(doc)}
}

// List returns the whole inbox in insertion order
func (r *NotificationRepository) List(ctx context.Context) ([]models.Notification, error) {
	return r.LoadAll(ctx)
}

// Append adds n at the end of the inbox and returns its index
func (r *NotificationRepository) Append(ctx context.Context, n models.Notification) (int, error) {
	index := -1
	err := r.Update(ctx, func(notifications []models.Notification) ([]models.Notification, error) {
		index = len(notifications)
		return append(notifications, n), nil
	})
	if err != nil {
		return -1, err
	}
	return index, nil
}

// SetResponse replaces the response of the notification at index
func (r *NotificationRepository) SetResponse(ctx context.Context, index int, response any) (models.Notification, error) {
	return r.mutate(ctx, index, func(n *models.Notification) {
		n.SetResponse(response)
	})
}

// MarkPaid sets paid=true on the notification at index
func (r *NotificationRepository) MarkPaid(ctx context.Context, index int) (models.Notification, error) {
	return r.mutate(ctx, index, func(n *models.Notification) {
		n.MarkPaid()
	})
}

func (r *NotificationRepository) mutate(ctx context.Context, index int, fn func(*models.Notification)) (models.Notification, error) {
	var updated models.Notification
	err := r.Update(ctx, func(notifications []models.Notification) ([]models.Notification, error) {
		if index < 0 || index >= len(notifications) {
			return nil, ErrNotificationNotFound
		}
		fn(&notifications[index])
		updated = notifications[index]
		return notifications, nil
	})
	return updated, err
}
