package service

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"driveshare/internal/models"
	"driveshare/internal/repository"
)

// memoryUsers implements UserStore and VerificationStore.
type memoryUsers struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newMemoryUsers(users ...models.User) *memoryUsers {
	m := &memoryUsers{users: make(map[string]models.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memoryUsers) Create(_ context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (m *memoryUsers) GetByID(_ context.Context, id string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (m *memoryUsers) UpdateProfile(_ context.Context, id, fullName, phoneNumber string) (models.User, error) {
	return m.update(id, func(u *models.User) {
		u.FullName = fullName
		u.PhoneNumber = phoneNumber
	})
}

func (m *memoryUsers) SetLicenseDocument(_ context.Context, id string, objectKey string) (models.User, error) {
	return m.update(id, func(u *models.User) {
		u.LicenseObjectKey = &objectKey
		u.VerificationStatus = models.VerificationPending
	})
}

func (m *memoryUsers) ListByVerificationStatus(_ context.Context, status models.VerificationStatus, _, _ int) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, u := range m.users {
		if u.VerificationStatus == status && u.Role != models.UserRoleAdmin {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memoryUsers) UpdateVerificationStatus(_ context.Context, id string, status models.VerificationStatus) (models.User, error) {
	return m.update(id, func(u *models.User) { u.VerificationStatus = status })
}

func (m *memoryUsers) update(id string, fn func(*models.User)) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	fn(&u)
	m.users[id] = u
	return u, nil
}

type memorySessions struct {
	mu       sync.Mutex
	sessions map[string]models.Session
	trimmed  []int
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: make(map[string]models.Session)}
}

func (m *memorySessions) Upsert(_ context.Context, session models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.UserID == session.UserID && s.DeviceID == session.DeviceID {
			delete(m.sessions, id)
		}
	}
	m.sessions[session.ID] = session
	return nil
}

func (m *memorySessions) Trim(_ context.Context, _ string, keepLatest int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trimmed = append(m.trimmed, keepLatest)
	return nil
}

func (m *memorySessions) FindByRefreshHash(_ context.Context, userID string, refreshHash []byte) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.UserID == userID && bytes.Equal(s.RefreshTokenHash, refreshHash) {
			return s, nil
		}
	}
	return models.Session{}, repository.ErrSessionNotFound
}

func (m *memorySessions) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memorySessions) DeleteByDevice(_ context.Context, userID string, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.UserID == userID && s.DeviceID == deviceID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *memorySessions) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

type documentStoreMock struct {
	PutDocumentFunc func(ctx context.Context, key string, data []byte, contentType string) error
	DocumentURLFunc func(ctx context.Context, key string, ttl time.Duration) (string, error)
}

func (m documentStoreMock) PutDocument(ctx context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return m.PutDocumentFunc(ctx, key, data, contentType)
}

func (m documentStoreMock) DocumentURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return m.DocumentURLFunc(ctx, key, ttl)
}

type carStoreMock struct {
	CreateFunc               func(ctx context.Context, car models.Car) (models.Car, error)
	GetCarFunc               func(ctx context.Context, id string) (models.Car, error)
	ListByOwnerFunc          func(ctx context.Context, ownerID string) ([]models.Car, error)
	ListByApprovalStatusFunc func(ctx context.Context, status models.CarApprovalStatus, limit, offset int) ([]models.Car, error)
	UpdateApprovalStatusFunc func(ctx context.Context, id string, status models.CarApprovalStatus) (models.Car, error)
	ListApprovedFunc         func(ctx context.Context, filter models.CarFilter) ([]models.Car, error)
	UpdateFunc               func(ctx context.Context, car models.Car) (models.Car, error)
}

func (m carStoreMock) Create(ctx context.Context, car models.Car) (models.Car, error) {
	return m.CreateFunc(ctx, car)
}

func (m carStoreMock) GetCar(ctx context.Context, id string) (models.Car, error) {
	return m.GetCarFunc(ctx, id)
}

func (m carStoreMock) ListByOwner(ctx context.Context, ownerID string) ([]models.Car, error) {
	return m.ListByOwnerFunc(ctx, ownerID)
}

func (m carStoreMock) ListByApprovalStatus(ctx context.Context, status models.CarApprovalStatus, limit, offset int) ([]models.Car, error) {
	return m.ListByApprovalStatusFunc(ctx, status, limit, offset)
}

func (m carStoreMock) UpdateApprovalStatus(ctx context.Context, id string, status models.CarApprovalStatus) (models.Car, error) {
	return m.UpdateApprovalStatusFunc(ctx, id, status)
}

func (m carStoreMock) ListApproved(ctx context.Context, filter models.CarFilter) ([]models.Car, error) {
	return m.ListApprovedFunc(ctx, filter)
}

func (m carStoreMock) Update(ctx context.Context, car models.Car) (models.Car, error) {
	return m.UpdateFunc(ctx, car)
}
