package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"driveshare/internal/ids"
	"driveshare/internal/models"
	"driveshare/internal/repository"
)

type CarStore interface {
	Create(ctx context.Context, car models.Car) (models.Car, error)
	GetCar(ctx context.Context, id string) (models.Car, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Car, error)
	ListByApprovalStatus(ctx context.Context, status models.CarApprovalStatus, limit, offset int) ([]models.Car, error)
	UpdateApprovalStatus(ctx context.Context, id string, status models.CarApprovalStatus) (models.Car, error)
	ListApproved(ctx context.Context, filter models.CarFilter) ([]models.Car, error)
	Update(ctx context.Context, car models.Car) (models.Car, error)
}

const maxSearchLimit = 100

// CarService is the listing side of the catalogue. New cars wait for an
// administrator before they can be booked.
type CarService struct {
	cars CarStore
	log  zerolog.Logger
	now  func() time.Time
}

func NewCarService(cars CarStore, log zerolog.Logger) *CarService {
	return &CarService{
		cars: cars,
		log:  log.With().Str("component", "cars").Logger(),
		now:  time.Now,
	}
}

type CreateCarInput struct {
	Make        string
	Model       string
	Year        int
	Location    string
	PricePerDay float64
}

func (s *CarService) Create(ctx context.Context, owner models.User, input CreateCarInput) (models.Car, error) {
	if owner.Role != models.UserRoleOwner && owner.Role != models.UserRoleAdmin {
		return models.Car{}, fmt.Errorf("%w: only owners can list cars", ErrForbidden)
	}

	car := models.Car{
		ID:             ids.New(),
		OwnerID:        owner.ID,
		Make:           input.Make,
		Model:          input.Model,
		Year:           input.Year,
		Location:       input.Location,
		PricePerDay:    input.PricePerDay,
		ApprovalStatus: models.CarPending,
	}
	if err := s.normalize(&car); err != nil {
		return models.Car{}, err
	}

	car, err := s.cars.Create(ctx, car)
	if err != nil {
		return models.Car{}, err
	}
	s.log.Info().Str("car_id", car.ID).Str("owner_id", owner.ID).Msg("car listed")
	return car, nil
}

// Get hides cars that are not approved from everyone but their owner and
// administrators.
func (s *CarService) Get(ctx context.Context, viewer *models.User, id string) (models.Car, error) {
	car, err := s.cars.GetCar(ctx, id)
	if err != nil {
		return models.Car{}, err
	}
	if car.ApprovalStatus == models.CarApproved {
		return car, nil
	}
	if viewer != nil && (viewer.ID == car.OwnerID || viewer.Role == models.UserRoleAdmin) {
		return car, nil
	}
	return models.Car{}, repository.ErrCarNotFound
}

func (s *CarService) ListMine(ctx context.Context, owner models.User) ([]models.Car, error) {
	return s.cars.ListByOwner(ctx, owner.ID)
}

func (s *CarService) Pending(ctx context.Context, limit, offset int) ([]models.Car, error) {
	return s.cars.ListByApprovalStatus(ctx, models.CarPending, limit, offset)
}

func (s *CarService) Review(ctx context.Context, id string, status models.CarApprovalStatus) (models.Car, error) {
	if status != models.CarApproved && status != models.CarRejected {
		return models.Car{}, fmt.Errorf("%w: status must be APPROVED or REJECTED", ErrInvalidInput)
	}
	car, err := s.cars.UpdateApprovalStatus(ctx, id, status)
	if err != nil {
		return models.Car{}, err
	}
	s.log.Info().Str("car_id", car.ID).Str("status", string(status)).Msg("car reviewed")
	return car, nil
}

// Search lists approved cars for the public catalogue.
func (s *CarService) Search(ctx context.Context, filter models.CarFilter) ([]models.Car, error) {
	filter.Make = strings.TrimSpace(filter.Make)
	filter.Location = strings.TrimSpace(filter.Location)

	switch {
	case filter.MinPrice < 0 || filter.MaxPrice < 0:
		return nil, fmt.Errorf("%w: prices cannot be negative", ErrInvalidInput)
	case filter.MaxPrice > 0 && filter.MinPrice > filter.MaxPrice:
		return nil, fmt.Errorf("%w: minimum price exceeds maximum price", ErrInvalidInput)
	}
	if filter.Limit <= 0 || filter.Limit > maxSearchLimit {
		filter.Limit = maxSearchLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.cars.ListApproved(ctx, filter)
}

type UpdateCarInput struct {
	Make        *string
	Model       *string
	Year        *int
	Location    *string
	PricePerDay *float64
}

// Update edits a listing on behalf of its owner or an administrator. Prices
// of existing bookings are fixed at creation and are not affected.
func (s *CarService) Update(ctx context.Context, editor models.User, id string, input UpdateCarInput) (models.Car, error) {
	car, err := s.cars.GetCar(ctx, id)
	if err != nil {
		return models.Car{}, err
	}
	if editor.ID != car.OwnerID && editor.Role != models.UserRoleAdmin {
		return models.Car{}, fmt.Errorf("%w: only the owner can edit this car", ErrForbidden)
	}

	if input.Make != nil {
		car.Make = *input.Make
	}
	if input.Model != nil {
		car.Model = *input.Model
	}
	if input.Year != nil {
		car.Year = *input.Year
	}
	if input.Location != nil {
		car.Location = *input.Location
	}
	if input.PricePerDay != nil {
		car.PricePerDay = *input.PricePerDay
	}
	if err := s.normalize(&car); err != nil {
		return models.Car{}, err
	}

	updated, err := s.cars.Update(ctx, car)
	if err != nil {
		return models.Car{}, err
	}
	s.log.Info().Str("car_id", updated.ID).Str("editor_id", editor.ID).Msg("car updated")
	return updated, nil
}

func (s *CarService) normalize(car *models.Car) error {
	car.Make = strings.TrimSpace(car.Make)
	car.Model = strings.TrimSpace(car.Model)
	car.Location = strings.TrimSpace(car.Location)
	maxYear := s.now().Year() + 1

	switch {
	case car.Make == "" || car.Model == "":
		return fmt.Errorf("%w: make and model are required", ErrInvalidInput)
	case car.Location == "":
		return fmt.Errorf("%w: location is required", ErrInvalidInput)
	case car.Year < 1950 || car.Year > maxYear:
		return fmt.Errorf("%w: year must be between 1950 and %d", ErrInvalidInput, maxYear)
	case car.PricePerDay <= 0 || math.IsNaN(car.PricePerDay) || math.IsInf(car.PricePerDay, 0):
		return fmt.Errorf("%w: price per day must be positive", ErrInvalidInput)
	}
	car.PricePerDay = math.Round(car.PricePerDay*100) / 100
	return nil
}
