package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"driveshare/internal/models"
	"driveshare/internal/service"
)

type createCarRequest struct {
	Make        string  `json:"make" binding:"required"`
	Model       string  `json:"model" binding:"required"`
	Year        int     `json:"year" binding:"required"`
	Location    string  `json:"location" binding:"required"`
	PricePerDay float64 `json:"pricePerDay" binding:"required,gt=0"`
}

type updateCarRequest struct {
	Make        *string  `json:"make"`
	Model       *string  `json:"model"`
	Year        *int     `json:"year"`
	Location    *string  `json:"location"`
	PricePerDay *float64 `json:"pricePerDay" binding:"omitempty,gt=0"`
}

type carSearchQuery struct {
	Make     string  `form:"make"`
	Location string  `form:"location"`
	MinPrice float64 `form:"minPrice" binding:"omitempty,gte=0"`
	MaxPrice float64 `form:"maxPrice" binding:"omitempty,gte=0"`
}

type carResponse struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"ownerId"`
	Make           string    `json:"make"`
	Model          string    `json:"model"`
	Year           int       `json:"year"`
	Location       string    `json:"location"`
	PricePerDay    float64   `json:"pricePerDay"`
	ApprovalStatus string    `json:"approvalStatus"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toCarResponse(car models.Car) carResponse {
	return carResponse{
		ID:             car.ID,
		OwnerID:        car.OwnerID,
		Make:           car.Make,
		Model:          car.Model,
		Year:           car.Year,
		Location:       car.Location,
		PricePerDay:    car.PricePerDay,
		ApprovalStatus: string(car.ApprovalStatus),
		CreatedAt:      car.CreatedAt,
	}
}

func toCarList(cars []models.Car) []carResponse {
	items := make([]carResponse, 0, len(cars))
	for _, car := range cars {
		items = append(items, toCarResponse(car))
	}
	return items
}

func (h HandlerSet) CreateCar(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req createCarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	car, err := h.cars.Create(c.Request.Context(), user, service.CreateCarInput{
		Make:        req.Make,
		Model:       req.Model,
		Year:        req.Year,
		Location:    req.Location,
		PricePerDay: req.PricePerDay,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"car": toCarResponse(car)})
}

func (h HandlerSet) MyCars(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	cars, err := h.cars.ListMine(c.Request.Context(), user)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": toCarList(cars)})
}

func (h HandlerSet) UpdateCar(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req updateCarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	car, err := h.cars.Update(c.Request.Context(), user, c.Param("id"), service.UpdateCarInput{
		Make:        req.Make,
		Model:       req.Model,
		Year:        req.Year,
		Location:    req.Location,
		PricePerDay: req.PricePerDay,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"car": toCarResponse(car)})
}

// SearchCars is the public catalogue of approved cars.
func (h HandlerSet) SearchCars(c *gin.Context) {
	var q carSearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	limit, offset := pagination(c)

	cars, err := h.cars.Search(c.Request.Context(), models.CarFilter{
		Make:     q.Make,
		Location: q.Location,
		MinPrice: q.MinPrice,
		MaxPrice: q.MaxPrice,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": toCarList(cars)})
}

// GetCar is public and only shows approved cars.
func (h HandlerSet) GetCar(c *gin.Context) {
	car, err := h.cars.Get(c.Request.Context(), nil, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"car": toCarResponse(car)})
}

func (h HandlerSet) CarAvailability(c *gin.Context) {
	start, err := parseDate("start", c.Query("start"))
	if err != nil {
		badRequest(c, err)
		return
	}
	end, err := parseDate("end", c.Query("end"))
	if err != nil {
		badRequest(c, err)
		return
	}

	avail, err := h.bookings.CheckAvailability(c.Request.Context(), c.Param("id"), start, end)
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := gin.H{"carId": c.Param("id"), "available": avail.Available}
	if avail.Conflict != nil {
		resp["conflict"] = gin.H{
			"startDate": avail.Conflict.Range.Start,
			"endDate":   avail.Conflict.Range.End,
		}
	}
	c.JSON(http.StatusOK, resp)
}
