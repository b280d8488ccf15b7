package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kendall-kelly/motorhub-api/logger"
	"github.com/kendall-kelly/motorhub-api/models"
)

// CreateBookingInput is a request to rent a vehicle
type CreateBookingInput struct {
	CustomerID uuid.UUID
	VehicleID  uuid.UUID
	StartDate  time.Time
	EndDate    time.Time
}

// RentalService books rentable vehicles
type RentalService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewRentalService creates a rental service
func NewRentalService(db *gorm.DB) *RentalService {
	return &RentalService{db: db, log: logger.L().Named("rentals")}
}

// CreateBooking reserves a vehicle. The total is the vehicle's daily rate
// times the billable days, fixed at booking time.
func (s *RentalService) CreateBooking(ctx context.Context, in CreateBookingInput) (*models.RentalBooking, error) {
	if !in.EndDate.After(in.StartDate) {
		return nil, invalidArgument("INVALID_DATE_RANGE", "end_date must be after start_date")
	}

	var booking models.RentalBooking
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var vehicle models.Vehicle
		if err := tx.First(&vehicle, "id = ?", in.VehicleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("VEHICLE_NOT_FOUND", "vehicle %s not found", in.VehicleID)
			}
			return fmt.Errorf("failed to load vehicle: %w", err)
		}
		if !vehicle.Rentable {
			return invalidArgument("VEHICLE_NOT_RENTABLE", "vehicle %s is not available for rent", vehicle.ID)
		}

		var overlapping int64
		if err := tx.Model(&models.RentalBooking{}).
			Where("vehicle_id = ? AND status IN ? AND start_date < ? AND end_date > ?",
				vehicle.ID,
				[]models.RentalStatus{models.RentalPending, models.RentalConfirmed, models.RentalActive},
				in.EndDate, in.StartDate).
			Count(&overlapping).Error; err != nil {
			return fmt.Errorf("failed to check overlapping bookings: %w", err)
		}
		if overlapping > 0 {
			return illegalTransition("VEHICLE_UNAVAILABLE", "vehicle %s is already booked for these dates", vehicle.ID)
		}

		booking = models.RentalBooking{
			CustomerID:    in.CustomerID,
			VehicleID:     vehicle.ID,
			StartDate:     in.StartDate,
			EndDate:       in.EndDate,
			DailyRate:     vehicle.DailyRate,
			TotalAmount:   models.RentalTotal(vehicle.DailyRate, in.StartDate, in.EndDate),
			Status:        models.RentalPending,
			PaymentStatus: models.PaymentUnpaid,
		}
		if err := tx.Create(&booking).Error; err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("rental booked",
		zap.String("booking_id", booking.ID.String()),
		zap.String("vehicle_id", booking.VehicleID.String()),
		zap.String("total", booking.TotalAmount.StringFixed(2)))
	return s.GetBooking(ctx, booking.ID)
}

// GetBooking loads a booking with its vehicle
func (s *RentalService) GetBooking(ctx context.Context, id uuid.UUID) (*models.RentalBooking, error) {
	var booking models.RentalBooking
	if err := s.db.WithContext(ctx).Preload("Vehicle").First(&booking, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("BOOKING_NOT_FOUND", "booking %s not found", id)
		}
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	return &booking, nil
}

// UpdateBookingStatus sets a booking's status. Completed and cancelled
// bookings are final.
func (s *RentalService) UpdateBookingStatus(ctx context.Context, id uuid.UUID, status models.RentalStatus) (*models.RentalBooking, error) {
	if !status.Valid() {
		return nil, invalidArgument("INVALID_STATUS", "unknown rental status %q", status)
	}

	booking, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status == models.RentalCompleted || booking.Status == models.RentalCancelled {
		return nil, illegalTransition("BOOKING_CLOSED", "booking is already %s", booking.Status)
	}

	res := s.db.WithContext(ctx).Model(&models.RentalBooking{}).
		Where("id = ? AND status = ?", id, booking.Status).
		Update("status", status)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update booking: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, illegalTransition(ErrStatusConflict.Code, "booking %s changed status concurrently", id)
	}
	return s.GetBooking(ctx, id)
}
