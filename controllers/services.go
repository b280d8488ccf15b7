package controllers

import (
	"sync"

	"gorm.io/gorm"

	"github.com/kendall-kelly/motorhub-api/config"
	"github.com/kendall-kelly/motorhub-api/services"
)

// serviceSet holds the services shared by every request
type serviceSet struct {
	orders    *services.OrderService
	payments  *services.PaymentService
	parts     *services.PartService
	rentals   *services.RentalService
	insurance *services.InsuranceService
}

var (
	servicesMu sync.RWMutex
	shared     *serviceSet
)

// InitServices builds the request services once against db and the
// collaborators installed in the services package. Passing nil drops them,
// after which handlers build a service per request from config.GetDB().
func InitServices(db *gorm.DB) {
	servicesMu.Lock()
	defer servicesMu.Unlock()

	if db == nil {
		shared = nil
		return
	}
	cache := services.GetPartCache()
	shared = &serviceSet{
		orders:    services.NewOrderService(db, nil, cache, nil),
		payments:  services.NewPaymentService(db, nil, nil, nil),
		parts:     services.NewPartService(db, cache, nil),
		rentals:   services.NewRentalService(db),
		insurance: services.NewInsuranceService(db, nil),
	}
}

func sharedServices() *serviceSet {
	servicesMu.RLock()
	defer servicesMu.RUnlock()
	return shared
}

func orderService() *services.OrderService {
	if s := sharedServices(); s != nil {
		return s.orders
	}
	return services.NewOrderService(config.GetDB(), nil, services.GetPartCache(), nil)
}

func paymentService() *services.PaymentService {
	if s := sharedServices(); s != nil {
		return s.payments
	}
	return services.NewPaymentService(config.GetDB(), nil, nil, nil)
}

func partService() *services.PartService {
	if s := sharedServices(); s != nil {
		return s.parts
	}
	return services.NewPartService(config.GetDB(), services.GetPartCache(), nil)
}

func rentalService() *services.RentalService {
	if s := sharedServices(); s != nil {
		return s.rentals
	}
	return services.NewRentalService(config.GetDB())
}

func insuranceService() *services.InsuranceService {
	if s := sharedServices(); s != nil {
		return s.insurance
	}
	return services.NewInsuranceService(config.GetDB(), nil)
}
