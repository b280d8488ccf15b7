package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kendall-kelly/motorhub-api/logger"
	"github.com/kendall-kelly/motorhub-api/models"
)

// CreatePolicyInput holds the fields of a new insurance policy
type CreatePolicyInput struct {
	HolderID       uuid.UUID
	VehicleID      uuid.UUID
	Provider       string
	PolicyNumber   string
	CoverageType   models.CoverageType
	Premium        decimal.Decimal
	CoverageAmount decimal.Decimal
	StartDate      time.Time
	EndDate        time.Time
}

// CreateClaimInput holds the fields of a new claim
type CreateClaimInput struct {
	PolicyID     uuid.UUID
	ClaimantID   uuid.UUID
	IncidentDate time.Time
	Description  string
	ClaimAmount  decimal.Decimal
	Attachments  []*multipart.FileHeader
}

// InsuranceService manages policies and the claims filed against them
type InsuranceService struct {
	db          *gorm.DB
	attachments AttachmentService
	log         *zap.Logger
}

// NewInsuranceService creates an insurance service
func NewInsuranceService(db *gorm.DB, attachments AttachmentService) *InsuranceService {
	if attachments == nil {
		attachments = GetAttachmentService()
	}
	return &InsuranceService{db: db, attachments: attachments, log: logger.L().Named("insurance")}
}

// CreatePolicy insures one of the holder's vehicles
func (s *InsuranceService) CreatePolicy(ctx context.Context, in CreatePolicyInput) (*models.InsurancePolicy, error) {
	switch {
	case strings.TrimSpace(in.Provider) == "":
		return nil, invalidArgument("VALIDATION_ERROR", "provider is required")
	case strings.TrimSpace(in.PolicyNumber) == "":
		return nil, invalidArgument("VALIDATION_ERROR", "policy_number is required")
	case !in.CoverageType.Valid():
		return nil, invalidArgument("INVALID_COVERAGE_TYPE", "unknown coverage type %q", in.CoverageType)
	case in.Premium.IsNegative() || !in.CoverageAmount.IsPositive():
		return nil, invalidArgument("INVALID_AMOUNT", "premium must not be negative and coverage_amount must be positive")
	case !in.EndDate.After(in.StartDate):
		return nil, invalidArgument("INVALID_DATE_RANGE", "end_date must be after start_date")
	}

	var vehicle models.Vehicle
	if err := s.db.WithContext(ctx).First(&vehicle, "id = ?", in.VehicleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("VEHICLE_NOT_FOUND", "vehicle %s not found", in.VehicleID)
		}
		return nil, fmt.Errorf("failed to load vehicle: %w", err)
	}
	if vehicle.OwnerID != in.HolderID {
		return nil, forbidden("only the vehicle owner can insure it")
	}

	policy := models.InsurancePolicy{
		HolderID:       in.HolderID,
		VehicleID:      vehicle.ID,
		Provider:       strings.TrimSpace(in.Provider),
		PolicyNumber:   strings.TrimSpace(in.PolicyNumber),
		CoverageType:   in.CoverageType,
		Premium:        in.Premium,
		CoverageAmount: in.CoverageAmount,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		Status:         models.PolicyActive,
	}
	if err := s.db.WithContext(ctx).Create(&policy).Error; err != nil {
		if IsUniqueViolation(err) {
			return nil, illegalTransition("POLICY_EXISTS", "policy number %s already exists", policy.PolicyNumber)
		}
		return nil, fmt.Errorf("failed to create policy: %w", err)
	}
	return s.GetPolicy(ctx, policy.ID)
}

// GetPolicy loads a policy with its vehicle
func (s *InsuranceService) GetPolicy(ctx context.Context, id uuid.UUID) (*models.InsurancePolicy, error) {
	var policy models.InsurancePolicy
	if err := s.db.WithContext(ctx).Preload("Vehicle").First(&policy, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("POLICY_NOT_FOUND", "policy %s not found", id)
		}
		return nil, fmt.Errorf("failed to load policy: %w", err)
	}
	return &policy, nil
}

// CancelPolicy cancels an active policy
func (s *InsuranceService) CancelPolicy(ctx context.Context, actor *models.User, id uuid.UUID) (*models.InsurancePolicy, error) {
	policy, err := s.GetPolicy(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && policy.HolderID != actor.ID {
		return nil, forbidden("only the policy holder or an admin can cancel this policy")
	}
	if policy.Status != models.PolicyActive {
		return nil, illegalTransition("POLICY_NOT_ACTIVE", "policy is already %s", policy.Status)
	}

	res := s.db.WithContext(ctx).Model(&models.InsurancePolicy{}).
		Where("id = ? AND status = ?", id, models.PolicyActive).
		Update("status", models.PolicyCancelled)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to cancel policy: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, illegalTransition(ErrStatusConflict.Code, "policy %s changed status concurrently", id)
	}
	return s.GetPolicy(ctx, id)
}

// CreateClaim files a claim against a policy that was in force on the
// incident date. The claim amount may not exceed the coverage amount.
func (s *InsuranceService) CreateClaim(ctx context.Context, in CreateClaimInput) (*models.InsuranceClaim, error) {
	if strings.TrimSpace(in.Description) == "" {
		return nil, invalidArgument("VALIDATION_ERROR", "description is required")
	}
	if !in.ClaimAmount.IsPositive() {
		return nil, invalidArgument("INVALID_AMOUNT", "claim_amount must be positive")
	}

	policy, err := s.GetPolicy(ctx, in.PolicyID)
	if err != nil {
		return nil, err
	}
	if policy.HolderID != in.ClaimantID {
		return nil, forbidden("only the policy holder can file a claim")
	}
	if !policy.ActiveAt(in.IncidentDate) {
		return nil, illegalTransition("POLICY_NOT_ACTIVE", "policy was not active on the incident date")
	}
	if in.ClaimAmount.GreaterThan(policy.CoverageAmount) {
		return nil, invalidArgument("CLAIM_EXCEEDS_COVERAGE", "claim amount %s exceeds coverage %s",
			in.ClaimAmount.StringFixed(2), policy.CoverageAmount.StringFixed(2))
	}

	attachments := make([]models.ClaimAttachment, 0, len(in.Attachments))
	for _, fh := range in.Attachments {
		key, err := s.attachments.Upload(ctx, fh, FolderClaims)
		if err != nil {
			s.discard(ctx, attachments)
			return nil, err
		}
		attachments = append(attachments, models.ClaimAttachment{Key: key, Filename: fh.Filename})
	}

	claim := models.InsuranceClaim{
		PolicyID:     policy.ID,
		ClaimantID:   in.ClaimantID,
		IncidentDate: in.IncidentDate,
		Description:  strings.TrimSpace(in.Description),
		ClaimAmount:  in.ClaimAmount,
		Status:       models.ClaimSubmitted,
		Attachments:  attachments,
	}
	if err := s.db.WithContext(ctx).Create(&claim).Error; err != nil {
		s.discard(ctx, attachments)
		return nil, fmt.Errorf("failed to create claim: %w", err)
	}

	s.log.Info("claim submitted",
		zap.String("claim_id", claim.ID.String()),
		zap.String("policy_id", policy.ID.String()),
		zap.String("amount", claim.ClaimAmount.StringFixed(2)))
	return s.GetClaim(ctx, claim.ID)
}

// GetClaim loads a claim with its policy and attachments
func (s *InsuranceService) GetClaim(ctx context.Context, id uuid.UUID) (*models.InsuranceClaim, error) {
	var claim models.InsuranceClaim
	if err := s.db.WithContext(ctx).Preload("Policy").Preload("Attachments").First(&claim, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("CLAIM_NOT_FOUND", "claim %s not found", id)
		}
		return nil, fmt.Errorf("failed to load claim: %w", err)
	}
	for i := range claim.Attachments {
		url, err := s.attachments.URL(ctx, claim.Attachments[i].Key)
		if err != nil {
			s.log.Warn("failed to resolve claim attachment url", zap.String("key", claim.Attachments[i].Key), zap.Error(err))
			continue
		}
		claim.Attachments[i].URL = url
	}
	return &claim, nil
}

// UpdateClaimStatus records a review decision. Paid and rejected claims are final.
func (s *InsuranceService) UpdateClaimStatus(ctx context.Context, id uuid.UUID, status models.ClaimStatus, remarks *string) (*models.InsuranceClaim, error) {
	if !status.Valid() {
		return nil, invalidArgument("INVALID_STATUS", "unknown claim status %q", status)
	}

	claim, err := s.GetClaim(ctx, id)
	if err != nil {
		return nil, err
	}
	if claim.Status == models.ClaimPaid || claim.Status == models.ClaimRejected {
		return nil, illegalTransition("CLAIM_CLOSED", "claim is already %s", claim.Status)
	}
	if status == models.ClaimPaid && claim.Status != models.ClaimApproved {
		return nil, illegalTransition("CLAIM_NOT_APPROVED", "only approved claims can be paid")
	}

	updates := map[string]interface{}{"status": status}
	if remarks != nil {
		updates["remarks"] = *remarks
	}
	res := s.db.WithContext(ctx).Model(&models.InsuranceClaim{}).
		Where("id = ? AND status = ?", id, claim.Status).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update claim: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, illegalTransition(ErrStatusConflict.Code, "claim %s changed status concurrently", id)
	}
	return s.GetClaim(ctx, id)
}

func (s *InsuranceService) discard(ctx context.Context, attachments []models.ClaimAttachment) {
	for _, a := range attachments {
		if err := s.attachments.Delete(ctx, a.Key); err != nil {
			s.log.Warn("failed to discard claim attachment", zap.String("key", a.Key), zap.Error(err))
		}
	}
}
