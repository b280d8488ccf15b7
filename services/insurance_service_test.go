package services

import (
	"context"
	"mime/multipart"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kendall-kelly/motorhub-api/models"
)

func TestInsuranceService_PolicyAndClaims(t *testing.T) {
	db := setupTestDB(t)
	attachments := NewMockAttachmentService()
	svc := NewInsuranceService(db, attachments)
	ctx := context.Background()

	holder := createUser(t, db, models.RoleCustomer)
	stranger := createUser(t, db, models.RoleCustomer)
	admin := createUser(t, db, models.RoleAdmin)
	vehicle := createVehicle(t, db, holder.ID, false, "0")

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	in := CreatePolicyInput{
		HolderID:       holder.ID,
		VehicleID:      vehicle.ID,
		Provider:       "Acme Mutual",
		PolicyNumber:   "POL-1",
		CoverageType:   models.CoverageCollision,
		Premium:        dec("300.00"),
		CoverageAmount: dec("5000.00"),
		StartDate:      start,
		EndDate:        start.AddDate(1, 0, 0),
	}

	policy, err := svc.CreatePolicy(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, models.PolicyActive, policy.Status)

	_, err = svc.CreatePolicy(ctx, in)
	assert.ErrorIs(t, err, ErrIllegalTransition, "duplicate policy number")

	bad := in
	bad.PolicyNumber = "POL-2"
	bad.CoverageType = "theft"
	_, err = svc.CreatePolicy(ctx, bad)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	foreign := in
	foreign.PolicyNumber = "POL-3"
	foreign.HolderID = stranger.ID
	_, err = svc.CreatePolicy(ctx, foreign)
	assert.ErrorIs(t, err, ErrForbidden)

	incident := start.AddDate(0, 3, 0)

	_, err = svc.CreateClaim(ctx, CreateClaimInput{PolicyID: policy.ID, ClaimantID: holder.ID, IncidentDate: incident, Description: "Rear-ended", ClaimAmount: dec("5000.01")})
	assert.ErrorIs(t, err, ErrInvalidArgument, "claim above coverage")

	_, err = svc.CreateClaim(ctx, CreateClaimInput{PolicyID: policy.ID, ClaimantID: holder.ID, IncidentDate: start.AddDate(2, 0, 0), Description: "Late", ClaimAmount: dec("10")})
	assert.ErrorIs(t, err, ErrIllegalTransition, "incident outside policy period")

	_, err = svc.CreateClaim(ctx, CreateClaimInput{PolicyID: policy.ID, ClaimantID: stranger.ID, IncidentDate: incident, Description: "Not mine", ClaimAmount: dec("10")})
	assert.ErrorIs(t, err, ErrForbidden)

	claim, err := svc.CreateClaim(ctx, CreateClaimInput{
		PolicyID:     policy.ID,
		ClaimantID:   holder.ID,
		IncidentDate: incident,
		Description:  "Rear-ended at a light",
		ClaimAmount:  dec("5000.00"),
		Attachments:  []*multipart.FileHeader{createFileHeader(t, "damage.jpg", []byte("jpeg"))},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ClaimSubmitted, claim.Status)
	require.Len(t, claim.Attachments, 1)
	assert.NotEmpty(t, claim.Attachments[0].URL)

	_, err = svc.UpdateClaimStatus(ctx, claim.ID, models.ClaimPaid, nil)
	assert.ErrorIs(t, err, ErrIllegalTransition, "only approved claims can be paid")

	approved, err := svc.UpdateClaimStatus(ctx, claim.ID, models.ClaimApproved, strPtr("photos check out"))
	require.NoError(t, err)
	assert.Equal(t, models.ClaimApproved, approved.Status)

	paid, err := svc.UpdateClaimStatus(ctx, claim.ID, models.ClaimPaid, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimPaid, paid.Status)

	_, err = svc.UpdateClaimStatus(ctx, claim.ID, models.ClaimUnderReview, nil)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, err = svc.CancelPolicy(ctx, &stranger, policy.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	cancelled, err := svc.CancelPolicy(ctx, &admin, policy.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PolicyCancelled, cancelled.Status)

	_, err = svc.CancelPolicy(ctx, &holder, policy.ID)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, err = svc.CreateClaim(ctx, CreateClaimInput{PolicyID: policy.ID, ClaimantID: holder.ID, IncidentDate: incident, Description: "Again", ClaimAmount: dec("1")})
	assert.ErrorIs(t, err, ErrIllegalTransition, "cancelled policies take no claims")
}
