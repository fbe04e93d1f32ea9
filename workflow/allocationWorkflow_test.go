package workflow

import (
	"context"
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/livestock_backend/models"
	"bitbucket.org/mmdatafocus/livestock_backend/utils"
)

// Role gates reject the wrong actor before anything touches the database.
func TestAllocateDirectRejectsFarmer(t *testing.T) {
	farmer := models.FarmerActor(7, 3)
	batchId := 1
	_, err := AllocateDirect(context.Background(), farmer, &NewDirectAllocation{
		VaccineId: 1,
		FarmId:    1,
		BatchId:   &batchId,
		Quantity:  10,
	})
	if err == nil {
		t.Fatal("farmer AllocateDirect should be forbidden")
	}
	var forbidden *utils.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
}

func TestRequestAllocationRejectsStaff(t *testing.T) {
	for _, actor := range []models.Actor{
		models.OfficerActor(11, []int{1}),
		models.AdminActor(1),
	} {
		_, err := RequestAllocation(context.Background(), actor, &NewAllocationRequest{
			VaccineId: 1,
			FarmId:    1,
			Quantity:  5,
		})
		if err == nil {
			t.Fatalf("%s RequestAllocation should be forbidden", actor.Role)
		}
		var forbidden *utils.ForbiddenError
		if !errors.As(err, &forbidden) {
			t.Fatalf("expected ForbiddenError for %s, got %v", actor.Role, err)
		}
	}
}
