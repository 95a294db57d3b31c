package handler

import (
	"context"
	"errors"

	"credready/internal/compliance/models"
	"credready/internal/compliance/ports"
	id "credready/pkg/domain"
	dErrors "credready/pkg/domain-errors"
	"credready/pkg/platform/sentinel"
)

// StoreStatusReader adapts the stores to the read side of the status
// endpoint, translating store sentinels to domain errors on the way out.
type StoreStatusReader struct {
	Clinicians ports.ClinicianStore
	Items      ports.ItemStore
}

func (r StoreStatusReader) Get(ctx context.Context, clinicianID id.ClinicianID) (*models.Clinician, error) {
	clinician, err := r.Clinicians.Get(ctx, clinicianID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "clinician not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load clinician")
	}
	return clinician, nil
}

func (r StoreStatusReader) ListItems(ctx context.Context, clinicianID id.ClinicianID) ([]models.ItemWithDefinition, error) {
	items, err := r.Items.ListByClinician(ctx, clinicianID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load checklist items")
	}
	return items, nil
}
