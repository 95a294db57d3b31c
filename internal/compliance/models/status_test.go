package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItemStatusTransitions(t *testing.T) {
	cases := []struct {
		from    ItemStatus
		to      ItemStatus
		allowed bool
	}{
		{ItemNotStarted, ItemSubmitted, true},
		{ItemNotStarted, ItemApproved, true}, // auto-approving types
		{ItemNotStarted, ItemRejected, false},
		{ItemNotStarted, ItemExpired, false},

		{ItemSubmitted, ItemApproved, true},
		{ItemSubmitted, ItemRejected, true},
		{ItemSubmitted, ItemExpired, false},
		{ItemSubmitted, ItemNotStarted, false},

		{ItemPendingReview, ItemApproved, true},
		{ItemPendingReview, ItemRejected, true},
		{ItemPendingReview, ItemSubmitted, false},

		{ItemApproved, ItemExpired, true},
		{ItemApproved, ItemSubmitted, false},
		{ItemApproved, ItemRejected, false},

		{ItemRejected, ItemSubmitted, true},
		{ItemRejected, ItemApproved, true},
		{ItemRejected, ItemExpired, false},

		// expired is terminal
		{ItemExpired, ItemSubmitted, false},
		{ItemExpired, ItemApproved, false},
		{ItemExpired, ItemNotStarted, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestItemStatusReviewable(t *testing.T) {
	assert.True(t, ItemSubmitted.Reviewable())
	assert.True(t, ItemPendingReview.Reviewable())

	assert.False(t, ItemNotStarted.Reviewable())
	assert.False(t, ItemApproved.Reviewable())
	assert.False(t, ItemRejected.Reviewable())
	assert.False(t, ItemExpired.Reviewable())
}

func TestItemTypeAutoApproves(t *testing.T) {
	assert.True(t, TypeESignature.AutoApproves())
	assert.True(t, TypeAdminStatus.AutoApproves())

	assert.False(t, TypeFileUpload.AutoApproves())
	assert.False(t, TypeText.AutoApproves())
	assert.False(t, TypeDate.AutoApproves())
	assert.False(t, TypeSelect.AutoApproves())
}

func TestClinicianStatusIsOverridable(t *testing.T) {
	assert.True(t, ClinicianReady.IsOverridable())
	assert.True(t, ClinicianNotReady.IsOverridable())

	assert.False(t, ClinicianOnboarding.IsOverridable())
	assert.False(t, ClinicianInactive.IsOverridable())
}

func TestStatusValidity(t *testing.T) {
	assert.True(t, ClinicianReady.IsValid())
	assert.False(t, ClinicianStatus("staffed").IsValid())

	assert.True(t, ItemPendingReview.IsValid())
	assert.False(t, ItemStatus("archived").IsValid())

	assert.True(t, TypeDate.IsValid())
	assert.False(t, ItemType("checkbox").IsValid())
}
