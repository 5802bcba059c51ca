package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/liora-bloom/internal/core/domain"
)

func TestAccount_Orders(t *testing.T) {
	ctx := context.Background()
	orders := newMockOrders()
	mine, theirs := "u-1", "u-2"
	require.NoError(t, orders.CreateOrder(ctx, domain.Order{ID: "o-1", Reference: "LB-1001", UserID: &mine}))
	require.NoError(t, orders.CreateOrder(ctx, domain.Order{ID: "o-2", Reference: "LB-1002", UserID: &theirs}))
	require.NoError(t, orders.CreateOrder(ctx, domain.Order{ID: "o-3", Reference: "LB-1003"}))
	svc := NewAccountService(orders, newMockProfiles(), &mockReviews{}, newMockProducts())

	list, err := svc.Orders(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "LB-1001", list[0].Reference)
}

func TestAccount_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	profiles := newMockProfiles(thandi())
	svc := NewAccountService(newMockOrders(), profiles, &mockReviews{}, newMockProducts())

	require.NoError(t, svc.UpdateProfile(ctx, "u-1", ProfileInput{FullName: " Thandi M. ", Phone: "083"}))
	p, err := svc.Profile(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "Thandi M.", p.FullName)
	assert.Equal(t, "083", p.Phone)

	var verr *ValidationError
	require.ErrorAs(t, svc.UpdateProfile(ctx, "u-1", ProfileInput{}), &verr)
	assert.Equal(t, []string{"full_name"}, verr.Fields)

	assert.ErrorIs(t, svc.UpdateProfile(ctx, "nobody", ProfileInput{FullName: "X"}), ErrProfileNotFound)
}

func TestAccount_Reviews(t *testing.T) {
	ctx := context.Background()
	reviews := &mockReviews{}
	svc := NewAccountService(newMockOrders(), newMockProfiles(), reviews, newMockProducts(roseBouquet()))

	review, err := svc.AddReview(ctx, "u-1", ReviewInput{ProductID: "prod-rose", Rating: 5, Comment: "Stunning"})
	require.NoError(t, err)
	assert.Equal(t, "Blush Roses", review.ProductName)

	_, err = svc.AddReview(ctx, "u-1", ReviewInput{ProductID: "prod-rose", Rating: 6})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"rating"}, verr.Fields)

	_, err = svc.AddReview(ctx, "u-1", ReviewInput{ProductID: "gone", Rating: 3})
	assert.ErrorIs(t, err, ErrProductNotFound)

	list, err := svc.Reviews(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	assert.ErrorIs(t, svc.DeleteReview(ctx, "u-2", review.ID), ErrReviewNotFound, "other users cannot delete it")
	require.NoError(t, svc.DeleteReview(ctx, "u-1", review.ID))

	list, err = svc.Reviews(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}
