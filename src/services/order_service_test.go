package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/investfolio/backend/src/models"
	"github.com/username/investfolio/backend/src/utils"
)

func TestCreateOrder_AutoPricedFromCurrentQuote(t *testing.T) {
	db := openTestDB(t)
	prices := newStubPriceService()
	prices.setSpot("IE00B4L5Y983", 105.5)
	invalidator := &recordingInvalidator{}
	svc := NewOrderService(db, prices, invalidator)

	order, err := svc.CreateOrder(7, models.CreateOrderRequest{
		ISIN:     "ie00b4l5y983",
		Quantity: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, "IE00B4L5Y983", order.ISIN)
	assert.Equal(t, 105.5, order.UnitPriceEUR)
	assert.Equal(t, 316.5, order.TotalPriceEUR)
	assert.Equal(t, utils.FormatDate(utils.Today()), order.OrderDate)
	assert.Equal(t, "stub", order.PriceSource)
	assert.Empty(t, order.RequestedDate)
	assert.Equal(t, []int{7}, invalidator.invalidations())

	stored, err := svc.ListOrders(7)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, order.ID, stored[0].ID)
	assert.Equal(t, order.TotalPriceEUR, stored[0].TotalPriceEUR)
}

func TestCreateOrder_DatedPricingKeepsActuallyPricedDate(t *testing.T) {
	db := openTestDB(t)
	prices := newStubPriceService()
	// Asked for a Saturday; the providers answer with Friday's close.
	prices.setDated("IE00B4L5Y983", "2024-03-16", models.PriceQuote{
		Price:  floatPtr(99.0),
		Source: "stub",
		Date:   "2024-03-15",
	})
	svc := NewOrderService(db, prices, &recordingInvalidator{})

	order, err := svc.CreateOrder(7, models.CreateOrderRequest{
		ISIN:     "IE00B4L5Y983",
		Quantity: 2,
		Date:     "2024-03-16",
	})
	require.NoError(t, err)

	assert.Equal(t, "2024-03-15", order.OrderDate)
	assert.Equal(t, "2024-03-16", order.RequestedDate)
	assert.Equal(t, 99.0, order.UnitPriceEUR)
	assert.Equal(t, 198.0, order.TotalPriceEUR)
}

func TestCreateOrder_DatedLookupFallsBackToCurrentQuote(t *testing.T) {
	db := openTestDB(t)
	prices := newStubPriceService()
	prices.setSpot("IE00B4L5Y983", 101.0)
	svc := NewOrderService(db, prices, &recordingInvalidator{})

	order, err := svc.CreateOrder(7, models.CreateOrderRequest{
		ISIN:     "IE00B4L5Y983",
		Quantity: 1,
		Date:     "2024-03-16",
	})
	require.NoError(t, err)

	// The current quote carries no date, so the order keeps the asked date.
	assert.Equal(t, "2024-03-16", order.OrderDate)
	assert.Equal(t, "2024-03-16", order.RequestedDate)
	assert.Equal(t, 101.0, order.UnitPriceEUR)
}

func TestCreateOrder_PriceUnavailable(t *testing.T) {
	db := openTestDB(t)
	svc := NewOrderService(db, newStubPriceService(), &recordingInvalidator{})

	_, err := svc.CreateOrder(7, models.CreateOrderRequest{
		ISIN:     "IE00B4L5Y983",
		Quantity: 1,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPriceUnavailable)
	assert.ErrorContains(t, err, "IE00B4L5Y983")

	orders, err := svc.ListOrders(7)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCreateOrder_DerivesTotalFromUnitPrice(t *testing.T) {
	db := openTestDB(t)
	svc := NewOrderService(db, newStubPriceService(), &recordingInvalidator{})

	order, err := svc.CreateOrder(7, models.CreateOrderRequest{
		ISIN:         "IE00B4L5Y983",
		Quantity:     2.5,
		Date:         "2024-02-01",
		UnitPriceEUR: floatPtr(10.10),
	})
	require.NoError(t, err)

	assert.Equal(t, 10.10, order.UnitPriceEUR)
	assert.Equal(t, 25.25, order.TotalPriceEUR)
	assert.Equal(t, "2024-02-01", order.OrderDate)
	assert.Empty(t, order.PriceSource)
}

func TestCreateOrder_DerivesUnitPriceFromTotal(t *testing.T) {
	db := openTestDB(t)
	svc := NewOrderService(db, newStubPriceService(), &recordingInvalidator{})

	order, err := svc.CreateOrder(7, models.CreateOrderRequest{
		ISIN:          "IE00B4L5Y983",
		Quantity:      3,
		Date:          "2024-02-01",
		TotalPriceEUR: floatPtr(100),
	})
	require.NoError(t, err)

	assert.Equal(t, 100.0, order.TotalPriceEUR)
	assert.Equal(t, 33.3333, order.UnitPriceEUR)
}

func TestCreateOrder_BothPricesMustAgree(t *testing.T) {
	db := openTestDB(t)
	svc := NewOrderService(db, newStubPriceService(), &recordingInvalidator{})

	_, err := svc.CreateOrder(7, models.CreateOrderRequest{
		ISIN:          "IE00B4L5Y983",
		Quantity:      10,
		Date:          "2024-02-01",
		UnitPriceEUR:  floatPtr(10.00),
		TotalPriceEUR: floatPtr(101.50),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidOrderPayload)

	// Within the per-share rounding tolerance the pair is accepted.
	order, err := svc.CreateOrder(7, models.CreateOrderRequest{
		ISIN:          "IE00B4L5Y983",
		Quantity:      10,
		Date:          "2024-02-01",
		UnitPriceEUR:  floatPtr(10.00),
		TotalPriceEUR: floatPtr(100.05),
	})
	require.NoError(t, err)
	assert.Equal(t, 100.05, order.TotalPriceEUR)
	assert.Equal(t, 10.00, order.UnitPriceEUR)
}

func TestDeleteOrder(t *testing.T) {
	db := openTestDB(t)
	invalidator := &recordingInvalidator{}
	svc := NewOrderService(db, newStubPriceService(), invalidator)

	order, err := svc.CreateOrder(7, models.CreateOrderRequest{
		ISIN:         "IE00B4L5Y983",
		Quantity:     1,
		Date:         "2024-02-01",
		UnitPriceEUR: floatPtr(50),
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteOrder(7, order.ID))
	orders, err := svc.ListOrders(7)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Equal(t, []int{7, 7}, invalidator.invalidations())

	assert.ErrorIs(t, svc.DeleteOrder(7, order.ID), ErrOrderNotFound)
}

func TestDeleteOrder_OtherUsersOrderNotFound(t *testing.T) {
	db := openTestDB(t)
	svc := NewOrderService(db, newStubPriceService(), &recordingInvalidator{})

	order, err := svc.CreateOrder(7, models.CreateOrderRequest{
		ISIN:         "IE00B4L5Y983",
		Quantity:     1,
		Date:         "2024-02-01",
		UnitPriceEUR: floatPtr(50),
	})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteOrder(8, order.ID), ErrOrderNotFound)

	orders, err := svc.ListOrders(7)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestListOrders_NewestFirst(t *testing.T) {
	db := openTestDB(t)
	svc := NewOrderService(db, newStubPriceService(), &recordingInvalidator{})

	for _, date := range []string{"2024-01-10", "2024-03-05", "2024-02-20"} {
		_, err := svc.CreateOrder(7, models.CreateOrderRequest{
			ISIN:         "IE00B4L5Y983",
			Quantity:     1,
			Date:         date,
			UnitPriceEUR: floatPtr(10),
		})
		require.NoError(t, err)
	}

	orders, err := svc.ListOrders(7)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, "2024-03-05", orders[0].OrderDate)
	assert.Equal(t, "2024-02-20", orders[1].OrderDate)
	assert.Equal(t, "2024-01-10", orders[2].OrderDate)
}
