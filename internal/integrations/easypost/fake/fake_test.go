package fake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/icellshop/labelbox/internal/models"
)

func TestFakeClient_Deterministic(t *testing.T) {
	f := New()
	ctx := context.Background()

	to := models.Address{Zip: "78701"}
	from := models.Address{Zip: "10001"}

	a, err := f.CreateShipment(ctx, to, from, models.Parcel{Length: 9, Width: 6, Height: 2, Weight: 10})
	require.NoError(t, err)
	b, err := f.CreateShipment(ctx, to, from, models.Parcel{Length: 9, Width: 6, Height: 2, Weight: 10})
	require.NoError(t, err)
	require.Equal(t, a.ID, b.ID)
	require.Len(t, a.Rates, 1)

	label, err := f.BuyShipment(ctx, a.ID, a.Rates[0])
	require.NoError(t, err)
	require.NotEmpty(t, label.TrackingCode)
	require.NotEmpty(t, label.LabelURL)
	require.NotNil(t, label.Cost)
}
