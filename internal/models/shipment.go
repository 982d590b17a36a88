package models

type Address struct {
	Name    string `json:"name"`
	Street1 string `json:"street1"`
	Street2 string `json:"street2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Parcel dimensions in inches/ounces, as the carrier API expects them.
type Parcel struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Weight float64 `json:"weight"`
}

// LabelRequest is the validated input of the label-purchase workflow.
type LabelRequest struct {
	ToAddress   Address
	FromAddress Address
	Parcel      Parcel

	Direction      string
	OrderID        *uint64
	OfferHistoryID *int64

	// Fallback recipient when to_address carries no email.
	Contacto string
}
