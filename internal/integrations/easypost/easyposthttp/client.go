package easyposthttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/icellshop/labelbox/internal/integrations/easypost"
	"github.com/icellshop/labelbox/internal/models"
)

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://api.easypost.com"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type shipmentResp struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	TrackingCode string `json:"tracking_code"`
	Rates        []struct {
		ID       string `json:"id"`
		Carrier  string `json:"carrier"`
		Service  string `json:"service"`
		Rate     string `json:"rate"`
		Currency string `json:"currency"`
	} `json:"rates"`
	SelectedRate *struct {
		Carrier  string `json:"carrier"`
		Service  string `json:"service"`
		Rate     string `json:"rate"`
		Currency string `json:"currency"`
	} `json:"selected_rate"`
	PostageLabel *struct {
		LabelURL string `json:"label_url"`
	} `json:"postage_label"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) CreateShipment(ctx context.Context, to, from models.Address, parcel models.Parcel) (easypost.Shipment, error) {
	body := map[string]any{
		"shipment": map[string]any{
			"to_address":   to,
			"from_address": from,
			"parcel":       parcel,
		},
	}

	var r shipmentResp
	if err := c.post(ctx, "/v2/shipments", body, &r); err != nil {
		return easypost.Shipment{}, err
	}

	out := easypost.Shipment{ID: r.ID}
	for _, rt := range r.Rates {
		out.Rates = append(out.Rates, easypost.Rate{
			ID:       rt.ID,
			Carrier:  rt.Carrier,
			Service:  rt.Service,
			Rate:     parseRate(rt.Rate),
			Currency: rt.Currency,
		})
	}
	return out, nil
}

func (c *Client) BuyShipment(ctx context.Context, shipmentID string, rate easypost.Rate) (easypost.PurchasedLabel, error) {
	body := map[string]any{
		"rate": map[string]any{"id": rate.ID},
	}

	var r shipmentResp
	if err := c.post(ctx, "/v2/shipments/"+shipmentID+"/buy", body, &r); err != nil {
		return easypost.PurchasedLabel{}, err
	}

	label := easypost.PurchasedLabel{
		ShipmentID:   r.ID,
		TrackingCode: r.TrackingCode,
		Status:       r.Status,
		Carrier:      rate.Carrier,
		Service:      rate.Service,
		Cost:         rate.Rate,
	}
	if rate.Currency != "" {
		cur := rate.Currency
		label.Currency = &cur
	}
	// the carrier's selected_rate wins over the rate we asked for
	if r.SelectedRate != nil {
		label.Carrier = r.SelectedRate.Carrier
		label.Service = r.SelectedRate.Service
		if d := parseRate(r.SelectedRate.Rate); d != nil {
			label.Cost = d
		}
		if r.SelectedRate.Currency != "" {
			cur := r.SelectedRate.Currency
			label.Currency = &cur
		}
	}
	if r.PostageLabel != nil {
		label.LabelURL = r.PostageLabel.LabelURL
	}
	if label.TrackingCode == "" {
		return easypost.PurchasedLabel{}, errors.New("easypost buy response has no tracking_code")
	}
	return label, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out *shipmentResp) error {
	b, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.apiKey, "")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode response (http %d)", resp.StatusCode)
	}
	if resp.StatusCode/100 != 2 {
		if out.Error != nil && out.Error.Message != "" {
			return fmt.Errorf("easypost http %d: %s", resp.StatusCode, out.Error.Message)
		}
		return fmt.Errorf("easypost http %d", resp.StatusCode)
	}
	return nil
}

func parseRate(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}
