package labels

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/icellshop/labelbox/internal/broker/messages"
	"github.com/icellshop/labelbox/internal/integrations/easypost"
	"github.com/icellshop/labelbox/internal/integrations/mail"
	"github.com/icellshop/labelbox/internal/models"
	"github.com/icellshop/labelbox/internal/storage/pgorders"
)

type Repository interface {
	ResolveOrCreateOrder(ctx context.Context, explicitOrderID *uint64, offerHistoryID *int64, init pgorders.OrderInit) (uint64, error)
	GetOrder(ctx context.Context, id uint64) (*models.Order, error)
	UpsertTracking(ctx context.Context, in models.TrackingUpsert) (*models.Tracking, error)
	RecomputeShippingCost(ctx context.Context, orderID uint64) (decimal.Decimal, error)
}

type PDFConverter interface {
	LabelPDF(ctx context.Context, labelURL string) ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Service struct {
	repo     Repository
	carrier  easypost.Client
	mailer   mail.Sender
	pdf      PDFConverter
	producer Publisher
	log      *slog.Logger
}

func New(repo Repository, carrier easypost.Client, mailer mail.Sender, pdf PDFConverter, producer Publisher, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, carrier: carrier, mailer: mailer, pdf: pdf, producer: producer, log: log}
}

// Result is the label-purchase outcome in response shape. Err carries the
// failure for status mapping and is never serialized.
type Result struct {
	Status       string        `json:"status"`
	LabelURL     string        `json:"label_url"`
	TrackingCode string        `json:"tracking_code"`
	Order        *models.Order `json:"order"`
	EmailResult  *mail.Result  `json:"email_result"`
	Message      string        `json:"message,omitempty"`
	Details      string        `json:"details,omitempty"`

	Err error `json:"-"`
}

// GenerateLabel runs the whole purchase workflow: validate, quote, buy,
// persist order and tracking, recompute cost, publish, email. Everything
// before BuyShipment fails the request outright; once the label is bought
// the purchase facts are surfaced no matter what breaks afterwards.
func (s *Service) GenerateLabel(ctx context.Context, req models.LabelRequest) Result {
	if err := validate(req); err != nil {
		return Result{Status: "error", Message: err.Error(), Err: err}
	}

	shipment, err := s.carrier.CreateShipment(ctx, req.ToAddress, req.FromAddress, req.Parcel)
	if err != nil {
		e := &AcquisitionError{Err: err}
		return Result{Status: "error", Message: "could not create shipment", Details: err.Error(), Err: e}
	}
	if len(shipment.Rates) == 0 {
		return Result{Status: "error", Message: ErrNoRateAvailable.Error(), Err: ErrNoRateAvailable}
	}

	label, err := s.carrier.BuyShipment(ctx, shipment.ID, shipment.Rates[0])
	if err != nil {
		e := &AcquisitionError{Err: err}
		return Result{Status: "error", Message: "could not buy label", Details: err.Error(), Err: e}
	}

	direction := req.Direction
	if direction == "" {
		direction = models.DirectionToICellShop
	}

	orderID, err := s.repo.ResolveOrCreateOrder(ctx, req.OrderID, req.OfferHistoryID, pgorders.OrderInit{
		Status:       models.OrderStatusAwaitingShipment,
		TrackingCode: &label.TrackingCode,
		LabelURL:     &label.LabelURL,
	})
	if err != nil {
		// The label is already bought: report the failure but hand the
		// customer-facing artifacts back so the purchase is not lost.
		e := &PersistenceError{Stage: "persist order", Err: err}
		s.log.Error("order persist failed after label purchase",
			"tracking_code", label.TrackingCode, "error", err)
		return Result{
			Status:       "error",
			LabelURL:     label.LabelURL,
			TrackingCode: label.TrackingCode,
			Message:      "label purchased but order could not be saved",
			Details:      err.Error(),
			Err:          e,
		}
	}

	res := Result{
		Status:       "success",
		LabelURL:     label.LabelURL,
		TrackingCode: label.TrackingCode,
	}

	tracking, err := s.repo.UpsertTracking(ctx, trackingFromLabel(label, orderID, direction))
	if err != nil {
		s.log.Error("tracking persist failed after label purchase",
			"order_id", orderID, "tracking_code", label.TrackingCode, "error", err)
		res.Details = "tracking not saved: " + err.Error()
	} else {
		if _, err := s.repo.RecomputeShippingCost(ctx, orderID); err != nil {
			s.log.Error("shipping cost recompute failed", "order_id", orderID, "error", err)
			res.Details = "shipping cost not updated: " + err.Error()
		}
		s.publishUpdate(ctx, tracking, messages.SourceLabelPurchase)
	}

	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		s.log.Error("order reload failed", "order_id", orderID, "error", err)
	}
	res.Order = order

	res.EmailResult = s.emailLabel(ctx, req, label)
	return res
}

func validate(req models.LabelRequest) error {
	if err := validateAddress("to_address", req.ToAddress); err != nil {
		return err
	}
	if err := validateAddress("from_address", req.FromAddress); err != nil {
		return err
	}
	if req.Parcel.Length <= 0 || req.Parcel.Width <= 0 || req.Parcel.Height <= 0 {
		return &ValidationError{Field: "parcel", Reason: "length, width and height must be positive"}
	}
	if req.Parcel.Weight <= 0 {
		return &ValidationError{Field: "parcel.weight", Reason: "must be positive"}
	}
	if strings.TrimSpace(req.ToAddress.Email) == "" && strings.TrimSpace(req.Contacto) == "" {
		return &ValidationError{Field: "to_address.email", Reason: "an email (or contacto) is required to deliver the label"}
	}
	if req.OrderID == nil && req.OfferHistoryID == nil {
		return pgorders.ErrMissingOrderReference
	}
	return nil
}

func validateAddress(field string, a models.Address) error {
	missing := make([]string, 0, 6)
	for _, f := range []struct{ name, val string }{
		{"name", a.Name},
		{"street1", a.Street1},
		{"city", a.City},
		{"state", a.State},
		{"zip", a.Zip},
		{"country", a.Country},
	} {
		if strings.TrimSpace(f.val) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Field: field, Reason: "missing " + strings.Join(missing, ", ")}
	}
	return nil
}

func trackingFromLabel(label easypost.PurchasedLabel, orderID uint64, direction string) models.TrackingUpsert {
	status := label.Status
	if status == "" {
		status = "pre_transit"
	}
	return models.TrackingUpsert{
		TrackingCode:     label.TrackingCode,
		OrderID:          &orderID,
		Status:           status,
		Carrier:          optStr(label.Carrier),
		CarrierService:   optStr(label.Service),
		ShipmentID:       optStr(label.ShipmentID),
		IsReturn:         direction == models.DirectionReturnToSender,
		ShipmentCost:     label.Cost,
		ShipmentCurrency: label.Currency,
		Direction:        direction,
	}
}

func (s *Service) publishUpdate(ctx context.Context, t *models.Tracking, source string) {
	if s.producer == nil || t == nil {
		return
	}
	msg := messages.TrackingUpdated{
		TrackingCode: t.TrackingCode,
		OrderID:      t.OrderID,
		Status:       t.Status,
		Carrier:      deref(t.Carrier),
		ShipmentCost: t.ShipmentCost,
		Source:       source,
		OccurredAt:   time.Now().UTC(),
	}
	if t.StatusDetail != nil {
		msg.StatusDetail = *t.StatusDetail
	}
	if t.ShipmentCurrency != nil {
		msg.ShipmentCurrency = *t.ShipmentCurrency
	}
	b, _ := json.Marshal(msg)
	if err := s.producer.Publish(ctx, messages.TopicTrackingUpdated, []byte(t.TrackingCode), b); err != nil {
		s.log.Error("publish tracking update failed", "tracking_code", t.TrackingCode, "error", err)
	}
}

// emailLabel delivers the label to the customer. Delivery problems never fail
// the request; they come back inside email_result.
func (s *Service) emailLabel(ctx context.Context, req models.LabelRequest, label easypost.PurchasedLabel) *mail.Result {
	if s.mailer == nil {
		return nil
	}

	to := strings.TrimSpace(req.ToAddress.Email)
	if to == "" {
		to = strings.TrimSpace(req.Contacto)
	}
	if to == "" {
		return &mail.Result{Error: true, Details: "no recipient email in to_address or contacto"}
	}

	msg := mail.Message{
		To:      to,
		Subject: "Tu etiqueta de envío ICellShop",
		Text: fmt.Sprintf(
			"Hola,\n\nAdjuntamos tu etiqueta de envío ICellShop.\n\nNúmero de rastreo: %s\nEtiqueta: %s\n\nGracias,\nEquipo ICellShop",
			label.TrackingCode, label.LabelURL,
		),
		HTML: fmt.Sprintf(
			`<p>Hola,</p><p>Adjuntamos tu etiqueta de envío ICellShop.</p><p>Número de rastreo: <b>%s</b><br>Etiqueta: <a href="%s">descargar</a></p><p>Gracias,<br>Equipo ICellShop</p>`,
			label.TrackingCode, label.LabelURL,
		),
	}

	if s.pdf != nil {
		pdf, err := s.pdf.LabelPDF(ctx, label.LabelURL)
		if err != nil {
			s.log.Error("label pdf conversion failed", "tracking_code", label.TrackingCode, "error", err)
		} else {
			msg.Attachment = pdf
			msg.AttachmentName = "etiqueta-" + label.TrackingCode + ".pdf"
		}
	}

	result, err := s.mailer.Send(ctx, msg)
	if err != nil {
		s.log.Error("label email failed", "to", to, "error", err)
		return &mail.Result{Error: true, Details: err.Error()}
	}
	return &result
}

func optStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
