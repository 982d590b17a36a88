package labels_api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/icellshop/labelbox/internal/cache"
	"github.com/icellshop/labelbox/internal/models"
	"github.com/icellshop/labelbox/internal/services/labels"
	"github.com/icellshop/labelbox/internal/services/webhooks"
	"github.com/icellshop/labelbox/internal/storage/pgorders"
)

type labelService interface {
	GenerateLabel(ctx context.Context, req models.LabelRequest) labels.Result
}

type webhookService interface {
	VerifySignature(rawBody []byte, header string) error
	ProcessEvent(ctx context.Context, rawBody []byte) (webhooks.Outcome, error)
}

type trackingService interface {
	GetByCode(ctx context.Context, trackingCode string) (*models.Tracking, error)
}

type offersRepository interface {
	RegisterOffer(ctx context.Context, offerID uint64, email string, ipAddress *string) (uint64, error)
	ListActiveOffers(ctx context.Context) ([]*models.Offer, error)
}

type LabelsAPI struct {
	labels    labelService
	webhooks  webhookService
	trackings trackingService
	offers    offersRepository

	limiter   cache.RateLimiter
	rateLimit int64

	log *slog.Logger
}

func New(labelsSvc labelService, webhooksSvc webhookService, trackingsSvc trackingService, offers offersRepository, limiter cache.RateLimiter, rateLimit int64, log *slog.Logger) *LabelsAPI {
	if log == nil {
		log = slog.Default()
	}
	return &LabelsAPI{
		labels:    labelsSvc,
		webhooks:  webhooksSvc,
		trackings: trackingsSvc,
		offers:    offers,
		limiter:   limiter,
		rateLimit: rateLimit,
		log:       log,
	}
}

func (a *LabelsAPI) Routes(r chi.Router) {
	r.Post("/generar-etiqueta", a.generateLabel)
	r.Post("/api/easypost-webhook", a.easypostWebhook)
	r.Post("/api/register-offer", a.registerOffer)
	r.Get("/api/offers-catalog", a.offersCatalog)
	r.Get("/api/trackings/{trackingCode}", a.getTracking)
}

// labelRequest accepts both the nested parcel object and the legacy flat
// length/width/height/weight fields.
type labelRequest struct {
	ToAddress   models.Address `json:"to_address"`
	FromAddress models.Address `json:"from_address"`
	Parcel      *models.Parcel `json:"parcel"`

	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Weight float64 `json:"weight"`

	Direction      string  `json:"direction"`
	OrderID        *uint64 `json:"order_id"`
	OfferHistoryID *int64  `json:"offer_history_id"`
	Contacto       string  `json:"contacto"`
}

func (in labelRequest) toModel() models.LabelRequest {
	parcel := models.Parcel{Length: in.Length, Width: in.Width, Height: in.Height, Weight: in.Weight}
	if in.Parcel != nil {
		parcel = *in.Parcel
	}
	return models.LabelRequest{
		ToAddress:      in.ToAddress,
		FromAddress:    in.FromAddress,
		Parcel:         parcel,
		Direction:      in.Direction,
		OrderID:        in.OrderID,
		OfferHistoryID: in.OfferHistoryID,
		Contacto:       in.Contacto,
	}
}

func (a *LabelsAPI) generateLabel(w http.ResponseWriter, r *http.Request) {
	if !a.allow(r) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"status":  "error",
			"message": "rate limit exceeded, try again later",
		})
		return
	}

	var in labelRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status":  "error",
			"message": "invalid JSON body",
		})
		return
	}

	res := a.labels.GenerateLabel(r.Context(), in.toModel())
	writeJSON(w, statusFor(res.Err), res)
}

// allow applies the per-client purchase budget. The limiter failing is not a
// reason to block customers, so redis errors fail open.
func (a *LabelsAPI) allow(r *http.Request) bool {
	if a.limiter == nil || a.rateLimit <= 0 {
		return true
	}
	key := "rl:label:" + clientIP(r)
	ok, _, err := a.limiter.Allow(r.Context(), key, a.rateLimit, time.Minute)
	if err != nil {
		a.log.Error("rate limiter unavailable", "error", err)
		return true
	}
	return ok
}

func statusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var ve *labels.ValidationError
	if errors.As(err, &ve) || errors.Is(err, pgorders.ErrMissingOrderReference) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (a *LabelsAPI) easypostWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "unreadable body"})
		return
	}

	if err := a.webhooks.VerifySignature(body, r.Header.Get("X-Hmac-Signature")); err != nil {
		a.log.Warn("webhook rejected", "remote", clientIP(r), "error", err)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"status": "error", "message": "invalid signature"})
		return
	}

	out, err := a.webhooks.ProcessEvent(r.Context(), body)
	if err != nil {
		a.log.Error("webhook processing failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": "event processing failed"})
		return
	}

	if out.Handled {
		a.log.Info("webhook processed", "tracking_code", out.TrackingCode)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type registerOfferRequest struct {
	OfferID uint64 `json:"offer_id"`
	Email   string `json:"email"`
}

func (a *LabelsAPI) registerOffer(w http.ResponseWriter, r *http.Request) {
	var in registerOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "invalid JSON body"})
		return
	}
	if in.OfferID == 0 || strings.TrimSpace(in.Email) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": "offer_id and email are required"})
		return
	}

	ip := clientIP(r)
	var ipPtr *string
	if ip != "" {
		ipPtr = &ip
	}

	id, err := a.offers.RegisterOffer(r.Context(), in.OfferID, in.Email, ipPtr)
	if err != nil {
		a.log.Error("register offer failed", "offer_id", in.OfferID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": "could not register offer"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "success",
		"offer_history_id": id,
	})
}

func (a *LabelsAPI) offersCatalog(w http.ResponseWriter, r *http.Request) {
	offers, err := a.offers.ListActiveOffers(r.Context())
	if err != nil {
		a.log.Error("list offers failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": "could not load offers"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"offers": offers})
}

func (a *LabelsAPI) getTracking(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "trackingCode")
	t, err := a.trackings.GetByCode(r.Context(), code)
	if err != nil {
		a.log.Error("get tracking failed", "tracking_code", code, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "error", "message": "could not load tracking"})
		return
	}
	if t == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"status": "error", "message": "tracking not found"})
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
