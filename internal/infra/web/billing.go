package web

import (
	"errors"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"stagecall/internal/domain"
	"stagecall/internal/domain/model"
	"stagecall/internal/infra/logging"
	"stagecall/internal/infra/metrics"
	"stagecall/internal/infra/payment"
	"stagecall/internal/usecase"
)

func billingCheckoutHandler(billingUC usecase.BillingUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url, ref, err := billingUC.StartCheckout(r.Context(), AccountID(r.Context()))
		if err != nil {
			metrics.IncCheckoutSession("error")
			writeBillingError(w, err)
			return
		}
		metrics.IncCheckoutSession("created")
		writeJSON(w, http.StatusOK, struct {
			RedirectURL string `json:"redirect_url"`
			SessionRef  string `json:"session_ref"`
		}{RedirectURL: url, SessionRef: ref})
	}
}

// billingConfirmHandler is the authenticated poll: re-check the session with
// the processor and report where the transaction landed.
func billingConfirmHandler(billingUC usecase.BillingUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sessionRef := r.URL.Query().Get("session_id")
		if sessionRef == "" {
			metrics.BillingConfirmRequests.WithLabelValues("fail", "unknown").Inc()
			writeError(w, domain.ErrInvalidArgument)
			return
		}

		trx, err := billingUC.Confirm(r.Context(), AccountID(r.Context()), sessionRef)
		if err != nil {
			reason := "unknown"
			switch {
			case errors.Is(err, domain.ErrNotFound):
				reason = "not_found"
			case !isDomainError(err):
				reason = "gateway_error"
			}
			metrics.BillingConfirmRequests.WithLabelValues("fail", reason).Inc()
			metrics.BillingConfirmDuration.WithLabelValues("fail").Observe(time.Since(start).Seconds())
			writeBillingError(w, err)
			return
		}

		metrics.BillingConfirmRequests.WithLabelValues("ok", "").Inc()
		metrics.BillingConfirmDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
		writeJSON(w, http.StatusOK, struct {
			Status      string     `json:"status"`
			AmountMinor int64      `json:"amount_minor"`
			Currency    string     `json:"currency"`
			PaidAt      *time.Time `json:"paid_at"`
		}{
			Status:      string(trx.PaymentStatus),
			AmountMinor: trx.Amount,
			Currency:    trx.Currency,
			PaidAt:      trx.PaidAt,
		})
	}
}

// billingReturnHandler is where the processor redirects the performer's
// browser after checkout. No session cookie is required: the settle step is
// idempotent and keyed by the unguessable session ref, and nothing but the
// payment outcome is shown.
func billingReturnHandler(billingUC usecase.BillingUseCase, logger *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := logging.With(r.Context(), logger)
		q := r.URL.Query()

		if q.Get("canceled") == "1" {
			renderReturnPage(w, http.StatusOK, false, "Checkout canceled. No charge was made.")
			return
		}
		sessionRef := q.Get("session_id")
		if sessionRef == "" {
			renderReturnPage(w, http.StatusBadRequest, false, "Missing session_id.")
			return
		}

		trx, err := billingUC.ConfirmAuto(r.Context(), sessionRef)
		if err != nil {
			l.Error().Err(err).Str("session_ref", sessionRef).Msg("return-page confirmation failed")
			renderReturnPage(w, http.StatusBadGateway, false,
				"We could not verify the payment yet. Refresh this page in a moment; your card is only charged once.")
			return
		}

		switch trx.PaymentStatus {
		case model.PaymentStatusPaid:
			renderReturnPage(w, http.StatusOK, true, "Payment confirmed. Your Pro subscription is active.")
		case model.PaymentStatusFailed:
			renderReturnPage(w, http.StatusOK, false, "The checkout session expired or the payment failed. You were not charged.")
		default:
			renderReturnPage(w, http.StatusOK, false, "Payment is still processing. Refresh this page in a moment.")
		}
	}
}

var page = template.Must(template.New("return").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<title>{{if .OK}}Payment Successful{{else}}Payment Result{{end}}</title>
<style>
body{font-family:system-ui,Arial,sans-serif;margin:2rem;}
.card{max-width:560px;border:1px solid #ddd;border-radius:12px;padding:24px;}
.ok{color:#057a55} .fail{color:#b00020}
.btn{display:inline-block;margin-top:16px;padding:10px 16px;border-radius:8px;border:1px solid #888;text-decoration:none}
</style>
</head>
<body>
<div class="card">
  <h2 class="{{if .OK}}ok{{else}}fail{{end}}">{{if .OK}}&#9989; Payment Successful{{else}}&#9888; Payment Processed{{end}}</h2>
  <p>{{.Msg}}</p>
  <a class="btn" href="/">Back to StageCall</a>
</div>
</body>
</html>`))

func renderReturnPage(w http.ResponseWriter, code int, ok bool, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_ = page.Execute(w, struct {
		OK  bool
		Msg string
	}{OK: ok, Msg: msg})
}

// stripeWebhookHandler is the push path into settlement: verify the
// signature, act on checkout.session.completed, acknowledge everything else.
// A processing error returns 500 so the processor retries the delivery.
func stripeWebhookHandler(billingUC usecase.BillingUseCase, secret string, logger *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := logging.With(r.Context(), logger)

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, payment.WebhookBodyLimit))
		if err != nil {
			metrics.IncWebhookEvent("unknown", "invalid")
			http.Error(w, "unreadable payload", http.StatusBadRequest)
			return
		}

		event, err := payment.ParseWebhookEvent(body, r.Header.Get("Stripe-Signature"), secret)
		if err != nil {
			metrics.IncWebhookEvent("unknown", "invalid")
			l.Warn().Err(err).Msg("webhook signature rejected")
			http.Error(w, "invalid signature", http.StatusBadRequest)
			return
		}

		eventType := string(event.Type)
		if eventType != payment.EventCheckoutCompleted {
			metrics.IncWebhookEvent(eventType, "ignored")
			w.WriteHeader(http.StatusOK)
			return
		}

		completed, err := payment.ExtractCheckoutCompleted(event)
		if err != nil {
			metrics.IncWebhookEvent(eventType, "invalid")
			l.Warn().Err(err).Msg("malformed checkout.session.completed payload")
			http.Error(w, "malformed event", http.StatusBadRequest)
			return
		}

		if err := billingUC.HandleCheckoutCompleted(r.Context(), completed.SessionRef, completed.CustomerRef); err != nil {
			metrics.IncWebhookEvent(eventType, "error")
			l.Error().Err(err).Str("session_ref", completed.SessionRef).Msg("webhook processing failed")
			http.Error(w, "processing failed", http.StatusInternalServerError)
			return
		}

		metrics.IncWebhookEvent(eventType, "processed")
		metrics.IncPayment("paid")
		if completed.AmountMinor > 0 {
			metrics.AddPaymentRevenue(completed.Currency, completed.AmountMinor)
		}
		w.WriteHeader(http.StatusOK)
	}
}
