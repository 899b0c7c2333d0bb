package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aktionfilm/aktionfilm-backend/api/responses"
	"github.com/aktionfilm/aktionfilm-backend/api/validators"
	"github.com/aktionfilm/aktionfilm-backend/internal/billing"
	"github.com/aktionfilm/aktionfilm-backend/internal/ledger"
	"github.com/aktionfilm/aktionfilm-backend/pkg/db/models"
	pkgerrors "github.com/aktionfilm/aktionfilm-backend/pkg/errors"
	"github.com/aktionfilm/aktionfilm-backend/pkg/logger"
	"github.com/aktionfilm/aktionfilm-backend/pkg/pagination"
)

type creditEntryDTO struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind,omitempty"`
	Type      string    `json:"type"`
	State     string    `json:"state"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

type creditPackDTO struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Credits  int64           `json:"credits"`
	PriceUSD decimal.Decimal `json:"price_usd"`
}

type checkoutRequest struct {
	PackID     string `json:"pack_id" validate:"required,uuid"`
	SuccessURL string `json:"success_url" validate:"required,url"`
	CancelURL  string `json:"cancel_url" validate:"required,url"`
}

// CreditBalance reports the caller's current balance.
func CreditBalance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Balance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"credits": balance,
			"exempt":  svc.IsExempt(userID),
		})
	}
}

// CreditHistory lists the caller's ledger entries, newest first.
func CreditHistory(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))

		entries, next, err := svc.History(r.Context(), userID, pagination.Params{Limit: limit, Cursor: cursor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]creditEntryDTO, 0, len(entries))
		for _, entry := range entries {
			items = append(items, creditEntryDTO{
				ID:        entry.ID.String(),
				Kind:      string(entry.Kind),
				Type:      string(entry.Type),
				State:     string(entry.State),
				Amount:    entry.Amount,
				CreatedAt: entry.CreatedAt,
			})
		}

		payload := map[string]any{"items": items}
		if next != nil {
			payload["cursor"] = pagination.EncodeCursor(*next)
		}
		responses.WriteSuccess(w, payload)
	}
}

// CreditPacks lists the purchasable packs.
func CreditPacks(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		packs, err := svc.ListPacks(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]creditPackDTO, 0, len(packs))
		for _, pack := range packs {
			items = append(items, toCreditPackDTO(pack))
		}
		responses.WriteSuccess(w, map[string]any{"packs": items})
	}
}

// CreditCheckout starts a Stripe checkout for a credit pack.
func CreditCheckout(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}
		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body checkoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		packID, err := uuid.Parse(body.PackID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pack id"))
			return
		}

		result, err := svc.CreateCheckout(r.Context(), billing.CheckoutParams{
			UserID:     userID,
			PackID:     packID,
			SuccessURL: body.SuccessURL,
			CancelURL:  body.CancelURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"session_id":   result.SessionID,
			"checkout_url": result.CheckoutURL,
		})
	}
}

func toCreditPackDTO(pack models.CreditPack) creditPackDTO {
	return creditPackDTO{
		ID:       pack.ID.String(),
		Name:     pack.Name,
		Credits:  pack.Credits,
		PriceUSD: pack.PriceUSD,
	}
}
