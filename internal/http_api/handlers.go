package http_api

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cobia/billing/internal/auth"
	"github.com/cobia/billing/internal/models"
)

// InitiateRequest represents the JSON body for starting a card payment
type InitiateRequest struct {
	Tier string `json:"tier" binding:"oneof=pro whale"`
}

type InitiateResponse struct {
	OrderID string      `json:"order_id"`
	Amount  int64       `json:"amount"`
	Tier    models.Tier `json:"tier"`
}

// ConfirmRequest carries the values the card gateway handed back to the client
type ConfirmRequest struct {
	PaymentKey string `json:"paymentKey" binding:"required"`
	OrderID    string `json:"orderId" binding:"required"`
	Amount     int64  `json:"amount" binding:"required"`
}

type ConfirmResponse struct {
	PaymentID int64                `json:"payment_id"`
	Amount    int64                `json:"amount"`
	Status    models.PaymentStatus `json:"status"`
}

// btcAmount accepts a BTC amount sent either as a JSON string or a number.
// Numbers are kept verbatim so no precision is lost to float64.
type btcAmount string

func (a *btcAmount) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = btcAmount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*a = btcAmount(n.String())
	return nil
}

type BTCConfirmRequest struct {
	TxHash string    `json:"tx_hash" binding:"required,txhash"`
	Amount btcAmount `json:"amount" binding:"required,positive_decimal"`
	UserID int64     `json:"user_id" binding:"required"`
}

type btcTransactionResponse struct {
	TxHash      string                      `json:"tx_hash"`
	Amount      string                      `json:"amount"`
	Status      models.BTCTransactionStatus `json:"status"`
	ConfirmedAt *time.Time                  `json:"confirmed_at"`
}

type subscriptionResponse struct {
	Tier    models.Tier `json:"tier"`
	EndDate *time.Time  `json:"end_date"`
}

type BTCConfirmResponse struct {
	Transaction  btcTransactionResponse `json:"transaction"`
	Subscription subscriptionResponse   `json:"subscription"`
}

type btcPaymentResponse struct {
	Confirmed   bool       `json:"confirmed"`
	TxHash      string     `json:"tx_hash"`
	Amount      string     `json:"amount"`
	ConfirmedAt *time.Time `json:"confirmed_at"`
}

type BTCStatusResponse struct {
	BTCPayment   *btcPaymentResponse        `json:"btc_payment"`
	Subscription *models.SubscriptionStatus `json:"subscription"`
}

type TelegramLinkResponse struct {
	Token     string `json:"token"`
	Command   string `json:"command"`
	ExpiresIn int64  `json:"expires_in"`
}

// initiatePayment records a card payment intent for the requested tier.
func (s *HTTPServer) initiatePayment(c *gin.Context) {
	user, _ := currentUser(c)

	var req InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	intent, err := s.billing.InitiatePayment(c.Request.Context(), user, models.Tier(req.Tier))
	if err != nil {
		s.respondError(c, err)
		return
	}

	respondOK(c, InitiateResponse{
		OrderID: intent.OrderID,
		Amount:  intent.Amount,
		Tier:    models.Tier(req.Tier),
	})
}

// confirmPayment confirms a card payment with the gateway.
func (s *HTTPServer) confirmPayment(c *gin.Context) {
	user, _ := currentUser(c)

	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	payment, err := s.billing.ConfirmPayment(c.Request.Context(), user, models.ConfirmPaymentRequest{
		PaymentKey: req.PaymentKey,
		OrderID:    req.OrderID,
		Amount:     req.Amount,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	respondOK(c, ConfirmResponse{
		PaymentID: payment.ID,
		Amount:    payment.Amount,
		Status:    payment.Status,
	})
}

// confirmBTCPayment records a BTC payment asserted by the caller.
func (s *HTTPServer) confirmBTCPayment(c *gin.Context) {
	user, _ := currentUser(c)

	var req BTCConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	tx, sub, err := s.billing.ConfirmBTCPayment(c.Request.Context(), user, models.BTCConfirmRequest{
		TxHash: req.TxHash,
		Amount: string(req.Amount),
		UserID: req.UserID,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	respondOK(c, BTCConfirmResponse{
		Transaction: btcTransactionResponse{
			TxHash:      tx.TxHash,
			Amount:      tx.Amount.StringFixed(8),
			Status:      tx.Status,
			ConfirmedAt: tx.ConfirmedAt,
		},
		Subscription: subscriptionResponse{
			Tier:    sub.Tier,
			EndDate: sub.EndDate,
		},
	})
}

// btcStatus reports the caller's latest BTC payment and subscription state.
func (s *HTTPServer) btcStatus(c *gin.Context) {
	user, _ := currentUser(c)

	latest, status, err := s.billing.BTCStatus(c.Request.Context(), user.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	resp := BTCStatusResponse{Subscription: status}
	if latest != nil {
		resp.BTCPayment = &btcPaymentResponse{
			Confirmed:   latest.Status == models.BTCTransactionConfirmed,
			TxHash:      latest.TxHash,
			Amount:      latest.Amount.StringFixed(8),
			ConfirmedAt: latest.ConfirmedAt,
		}
	}
	respondOK(c, resp)
}

// subscriptionStatus reports the caller's effective subscription state.
func (s *HTTPServer) subscriptionStatus(c *gin.Context) {
	user, _ := currentUser(c)

	status, err := s.billing.SubscriptionStatus(c.Request.Context(), user.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, status)
}

// telegramLink hands out a short-lived token the user sends to the bot
// with /link to receive receipts in that chat.
func (s *HTTPServer) telegramLink(c *gin.Context) {
	user, _ := currentUser(c)

	token, err := s.tokens.IssueLinkToken(user.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, TelegramLinkResponse{
		Token:     token,
		Command:   "/link " + token,
		ExpiresIn: int64(auth.LinkTokenTTL / time.Second),
	})
}
