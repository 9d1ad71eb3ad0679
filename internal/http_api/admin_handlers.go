package http_api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cobia/billing/internal/models"
	"github.com/cobia/billing/pkg/apperror"
)

// PageResponse is the limit/offset envelope of admin listings.
type PageResponse struct {
	Count   int64       `json:"count"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	Results interface{} `json:"results"`
}

func parsePage(c *gin.Context) (models.Page, error) {
	var page models.Page
	for _, q := range []struct {
		name string
		dst  *int
	}{{"limit", &page.Limit}, {"offset", &page.Offset}} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return page, apperror.Validation(apperror.CodeValidation, "Invalid pagination parameter").
				WithDetail("field", q.name)
		}
		*q.dst = v
	}
	return page.Normalize(), nil
}

// adminPayments lists confirmed card payments, newest approval first.
func (s *HTTPServer) adminPayments(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	rows, total, err := s.billing.ListPayments(c.Request.Context(), models.PaymentFilter{
		Page:  page,
		Email: c.Query("email"),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	if rows == nil {
		rows = []*models.AdminPayment{}
	}

	respondOK(c, PageResponse{Count: total, Limit: page.Limit, Offset: page.Offset, Results: rows})
}

// adminSubscriptions lists subscriptions, newest first.
func (s *HTTPServer) adminSubscriptions(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		s.respondError(c, err)
		return
	}

	rows, total, err := s.billing.ListSubscriptions(c.Request.Context(), page)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if rows == nil {
		rows = []*models.AdminSubscription{}
	}

	respondOK(c, PageResponse{Count: total, Limit: page.Limit, Offset: page.Offset, Results: rows})
}
