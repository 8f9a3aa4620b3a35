package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	balancedomain "github.com/manabill-io/manabill/internal/balance/domain"
	transferdomain "github.com/manabill-io/manabill/internal/banktransfer/domain"
	billingdomain "github.com/manabill-io/manabill/internal/billing/domain"
	catalogdomain "github.com/manabill-io/manabill/internal/catalog/domain"
	contractdomain "github.com/manabill-io/manabill/internal/contract/domain"
	directorydomain "github.com/manabill-io/manabill/internal/directory/domain"
	invoicedomain "github.com/manabill-io/manabill/internal/invoice/domain"
	miledomain "github.com/manabill-io/manabill/internal/mile/domain"
	pricingdomain "github.com/manabill-io/manabill/internal/pricing/domain"
)

type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e apiError) Error() string { return e.Message }

func invalidRequestError() apiError {
	return apiError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "invalid request body"}
}

// statusByError maps domain sentinels onto HTTP statuses. Unknown
// errors become 500 without leaking the message.
var statusByError = map[error]int{
	catalogdomain.ErrProductNotFound:    http.StatusNotFound,
	catalogdomain.ErrCourseNotFound:     http.StatusNotFound,
	catalogdomain.ErrPackNotFound:       http.StatusNotFound,
	directorydomain.ErrGuardianNotFound: http.StatusNotFound,
	directorydomain.ErrStudentNotFound:  http.StatusNotFound,
	contractdomain.ErrContractNotFound:  http.StatusNotFound,
	billingdomain.ErrBillingNotFound:    http.StatusNotFound,
	invoicedomain.ErrInvoiceNotFound:    http.StatusNotFound,
	transferdomain.ErrTransferNotFound:  http.StatusNotFound,

	contractdomain.ErrContractInactive:       http.StatusConflict,
	billingdomain.ErrMonthAlreadyClosed:      http.StatusConflict,
	billingdomain.ErrMonthNotClosed:          http.StatusConflict,
	billingdomain.ErrPeriodLocked:            http.StatusConflict,
	transferdomain.ErrTransferAlreadyApplied: http.StatusConflict,

	billingdomain.ErrReasonRequired:      http.StatusUnprocessableEntity,
	billingdomain.ErrInvalidAmount:       http.StatusUnprocessableEntity,
	balancedomain.ErrInvalidAmount:       http.StatusUnprocessableEntity,
	balancedomain.ErrInsufficientBalance: http.StatusUnprocessableEntity,
	invoicedomain.ErrInvalidPayment:      http.StatusUnprocessableEntity,
	invoicedomain.ErrInvoiceNotPayable:   http.StatusUnprocessableEntity,
	miledomain.ErrInsufficientMiles:      http.StatusUnprocessableEntity,
	miledomain.ErrMileUseNotAllowed:      http.StatusUnprocessableEntity,
	miledomain.ErrInvalidMileAmount:      http.StatusUnprocessableEntity,
	contractdomain.ErrInvalidSchedule:    http.StatusUnprocessableEntity,
	transferdomain.ErrTransferNotMatched: http.StatusUnprocessableEntity,

	pricingdomain.ErrInvalidStartDate:   http.StatusBadRequest,
	pricingdomain.ErrInvalidDaysOfWeek:  http.StatusBadRequest,
	pricingdomain.ErrInvalidStartTime:   http.StatusBadRequest,
	pricingdomain.ErrNoOpenBillingMonth: http.StatusConflict,
}

func AbortWithError(c *gin.Context, err error) {
	var api apiError
	if errors.As(err, &api) {
		c.AbortWithStatusJSON(api.Status, gin.H{"error": api})
		return
	}

	for sentinel, status := range statusByError {
		if errors.Is(err, sentinel) {
			c.AbortWithStatusJSON(status, gin.H{"error": apiError{
				Status:  status,
				Code:    sentinel.Error(),
				Message: sentinel.Error(),
			}})
			return
		}
	}

	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": apiError{
		Status:  http.StatusInternalServerError,
		Code:    "internal_error",
		Message: "internal error",
	}})
}
