package helpers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"bidout-auction/internal/biddingerrors"
	model "bidout-auction/internal/models"
	"bidout-auction/utils"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	// HeaderUserID and HeaderUsername identify the caller. Authentication
	// happens upstream; requests without a user ID are rejected.
	HeaderUserID   = "X-User-ID"
	HeaderUsername = "X-Username"

	userContextKey = "current_user"
)

var registerOnce sync.Once

// RegisterValidators teaches gin's validator about decimal amounts and adds
// the "money" tag. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			utils.Warn("RegisterValidators: unexpected validator engine", nil)
			return
		}
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.String()
			}
			return nil
		}, decimal.Decimal{})
		if err := v.RegisterValidation("money", validateMoney); err != nil {
			utils.Fatal("RegisterValidators: failed to register money validation", map[string]any{"error": err.Error()})
		}
	})
}

// validateMoney accepts positive amounts with at most two decimals
func validateMoney(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return model.IsValidAmount(d)
}

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusUnprocessableEntity, wrappedErr, "Invalid Entry")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, biddingerrors.ErrListingNotFound):
		return http.StatusNotFound, "Listing does not exist!"
	case errors.Is(err, biddingerrors.ErrSelfBidNotAllowed):
		return http.StatusForbidden, "You cannot bid your own product!"
	case errors.Is(err, biddingerrors.ErrAuctionClosed):
		return http.StatusGone, "This auction is closed!"
	case errors.Is(err, biddingerrors.ErrAuctionExpired):
		return http.StatusGone, "This auction is expired and closed!"
	case errors.Is(err, biddingerrors.ErrBelowStartingPrice):
		return http.StatusBadRequest, "Bid amount cannot be less than the bidding price!"
	case errors.Is(err, biddingerrors.ErrNotHighEnough):
		return http.StatusBadRequest, "Bid amount must be more than the highest bid!"
	case errors.Is(err, biddingerrors.ErrNotListingOwner):
		return http.StatusForbidden, "This listing doesn't belong to you!"
	case errors.Is(err, biddingerrors.ErrNoBids):
		return http.StatusNotFound, "No bids on this listing yet!"
	case errors.Is(err, biddingerrors.ErrInvalidBid), errors.Is(err, biddingerrors.ErrInvalidListing):
		return http.StatusUnprocessableEntity, "Invalid Entry"
	default:
		return http.StatusInternalServerError, "Something went wrong!"
	}
}

// SetCurrentUser stores the authenticated caller on the request context
func SetCurrentUser(c *gin.Context, user model.User) {
	c.Set(userContextKey, user)
}

// RequireUser reads the caller from the identity headers and aborts with
// 401 when no user ID is present
func RequireUser(c *gin.Context) {
	userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
	if userID == "" {
		utils.JSONError(c, http.StatusUnauthorized, errors.New("missing "+HeaderUserID+" header"), "Unauthorized User!")
		c.Abort()
		return
	}
	SetCurrentUser(c, model.User{UserID: userID, Username: strings.TrimSpace(c.GetHeader(HeaderUsername))})
	c.Next()
}

// CurrentUser returns the caller set by the auth middleware
func CurrentUser(c *gin.Context) (model.User, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return model.User{}, false
	}
	user, ok := v.(model.User)
	return user, ok && user.UserID != ""
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
