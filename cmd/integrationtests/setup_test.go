package integrationtests

import (
	bidding "bidout-auction/internal/biddingService"
	model "bidout-auction/internal/models"
	"bidout-auction/internal/repository"
	"bidout-auction/internal/server"
	"bidout-auction/services/bidding/helpers"
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// SetupTestRouterWithListings initializes the router and seeds the repo with listings.
func SetupTestRouterWithListings(t *testing.T, listings ...model.Listing) *gin.Engine {
	gin.SetMode(gin.TestMode)
	repo := repository.NewMemoryRepo()

	for _, l := range listings {
		if err := repo.CreateListing(context.Background(), l); err != nil {
			t.Fatalf("failed to seed listing %s: %v", l.Slug, err)
		}
	}

	service := bidding.NewBiddingService(repo)
	return server.SetupRouter(service)
}

// NewTestListing returns an open listing closing in an hour
func NewTestListing(slug, owner, price string) model.Listing {
	closing := time.Now().Add(time.Hour).UTC()
	return model.Listing{
		ListingID:     slug + "-id",
		OwnerID:       owner,
		Name:          slug,
		Slug:          slug,
		StartingPrice: decimal.RequireFromString(price),
		HighestBid:    decimal.Zero,
		ClosingDate:   &closing,
		Active:        true,
		CreatedAt:     time.Now().UTC(),
	}
}

// ExecuteRequestAndParse executes an HTTP request as userID (empty for
// anonymous) and parses the response envelope. On 201 the data is unwrapped.
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url, userID string, body any) (map[string]any, *httptest.ResponseRecorder) {
	var reqBody []byte
	var err error

	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(helpers.HeaderUserID, userID)
		req.Header.Set(helpers.HeaderUsername, userID)
	}
	router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		if err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}

		if w.Code == 201 {
			resp = resp["data"].(map[string]any)
		}
	}

	return resp, w
}
