package mlscore

import (
	"context"
	"fmt"
	"time"

	"bloodbridge_bot/internal/domain/scoring"

	"github.com/go-resty/resty/v2"
)

// Client calls the external ML ranking service. It implements
// scoring.Scorer.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL string) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(8 * time.Second)
	return &Client{http: http}
}

type scoreRequest struct {
	DonorID               string  `json:"donor_id"`
	LastDonationDate      *string `json:"last_donation_date"`
	StreakCount           int     `json:"streak_count"`
	NotificationsReceived int     `json:"notifications_received"`
	DonationsConfirmed    int     `json:"donations_confirmed"`
}

type scoreResponse struct {
	FinalScore float64 `json:"final_score"`
}

func (c *Client) Score(ctx context.Context, f scoring.Features) (float64, error) {
	req := scoreRequest{
		DonorID:               f.DonorID.String(),
		StreakCount:           f.StreakCount,
		NotificationsReceived: f.NotificationsReceived,
		DonationsConfirmed:    f.DonationsConfirmed,
	}
	if f.LastDonation != nil {
		s := f.LastDonation.Format(time.RFC3339)
		req.LastDonationDate = &s
	}

	var out scoreResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/score-donor")
	if err != nil {
		return 0, fmt.Errorf("ml score call failed for donor %s: %w", f.DonorID, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("ml score call failed for donor %s: status %d", f.DonorID, resp.StatusCode())
	}
	return out.FinalScore, nil
}
