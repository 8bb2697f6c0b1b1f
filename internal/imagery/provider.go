package imagery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/knulata/satteli/internal/config"
	"github.com/knulata/satteli/internal/models"
	"github.com/knulata/satteli/internal/services"
)

// ProviderClient fetches per-parcel observation summaries from the external
// imagery analysis API. The provider clips imagery to the parcel boundary,
// computes vegetation statistics and runs hotspot detection; this client
// only transports the result.
type ProviderClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewProviderClient(cfg config.ImageryConfig) *ProviderClient {
	return &ProviderClient{
		baseURL: cfg.ProviderURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type observeRequest struct {
	Boundary   *models.GeoJSONPolygon `json:"boundary"`
	PeriodDate string                 `json:"period_date"`
}

type observeResponse struct {
	MeanNDVI         float64  `json:"mean_ndvi"`
	MinNDVI          *float64 `json:"min_ndvi,omitempty"`
	MaxNDVI          *float64 `json:"max_ndvi,omitempty"`
	StdNDVI          *float64 `json:"std_ndvi,omitempty"`
	CloudCoverPct    float64  `json:"cloud_cover_pct"`
	ValidPixelPct    float64  `json:"valid_pixel_pct"`
	ObservationCount int      `json:"observation_count"`
	FireHotspots     int      `json:"fire_hotspots"`
	EvidenceURLs     []string `json:"evidence_urls,omitempty"`
}

func (p *ProviderClient) Observe(ctx context.Context, parcel *models.Parcel, periodDate string) (*services.ParcelObservation, error) {
	url := fmt.Sprintf("%s/api/v1/observations", p.baseURL)

	body, err := json.Marshal(observeRequest{
		Boundary:   parcel.Boundary,
		PeriodDate: periodDate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal observation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create observation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call imagery provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		responseBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			responseBody = fmt.Appendf(nil, "failed to read response body: %v", readErr)
		}
		return nil, fmt.Errorf("imagery provider returned %s: %s", resp.Status, responseBody)
	}

	var obs observeResponse
	if err := json.NewDecoder(resp.Body).Decode(&obs); err != nil {
		return nil, fmt.Errorf("failed to decode observation response: %w", err)
	}

	return &services.ParcelObservation{
		Reading: models.SubmitReadingRequest{
			PeriodDate:       periodDate,
			MeanNDVI:         obs.MeanNDVI,
			MinNDVI:          obs.MinNDVI,
			MaxNDVI:          obs.MaxNDVI,
			StdNDVI:          obs.StdNDVI,
			CloudCoverPct:    obs.CloudCoverPct,
			ValidPixelPct:    obs.ValidPixelPct,
			ObservationCount: obs.ObservationCount,
			EvidenceURLs:     obs.EvidenceURLs,
		},
		FireHotspots: obs.FireHotspots,
	}, nil
}
