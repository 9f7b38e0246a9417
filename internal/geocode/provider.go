package geocode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/babcs2035/enzetsu-navi/internal/domain"
)

// Provider resolves a free-text query to coordinates. A nil result with a nil
// error means the provider found nothing.
type Provider interface {
	Search(ctx context.Context, query string) (*domain.GeoPoint, error)
}

// PlacesConfig holds Google Places text-search settings.
type PlacesConfig struct {
	APIKey       string
	BaseURL      string
	LanguageCode string
	RegionCode   string
	Timeout      time.Duration
}

// PlacesClient is a Provider backed by the Places searchText endpoint.
type PlacesClient struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	languageCode string
	regionCode   string
	logger       *slog.Logger
}

func NewPlacesClient(cfg PlacesConfig, logger *slog.Logger) *PlacesClient {
	return &PlacesClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		languageCode: cfg.LanguageCode,
		regionCode:   cfg.RegionCode,
		logger:       logger.With("component", "places"),
	}
}

type searchRequest struct {
	TextQuery    string `json:"textQuery"`
	LanguageCode string `json:"languageCode"`
	RegionCode   string `json:"regionCode"`
}

type searchResponse struct {
	Places []struct {
		Location *struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"location"`
		FormattedAddress string `json:"formattedAddress"`
	} `json:"places"`
}

func (p *PlacesClient) Search(ctx context.Context, query string) (*domain.GeoPoint, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("places api key is not configured")
	}

	body, err := json.Marshal(searchRequest{
		TextQuery:    query,
		LanguageCode: p.languageCode,
		RegionCode:   p.regionCode,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", p.apiKey)
	req.Header.Set("X-Goog-FieldMask", "places.location,places.formattedAddress")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(sr.Places) == 0 {
		return nil, nil
	}

	place := sr.Places[0]
	if place.Location == nil || place.FormattedAddress == "" {
		return nil, nil
	}

	return &domain.GeoPoint{
		Lat:     place.Location.Latitude,
		Lng:     place.Location.Longitude,
		Address: place.FormattedAddress,
	}, nil
}
