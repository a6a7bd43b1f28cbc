package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"field-alerts/internal/models"
)

// ErrUpstream is returned when the remote backend cannot serve a reading.
var ErrUpstream = errors.New("telemetry upstream unavailable")

// Client calls the remote agronomy backend.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(baseURL string, timeout time.Duration, ratePerSec int) *Client {
	if ratePerSec < 1 {
		ratePerSec = 1
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
	}
}

func locationQuery(lat, lon float64) url.Values {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	return q
}

func (c *Client) NDVI(ctx context.Context, lat, lon float64) (models.NDVIReading, error) {
	var r models.NDVIReading
	if err := c.get(ctx, "/krishi-saathi/ndvi", locationQuery(lat, lon), &r); err != nil {
		return models.NDVIReading{}, err
	}
	r.Source = models.SourceLive
	return r, nil
}

func (c *Client) Weather(ctx context.Context, lat, lon float64) (models.WeatherReading, error) {
	var r models.WeatherReading
	if err := c.get(ctx, "/krishi-saathi/weather", locationQuery(lat, lon), &r); err != nil {
		return models.WeatherReading{}, err
	}
	r.Source = models.SourceLive
	return r, nil
}

func (c *Client) LatestSensor(ctx context.Context) (models.SensorReading, error) {
	var r struct {
		Moisture    *float64 `json:"moisture"`
		Temperature *float64 `json:"temperature"`
		Humidity    *float64 `json:"humidity"`
	}
	if err := c.get(ctx, "/iot/latest", nil, &r); err != nil {
		return models.SensorReading{}, err
	}
	if r.Moisture == nil {
		return models.SensorReading{}, fmt.Errorf("%w: /iot/latest: no moisture sample", ErrUpstream)
	}
	return models.SensorReading{
		Moisture:    *r.Moisture,
		Temperature: r.Temperature,
		Humidity:    r.Humidity,
		Source:      models.SourceLive,
	}, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s: rate limit: %v", ErrUpstream, path, err)
	}

	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUpstream, path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUpstream, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s: status %d", ErrUpstream, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: decode: %v", ErrUpstream, path, err)
	}
	return nil
}
