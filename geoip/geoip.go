// Package geoip resolves the machine's public IP and geolocates addresses
// through free lookup services. Results feed the perceptual stage; every
// call is best effort and callers must tolerate failure.
package geoip

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// Location is a resolved IP geolocation.
type Location struct {
	IP      string
	City    string
	Region  string
	Country string
	Lat     float64
	Lon     float64
}

const (
	defaultIPEndpoint     = "https://api.ipify.org"
	defaultLocateEndpoint = "http://ip-api.com/json/"
)

// Client queries the lookup services. The free geolocation tier allows 45
// requests a minute, so lookups go through a rate limiter; excess calls
// wait or fail with the context.
type Client struct {
	httpClient     *http.Client
	limiter        *rate.Limiter
	ipEndpoint     string
	locateEndpoint string
}

// NewClient creates a new instance of Client.
func NewClient() *Client {
	return &Client{
		httpClient:     &http.Client{Timeout: 5 * time.Second},
		limiter:        rate.NewLimiter(rate.Every(time.Minute/40), 5),
		ipEndpoint:     defaultIPEndpoint,
		locateEndpoint: defaultLocateEndpoint,
	}
}

// PublicIP returns the machine's public address as seen from outside.
func (c *Client) PublicIP(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ipEndpoint, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to build ip request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "failed to fetch public ip")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("ip lookup returned status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", errors.Wrap(err, "failed to read ip response")
	}
	ip := strings.TrimSpace(string(raw))
	if ip == "" {
		return "", errors.New("ip lookup returned empty body")
	}
	return ip, nil
}

type locateResponse struct {
	Status     string  `json:"status"`
	Message    string  `json:"message"`
	Country    string  `json:"country"`
	RegionName string  `json:"regionName"`
	City       string  `json:"city"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Query      string  `json:"query"`
}

// Locate geolocates an IP address.
func (c *Client) Locate(ctx context.Context, ip string) (*Location, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.locateEndpoint+ip, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build locate request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch location")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("locate returned status %d", resp.StatusCode)
	}
	var body locateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "failed to decode location")
	}
	if body.Status != "success" {
		return nil, errors.Errorf("locate failed: %s", body.Message)
	}

	return &Location{
		IP:      body.Query,
		City:    body.City,
		Region:  body.RegionName,
		Country: body.Country,
		Lat:     body.Lat,
		Lon:     body.Lon,
	}, nil
}
