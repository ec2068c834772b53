// Package geocoder предоставляет клиент внешнего сервиса геокодирования.
package geocoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrNoResult возвращается, если провайдер ответил успешно, но не нашёл адрес.
var ErrNoResult = errors.New("geocoder: no result for address")

// Client инкапсулирует HTTP-взаимодействие с сервисом геокодирования.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient создаёт клиент геокодера для указанного адреса сервиса.
// Ключ API передаётся явно и подставляется в каждый запрос.
func NewClient(baseURL, apiKey string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = time.Second
	rc.HTTPClient.Timeout = 5 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: rc.StandardClient(),
	}
}

// Ответ геокодера в формате Яндекса: координаты лежат в Point.pos
// строкой "долгота широта", нормализованный адрес — в метаданных.
type geocodeResponse struct {
	Response struct {
		GeoObjectCollection struct {
			FeatureMember []struct {
				GeoObject struct {
					MetaDataProperty struct {
						GeocoderMetaData struct {
							Text string `json:"text"`
						} `json:"GeocoderMetaData"`
					} `json:"metaDataProperty"`
					Point struct {
						Pos string `json:"pos"`
					} `json:"Point"`
				} `json:"GeoObject"`
			} `json:"featureMember"`
		} `json:"GeoObjectCollection"`
	} `json:"response"`
}

// Geocode запрашивает координаты для указанного адреса.
// Возвращает нормализованный адрес, широту и долготу. Если провайдер
// ответил, но адрес не нашёлся, возвращается ErrNoResult.
func (c *Client) Geocode(ctx context.Context, address string) (string, float64, float64, error) {
	if c == nil || c.baseURL == "" {
		return "", 0, 0, fmt.Errorf("geocoder client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	query := url.Values{}
	query.Set("apikey", c.apiKey)
	query.Set("geocode", address)
	query.Set("format", "json")

	reqURL := fmt.Sprintf("%s/1.x/?%s", base, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", 0, 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", 0, 0, fmt.Errorf("decode response: %w", err)
	}

	members := result.Response.GeoObjectCollection.FeatureMember
	if len(members) == 0 {
		return "", 0, 0, ErrNoResult
	}

	object := members[0].GeoObject

	lat, lon, err := parsePos(object.Point.Pos)
	if err != nil {
		return "", 0, 0, ErrNoResult
	}

	return object.MetaDataProperty.GeocoderMetaData.Text, lat, lon, nil
}

// parsePos разбирает строку "долгота широта".
func parsePos(pos string) (lat, lon float64, err error) {
	parts := strings.Fields(pos)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed pos: %q", pos)
	}

	lon, err = strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse longitude: %w", err)
	}

	lat, err = strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse latitude: %w", err)
	}

	return lat, lon, nil
}
