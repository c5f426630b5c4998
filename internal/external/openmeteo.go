package external

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lawnwatch/internal/telemetry"
	"lawnwatch/internal/types"
)

const (
	ProviderOpenMeteo       = "open-meteo"
	DefaultOpenMeteoBaseURL = "https://api.open-meteo.com"

	// MaxForecastDays is the longest horizon Open-Meteo serves.
	MaxForecastDays = 16
)

var openMeteoVariables = strings.Join([]string{
	"temperature_2m",
	"relative_humidity_2m",
	"precipitation",
	"precipitation_probability",
	"wind_speed_10m",
	"weather_code",
	"uv_index",
	"soil_moisture_0_to_1cm",
	"dew_point_2m",
	"surface_pressure",
	"visibility",
}, ",")

// OpenMeteoClient implements types.WeatherGateway against the Open-Meteo
// forecast API. Units: °C, %, mm, km/h.
type OpenMeteoClient struct {
	base    *BaseClient
	baseURL string
	metrics telemetry.Recorder
	logger  *slog.Logger
}

func NewOpenMeteoClient(base *BaseClient, baseURL string, metrics telemetry.Recorder, logger *slog.Logger) *OpenMeteoClient {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenMeteoClient{
		base:    base,
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: telemetry.OrNoop(metrics),
		logger:  logger.With("component", "openmeteo_client"),
	}
}

// BreakerOpen exposes the breaker state for health checks.
func (c *OpenMeteoClient) BreakerOpen() bool {
	return c.base.BreakerOpen()
}

// GetCurrentWeather returns the latest observation at loc.
func (c *OpenMeteoClient) GetCurrentWeather(ctx context.Context, loc types.Location) (*types.WeatherReading, error) {
	q := c.query(loc)
	q.Set("current", openMeteoVariables)

	var body openMeteoResponse
	if err := c.fetch(ctx, q, &body); err != nil {
		return nil, err
	}
	if body.Current == nil || body.Current.Temperature == nil {
		return nil, types.NewAppError(types.ErrCodeGatewayUnavailable, "open-meteo response missing current conditions", nil)
	}

	cur := body.Current
	r := types.WeatherReading{
		TemperatureC:        deref(cur.Temperature),
		HumidityPercent:     deref(cur.Humidity),
		PrecipitationMM:     deref(cur.Precipitation),
		WindSpeedKmh:        deref(cur.WindSpeed),
		Conditions:          ConditionFromWMO(cur.WeatherCode),
		UVIndex:             cur.UVIndex,
		SoilMoisturePercent: percent(cur.SoilMoisture),
		DewPointC:           cur.DewPoint,
		PressureHPa:         cur.Pressure,
		VisibilityKm:        kilometres(cur.Visibility),
	}
	return &r, nil
}

// GetForecast returns hourly points covering days days from today. days is
// clamped to [1, MaxForecastDays].
func (c *OpenMeteoClient) GetForecast(ctx context.Context, loc types.Location, days int) ([]types.ForecastPoint, error) {
	days = max(1, min(days, MaxForecastDays))

	q := c.query(loc)
	q.Set("hourly", openMeteoVariables)
	q.Set("forecast_days", strconv.Itoa(days))

	var body openMeteoResponse
	if err := c.fetch(ctx, q, &body); err != nil {
		return nil, err
	}
	if body.Hourly == nil {
		return nil, types.NewAppError(types.ErrCodeGatewayUnavailable, "open-meteo response missing hourly block", nil)
	}

	h := body.Hourly
	points := make([]types.ForecastPoint, 0, len(h.Time))
	for i, ts := range h.Time {
		// Points without temperature or humidity are unusable for scoring.
		if at(h.Temperature, i) == nil || at(h.Humidity, i) == nil {
			continue
		}
		p := types.ForecastPoint{
			Date: time.Unix(ts, 0).UTC(),
			WeatherReading: types.WeatherReading{
				TemperatureC:        deref(at(h.Temperature, i)),
				HumidityPercent:     deref(at(h.Humidity, i)),
				PrecipitationMM:     deref(at(h.Precipitation, i)),
				WindSpeedKmh:        deref(at(h.WindSpeed, i)),
				UVIndex:             at(h.UVIndex, i),
				SoilMoisturePercent: percent(at(h.SoilMoisture, i)),
				DewPointC:           at(h.DewPoint, i),
				PressureHPa:         at(h.Pressure, i),
				VisibilityKm:        kilometres(at(h.Visibility, i)),
			},
			PrecipitationProbability: deref(at(h.PrecipitationProbability, i)),
		}
		var code *int
		if i < len(h.WeatherCode) {
			code = h.WeatherCode[i]
		}
		p.Conditions = ConditionFromWMO(code)
		points = append(points, p)
	}
	return points, nil
}

func (c *OpenMeteoClient) query(loc types.Location) url.Values {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(loc.Lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(loc.Lon, 'f', 4, 64))
	q.Set("timeformat", "unixtime")
	q.Set("timezone", "GMT")
	q.Set("wind_speed_unit", "kmh")
	return q
}

// fetch performs the call, records latency and maps every failure to
// ErrCodeGatewayUnavailable. The transport's own code is kept in Details
// under "upstream_code".
func (c *OpenMeteoClient) fetch(ctx context.Context, q url.Values, out *openMeteoResponse) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordGatewayCall(ctx, ProviderOpenMeteo, time.Since(start), err)
		if err != nil {
			c.logger.WarnContext(ctx, "weather request failed",
				"provider", ProviderOpenMeteo,
				"error", err,
			)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/forecast?"+q.Encode(), nil)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build weather request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		msg := "weather provider unavailable"
		if types.IsCode(err, types.ErrCodeUpstreamRateLimited) {
			msg = "weather provider rate limited"
		}
		return types.NewAppErrorWithDetails(types.ErrCodeGatewayUnavailable, msg, err,
			map[string]any{"upstream_code": string(types.CodeOf(err))})
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Reason string `json:"reason"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return types.NewAppErrorWithDetails(types.ErrCodeGatewayUnavailable,
			fmt.Sprintf("weather provider returned %d", resp.StatusCode), nil,
			map[string]any{"status": resp.StatusCode, "reason": apiErr.Reason})
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewAppError(types.ErrCodeGatewayUnavailable, "failed to decode weather response", err)
	}
	return nil
}

type openMeteoCurrent struct {
	Temperature   *float64 `json:"temperature_2m"`
	Humidity      *float64 `json:"relative_humidity_2m"`
	Precipitation *float64 `json:"precipitation"`
	WindSpeed     *float64 `json:"wind_speed_10m"`
	WeatherCode   *int     `json:"weather_code"`
	UVIndex       *float64 `json:"uv_index"`
	SoilMoisture  *float64 `json:"soil_moisture_0_to_1cm"`
	DewPoint      *float64 `json:"dew_point_2m"`
	Pressure      *float64 `json:"surface_pressure"`
	Visibility    *float64 `json:"visibility"`
}

type openMeteoHourly struct {
	Time                     []int64    `json:"time"`
	Temperature              []*float64 `json:"temperature_2m"`
	Humidity                 []*float64 `json:"relative_humidity_2m"`
	Precipitation            []*float64 `json:"precipitation"`
	PrecipitationProbability []*float64 `json:"precipitation_probability"`
	WindSpeed                []*float64 `json:"wind_speed_10m"`
	WeatherCode              []*int     `json:"weather_code"`
	UVIndex                  []*float64 `json:"uv_index"`
	SoilMoisture             []*float64 `json:"soil_moisture_0_to_1cm"`
	DewPoint                 []*float64 `json:"dew_point_2m"`
	Pressure                 []*float64 `json:"surface_pressure"`
	Visibility               []*float64 `json:"visibility"`
}

type openMeteoResponse struct {
	Current *openMeteoCurrent `json:"current"`
	Hourly  *openMeteoHourly  `json:"hourly"`
}

// ConditionFromWMO maps a WMO weather interpretation code to a canonical
// condition string. A nil code is Unknown.
func ConditionFromWMO(code *int) string {
	if code == nil {
		return types.ConditionUnknown
	}
	switch c := *code; {
	case c == 0:
		return types.ConditionClear
	case c == 1 || c == 2:
		return types.ConditionPartlyCloudy
	case c == 3:
		return types.ConditionCloudy
	case c == 45 || c == 48:
		return types.ConditionFog
	case c >= 51 && c <= 57:
		return types.ConditionDrizzle
	case c == 61:
		return types.ConditionLightRain
	case c >= 63 && c <= 67:
		return types.ConditionRain
	case c >= 71 && c <= 77:
		return types.ConditionSnow
	case c >= 80 && c <= 82:
		return types.ConditionRainShowers
	case c == 85 || c == 86:
		return types.ConditionSnowShowers
	case c >= 95 && c <= 99:
		return types.ConditionThunderstorm
	default:
		return types.ConditionUnknown
	}
}

func at[T any](s []*T, i int) *T {
	if i < len(s) {
		return s[i]
	}
	return nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// percent converts a volumetric fraction (m³/m³) to percent.
func percent(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return types.Float(*v * 100)
}

func kilometres(metres *float64) *float64 {
	if metres == nil {
		return nil
	}
	return types.Float(*metres / 1000)
}
