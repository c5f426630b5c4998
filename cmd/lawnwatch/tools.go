package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lawnwatch/internal/config"
	"lawnwatch/internal/db"
	"lawnwatch/internal/prediction"
	"lawnwatch/internal/reschedule"
	"lawnwatch/internal/scoring"
	"lawnwatch/internal/telemetry"
	"lawnwatch/internal/treatments"
	"lawnwatch/internal/types"
)

const dateLayout = "2006-01-02"

// toolEnv is what every one-shot command needs: configuration and a
// stderr logger.
func toolEnv() (*config.Config, *slog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return cfg, newLogger(os.Stderr, cfg.LogLevel, false), nil
}

func addReadingFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64("temp", 20, "temperature in °C")
	f.Float64("humidity", 50, "relative humidity %")
	f.Float64("precip", 0, "precipitation in mm")
	f.Float64("wind", 5, "wind speed in km/h")
	f.String("conditions", types.ConditionClear, "condition, e.g. \"Partly Cloudy\"")
	f.Float64("uv", 0, "UV index")
	f.Float64("soil", 0, "soil moisture %")
	f.Float64("dewpoint", 0, "dew point in °C")
	f.Float64("pressure", 0, "surface pressure in hPa")
	f.Float64("visibility", 0, "visibility in km")
}

// readingFromFlags builds a reading. Optional metrics are only set when
// their flag was given.
func readingFromFlags(cmd *cobra.Command) types.WeatherReading {
	f := cmd.Flags()
	num := func(name string) float64 {
		v, _ := f.GetFloat64(name)
		return v
	}
	opt := func(name string) *float64 {
		if !f.Changed(name) {
			return nil
		}
		return types.Float(num(name))
	}
	conditions, _ := f.GetString("conditions")

	return types.WeatherReading{
		TemperatureC:        num("temp"),
		HumidityPercent:     num("humidity"),
		PrecipitationMM:     num("precip"),
		WindSpeedKmh:        num("wind"),
		Conditions:          conditions,
		UVIndex:             opt("uv"),
		SoilMoisturePercent: opt("soil"),
		DewPointC:           opt("dewpoint"),
		PressureHPa:         opt("pressure"),
		VisibilityKm:        opt("visibility"),
	}
}

func addLocationFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64("lat", 0, "latitude")
	f.Float64("lon", 0, "longitude")
	f.String("tz", "", "IANA timezone of the lawn")
}

func locationFromFlags(cmd *cobra.Command) (types.Location, error) {
	f := cmd.Flags()
	lat, _ := f.GetFloat64("lat")
	lon, _ := f.GetFloat64("lon")
	tz, _ := f.GetString("tz")
	loc := types.Location{Lat: lat, Lon: lon, Timezone: tz}
	if err := types.ValidateLocation(loc); err != nil {
		return types.Location{}, err
	}
	return loc, nil
}

func treatmentFromFlags(cmd *cobra.Command) (types.TreatmentType, error) {
	name, _ := cmd.Flags().GetString("type")
	tt := types.TreatmentType(name)
	if _, err := treatments.Lookup(tt); err != nil {
		return "", err
	}
	return tt, nil
}

func supportedTypes() string {
	names := make([]string, 0, len(treatments.Supported()))
	for _, t := range treatments.Supported() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Rate weather suitability (1-5) for a treatment",
		Long: "Scores the reading given by flags, or the current weather at " +
			"--lat/--lon when --live is set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tt, err := treatmentFromFlags(cmd)
			if err != nil {
				return err
			}

			reading := readingFromFlags(cmd)
			if live, _ := cmd.Flags().GetBool("live"); live {
				cfg, logger, err := toolEnv()
				if err != nil {
					return err
				}
				loc, err := locationFromFlags(cmd)
				if err != nil {
					return err
				}
				current, err := newWeatherClient(cfg.Weather, telemetry.Noop{}, logger).GetCurrentWeather(cmd.Context(), loc)
				if err != nil {
					return err
				}
				reading = *current
			}

			breakdown, err := scoring.New().Breakdown(reading, tt)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), struct {
				Reading   types.WeatherReading `json:"reading"`
				Breakdown scoring.Breakdown    `json:"breakdown"`
			}{reading, breakdown})
		},
	}
	cmd.Flags().String("type", string(types.TreatmentMowing), "treatment type: "+supportedTypes())
	cmd.Flags().Bool("live", false, "score current weather at --lat/--lon")
	addReadingFlags(cmd)
	addLocationFlags(cmd)
	return cmd
}

func newRescheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reschedule",
		Short: "Find better dates for a treatment from the live forecast",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := toolEnv()
			if err != nil {
				return err
			}
			tt, err := treatmentFromFlags(cmd)
			if err != nil {
				return err
			}
			loc, err := locationFromFlags(cmd)
			if err != nil {
				return err
			}

			optimizer := reschedule.NewOptimizer(reschedule.Config{
				AlertThreshold: cfg.Reschedule.AlertThreshold,
				DaysToCheck:    cfg.Reschedule.DaysToCheck,
			}, newWeatherClient(cfg.Weather, telemetry.Noop{}, logger), scoring.New(), nil, logger)

			if raw, _ := cmd.Flags().GetString("assess"); raw != "" {
				dates, err := parseDates(raw, loc.TimeLocation())
				if err != nil {
					return err
				}
				assessed, err := optimizer.AssessDates(cmd.Context(), tt, loc, dates)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), assessed)
			}

			original := time.Now().In(loc.TimeLocation())
			if raw, _ := cmd.Flags().GetString("date"); raw != "" {
				dates, err := parseDates(raw, loc.TimeLocation())
				if err != nil {
					return err
				}
				original = dates[0]
			}
			days, _ := cmd.Flags().GetInt("days")

			options, err := optimizer.FindOptions(cmd.Context(), reschedule.Request{
				TreatmentType: tt,
				Location:      loc,
				OriginalDate:  original,
				DaysToCheck:   days,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), options)
		},
	}
	cmd.Flags().String("type", string(types.TreatmentFertilization), "treatment type")
	cmd.Flags().String("date", "", "originally scheduled date (YYYY-MM-DD), default today")
	cmd.Flags().Int("days", 0, "days of forecast to search (default from config)")
	cmd.Flags().String("assess", "", "comma-separated dates to assess instead of searching")
	addLocationFlags(cmd)
	return cmd
}

// parseDates parses comma-separated YYYY-MM-DD dates as midnight in tz.
func parseDates(raw string, tz *time.Location) ([]time.Time, error) {
	var out []time.Time
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.ParseInLocation(dateLayout, part, tz)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: want YYYY-MM-DD", part)
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no dates in %q", raw)
	}
	return out, nil
}

func newPredictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict treatment effectiveness, or record feedback with --rating",
		Long: "Uses the training samples in DATABASE_URL when set, otherwise an " +
			"empty in-memory store.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := toolEnv()
			if err != nil {
				return err
			}
			tt, err := treatmentFromFlags(cmd)
			if err != nil {
				return err
			}

			store, closeStore, err := sampleStore(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer closeStore()

			engine, err := newEngine(cfg.Prediction, store, nil, telemetry.Noop{}, logger)
			if err != nil {
				return err
			}

			reading := readingFromFlags(cmd)
			if cmd.Flags().Changed("rating") {
				rating, _ := cmd.Flags().GetInt("rating")
				sample, err := engine.AddSample(cmd.Context(), reading, tt, rating)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), sample)
			}

			result, err := engine.Predict(cmd.Context(), reading, tt)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().String("type", string(types.TreatmentFertilization), "treatment type")
	cmd.Flags().Int("rating", 0, "record an effectiveness rating (1-5) for the reading")
	addReadingFlags(cmd)
	return cmd
}

func sampleStore(ctx context.Context, c config.DatabaseConfig) (prediction.SampleStore, func(), error) {
	if c.URL.Unmask() == "" {
		return prediction.NewMemoryStore(), func() {}, nil
	}
	pool, err := newPool(ctx, c)
	if err != nil {
		return nil, nil, err
	}
	return db.NewTrainingSampleRepository(pool), pool.Close, nil
}
