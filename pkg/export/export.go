// Package export renders dosing history in JSON and CSV, the formats the
// host UI accepts for download.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/nutetra/doser/core/model"
)

// WriteJSON writes the dosing records to w in JSON format.
func WriteJSON(w io.Writer, records []model.DosingRecord) error {
	enc := json.NewEncoder(w)
	return enc.Encode(records)
}

// WriteCSV writes the dosing records to w in CSV format.
func WriteCSV(w io.Writer, records []model.DosingRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "pump", "amount_ml", "reason", "product", "current_value", "target_value"}); err != nil {
		return err
	}
	for _, r := range records {
		rec := []string{
			r.Timestamp.Format(time.RFC3339),
			r.Pump,
			strconv.FormatFloat(r.AmountMl, 'f', -1, 64),
			string(r.Reason),
			r.Product,
			strconv.FormatFloat(r.CurrentValue, 'f', -1, 64),
			strconv.FormatFloat(r.TargetValue, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteReadingsCSV writes the sensor log to w in CSV format.
func WriteReadingsCSV(w io.Writer, readings []model.SensorReading) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "ph", "ec", "water_temp"}); err != nil {
		return err
	}
	for _, r := range readings {
		rec := []string{
			r.ObservedAt.Format(time.RFC3339),
			strconv.FormatFloat(r.Ph, 'f', -1, 64),
			strconv.FormatFloat(r.Ec, 'f', -1, 64),
			strconv.FormatFloat(r.WaterTemp, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
