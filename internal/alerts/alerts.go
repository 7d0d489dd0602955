// File: internal/alerts/alerts.go
package alerts

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"
)

type Alert struct {
	Timestamp     time.Time
	Symbol        string
	Score         float64
	SessionVolume int64
	Baseline      float64
	ChangePct     float64
	Threshold     float64
}

// LogToCSV appends a single alert row into rvat_alerts_YYYYMMDD.csv
func LogToCSV(alert Alert) error {
	filename := fmt.Sprintf("rvat_alerts_%s.csv", alert.Timestamp.Format("20060102"))
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	row := []string{
		alert.Timestamp.Format(time.RFC3339),
		alert.Symbol,
		fmt.Sprintf("%.2f", alert.Score),
		fmt.Sprintf("%d", alert.SessionVolume),
		fmt.Sprintf("%.0f", alert.Baseline),
		fmt.Sprintf("%.2f", alert.ChangePct),
		fmt.Sprintf("%.2f", alert.Threshold),
	}
	return w.Write(row)
}
