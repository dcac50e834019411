package settlelog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var mu sync.Mutex

// SettlementEntry is one settled event, appended to the daily settlement file.
type SettlementEntry struct {
	Time           string  `json:"time"`
	EventID        string  `json:"event_id"`
	EventName      string  `json:"event_name"`
	Predicted      string  `json:"predicted"`
	Actual         string  `json:"actual"`
	PortfolioValue float64 `json:"portfolio_value"`
}

// InsightEntry is one analyzer judgment, appended to the daily insights file.
type InsightEntry struct {
	Time    string  `json:"time"`
	NewsID  string  `json:"news_id"`
	EventID string  `json:"event_id,omitempty"`
	Score   float64 `json:"score"`
	Trend   string  `json:"trend"`
	Text    string  `json:"text"`
}

func logDir() string {
	if v := os.Getenv("TRACKER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

func dailyFilepath(t time.Time, sub string) string {
	d := t.UTC().Format("2006-01-02")
	if sub == "" {
		return filepath.Join(logDir(), d+".txt")
	}
	return filepath.Join(logDir(), sub, d+".txt")
}

func appendLine(path string, v any) error {
	mu.Lock()
	defer mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, _ := json.Marshal(v)
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// Append writes a settlement record to today's file.
func Append(e SettlementEntry) error {
	now := time.Now().UTC()
	e.Time = now.Format("2006-01-02 15:04:05")
	return appendLine(dailyFilepath(now, "settlements"), e)
}

// AppendInsight writes an analyzer judgment to today's insights file.
func AppendInsight(e InsightEntry) error {
	now := time.Now().UTC()
	e.Time = now.Format("2006-01-02 15:04:05")
	return appendLine(dailyFilepath(now, "insights"), e)
}

// CompressOlder gzips daily files older than retentionDays. A zero or
// negative retention disables compression.
func CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	root := logDir()
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, er := os.Stat(p)
		if er != nil || !info.ModTime().Before(cutoff) {
			return nil
		}

		gz := p + ".gz"
		if _, e2 := os.Stat(gz); e2 == nil {
			_ = os.Remove(p)
			return nil
		}

		in, e3 := os.Open(p)
		if e3 != nil {
			return nil
		}
		defer in.Close()

		out, e4 := os.OpenFile(gz, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if e4 != nil {
			return nil
		}
		gw := gzip.NewWriter(out)
		if _, e5 := io.Copy(gw, in); e5 != nil {
			gw.Close()
			out.Close()
			_ = os.Remove(gz)
			return nil
		}
		gw.Close()
		out.Close()
		_ = os.Remove(p)
		return nil
	})
}
