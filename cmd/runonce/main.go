// Command runonce performs a one-shot smoke check against the outbound
// services: it registers a short test event and appends a test memo
// row, honoring dry-run, and prints the raw results.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"agent-bridge/internal/google"
	"agent-bridge/internal/models"
	"agent-bridge/pkg/config"
)

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	tokens := google.NewFileTokenSource(cfg.Google.TokenPath)
	calendar := google.NewCalendarClient(google.CalendarConfig{
		CalendarID: cfg.Google.CalendarID,
		DryRun:     cfg.Google.DryRun,
	}, tokens, logger)
	sheets := google.NewSheetsClient(google.SheetsConfig{
		SpreadsheetID: cfg.Google.SheetsID,
		Range:         cfg.Google.SheetsRange,
		DryRun:        cfg.Google.DryRun,
	}, tokens, logger)

	if cfg.Google.DryRun {
		fmt.Println("dry-run mode: nothing will be written upstream")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	now := time.Now().In(models.JST)
	event := &models.CalendarPayload{
		Summary: "動作確認",
		Start:   models.EventTime{At: now.Add(5 * time.Minute)},
		End:     models.EventTime{At: now.Add(35 * time.Minute)},
	}

	created, err := calendar.CreateEvent(ctx, event)
	if err != nil {
		logger.Error("calendar smoke check failed", zap.Error(err))
		os.Exit(1)
	}
	printJSON("calendar", created)

	row := []string{now.Format(models.MemoTimestampLayout), "memo", "動作確認メモ"}
	appended, err := sheets.AppendRows(ctx, [][]string{row})
	if err != nil {
		logger.Error("sheets smoke check failed", zap.Error(err))
		os.Exit(1)
	}
	printJSON("sheets", appended)
}

func printJSON(label string, v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%s: %v\n", label, v)
		return
	}
	fmt.Printf("%s:\n%s\n", label, out)
}
