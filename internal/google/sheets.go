package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"agent-bridge/internal/dispatch"
	"agent-bridge/internal/models"
)

const (
	sheetsAction = "Google Sheetsへのメモ追記"
	defaultRange = "Sheet1!A:C"
)

// SheetsConfig configures the sheet adapter. SpreadsheetID has no
// default; a missing ID is reported as a configuration error before any
// network call.
type SheetsConfig struct {
	BaseURL       string
	SpreadsheetID string
	Range         string
	DryRun        bool
	Timeout       time.Duration
}

// SheetsClient appends rows through the Sheets REST API.
type SheetsClient struct {
	httpClient    *http.Client
	baseURL       string
	spreadsheetID string
	appendRange   string
	tokens        TokenSource
	dryRun        bool
	logger        *zap.Logger
}

func NewSheetsClient(cfg SheetsConfig, tokens TokenSource, logger *zap.Logger) *SheetsClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://sheets.googleapis.com/v4"
	}
	if cfg.Range == "" {
		cfg.Range = defaultRange
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &SheetsClient{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		baseURL:       cfg.BaseURL,
		spreadsheetID: cfg.SpreadsheetID,
		appendRange:   cfg.Range,
		tokens:        tokens,
		dryRun:        cfg.DryRun,
		logger:        logger,
	}
}

// AppendRows appends the rows, or reports the row count as a
// deterministic stub in dry-run mode without touching the network.
func (c *SheetsClient) AppendRows(ctx context.Context, values [][]string) (*models.AppendResult, error) {
	if c.dryRun {
		c.logger.Info("dry run: skipping sheet append", zap.Int("rows", len(values)))
		return &models.AppendResult{Updated: len(values), DryRun: true}, nil
	}
	if c.spreadsheetID == "" {
		return nil, dispatch.NewUnknownError(sheetsAction, "spreadsheet id is not configured")
	}

	endpoint := fmt.Sprintf("%s/spreadsheets/%s/values/%s:append?valueInputOption=RAW",
		c.baseURL, url.PathEscape(c.spreadsheetID), url.PathEscape(c.appendRange))
	body := map[string]any{"values": values}

	data, err := postJSON(ctx, c.httpClient, c.tokens, sheetsAction, endpoint, body)
	if err != nil {
		return nil, err
	}

	var appended struct {
		Updates struct {
			UpdatedCells int `json:"updatedCells"`
		} `json:"updates"`
	}
	if err := json.Unmarshal(data, &appended); err != nil {
		return nil, dispatch.NewUnknownError(sheetsAction, err.Error())
	}

	c.logger.Info("sheet rows appended",
		zap.Int("rows", len(values)),
		zap.Int("updated_cells", appended.Updates.UpdatedCells))
	return &models.AppendResult{Updated: appended.Updates.UpdatedCells}, nil
}
