package sdk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
)

// Health probes GET /health.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if _, err := c.Do(ctx, "/health", RequestOptions{Out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// SyncStatus reads GET /sync/status.
func (c *Client) SyncStatus(ctx context.Context) (*SyncStatus, error) {
	var out SyncStatus
	if _, err := c.Do(ctx, "/sync/status", RequestOptions{Out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// SyncGoogle triggers POST /sync/google for target ("all" or a platoon name).
func (c *Client) SyncGoogle(ctx context.Context, target string) (SyncResult, error) {
	if target == "" {
		return nil, fmt.Errorf("sync target is required")
	}
	out := SyncResult{}
	_, err := c.Do(ctx, "/sync/google", RequestOptions{
		Method: http.MethodPost,
		Params: map[string]string{"target": target},
		Out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Import uploads a file to POST /imports/{kind} as multipart form data.
func (c *Client) Import(ctx context.Context, kind, filename string, content io.Reader) (*ImportResult, error) {
	if kind == "" {
		return nil, fmt.Errorf("import kind is required")
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("copy import content: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("close multipart form: %w", err)
	}

	var out ImportResult
	_, err = c.Do(ctx, "/imports/"+url.PathEscape(kind), RequestOptions{
		Method:      http.MethodPost,
		Body:        &buf,
		ContentType: form.FormDataContentType(),
		Out:         &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FormsSummary reads GET /queries/forms/summary.
func (c *Client) FormsSummary(ctx context.Context, input FormsSummaryInput) (*FormsSummary, error) {
	var out FormsSummary
	_, err := c.Do(ctx, "/queries/forms/summary", RequestOptions{
		Params: map[string]string{
			"mode":    string(input.Mode),
			"week":    input.Week,
			"platoon": input.Platoon,
		},
		Out: &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FormsCoverage reads GET /queries/forms/coverage.
func (c *Client) FormsCoverage(ctx context.Context, week string) (*Coverage, error) {
	var out Coverage
	_, err := c.Do(ctx, "/queries/forms/coverage", RequestOptions{
		Params: map[string]string{"week": week},
		Out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// FormsStatus reads GET /queries/forms/status.
func (c *Client) FormsStatus(ctx context.Context) (*FormsStatus, error) {
	var out FormsStatus
	if _, err := c.Do(ctx, "/queries/forms/status", RequestOptions{Out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// Tabular reads GET /queries/tabular/{kind}.
func (c *Client) Tabular(ctx context.Context, kind TabularKind, scope QueryScope) ([]Row, error) {
	var out []Row
	_, err := c.Do(ctx, "/queries/tabular/"+url.PathEscape(string(kind)), RequestOptions{
		Params: scope.params(true),
		Out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Trends reads GET /queries/trends.
func (c *Client) Trends(ctx context.Context, scope QueryScope) ([]Row, error) {
	var out []Row
	_, err := c.Do(ctx, "/queries/trends", RequestOptions{
		Params: scope.params(false),
		Out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Insights reads GET /insights.
func (c *Client) Insights(ctx context.Context, scope QueryScope) (*Insights, error) {
	var out Insights
	_, err := c.Do(ctx, "/insights", RequestOptions{
		Params: scope.params(false),
		Out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PlatoonIntelligence reads GET /intelligence/platoon/{platoon}.
func (c *Client) PlatoonIntelligence(ctx context.Context, platoon, week string) (map[string]any, error) {
	if platoon == "" {
		return nil, fmt.Errorf("platoon is required")
	}
	return c.intelligence(ctx, "/intelligence/platoon/"+url.PathEscape(platoon), week)
}

// BattalionIntelligence reads GET /intelligence/battalion.
func (c *Client) BattalionIntelligence(ctx context.Context, week string) (map[string]any, error) {
	return c.intelligence(ctx, "/intelligence/battalion", week)
}

// TankIntelligence reads GET /intelligence/tank/{tankID}.
func (c *Client) TankIntelligence(ctx context.Context, tankID, week string) (map[string]any, error) {
	if tankID == "" {
		return nil, fmt.Errorf("tank ID is required")
	}
	return c.intelligence(ctx, "/intelligence/tank/"+url.PathEscape(tankID), week)
}

func (c *Client) intelligence(ctx context.Context, path, week string) (map[string]any, error) {
	var out map[string]any
	_, err := c.Do(ctx, path, RequestOptions{
		Params: map[string]string{"week": week},
		Out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Export opens GET /exports/{kind} as a stream.
func (c *Client) Export(ctx context.Context, input ExportInput) (*ExportStream, error) {
	if input.Kind == ExportPlatoon && input.Platoon == "" {
		return nil, fmt.Errorf("platoon export requires a platoon")
	}
	resp, err := c.Do(ctx, "/exports/"+url.PathEscape(string(input.Kind)), RequestOptions{
		Params: map[string]string{
			"week":    input.Week,
			"platoon": input.Platoon,
		},
		ResponseType: ResponseRaw,
	})
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("%s-export.xlsx", input.Kind)
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}
	return &ExportStream{
		Filename:    filename,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        resp.Raw.Body,
	}, nil
}

func (s QueryScope) params(withWeek bool) map[string]string {
	params := map[string]string{
		"section": s.Section,
		"platoon": s.Platoon,
	}
	if s.TopN > 0 {
		params["top_n"] = strconv.Itoa(s.TopN)
	}
	if withWeek {
		params["week"] = s.Week
	}
	return params
}
