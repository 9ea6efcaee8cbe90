package engine

import (
	"context"
	"encoding/json"
	"net/http"

	xe "github.com/opst/mlengine/pkg/errors"
	"github.com/opst/mlengine/pkg/explain"
)

func (c *Client) Model(ctx context.Context, modelID string) (explain.Model, error) {
	m := explain.Model{}
	if err := c.do(ctx, http.MethodGet, c.apipath("models", modelID), nil, &m); err != nil {
		return explain.Model{}, err
	}
	if m.ID == "" {
		m.ID = modelID
	}
	return m, nil
}

var _ explain.ModelSource = &Client{}

type shapRequest struct {
	ModelID        string  `json:"model_id"`
	Explainer      string  `json:"explainer"`
	BackgroundSize int     `json:"background_size"`
	Background     [][]any `json:"background,omitempty"`
	Rows           [][]any `json:"rows"`
}

// SHAPValues asks the engine for SHAP values.
//
// The engine answers a matrix, or a matrix per class for multi-output models.
func (c *Client) SHAPValues(ctx context.Context, req explain.Request) (explain.Values, error) {
	body := shapRequest{
		ModelID:        req.ModelID,
		Explainer:      string(req.Explainer),
		BackgroundSize: len(req.Background),
		Background:     req.Background,
		Rows:           req.Rows,
	}
	var resp struct {
		Values json.RawMessage `json:"values"`
	}
	if err := c.do(ctx, http.MethodPost, c.apipath("explain", "shap"), body, &resp); err != nil {
		return explain.Values{}, err
	}
	return decodeValues(resp.Values)
}

var _ explain.Backend = &Client{}

func decodeValues(raw json.RawMessage) (explain.Values, error) {
	var v explain.Values
	var m [][]float64
	if err := json.Unmarshal(raw, &m); err == nil {
		v = explain.Values{Matrix: m}
	} else {
		var pc [][][]float64
		if err := json.Unmarshal(raw, &pc); err != nil {
			return explain.Values{}, xe.WrapWithNote("values are neither 2-d nor 3-d", err)
		}
		v = explain.Values{PerClass: pc}
	}
	if err := v.Validate(0); err != nil {
		return explain.Values{}, err
	}
	return v, nil
}

// Predict predicts a single row, given as feature name to value.
func (c *Client) Predict(ctx context.Context, modelID string, features map[string]any) (map[string]any, error) {
	out := map[string]any{}
	if err := c.do(ctx, http.MethodPost, c.apipath("predictions", "realtime", modelID), features, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PredictBatch predicts rows at once.
func (c *Client) PredictBatch(ctx context.Context, modelID string, rows []map[string]any) (map[string]any, error) {
	out := map[string]any{}
	body := map[string]any{"data": rows}
	if err := c.do(ctx, http.MethodPost, c.apipath("predictions", "batch", modelID), body, &out); err != nil {
		return nil, err
	}
	return out, nil
}
