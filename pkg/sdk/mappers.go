package sdk

import (
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
)

// TankScoreView is the normalized readiness score of one tank.
type TankScoreView struct {
	TankID         string
	Platoon        string
	Score          float64
	Grade          *string
	CriticalGaps   []string
	CategoryScores map[string]float64
	Trend          *float64
}

// PlatoonIntelView is the normalized readiness picture of one platoon.
type PlatoonIntelView struct {
	Platoon        string
	Week           string
	ReadinessScore float64
	TankCount      int
	Tanks          []TankScoreView
	CriticalItems  []string
	CategoryScores map[string]float64
	Trend          *float64
}

// BattalionIntelView is the normalized readiness picture of the battalion.
type BattalionIntelView struct {
	Week           string
	BattalionScore float64
	Platoons       map[string]PlatoonIntelView
	Ranking        []string
	TopGaps        []string
	UpdatedAt      *string
}

type tankScorePayload struct {
	TankID         string             `mapstructure:"tank_id"`
	Platoon        string             `mapstructure:"platoon"`
	Score          float64            `mapstructure:"score"`
	Grade          *string            `mapstructure:"grade"`
	CriticalGaps   []string           `mapstructure:"critical_gaps"`
	CategoryScores map[string]float64 `mapstructure:"category_scores"`
	Trend          *float64           `mapstructure:"trend"`
}

type platoonIntelPayload struct {
	Platoon        string             `mapstructure:"platoon"`
	Week           string             `mapstructure:"week"`
	ReadinessScore float64            `mapstructure:"readiness_score"`
	TankCount      *int               `mapstructure:"tank_count"`
	Tanks          []map[string]any   `mapstructure:"tanks"`
	CriticalItems  []string           `mapstructure:"critical_items"`
	CategoryScores map[string]float64 `mapstructure:"category_scores"`
	Trend          *float64           `mapstructure:"trend"`
}

type battalionIntelPayload struct {
	Week           string                    `mapstructure:"week"`
	BattalionScore float64                   `mapstructure:"battalion_score"`
	Platoons       map[string]map[string]any `mapstructure:"platoons"`
	Ranking        []string                  `mapstructure:"ranking"`
	TopGaps        []string                  `mapstructure:"top_gaps"`
	UpdatedAt      *string                   `mapstructure:"updated_at"`
}

// MapTankScore normalizes a tank score payload. A nil payload maps to nil.
func MapTankScore(payload map[string]any) (*TankScoreView, error) {
	if payload == nil {
		return nil, nil
	}
	var raw tankScorePayload
	if err := decodePayload(payload, &raw); err != nil {
		return nil, fmt.Errorf("map tank score: %w", err)
	}
	return &TankScoreView{
		TankID:         raw.TankID,
		Platoon:        raw.Platoon,
		Score:          raw.Score,
		Grade:          raw.Grade,
		CriticalGaps:   orEmptySlice(raw.CriticalGaps),
		CategoryScores: orEmptyMap(raw.CategoryScores),
		Trend:          raw.Trend,
	}, nil
}

// MapPlatoonIntel normalizes a platoon intelligence payload. A nil payload maps to nil.
// TankCount falls back to the number of tanks when the backend omits it.
func MapPlatoonIntel(payload map[string]any) (*PlatoonIntelView, error) {
	if payload == nil {
		return nil, nil
	}
	var raw platoonIntelPayload
	if err := decodePayload(payload, &raw); err != nil {
		return nil, fmt.Errorf("map platoon intel: %w", err)
	}

	tanks := make([]TankScoreView, 0, len(raw.Tanks))
	for _, t := range raw.Tanks {
		view, err := MapTankScore(t)
		if err != nil {
			return nil, fmt.Errorf("map platoon intel %q: %w", raw.Platoon, err)
		}
		if view == nil {
			continue
		}
		if view.Platoon == "" {
			view.Platoon = raw.Platoon
		}
		tanks = append(tanks, *view)
	}

	tankCount := len(tanks)
	if raw.TankCount != nil {
		tankCount = *raw.TankCount
	}

	return &PlatoonIntelView{
		Platoon:        raw.Platoon,
		Week:           raw.Week,
		ReadinessScore: raw.ReadinessScore,
		TankCount:      tankCount,
		Tanks:          tanks,
		CriticalItems:  orEmptySlice(raw.CriticalItems),
		CategoryScores: orEmptyMap(raw.CategoryScores),
		Trend:          raw.Trend,
	}, nil
}

// MapBattalionIntel normalizes a battalion intelligence payload. A nil payload maps to nil.
// Ranking falls back to platoons ordered by readiness score, highest first.
func MapBattalionIntel(payload map[string]any) (*BattalionIntelView, error) {
	if payload == nil {
		return nil, nil
	}
	var raw battalionIntelPayload
	if err := decodePayload(payload, &raw); err != nil {
		return nil, fmt.Errorf("map battalion intel: %w", err)
	}

	platoons := make(map[string]PlatoonIntelView, len(raw.Platoons))
	for name, p := range raw.Platoons {
		view, err := MapPlatoonIntel(p)
		if err != nil {
			return nil, err
		}
		if view == nil {
			continue
		}
		if view.Platoon == "" {
			view.Platoon = name
		}
		platoons[name] = *view
	}

	ranking := raw.Ranking
	if ranking == nil {
		ranking = make([]string, 0, len(platoons))
		for name := range platoons {
			ranking = append(ranking, name)
		}
		sort.Slice(ranking, func(i, j int) bool {
			a, b := platoons[ranking[i]], platoons[ranking[j]]
			if a.ReadinessScore != b.ReadinessScore {
				return a.ReadinessScore > b.ReadinessScore
			}
			return ranking[i] < ranking[j]
		})
	}

	return &BattalionIntelView{
		Week:           raw.Week,
		BattalionScore: raw.BattalionScore,
		Platoons:       platoons,
		Ranking:        ranking,
		TopGaps:        orEmptySlice(raw.TopGaps),
		UpdatedAt:      raw.UpdatedAt,
	}, nil
}

// decodePayload decodes weakly: the backend sends numbers as strings in
// some spreadsheet-derived fields.
func decodePayload(payload map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(payload)
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}
