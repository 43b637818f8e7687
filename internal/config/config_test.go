package config

import (
	"testing"
	"time"

	"github.com/ironsheep/overlay-eye/internal/apperrors"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"LLAMA_API_URL", "LLM_TIMEOUT", "OWLVIT_MIN_SCORE", "MAX_BOX_FRAC",
		"MAX_BOX_AREA_FRAC", "MIN_SIDE_PX", "OVERLAY_TIMEOUT", "HF_TOKEN", "HUGGINGFACE_TOKEN",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.LLMTimeout != 60*time.Second {
		t.Errorf("LLMTimeout = %v, want 60s", cfg.LLMTimeout)
	}
	if cfg.LLMMaxTokens != 300 {
		t.Errorf("LLMMaxTokens = %d, want 300", cfg.LLMMaxTokens)
	}
	if cfg.DetectorMinScore != 0.2 {
		t.Errorf("DetectorMinScore = %v, want 0.2", cfg.DetectorMinScore)
	}
	if cfg.OverlayTimeout != 8*time.Second {
		t.Errorf("OverlayTimeout = %v, want 8s", cfg.OverlayTimeout)
	}

	p := cfg.Policy()
	if p.MinSidePx != 4 || p.MaxSideFraction != 0.33 || p.MaxAreaFraction != 0.35 {
		t.Errorf("Policy() = %+v", p)
	}
	if len(p.RejectLabels) == 0 {
		t.Error("Policy() dropped the reject labels")
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("MAX_BOX_FRAC", "0.5")
	t.Setenv("HF_TOKEN", "")
	t.Setenv("HUGGINGFACE_TOKEN", "hf_abc")
	t.Setenv("USE_OWLVIT", "0")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.LLMTimeout != 5*time.Second {
		t.Errorf("LLMTimeout = %v, want 5s", cfg.LLMTimeout)
	}
	if cfg.MaxBoxFrac != 0.5 {
		t.Errorf("MaxBoxFrac = %v, want 0.5", cfg.MaxBoxFrac)
	}
	if cfg.HFToken != "hf_abc" {
		t.Errorf("HFToken = %q, want fallback token", cfg.HFToken)
	}
	if cfg.DetectorEnabled {
		t.Error("DetectorEnabled should be false when USE_OWLVIT=0")
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"side fraction above one", "MAX_BOX_FRAC", "1.5"},
		{"zero area fraction", "MAX_BOX_AREA_FRAC", "0"},
		{"negative min score", "OWLVIT_MIN_SCORE", "-0.1"},
		{"zero min score", "OWLVIT_MIN_SCORE", "0"},
		{"zero timeout", "LLM_TIMEOUT", "0s"},
		{"downscale", "OCR_UPSCALE", "0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadFromEnv()
			if err == nil {
				t.Fatal("expected an error")
			}
			if !apperrors.IsKind(err, apperrors.ConfigInvalid) {
				t.Errorf("error kind = %q, want config_invalid", apperrors.KindOf(err))
			}
		})
	}
}
