package filterconfig

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/wonny/prefilter/backend/internal/prefilter"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if strings.TrimSpace(cfg.Meta.DatasetID) == "" {
		return ValidationError{"meta.dataset_id", "required"}
	}

	// === Filter ===
	if math.IsNaN(cfg.Filter.Threshold) || math.IsInf(cfg.Filter.Threshold, 0) {
		return ValidationError{"filter.threshold", "must be a finite number"}
	}
	// 실행 리포트(JSON)에 그대로 기록되므로 Inf 불가
	if math.IsNaN(cfg.Filter.MaxT) || math.IsInf(cfg.Filter.MaxT, 0) {
		return ValidationError{"filter.max_t", "must be a finite number"}
	}

	// === VarTypes ===
	for _, name := range sortedNames(cfg.VarTypes) {
		if strings.TrimSpace(name) == "" {
			return ValidationError{"var_types", "variable name must not be empty"}
		}
		if strings.TrimSpace(cfg.VarTypes[name]) == "" {
			return ValidationError{"var_types." + name, "type label must not be empty"}
		}
	}

	return nil
}

// Warn returns recommendation violations (실행은 계속)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	// coverage는 최대 1.0 → 모든 변수 제거
	if cfg.Filter.Threshold >= 1 {
		warnings = append(warnings, Warning{
			Code:    "ALL_VARS_DROPPED",
			Message: fmt.Sprintf("threshold %.4g >= 1: P5에서 모든 변수가 제거됨", cfg.Filter.Threshold),
		})
	}
	if cfg.Filter.Threshold < 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_COVERAGE_FILTER",
			Message: "threshold < 0: 관측된 모든 변수가 유지됨",
		})
	}

	if cfg.Filter.MaxT <= 0 {
		warnings = append(warnings, Warning{
			Code:    "EMPTY_TIME_WINDOW",
			Message: "max_t <= 0: 시간 정보가 없는 관측값만 남음",
		})
	}

	for _, name := range sortedNames(cfg.VarTypes) {
		label := strings.ToLower(cfg.VarTypes[name])
		if !prefilter.IsCategoricalLabel(label) && !strings.Contains(label, "numeric") {
			warnings = append(warnings, Warning{
				Code:    "UNKNOWN_VAR_TYPE",
				Message: fmt.Sprintf("var_types.%s=%q: 수치형으로 간주하여 중복 검사 대상", name, cfg.VarTypes[name]),
			})
		}
	}

	return warnings
}

func sortedNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
