package filterconfig

import "github.com/wonny/prefilter/backend/internal/prefilter"

// Config는 데이터셋별 전처리 필터 설정
type Config struct {
	Meta     Meta              `yaml:"meta" json:"meta"`
	Filter   Filter            `yaml:"filter" json:"filter"`
	VarTypes map[string]string `yaml:"var_types" json:"var_types"`
}

// Meta 메타 정보
type Meta struct {
	DatasetID   string `yaml:"dataset_id" json:"dataset_id"`
	Version     string `yaml:"version" json:"version"`
	Description string `yaml:"description" json:"description,omitempty"`
}

// Filter P2/P5 파라미터
type Filter struct {
	Threshold float64 `yaml:"threshold" json:"threshold"` // coverage > threshold 인 변수만 유지
	MaxT      float64 `yaml:"max_t" json:"max_t"`         // [0, max_t)
}

// ToFilterConfig converts the file config into the core filter parameters
func (c *Config) ToFilterConfig() prefilter.Config {
	varTypes := make(map[string]string, len(c.VarTypes))
	for name, label := range c.VarTypes {
		varTypes[name] = label
	}
	return prefilter.Config{
		Threshold: c.Filter.Threshold,
		MaxT:      c.Filter.MaxT,
		VarTypes:  varTypes,
	}
}
