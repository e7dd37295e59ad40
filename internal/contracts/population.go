package contracts

// Population is the authoritative set of in-scope subject IDs
// ⭐ SSOT: 모집단(ID 테이블) → 필터 단계 전달
type Population struct {
	IDs []string `json:"ids"`
}

// Set builds the hash set of subject IDs (duplicates collapse)
func (p *Population) Set() map[string]struct{} {
	if p == nil {
		return map[string]struct{}{}
	}
	set := make(map[string]struct{}, len(p.IDs))
	for _, id := range p.IDs {
		set[id] = struct{}{}
	}
	return set
}

// Size returns the number of distinct subject IDs
func (p *Population) Size() int {
	return len(p.Set())
}
