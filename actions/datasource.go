package actions

import "sync"

// Student is one status record in a tenant dataset.
type Student struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Finance is one balance record in a tenant dataset.
type Finance struct {
	BalanceEUR float64 `json:"balance_eur"`
}

// AbsenceRecord is one absence count record in a tenant dataset.
type AbsenceRecord struct {
	Total int `json:"total"`
}

// Limits holds tenant-wide thresholds.
type Limits struct {
	MaxAbsences int `json:"max_absences"`
}

// Dataset is the domain data the built-in actions query for one tenant.
type Dataset struct {
	Students map[string]Student
	Finance  map[string]Finance
	Absences map[string]AbsenceRecord
	Limits   Limits
}

// DataSource resolves the dataset for a tenant. Tenants without a dedicated
// dataset fall back to a default one.
type DataSource interface {
	Dataset(tenantID string) *Dataset
}

// StaticDataSource is an in-memory DataSource seeded at startup. It stands
// in for per-tenant databases until those are wired up.
type StaticDataSource struct {
	mu       sync.RWMutex
	datasets map[string]*Dataset
	fallback *Dataset
}

// NewStaticDataSource creates a StaticDataSource with the given fallback
// dataset.
func NewStaticDataSource(fallback *Dataset) *StaticDataSource {
	return &StaticDataSource{
		datasets: make(map[string]*Dataset),
		fallback: fallback,
	}
}

// SetTenant installs a dedicated dataset for one tenant.
func (s *StaticDataSource) SetTenant(tenantID string, ds *Dataset) {
	s.mu.Lock()
	s.datasets[tenantID] = ds
	s.mu.Unlock()
}

// Dataset implements DataSource.
func (s *StaticDataSource) Dataset(tenantID string) *Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ds, ok := s.datasets[tenantID]; ok {
		return ds
	}
	return s.fallback
}

// DemoDataset returns the seed dataset used when no real tenant data is
// configured.
func DemoDataset() *Dataset {
	return &Dataset{
		Students: map[string]Student{
			"STU-001": {Name: "Nikos Papadopoulos", Status: "active"},
			"STU-002": {Name: "Maria Ioannou", Status: "inactive"},
		},
		Finance: map[string]Finance{
			"STU-001": {BalanceEUR: 0},
			"STU-002": {BalanceEUR: 120},
		},
		Absences: map[string]AbsenceRecord{
			"STU-001": {Total: 2},
			"STU-002": {Total: 18},
		},
		Limits: Limits{MaxAbsences: 20},
	}
}
