package sim

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/inference-sim/orderflow-sim/sim/simerr"
)

// ComplexityLevel keys the procedural generator's distributions.
type ComplexityLevel string

const (
	ComplexityBasic        ComplexityLevel = "basic"
	ComplexityIntermediate ComplexityLevel = "intermediate"
	ComplexityAdvanced     ComplexityLevel = "advanced"
)

// GenerationMode selects where orders come from. The modes are mutually exclusive.
type GenerationMode string

const (
	ModeProcedural    GenerationMode = "procedural"
	ModePredetermined GenerationMode = "predetermined"
)

var (
	validSessionMinutes = map[int]bool{15: true, 30: true, 60: true}
	validComplexity     = map[ComplexityLevel]bool{"": true, ComplexityBasic: true, ComplexityIntermediate: true, ComplexityAdvanced: true}
	validModes          = map[GenerationMode]bool{"": true, ModeProcedural: true, ModePredetermined: true}
)

// EventToggles switches random shop-floor events on or off.
type EventToggles struct {
	EquipmentFailures bool `yaml:"equipment_failures" json:"equipmentFailures"`
	QualityIssues     bool `yaml:"quality_issues" json:"qualityIssues"`
	RushOrders        bool `yaml:"rush_orders" json:"rushOrders"`
}

// DepartmentConfig describes one station.
type DepartmentConfig struct {
	ID                 string         `yaml:"id" json:"id"`
	Name               string         `yaml:"name" json:"name"`
	Capacity           int            `yaml:"capacity" json:"capacity"`
	MaxQueueSize       int            `yaml:"max_queue_size" json:"maxQueueSize"`
	Policy             DispatchPolicy `yaml:"policy" json:"policy"`
	BaseMinutes        float64        `yaml:"base_minutes" json:"baseMinutes"`
	Efficiency         float64        `yaml:"efficiency,omitempty" json:"efficiency,omitempty"`
	EquipmentCondition float64        `yaml:"equipment_condition,omitempty" json:"equipmentCondition,omitempty"`
	Reliability        float64        `yaml:"reliability,omitempty" json:"reliability,omitempty"`
}

// ScheduledOrderSpec is an authored order for predetermined mode.
// Due time is either DueMinute (from session start) or DueInMinutes (after release).
type ScheduledOrderSpec struct {
	ID              string             `yaml:"id" json:"id"`
	CustomerID      string             `yaml:"customer_id,omitempty" json:"customerId,omitempty"`
	Priority        string             `yaml:"priority,omitempty" json:"priority,omitempty"`
	Value           float64            `yaml:"value,omitempty" json:"value,omitempty"`
	ReleaseMinute   float64            `yaml:"release_minute" json:"releaseMinute"`
	DueMinute       *float64           `yaml:"due_minute,omitempty" json:"dueMinute,omitempty"`
	DueInMinutes    *float64           `yaml:"due_in_minutes,omitempty" json:"dueInMinutes,omitempty"`
	Route           []string           `yaml:"route" json:"route"`
	StationMinutes  map[string]float64 `yaml:"station_minutes,omitempty" json:"stationMinutes,omitempty"`
	HalfOrderReason string             `yaml:"half_order_reason,omitempty" json:"halfOrderReason,omitempty"`
}

// GameSettings is supplied by collaborators at session start.
type GameSettings struct {
	SessionMinutes      int             `yaml:"session_minutes" json:"sessionMinutes"`
	OrderGenerationRate float64         `yaml:"order_generation_rate" json:"orderGenerationRate"` // orders per simulated hour
	ComplexityLevel     ComplexityLevel `yaml:"complexity_level" json:"complexityLevel"`
	Seed                string          `yaml:"seed" json:"seed"`
	SpeedMultiplier     int             `yaml:"speed_multiplier" json:"speedMultiplier"`
	Events              EventToggles    `yaml:"events" json:"events"`
	ManualMode          bool            `yaml:"manual_mode" json:"manualMode"`
	Mode                GenerationMode  `yaml:"mode" json:"mode"`

	Schedule    []ScheduledOrderSpec `yaml:"schedule,omitempty" json:"schedule,omitempty"`
	Departments []DepartmentConfig   `yaml:"departments,omitempty" json:"departments,omitempty"`
	Customers   []Customer           `yaml:"customers,omitempty" json:"customers,omitempty"`

	QualityIssueRate   float64 `yaml:"quality_issue_rate,omitempty" json:"qualityIssueRate,omitempty"`
	RushOrderRate      float64 `yaml:"rush_order_rate,omitempty" json:"rushOrderRate,omitempty"`
	MaintenanceMinutes float64 `yaml:"maintenance_minutes,omitempty" json:"maintenanceMinutes,omitempty"`
}

// DefaultSettings returns a 30-minute procedural session on the default shop floor.
func DefaultSettings() GameSettings {
	return GameSettings{
		SessionMinutes:      30,
		OrderGenerationRate: 12,
		ComplexityLevel:     ComplexityIntermediate,
		Seed:                "42",
		SpeedMultiplier:     1,
		Mode:                ModeProcedural,
		Departments:         DefaultDepartments(),
		Customers:           DefaultCustomers(),
		QualityIssueRate:    0.05,
		RushOrderRate:       0.1,
		MaintenanceMinutes:  5,
	}
}

// DefaultDepartments returns the standard five-station shop floor.
func DefaultDepartments() []DepartmentConfig {
	return []DepartmentConfig{
		{ID: "cutting", Name: "Cutting", Capacity: 1, MaxQueueSize: 5, Policy: PolicyFIFO, BaseMinutes: 4, Efficiency: 1, EquipmentCondition: 1, Reliability: 0.97},
		{ID: "machining", Name: "Machining", Capacity: 2, MaxQueueSize: 4, Policy: PolicySPT, BaseMinutes: 7, Efficiency: 0.95, EquipmentCondition: 0.9, Reliability: 0.93},
		{ID: "welding", Name: "Welding", Capacity: 1, MaxQueueSize: 4, Policy: PolicyEDD, BaseMinutes: 5, Efficiency: 1, EquipmentCondition: 0.95, Reliability: 0.95},
		{ID: "assembly", Name: "Assembly", Capacity: 2, MaxQueueSize: 6, Policy: PolicyFIFO, BaseMinutes: 6, Efficiency: 1.1, EquipmentCondition: 1, Reliability: 0.98},
		{ID: "quality", Name: "Quality Control", Capacity: 1, MaxQueueSize: 6, Policy: PolicyEDD, BaseMinutes: 3, Efficiency: 1, EquipmentCondition: 1, Reliability: 0.99},
	}
}

// SessionDuration returns the session length in ticks.
func (s *GameSettings) SessionDuration() int64 {
	return int64(s.SessionMinutes) * Minute
}

// Validate checks that all fields in the settings are valid.
func (s *GameSettings) Validate() error {
	if !validSessionMinutes[s.SessionMinutes] {
		return fmt.Errorf("session_minutes must be 15, 30 or 60, got %d: %w", s.SessionMinutes, simerr.ErrInvalidSettings)
	}
	if !IsValidSpeed(s.SpeedMultiplier) {
		return fmt.Errorf("speed_multiplier must be 1, 2, 4 or 8, got %d: %w", s.SpeedMultiplier, simerr.ErrInvalidSettings)
	}
	if !validComplexity[s.ComplexityLevel] {
		return fmt.Errorf("unknown complexity_level %q; valid: basic, intermediate, advanced: %w", s.ComplexityLevel, simerr.ErrInvalidSettings)
	}
	if !validModes[s.Mode] {
		return fmt.Errorf("unknown mode %q; valid: procedural, predetermined: %w", s.Mode, simerr.ErrInvalidSettings)
	}
	if s.Mode != ModePredetermined {
		if err := validateFinitePositive("order_generation_rate", s.OrderGenerationRate); err != nil {
			return err
		}
	}
	for name, rate := range map[string]float64{"quality_issue_rate": s.QualityIssueRate, "rush_order_rate": s.RushOrderRate} {
		if math.IsNaN(rate) || rate < 0 || rate > 1 {
			return fmt.Errorf("%s must be in [0,1], got %f: %w", name, rate, simerr.ErrInvalidSettings)
		}
	}
	if s.MaintenanceMinutes < 0 || math.IsNaN(s.MaintenanceMinutes) {
		return fmt.Errorf("maintenance_minutes must be non-negative, got %f: %w", s.MaintenanceMinutes, simerr.ErrInvalidSettings)
	}
	seen := make(map[string]bool, len(s.Departments))
	for i, d := range s.Departments {
		if err := validateDepartment(&d, i); err != nil {
			return err
		}
		if seen[d.ID] {
			return fmt.Errorf("department[%d]: duplicate id %q: %w", i, d.ID, simerr.ErrInvalidSettings)
		}
		seen[d.ID] = true
	}
	customers := make(map[string]bool, len(s.Customers))
	for i, c := range s.Customers {
		if c.ID == "" {
			return fmt.Errorf("customer[%d]: id required: %w", i, simerr.ErrInvalidSettings)
		}
		if !IsValidTier(string(c.Tier)) {
			return fmt.Errorf("customer[%d]: unknown tier %q: %w", i, c.Tier, simerr.ErrInvalidSettings)
		}
		if customers[c.ID] {
			return fmt.Errorf("customer[%d]: duplicate id %q: %w", i, c.ID, simerr.ErrInvalidSettings)
		}
		customers[c.ID] = true
	}
	return nil
}

func validateDepartment(d *DepartmentConfig, idx int) error {
	prefix := fmt.Sprintf("department[%d]", idx)
	if d.ID == "" {
		return fmt.Errorf("%s: id required: %w", prefix, simerr.ErrInvalidSettings)
	}
	if d.Capacity < 1 {
		return fmt.Errorf("%s: capacity must be >= 1, got %d: %w", prefix, d.Capacity, simerr.ErrInvalidSettings)
	}
	if d.MaxQueueSize < 0 {
		return fmt.Errorf("%s: max_queue_size must be non-negative, got %d: %w", prefix, d.MaxQueueSize, simerr.ErrInvalidSettings)
	}
	if !ValidDispatchPolicies[d.Policy] {
		return fmt.Errorf("%s: unknown policy %q; valid: fifo, edd, spt: %w", prefix, d.Policy, simerr.ErrInvalidSettings)
	}
	if err := validateFinitePositive(prefix+".base_minutes", d.BaseMinutes); err != nil {
		return err
	}
	if d.EquipmentCondition > 1 {
		return fmt.Errorf("%s: equipment_condition must be <= 1, got %f: %w", prefix, d.EquipmentCondition, simerr.ErrInvalidSettings)
	}
	if d.Reliability > 1 {
		return fmt.Errorf("%s: reliability must be <= 1, got %f: %w", prefix, d.Reliability, simerr.ErrInvalidSettings)
	}
	for name, v := range map[string]float64{"efficiency": d.Efficiency, "equipment_condition": d.EquipmentCondition, "reliability": d.Reliability} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s.%s must be a finite non-negative number, got %f: %w", prefix, name, v, simerr.ErrInvalidSettings)
		}
	}
	return nil
}

func validateFinitePositive(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%s must be a finite number, got %f: %w", name, val, simerr.ErrInvalidSettings)
	}
	if val <= 0 {
		return fmt.Errorf("%s must be positive, got %f: %w", name, val, simerr.ErrInvalidSettings)
	}
	return nil
}

// Clone returns a deep copy of the settings.
func (s GameSettings) Clone() GameSettings {
	c := s
	c.Departments = slices.Clone(s.Departments)
	c.Customers = slices.Clone(s.Customers)
	if s.Schedule != nil {
		c.Schedule = make([]ScheduledOrderSpec, len(s.Schedule))
		for i, so := range s.Schedule {
			so.Route = slices.Clone(so.Route)
			if so.StationMinutes != nil {
				so.StationMinutes = maps.Clone(so.StationMinutes)
			}
			if so.DueMinute != nil {
				v := *so.DueMinute
				so.DueMinute = &v
			}
			if so.DueInMinutes != nil {
				v := *so.DueInMinutes
				so.DueInMinutes = &v
			}
			c.Schedule[i] = so
		}
	}
	return c
}

// SettingsPatch changes settings mid-session.
// Nil pointer fields mean "not set" and leave the current value alone.
type SettingsPatch struct {
	SpeedMultiplier     *int                      `yaml:"speed_multiplier,omitempty" json:"speedMultiplier,omitempty"`
	OrderGenerationRate *float64                  `yaml:"order_generation_rate,omitempty" json:"orderGenerationRate,omitempty"`
	ManualMode          *bool                     `yaml:"manual_mode,omitempty" json:"manualMode,omitempty"`
	Events              *EventToggles             `yaml:"events,omitempty" json:"events,omitempty"`
	QualityIssueRate    *float64                  `yaml:"quality_issue_rate,omitempty" json:"qualityIssueRate,omitempty"`
	StationPolicies     map[string]DispatchPolicy `yaml:"station_policies,omitempty" json:"stationPolicies,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p *SettingsPatch) IsEmpty() bool {
	return p.SpeedMultiplier == nil && p.OrderGenerationRate == nil && p.ManualMode == nil &&
		p.Events == nil && p.QualityIssueRate == nil && len(p.StationPolicies) == 0
}

// Validate checks the patch values; stationIDs lists the known stations.
func (p *SettingsPatch) Validate(stationIDs map[string]bool) error {
	if p.IsEmpty() {
		return fmt.Errorf("empty settings patch: %w", simerr.ErrInvalidSettings)
	}
	if p.SpeedMultiplier != nil && !IsValidSpeed(*p.SpeedMultiplier) {
		return fmt.Errorf("speed_multiplier must be 1, 2, 4 or 8, got %d: %w", *p.SpeedMultiplier, simerr.ErrInvalidSettings)
	}
	if p.OrderGenerationRate != nil {
		if err := validateFinitePositive("order_generation_rate", *p.OrderGenerationRate); err != nil {
			return err
		}
	}
	if p.QualityIssueRate != nil {
		if r := *p.QualityIssueRate; math.IsNaN(r) || r < 0 || r > 1 {
			return fmt.Errorf("quality_issue_rate must be in [0,1], got %f: %w", r, simerr.ErrInvalidSettings)
		}
	}
	for id, pol := range p.StationPolicies {
		if !stationIDs[id] {
			return fmt.Errorf("station_policies: unknown station %q: %w", id, simerr.ErrInvalidSettings)
		}
		if !ValidDispatchPolicies[pol] {
			return fmt.Errorf("station_policies.%s: unknown policy %q: %w", id, pol, simerr.ErrInvalidSettings)
		}
	}
	return nil
}
