package score

// Weights holds every tunable heuristic weight. Field tags map to the
// scoring.* configuration keys. PathBonuses and PathPenalties are open maps
// keyed by lowercase directory segment; a config file may add segments
// there, and entries it names replace the defaults for those segments.
type Weights struct {
	NameExact     float64 `mapstructure:"name_exact" json:"name_exact"`
	NameSubstring float64 `mapstructure:"name_substring" json:"name_substring"`
	NamePattern   float64 `mapstructure:"name_pattern" json:"name_pattern"`
	NameUnnamed   float64 `mapstructure:"name_unnamed" json:"name_unnamed"`

	TypeExact    float64 `mapstructure:"type_exact" json:"type_exact"`
	TypeSubtype  float64 `mapstructure:"type_subtype" json:"type_subtype"`
	TypeMismatch float64 `mapstructure:"type_mismatch" json:"type_mismatch"`

	PathBonuses   map[string]float64 `mapstructure:"path_bonuses" json:"path_bonuses"`
	PathBonusCap  float64            `mapstructure:"path_bonus_cap" json:"path_bonus_cap" validate:"gte=0"`
	PathPenalties map[string]float64 `mapstructure:"path_penalties" json:"path_penalties"`

	MethodsFull    float64 `mapstructure:"methods_full" json:"methods_full"`
	MethodsPartial float64 `mapstructure:"methods_partial" json:"methods_partial"`
	MethodsNone    float64 `mapstructure:"methods_none" json:"methods_none"`

	ExportsMatch    float64 `mapstructure:"exports_match" json:"exports_match"`
	ExportsMismatch float64 `mapstructure:"exports_mismatch" json:"exports_mismatch"`

	ModuleExact    float64 `mapstructure:"module_exact" json:"module_exact"`
	ModuleSuffix   float64 `mapstructure:"module_suffix" json:"module_suffix"`
	ModuleMismatch float64 `mapstructure:"module_mismatch" json:"module_mismatch"`

	AnnotationHit  float64 `mapstructure:"annotation_hit" json:"annotation_hit"`
	AnnotationNone float64 `mapstructure:"annotation_none" json:"annotation_none"`

	ExtendsHit  float64 `mapstructure:"extends_hit" json:"extends_hit"`
	ExtendsMiss float64 `mapstructure:"extends_miss" json:"extends_miss"`

	ImplementsHit  float64 `mapstructure:"implements_hit" json:"implements_hit"`
	ImplementsNone float64 `mapstructure:"implements_none" json:"implements_none"`

	FileName float64 `mapstructure:"file_name" json:"file_name"`

	RecencyMax          float64 `mapstructure:"recency_max" json:"recency_max" validate:"gte=0"`
	RecencyHalfLifeDays float64 `mapstructure:"recency_half_life_days" json:"recency_half_life_days" validate:"gt=0"`
}

// DefaultWeights returns the documented defaults. Each call returns fresh maps.
func DefaultWeights() Weights {
	return Weights{
		NameExact:     25,
		NameSubstring: 12,
		NamePattern:   10,
		NameUnnamed:   5,

		TypeExact:    12,
		TypeSubtype:  8,
		TypeMismatch: -50,

		PathBonuses: map[string]float64{
			"src":      10,
			"lib":      6,
			"core":     5,
			"app":      4,
			"pkg":      4,
			"internal": 3,
			"service":  2,
			"services": 2,
		},
		PathBonusCap: 15,
		PathPenalties: map[string]float64{
			"test":       -25,
			"tests":      -25,
			"__tests__":  -25,
			"spec":       -25,
			"mock":       -30,
			"mocks":      -30,
			"__mocks__":  -30,
			"fixture":    -30,
			"fixtures":   -30,
			"tmp":        -20,
			"temp":       -20,
			"deprecated": -25,
			"legacy":     -25,
			"example":    -10,
			"examples":   -10,
			"sandbox":    -15,
		},

		MethodsFull:    20,
		MethodsPartial: 10,
		MethodsNone:    -60,

		ExportsMatch:    6,
		ExportsMismatch: -4,

		ModuleExact:    10,
		ModuleSuffix:   5,
		ModuleMismatch: -10,

		AnnotationHit:  6,
		AnnotationNone: -5,

		ExtendsHit:  12,
		ExtendsMiss: -5,

		ImplementsHit:  5,
		ImplementsNone: -6,

		FileName: 2,

		RecencyMax:          0.5,
		RecencyHalfLifeDays: 30,
	}
}
