package metrics

import (
	"fmt"

	"github.com/costpulse/azure-cost-exporter/internal/config"
)

// ChargeTypeActualCost is the only charge type the exporter reports.
const ChargeTypeActualCost = "ActualCost"

// Schema is the fixed, ordered label key set every observation must
// supply. It is computed once at startup from the first configured
// target plus the group-by policy and never changes afterwards.
type Schema struct {
	names []string
	index map[string]int
}

// NewSchema derives the label schema: the target's descriptive label
// keys in sorted order, then ChargeType and Currency, then one label
// per group spec in policy order.
func NewSchema(target config.Target, groupBy config.GroupByPolicy) *Schema {
	names := target.LabelKeys()
	names = append(names, config.LabelChargeType, config.LabelCurrency)
	if groupBy.Enabled {
		for _, g := range groupBy.Groups {
			names = append(names, g.LabelName)
		}
	}

	index := make(map[string]int, len(names))
	for i, name := range names {
		index[name] = i
	}

	return &Schema{names: names, index: index}
}

// Names returns the label keys in schema order
func (s *Schema) Names() []string {
	return s.names
}

// Len returns the number of labels in the schema
func (s *Schema) Len() int {
	return len(s.names)
}

// Values orders a label map into schema order. It fails if the map's
// key set differs from the schema in any way; heterogeneous label sets
// are a programming error, not data to be repaired.
func (s *Schema) Values(labels map[string]string) ([]string, error) {
	if len(labels) != len(s.names) {
		return nil, fmt.Errorf("label set has %d keys, schema requires %d (%v)", len(labels), len(s.names), s.names)
	}

	values := make([]string, len(s.names))
	for name, value := range labels {
		i, ok := s.index[name]
		if !ok {
			return nil, fmt.Errorf("label %q is not part of the schema %v", name, s.names)
		}
		values[i] = value
	}
	return values, nil
}
