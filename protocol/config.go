package protocol

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Parameter is a text configuration command known to the device.
type Parameter struct {
	Code        string
	Description string
}

// parameters is the MCA8000D text configuration table in query order.
var parameters = []Parameter{
	{"RESC", "Reset Configuration"},
	{"PURE", "PUR Interval on/off"},
	{"MCAS", "MCA Source"},
	{"MCAC", "MCA/MCS Channels"},
	{"SOFF", "Set Spectrum Offset"},
	{"GAIA", "Analog Gain Index"},
	{"PDMD", "Peak Detect Mode (min/max)"},
	{"THSL", "Slow Threshold"},
	{"TLLD", "LLD Threshold"},
	{"GATE", "Gate Control"},
	{"AUO1", "AUX OUT Selection"},
	{"PRER", "Preset Real Time"},
	{"PREL", "Preset Life Time"},
	{"PREC", "Preset Counts"},
	{"PRCL", "Preset Counts Low Threshold"},
	{"PRCH", "Preset Counts High Threshold"},
	{"SCOE", "Scope Trigger Edge"},
	{"SCOT", "Scope Trigger Position"},
	{"SCOG", "Digital Scope Gain"},
	{"MCSL", "MCS Low Threshold"},
	{"MCSH", "MCS High Threshold"},
	{"MCST", "MCS Timebase"},
	{"AUO2", "AUX OUT 2 Selection"},
	{"GPED", "G.P.Counter Edge"},
	{"GPIN", "G.P. Counter Input"},
	{"GPME", "G.P. Counter Uses MCA_EN"},
	{"GPGA", "G.P. Counter Uses Gate"},
	{"GPMC", "G.P. Counter Cleared With MCA"},
	{"MCAE", "MCA/MCS Enable"},
}

// parameterIndex maps a code to its position in parameters.
var parameterIndex = func() map[string]int {
	idx := make(map[string]int, len(parameters))
	for i, p := range parameters {
		idx[p.Code] = i
	}
	return idx
}()

// Text command syntax.
const (
	commandSeparator = ";"
	valueSeparator   = "="
	queryValue       = "?"

	// PresetOff disables a preset
	PresetOff = "OFF"

	// PresetRealTimeCode is the preset real time command
	PresetRealTimeCode = "PRER"
)

// ConfigMap maps a parameter code to its value.
type ConfigMap map[string]string

// Parameters returns a copy of the parameter table in query order.
func Parameters() []Parameter {
	out := make([]Parameter, len(parameters))
	copy(out, parameters)
	return out
}

// Describe returns the human-readable description of a parameter code.
func Describe(code string) (string, bool) {
	i, ok := parameterIndex[code]
	if !ok {
		return "", false
	}
	return parameters[i].Description, true
}

// IsKnownParameter reports whether code is in the parameter table.
func IsKnownParameter(code string) bool {
	_, ok := parameterIndex[code]
	return ok
}

// BuildQueryString returns "<code>=?;" for every parameter, in table order.
func BuildQueryString() string {
	var sb strings.Builder
	for _, p := range parameters {
		sb.WriteString(p.Code)
		sb.WriteString(valueSeparator)
		sb.WriteString(queryValue)
		sb.WriteString(commandSeparator)
	}
	return sb.String()
}

// ParseConfigResponse parses a ';'-delimited list of KEY=VALUE pairs.
// Tokens without exactly one '=' are dropped. When a key repeats, the first
// value is kept.
func ParseConfigResponse(s string) ConfigMap {
	cfg := make(ConfigMap)
	for _, token := range strings.Split(s, commandSeparator) {
		if token == "" {
			continue
		}
		kv := strings.Split(token, valueSeparator)
		if len(kv) != 2 {
			continue
		}
		if _, seen := cfg[kv[0]]; !seen {
			cfg[kv[0]] = kv[1]
		}
	}
	return cfg
}

// BuildSetCommand renders m as "<key>=<value>;" pairs. Known parameters are
// emitted in table order, followed by any other keys in lexical order. Keys
// outside the parameter table are passed through unchanged.
func BuildSetCommand(m ConfigMap) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ii, iKnown := parameterIndex[keys[i]]
		jj, jKnown := parameterIndex[keys[j]]
		switch {
		case iKnown && jKnown:
			return ii < jj
		case iKnown != jKnown:
			return iKnown
		default:
			return keys[i] < keys[j]
		}
	})

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(valueSeparator)
		sb.WriteString(m[k])
		sb.WriteString(commandSeparator)
	}
	return sb.String()
}

// PresetTimeCommand returns the command setting the preset real time.
// Zero seconds turns the preset off; negative values are rejected.
func PresetTimeCommand(seconds int) (string, error) {
	if seconds < 0 {
		return "", fmt.Errorf("%w: negative preset time %d", ErrInvalidArgument, seconds)
	}
	value := PresetOff
	if seconds > 0 {
		value = strconv.Itoa(seconds)
	}
	return PresetRealTimeCode + valueSeparator + value + commandSeparator, nil
}

// Describe returns "description : value" lines in table order, followed by
// unknown codes in lexical order.
func (m ConfigMap) Describe() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(m))
	for _, p := range parameters {
		if v, ok := m[p.Code]; ok {
			lines = append(lines, p.Description+" : "+v)
		}
	}
	for _, k := range keys {
		if !IsKnownParameter(k) {
			lines = append(lines, k+" : "+m[k])
		}
	}
	return lines
}
