package migrate

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/Shopify/go-lua"

	"github.com/louisbranch/sheetkit/internal/sheet/document"
	"github.com/louisbranch/sheetkit/internal/sheet/store"
)

// LoadScript runs a Lua migration file and decodes the table it returns.
//
//	return {
//	  targets = { main = 2 },
//	  steps = {
//	    { kind = "main", from = 1,
//	      renames = { character_race = "characterRace" },
//	      repeaters = { skills = { pct = "percent" } },
//	      updates = { hpmax = 10 },
//	      derived = { uid = "instance_uid" } },
//	  },
//	}
//
// Map keys are applied in sorted order.
func LoadScript(path string) (Definition, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("read migration script: %w", err)
	}
	return ParseScript(path, string(src))
}

// ParseScript evaluates src as a Lua chunk named name.
func ParseScript(name, src string) (Definition, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)

	if err := lua.LoadBuffer(state, src, name, ""); err != nil {
		return Definition{}, fmt.Errorf("load migration script %s: %w", name, err)
	}
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return Definition{}, fmt.Errorf("run migration script %s: %w", name, err)
	}
	if state.TypeOf(-1) != lua.TypeTable {
		return Definition{}, fmt.Errorf("migration script %s must return a table", name)
	}
	raw, ok := tableToMap(state, -1)
	state.Pop(1)
	if !ok {
		return Definition{}, fmt.Errorf("migration script %s returned an array", name)
	}
	return decodeDefinition(raw)
}

func decodeDefinition(raw map[string]any) (Definition, error) {
	def := Definition{Targets: map[document.Kind]int{}}

	targets, err := asMap(raw["targets"], "targets")
	if err != nil {
		return Definition{}, err
	}
	for _, kind := range sortedKeys(targets) {
		v, ok := targets[kind].(int)
		if !ok {
			return Definition{}, fmt.Errorf("targets.%s: expected integer", kind)
		}
		def.Targets[document.Kind(kind)] = v
	}

	steps, ok := raw["steps"].([]any)
	if !ok && raw["steps"] != nil {
		return Definition{}, fmt.Errorf("steps: expected array")
	}
	for i, item := range steps {
		fields, err := asMap(item, fmt.Sprintf("steps[%d]", i+1))
		if err != nil {
			return Definition{}, err
		}
		step, err := decodeStep(fields)
		if err != nil {
			return Definition{}, fmt.Errorf("steps[%d]: %w", i+1, err)
		}
		def.Steps = append(def.Steps, step)
	}
	return def, nil
}

func decodeStep(fields map[string]any) (Step, error) {
	var step Step
	if kind, ok := fields["kind"].(string); ok {
		step.Kind = document.Kind(kind)
	}
	from, ok := fields["from"].(int)
	if !ok {
		return Step{}, fmt.Errorf("from: expected integer")
	}
	step.From = from

	renames, err := asStringMap(fields["renames"], "renames")
	if err != nil {
		return Step{}, err
	}
	step.FieldRenames = toRenames(renames)

	repeaters, err := asMap(fields["repeaters"], "repeaters")
	if err != nil {
		return Step{}, err
	}
	for _, id := range sortedKeys(repeaters) {
		keys, err := asStringMap(repeaters[id], "repeaters."+id)
		if err != nil {
			return Step{}, err
		}
		step.RepeaterRenames = append(step.RepeaterRenames, RepeaterRename{Repeater: id, Renames: toRenames(keys)})
	}

	updates, err := asMap(fields["updates"], "updates")
	if err != nil {
		return Step{}, err
	}
	for _, key := range sortedKeys(updates) {
		switch updates[key].(type) {
		case string, int, float64, bool:
		default:
			return Step{}, fmt.Errorf("updates.%s: unsupported value %T", key, updates[key])
		}
		step.Updates = append(step.Updates, store.Field{Key: key, Value: updates[key]})
	}

	derived, err := asStringMap(fields["derived"], "derived")
	if err != nil {
		return Step{}, err
	}
	for _, field := range sortedKeys(derived) {
		step.Derived = append(step.Derived, Derivation{Field: field, Source: Source(derived[field])})
	}
	return step, nil
}

func toRenames(m map[string]string) []Rename {
	out := make([]Rename, 0, len(m))
	for _, old := range sortedKeys(m) {
		out = append(out, Rename{Old: old, New: m[old]})
	}
	return out
}

func asMap(v any, path string) (map[string]any, error) {
	switch t := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return t, nil
	case []any:
		if len(t) == 0 {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("%s: expected table with string keys", path)
	default:
		return nil, fmt.Errorf("%s: expected table with string keys", path)
	}
}

func asStringMap(v any, path string) (map[string]string, error) {
	m, err := asMap(v, path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(m))
	for k, value := range m {
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%s.%s: expected string", path, k)
		}
		out[k] = s
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// tableToMap decodes a string-keyed table; ok is false for a pure array.
func tableToMap(state *lua.State, index int) (map[string]any, bool) {
	value := luaToGo(state, index)
	switch t := value.(type) {
	case map[string]any:
		return t, true
	case []any:
		return nil, len(t) == 0
	default:
		return nil, false
	}
}

func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(state, index)
	default:
		return nil
	}
}

func tableToGo(state *lua.State, index int) any {
	index = state.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	state.PushNil()
	for state.Next(index) {
		if isArray {
			if state.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := state.ToInteger(-2); ok && idx > 0 {
				count++
				maxIndex = max(maxIndex, idx)
			} else {
				isArray = false
			}
		}
		state.Pop(1)
	}

	if isArray && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			state.RawGetInt(index, i)
			result = append(result, luaToGo(state, -1))
			state.Pop(1)
		}
		return result
	}

	output := map[string]any{}
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = luaToGo(state, -1)
		}
		state.Pop(1)
	}
	return output
}

func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 {
		return int(value)
	}
	return value
}
