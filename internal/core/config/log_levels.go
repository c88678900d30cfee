package config

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// LogLevels represents hierarchical log level configuration.
// Keys are module paths (e.g. "core.admission", "api") and values are log levels.
type LogLevels map[string]string

// LogLevelsDecodeHook skips decoding for LogLevels. Viper turns dotted keys
// into nested maps, which would not decode into a flat map; Load fills the
// field afterwards from viper.Get.
func LogLevelsDecodeHook() mapstructure.DecodeHookFunc {
	return func(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(LogLevels{}) {
			return data, nil
		}
		return make(LogLevels), nil
	}
}

// flattenLogLevels turns {"core": {"admission": "debug"}} back into
// {"core.admission": "debug"}. Keys that were quoted in TOML survive as-is.
func flattenLogLevels(raw interface{}) LogLevels {
	out := make(LogLevels)
	flattenInto(out, "", raw)
	return out
}

func flattenInto(out LogLevels, prefix string, raw interface{}) {
	switch v := raw.(type) {
	case map[string]interface{}:
		for k, child := range v {
			flattenInto(out, joinKey(prefix, k), child)
		}
	case map[string]string:
		for k, child := range v {
			out[joinKey(prefix, k)] = child
		}
	case nil:
	default:
		if prefix != "" {
			out[prefix] = fmt.Sprint(v)
		}
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
