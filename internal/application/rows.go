package application

import (
	"fmt"
	"reflect"
	"time"

	"github.com/bnema/pathfinder/internal/ports"
	"github.com/go-viper/mapstructure/v2"
)

var timeType = reflect.TypeOf(time.Time{})

// emptyTimeHook maps the empty string to the zero time so optional
// timestamps survive decoding.
func emptyTimeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != timeType || from.Kind() != reflect.String {
		return data, nil
	}
	if data.(string) == "" {
		return time.Time{}, nil
	}
	return data, nil
}

func decodeRow[T any](row ports.Row) (T, error) {
	var out T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			emptyTimeHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
	})
	if err != nil {
		return out, fmt.Errorf("build row decoder: %w", err)
	}
	if err := decoder.Decode(map[string]any(row)); err != nil {
		return out, fmt.Errorf("decode %T row: %w", out, err)
	}
	return out, nil
}

func decodeRows[T any](rows []ports.Row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		v, err := decodeRow[T](row)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
