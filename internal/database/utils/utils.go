package utils

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
)

var decimalType = reflect.TypeOf(decimal.Decimal{})

// FieldsToType decodes a document field map into v, honouring `firestore` struct tags.
// Numbers arrive as int64 or float64 depending on the backend; both decode into
// int fields and decimal.Decimal fields.
func FieldsToType(fields map[string]interface{}, v interface{}) error {
	if fields == nil {
		return fmt.Errorf("fields are nil")
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "firestore",
		WeaklyTypedInput: true,
		DecodeHook:       decimalHook,
		Result:           v,
	})
	if err != nil {
		return err
	}

	return decoder.Decode(fields)
}

func decimalHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != decimalType {
		return data, nil
	}

	switch n := data.(type) {
	case float64:
		return decimal.NewFromFloat(n), nil
	case float32:
		return decimal.NewFromFloat32(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case string:
		return decimal.NewFromString(n)
	case decimal.Decimal:
		return n, nil
	}

	return nil, fmt.Errorf("cannot decode %s into decimal", from)
}
