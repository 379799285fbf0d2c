// Package parser flattens raw catalog items into schema-stable records.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// ListSeparator joins derived list fields such as available sizes.
const ListSeparator = ", "

type field struct {
	name  string
	value func(product map[string]any) models.Value
}

// schema is the complete output field set, in CSV column order.
var schema = []field{
	top("id"),
	top("title"),
	top("route"),
	top("brandName"),
	nested("brand_title", "brand", "title"),
	nested("brand_route", "brand", "route"),
	top("price"),
	top("priceOld"),
	top("discount"),
	top("maxPrice"),
	top("minPrice"),
	top("maxPriceOld"),
	top("minPriceOld"),
	top("newIn"),
	top("monoBrand"),
	top("priceInStore"),
	top("season"),
	top("colection"),
	top("line"),
	top("item"),
	top("model"),
	top("article"),
	top("warehouse"),
	top("image"),
	top("mannequins"),
	top("outfit"),
	top("hasVariantPrice"),
	top("beautyDiscount"),
	top("discountId"),
	nested("sizeTable_name", "sizeTable", "name"),
	nested("sizeTable_title", "sizeTable", "title"),
	nested("sizeTable_show", "sizeTable", "show"),
	joined("available_sizes", "variants", "siteSize"),
	counted("variant_count", "variants"),
	joined("images", "images", "source"),
	counted("image_count", "images"),
}

// Schema returns the normalized field names in column order.
func Schema() []string {
	names := make([]string, len(schema))
	for i, f := range schema {
		names[i] = f.name
	}
	return names
}

// Normalize maps a raw item to a record holding every schema field.
// It never fails: anything that cannot be read becomes an empty value.
func Normalize(item models.RawItem) models.Record {
	record, _ := NormalizeItem(item)
	return record
}

// NormalizeItem decodes item once and returns its record along with any
// validation problem. The record is complete even when the error is non-nil.
func NormalizeItem(item models.RawItem) (models.Record, error) {
	product, err := decodeObject(item)
	record := make(models.Record, len(schema))
	for _, f := range schema {
		record[f.name] = f.value(product)
	}
	if err != nil {
		return record, err
	}
	if record["id"].IsEmpty() {
		return record, fmt.Errorf("item missing id")
	}
	return record, nil
}

// ValidateItem reports items that normalize to a mostly empty record.
func ValidateItem(item models.RawItem) error {
	product, err := decodeObject(item)
	if err != nil {
		return err
	}
	if scalar(product["id"]).IsEmpty() {
		return fmt.Errorf("item missing id")
	}
	return nil
}

// ItemID returns the product id as text, or "" when absent.
func ItemID(item models.RawItem) string {
	product, _ := decodeObject(item)
	return scalar(product["id"]).String()
}

func decodeObject(item models.RawItem) (map[string]any, error) {
	if len(bytes.TrimSpace(item)) == 0 {
		return nil, fmt.Errorf("item is empty")
	}
	dec := json.NewDecoder(bytes.NewReader(item))
	dec.UseNumber()
	var product map[string]any
	if err := dec.Decode(&product); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	if product == nil {
		return nil, fmt.Errorf("item is null")
	}
	return product, nil
}

func top(name string) field {
	return field{name: name, value: func(product map[string]any) models.Value {
		return scalar(product[name])
	}}
}

func nested(name, object, key string) field {
	return field{name: name, value: func(product map[string]any) models.Value {
		sub, _ := product[object].(map[string]any)
		return scalar(sub[key])
	}}
}

func joined(name, list, key string) field {
	return field{name: name, value: func(product map[string]any) models.Value {
		entries, _ := product[list].([]any)
		labels := make([]string, 0, len(entries))
		for _, entry := range entries {
			obj, _ := entry.(map[string]any)
			labels = append(labels, scalar(obj[key]).String())
		}
		return models.StringValue(strings.Join(labels, ListSeparator))
	}}
}

func counted(name, list string) field {
	return field{name: name, value: func(product map[string]any) models.Value {
		entries, _ := product[list].([]any)
		return models.IntValue(len(entries))
	}}
}

// scalar converts a decoded JSON value. Objects and arrays in a scalar column
// are kept as compact JSON text.
func scalar(v any) models.Value {
	switch val := v.(type) {
	case nil:
		return models.Value{}
	case string:
		return models.StringValue(val)
	case json.Number:
		return models.NumberValue(val)
	case bool:
		return models.BoolValue(val)
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return models.Value{}
		}
		return models.StringValue(string(encoded))
	}
}
