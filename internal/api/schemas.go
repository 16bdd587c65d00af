package api

// JSON schemas for the request payloads, validated with gojsonschema before
// any handler logic runs.

var createEntrySchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"title", "latitude", "longitude"},
	"properties": map[string]interface{}{
		"title":       map[string]interface{}{"type": "string", "minLength": 1},
		"description": map[string]interface{}{"type": "string"},
		"pincode":     map[string]interface{}{"type": "string"},
		"latitude":    map[string]interface{}{"type": "number", "minimum": -90, "maximum": 90},
		"longitude":   map[string]interface{}{"type": "number", "minimum": -180, "maximum": 180},
		"tags": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"experiences": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"user_id": map[string]interface{}{"type": "string"},
	},
}

var descriptionSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"para_name"},
	"properties": map[string]interface{}{
		"para_name": map[string]interface{}{"type": "string", "minLength": 1},
		"tags": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"experiences": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
	},
}

var tagsSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"pincode"},
	"properties": map[string]interface{}{
		"pincode": map[string]interface{}{"type": "string", "minLength": 1},
	},
}

var reverseGeocodeSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"latitude", "longitude"},
	"properties": map[string]interface{}{
		"latitude":  map[string]interface{}{"type": "number", "minimum": -90, "maximum": 90},
		"longitude": map[string]interface{}{"type": "number", "minimum": -180, "maximum": 180},
	},
}
