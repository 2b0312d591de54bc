package validators

import "go.mongodb.org/mongo-driver/bson"

var PreferencesValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"user_id",
			"user_type",
			"timezone",
			"working_hours",
			"working_days",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"user_type": bson.M{
				"bsonType": "string",
				"enum":     []string{"manager", "agent"},
			},

			"timezone": bson.M{
				"bsonType": "string",
			},

			"default_slot_length_minutes": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  15,
				"maximum":  120,
			},

			"working_hours": bson.M{
				"bsonType": "object",
				"required": []string{"start", "end"},
				"properties": bson.M{
					"start": bson.M{"bsonType": "string", "pattern": "^([01][0-9]|2[0-3]):[0-5][0-9]$"},
					"end":   bson.M{"bsonType": "string", "pattern": "^([01][0-9]|2[0-3]):[0-5][0-9]$"},
				},
			},

			"working_days": bson.M{
				"bsonType": "array",
				"minItems": 1,
				"maxItems": 7,
				"items": bson.M{
					"bsonType": []string{"int", "long"},
					"minimum":  0,
					"maximum":  6,
				},
			},
		},
	},
}

var AssignmentValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"property_id",
			"to_user",
			"changed_by",
			"timestamp",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"property_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},
			"to_user":   userRef,
			"from_user": userRef,
			"timestamp": bson.M{
				"bsonType": "date",
			},
		},
	},
}
